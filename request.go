// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// BulkRequest is one unit of relay work: a batch of search queries to execute
// against a single target index or alias, answered under one correlation id.
type BulkRequest struct {
	// CorrelationID uniquely identifies this request. It becomes the Kafka key
	// of the result record so all results for an id land in partition order.
	CorrelationID string

	// Target is the index or alias the queries run against. Comma-separated
	// multi-index expressions are passed through to the search cluster as-is.
	Target string

	// Queries holds the individual query bodies. They are opaque to the relay
	// and forwarded without inspection.
	Queries []json.RawMessage

	// Meta carries producer-supplied fields that are echoed into the result
	// envelope unchanged, so consumers can rejoin results to their own state.
	Meta map[string]json.RawMessage
}

// bulkRequestEnvelope is the JSON wire form of request topic records. The
// Complete flag marks end-run records rather than work.
type bulkRequestEnvelope struct {
	CorrelationID string                     `json:"correlation_id"`
	Target        string                     `json:"target,omitempty"`
	Queries       []json.RawMessage          `json:"queries,omitempty"`
	Meta          map[string]json.RawMessage `json:"meta,omitempty"`
	Complete      bool                       `json:"complete,omitempty"`
	Partition     int32                      `json:"partition,omitempty"`
}

// endRun is a decoded end-run record. A producer emits one per request topic
// partition after its final request; the relay reflects it to the complete
// topic once every request received before it has been answered.
type endRun struct {
	correlationID string
	partition     int32
	raw           []byte
}

// DecodeBulkRequest parses and validates a request topic record value.
//
// Validation failures where a correlation id could still be recovered return a
// *DecodeError carrying that id, so the failure can be answered on the result
// topic. Failures with no recoverable id return the bare sentinel; those
// records cannot be answered and are counted and dropped by the relay.
func DecodeBulkRequest(value []byte) (*BulkRequest, error) {
	var env bulkRequestEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		wrapped := errors.Join(ErrMalformedEnvelope, err)
		if env.CorrelationID != "" {
			return nil, &DecodeError{CorrelationID: env.CorrelationID, err: wrapped}
		}
		return nil, wrapped
	}

	if env.CorrelationID == "" {
		return nil, errors.Join(ErrMissingCorrelationID, fmt.Errorf("envelope has no correlation_id"))
	}
	if env.Target == "" {
		return nil, &DecodeError{
			CorrelationID: env.CorrelationID,
			err:           errors.Join(ErrEmptyTarget, fmt.Errorf("envelope has no target")),
		}
	}
	if len(env.Queries) == 0 {
		return nil, &DecodeError{
			CorrelationID: env.CorrelationID,
			err:           errors.Join(ErrEmptyQueries, fmt.Errorf("envelope has no queries")),
		}
	}

	return &BulkRequest{
		CorrelationID: env.CorrelationID,
		Target:        env.Target,
		Queries:       env.Queries,
		Meta:          env.Meta,
	}, nil
}

// EncodeBulkRequest serializes a request into the wire form consumed from the
// request topic. Producers and tests use this to build request records.
func EncodeBulkRequest(req *BulkRequest) ([]byte, error) {
	if req == nil {
		return nil, errors.Join(ErrValidation, fmt.Errorf("request must not be nil"))
	}
	return json.Marshal(bulkRequestEnvelope{
		CorrelationID: req.CorrelationID,
		Target:        req.Target,
		Queries:       req.Queries,
		Meta:          req.Meta,
	})
}

// EncodeEndRun serializes an end-run record for one request topic partition.
// A producer finishing a run emits one of these per partition; after all
// earlier requests have been answered the relay reflects the record onto the
// complete topic.
func EncodeEndRun(correlationID string, partition int32) ([]byte, error) {
	if correlationID == "" {
		return nil, errors.Join(ErrValidation, fmt.Errorf("correlation id must not be empty"))
	}
	return json.Marshal(bulkRequestEnvelope{
		CorrelationID: correlationID,
		Complete:      true,
		Partition:     partition,
	})
}

// decodeEndRun reports whether the record value is an end-run marker. Cheap
// enough to run on every record before full request decoding.
func decodeEndRun(value []byte) (*endRun, bool) {
	var env bulkRequestEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, false
	}
	if !env.Complete {
		return nil, false
	}
	return &endRun{
		correlationID: env.CorrelationID,
		partition:     env.Partition,
		raw:           value,
	}, true
}

// msearchBody renders the queries as the newline-delimited body of a bulk
// search call. Each query gets an empty header line since the target is
// carried in the request path, and each body line is compacted so embedded
// newlines from pretty-printed producers cannot break the framing.
func (r *BulkRequest) msearchBody() ([]byte, error) {
	var buf bytes.Buffer
	for _, q := range r.Queries {
		buf.WriteString("{}\n")
		if err := json.Compact(&buf, q); err != nil {
			return nil, errors.Join(ErrMalformedEnvelope, err)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

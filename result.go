// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BulkResult is the terminal answer for one BulkRequest. Exactly one result is
// published per decoded request, whatever the outcome.
type BulkResult struct {
	// CorrelationID echoes the request id and keys the published record.
	CorrelationID string

	// Target echoes the request target. Result routes match against it.
	Target string

	// Meta echoes the request metadata unchanged.
	Meta map[string]json.RawMessage

	// Outcome is the terminal disposition.
	Outcome Outcome

	// StatusCode is the last HTTP status observed from the search cluster,
	// zero when no response was ever received.
	StatusCode int

	// Response is the raw search response body. Set only for Completed.
	Response json.RawMessage

	// Err describes the failure for non-Completed outcomes.
	Err error

	// Attempts is the number of attempts made, at least one.
	Attempts int

	// Elapsed is the wall time from first attempt to terminal outcome.
	Elapsed time.Duration
}

// bulkResultEnvelope is the JSON wire form of result topic records.
type bulkResultEnvelope struct {
	CorrelationID string                     `json:"correlation_id"`
	Status        string                     `json:"status"`
	StatusCode    int                        `json:"status_code,omitempty"`
	Response      json.RawMessage            `json:"response,omitempty"`
	Error         string                     `json:"error,omitempty"`
	Attempts      int                        `json:"attempts"`
	TookMs        int64                      `json:"took_ms"`
	Meta          map[string]json.RawMessage `json:"meta,omitempty"`
}

// EncodeBulkResult serializes a result into the wire form published to result
// topics.
func EncodeBulkResult(res *BulkResult) ([]byte, error) {
	if res == nil {
		return nil, errors.Join(ErrValidation, fmt.Errorf("result must not be nil"))
	}

	env := bulkResultEnvelope{
		CorrelationID: res.CorrelationID,
		Status:        res.Outcome.wireStatus(),
		StatusCode:    res.StatusCode,
		Response:      res.Response,
		Attempts:      res.Attempts,
		TookMs:        res.Elapsed.Milliseconds(),
		Meta:          res.Meta,
	}
	if res.Err != nil {
		env.Error = res.Err.Error()
	}

	return json.Marshal(env)
}

// DecodeBulkResult parses a result topic record value. Downstream consumers
// and tests use this to read what the relay published.
func DecodeBulkResult(value []byte) (*BulkResult, error) {
	var env bulkResultEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Join(ErrMalformedEnvelope, err)
	}

	outcome, ok := outcomeFromWire(env.Status)
	if !ok {
		return nil, errors.Join(ErrMalformedEnvelope, fmt.Errorf("unknown status '%s'", env.Status))
	}

	res := &BulkResult{
		CorrelationID: env.CorrelationID,
		Meta:          env.Meta,
		Outcome:       outcome,
		StatusCode:    env.StatusCode,
		Response:      env.Response,
		Attempts:      env.Attempts,
		Elapsed:       time.Duration(env.TookMs) * time.Millisecond,
	}
	if env.Error != "" {
		res.Err = errors.New(env.Error)
	}

	return res, nil
}

// outcomeFromWire maps a wire status label back to its Outcome.
func outcomeFromWire(status string) (Outcome, bool) {
	switch status {
	case "success":
		return Completed, true
	case "retries_exhausted":
		return RetriesExhausted, true
	case "rejected":
		return Rejected, true
	case "invalid":
		return Invalid, true
	default:
		return 0, false
	}
}

// metaString extracts a metadata field as a string. JSON strings are
// unquoted; any other value is returned as its raw JSON text.
func metaString(meta map[string]json.RawMessage, field string) (string, bool) {
	raw, ok := meta[field]
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

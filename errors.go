// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import "errors"

var (
	// ErrMalformedEnvelope indicates the request value was not a valid JSON envelope.
	ErrMalformedEnvelope = &metricError{
		metric:  "malformed_envelope",
		message: "malformed request envelope",
	}

	// ErrMissingCorrelationID indicates the request envelope carried no correlation id.
	ErrMissingCorrelationID = &metricError{
		metric:  "missing_correlation_id",
		message: "missing correlation id",
	}

	// ErrEmptyQueries indicates the request envelope carried no queries.
	ErrEmptyQueries = &metricError{
		metric:  "empty_queries",
		message: "empty queries",
	}

	// ErrEmptyTarget indicates the request envelope carried no search target.
	ErrEmptyTarget = &metricError{
		metric:  "empty_target",
		message: "empty target",
	}

	// ErrSearchUnavailable indicates the search cluster could not be reached or
	// answered with a transient failure status.
	ErrSearchUnavailable = &metricError{
		metric:  "search_unavailable",
		message: "search cluster unavailable",
	}

	// ErrSearchRejected indicates the search cluster rejected the request outright.
	ErrSearchRejected = &metricError{
		metric:  "search_rejected",
		message: "search request rejected",
	}

	// ErrNoRouteMatch indicates no result route matched the request target.
	ErrNoRouteMatch = &metricError{
		metric:  "no_route_match",
		message: "no result route matched",
	}

	// ErrBroker indicates the Kafka broker rejected a produce or commit.
	ErrBroker = &metricError{
		metric:  "broker_error",
		message: "broker error",
	}

	// ErrValidation indicates configuration validation failed.
	ErrValidation = &metricError{
		metric:  "validation_error",
		message: "validation error",
	}

	// ErrAlreadyStarted indicates the relay has already been started.
	ErrAlreadyStarted = &metricError{
		metric:  "already_started",
		message: "relay already started",
	}
)

// metricError is an internal error type that wraps errors with a type classification
// for metrics and observability. The errorType field provides a string label for grouping
// errors in metrics systems.
type metricError struct {
	metric  string // Type classification for metrics (e.g., "malformed_envelope", "validation_error")
	message string // Human-readable message
}

// Error implements the error interface.
func (e *metricError) Error() string {
	return e.message
}

func (e *metricError) Metric() string {
	return e.metric
}

func (e *metricError) Is(target error) bool {
	if t, ok := target.(*metricError); ok {
		return e.message == t.message
	}
	return false
}

// errorType extracts the error type string for metrics classification.
// Walks the error chain to find metricError types.
func errorType(err error) string {
	if err == nil {
		return ""
	}

	// Walk the error chain to find a metricError
	var me *metricError
	if errors.As(err, &me) {
		return me.Metric()
	}

	return "unknown"
}

// DecodeError carries the correlation id salvaged from a request envelope that
// failed validation, so the failure can still be answered on the result topic.
type DecodeError struct {
	// CorrelationID is the id recovered from the broken envelope, if any.
	CorrelationID string

	err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return e.err.Error()
}

// Unwrap exposes the underlying validation error.
func (e *DecodeError) Unwrap() error {
	return e.err
}

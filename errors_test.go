// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors tests error types and sentinel errors.
func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("sentinel errors", func(t *testing.T) {
		t.Parallel()
		// All sentinel errors should be *metricError
		sentinels := []error{
			ErrMalformedEnvelope,
			ErrMissingCorrelationID,
			ErrEmptyQueries,
			ErrEmptyTarget,
			ErrSearchUnavailable,
			ErrSearchRejected,
			ErrNoRouteMatch,
			ErrBroker,
			ErrValidation,
			ErrAlreadyStarted,
		}

		for _, sentinel := range sentinels {
			me, ok := sentinel.(*metricError) // nolint:errorlint
			assert.True(t, ok, "sentinel should be *metricError")
			assert.NotEmpty(t, me.message, "sentinel should have message")
			assert.NotEmpty(t, me.metric, "sentinel should have metric type")
			assert.Equal(t, me.message, me.Error(), "Error() should return message")
			assert.Equal(t, me.metric, me.Metric(), "Metric() should return metric type")
		}
	})

	t.Run("error wrapping with errors.Is", func(t *testing.T) {
		t.Parallel()

		// Wrapped error should match sentinel
		wrapped := errors.Join(ErrSearchUnavailable, fmt.Errorf("dial tcp: connection refused"))
		assert.True(t, errors.Is(wrapped, ErrSearchUnavailable))
		assert.False(t, errors.Is(wrapped, ErrBroker))

		// Multiple wrapping
		doubleWrapped := fmt.Errorf("outer: %w", wrapped)
		assert.True(t, errors.Is(doubleWrapped, ErrSearchUnavailable))
	})

	t.Run("error types for metrics", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name     string
			err      error
			expected string
		}{
			{"malformed envelope", ErrMalformedEnvelope, "malformed_envelope"},
			{"missing correlation id", ErrMissingCorrelationID, "missing_correlation_id"},
			{"empty queries", ErrEmptyQueries, "empty_queries"},
			{"empty target", ErrEmptyTarget, "empty_target"},
			{"search unavailable", ErrSearchUnavailable, "search_unavailable"},
			{"search rejected", ErrSearchRejected, "search_rejected"},
			{"no route match", ErrNoRouteMatch, "no_route_match"},
			{"broker error", ErrBroker, "broker_error"},
			{"validation", ErrValidation, "validation_error"},
			{"already started", ErrAlreadyStarted, "already_started"},
			{"nil error", nil, ""},
			{"unknown error", fmt.Errorf("random"), "unknown"},
			{"wrapped transient", errors.Join(ErrSearchUnavailable, fmt.Errorf("test")), "search_unavailable"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := errorType(tt.err)
				assert.Equal(t, tt.expected, result)
			})
		}
	})

	t.Run("Is() method semantics", func(t *testing.T) {
		t.Parallel()

		// Sentinel should match itself
		assert.True(t, errors.Is(ErrSearchUnavailable, ErrSearchUnavailable))

		// Different sentinels should not match
		assert.False(t, errors.Is(ErrSearchUnavailable, ErrBroker))

		// Same metric label but a different message is a different error
		newErr := &metricError{metric: "search_unavailable", message: "test"}
		assert.False(t, errors.Is(newErr, ErrSearchUnavailable))

		// nil should not match
		assert.False(t, errors.Is(nil, ErrSearchUnavailable))
		assert.False(t, errors.Is(ErrSearchUnavailable, nil))
	})
}

// TestDecodeError tests salvage behavior of DecodeError.
func TestDecodeError(t *testing.T) {
	t.Parallel()

	inner := errors.Join(ErrEmptyQueries, fmt.Errorf("envelope had no queries"))
	de := &DecodeError{CorrelationID: "req-42", err: inner}

	assert.Equal(t, inner.Error(), de.Error())
	assert.True(t, errors.Is(de, ErrEmptyQueries), "DecodeError should unwrap to the validation sentinel")
	assert.Equal(t, "empty_queries", errorType(de))

	var got *DecodeError
	assert.True(t, errors.As(de, &got))
	assert.Equal(t, "req-42", got.CorrelationID)
}

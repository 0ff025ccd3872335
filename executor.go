// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RetryConfig controls how the executor retries transient search failures.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Must be >= 1. Default: 5.
	MaxAttempts int

	// Backoff is the delay before the first retry. Subsequent retries
	// back off exponentially. Default: 1s.
	Backoff time.Duration

	// MaxBackoff caps the delay between retries. Default: 30s.
	MaxBackoff time.Duration
}

// executor runs bulk searches and classifies their outcomes.
// One executor instance is shared by all workers; it holds no per-request
// state and is safe for concurrent use.
type executor struct {
	search  searchClient
	retry   RetryConfig
	timeout time.Duration
	logger  kgo.Logger
}

// execute runs the bulk search for a single request, retrying transient
// failures, and returns the result. It never returns nil: every decoded
// request yields exactly one result, whatever happened to it.
func (e *executor) execute(ctx context.Context, req *BulkRequest) *BulkResult {
	start := time.Now()
	res := &BulkResult{
		CorrelationID: req.CorrelationID,
		Target:        req.Target,
		Meta:          req.Meta,
	}

	body, err := req.msearchBody()
	if err != nil {
		res.Outcome = Invalid
		res.Err = errors.Join(ErrMalformedEnvelope, err)
		res.Attempts = 1
		res.Elapsed = time.Since(start)
		return res
	}

	attempts := 0
	err = retry.Do(
		func() error {
			attempts++

			actx := ctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, e.timeout)
				defer cancel()
			}

			status, respBody, err := e.search.msearch(actx, req.Target, body)
			if err != nil {
				return errors.Join(
					ErrSearchUnavailable,
					fmt.Errorf("bulk search request failed"),
					err,
				)
			}

			// Keep the last response received; attempts that never reach
			// the cluster leave the previous one in place.
			res.StatusCode = status
			res.Response = respBody

			switch {
			case status >= 200 && status < 300:
				return nil
			case transientStatus(status):
				return errors.Join(
					ErrSearchUnavailable,
					fmt.Errorf("search cluster returned status %d", status),
				)
			default:
				return errors.Join(
					ErrSearchRejected,
					fmt.Errorf("search cluster returned status %d", status),
				)
			}
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.retry.MaxAttempts)),
		retry.Delay(e.retry.Backoff),
		retry.MaxDelay(e.retry.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrSearchUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Log(kgo.LogLevelWarn, "bulk search attempt failed, retrying",
				"correlation_id", req.CorrelationID,
				"attempt", n+1,
				"error", err.Error())
		}),
	)

	res.Attempts = attempts
	res.Elapsed = time.Since(start)

	switch {
	case err == nil:
		res.Outcome = Completed
	case errors.Is(err, ErrSearchRejected):
		res.Outcome = Rejected
		res.Err = err
	default:
		res.Outcome = RetriesExhausted
		res.Err = err
	}

	// Failure envelopes carry the error, not the last response body.
	if res.Outcome != Completed {
		res.Response = nil
	}

	return res
}

// transientStatus reports whether an HTTP status from the search cluster is
// worth retrying. Everything else in the 4xx range is a permanent rejection.
func transientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// workItem carries one consumed record through the pipeline, pairing the
// decoded request (or its decode failure) with the source record so the
// publisher can release the offset once the result is broker-acked.
type workItem struct {
	// req is nil when decoding failed; res is then already populated.
	req *BulkRequest

	// res is set by the executor, or directly at intake for decode failures.
	res *BulkResult

	// rec is the consumed source record.
	rec *kgo.Record

	// enqueued is when intake accepted the record; RelayEvent durations
	// measure from here.
	enqueued time.Time
}

// runIntake is the single consumer loop: poll, decode, hand off to the
// worker queue. A full queue blocks the handoff, which pauses polling, so
// backpressure reaches the broker instead of growing a buffer.
func (r *Relay) runIntake() {
	defer close(r.intakeDone)

	failures := 0
	for {
		if r.intakeCtx.Err() != nil {
			return
		}

		fetches := r.client.PollFetches(r.intakeCtx)
		if fetches.IsClientClosed() || r.intakeCtx.Err() != nil {
			return
		}

		fetchErrs := 0
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			fetchErrs++
			r.logger.Log(kgo.LogLevelError, "fetch error",
				"topic", topic, "partition", partition, "error", err.Error())
		})

		records := 0
		fetches.EachRecord(func(rec *kgo.Record) {
			records++
			r.handleRecord(rec)
		})

		if records > 0 || fetchErrs == 0 {
			failures = 0
			continue
		}

		failures++
		if failures >= r.BrokerFailureLimit {
			r.fail(errors.Join(
				ErrBroker,
				fmt.Errorf("giving up after %d consecutive fetch failures", failures),
			))
			return
		}

		select {
		case <-time.After(r.BrokerBackoff):
		case <-r.intakeCtx.Done():
			return
		}
	}
}

// handleRecord decodes one consumed record and routes it into the pipeline.
// Undecodable records with a recoverable correlation id short-circuit to the
// publisher as Invalid results; records with no id at all are the only input
// that produces no output.
func (r *Relay) handleRecord(rec *kgo.Record) {
	r.tracker.observe(rec)

	if end, ok := decodeEndRun(rec.Value); ok {
		r.handleEndRun(rec, end)
		return
	}

	now := time.Now()
	req, err := DecodeBulkRequest(rec.Value)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) && de.CorrelationID != "" {
			item := &workItem{
				rec:      rec,
				enqueued: now,
				res: &BulkResult{
					CorrelationID: de.CorrelationID,
					Outcome:       Invalid,
					Err:           err,
					Attempts:      1,
				},
			}
			r.inFlight.Add(1)
			select {
			case r.resultCh <- item:
			case <-r.intakeCtx.Done():
				r.inFlight.Add(-1)
			}
			return
		}

		// No correlation id to answer under; count the drop and move on.
		r.logger.Log(kgo.LogLevelWarn, "dropping undecodable request record",
			"topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset,
			"error", err.Error())
		event := RelayEvent{Outcome: Invalid}
		r.dispatchEvent(&event, now, err)
		r.completeRecord(r.intakeCtx, rec)
		return
	}

	item := &workItem{req: req, rec: rec, enqueued: now}
	r.inFlight.Add(1)
	select {
	case r.workCh <- item:
	case <-r.intakeCtx.Done():
		r.inFlight.Add(-1)
	}
}

// handleEndRun reflects an end-run sigil to the complete topic after every
// request consumed before it has produced its result. Runs on the intake
// goroutine, so no later record is consumed while it waits.
func (r *Relay) handleEndRun(rec *kgo.Record, end *endRun) {
	r.logger.Log(kgo.LogLevelInfo, "end-run sigil received, waiting for in-flight requests",
		"correlation_id", end.correlationID, "partition", end.partition)

	if err := r.waitPending(r.intakeCtx); err != nil {
		// Shutdown won the wait; the uncommitted sigil is redelivered on
		// restart.
		return
	}

	// Make every earlier result visible before announcing completion.
	if err := r.client.Flush(r.intakeCtx); err != nil {
		r.logger.Log(kgo.LogLevelWarn, "flush before end-run reflection failed",
			"correlation_id", end.correlationID, "error", err.Error())
		return
	}

	out := &kgo.Record{
		Topic: r.CompleteTopic,
		Key:   []byte(end.correlationID),
		Value: end.raw,
	}
	if err := r.produceWithRetry(r.intakeCtx, out); err != nil {
		if r.intakeCtx.Err() != nil {
			return
		}
		r.logger.Log(kgo.LogLevelError, "failed to reflect end-run sigil",
			"correlation_id", end.correlationID, "error", err.Error())
		r.fail(err)
		return
	}

	r.logger.Log(kgo.LogLevelInfo, "end-run sigil reflected",
		"correlation_id", end.correlationID, "topic", r.CompleteTopic)
	r.completeRecord(r.intakeCtx, rec)
}

// runWorker drains the work queue through the executor. One of NumWorkers
// copies runs in the pool; together they are the only callers of the search
// cluster, which is what bounds in-flight requests.
func (r *Relay) runWorker() {
	defer r.workerWg.Done()

	for item := range r.workCh {
		item.res = r.exec.execute(r.pipeCtx, item.req)
		select {
		case r.resultCh <- item:
		case <-r.pipeCtx.Done():
			r.inFlight.Add(-1)
			return
		}
	}
}

// runPublisher is the single result writer. Publishing before completing the
// record is what keeps delivery at-least-once: an offset can only be
// committed once its result is on the broker.
func (r *Relay) runPublisher() {
	defer close(r.pipelineDone)

	for item := range r.resultCh {
		r.publishResult(item)
		r.inFlight.Add(-1)
	}
}

// publishResult routes, encodes, and synchronously produces one result, then
// releases the source record for commit.
func (r *Relay) publishResult(item *workItem) {
	res := item.res
	event := RelayEvent{
		CorrelationID: res.CorrelationID,
		Target:        res.Target,
		Outcome:       res.Outcome,
		StatusCode:    res.StatusCode,
		Attempts:      res.Attempts,
	}

	dynCfg := r.dynamicConfig.Load()

	topic, strategy, err := dynCfg.match(res)
	if err != nil {
		r.logger.Log(kgo.LogLevelError, "no route for result, dropping",
			"correlation_id", res.CorrelationID, "target", res.Target,
			"error", err.Error())
		r.dispatchEvent(&event, item.enqueued, err)
		r.completeRecord(r.pipeCtx, item.rec)
		return
	}

	value, err := EncodeBulkResult(res)
	if err != nil {
		r.logger.Log(kgo.LogLevelError, "failed to encode result, dropping",
			"correlation_id", res.CorrelationID, "error", err.Error())
		r.dispatchEvent(&event, item.enqueued, err)
		r.completeRecord(r.pipeCtx, item.rec)
		return
	}

	event.Topic = topic
	event.TopicShardStrategy = string(strategy)

	out := &kgo.Record{
		Topic:   topic,
		Key:     []byte(res.CorrelationID),
		Value:   value,
		Headers: dynCfg.headers(res),
	}

	if err := r.produceWithRetry(r.pipeCtx, out); err != nil {
		if r.pipeCtx.Err() != nil {
			// Abandoned by shutdown; the offset stays uncommitted.
			return
		}
		r.logger.Log(kgo.LogLevelError, "result publish failed",
			"correlation_id", res.CorrelationID, "topic", topic,
			"error", err.Error())
		r.dispatchEvent(&event, item.enqueued, err)
		r.fail(err)
		return
	}

	r.dispatchEvent(&event, item.enqueued, res.Err)
	r.completeRecord(r.pipeCtx, item.rec)
}

// completeRecord marks a record's processing finished and commits the highest
// contiguous completed offset. Serialized so concurrent completions cannot
// commit out of order.
func (r *Relay) completeRecord(ctx context.Context, rec *kgo.Record) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	candidate, ok := r.tracker.complete(rec)
	if !ok {
		return
	}

	if err := r.client.CommitRecords(ctx, candidate); err != nil {
		r.logger.Log(kgo.LogLevelWarn, "offset commit failed, records will be redelivered on restart",
			"topic", candidate.Topic, "partition", candidate.Partition,
			"offset", candidate.Offset, "error", err.Error())
	}
}

// produceWithRetry synchronously produces one record, retrying transient
// broker failures on a fixed delay up to BrokerFailureLimit attempts.
func (r *Relay) produceWithRetry(ctx context.Context, rec *kgo.Record) error {
	err := retry.Do(
		func() error {
			return r.client.ProduceSync(ctx, rec).FirstErr()
		},
		retry.Context(ctx),
		retry.Attempts(uint(r.BrokerFailureLimit)),
		retry.Delay(r.BrokerBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			var ke *kerr.Error
			if errors.As(err, &ke) {
				return ke.Retriable
			}
			// Anything that is not a broker response error is transport
			// trouble and worth another try.
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Log(kgo.LogLevelWarn, "produce failed, retrying",
				"topic", rec.Topic, "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		return errors.Join(
			ErrBroker,
			fmt.Errorf("publishing to topic '%s'", rec.Topic),
			err,
		)
	}

	return nil
}

// waitPending blocks until every enqueued record has finished processing or
// the context is canceled.
func (r *Relay) waitPending(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for r.inFlight.Load() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

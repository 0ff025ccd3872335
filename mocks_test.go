// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/twmb/franz-go/pkg/kgo"
)

// mockSearchClient is a mock implementation of searchClient for testing.
type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) msearch(ctx context.Context, target string, body []byte) (int, []byte, error) {
	args := m.Called(ctx, target, body)
	resp, _ := args.Get(1).([]byte)
	return args.Int(0), resp, args.Error(2)
}

// searchFunc adapts a function to the searchClient interface so pipeline
// tests can script per-call behavior.
type searchFunc func(ctx context.Context, target string, body []byte) (int, []byte, error)

func (f searchFunc) msearch(ctx context.Context, target string, body []byte) (int, []byte, error) {
	return f(ctx, target, body)
}

// okSearch answers every bulk search with 200 and a fixed body.
func okSearch() searchFunc {
	return func(ctx context.Context, target string, body []byte) (int, []byte, error) {
		return 200, []byte(`{"responses":[]}`), nil
	}
}

// fakeKafkaClient is a hand-rolled kafkaClient for pipeline tests. Fetches
// arrive through a channel so tests control exactly when records are
// delivered, and every produce, commit, and flush is captured for
// assertions.
type fakeKafkaClient struct {
	fetchCh chan kgo.Fetches

	// produceHook, when set, runs for each record handed to ProduceSync; a
	// non-nil return fails that record. Set before Start.
	produceHook func(*kgo.Record) error

	// flushErr is returned by Flush. Set before Start.
	flushErr error

	mu             sync.Mutex
	produced       []*kgo.Record
	commits        []*kgo.Record
	flushDeadlines []time.Time
	closed         bool
}

func newFakeKafkaClient() *fakeKafkaClient {
	return &fakeKafkaClient{fetchCh: make(chan kgo.Fetches, 16)}
}

// feed delivers one batch of fetches to a future PollFetches call.
func (c *fakeKafkaClient) feed(fs kgo.Fetches) {
	c.fetchCh <- fs
}

func (c *fakeKafkaClient) PollFetches(ctx context.Context) kgo.Fetches {
	select {
	case fs := <-c.fetchCh:
		return fs
	case <-ctx.Done():
		return kgo.Fetches{}
	}
}

func (c *fakeKafkaClient) CommitRecords(ctx context.Context, rs ...*kgo.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, rs...)
	return nil
}

func (c *fakeKafkaClient) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, rec := range rs {
		var err error
		if c.produceHook != nil {
			err = c.produceHook(rec)
		}
		if err == nil {
			c.mu.Lock()
			c.produced = append(c.produced, rec)
			c.mu.Unlock()
		}
		results = append(results, kgo.ProduceResult{Record: rec, Err: err})
	}
	return results
}

func (c *fakeKafkaClient) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dl time.Time
	if d, ok := ctx.Deadline(); ok {
		dl = d
	}
	c.flushDeadlines = append(c.flushDeadlines, dl)
	return c.flushErr
}

func (c *fakeKafkaClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// producedTo returns the records produced to one topic, in produce order.
func (c *fakeKafkaClient) producedTo(topic string) []*kgo.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*kgo.Record
	for _, rec := range c.produced {
		if rec.Topic == topic {
			out = append(out, rec)
		}
	}
	return out
}

// producedCount returns the total number of records produced so far.
func (c *fakeKafkaClient) producedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.produced)
}

// committedOffsets returns the commit history for one partition, in commit
// order.
func (c *fakeKafkaClient) committedOffsets(topic string, partition int32) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int64
	for _, rec := range c.commits {
		if rec.Topic == topic && rec.Partition == partition {
			out = append(out, rec.Offset)
		}
	}
	return out
}

// flushCount returns how many times Flush has been called.
func (c *fakeKafkaClient) flushCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.flushDeadlines)
}

// lastFlushDeadline returns the deadline of the most recent Flush context,
// or a zero time when the context had none.
func (c *fakeKafkaClient) lastFlushDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.flushDeadlines) == 0 {
		return time.Time{}, false
	}
	dl := c.flushDeadlines[len(c.flushDeadlines)-1]
	return dl, !dl.IsZero()
}

// isClosed reports whether Close has been called.
func (c *fakeKafkaClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fetchesOf builds a single-partition fetch batch from the given records.
func fetchesOf(topic string, partition int32, recs ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic: topic,
			Partitions: []kgo.FetchPartition{{
				Partition: partition,
				Records:   recs,
			}},
		}},
	}}
}

// errorFetches builds a fetch batch carrying a single partition error.
func errorFetches(topic string, partition int32, err error) kgo.Fetches {
	return kgo.Fetches{{
		Topics: []kgo.FetchTopic{{
			Topic: topic,
			Partitions: []kgo.FetchPartition{{
				Partition: partition,
				Err:       err,
			}},
		}},
	}}
}

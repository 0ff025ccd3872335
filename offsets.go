// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// topicPartition identifies a single partition of a topic.
type topicPartition struct {
	topic     string
	partition int32
}

// trackedRecord is a consumed record awaiting completion.
type trackedRecord struct {
	rec  *kgo.Record
	done bool
}

// partitionWindow holds the in-order window of records consumed from one
// partition. Records enter at the tail in consumption order and leave from
// the head once the contiguous prefix is complete.
type partitionWindow struct {
	records []trackedRecord
}

// offsetTracker decides when consumed offsets are safe to commit.
//
// Results finish out of order because requests take different amounts of time,
// but a partition's offset may only advance past a record once that record and
// every record before it have produced their output. The tracker records every
// consumed record and, as completions arrive, releases the highest record of
// the contiguous completed prefix as the commit candidate.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[topicPartition]*partitionWindow
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{
		parts: make(map[topicPartition]*partitionWindow),
	}
}

// observe registers a consumed record. Must be called in consumption order
// per partition; the intake loop is the only caller.
func (t *offsetTracker) observe(rec *kgo.Record) {
	tp := topicPartition{topic: rec.Topic, partition: rec.Partition}

	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.parts[tp]
	if w == nil {
		w = &partitionWindow{}
		t.parts[tp] = w
	}
	w.records = append(w.records, trackedRecord{rec: rec})
}

// complete marks a record's processing as finished and returns the record
// whose offset is now safe to commit, if the completion extended the
// contiguous prefix. Completions for unknown records are ignored.
func (t *offsetTracker) complete(rec *kgo.Record) (*kgo.Record, bool) {
	tp := topicPartition{topic: rec.Topic, partition: rec.Partition}

	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.parts[tp]
	if w == nil {
		return nil, false
	}

	for i := range w.records {
		if w.records[i].rec.Offset == rec.Offset {
			w.records[i].done = true
			break
		}
	}

	// Pop the completed prefix; the last popped record carries the
	// commit offset.
	var candidate *kgo.Record
	for len(w.records) > 0 && w.records[0].done {
		candidate = w.records[0].rec
		w.records = w.records[1:]
	}

	if len(w.records) == 0 {
		delete(t.parts, tp)
	}

	return candidate, candidate != nil
}

// pending returns the number of records consumed but not yet released for
// commit.
func (t *offsetTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, w := range t.parts {
		n += len(w.records)
	}
	return n
}

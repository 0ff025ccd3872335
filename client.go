// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaClient is an interface for the franz-go Kafka client methods we need.
// One client handles both sides of the relay: consuming requests as part of
// the consumer group and producing results. This allows us to mock the client
// for testing while using the real kgo.Client in production.
type kafkaClient interface {
	// PollFetches blocks until records are available, the client is closed,
	// or the context is canceled.
	PollFetches(ctx context.Context) kgo.Fetches

	// CommitRecords commits the offsets of the given records for the group.
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error

	// ProduceSync produces records synchronously and waits for broker acknowledgment.
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults

	// Flush flushes all buffered records and waits for them to be sent.
	Flush(ctx context.Context) error

	// Close closes the Kafka client and releases resources.
	Close()
}

// Verify that *kgo.Client implements kafkaClient interface at compile time.
var _ kafkaClient = (*kgo.Client)(nil)

// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// TopicRoute defines a single routing rule that maps request target patterns
// to the Kafka topics results are published on.
type TopicRoute struct {
	// Pattern is the glob pattern to match request targets (case-sensitive by default).
	// Supports: exact match, "*" (catch-all), "prefix-*", "foo\*" (escaped).
	Pattern Pattern

	// CaseInsensitive enables case-insensitive pattern matching.
	CaseInsensitive bool

	// Topic is the single target topic (mutually exclusive with Topics).
	Topic string

	// Topics is the list of target topics for sharding (mutually exclusive with Topic).
	Topics []string

	// TopicShardStrategy specifies the sharding strategy.
	// Valid values: TopicShardNone (""), TopicShardRoundRobin, TopicShardCorrelationID, or "meta:<field>".
	// Empty string for single-topic routes (Topic field used).
	TopicShardStrategy TopicShardStrategy

	// counter is for internal use only - do not set manually.
	// Tracks results flowing through this route for round-robin distribution.
	// Automatically initialized for all multi-topic routes during validation.
	counter *atomic.Uint64

	// matcher is for internal use only - do not set manually.
	// Compiled pattern matcher initialized during configuration validation.
	matcher *patternMatcher
}

func (route *TopicRoute) compile() error {
	if err := route.validate(); err != nil {
		return err
	}

	m, _ := route.Pattern.compile(route.CaseInsensitive)

	route.matcher = m
	return nil
}

// validate validates a single TopicRoute.
func (route *TopicRoute) validate() error {
	if err := route.Pattern.validate(); err != nil {
		return err
	}

	// Handle the single topic case first.
	if route.Topic != "" {
		if len(route.Topics) != 0 {
			return errors.Join(
				ErrValidation,
				fmt.Errorf("topic and topics are mutually exclusive"),
			)
		}

		if route.TopicShardStrategy != TopicShardNone {
			return errors.Join(
				ErrValidation,
				fmt.Errorf("topic shard strategy must be empty/none for single-topic routes"),
			)
		}
		return nil
	}

	// Deal with no topic specified.
	if len(route.Topics) == 0 {
		return errors.Join(
			ErrValidation,
			fmt.Errorf("either Topic or Topics must be set"),
		)
	}

	// Multi-topic route validation.
	if route.TopicShardStrategy == TopicShardNone {
		return errors.Join(
			ErrValidation,
			fmt.Errorf("topic shard strategy is required for multi-topic routes"),
		)
	}

	if err := validateTopicShardStrategy(route.TopicShardStrategy); err != nil {
		return errors.Join(ErrValidation, err)
	}

	return nil
}

// selectTopic selects the appropriate Kafka topic for a result based on the routing rule.
// Supports single-topic routes and multi-topic sharding strategies.
func (r *TopicRoute) selectTopic(res *BulkResult) string {
	// Single topic route (TopicShardNone)
	if r.Topic != "" {
		return r.Topic
	}

	// Multi-topic sharding - delegate to strategy-specific methods
	switch r.TopicShardStrategy {
	case TopicShardRoundRobin:
		return r.selectRoundRobin()

	case TopicShardCorrelationID:
		return r.selectByCorrelationID(res)

	default:
		// Check if it's a meta strategy
		if isMeta, fieldName := r.TopicShardStrategy.IsMetaStrategy(); isMeta {
			return r.selectByMeta(res, fieldName)
		}
	}

	return ""
}

// selectRoundRobin selects a topic using round-robin distribution.
// Counter is guaranteed to be initialized for all multi-topic routes.
// Returns empty string if no topics are configured.
func (r *TopicRoute) selectRoundRobin() string {
	if len(r.Topics) == 0 {
		return ""
	}

	// Atomic increment and get index
	// Counter is always initialized for multi-topic routes (no nil check needed)
	count := r.counter.Add(1) - 1
	//nolint:gosec // G115: Modulo ensures result fits in int range
	idx := int(count % uint64(len(r.Topics)))
	return r.Topics[idx]
}

// selectByCorrelationID selects a topic by hashing the result's correlation id,
// so every retry or replay of the same request lands on the same topic.
// Falls back to round-robin if the id is missing.
// Returns empty string if no topics are configured.
func (r *TopicRoute) selectByCorrelationID(res *BulkResult) string {
	if len(r.Topics) == 0 {
		return ""
	}

	id := res.CorrelationID
	if id == "" {
		// Fall back to round-robin if the id is missing
		return r.selectRoundRobin()
	}

	idx := hashString(id, len(r.Topics))
	return r.Topics[idx]
}

// selectByMeta selects a topic by hashing a metadata field value.
// Falls back to round-robin if the field is missing or empty.
// Returns empty string if no topics are configured.
func (r *TopicRoute) selectByMeta(res *BulkResult, fieldName string) string {
	if len(r.Topics) == 0 {
		return ""
	}

	fieldValue, _ := metaString(res.Meta, fieldName)
	if fieldValue == "" {
		// Fall back to round-robin if field is missing
		return r.selectRoundRobin()
	}

	idx := hashString(fieldValue, len(r.Topics))
	return r.Topics[idx]
}

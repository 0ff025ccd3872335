// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"errors"
	"fmt"
	"strings"
)

// TopicShardStrategy specifies how results are distributed across multiple Kafka topics.
type TopicShardStrategy string

const (
	// TopicShardNone indicates single-topic routing (no sharding).
	TopicShardNone TopicShardStrategy = ""

	// TopicShardRoundRobin distributes results across topics in round-robin fashion.
	TopicShardRoundRobin TopicShardStrategy = "roundrobin"

	// TopicShardCorrelationID shards results by correlation id, keeping every
	// result for the same id on the same topic.
	TopicShardCorrelationID TopicShardStrategy = "correlationid"

	// TopicShardMeta uses format "meta:<field>" - parsed at runtime.
	// Example: "meta:session_id" shards by the session_id metadata field.
	// Note: This is a prefix pattern, not a constant. Use IsMetaStrategy() to detect.
)

var topicShardStrategyTypes map[TopicShardStrategy]struct{}
var topicShardStrategyList []string

func init() {
	list := []TopicShardStrategy{
		TopicShardRoundRobin,
		TopicShardCorrelationID,
	}

	topicShardStrategyTypes = make(map[TopicShardStrategy]struct{})
	for _, s := range list {
		topicShardStrategyTypes[s] = struct{}{}
		topicShardStrategyList = append(topicShardStrategyList, string(s))
	}
}

// IsMetaStrategy checks if this strategy uses metadata-based sharding.
// Returns (true, fieldName) if the strategy is "meta:<field>", otherwise (false, "").
func (s TopicShardStrategy) IsMetaStrategy() (bool, string) {
	const prefix = "meta:"
	if len(s) > len(prefix) && string(s[:len(prefix)]) == prefix {
		return true, string(s[len(prefix):])
	}
	return false, ""
}

// validateTopicShardStrategy validates the TopicShardStrategy enum value.
// Valid values: TopicShardRoundRobin, TopicShardCorrelationID, or "meta:<fieldname>".
func validateTopicShardStrategy(strategy TopicShardStrategy) error {
	// Check standard strategies
	_, ok := topicShardStrategyTypes[strategy]
	if ok {
		return nil
	}

	// Check for meta:<fieldname>
	if isMeta, fieldName := strategy.IsMetaStrategy(); isMeta {
		// Field name must be non-empty and not just whitespace
		if strings.TrimSpace(fieldName) == "" {
			return errors.Join(ErrValidation,
				fmt.Errorf("meta sharding requires field name (e.g., 'meta:session_id')"))
		}
		return nil
	}

	// Invalid strategy
	list := strings.Join(topicShardStrategyList, "', '")
	list = "'" + list + "'"
	return errors.Join(ErrValidation,
		fmt.Errorf("topic shard strategy '%s' is invalid: must be %s, or 'meta:<field>'", strategy, list))
}

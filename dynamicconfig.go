// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DynamicConfig is the runtime-updatable configuration subset.
// Can be modified via UpdateConfig() without restart.
type DynamicConfig struct {
	// Routes defines the rules mapping request targets to result topics.
	// Evaluated in order; the first matching route wins. A catch-all route
	// (pattern "*") is required so every result has somewhere to go.
	// Required. Must not be empty.
	Routes []TopicRoute

	// Headers defines Kafka record headers attached to published results.
	// Optional. Empty map {} is valid.
	// Values are literals or result.* field references.
	// Multiple values per key are supported (e.g., multiple sources for same header).
	Headers map[string][]string
}

// match selects the result topic for a result by matching its target against
// the routes in order.
func (dc *DynamicConfig) match(res *BulkResult) (string, TopicShardStrategy, error) {
	for _, route := range dc.Routes {
		if !route.matcher.matches(res.Target) {
			continue
		}

		topic := route.selectTopic(res)
		if topic == "" {
			return "", route.TopicShardStrategy,
				errors.New("no topic selected for result")
		}

		// Success
		return topic, route.TopicShardStrategy, nil
	}

	return "", TopicShardNone, errors.Join(
		ErrNoRouteMatch,
		fmt.Errorf("no topic route matched for target '%s'", res.Target),
	)
}

// headers builds the Kafka record headers from the DynamicConfig and result.
// Headers can be literal values or result.* references to BulkResult fields.
// Multiple values per key are supported (e.g., multiple sources for same header).
// Returns nil-safe slice of kgo.RecordHeader.
func (dc *DynamicConfig) headers(res *BulkResult) []kgo.RecordHeader {
	// Estimate 2 values per key on average
	headers := make([]kgo.RecordHeader, 0, len(dc.Headers)*2)

	for key, values := range dc.Headers {
		// Process each value for this header key
		for _, value := range values {
			// Check if value is a result field reference (starts with "result.")
			if len(value) > 7 && value[:7] == "result." {
				fieldName := value[7:] // Remove "result." prefix

				// Extract field values (single-valued fields return slice with one element)
				fieldValues := extractResultField(res, fieldName)
				for _, v := range fieldValues {
					if v != "" {
						headers = append(headers, kgo.RecordHeader{
							Key:   key,
							Value: []byte(v),
						})
					}
				}
			} else {
				// Literal value
				headers = append(headers, kgo.RecordHeader{
					Key:   key,
					Value: []byte(value),
				})
			}
		}
	}

	return headers
}

// compileConfig pre-compiles all pattern matchers for a DynamicConfig.
// The matcher is stored directly in each TopicRoute for efficient access.
// This optimization ensures patterns are parsed once, not on every result.
// Returns an error if compilation fails.
func (dc *DynamicConfig) compile() error {
	for i := range dc.Routes {
		if err := dc.Routes[i].compile(); err != nil {
			return err
		}
	}
	return nil
}

// validate validates the DynamicConfig.
func (dc *DynamicConfig) validate() error {
	// Validate Routes
	if len(dc.Routes) == 0 {
		return errors.Join(ErrValidation, fmt.Errorf("routes must not be empty"))
	}

	// Validate each TopicRoute
	catchAll := false
	for i, route := range dc.Routes {
		if err := route.validate(); err != nil {
			return fmt.Errorf("topic route %d: %w", i, err)
		}
		if route.Pattern == "*" {
			catchAll = true
		}
	}

	// Every decoded request must produce a result, so routing has to be total.
	if !catchAll {
		return errors.Join(ErrValidation, fmt.Errorf("routes must include a catch-all '*' route"))
	}

	// Validate Headers
	for key, values := range dc.Headers {
		if key == "" {
			return errors.Join(ErrValidation, fmt.Errorf("header key must not be empty"))
		}
		if len(values) == 0 {
			return errors.Join(ErrValidation, fmt.Errorf("header %q must have at least one value", key))
		}
		// Validate each header value for result.* field references
		for _, value := range values {
			if !isValidResultFieldReference(value) {
				return errors.Join(ErrValidation, fmt.Errorf("header %q has invalid result field reference %q", key, value))
			}
		}
	}

	return nil
}

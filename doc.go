// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package msearchkafka relays Elasticsearch bulk search requests through
// Apache Kafka: it consumes batched query requests from a request topic, runs
// them against a search cluster through a bounded worker pool, and publishes
// one result per request back to Kafka for asynchronous consumers.
//
// # Overview
//
// Producers (typically offline feature-collection jobs) write batches of
// queries to a request topic and read the answers from a result topic,
// correlated by id. The relay in between owns the search cluster connection,
// bounds the number of concurrent searches, retries transient failures, and
// commits consumed offsets only after the matching result is broker-acked,
// so at-least-once delivery holds end to end. Duplicate results after a crash
// are possible and are deduplicated downstream by correlation id.
//
// # Quick Start
//
// Create a Relay by setting fields directly:
//
//	relay := &msearchkafka.Relay{
//	    Brokers: []string{"localhost:9092"},
//	    Search: msearchkafka.SearchConfig{
//	        Addresses: []string{"http://localhost:9200"},
//	    },
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := relay.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until the context is canceled or a fatal broker error occurs,
// then drains in-flight requests and stops. Start and Stop are also available
// separately for callers that manage their own lifecycle.
//
// # Message Contract
//
// Request topic records are JSON envelopes:
//
//	{"correlation_id": "run-7-q42", "target": "enwiki_content",
//	 "queries": [{...}, {...}], "meta": {"wiki": "enwiki"}}
//
// Each decoded request yields exactly one result record, keyed by the
// correlation id:
//
//	{"correlation_id": "run-7-q42", "status": "success", "status_code": 200,
//	 "response": {...}, "attempts": 1, "took_ms": 52, "meta": {"wiki": "enwiki"}}
//
// The status field is one of success, retries_exhausted, rejected, or
// invalid. Records that cannot be decoded but still carry a correlation id
// are answered with an invalid result; records with no recoverable id are the
// only input dropped without output.
//
// A producer finishes a collection run by writing one end-run record per
// request topic partition:
//
//	{"correlation_id": "run-7", "complete": true, "partition": 3}
//
// The relay republishes each end-run record to the complete topic once every
// request consumed before it has been answered, so downstream knows the run's
// results are all available.
//
// # Result Routing
//
// Results are routed to topics by matching the request target against
// configurable patterns:
//
//	Routes: []msearchkafka.TopicRoute{
//	    {Pattern: "enwiki_*", Topic: "msearch-results-enwiki"},
//	    {Pattern: "*", Topic: "msearch-results"}, // catch-all, required
//	}
//
// Multi-topic routes shard with round-robin, correlation-id hashing (keeps
// every result for an id on one topic), or a metadata field hash. Routes and
// header rules hot-reload through UpdateConfig without a restart.
//
// # Observability
//
// The relay reports the terminal disposition of every consumed record through
// event listeners, and logs through franz-go's kgo.Logger interface so the
// library stays framework-agnostic:
//
//	metrics := msearchkafka.NewMetrics(msearchkafka.MetricsPrefix)
//	relay.InitialRelayEventListeners = []func(*msearchkafka.RelayEvent){
//	    metrics.Listener(),
//	}
//	relay.Logger = msearchkafka.NewLogrusLogger(log)
//
// # Thread Safety
//
// The Relay type is safe for concurrent use by multiple goroutines. All
// methods (Start, Stop, Run, State, UpdateConfig) can be called concurrently
// without external synchronization.
package msearchkafka

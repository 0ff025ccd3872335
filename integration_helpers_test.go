// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

//go:build integration

package msearchkafka_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/xmidt-org/msearchkafka"
)

const (
	resultConsumeWait = 30 * time.Second
)

// configureTestContainersForPodman is a no-op since the Makefile sets the required
// environment variables (DOCKER_HOST, TESTCONTAINERS_DOCKER_SOCKET_OVERRIDE).
// We keep this function for backwards compatibility but don't set anything to avoid
// race conditions with testcontainers' internal caching.
func configureTestContainersForPodman(t *testing.T) {
	t.Helper()
	// Environment variables are set by the Makefile before running tests.
	// Nothing to do here.
}

// setupKafka starts Kafka using testcontainers and returns the container and broker address.
// Automatically registers cleanup to stop Kafka when test completes.
func setupKafka(t *testing.T) (*kafka.KafkaContainer, string) {
	t.Helper()

	// Skip if running in short mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Configure testcontainers to use Podman if DOCKER_HOST is set
	configureTestContainersForPodman(t)

	// Start Kafka container
	// Use confluent-local image which is designed for testcontainers
	// Using specific version tag since testcontainers validates version for KRaft mode
	kafkaContainer, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafka.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "Failed to start Kafka container")

	t.Cleanup(func() {
		t.Log("Stopping Kafka container...")
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Kafka container: %v", err)
		}
	})

	// Get broker address
	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "Failed to get Kafka brokers")
	require.NotEmpty(t, brokers, "No Kafka brokers available")

	broker := brokers[0]
	t.Logf("Kafka broker available at: %s", broker)

	// Verify Kafka is accepting connections
	require.NoError(t, waitForKafka(ctx, t, broker))

	return kafkaContainer, broker
}

// waitForKafka attempts to connect to Kafka broker until it responds or timeout.
func waitForKafka(ctx context.Context, t *testing.T, broker string) error {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(broker),
			kgo.RequestTimeoutOverhead(5*time.Second),
		)
		if err == nil {
			// Try to ping broker to verify it's responsive
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := client.Ping(pingCtx)
			cancel()
			client.Close()

			if err == nil {
				t.Log("Kafka is ready!")
				return nil
			}
			t.Logf("Kafka not ready yet: %v", err)
		}

		time.Sleep(1 * time.Second)
	}

	return context.DeadlineExceeded
}

// setupSearch starts an HTTP stand-in for the search cluster and returns its
// URL. A nil handler answers every bulk search with an empty success response.
// Automatically registers cleanup to close the server when the test completes.
func setupSearch(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			searchRespond(w, http.StatusOK,
				`{"responses":[{"status":200,"hits":{"total":{"value":0},"hits":[]}}]}`)
		}
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Logf("Search stand-in available at: %s", srv.URL)
	return srv.URL
}

// searchRespond writes a search cluster response. The product header is
// required or the client refuses to talk to the server at all.
func searchRespond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// createTestRelay creates a Relay with test configuration.
func createTestRelay(t *testing.T, broker, searchURL string, routes []msearchkafka.TopicRoute) *msearchkafka.Relay {
	t.Helper()

	return &msearchkafka.Relay{
		Brokers:                []string{broker},
		GroupID:                "msearch-relay-it",
		RequestTopic:           "msearch-requests",
		CompleteTopic:          "msearch-complete",
		OffsetReset:            msearchkafka.OffsetResetEarliest,
		NumWorkers:             4,
		AllowAutoTopicCreation: true, // Enable for integration tests
		Search: msearchkafka.SearchConfig{
			Addresses: []string{searchURL},
		},
		Retry: msearchkafka.RetryConfig{
			MaxAttempts: 3,
			Backoff:     10 * time.Millisecond,
			MaxBackoff:  50 * time.Millisecond,
		},
		InitialDynamicConfig: msearchkafka.DynamicConfig{
			Routes: routes,
		},
	}
}

// produceRequests produces record values onto a topic and waits for acks.
func produceRequests(t *testing.T, broker string, topic string, values ...[]byte) {
	t.Helper()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.AllowAutoTopicCreation(),
	)
	require.NoError(t, err, "Failed to create Kafka producer")
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, value := range values {
		results := client.ProduceSync(ctx, &kgo.Record{Topic: topic, Value: value})
		require.NoError(t, results.FirstErr(), "Failed to produce request")
	}
}

// consumeMessages consumes messages from a Kafka topic until at least min
// records arrive or the timeout expires. Returns all messages received.
func consumeMessages(t *testing.T, broker string, topic string, min int, timeout time.Duration) []*kgo.Record {
	t.Helper()
	return consumeTopics(t, broker, []string{topic}, min, timeout)
}

// consumeTopics consumes from several topics at once, so sharding tests can
// wait for a total count without knowing which shard records landed on.
func consumeTopics(t *testing.T, broker string, topics []string, min int, timeout time.Duration) []*kgo.Record {
	t.Helper()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err, "Failed to create Kafka consumer")
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var records []*kgo.Record
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			t.Logf("Fetch error on %s[%d]: %v", topic, partition, err)
		})

		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})

		if len(records) >= min {
			// Give stragglers a moment so exact-count assertions see extras
			time.Sleep(500 * time.Millisecond)
			fetches = client.PollFetches(ctx)
			fetches.EachRecord(func(r *kgo.Record) {
				records = append(records, r)
			})
			break
		}

		time.Sleep(100 * time.Millisecond)
	}

	return records
}

// decodeResult decodes a result envelope from a Kafka record.
func decodeResult(t *testing.T, record *kgo.Record) *msearchkafka.BulkResult {
	t.Helper()

	res, err := msearchkafka.DecodeBulkResult(record.Value)
	require.NoError(t, err, "Failed to decode result envelope")

	return res
}

// verifyResult verifies that a Kafka record carries the expected terminal result.
func verifyResult(t *testing.T, record *kgo.Record, id string, outcome msearchkafka.Outcome) *msearchkafka.BulkResult {
	t.Helper()

	res := decodeResult(t, record)

	// Verify key fields
	require.Equal(t, id, res.CorrelationID, "Correlation id mismatch")
	require.Equal(t, outcome, res.Outcome, "Outcome mismatch")
	require.GreaterOrEqual(t, res.Attempts, 1, "Attempts should be at least 1")

	// Verify partition key matches correlation id
	require.Equal(t, id, string(record.Key), "Partition key should match correlation id")

	return res
}

// countByTopic tallies consumed records per topic.
func countByTopic(records []*kgo.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Topic]++
	}
	return counts
}

// resultsByID decodes a batch of result records and indexes them by correlation id.
func resultsByID(t *testing.T, records []*kgo.Record) map[string]*msearchkafka.BulkResult {
	t.Helper()

	results := make(map[string]*msearchkafka.BulkResult, len(records))
	for _, r := range records {
		res := decodeResult(t, r)
		results[res.CorrelationID] = res
	}

	return results
}

// createTestRequest creates a request record value for testing.
func createTestRequest(t *testing.T, id string, target string) []byte {
	t.Helper()

	value, err := msearchkafka.EncodeBulkRequest(&msearchkafka.BulkRequest{
		CorrelationID: id,
		Target:        target,
		Queries: []json.RawMessage{
			json.RawMessage(`{"query":{"match_all":{}},"size":1}`),
		},
		Meta: map[string]json.RawMessage{
			"run_id": json.RawMessage(`"it-run"`),
		},
	})
	require.NoError(t, err, "Failed to encode request")

	return value
}

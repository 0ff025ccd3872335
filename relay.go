// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/xmidt-org/eventor"
)

// RelayState describes where the relay is in its lifecycle.
type RelayState int32

const (
	// StateInit is the state before Start() has been called.
	StateInit RelayState = iota

	// StateRunning means the pipeline is consuming and publishing.
	StateRunning

	// StateDraining means Stop() is waiting for in-flight work to finish.
	StateDraining

	// StateStopped means the relay has shut down. Start() may be called again.
	StateStopped
)

func (s RelayState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// RelayEvent represents the terminal disposition of one consumed request:
// a result published to Kafka, or a record dropped without output.
type RelayEvent struct {
	// CorrelationID is the request's correlation id (empty when none could
	// be recovered from a malformed record).
	CorrelationID string

	// Target is the search target from the request envelope.
	Target string

	// Topic is the Kafka topic the result was published to. Empty means the
	// record was dropped without producing output.
	Topic string

	// TopicShardStrategy is the topic sharding strategy used ("", "roundrobin",
	// "correlationid", "meta:<field>").
	TopicShardStrategy string

	// Outcome is the classification of the request's execution.
	Outcome Outcome

	// Error is the error that ended processing (nil for completed requests).
	Error error

	// ErrorType is the error classification (empty for completed requests).
	// Values: "malformed_envelope", "search_unavailable", "search_rejected",
	// "no_route_match", "broker_error", etc.
	ErrorType string

	// StatusCode is the HTTP status of the last search response, if any.
	StatusCode int

	// Attempts is the number of search attempts made.
	Attempts int

	// Duration is the time from intake of the record to completion.
	Duration time.Duration
}

// clientFactory is a function that creates a Kafka client from options.
// This allows dependency injection for testing.
type clientFactory func(opts ...kgo.Opt) (kafkaClient, error)

// defaultClientFactory is the production client factory that uses franz-go.
func defaultClientFactory(opts ...kgo.Opt) (kafkaClient, error) {
	return kgo.NewClient(opts...)
}

// Relay is the main type. It consumes bulk search requests from Kafka, runs
// them against the search cluster through a bounded worker pool, and publishes
// one result per request back to Kafka.
//
// Thread Safety: All methods are safe for concurrent use by multiple
// goroutines. Multiple goroutines may call Start(), Stop(), UpdateConfig(),
// and State() simultaneously without external synchronization.
type Relay struct {
	// --- STATIC CONFIGURATION (set before Start, immutable after) ---

	// Brokers is the list of Kafka broker addresses.
	// Required. Each address must be in "host:port" format.
	Brokers []string

	// SASL configures SASL authentication.
	// Optional. If nil, no authentication is used.
	SASL sasl.Mechanism

	// TLS configures TLS encryption.
	// Optional. If nil, plaintext connections are used.
	TLS *tls.Config

	// GroupID is the consumer group used for the request topic.
	// Default: "msearchkafka".
	GroupID string

	// RequestTopic is the topic bulk search requests are consumed from.
	// Default: "msearch-requests".
	RequestTopic string

	// ResultTopic is the catch-all destination for results. It seeds the
	// default route when InitialDynamicConfig carries no routes of its own.
	// Default: "msearch-results".
	ResultTopic string

	// CompleteTopic is the topic end-run sigils are reflected to.
	// Default: "msearch-complete".
	CompleteTopic string

	// OffsetReset selects where consumption starts when the group has no
	// committed offset. Default: OffsetResetLatest.
	OffsetReset OffsetReset

	// NumWorkers is the number of concurrent search executors. It bounds the
	// number of requests in flight against the search cluster.
	// Default: 5.
	NumWorkers int

	// Search configures the connection to the search cluster.
	Search SearchConfig

	// Retry controls transient search failure retries.
	Retry RetryConfig

	// Acks sets the broker acknowledgment level for published results.
	// Default: AcksAll. Weaker levels disable idempotent writes.
	Acks Acks

	// Compression sets the producer compression codec.
	// Default: CompressionGzip.
	Compression Compression

	// Linger sets how long the producer may hold records to batch them.
	// Default: 0 (no lingering).
	Linger time.Duration

	// MaxBufferedRecords sets the maximum number of records to buffer.
	// Zero or negative values disable this limit.
	// Default: 0 (no limit on record count).
	MaxBufferedRecords int

	// MaxBufferedBytes sets the maximum bytes of records to buffer.
	// Zero or negative values disable this limit.
	// Default: 0 (no limit on bytes).
	MaxBufferedBytes int

	// RequestTimeout sets the maximum time to wait for broker responses.
	// Zero or negative values mean no timeout.
	// Default: 0 (no timeout).
	RequestTimeout time.Duration

	// DrainGracePeriod bounds how long Stop() waits for queued and in-flight
	// requests to finish before abandoning them (their offsets stay
	// uncommitted, so a restart redelivers them). Applied only when the
	// caller's context has no deadline of its own. Negative disables the
	// bound. Default: 30s.
	DrainGracePeriod time.Duration

	// BrokerBackoff is the delay between retries after a broker failure,
	// for both publishing and polling. Default: 2s.
	BrokerBackoff time.Duration

	// BrokerFailureLimit is how many consecutive broker failures are
	// tolerated before the relay declares a fatal error and Run() returns.
	// Default: 15.
	BrokerFailureLimit int

	// AllowAutoTopicCreation enables automatic topic creation when publishing
	// to non-existent topics.
	// Default: false (safer for production - prevents typos from creating topics).
	AllowAutoTopicCreation bool

	// InitialDynamicConfig contains the initial values for dynamically
	// updatable configuration. These settings can be changed at runtime via
	// UpdateConfig() without restarting. Optional; when it carries no routes,
	// a catch-all route to ResultTopic is installed.
	InitialDynamicConfig DynamicConfig

	// Logger is the logger instance (same interface as franz-go).
	// Optional. If nil, a no-op logger will be used.
	Logger kgo.Logger

	// InitialRelayEventListeners are event listeners registered when Start()
	// is called. These listeners receive RelayEvent notifications for every
	// consumed request. For dynamic listener management after Start(), use
	// AddRelayEventListener().
	// Optional.
	InitialRelayEventListeners []func(*RelayEvent)

	// --- INTERNAL FIELDS (not for user configuration) ---

	// logger is for internal use only.
	// The actively used logger instance (never nil, defaults to nopLogger).
	logger kgo.Logger

	// clientFactory is for internal use only (testing hook).
	// Creates Kafka clients, can be overridden for mocking in tests.
	clientFactory clientFactory

	// searchFactory is for internal use only (testing hook).
	// Creates search clients, can be overridden for mocking in tests.
	searchFactory searchFactory

	// clientMu is for internal use only.
	// Protects the client field during Start/Stop operations.
	clientMu sync.Mutex

	// client is for internal use only.
	// The Kafka client instance, initialized in Start() and closed in Stop().
	client kafkaClient

	// exec is for internal use only.
	// Runs bulk searches and classifies outcomes.
	exec *executor

	// pool is for internal use only.
	// The goroutine pool running the executor workers.
	pool *ants.Pool

	// state is for internal use only.
	// Holds the current RelayState for lock-free reads.
	state atomic.Int32

	// dynamicConfig is for internal use only.
	// Holds runtime-updatable configuration with compiled pattern matchers.
	// Updated atomically via UpdateConfig() for lock-free reads.
	dynamicConfig atomic.Pointer[DynamicConfig]

	// relayEventListeners is for internal use only.
	// Event broadcaster for RelayEvent notifications.
	relayEventListeners eventor.Eventor[func(*RelayEvent)]

	// registerInitialListenersOnce is for internal use only.
	// Ensures InitialRelayEventListeners are registered exactly once.
	registerInitialListenersOnce sync.Once

	// tracker is for internal use only.
	// Decides when consumed offsets are safe to commit.
	tracker *offsetTracker

	// commitMu is for internal use only.
	// Serializes tracker completion and offset commits so commits cannot
	// regress.
	commitMu sync.Mutex

	// inFlight is for internal use only.
	// Counts records enqueued but not yet finished; end-run sigils wait on it.
	inFlight atomic.Int64

	// workCh is for internal use only.
	// The bounded work queue between intake and the executor workers.
	workCh chan *workItem

	// resultCh is for internal use only.
	// The bounded result queue between the executor workers and the publisher.
	resultCh chan *workItem

	// intakeCtx/intakeCancel are for internal use only.
	// Canceled first during Stop() to halt consumption.
	intakeCtx    context.Context
	intakeCancel context.CancelFunc

	// pipeCtx/pipeCancel are for internal use only.
	// Canceled when the drain grace expires to abandon remaining work.
	pipeCtx    context.Context
	pipeCancel context.CancelFunc

	// intakeDone is for internal use only.
	// Closed when the intake loop has exited.
	intakeDone chan struct{}

	// pipelineDone is for internal use only.
	// Closed when the publisher has exited (the pipeline's final stage).
	pipelineDone chan struct{}

	// workerWg is for internal use only.
	// Tracks executor workers so the result queue closes after the last one.
	workerWg sync.WaitGroup

	// fatalCh is for internal use only.
	// Receives the first fatal broker error; Run() watches it.
	fatalCh chan error
}

// AddRelayEventListener adds a listener for the terminal disposition of each
// consumed request.
//
// The listener function receives a RelayEvent containing:
//   - CorrelationID, Target: request identity
//   - Topic: result topic (empty for dropped records)
//   - TopicShardStrategy: topic sharding strategy used
//   - Outcome: Completed, RetriesExhausted, Rejected, or Invalid
//   - Error: nil for completed requests, error otherwise
//   - ErrorType: error classification (empty for completed requests)
//   - StatusCode, Attempts, Duration: execution detail
//
// The returned function removes the listener.
//
// Listeners are called from internal goroutines and must be thread-safe.
// Multiple listeners can be registered by calling this multiple times.
func (r *Relay) AddRelayEventListener(fn func(*RelayEvent)) func() {
	return r.relayEventListeners.Add(fn)
}

// Start connects to Kafka and the search cluster and begins relaying.
// Validates configuration and initializes the dynamic config.
//
// Returns an error if:
//   - Configuration is invalid (missing brokers, invalid routes, etc.)
//   - Cannot connect to brokers or create the search client
//   - Authentication failure (SASL/TLS)
//   - Already started
func (r *Relay) Start() error {
	r.clientMu.Lock()
	defer r.clientMu.Unlock()

	if r.client != nil {
		return ErrAlreadyStarted
	}

	// Set default factories if not configured
	if r.clientFactory == nil {
		r.clientFactory = defaultClientFactory
	}
	if r.searchFactory == nil {
		r.searchFactory = defaultSearchFactory
	}

	// Set default logger if not configured
	logger := r.Logger
	if logger == nil {
		logger = &nopLogger{}
	}
	r.logger = logger

	// Register initial event listeners (only once, even if Start() is called multiple times)
	r.registerInitialListenersOnce.Do(func() {
		for _, listener := range r.InitialRelayEventListeners {
			r.relayEventListeners.Add(listener)
		}
	})

	r.applyDefaults()

	// Validate configuration
	if err := r.validate(); err != nil {
		return err
	}

	// Initialize dynamic config (compile patterns, validate)
	if err := r.UpdateConfig(r.InitialDynamicConfig); err != nil {
		return err
	}

	search, err := r.searchFactory(r.Search)
	if err != nil {
		return err
	}
	r.exec = &executor{
		search:  search,
		retry:   r.Retry,
		timeout: r.Search.RequestTimeout,
		logger:  r.logger,
	}

	pool, err := ants.NewPool(r.NumWorkers)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	// Create client using factory (allows testing)
	client, err := r.clientFactory(r.toKgoOpts()...)
	if err != nil {
		pool.Release()
		return fmt.Errorf("failed to create Kafka client: %w", err)
	}

	r.pool = pool
	r.client = client
	r.tracker = newOffsetTracker()
	r.inFlight.Store(0)
	r.workCh = make(chan *workItem, r.NumWorkers)
	r.resultCh = make(chan *workItem, r.NumWorkers)
	r.intakeDone = make(chan struct{})
	r.pipelineDone = make(chan struct{})
	r.fatalCh = make(chan error, 1)
	r.intakeCtx, r.intakeCancel = context.WithCancel(context.Background())
	r.pipeCtx, r.pipeCancel = context.WithCancel(context.Background())

	// Spawn the executor workers
	for i := 0; i < r.NumWorkers; i++ {
		r.workerWg.Add(1)
		if err := r.pool.Submit(r.runWorker); err != nil {
			r.workerWg.Done()
			r.teardownLocked()
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	// Close the result queue after the last worker exits
	resultCh := r.resultCh
	go func() {
		r.workerWg.Wait()
		close(resultCh)
	}()

	go r.runPublisher()
	go r.runIntake()

	r.state.Store(int32(StateRunning))
	r.logger.Log(kgo.LogLevelInfo, "relay started successfully",
		"workers", r.NumWorkers, "request_topic", r.RequestTopic)

	return nil
}

// teardownLocked unwinds a partially started pipeline. Caller holds clientMu.
func (r *Relay) teardownLocked() {
	r.intakeCancel()
	r.pipeCancel()
	close(r.workCh)
	r.pool.Release()
	r.client.Close()
	r.client = nil
}

// Stop drains the pipeline and shuts down.
//
// Intake halts first. Queued and in-flight requests are given until
// DrainGracePeriod (or the caller's deadline, when one is set) to publish
// their results; whatever remains is abandoned with its offsets uncommitted,
// so a restart redelivers it. Safe to call multiple times (idempotent).
func (r *Relay) Stop(ctx context.Context) {
	r.clientMu.Lock()
	defer r.clientMu.Unlock()

	if r.client == nil {
		return // Already stopped or never started
	}

	r.state.Store(int32(StateDraining))
	r.logger.Log(kgo.LogLevelInfo, "stopping relay, draining in-flight requests")

	// Apply DrainGracePeriod only if the context doesn't already have a deadline.
	// This respects caller-provided timeouts while providing a sensible default.
	if r.DrainGracePeriod > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.DrainGracePeriod)
			defer cancel()
		}
	}

	// Halt intake, then close the work queue so the workers run dry.
	r.intakeCancel()
	<-r.intakeDone
	close(r.workCh)

	select {
	case <-r.pipelineDone:
	case <-ctx.Done():
		r.logger.Log(kgo.LogLevelWarn, "drain grace expired, abandoning uncommitted work",
			"abandoned", r.tracker.pending())
		r.pipeCancel()
		<-r.pipelineDone
	}
	r.pipeCancel()

	r.pool.Release()

	// Flush all buffered records
	if err := r.client.Flush(ctx); err != nil {
		r.logger.Log(kgo.LogLevelWarn, "flush incomplete during shutdown", "error", err.Error())
	}

	// Close the client
	r.client.Close()
	r.client = nil

	r.state.Store(int32(StateStopped))
	r.logger.Log(kgo.LogLevelInfo, "relay stopped")
}

// Run starts the relay and blocks until the context is canceled or a fatal
// broker error occurs, then drains and stops. It returns nil after a clean
// shutdown and the fatal error otherwise.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		// A fresh context so the drain grace still applies.
		r.Stop(context.Background())
		return nil
	case err := <-r.fatalCh:
		r.Stop(context.Background())
		return err
	}
}

// State returns the relay's current lifecycle state.
// Thread-safe, lock-free.
func (r *Relay) State() RelayState {
	return RelayState(r.state.Load())
}

// UpdateConfig atomically updates the runtime configuration.
// Validates configuration before applying.
// In-flight requests use the previous configuration.
// Initializes counters for all multi-topic routes (used for distribution and fallback).
//
// Returns an error if:
//   - Routes is empty or lacks a catch-all route
//   - Invalid patterns
//   - Invalid TopicRoute combinations
//   - Invalid enum values or header references
func (r *Relay) UpdateConfig(next DynamicConfig) error {
	// Validate the new configuration
	if err := next.validate(); err != nil {
		return err
	}

	// Initialize counters for all multi-topic routes
	// Counter tracks all results through the route for distribution
	for i := range next.Routes {
		if len(next.Routes[i].Topics) > 0 {
			next.Routes[i].counter = &atomic.Uint64{}
		}
	}

	// Compile patterns for efficient matching
	err := next.compile()
	if err != nil {
		return fmt.Errorf("compiling config: %w", err)
	}

	// Atomic swap
	r.dynamicConfig.Store(&next)

	return nil
}

// applyDefaults fills in defaults for unset configuration.
// Called from Start() before validation.
func (r *Relay) applyDefaults() {
	if r.GroupID == "" {
		r.GroupID = "msearchkafka"
	}
	if r.RequestTopic == "" {
		r.RequestTopic = "msearch-requests"
	}
	if r.ResultTopic == "" {
		r.ResultTopic = "msearch-results"
	}
	if r.CompleteTopic == "" {
		r.CompleteTopic = "msearch-complete"
	}
	if r.OffsetReset == "" {
		r.OffsetReset = OffsetResetLatest
	}
	if r.NumWorkers <= 0 {
		r.NumWorkers = 5
	}
	if len(r.Search.Addresses) == 0 {
		r.Search.Addresses = []string{"http://localhost:9200"}
	}
	if r.Search.RequestTimeout == 0 {
		r.Search.RequestTimeout = 60 * time.Second
	}
	if r.Retry.MaxAttempts <= 0 {
		r.Retry.MaxAttempts = 5
	}
	if r.Retry.Backoff <= 0 {
		r.Retry.Backoff = time.Second
	}
	if r.Retry.MaxBackoff <= 0 {
		r.Retry.MaxBackoff = 30 * time.Second
	}
	if r.Acks == "" {
		r.Acks = AcksAll
	}
	if r.Compression == "" {
		r.Compression = CompressionGzip
	}
	if r.DrainGracePeriod == 0 {
		r.DrainGracePeriod = 30 * time.Second
	}
	if r.BrokerBackoff <= 0 {
		r.BrokerBackoff = 2 * time.Second
	}
	if r.BrokerFailureLimit <= 0 {
		r.BrokerFailureLimit = 15
	}
	if len(r.InitialDynamicConfig.Routes) == 0 {
		r.InitialDynamicConfig.Routes = []TopicRoute{
			{Pattern: "*", Topic: r.ResultTopic},
		}
	}
}

// validate validates the Relay's static configuration.
// Called during Start() to ensure fail-fast behavior.
func (r *Relay) validate() error {
	// Validate static configuration
	if len(r.Brokers) == 0 {
		return errors.Join(ErrValidation, fmt.Errorf("brokers list is required"))
	}

	// Validate each broker address
	for i, broker := range r.Brokers {
		if broker == "" {
			return errors.Join(ErrValidation, fmt.Errorf("broker %d is empty", i))
		}
	}

	if err := validateAcks(r.Acks); err != nil {
		return err
	}
	if err := validateCompression(r.Compression); err != nil {
		return err
	}
	if err := validateOffsetReset(r.OffsetReset); err != nil {
		return err
	}

	// Validate InitialDynamicConfig
	if err := r.InitialDynamicConfig.validate(); err != nil {
		return err
	}

	return nil
}

// toKgoOpts converts the Relay's configuration to franz-go client options.
// Returns a slice of kgo.Opt that can be passed to kgo.NewClient().
func (r *Relay) toKgoOpts() []kgo.Opt {
	opts := []kgo.Opt{
		kgo.SeedBrokers(r.Brokers...),
		kgo.ConsumerGroup(r.GroupID),
		kgo.ConsumeTopics(r.RequestTopic),
		// Offsets are committed by the publisher once results are
		// broker-acked; auto-commit would break at-least-once delivery.
		kgo.DisableAutoCommit(),
	}

	switch r.OffsetReset {
	case OffsetResetEarliest:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	case OffsetResetLatest:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}

	// Configure franz-go logging
	if r.logger != nil {
		opts = append(opts, kgo.WithLogger(r.logger))
	}

	// Add auto-topic creation if enabled
	if r.AllowAutoTopicCreation {
		opts = append(opts, kgo.AllowAutoTopicCreation())
	}

	// Add SASL config if provided
	if r.SASL != nil {
		opts = append(opts, kgo.SASL(r.SASL))
	}

	// Add TLS config if provided
	if r.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(r.TLS))
	}

	// Add buffering config (both limits are independent)
	if r.MaxBufferedRecords > 0 {
		opts = append(opts, kgo.MaxBufferedRecords(r.MaxBufferedRecords))
	}

	if r.MaxBufferedBytes > 0 {
		opts = append(opts, kgo.MaxBufferedBytes(r.MaxBufferedBytes))
	}

	// Add request timeout
	if r.RequestTimeout > 0 {
		opts = append(opts, kgo.RequestTimeoutOverhead(r.RequestTimeout))
	}

	// Add linger time
	if r.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(r.Linger))
	}

	// Add acks requirement
	// kgo requires idempotent writes off for anything below all-ISR acks.
	switch r.Acks {
	case AcksAll:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case AcksLeader:
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case AcksNone:
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	}

	// Add compression
	switch r.Compression {
	case CompressionSnappy:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case CompressionGzip:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case CompressionLz4:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case CompressionZstd:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	case CompressionNone:
		opts = append(opts, kgo.ProducerBatchCompression(kgo.NoCompression()))
	}

	return opts
}

// dispatchEvent dispatches a RelayEvent to all registered listeners.
func (r *Relay) dispatchEvent(event *RelayEvent, since time.Time, err error) {
	if err != nil {
		event.Error = err
		event.ErrorType = errorType(err)
	}
	event.Duration = time.Since(since)

	r.relayEventListeners.Visit(func(listener func(*RelayEvent)) {
		listener(event)
	})
}

// fail records the first fatal error for Run() to act on.
func (r *Relay) fail(err error) {
	select {
	case r.fatalCh <- err:
	default:
	}
}

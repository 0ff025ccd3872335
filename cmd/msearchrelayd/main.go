// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// msearchrelayd relays Elasticsearch bulk search requests through Kafka.
// It consumes request batches from a request topic, executes them against
// the search cluster, and publishes one result per request back to Kafka.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xmidt-org/msearchkafka"
)

const (
	flagBrokers    = "brokers"
	flagNumWorkers = "num-workers"
	flagConfig     = "config"
)

func init() {
	pflag.StringSliceP(flagBrokers, "b", nil,
		"Kafka brokers to bootstrap from as a comma separated list of <host>:<port>")
	pflag.IntP(flagNumWorkers, "w", 5,
		"Number of workers to issue elasticsearch queries in parallel. Defaults to 5.")
	pflag.String(flagConfig, "",
		"Fully qualified path to an optional YAML configuration file")
	pflag.Parse()
}

type searchSettings struct {
	Addresses      []string      `mapstructure:"addresses"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

type retrySettings struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	MaxBackoff  time.Duration `mapstructure:"max-backoff"`
}

type daemonConfig struct {
	Brokers            []string                    `mapstructure:"brokers"`
	NumWorkers         int                         `mapstructure:"num-workers"`
	GroupID            string                      `mapstructure:"group-id"`
	RequestTopic       string                      `mapstructure:"request-topic"`
	ResultTopic        string                      `mapstructure:"result-topic"`
	CompleteTopic      string                      `mapstructure:"complete-topic"`
	OffsetReset        msearchkafka.OffsetReset    `mapstructure:"offset-reset"`
	Acks               msearchkafka.Acks           `mapstructure:"acks"`
	Compression        msearchkafka.Compression    `mapstructure:"compression"`
	DrainGracePeriod   time.Duration               `mapstructure:"drain-grace-period"`
	BrokerBackoff      time.Duration               `mapstructure:"broker-backoff"`
	BrokerFailureLimit int                         `mapstructure:"broker-failure-limit"`
	MetricsPort        int                         `mapstructure:"metrics-port"`
	Search             searchSettings              `mapstructure:"search"`
	Retry              retrySettings               `mapstructure:"retry"`
	Routes             []msearchkafka.TopicRoute   `mapstructure:"routes"`
	Headers            map[string][]string         `mapstructure:"headers"`
}

func configureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// loadConfig merges the optional YAML file with command line flags.
// Explicitly set flags win over file values; file values win over flag
// defaults.
func loadConfig() (*daemonConfig, error) {
	if path := viper.GetString(flagConfig); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "error reading config from %s", path)
		}
	}

	cfg := &daemonConfig{MetricsPort: msearchkafka.DefaultMetricsPort}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, errors.WithMessage(err, "error unmarshaling config")
	}

	return cfg, nil
}

func buildRelay(cfg *daemonConfig, metrics *msearchkafka.Metrics) *msearchkafka.Relay {
	return &msearchkafka.Relay{
		Brokers:            cfg.Brokers,
		NumWorkers:         cfg.NumWorkers,
		GroupID:            cfg.GroupID,
		RequestTopic:       cfg.RequestTopic,
		ResultTopic:        cfg.ResultTopic,
		CompleteTopic:      cfg.CompleteTopic,
		OffsetReset:        cfg.OffsetReset,
		Acks:               cfg.Acks,
		Compression:        cfg.Compression,
		DrainGracePeriod:   cfg.DrainGracePeriod,
		BrokerBackoff:      cfg.BrokerBackoff,
		BrokerFailureLimit: cfg.BrokerFailureLimit,
		Search: msearchkafka.SearchConfig{
			Addresses:      cfg.Search.Addresses,
			Username:       cfg.Search.Username,
			Password:       cfg.Search.Password,
			RequestTimeout: cfg.Search.RequestTimeout,
		},
		Retry: msearchkafka.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		},
		InitialDynamicConfig: msearchkafka.DynamicConfig{
			Routes:  cfg.Routes,
			Headers: cfg.Headers,
		},
		Logger: msearchkafka.NewLogrusLogger(log.StandardLogger()),
		InitialRelayEventListeners: []func(*msearchkafka.RelayEvent){
			metrics.Listener(),
		},
	}
}

func main() {
	configureLogging()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if len(cfg.Brokers) == 0 {
		log.Fatal("at least one Kafka broker is required (-b/--brokers)")
	}

	log.WithFields(log.Fields{
		"brokers": cfg.Brokers,
		"workers": cfg.NumWorkers,
	}).Info("starting msearch relay")

	metrics := msearchkafka.NewMetrics(msearchkafka.MetricsPrefix)

	shutdownMetricServer := msearchkafka.ServeMetrics(cfg.MetricsPort,
		msearchkafka.NewLogrusLogger(log.StandardLogger()))
	defer shutdownMetricServer(context.Background())

	relay := buildRelay(cfg, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := relay.Run(ctx); err != nil {
		log.WithError(err).Error("relay terminated")
		shutdownMetricServer(context.Background())
		os.Exit(1)
	}

	log.Info("relay shut down cleanly")
}

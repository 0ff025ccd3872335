// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchConfig configures the connection to the search cluster.
type SearchConfig struct {
	// Addresses is the list of cluster node URLs.
	// Default: ["http://localhost:9200"].
	Addresses []string

	// Username and Password enable basic authentication.
	// Optional. If empty, no authentication is used.
	Username string
	Password string

	// RequestTimeout bounds each individual bulk search attempt.
	// Default: 60s. Bulk searches fan out across shards and can run long.
	RequestTimeout time.Duration
}

// searchClient is the narrow interface the executor needs from the search
// cluster. It exists so tests can swap in a scripted implementation.
type searchClient interface {
	// msearch executes a bulk search against the target and returns the HTTP
	// status and raw response body. A non-nil error means no response was
	// received at all.
	msearch(ctx context.Context, target string, body []byte) (int, []byte, error)
}

// searchFactory is a function that creates a search client from config.
// This allows dependency injection for testing.
type searchFactory func(SearchConfig) (searchClient, error)

// defaultSearchFactory is the production factory backed by go-elasticsearch.
func defaultSearchFactory(cfg SearchConfig) (searchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// The executor owns the retry policy; the transport must not add
		// retries of its own.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	return &esSearchClient{es: es}, nil
}

type esSearchClient struct {
	es *elasticsearch.Client
}

func (c *esSearchClient) msearch(ctx context.Context, target string, body []byte) (int, []byte, error) {
	res, err := c.es.Msearch(
		bytes.NewReader(body),
		c.es.Msearch.WithContext(ctx),
		// Comma-separated multi-index targets pass through unchanged.
		c.es.Msearch.WithIndex(strings.Split(target, ",")...),
	)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}

	return res.StatusCode, b, nil
}

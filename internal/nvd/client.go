package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/errors"
	"github.com/daimoniac/cvealert/internal/types"
)

// Source labels errors and metrics produced by this package
const Source = "nvd"

const userAgent = "cvealert/1.0 (+https://github.com/daimoniac/cvealert)"

// maxBodySize caps the decoded response. A 2000 item page is a few MB.
const maxBodySize = 64 << 20

// Fetcher retrieves CVE records for a vendor keyword
type Fetcher interface {
	Fetch(ctx context.Context, vendor string) (*FetchResult, error)
}

// FetchResult is the outcome of one vendor query. Malformed items are counted
// and left out of Records.
type FetchResult struct {
	Vendor       string
	TotalResults int
	Records      []types.VendorRecord
	Malformed    int
}

// Client queries the CVE feed over HTTP
type Client struct {
	baseURL        string
	apiKey         string
	resultsPerPage int
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewClient creates a feed client
func NewClient(cfg config.FeedConfig, logger *slog.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.NewPermanentf("invalid feed URL %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	perPage := cfg.ResultsPerPage
	if perPage <= 0 {
		perPage = 2000
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		resultsPerPage: perPage,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}, nil
}

// Fetch performs a single keyword query for vendor. Every failure is returned
// as a FetchError keyed by vendor.
func (c *Client) Fetch(ctx context.Context, vendor string) (*FetchResult, error) {
	req, err := c.newRequest(ctx, vendor)
	if err != nil {
		return nil, errors.NewFetchError(Source, vendor, errors.NewPermanent(err))
	}

	start := time.Now()
	c.logger.Debug("querying CVE feed", "vendor", vendor, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(Source, vendor, errors.NewTransient(err))
	}
	defer resp.Body.Close()

	if err := errors.ClassifyHTTPStatus(Source, vendor, resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	var doc Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&doc); err != nil {
		return nil, errors.NewFetchError(Source, vendor, errors.NewTransientf("decode response: %w", err))
	}

	result := c.extractAll(vendor, &doc)

	c.logger.Debug("CVE feed query complete",
		"vendor", vendor,
		"total_results", result.TotalResults,
		"records", len(result.Records),
		"malformed", result.Malformed,
		"duration", time.Since(start))

	return result, nil
}

func (c *Client) newRequest(ctx context.Context, vendor string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse feed URL: %w", err)
	}
	q := u.Query()
	q.Set("keyword", vendor)
	q.Set("resultsPerPage", strconv.Itoa(c.resultsPerPage))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		// The 1.0 API reads apiKey; the 2.0 API reads API-Key.
		req.Header.Set("apiKey", c.apiKey)
		req.Header.Set("API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) extractAll(vendor string, doc *Response) *FetchResult {
	result := &FetchResult{Vendor: vendor, TotalResults: doc.TotalResults}
	if doc.TotalResults == 0 || doc.Result == nil {
		return result
	}

	result.Records = make([]types.VendorRecord, 0, len(doc.Result.Items))
	for i, item := range doc.Result.Items {
		record, err := Extract(vendor, item)
		if err != nil {
			result.Malformed++
			c.logger.Warn("skipping malformed CVE item",
				"vendor", vendor,
				"index", i,
				"error", err)
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result
}

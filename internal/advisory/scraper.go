package advisory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/errors"
	"github.com/daimoniac/cvealert/internal/types"
)

// Source labels errors and metrics produced by this package
const Source = "advisory"

const userAgent = "cvealert/1.0 (+https://github.com/daimoniac/cvealert)"

// Fetcher retrieves the current list of advisories
type Fetcher interface {
	Fetch(ctx context.Context) (*FetchResult, error)
}

// FetchResult holds the advisories found on the page. Articles missing their
// anchor, href or description are counted in Malformed.
type FetchResult struct {
	Records   []types.AdvisoryRecord
	Malformed int
}

// Scraper downloads and parses the advisory listing page
type Scraper struct {
	pageURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewScraper creates a scraper for the configured page
func NewScraper(cfg config.AdvisoryConfig, logger *slog.Logger) (*Scraper, error) {
	u, err := url.Parse(cfg.PageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.NewPermanentf("invalid advisory URL %q", cfg.PageURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Scraper{
		pageURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// PageURL returns the configured page address
func (s *Scraper) PageURL() string {
	return s.pageURL.String()
}

// Fetch downloads the page once and extracts every advisory article
func (s *Scraper) Fetch(ctx context.Context) (*FetchResult, error) {
	key := s.pageURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, errors.NewFetchError(Source, key, errors.NewPermanent(err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewFetchError(Source, key, errors.NewTransient(err))
	}
	defer resp.Body.Close()

	if err := errors.ClassifyHTTPStatus(Source, key, resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.NewFetchError(Source, key, errors.NewTransientf("parse page: %w", err))
	}

	result := s.Parse(doc)
	s.logger.Debug("advisory page parsed",
		"url", key,
		"advisories", len(result.Records),
		"malformed", result.Malformed)
	return result, nil
}

// Parse extracts advisories from an already loaded page
func (s *Scraper) Parse(doc *goquery.Document) *FetchResult {
	result := &FetchResult{}
	doc.Find("article.entry").Each(func(i int, article *goquery.Selection) {
		record, err := s.extract(article)
		if err != nil {
			result.Malformed++
			s.logger.Warn("skipping malformed advisory article", "index", i, "error", err)
			return
		}
		result.Records = append(result.Records, record)
	})
	return result
}

func (s *Scraper) extract(article *goquery.Selection) (types.AdvisoryRecord, error) {
	anchor := article.Find("a").First()
	if anchor.Length() == 0 {
		return types.AdvisoryRecord{}, fmt.Errorf("%w: no anchor", errors.ErrMalformedRecord)
	}
	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return types.AdvisoryRecord{}, fmt.Errorf("%w: anchor without href", errors.ErrMalformedRecord)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return types.AdvisoryRecord{}, fmt.Errorf("%w: href %q: %v", errors.ErrMalformedRecord, href, err)
	}

	desc := article.Find("p.description").First()
	if desc.Length() == 0 {
		return types.AdvisoryRecord{}, fmt.Errorf("%w: no description paragraph", errors.ErrMalformedRecord)
	}

	return types.AdvisoryRecord{
		Title:       strings.TrimSpace(anchor.Text()),
		Description: strings.TrimSpace(desc.Text()),
		URL:         s.pageURL.ResolveReference(ref).String(),
	}, nil
}

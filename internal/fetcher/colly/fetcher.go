// Package collyfetcher implements filing.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/form4-crawler/internal/filing"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024
)

// Config controls collector behavior.
type Config struct {
	// UserAgent identifies the crawler; EDGAR rejects requests without one.
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// Fetcher implements filing.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET. Non-2xx answers are returned as
// *filing.StatusError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (filing.Response, error) {
	var (
		result   filing.Response
		fetchErr error
	)
	collector := f.buildCollector(&result, &fetchErr)

	start := time.Now()
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return filing.Response{}, err
	}
	f.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", result.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("dur", time.Since(start)),
	)
	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return filing.Response{}, &filing.StatusError{URL: url, Code: result.StatusCode}
	}
	return result, nil
}

func (f *Fetcher) buildCollector(result *filing.Response, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodySize
	collector.SetRequestTimeout(f.cfg.Timeout)

	f.configureCollectorHooks(collector, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	result *filing.Response,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if f.cfg.UserAgent != "" {
			r.Headers.Set("User-Agent", f.cfg.UserAgent)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = filing.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

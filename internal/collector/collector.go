package collector

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Source types accepted by New.
const (
	SourceYahoo = "yahoo"
	SourceREST  = "rest"
	SourceFile  = "file"
	SourceMock  = "mock"
)

// Options select and configure a Fetcher.
type Options struct {
	Type              string
	BaseURL           string
	APIKey            string
	DataDir           string
	HeaderRows        int
	RequestsPerSecond float64
	Timeout           time.Duration
	Proxy             string
}

// New builds the fetcher named by opts.Type.
func New(opts Options) (Fetcher, error) {
	switch opts.Type {
	case "", SourceYahoo:
		f := NewYahooFetcher(opts.Proxy, opts.Timeout, opts.RequestsPerSecond)
		if opts.BaseURL != "" {
			f.BaseURL = opts.BaseURL
		}
		return f, nil
	case SourceREST:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("rest source: base_url is required")
		}
		return NewRESTFetcher(opts.BaseURL, opts.APIKey, opts.Proxy, opts.Timeout, opts.RequestsPerSecond), nil
	case SourceFile:
		if opts.DataDir == "" {
			return nil, fmt.Errorf("file source: data_dir is required")
		}
		return NewFileFetcher(opts.DataDir, opts.HeaderRows), nil
	case SourceMock:
		return &MockFetcher{Price: 100}, nil
	default:
		return nil, fmt.Errorf("unknown data source type %q", opts.Type)
	}
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// newLimiter returns an unlimited limiter when rps is not positive.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// inRange reports whether t falls in [start, end). Zero bounds are open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

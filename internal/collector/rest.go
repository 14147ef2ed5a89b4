package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"PriceForecaster/internal/model"
)

// RESTFetcher implements Fetcher against a JSON bars API that returns flat
// OHLCV records.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration, rps float64) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
		limiter: newLimiter(rps),
	}
}

func (f *RESTFetcher) Name() string { return SourceREST }

// restBar is the expected JSON shape from the bars API. Missing prices are
// null.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
}

var restColumns = []model.ColumnKey{
	model.Flat("Open"), model.Flat("High"), model.Flat("Low"), model.Flat("Close"), model.Flat("Volume"),
}

func (f *RESTFetcher) FetchTable(ctx context.Context, symbol string, start, end time.Time) (*model.RawTable, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rest rate limit: %w", err)
		}
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return &model.RawTable{Symbol: symbol, Columns: restColumns}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch bars: status %d, body: %s", resp.StatusCode, string(body))
	}

	var bars []restBar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })

	table := &model.RawTable{Symbol: symbol, Columns: restColumns}
	for _, b := range bars {
		ts := time.Unix(b.Timestamp, 0).UTC()
		if !inRange(ts, start, end) {
			continue
		}
		table.Rows = append(table.Rows, model.RawRow{
			Index:  ts,
			Values: []any{optional(b.Open), optional(b.High), optional(b.Low), optional(b.Close), optional(b.Volume)},
		})
	}
	return table, nil
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

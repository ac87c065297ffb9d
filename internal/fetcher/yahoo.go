package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

// DefaultYahooBaseURL is the public chart API host
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// MaxChartBytes caps a chart response body. Decades of daily bars stay
// well below it.
const MaxChartBytes = 32 << 20

// YahooFetcher reads bars from the Yahoo Finance v8 chart API
type YahooFetcher struct {
	Client  *http.Client
	baseURL string
	maxBody int64
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewYahooFetcher creates a fetcher against baseURL that issues at most rps
// requests per second. A non-positive rps disables throttling.
func NewYahooFetcher(baseURL string, rps float64, logger *slog.Logger) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &YahooFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		maxBody: MaxChartBytes,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "yahoo_fetcher")),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the subset of the chart response that is decoded. Price
// arrays carry null for bars without trades.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *YahooFetcher) Fetch(ctx context.Context, ticker string, start, end time.Time, interval domain.Interval) ([]domain.RawBar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, apierrors.NewFetchError(ticker, err)
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	// end date is inclusive
	q.Set("period2", strconv.FormatInt(end.Add(24*time.Hour).Unix(), 10))
	q.Set("interval", string(interval))
	q.Set("includePrePost", "false")
	q.Set("events", "")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apierrors.NewFetchError(ticker, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, apierrors.NewFetchError(ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBody {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("response body exceeds %d bytes", f.maxBody))
	}

	f.logger.DebugContext(ctx, "chart response",
		slog.String("ticker", ticker),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(started)))

	var chart yahooChart
	decodeErr := json.Unmarshal(body, &chart)

	if resp.StatusCode == http.StatusNotFound || (decodeErr == nil && notFound(chart)) {
		return nil, apierrors.NewFetchError(ticker, apierrors.ErrTickerNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("decode chart: %w", decodeErr))
	}
	if chart.Chart.Error != nil {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("chart error: %s", chart.Chart.Error.Description))
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, apierrors.NewFetchError(ticker, fmt.Errorf("no data between %s and %s",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout)))
	}

	return chartBars(chart), nil
}

func notFound(chart yahooChart) bool {
	e := chart.Chart.Error
	if e == nil {
		return false
	}
	return e.Code == "Not Found" || strings.Contains(e.Description, "No data found")
}

func chartBars(chart yahooChart) []domain.RawBar {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]domain.RawBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bars = append(bars, domain.RawBar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      valueAt(quote.Open, i),
			High:      valueAt(quote.High, i),
			Low:       valueAt(quote.Low, i),
			Close:     pointerAt(quote.Close, i),
			Volume:    valueAt(quote.Volume, i),
		})
	}
	return bars
}

func valueAt(vals []*float64, i int) float64 {
	if p := pointerAt(vals, i); p != nil {
		return *p
	}
	return 0
}

func pointerAt(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

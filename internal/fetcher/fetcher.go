// Package fetcher retrieves raw OHLCV history for a ticker from a market
// data source.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockpulse/internal/config"
	"stockpulse/pkg/contracts/domain"
)

// DataFetcher returns the raw bars of ticker between start and end, both
// calendar dates and inclusive. Failures are *errors.FetchError values;
// unknown symbols match errors.ErrTickerNotFound.
type DataFetcher interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time, interval domain.Interval) ([]domain.RawBar, error)
	Name() string
}

// New returns the fetcher selected by cfg.Fetcher
func New(cfg config.AnalysisConfig, logger *slog.Logger) (DataFetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherYahoo, "":
		return NewYahooFetcher(cfg.YahooBaseURL, cfg.YahooRPS, logger), nil
	case config.FetcherMock:
		return NewMockFetcher(), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Fetcher)
	}
}

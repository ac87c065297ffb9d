package fetcher

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

// maxMockBars bounds the history generated for intraday intervals over long ranges
const maxMockBars = 10000

// MockFetcher generates a deterministic random walk per ticker. Symbols
// starting with ZZZZ or longer than 10 characters are reported as unknown.
type MockFetcher struct {
	// Delay is waited before answering, honoring ctx
	Delay time.Duration
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

func (f *MockFetcher) Name() string { return "mock" }

func (f *MockFetcher) Fetch(ctx context.Context, ticker string, start, end time.Time, interval domain.Interval) ([]domain.RawBar, error) {
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, apierrors.NewFetchError(ticker, ctx.Err())
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, apierrors.NewFetchError(ticker, err)
	}

	if UnknownMockTicker(ticker) {
		return nil, apierrors.NewFetchError(ticker, apierrors.ErrTickerNotFound)
	}

	times := mockTimestamps(start, end, interval)

	seed := uint64(0)
	for _, c := range ticker {
		seed += uint64(c)
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	basePrice := 50 + float64(seed%200)
	baseVolume := 1_000_000 + float64(seed%5_000_000)

	bars := make([]domain.RawBar, len(times))
	price := basePrice
	for i, ts := range times {
		ret := 0.0005 + rng.NormFloat64()*0.02
		open := price
		price *= math.Exp(ret)
		high := math.Max(open, price) * (1 + math.Abs(rng.NormFloat64()*0.015))
		low := math.Min(open, price) * (1 - math.Abs(rng.NormFloat64()*0.015))
		closePrice := price

		bars[i] = domain.RawBar{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     &closePrice,
			Volume:    math.Round(baseVolume * (1 + math.Abs(ret)*10)),
		}
	}
	return bars, nil
}

// UnknownMockTicker reports whether the mock fetcher rejects ticker
func UnknownMockTicker(ticker string) bool {
	return strings.HasPrefix(strings.ToUpper(ticker), "ZZZZ") || len(ticker) > 10
}

func mockTimestamps(start, end time.Time, interval domain.Interval) []time.Time {
	start = start.UTC()
	end = end.UTC()

	next := func(t time.Time) time.Time {
		switch interval {
		case domain.Interval1mo:
			return t.AddDate(0, 1, 0)
		case domain.Interval1wk:
			return t.AddDate(0, 0, 7)
		case domain.Interval1d:
			return t.AddDate(0, 0, 1)
		default:
			return t.Add(interval.Step())
		}
	}

	// the end date is inclusive, so intraday bars run until its close
	limit := end
	if interval.Step() < 24*time.Hour {
		limit = end.Add(24*time.Hour - time.Nanosecond)
	}

	var times []time.Time
	for t := start; !t.After(limit); t = next(t) {
		times = append(times, t)
	}
	if len(times) > maxMockBars {
		times = times[len(times)-maxMockBars:]
	}
	if len(times) < 2 {
		times = []time.Time{start, next(start)}
	}
	return times
}

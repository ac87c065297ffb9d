package testutil

import (
	"time"

	"stockpulse/pkg/contracts/domain"
)

func float(v float64) *float64 { return &v }

// SampleAnalysisResponse returns a small, fully populated two-ticker
// response with one failed ticker.
func SampleAnalysisResponse() *domain.AnalysisResponse {
	day := func(d int) time.Time { return time.Date(2024, 10, d, 0, 0, 0, 0, time.UTC) }
	bars := func(closes ...float64) []domain.Bar {
		out := make([]domain.Bar, len(closes))
		for i, c := range closes {
			out[i] = domain.Bar{Timestamp: day(i + 1), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: int64(1000 * (i + 1))}
		}
		return out
	}

	matrix := domain.CorrelationMatrix{}
	matrix.Set("AAPL", "AAPL", float(1))
	matrix.Set("MSFT", "MSFT", float(1))
	matrix.Set("AAPL", "MSFT", float(0.5))

	return &domain.AnalysisResponse{
		RequestID: "3f0c2b1e-0000-4000-8000-000000000001",
		Tickers:   []string{"AAPL", "MSFT", "ZZZZZINVALID"},
		DateRange: domain.DateRange{Start: "2024-10-01", End: "2024-10-03"},
		Interval:  domain.Interval1d,
		Metrics: map[string]domain.MetricsResult{
			"AAPL": {Ticker: "AAPL", TotalReturn: 10, Volatility: 4.2, AverageVolume: 2000, VolumeTrend: domain.VolumeTrendUp,
				StartPrice: 100, EndPrice: 110, LatestClose: 110, DataPoints: 3},
			"MSFT": {Ticker: "MSFT", TotalReturn: -2, Volatility: 1.1, AverageVolume: 2000, VolumeTrend: domain.VolumeTrendUp,
				StartPrice: 400, EndPrice: 392, LatestClose: 392, DataPoints: 3},
		},
		CorrelationMatrix: matrix,
		HistoricalData: map[string][]domain.Bar{
			"AAPL": bars(100, 105, 110),
			"MSFT": bars(400, 396, 392),
		},
		SucceededTickers: []string{"AAPL", "MSFT"},
		FailedTickers:    []string{"ZZZZZINVALID"},
		Failures:         map[string]string{"ZZZZZINVALID": "fetch ZZZZZINVALID: ticker not found"},
		CacheKey:         "cache/abc.json",
		Timestamp:        time.Date(2024, 10, 4, 9, 30, 0, 0, time.UTC),
	}
}

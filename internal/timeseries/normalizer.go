// Package timeseries turns raw vendor OHLCV records into canonical
// TickerSeries values.
package timeseries

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

// MinPoints is the shortest series from which a return can be computed
const MinPoints = 2

// Normalizer validates and orders raw records
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger uses slog.Default.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With(slog.String("component", "normalizer"))}
}

// Normalize sorts raw ascending by timestamp, drops bars without a usable
// close and rejects anything else that is not a finite, strictly increasing
// sequence of at least MinPoints bars. The input slice is not modified.
func (n *Normalizer) Normalize(ticker string, interval domain.Interval, raw []domain.RawBar) (domain.TickerSeries, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	if len(raw) == 0 {
		return domain.TickerSeries{}, apierrors.NewDataError(ticker, "no records returned")
	}

	sorted := make([]domain.RawBar, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	bars := make([]domain.Bar, 0, len(sorted))
	dropped := 0
	for i, r := range sorted {
		if r.Close == nil || math.IsNaN(*r.Close) {
			dropped++
			continue
		}

		if !finite(*r.Close, r.Open, r.High, r.Low, r.Volume) {
			return domain.TickerSeries{}, apierrors.NewDataError(ticker,
				"non-finite value in record %d at %s", i, r.Timestamp.Format(domain.DateLayout))
		}

		// float64(MaxInt64) rounds up to 2^63, which no int64 can hold
		volume := math.Round(r.Volume)
		if volume < 0 || volume >= math.MaxInt64 {
			return domain.TickerSeries{}, apierrors.NewDataError(ticker,
				"volume %g out of range in record %d at %s", r.Volume, i, r.Timestamp.Format(domain.DateLayout))
		}

		if n := len(bars); n > 0 && !r.Timestamp.After(bars[n-1].Timestamp) {
			return domain.TickerSeries{}, apierrors.NewDataError(ticker,
				"duplicate timestamp %s", r.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}

		bars = append(bars, domain.Bar{
			Timestamp: r.Timestamp.UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     *r.Close,
			Volume:    int64(volume),
		})
	}

	if dropped > 0 {
		n.logger.Debug("dropped records without close price",
			slog.String("ticker", ticker),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(bars)))
	}

	if len(bars) < MinPoints {
		return domain.TickerSeries{}, apierrors.NewDataError(ticker,
			"insufficient data: %d usable points, need at least %d", len(bars), MinPoints)
	}

	return domain.TickerSeries{Ticker: ticker, Interval: interval, Bars: bars}, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Package analytics computes performance statistics over normalized series.
// Everything here is deterministic and free of I/O.
package analytics

import (
	"errors"
	"math"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

// Moving average windows reported for every ticker
const (
	SMAShort  = 20
	SMAMedium = 50
	SMALong   = 200
)

// DefaultFlatBandPercent is the volume change treated as no trend
const DefaultFlatBandPercent = 2.0

// Calculator derives MetricsResult and CorrelationMatrix values
type Calculator struct {
	flatBand float64
}

// NewCalculator creates a Calculator. flatBandPercent is the half-width of
// the band, in percent, inside which a volume change counts as flat.
func NewCalculator(flatBandPercent float64) *Calculator {
	if flatBandPercent < 0 || math.IsNaN(flatBandPercent) {
		flatBandPercent = DefaultFlatBandPercent
	}
	return &Calculator{flatBand: flatBandPercent}
}

// Compute returns the per-ticker metrics of series. A zero close price that
// would be used as a divisor fails with a DataError.
func (c *Calculator) Compute(series domain.TickerSeries) (domain.MetricsResult, error) {
	if series.Len() < 2 {
		return domain.MetricsResult{}, apierrors.NewDataError(series.Ticker,
			"insufficient data: %d points", series.Len())
	}

	closes := series.Closes()

	returns, err := PeriodicReturns(closes)
	if err != nil {
		return domain.MetricsResult{}, dataError(series.Ticker, err)
	}
	total, err := TotalReturn(closes)
	if err != nil {
		return domain.MetricsResult{}, dataError(series.Ticker, err)
	}

	volumes := series.Volumes()
	last := series.Last().Close

	return domain.MetricsResult{
		Ticker:        series.Ticker,
		TotalReturn:   total,
		Volatility:    Volatility(returns),
		AverageVolume: AverageVolume(volumes),
		SMA20:         SMA(closes, SMAShort),
		SMA50:         SMA(closes, SMAMedium),
		SMA200:        SMA(closes, SMALong),
		VolumeTrend:   c.VolumeTrend(volumes),
		StartPrice:    series.First().Close,
		EndPrice:      last,
		LatestClose:   last,
		DataPoints:    series.Len(),
	}, nil
}

// VolumeTrend compares the mean volume of the second half of the series with
// the first half. An odd middle point belongs to the second half.
func (c *Calculator) VolumeTrend(volumes []int64) domain.VolumeTrend {
	if len(volumes) < 2 {
		return domain.VolumeTrendFlat
	}
	mid := len(volumes) / 2
	first := meanInt(volumes[:mid])
	second := meanInt(volumes[mid:])

	if first == 0 {
		if second > 0 {
			return domain.VolumeTrendUp
		}
		return domain.VolumeTrendFlat
	}

	change := (second - first) / first * 100
	switch {
	case change > c.flatBand:
		return domain.VolumeTrendUp
	case change < -c.flatBand:
		return domain.VolumeTrendDown
	default:
		return domain.VolumeTrendFlat
	}
}

// Correlate builds the pairwise correlation matrix of series. Each pair is
// restricted to the timestamps both series share; returns are taken over
// that joined sequence. Tickers with fewer than two returns of their own are
// left out, pairs with fewer than two joined returns are omitted, and a pair
// where either side has zero variance gets a nil coefficient. Fewer than two
// series yield a nil matrix.
func (c *Calculator) Correlate(series []domain.TickerSeries) domain.CorrelationMatrix {
	if len(series) < 2 {
		return nil
	}

	eligible := make([]domain.TickerSeries, 0, len(series))
	for _, s := range series {
		if s.Len() >= 3 {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	matrix := make(domain.CorrelationMatrix, len(eligible))
	for _, s := range eligible {
		one := 1.0
		matrix.Set(s.Ticker, s.Ticker, &one)
	}

	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			a, b := eligible[i], eligible[j]
			ra, rb, ok := joinedReturns(a, b)
			if !ok {
				continue
			}
			matrix.Set(a.Ticker, b.Ticker, Pearson(ra, rb))
		}
	}
	return matrix
}

// joinedReturns inner-joins a and b on timestamp and returns both return
// sequences over the joined closes. ok is false with fewer than two returns
// or a zero divisor.
func joinedReturns(a, b domain.TickerSeries) ([]float64, []float64, bool) {
	byTime := make(map[int64]float64, b.Len())
	for _, bar := range b.Bars {
		byTime[bar.Timestamp.UnixNano()] = bar.Close
	}

	var ca, cb []float64
	for _, bar := range a.Bars {
		if closeB, ok := byTime[bar.Timestamp.UnixNano()]; ok {
			ca = append(ca, bar.Close)
			cb = append(cb, closeB)
		}
	}
	if len(ca) < 3 {
		return nil, nil, false
	}

	ra, errA := PeriodicReturns(ca)
	rb, errB := PeriodicReturns(cb)
	if errA != nil || errB != nil {
		return nil, nil, false
	}
	return ra, rb, true
}

func dataError(ticker string, err error) error {
	if errors.Is(err, errZeroPrice) {
		return apierrors.NewDataError(ticker, "zero close price, returns undefined")
	}
	return apierrors.NewDataError(ticker, "%v", err)
}

func meanInt(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "stockpulse/internal/errors"
	"stockpulse/pkg/contracts/domain"
)

func makeSeries(ticker string, start time.Time, closes ...float64) domain.TickerSeries {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return domain.TickerSeries{Ticker: ticker, Interval: domain.Interval1d, Bars: bars}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCalculator_Compute(t *testing.T) {
	calc := NewCalculator(DefaultFlatBandPercent)

	t.Run("total return of 100 to 110 is 10 percent", func(t *testing.T) {
		m, err := calc.Compute(makeSeries("AAPL", epoch, 100, 110))
		require.NoError(t, err)
		assert.InDelta(t, 10.0, m.TotalReturn, 1e-12)
		assert.Equal(t, 0.0, m.Volatility, "a single return has no deviation")
		assert.Equal(t, 2, m.DataPoints)
		assert.Equal(t, 100.0, m.StartPrice)
		assert.Equal(t, 110.0, m.EndPrice)
	})

	t.Run("constant prices have zero volatility", func(t *testing.T) {
		m, err := calc.Compute(makeSeries("FLAT", epoch, 50, 50, 50, 50, 50))
		require.NoError(t, err)
		assert.Equal(t, 0.0, m.Volatility)
		assert.Equal(t, 0.0, m.TotalReturn)
	})

	t.Run("volatility uses sample deviation", func(t *testing.T) {
		// returns: +10%, -10%, +10%
		m, err := calc.Compute(makeSeries("VOL", epoch, 100, 110, 99, 108.9))
		require.NoError(t, err)

		returns := []float64{0.1, -0.1, 0.1}
		mu := (0.1 - 0.1 + 0.1) / 3
		var ss float64
		for _, r := range returns {
			ss += (r - mu) * (r - mu)
		}
		assert.InDelta(t, math.Sqrt(ss/2)*100, m.Volatility, 1e-9)
	})

	t.Run("SMA windows", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		m, err := calc.Compute(makeSeries("SMA", epoch, closes...))
		require.NoError(t, err)

		require.NotNil(t, m.SMA20)
		assert.InDelta(t, 50.5, *m.SMA20, 1e-12) // mean of 41..60
		require.NotNil(t, m.SMA50)
		assert.InDelta(t, 35.5, *m.SMA50, 1e-12) // mean of 11..60
		assert.Nil(t, m.SMA200)
	})

	t.Run("SMA20 absent below window", func(t *testing.T) {
		closes := make([]float64, 19)
		for i := range closes {
			closes[i] = 10
		}
		m, err := calc.Compute(makeSeries("SHORT", epoch, closes...))
		require.NoError(t, err)
		assert.Nil(t, m.SMA20)
	})

	t.Run("zero close is a data error", func(t *testing.T) {
		_, err := calc.Compute(makeSeries("ZERO", epoch, 10, 0, 5))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apierrors.ErrData))

		var dataErr *apierrors.DataError
		require.ErrorAs(t, err, &dataErr)
		assert.Equal(t, "ZERO", dataErr.Ticker)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := calc.Compute(makeSeries("ONE", epoch, 10))
		assert.True(t, errors.Is(err, apierrors.ErrData))
	})
}

func TestCalculator_AverageVolume(t *testing.T) {
	assert.Equal(t, int64(2), AverageVolume([]int64{1, 2, 2})) // 1.67
	assert.Equal(t, int64(2), AverageVolume([]int64{1, 2}))    // 1.5 rounds away from zero
	assert.Equal(t, int64(0), AverageVolume(nil))
	assert.Equal(t, int64(1500), AverageVolume([]int64{1000, 2000}))
}

func TestCalculator_VolumeTrend(t *testing.T) {
	tests := []struct {
		name     string
		band     float64
		volumes  []int64
		expected domain.VolumeTrend
	}{
		{"rising", 2, []int64{100, 100, 200, 200}, domain.VolumeTrendUp},
		{"falling", 2, []int64{200, 200, 100, 100}, domain.VolumeTrendDown},
		{"inside band", 2, []int64{1000, 1000, 1010, 1010}, domain.VolumeTrendFlat},
		{"one percent move", 2, []int64{100, 101}, domain.VolumeTrendFlat},
		{"wider band", 60, []int64{100, 100, 150, 150}, domain.VolumeTrendFlat},
		{"odd length middle goes to second half", 2, []int64{100, 100, 100, 100, 160}, domain.VolumeTrendUp},
		{"zero first half", 2, []int64{0, 0, 5, 5}, domain.VolumeTrendUp},
		{"all zero", 2, []int64{0, 0, 0}, domain.VolumeTrendFlat},
		{"too short", 2, []int64{100}, domain.VolumeTrendFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewCalculator(tt.band).VolumeTrend(tt.volumes))
		})
	}
}

func TestNewCalculator_InvalidBandFallsBack(t *testing.T) {
	assert.Equal(t, DefaultFlatBandPercent, NewCalculator(-1).flatBand)
	assert.Equal(t, DefaultFlatBandPercent, NewCalculator(math.NaN()).flatBand)
}

func TestCalculator_Correlate(t *testing.T) {
	calc := NewCalculator(DefaultFlatBandPercent)

	a := makeSeries("AAPL", epoch, 100, 102, 101, 105, 107, 106)
	b := makeSeries("MSFT", epoch, 200, 204, 202, 210, 214, 212) // 2x a
	c := makeSeries("INV", epoch, 100, 98, 99, 95, 93, 94)
	flat := makeSeries("FLAT", epoch, 10, 10, 10, 10)

	t.Run("diagonal and symmetry", func(t *testing.T) {
		m := calc.Correlate([]domain.TickerSeries{a, b, c})
		require.NotNil(t, m)

		for _, tk := range []string{"AAPL", "MSFT", "INV"} {
			v, ok := m.Get(tk, tk)
			require.True(t, ok)
			assert.Equal(t, 1.0, v)
		}

		for _, x := range []string{"AAPL", "MSFT", "INV"} {
			for _, y := range []string{"AAPL", "MSFT", "INV"} {
				vxy, _ := m.Get(x, y)
				vyx, _ := m.Get(y, x)
				assert.Equal(t, vxy, vyx)
			}
		}

		ab, ok := m.Get("AAPL", "MSFT")
		require.True(t, ok)
		assert.InDelta(t, 1.0, ab, 1e-12)

		ac, ok := m.Get("AAPL", "INV")
		require.True(t, ok)
		assert.Less(t, ac, 0.0)
		assert.GreaterOrEqual(t, ac, -1.0)
	})

	t.Run("zero variance yields null cell", func(t *testing.T) {
		m := calc.Correlate([]domain.TickerSeries{a, flat})
		require.NotNil(t, m)

		cell, present := m["AAPL"]["FLAT"]
		assert.True(t, present)
		assert.Nil(t, cell)

		v, ok := m.Get("FLAT", "FLAT")
		assert.True(t, ok)
		assert.Equal(t, 1.0, v)
	})

	t.Run("inner join on shared timestamps", func(t *testing.T) {
		// shifted starts overlap on three days only
		late := makeSeries("LATE", epoch.AddDate(0, 0, 3), 105, 107, 106, 110)
		m := calc.Correlate([]domain.TickerSeries{a, late})
		require.NotNil(t, m)

		v, ok := m.Get("AAPL", "LATE")
		require.True(t, ok)
		assert.InDelta(t, 1.0, v, 1e-12, "joined closes are identical")
	})

	t.Run("insufficient overlap omits pair", func(t *testing.T) {
		disjoint := makeSeries("LATER", epoch.AddDate(0, 0, 5), 1, 2, 3)
		m := calc.Correlate([]domain.TickerSeries{a, disjoint})
		require.NotNil(t, m)

		_, present := m["AAPL"]["LATER"]
		assert.False(t, present)
		_, ok := m.Get("LATER", "LATER")
		assert.True(t, ok)
	})

	t.Run("ticker with one return is excluded", func(t *testing.T) {
		short := makeSeries("SHORT", epoch, 1, 2)
		m := calc.Correlate([]domain.TickerSeries{a, b, short})
		_, present := m["SHORT"]
		assert.False(t, present)
		_, present = m["AAPL"]["SHORT"]
		assert.False(t, present)
	})

	t.Run("single ticker has no matrix", func(t *testing.T) {
		assert.Nil(t, calc.Correlate([]domain.TickerSeries{a}))
		assert.Nil(t, calc.Correlate(nil))
	})
}

func TestPearson(t *testing.T) {
	r := Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.NotNil(t, r)
	assert.InDelta(t, -1.0, *r, 1e-12)

	assert.Nil(t, Pearson([]float64{1}, []float64{1}))
	assert.Nil(t, Pearson([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Nil(t, Pearson([]float64{1, 1, 1}, []float64{1, 2, 3}))
}

func TestPeriodicReturns(t *testing.T) {
	r, err := PeriodicReturns([]float64{100, 110, 99})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, r, 1e-12)

	r, err = PeriodicReturns([]float64{5})
	require.NoError(t, err)
	assert.Empty(t, r)

	_, err = PeriodicReturns([]float64{0, 1})
	assert.Error(t, err)
}

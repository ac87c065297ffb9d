package analytics

import (
	"errors"
	"math"
)

var errZeroPrice = errors.New("zero close price")

// PeriodicReturns returns (c[i]-c[i-1])/c[i-1] for i >= 1.
func PeriodicReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, nil
	}
	returns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, errZeroPrice
		}
		returns[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return returns, nil
}

// TotalReturn returns the first-to-last change in percent.
func TotalReturn(closes []float64) (float64, error) {
	if len(closes) < 2 {
		return 0, nil
	}
	first := closes[0]
	if first == 0 {
		return 0, errZeroPrice
	}
	return (closes[len(closes)-1] - first) / first * 100, nil
}

// Volatility is the sample standard deviation of returns, in percent.
// Fewer than two returns yield 0.
func Volatility(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	m := mean(returns)
	var ss float64
	for _, r := range returns {
		d := r - m
		ss += d * d
	}
	return math.Sqrt(ss/float64(n-1)) * 100
}

// SMA returns the trailing simple moving average over window points at the
// most recent index, or nil when fewer than window values exist.
func SMA(values []float64, window int) *float64 {
	if window <= 0 || len(values) < window {
		return nil
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	avg := sum / float64(window)
	return &avg
}

// AverageVolume returns the mean volume rounded to the nearest integer.
func AverageVolume(volumes []int64) int64 {
	if len(volumes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range volumes {
		sum += float64(v)
	}
	return int64(math.Round(sum / float64(len(volumes))))
}

// Pearson returns the correlation coefficient of x and y, or nil when either
// side has zero variance. x and y must have equal length of at least 2.
func Pearson(x, y []float64) *float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return nil
	}
	mx, my := mean(x), mean(y)

	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}

	r := sxy / math.Sqrt(sxx*syy)
	r = math.Max(-1, math.Min(1, r))
	return &r
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpulse/pkg/contracts/domain"
)

func TestBuildKey_OrderIndependent(t *testing.T) {
	a := domain.AnalysisRequest{
		Tickers:   []string{"MSFT", "AAPL"},
		StartDate: "2024-10-01",
		EndDate:   "2024-11-01",
		Interval:  domain.Interval1d,
	}
	b := domain.AnalysisRequest{
		Tickers:   []string{"AAPL", "MSFT"},
		StartDate: "2024-10-01",
		EndDate:   "2024-11-01",
		Interval:  domain.Interval1d,
	}
	assert.Equal(t, BuildKey(a, DefaultPrefix), BuildKey(b, DefaultPrefix))
}

func TestBuildKey_Normalization(t *testing.T) {
	base := domain.AnalysisRequest{
		Tickers:   []string{"AAPL", "MSFT"},
		StartDate: "2024-10-01",
		EndDate:   "2024-11-01",
		Interval:  domain.Interval1d,
	}
	want := BuildKey(base, DefaultPrefix)

	tests := []struct {
		name string
		req  domain.AnalysisRequest
	}{
		{"lowercase tickers", domain.AnalysisRequest{Tickers: []string{"aapl", "msft"}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1d"}},
		{"duplicates", domain.AnalysisRequest{Tickers: []string{"MSFT", "AAPL", "msft"}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1d"}},
		{"default interval", domain.AnalysisRequest{Tickers: []string{"MSFT", "AAPL"}, StartDate: "2024-10-01", EndDate: "2024-11-01"}},
		{"whitespace", domain.AnalysisRequest{Tickers: []string{" AAPL", "MSFT "}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, BuildKey(tt.req, DefaultPrefix))
		})
	}
}

func TestBuildKey_DistinguishesFields(t *testing.T) {
	base := domain.AnalysisRequest{
		Tickers:   []string{"AAPL"},
		StartDate: "2024-10-01",
		EndDate:   "2024-11-01",
		Interval:  domain.Interval1d,
	}
	baseKey := BuildKey(base, DefaultPrefix)

	variants := []domain.AnalysisRequest{
		{Tickers: []string{"AAPL", "MSFT"}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1d"},
		{Tickers: []string{"AAPL"}, StartDate: "2024-10-02", EndDate: "2024-11-01", Interval: "1d"},
		{Tickers: []string{"AAPL"}, StartDate: "2024-10-01", EndDate: "2024-11-02", Interval: "1d"},
		{Tickers: []string{"AAPL"}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1wk"},
	}
	for _, v := range variants {
		assert.NotEqual(t, baseKey, BuildKey(v, DefaultPrefix), CanonicalString(v))
	}
}

func TestBuildKey_Layout(t *testing.T) {
	req := domain.AnalysisRequest{Tickers: []string{"MSFT", "AAPL"}, StartDate: "2024-10-01", EndDate: "2024-11-01", Interval: "1d"}

	assert.Equal(t, "v1|tickers=AAPL,MSFT|start=2024-10-01|end=2024-11-01|interval=1d", CanonicalString(req))

	key := BuildKey(req, "results/")
	assert.True(t, strings.HasPrefix(key, "results/"))
	assert.True(t, strings.HasSuffix(key, KeySuffix))
	// 32-byte digest, hex encoded
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(key, "results/"), KeySuffix), 64)
}

func TestCanonicalString_DoesNotMutateRequest(t *testing.T) {
	tickers := []string{"MSFT", "AAPL"}
	CanonicalString(domain.AnalysisRequest{Tickers: tickers, StartDate: "2024-10-01", EndDate: "2024-11-01"})
	assert.Equal(t, []string{"MSFT", "AAPL"}, tickers)
}

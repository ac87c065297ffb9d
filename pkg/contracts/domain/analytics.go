package domain

import "time"

// VolumeTrend is the qualitative direction of volume across a series
type VolumeTrend string

const (
	VolumeTrendUp   VolumeTrend = "up"
	VolumeTrendDown VolumeTrend = "down"
	VolumeTrendFlat VolumeTrend = "flat"
)

// MetricsResult holds the computed statistics of one ticker. Percentages are
// expressed in percent, not fractions.
type MetricsResult struct {
	Ticker        string      `json:"ticker"`
	TotalReturn   float64     `json:"total_return"`
	Volatility    float64     `json:"volatility"`
	AverageVolume int64       `json:"average_volume"`
	SMA20         *float64    `json:"sma_20"`
	SMA50         *float64    `json:"sma_50"`
	SMA200        *float64    `json:"sma_200"`
	VolumeTrend   VolumeTrend `json:"volume_trend"`
	StartPrice    float64     `json:"start_price"`
	EndPrice      float64     `json:"end_price"`
	LatestClose   float64     `json:"latest_close"`
	DataPoints    int         `json:"data_points"`
}

// CorrelationMatrix maps ticker pairs to Pearson coefficients of their
// periodic returns. A nil cell is an undefined coefficient; a missing cell
// means the pair had too few overlapping observations.
type CorrelationMatrix map[string]map[string]*float64

// Get returns the coefficient for (a, b) and whether it is defined
func (m CorrelationMatrix) Get(a, b string) (float64, bool) {
	row, ok := m[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Set stores v symmetrically for (a, b)
func (m CorrelationMatrix) Set(a, b string, v *float64) {
	if m[a] == nil {
		m[a] = make(map[string]*float64)
	}
	if m[b] == nil {
		m[b] = make(map[string]*float64)
	}
	m[a][b] = v
	m[b][a] = v
}

// AnalysisResponse is returned to API callers. Callers must inspect
// FailedTickers even on success.
type AnalysisResponse struct {
	RequestID         string                   `json:"request_id"`
	Tickers           []string                 `json:"tickers"`
	DateRange         DateRange                `json:"date_range"`
	Interval          Interval                 `json:"interval"`
	Metrics           map[string]MetricsResult `json:"metrics"`
	CorrelationMatrix CorrelationMatrix        `json:"correlation_matrix,omitempty"`
	HistoricalData    map[string][]Bar         `json:"historical_data"`
	SucceededTickers  []string                 `json:"succeeded_tickers"`
	FailedTickers     []string                 `json:"failed_tickers"`
	Failures          map[string]string        `json:"failures,omitempty"`
	Cached            bool                     `json:"cached"`
	CacheKey          string                   `json:"cache_key,omitempty"`
	Timestamp         time.Time                `json:"timestamp"`
}

// CacheEntry is the persisted form of a computed analysis
type CacheEntry struct {
	Key               string                   `json:"key"`
	CreatedAt         time.Time                `json:"created_at"`
	TTLHours          float64                  `json:"ttl_hours"`
	Tickers           []string                 `json:"tickers"`
	DateRange         DateRange                `json:"date_range"`
	Interval          Interval                 `json:"interval"`
	Metrics           map[string]MetricsResult `json:"metrics"`
	CorrelationMatrix CorrelationMatrix        `json:"correlation_matrix,omitempty"`
	HistoricalData    map[string][]Bar         `json:"historical_data,omitempty"`
	SucceededTickers  []string                 `json:"succeeded_tickers"`
	FailedTickers     []string                 `json:"failed_tickers"`
	Failures          map[string]string        `json:"failures,omitempty"`
}

// TTL returns the entry lifetime
func (e *CacheEntry) TTL() time.Duration {
	return time.Duration(e.TTLHours * float64(time.Hour))
}

// Expired reports whether now is strictly past created_at + ttl
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL()
}

// CacheStats summarizes a cache namespace
type CacheStats struct {
	EntryCount   int     `json:"entry_count"`
	TotalSize    int64   `json:"total_size"`
	TotalSizeMB  float64 `json:"total_size_mb"`
	ExpiredCount int     `json:"expired_count"`
	Enabled      bool    `json:"enabled"`
	Backend      string  `json:"backend"`
}

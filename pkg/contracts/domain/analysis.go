package domain

import (
	"regexp"
	"strings"
	"time"

	apierrors "stockpulse/internal/errors"
)

// DateLayout is the calendar date format used by requests and cache keys
const DateLayout = "2006-01-02"

// MaxTickers bounds the tickers of one AnalysisRequest
const MaxTickers = 10

// Interval is the bar size of a series
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1wk Interval = "1wk"
	Interval1mo Interval = "1mo"
)

// Intervals lists every supported interval
var Intervals = []Interval{
	Interval5m, Interval15m, Interval30m, Interval1h, Interval1d, Interval1wk, Interval1mo,
}

// Valid reports whether i is a supported interval
func (i Interval) Valid() bool {
	for _, v := range Intervals {
		if i == v {
			return true
		}
	}
	return false
}

// Step returns the nominal spacing between consecutive bars
func (i Interval) Step() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1wk:
		return 7 * 24 * time.Hour
	case Interval1mo:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,14}$`)

// ValidTicker reports whether s is a plausible, already uppercased symbol
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// DateRange is an inclusive calendar range
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisRequest asks for comparative metrics over a set of tickers
type AnalysisRequest struct {
	Tickers   []string `json:"tickers" validate:"required,min=1,max=10,dive,required,ticker"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Interval  Interval `json:"interval" validate:"required,interval"`
}

// Normalize returns a copy with trimmed, uppercased, deduplicated tickers in
// first-seen order and a defaulted interval.
func (r AnalysisRequest) Normalize() AnalysisRequest {
	out := AnalysisRequest{
		StartDate: strings.TrimSpace(r.StartDate),
		EndDate:   strings.TrimSpace(r.EndDate),
		Interval:  Interval(strings.TrimSpace(string(r.Interval))),
	}
	if out.Interval == "" {
		out.Interval = Interval1d
	}

	seen := make(map[string]struct{}, len(r.Tickers))
	for _, t := range r.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out.Tickers = append(out.Tickers, t)
	}
	return out
}

// Validate checks a normalized request. It never touches the network.
func (r AnalysisRequest) Validate(maxTickers int) error {
	if maxTickers <= 0 || maxTickers > MaxTickers {
		maxTickers = MaxTickers
	}

	if len(r.Tickers) == 0 {
		return apierrors.NewValidationError("tickers", "at least one ticker is required")
	}
	if len(r.Tickers) > maxTickers {
		return apierrors.NewValidationError("tickers", "at most %d tickers are allowed, got %d", maxTickers, len(r.Tickers))
	}
	for _, t := range r.Tickers {
		if !ValidTicker(t) {
			return apierrors.NewValidationError("tickers", "invalid ticker symbol %q", t)
		}
	}

	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return apierrors.NewValidationError("start_date", "must be a date in YYYY-MM-DD format")
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return apierrors.NewValidationError("end_date", "must be a date in YYYY-MM-DD format")
	}
	if start.After(end) {
		return apierrors.NewValidationError("start_date", "must not be after end_date")
	}

	if !r.Interval.Valid() {
		return apierrors.NewValidationError("interval", "unsupported interval %q", r.Interval)
	}
	return nil
}

// Start returns the parsed start date. The request must be valid.
func (r AnalysisRequest) Start() time.Time {
	t, _ := time.Parse(DateLayout, r.StartDate)
	return t
}

// End returns the parsed end date. The request must be valid.
func (r AnalysisRequest) End() time.Time {
	t, _ := time.Parse(DateLayout, r.EndDate)
	return t
}

// DateRange returns the request range
func (r AnalysisRequest) DateRange() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels matched by the typed analysis errors through errors.Is.
var (
	ErrData           = errors.New("data error")
	ErrFetch          = errors.New("fetch error")
	ErrTickerNotFound = errors.New("ticker not found")
	ErrUpstreamData   = errors.New("all tickers failed")
	ErrCache          = errors.New("cache error")
	ErrValidation     = errors.New("validation error")
)

// DataError reports a malformed or insufficient series for one ticker.
type DataError struct {
	Ticker string
	Reason string
}

func (e *DataError) Error() string {
	if e.Ticker == "" {
		return "data error: " + e.Reason
	}
	return fmt.Sprintf("data error for %s: %s", e.Ticker, e.Reason)
}

func (e *DataError) Is(target error) bool { return target == ErrData }

// NewDataError creates a DataError with a formatted reason
func NewDataError(ticker, format string, args ...interface{}) *DataError {
	return &DataError{Ticker: ticker, Reason: fmt.Sprintf(format, args...)}
}

// FetchError reports that the upstream source could not deliver a ticker.
type FetchError struct {
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// NewFetchError wraps cause for ticker
func NewFetchError(ticker string, cause error) *FetchError {
	return &FetchError{Ticker: ticker, Err: cause}
}

// UpstreamDataError aborts a request in which every ticker failed.
type UpstreamDataError struct {
	Failures map[string]string
}

func (e *UpstreamDataError) Error() string {
	tickers := make([]string, 0, len(e.Failures))
	for t := range e.Failures {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	parts := make([]string, 0, len(tickers))
	for _, t := range tickers {
		parts = append(parts, t+": "+e.Failures[t])
	}
	return "no data available for any requested ticker (" + strings.Join(parts, "; ") + ")"
}

func (e *UpstreamDataError) Is(target error) bool { return target == ErrUpstreamData }

// CacheError wraps a blob store failure.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

func (e *CacheError) Is(target error) bool { return target == ErrCache }

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError for field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

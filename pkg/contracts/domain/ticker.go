package domain

import (
	"time"
)

// RawBar is one OHLCV record as delivered by a data fetcher. Close is nil
// for holidays and gaps reported by the vendor.
type RawBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     *float64  `json:"close"`
	Volume    float64   `json:"volume"`
}

// Bar is one validated OHLCV point of a TickerSeries
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TickerSeries is the canonical, strictly time-ordered history of one ticker
// at one interval. Values are never modified after normalization.
type TickerSeries struct {
	Ticker   string   `json:"ticker"`
	Interval Interval `json:"interval"`
	Bars     []Bar    `json:"bars"`
}

// Len returns the number of bars
func (s TickerSeries) Len() int {
	return len(s.Bars)
}

// Closes returns the close prices in time order
func (s TickerSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes returns the volumes in time order
func (s TickerSeries) Volumes() []int64 {
	volumes := make([]int64, len(s.Bars))
	for i, b := range s.Bars {
		volumes[i] = b.Volume
	}
	return volumes
}

// First returns the oldest bar. The series must not be empty.
func (s TickerSeries) First() Bar {
	return s.Bars[0]
}

// Last returns the most recent bar. The series must not be empty.
func (s TickerSeries) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

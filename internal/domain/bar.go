package domain

import (
	"errors"
	"fmt"
	"math"
)

// Bar represents one OHLC price bar.
// Bars are immutable once ingested.
type Bar struct {
	TimestampMs int64   // Unix timestamp in milliseconds (bar open time)
	Open        float64
	High        float64
	Low         float64
	Close       float64
}

// Bar validation errors.
var (
	ErrEmptyBars        = errors.New("bar series is empty")
	ErrBarOrder         = errors.New("bar timestamps must be strictly increasing")
	ErrBarRange         = errors.New("bar high must be >= low")
	ErrBarNonFinite     = errors.New("bar OHLC fields must be finite")
	ErrBarOutsideBounds = errors.New("bar open/close must lie within [low, high]")
)

// ValidateBars checks the input contract for a bar series:
// strictly increasing timestamps, finite OHLC, high >= low,
// open and close inside the bar range.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrEmptyBars
	}

	for i, b := range bars {
		for _, v := range [4]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("bar %d: %w", i, ErrBarNonFinite)
			}
		}
		if b.High < b.Low {
			return fmt.Errorf("bar %d: %w", i, ErrBarRange)
		}
		if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
			return fmt.Errorf("bar %d: %w", i, ErrBarOutsideBounds)
		}
		if i > 0 && b.TimestampMs <= bars[i-1].TimestampMs {
			return fmt.Errorf("bar %d: %w", i, ErrBarOrder)
		}
	}

	return nil
}

// TrueRange computes the true range of a bar given the previous close.
// For the first bar of a series, pass prevClose as NaN and the plain
// high-low range is returned.
func TrueRange(b Bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if math.IsNaN(prevClose) {
		return tr
	}
	if hc := math.Abs(b.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(b.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

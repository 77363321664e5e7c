package models

import (
	"math"
	"time"
)

// Ticker is one normalized fetch result for an instrument. Absent fields are
// nil; zero is a real observation. Mid may be supplied by the venue or left
// nil to be derived from ask/bid at cache time.
type Ticker struct {
	Ask  *float64
	Bid  *float64
	Mid  *float64
	Last *float64
}

// Float boxes a value for an optional field.
func Float(v float64) *float64 { return &v }

// Sanitize drops non-finite values so that malformed venue numbers read as
// absent instead of poisoning downstream gauges.
func Sanitize(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// BalanceEntry is one asset amount reported by an account endpoint.
type BalanceEntry struct {
	Currency string
	Amount   *float64
}

// Collateral is the margin account summary of a venue.
type Collateral struct {
	Deposited  *float64
	Unrealized *float64
	Required   *float64
}

// Position is one open margin position.
type Position struct {
	Side       string
	Size       *float64
	Unrealized *float64
}

// Execution is one historical trade used transiently during volume
// aggregation. Price may be nil for venues that report quantity only.
type Execution struct {
	ID    int64
	Price *float64
	Size  *float64
	Time  time.Time
}

// Cursor marks a position in a backward-paginated history feed. Venues page
// either by numeric id or by timestamp; the unused half stays zero.
type Cursor struct {
	ID   int64
	Time time.Time
}

// Zero reports whether the cursor is the initial "newest first" position.
func (c Cursor) Zero() bool {
	return c.ID == 0 && c.Time.IsZero()
}

// Before reports whether c is strictly older than prev. Used to enforce
// monotonic backward progress during pagination.
func (c Cursor) Before(prev Cursor) bool {
	if prev.Zero() {
		return !c.Zero()
	}
	if c.ID != 0 || prev.ID != 0 {
		return c.ID < prev.ID
	}
	return c.Time.Before(prev.Time)
}

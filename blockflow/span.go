package blockflow

import "fmt"

// Span is a half-open stepped interval [Start, Stop) over integer
// coordinates along one axis.  A zero Step is treated as an empty span.
type Span struct {
	Start int32
	Stop  int32
	Step  int32
}

// NewSpan returns a unit-step span covering [start, stop).
func NewSpan(start, stop int32) Span {
	return Span{Start: start, Stop: stop, Step: 1}
}

// Len returns the number of coordinates produced by the span.
func (s Span) Len() int32 {
	switch {
	case s.Step > 0:
		if s.Stop <= s.Start {
			return 0
		}
		return (s.Stop - s.Start + s.Step - 1) / s.Step
	case s.Step < 0:
		if s.Stop >= s.Start {
			return 0
		}
		return (s.Start - s.Stop - s.Step - 1) / -s.Step
	default:
		return 0
	}
}

// Empty returns true if the span produces no coordinates.
func (s Span) Empty() bool {
	return s.Len() == 0
}

// First returns the first coordinate of a non-empty span.
func (s Span) First() int32 {
	return s.Start
}

// Last returns the final coordinate of a non-empty span.
func (s Span) Last() int32 {
	return s.Start + (s.Len()-1)*s.Step
}

// Contains returns true if v is one of the coordinates produced by the span.
func (s Span) Contains(v int32) bool {
	switch {
	case s.Step > 0:
		return v >= s.Start && v < s.Stop && (v-s.Start)%s.Step == 0
	case s.Step < 0:
		return v <= s.Start && v > s.Stop && (s.Start-v)%-s.Step == 0
	default:
		return false
	}
}

func (s Span) String() string {
	if s.Step == 1 {
		return fmt.Sprintf("[%d,%d)", s.Start, s.Stop)
	}
	return fmt.Sprintf("[%d,%d;%d)", s.Start, s.Stop, s.Step)
}

// RangeContains determines whether every coordinate of inner also lies in
// outer.  The checks are ordered from cheapest to most expensive, each one
// a precondition for the next, because most calls resolve on the first
// membership test.
func RangeContains(inner, outer Span) bool {
	n := inner.Len()

	// Empty span is always contained.
	if n == 0 {
		return true
	}

	if !outer.Contains(inner.First()) {
		return false
	}
	if n == 1 {
		return true
	}

	if !outer.Contains(inner.Last()) {
		return false
	}
	if n == 2 {
		return true
	}

	// Both endpoints are members, so containment reduces to inner's
	// stride landing on outer's lattice.
	return inner.Step%outer.Step == 0
}

package blockflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis positions within a TZYX vector.
const (
	AxisT = iota
	AxisZ
	AxisY
	AxisX
)

// NumAxes is the number of axes in a TZYX vector.  The channel axis is
// excluded because logical chunking never splits channels.
const NumAxes = 4

// TZYX holds one value per chunked axis in fixed (T, Z, Y, X) order.
// It is used for array extents, chunk sizes, overlaps, and chunk-grid
// dimensions.  Mixing this ordering with any other is a programming error.
type TZYX [4]int32

// T returns the time-axis component.
func (p TZYX) T() int32 { return p[AxisT] }

// Z returns the z-axis component.
func (p TZYX) Z() int32 { return p[AxisZ] }

// Y returns the y-axis component.
func (p TZYX) Y() int32 { return p[AxisY] }

// X returns the x-axis component.
func (p TZYX) X() int32 { return p[AxisX] }

// Value returns the component for the given axis without checking bounds.
func (p TZYX) Value(axis uint8) int32 {
	return p[axis]
}

// Prod returns the product of all components.
func (p TZYX) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2]) * int64(p[3])
}

// Add returns the component-wise sum of two vectors.
func (p TZYX) Add(q TZYX) TZYX {
	return TZYX{p[0] + q[0], p[1] + q[1], p[2] + q[2], p[3] + q[3]}
}

// Sub returns the component-wise difference of two vectors.
func (p TZYX) Sub(q TZYX) TZYX {
	return TZYX{p[0] - q[0], p[1] - q[1], p[2] - q[2], p[3] - q[3]}
}

// Mult returns the component-wise product of two vectors.
func (p TZYX) Mult(q TZYX) TZYX {
	return TZYX{p[0] * q[0], p[1] * q[1], p[2] * q[2], p[3] * q[3]}
}

// Div returns the component-wise integer division of the receiver by q.
func (p TZYX) Div(q TZYX) TZYX {
	return TZYX{p[0] / q[0], p[1] / q[1], p[2] / q[2], p[3] / q[3]}
}

// Mod returns the component-wise remainder of the receiver modulo q.
func (p TZYX) Mod(q TZYX) TZYX {
	return TZYX{p[0] % q[0], p[1] % q[1], p[2] % q[2], p[3] % q[3]}
}

// CeilDiv returns the component-wise ceiling division of the receiver by q.
// It is used to derive chunk-grid dimensions from extents and chunk sizes.
func (p TZYX) CeilDiv(q TZYX) TZYX {
	var r TZYX
	for i := 0; i < NumAxes; i++ {
		r[i] = (p[i] + q[i] - 1) / q[i]
	}
	return r
}

// Max returns a vector with the maximum of each pair of components.
func (p TZYX) Max(q TZYX) TZYX {
	r := p
	for i := 0; i < NumAxes; i++ {
		if q[i] > r[i] {
			r[i] = q[i]
		}
	}
	return r
}

// Min returns a vector with the minimum of each pair of components.
func (p TZYX) Min(q TZYX) TZYX {
	r := p
	for i := 0; i < NumAxes; i++ {
		if q[i] < r[i] {
			r[i] = q[i]
		}
	}
	return r
}

// WithC returns the TCZYX vector formed by inserting the given channel
// component.
func (p TZYX) WithC(c int32) TCZYX {
	return TCZYX{p[0], c, p[1], p[2], p[3]}
}

func (p TZYX) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", p[0], p[1], p[2], p[3])
}

// TCZYX holds one value per image axis in fixed (T, C, Z, Y, X) order,
// matching the sample ordering of loaded image buffers.
type TCZYX [5]int32

// C returns the channel-axis component.
func (p TCZYX) C() int32 { return p[1] }

// TZYX projects away the channel axis.
func (p TCZYX) TZYX() TZYX {
	return TZYX{p[0], p[2], p[3], p[4]}
}

// Mult returns the component-wise product of two vectors.
func (p TCZYX) Mult(q TCZYX) TCZYX {
	return TCZYX{p[0] * q[0], p[1] * q[1], p[2] * q[2], p[3] * q[3], p[4] * q[4]}
}

// CeilDiv returns the component-wise ceiling division of the receiver by q.
func (p TCZYX) CeilDiv(q TCZYX) TCZYX {
	var r TCZYX
	for i := 0; i < 5; i++ {
		r[i] = (p[i] + q[i] - 1) / q[i]
	}
	return r
}

// Prod returns the product of all components.
func (p TCZYX) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2]) * int64(p[3]) * int64(p[4])
}

func (p TCZYX) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d,%d)", p[0], p[1], p[2], p[3], p[4])
}

// StringToTZYX parses a string like "17,1501,512,484" into a TZYX.
func StringToTZYX(s, sep string) (p TZYX, err error) {
	parts := strings.Split(s, sep)
	if len(parts) != NumAxes {
		err = fmt.Errorf("cannot parse %q as TZYX: expected %d components, got %d", s, NumAxes, len(parts))
		return
	}
	for i, part := range parts {
		v, convErr := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if convErr != nil {
			err = fmt.Errorf("cannot parse component %d of %q: %v", i, s, convErr)
			return
		}
		p[i] = int32(v)
	}
	return
}

// SliceToTZYX converts a slice of integers, as decoded from a TOML array,
// into a TZYX.
func SliceToTZYX(v []int64) (p TZYX, err error) {
	if len(v) != NumAxes {
		err = fmt.Errorf("expected %d TZYX components, got %d", NumAxes, len(v))
		return
	}
	for i, c := range v {
		p[i] = int32(c)
	}
	return
}

// SliceToTCZYX converts a slice of integers into a TCZYX.
func SliceToTCZYX(v []int64) (p TCZYX, err error) {
	if len(v) != 5 {
		err = fmt.Errorf("expected 5 TCZYX components, got %d", len(v))
		return
	}
	for i, c := range v {
		p[i] = int32(c)
	}
	return
}

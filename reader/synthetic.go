package reader

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/blockflow/blockflow"
)

// Synthetic is a deterministic in-memory Source used for tests and dry
// runs.  Every sample value is a pure function of its absolute TCZYX
// coordinate, so reads of overlapping regions always agree.
type Synthetic struct {
	extents blockflow.TCZYX
	scenes  map[int]Rect
}

// NewSynthetic returns a synthetic image with the given total extents and
// a total bounding rectangle anchored at the origin.
func NewSynthetic(extents blockflow.TCZYX) *Synthetic {
	return &Synthetic{
		extents: extents,
		scenes:  make(map[int]Rect),
	}
}

// SetScene records a bounding rectangle for a scene.
func (s *Synthetic) SetScene(scene int, r Rect) {
	s.scenes[scene] = r
}

// Value returns the sample at an absolute TCZYX coordinate.
func (s *Synthetic) Value(t, c, z, y, x int32) uint16 {
	return uint16(t*31 + c*301 + z*47 + y*11 + x*3)
}

// --- Source implementation ------

func (s *Synthetic) Extents() blockflow.TCZYX {
	return s.extents
}

func (s *Synthetic) TotalBounds() Rect {
	return Rect{X: 0, Y: 0, W: s.extents[4], H: s.extents[3]}
}

func (s *Synthetic) SceneBounds(scene int) (Rect, bool) {
	r, found := s.scenes[scene]
	return r, found
}

func (s *Synthetic) ReadRegion(ctx context.Context, scene int, t, z, y, x blockflow.Span) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Start < 0 || t.Stop > s.extents[0] {
		return nil, fmt.Errorf("t range %s outside image extent %d", t, s.extents[0])
	}
	if z.Start < 0 || z.Stop > s.extents[2] {
		return nil, fmt.Errorf("z range %s outside image extent %d", z, s.extents[2])
	}
	bounds := Bounds(s, scene)
	if !blockflow.RangeContains(y, bounds.YSpan()) || !blockflow.RangeContains(x, bounds.XSpan()) {
		return nil, fmt.Errorf("input range lies outside image: y %s x %s, bounds %+v", y, x, bounds)
	}

	shape := RegionShape(s, t, z, y, x)
	data := make([]uint16, shape.Prod())
	i := 0
	for ti := t.Start; ti < t.Stop; ti++ {
		for c := int32(0); c < s.extents[1]; c++ {
			for zi := z.Start; zi < z.Stop; zi++ {
				for yi := y.Start; yi < y.Stop; yi++ {
					for xi := x.Start; xi < x.Stop; xi++ {
						data[i] = s.Value(ti, c, zi, yi, xi)
						i++
					}
				}
			}
		}
	}
	return data, nil
}

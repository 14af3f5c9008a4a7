// Package boundary holds the read-only geographic reference sets the
// eligibility classifier tests parcels against: polygon collections for
// tract/ZIP level designations and FIPS lists for county-level ones.
package boundary

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Feature is one named polygon in a set: a census tract, a ZIP area, or any
// other designated geography. Bounds are cached at construction for the
// cheap prefilter.
type Feature struct {
	Key    string
	Geom   *geom.MultiPolygon
	bounds *geom.Bounds
}

// NewFeature builds a Feature and caches its bounding box.
func NewFeature(key string, mp *geom.MultiPolygon) (Feature, error) {
	if mp == nil || mp.NumPolygons() == 0 {
		return Feature{}, eris.Errorf("boundary: feature %q has no polygons", key)
	}
	return Feature{Key: key, Geom: mp, bounds: mp.Bounds()}, nil
}

// PolygonSet is a collection of designated-area polygons loaded once per
// batch and never mutated during evaluation.
type PolygonSet struct {
	Name     string
	Vintage  int
	Features []Feature
}

// Contains reports whether the point falls inside any feature of the set and
// returns the matching feature key. Uses a bounding-box prefilter, then
// odd-even ray casting against each polygon's rings (exterior minus holes).
func (s *PolygonSet) Contains(lat, lon float64) (string, bool) {
	if s == nil {
		return "", false
	}
	for i := range s.Features {
		f := &s.Features[i]
		if !f.bounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat}) {
			continue
		}
		if multiPolygonContains(f.Geom, lon, lat) {
			return f.Key, true
		}
	}
	return "", false
}

// Len returns the number of features in the set.
func (s *PolygonSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Features)
}

// RingsToMultiPolygon assembles flat XY rings into a hole-aware
// multipolygon using shapefile winding rules: clockwise rings are exterior
// shells, counter-clockwise rings are holes belonging to the shell that
// encloses them. Degenerate rings are dropped; a record wound entirely
// counter-clockwise is treated as hole-free shells rather than discarded.
// Returns nil when no usable shell remains.
func RingsToMultiPolygon(rings [][]float64) *geom.MultiPolygon {
	type shellRings struct {
		shell []float64
		holes [][]float64
	}

	var shells []shellRings
	var holes [][]float64
	for _, ring := range rings {
		if len(ring) < 6 || len(ring)%2 != 0 {
			continue
		}
		area := signedArea(ring)
		switch {
		case area < 0:
			shells = append(shells, shellRings{shell: ring})
		case area > 0:
			holes = append(holes, ring)
		}
	}

	if len(shells) == 0 {
		for _, ring := range holes {
			shells = append(shells, shellRings{shell: ring})
		}
		holes = nil
	}

	for _, hole := range holes {
		for i := range shells {
			if rayCast(shells[i].shell, 2, hole[0], hole[1]) {
				shells[i].holes = append(shells[i].holes, hole)
				break
			}
		}
		// A hole outside every shell carries no area either way; dropped.
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, s := range shells {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, s.shell)); err != nil {
			continue
		}
		for _, hole := range s.holes {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, hole)); err != nil {
				continue
			}
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is twice the shoelace sum of a flat XY ring. Positive means
// counter-clockwise winding.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	j := n - 1
	for i := 0; i < n; i++ {
		sum += flat[j*2]*flat[i*2+1] - flat[i*2]*flat[j*2+1]
		j = i
	}
	return sum
}

// multiPolygonContains tests point membership against every polygon of mp.
// A point is inside a polygon when it is inside the exterior ring and not
// inside any interior (hole) ring.
func multiPolygonContains(mp *geom.MultiPolygon, x, y float64) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !ringContains(poly.LinearRing(0), x, y) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if ringContains(poly.LinearRing(r), x, y) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// ringContains is the standard even-odd ray cast: count crossings of a
// horizontal ray from (x, y) toward +x.
func ringContains(ring *geom.LinearRing, x, y float64) bool {
	return rayCast(ring.FlatCoords(), ring.Stride(), x, y)
}

func rayCast(coords []float64, stride int, x, y float64) bool {
	n := len(coords) / stride
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := coords[i*stride], coords[i*stride+1]
		xj, yj := coords[j*stride], coords[j*stride+1]
		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

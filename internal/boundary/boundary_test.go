package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// square builds a closed unit square MultiPolygon from (x0,y0) to (x1,y1).
func square(x0, y0, x1, y1 float64) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0,
	})
	if err := poly.Push(ring); err != nil {
		panic(err)
	}
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return mp
}

// squareWithHole is a square with a smaller square hole cut out of its middle.
func squareWithHole() *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	poly := geom.NewPolygon(geom.XY)
	outer := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0})
	hole := geom.NewLinearRingFlat(geom.XY, []float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4})
	if err := poly.Push(outer); err != nil {
		panic(err)
	}
	if err := poly.Push(hole); err != nil {
		panic(err)
	}
	if err := mp.Push(poly); err != nil {
		panic(err)
	}
	return mp
}

func newSet(t *testing.T, name string, features ...Feature) *PolygonSet {
	t.Helper()
	return &PolygonSet{Name: name, Vintage: 2025, Features: features}
}

func TestPolygonSetContains(t *testing.T) {
	t.Parallel()

	fa, err := NewFeature("48453001100", square(-97.8, 30.2, -97.6, 30.4))
	require.NoError(t, err)
	fb, err := NewFeature("48453001200", square(-97.6, 30.2, -97.4, 30.4))
	require.NoError(t, err)
	set := newSet(t, "qct_metro", fa, fb)

	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantKey string
		wantOK  bool
	}{
		{"inside first tract", 30.3, -97.7, "48453001100", true},
		{"inside second tract", 30.3, -97.5, "48453001200", true},
		{"outside both", 30.3, -97.9, "", false},
		{"far away", 40.0, -74.0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := set.Contains(tt.lat, tt.lon)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestPolygonSetHole(t *testing.T) {
	t.Parallel()

	f, err := NewFeature("donut", squareWithHole())
	require.NoError(t, err)
	set := newSet(t, "dda_metro", f)

	_, ok := set.Contains(2, 2) // in the ring, outside the hole
	assert.True(t, ok)

	_, ok = set.Contains(5, 5) // inside the hole
	assert.False(t, ok)
}

// cwRing and ccwRing produce closed square rings in the two winding orders
// shapefiles use: clockwise for shells, counter-clockwise for holes.
func cwRing(x0, y0, x1, y1 float64) []float64 {
	return []float64{x0, y0, x0, y1, x1, y1, x1, y0, x0, y0}
}

func ccwRing(x0, y0, x1, y1 float64) []float64 {
	return []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}
}

func TestRingsToMultiPolygonDonut(t *testing.T) {
	t.Parallel()

	mp := RingsToMultiPolygon([][]float64{
		cwRing(0, 0, 10, 10),
		ccwRing(4, 4, 6, 6),
	})
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())

	f, err := NewFeature("donut", mp)
	require.NoError(t, err)
	set := newSet(t, "qct_metro", f)

	_, ok := set.Contains(2, 2) // in the ring, outside the hole
	assert.True(t, ok)

	_, ok = set.Contains(5, 5) // inside the hole
	assert.False(t, ok)
}

func TestRingsToMultiPolygonAssignsHoleToEnclosingShell(t *testing.T) {
	t.Parallel()

	// Two disjoint shells; the hole sits inside the second one.
	mp := RingsToMultiPolygon([][]float64{
		cwRing(0, 0, 10, 10),
		cwRing(20, 0, 30, 10),
		ccwRing(24, 4, 26, 6),
	})
	require.NotNil(t, mp)
	require.Equal(t, 2, mp.NumPolygons())
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
	assert.Equal(t, 2, mp.Polygon(1).NumLinearRings())

	f, err := NewFeature("pair", mp)
	require.NoError(t, err)
	set := newSet(t, "qct_metro", f)

	_, ok := set.Contains(5, 5) // first shell is solid
	assert.True(t, ok)

	_, ok = set.Contains(5, 25) // hole in the second shell
	assert.False(t, ok)

	_, ok = set.Contains(2, 22) // second shell outside its hole
	assert.True(t, ok)
}

func TestRingsToMultiPolygonBackwardsWinding(t *testing.T) {
	t.Parallel()

	// A record wound entirely counter-clockwise keeps its area instead of
	// being read as all holes.
	mp := RingsToMultiPolygon([][]float64{ccwRing(0, 0, 1, 1)})
	require.NotNil(t, mp)
	require.Equal(t, 1, mp.NumPolygons())

	f, err := NewFeature("ccw", mp)
	require.NoError(t, err)
	set := newSet(t, "qct_metro", f)
	_, ok := set.Contains(0.5, 0.5)
	assert.True(t, ok)
}

func TestRingsToMultiPolygonDegenerate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, RingsToMultiPolygon(nil))
	assert.Nil(t, RingsToMultiPolygon([][]float64{{0, 0, 1, 1}}))          // too few points
	assert.Nil(t, RingsToMultiPolygon([][]float64{{0, 0, 1, 1, 2, 2, 0}})) // odd length
}

func TestNilSetContains(t *testing.T) {
	t.Parallel()
	var s *PolygonSet
	_, ok := s.Contains(30, -97)
	assert.False(t, ok)
}

func TestNewFeatureEmpty(t *testing.T) {
	t.Parallel()
	_, err := NewFeature("empty", geom.NewMultiPolygon(geom.XY))
	assert.Error(t, err)
}

func TestCountySet(t *testing.T) {
	t.Parallel()
	set := NewCountySet("nonmetro_dda", 2025, []string{"48301", " 35013 ", ""})
	assert.True(t, set.Contains("48301"))
	assert.True(t, set.Contains("35013"))
	assert.False(t, set.Contains("48453"))
	assert.Equal(t, 2, set.Len())

	var nilSet *CountySet
	assert.False(t, nilSet.Contains("48453"))
}

func TestFoldCountyName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"Doña Ana County", "dona ana"},
		{"TRAVIS COUNTY", "travis"},
		{"St. Landry Parish", "st. landry"},
		{"  Matanuska-Susitna   Borough ", "matanuska-susitna"},
		{"Travis", "travis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FoldCountyName(tt.in), tt.in)
	}
}

func TestOldestVintage(t *testing.T) {
	t.Parallel()

	f, err := NewFeature("k", square(0, 0, 1, 1))
	require.NoError(t, err)

	c := &Collection{
		MetroQCT:    &PolygonSet{Name: "qct", Vintage: 2024, Features: []Feature{f}},
		MetroDDA:    &PolygonSet{Name: "dda", Vintage: 2025, Features: []Feature{f}},
		NonMetroDDA: NewCountySet("nm_dda", 2023, []string{"48301"}),
	}
	assert.Equal(t, 2023, c.OldestVintage())

	empty := &Collection{}
	assert.Equal(t, 0, empty.OldestVintage())
}

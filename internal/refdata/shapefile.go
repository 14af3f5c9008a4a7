package refdata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/boundary"
)

// LoadBoundarySet reads a designation shapefile into a polygon set, keyed by
// the given attribute field (GEOID for tracts, ZCTA5 for ZIP areas).
func LoadBoundarySet(shpPath, keyField, name string, vintage int) (*boundary.PolygonSet, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Field name -> index; dbf field names are fixed-width and NUL padded.
	fields := reader.Fields()
	keyIdx := -1
	for i, f := range fields {
		fname := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(fname, keyField) {
			keyIdx = i
			break
		}
	}
	if keyIdx == -1 {
		return nil, eris.Errorf("refdata: shapefile %s has no field %q", shpPath, keyField)
	}

	set := &boundary.PolygonSet{Name: name, Vintage: vintage}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		key := strings.TrimSpace(strings.TrimRight(reader.Attribute(keyIdx), "\x00"))
		if key == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}

		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		feature, ferr := boundary.NewFeature(key, mp)
		if ferr != nil {
			skipped++
			continue
		}
		set.Features = append(set.Features, feature)
	}

	if skipped > 0 {
		zap.L().Debug("refdata: skipped shapefile records",
			zap.String("set", name),
			zap.Int("skipped", skipped),
		)
	}
	if len(set.Features) == 0 {
		return nil, eris.Errorf("refdata: shapefile %s produced no usable features", shpPath)
	}

	return set, nil
}

// polygonToMultiPolygon converts a shapefile polygon record, splitting its
// flat point list into ring parts. Shell/hole assignment by winding order
// happens in the boundary package so interior rings subtract area instead
// of adding it.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	rings := make([][]float64, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		rings = append(rings, flat)
	}

	return boundary.RingsToMultiPolygon(rings)
}

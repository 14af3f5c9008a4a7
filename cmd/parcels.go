package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitescore/internal/fetcher"
	"github.com/sells-group/sitescore/internal/model"
	"github.com/sells-group/sitescore/pkg/geocode"
)

// mixColumns maps CSV share columns to unit sizes.
var mixColumns = map[string]model.UnitSize{
	"studio": model.Studio,
	"1br":    model.OneBedroom,
	"2br":    model.TwoBedroom,
	"3br":    model.ThreeBedroom,
	"4br":    model.FourBedroom,
}

// readParcelsCSV reads a header-driven parcel CSV. Rows missing coordinates
// are kept with (0,0) so the engine marks them indeterminate, unless the
// caller geocodes them first.
func readParcelsCSV(path string) ([]model.Parcel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadCSV(f, fetcher.CSVOptions{HasHeader: true, TrimSpace: true})
	if err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, eris.New("batch: csv missing id column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	floatField := func(row []string, name string) float64 {
		v, err := strconv.ParseFloat(field(row, name), 64)
		if err != nil {
			return 0
		}
		return v
	}
	intField := func(row []string, name string) int {
		v, err := strconv.Atoi(field(row, name))
		if err != nil {
			return 0
		}
		return v
	}

	parcels := make([]model.Parcel, 0, len(rows))
	var constructionDefaulted int
	for n, row := range rows {
		p := model.Parcel{
			ID:           field(row, "id"),
			Address:      field(row, "address"),
			Lat:          floatField(row, "lat"),
			Lon:          floatField(row, "lon"),
			CountyFIPS:   field(row, "county_fips"),
			City:         field(row, "city"),
			RegionID:     field(row, "region_id"),
			Acreage:      floatField(row, "acreage"),
			Units:        intField(row, "units"),
			HazardZone:   field(row, "hazard_zone"),
			AnalysisYear: intField(row, "analysis_year"),
			AuxPoints:    floatField(row, "aux_points"),
		}
		if p.ID == "" {
			zap.L().Warn("skipping parcel row without id", zap.Int("row", n+2))
			continue
		}

		if track := field(row, "track"); track != "" {
			parsed, perr := model.ParseTrack(track)
			if perr != nil {
				return nil, eris.Wrapf(perr, "batch: row %d", n+2)
			}
			p.Track = parsed
		}
		if construction := field(row, "construction"); construction != "" {
			parsed, perr := model.ParseConstructionType(construction)
			if perr != nil {
				return nil, eris.Wrapf(perr, "batch: row %d", n+2)
			}
			p.Construction = parsed
		} else {
			p.Construction = model.NewConstruction
			constructionDefaulted++
		}

		mix := make(map[model.UnitSize]float64)
		for name, size := range mixColumns {
			if share := floatField(row, name); share > 0 {
				mix[size] = share
			}
		}
		if len(mix) > 0 {
			p.UnitMix = mix
		}

		parcels = append(parcels, p)
	}

	if constructionDefaulted > 0 {
		zap.L().Info("construction type missing, defaulted to new_construction",
			zap.Int("rows", constructionDefaulted),
		)
	}

	return parcels, nil
}

// geocodeParcels fills in coordinates and county FIPS for parcels that have
// an address but no coordinates. Unmatched addresses stay at (0,0) and are
// marked indeterminate by the engine.
func geocodeParcels(ctx context.Context, client geocode.Client, parcels []model.Parcel, concurrency int) {
	var addrs []geocode.AddressInput
	var idx []int
	for i, p := range parcels {
		if p.ValidCoordinates() || p.Address == "" {
			continue
		}
		addrs = append(addrs, geocode.AddressInput{ID: p.ID, Street: p.Address, City: p.City})
		idx = append(idx, i)
	}
	if len(addrs) == 0 {
		return
	}

	zap.L().Info("geocoding parcels", zap.Int("count", len(addrs)))

	results, err := geocode.Batch(ctx, client, addrs, concurrency)
	if err != nil {
		zap.L().Warn("geocoding aborted", zap.Error(err))
		return
	}

	var matched int
	for j, r := range results {
		if !r.Matched {
			continue
		}
		i := idx[j]
		parcels[i].Lat = r.Lat
		parcels[i].Lon = r.Lon
		if parcels[i].CountyFIPS == "" {
			parcels[i].CountyFIPS = r.CountyFIPS
		}
		matched++
	}

	zap.L().Info("geocoding complete",
		zap.Int("matched", matched),
		zap.Int("unmatched", len(addrs)-matched),
	)
}

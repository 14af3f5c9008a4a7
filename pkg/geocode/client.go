// Package geocode resolves street addresses to coordinates and county FIPS
// codes via the Census Geocoder.
package geocode

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Client is a single geocoding backend.
type Client interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	Available() bool
}

// AddressInput is an address to geocode.
type AddressInput struct {
	ID      string // optional identifier for batch correlation
	Street  string
	City    string
	State   string
	ZipCode string
}

// OneLine formats the address as a single comma-separated line.
func (a AddressInput) OneLine() string {
	parts := []string{a.Street, a.City, a.State, a.ZipCode}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// Result holds the geocoding output for an address. An unmatched address is
// not an error; callers must treat Matched=false as "location unknown" and
// never fall back to (0,0).
type Result struct {
	Lat        float64
	Lon        float64
	Matched    bool
	Quality    string // "rooftop" or "approximate"
	CountyFIPS string
	Source     string
}

// Batch geocodes addresses in parallel, preserving input order. Individual
// failures become unmatched results rather than failing the batch.
func Batch(ctx context.Context, c Client, addrs []AddressInput, concurrency int) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = fmt.Sprintf("%d", i)
		}
	}

	results := make([]Result, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, addr := range addrs {
		g.Go(func() error {
			r, err := c.Geocode(gctx, addr)
			if err != nil || r == nil {
				results[i] = Result{Matched: false, Source: c.Name()}
				return nil //nolint:nilerr // individual geocode failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchedResponse = `{
	"result": {
		"addressMatches": [{
			"coordinates": {"x": -97.743, "y": 30.267},
			"matchedAddress": "100 CONGRESS AVE, AUSTIN, TX, 78701",
			"geographies": {
				"Counties": [{"GEOID": "48453", "NAME": "Travis County"}]
			}
		}]
	}
}`

const unmatchedResponse = `{"result": {"addressMatches": []}}`

func testClient(t *testing.T, handler http.HandlerFunc) *CensusClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewCensusClient(WithBaseURL(ts.URL))
}

func austinAddr() AddressInput {
	return AddressInput{
		Street:  "100 Congress Ave",
		City:    "Austin",
		State:   "TX",
		ZipCode: "78701",
	}
}

func TestGeocode_Match(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/geocoder/geographies/onelineaddress")
		assert.Equal(t, "100 Congress Ave, Austin, TX, 78701", r.URL.Query().Get("address"))
		assert.Equal(t, censusBenchmark, r.URL.Query().Get("benchmark"))
		fmt.Fprint(w, matchedResponse)
	})

	res, err := c.Geocode(context.Background(), austinAddr())
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 30.267, res.Lat, 1e-9)
	assert.InDelta(t, -97.743, res.Lon, 1e-9)
	assert.Equal(t, "48453", res.CountyFIPS)
	assert.Equal(t, "rooftop", res.Quality)
	assert.Equal(t, "census", res.Source)
}

func TestGeocode_NoMatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, unmatchedResponse)
	})

	res, err := c.Geocode(context.Background(), austinAddr())
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, res.Lat)
	assert.Zero(t, res.Lon)
}

func TestGeocode_ServerError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Geocode(context.Background(), austinAddr())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGeocode_EmptyAddress(t *testing.T) {
	c := NewCensusClient()

	res, err := c.Geocode(context.Background(), AddressInput{})
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestBatch_PreservesOrderAndAbsorbsFailures(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, matchedResponse)
	})

	addrs := make([]AddressInput, 4)
	for i := range addrs {
		addrs[i] = austinAddr()
		addrs[i].ID = fmt.Sprintf("a-%d", i)
	}

	results, err := Batch(context.Background(), c, addrs, 1)
	require.NoError(t, err)
	require.Len(t, results, 4)

	var matched, unmatched int
	for _, r := range results {
		if r.Matched {
			matched++
			assert.Equal(t, "48453", r.CountyFIPS)
		} else {
			unmatched++
		}
	}
	assert.Equal(t, 2, matched)
	assert.Equal(t, 2, unmatched)
}

func TestBatch_Empty(t *testing.T) {
	results, err := Batch(context.Background(), NewCensusClient(), nil, 4)
	require.NoError(t, err)
	assert.Nil(t, results)
}

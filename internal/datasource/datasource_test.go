package datasource

import (
	"context"
	"cropstudy/internal/gateway"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weatherJSON = `{
	"station": "NL-260",
	"latitude": 52.1,
	"longitude": 5.18,
	"elevation": 1.9,
	"days": [
		{"date": "2019-03-01", "tmin": 1.5, "tmax": 9.25, "rain": 0.4, "radiation": 6200, "wind": 3.1, "vapour": 0.82}
	]
}`

func newServer(t *testing.T, weatherHits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/fields/count", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("crop") != "256" || q.Get("year") != "2019" || q.Get("geometry") == "" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"count": 4500}`))
	})
	mux.HandleFunc("GET /api/weather/{id}", func(w http.ResponseWriter, r *http.Request) {
		weatherHits.Add(1)
		if r.PathValue("id") != "NL-260" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(weatherJSON))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCountFields(t *testing.T) {
	var hits atomic.Int64
	server := newServer(t, &hits)
	c := New(gateway.NewClient(gateway.Config{}, nil), server.URL+"/api/", "")

	n, err := c.CountFields(context.Background(), "POLYGON((0 0,1 0,1 1,0 0))", 256, 2019)
	require.NoError(t, err)
	assert.Equal(t, 4500, n)

	_, err = c.CountFields(context.Background(), "POLYGON((0 0,1 0,1 1,0 0))", 233, 2019)
	require.Error(t, err)
	assert.True(t, gateway.IsClientError(err))
}

func TestCountFieldsMissingCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": 3}`))
	}))
	defer server.Close()

	c := New(gateway.NewClient(gateway.Config{}, nil), server.URL, "")
	_, err := c.CountFields(context.Background(), "POINT(0 0)", 256, 2019)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid count")
}

func TestWeatherCached(t *testing.T) {
	var hits atomic.Int64
	server := newServer(t, &hits)
	c := New(gateway.NewClient(gateway.Config{}, nil), server.URL+"/api", "")

	for range 3 {
		series, err := c.Weather(context.Background(), "NL-260")
		require.NoError(t, err)
		assert.Equal(t, "NL-260", series.Station)
		require.Len(t, series.Days, 1)
		assert.Equal(t, 9.25, series.Days[0].TMax)
	}
	assert.Equal(t, int64(1), hits.Load())

	_, err := c.Weather(context.Background(), "XX-000")
	require.Error(t, err)
	_, err = c.Weather(context.Background(), "XX-000")
	require.Error(t, err)
	assert.Equal(t, int64(3), hits.Load(), "failures are not cached")
}

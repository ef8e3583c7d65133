package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// DataService is a stand-in for the auxiliary data service. It answers
// every field count with Count, or with StatusCode when that is set.
type DataService struct {
	Server *httptest.Server

	count      atomic.Int64
	statusCode atomic.Int64
	requests   atomic.Int64
}

// NewDataService starts a fake data service that is closed when the test ends.
func NewDataService(tb testing.TB, count int) *DataService {
	tb.Helper()
	d := &DataService{}
	d.count.Store(int64(count))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fields/count", func(w http.ResponseWriter, r *http.Request) {
		d.requests.Add(1)
		if code := d.statusCode.Load(); code != 0 {
			http.Error(w, "data service unavailable", int(code))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"count": %d}`, d.count.Load())
	})
	d.Server = httptest.NewServer(mux)
	tb.Cleanup(d.Server.Close)
	return d
}

// URL is the service base URL.
func (d *DataService) URL() string {
	return d.Server.URL
}

// Fail makes every following request answer with code.
func (d *DataService) Fail(code int) {
	d.statusCode.Store(int64(code))
}

// Requests is the number of requests received.
func (d *DataService) Requests() int64 {
	return d.requests.Load()
}

// SetCount changes the answer to field count requests.
func (d *DataService) SetCount(n int) {
	d.count.Store(int64(n))
}

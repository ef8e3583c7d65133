package testutil

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// JobScript describes how the fake service treats one job. The zero value
// accepts the job and succeeds on the first poll with empty artifacts.
type JobScript struct {
	ExecuteStatus int    // non-zero: answer the execute request with this HTTP status
	Reject        string // non-empty: answer the execute request with an exception report
	StatusCode    int    // non-zero: answer every status poll with this HTTP status
	RunningPolls  int    // polls answered as running before the terminal status
	Fail          string // non-empty: terminal status is ProcessFailed with this text
	NoLog         bool   // omit the log output
	LogStatus     int    // non-zero: answer the log download with this HTTP status
	Log           string
	States        string
	Summary       string
}

// WPS is a scripted stand-in for the remote processing service. Jobs are
// matched by finding their id in the execute request body.
type WPS struct {
	Server *httptest.Server

	mu      sync.Mutex
	scripts map[string]JobScript
	polls   map[string]int

	executes     atomic.Int64
	capabilities atomic.Int64
}

// NewWPS starts a fake service that is closed when the test ends.
func NewWPS(tb testing.TB) *WPS {
	tb.Helper()
	w := &WPS{
		scripts: make(map[string]JobScript),
		polls:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /wps", w.handleExecute)
	mux.HandleFunc("GET /wps", w.handleCapabilities)
	mux.HandleFunc("GET /status/{id}", w.handleStatus)
	mux.HandleFunc("GET /out/{id}/{name}", w.handleOutput)
	w.Server = httptest.NewServer(mux)
	tb.Cleanup(w.Server.Close)
	return w
}

// URL is the execute endpoint.
func (w *WPS) URL() string {
	return w.Server.URL + "/wps"
}

// Script registers the behaviour for jobID.
func (w *WPS) Script(jobID string, s JobScript) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scripts[jobID] = s
}

// Executes is the number of execute requests received.
func (w *WPS) Executes() int64 {
	return w.executes.Load()
}

// Capabilities is the number of GetCapabilities requests received.
func (w *WPS) Capabilities() int64 {
	return w.capabilities.Load()
}

// Polls is the number of status requests received for jobID.
func (w *WPS) Polls(jobID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polls[jobID]
}

func (w *WPS) handleExecute(rw http.ResponseWriter, r *http.Request) {
	w.executes.Add(1)
	body, _ := io.ReadAll(r.Body)

	w.mu.Lock()
	var (
		jobID  string
		script JobScript
	)
	for id, s := range w.scripts {
		if strings.Contains(string(body), id) {
			jobID, script = id, s
			break
		}
	}
	w.mu.Unlock()

	switch {
	case jobID == "":
		http.Error(rw, "unknown job", http.StatusBadRequest)
	case script.ExecuteStatus != 0:
		http.Error(rw, "execute failed", script.ExecuteStatus)
	case script.Reject != "":
		writeXML(rw, exceptionReport(script.Reject))
	default:
		writeXML(rw, fmt.Sprintf(`<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0" statusLocation="%s/status/%s">
  <wps:Status><wps:ProcessAccepted>queued</wps:ProcessAccepted></wps:Status>
</wps:ExecuteResponse>`, w.Server.URL, jobID))
	}
}

func (w *WPS) handleCapabilities(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("request") != "GetCapabilities" {
		http.Error(rw, "unsupported request", http.StatusBadRequest)
		return
	}
	w.capabilities.Add(1)
	writeXML(rw, `<wps:Capabilities xmlns:wps="http://www.opengis.net/wps/1.0.0" service="WPS" version="1.0.0"/>`)
}

func (w *WPS) handleStatus(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	w.mu.Lock()
	script, ok := w.scripts[id]
	w.polls[id]++
	poll := w.polls[id]
	w.mu.Unlock()

	switch {
	case !ok:
		http.NotFound(rw, r)
	case script.StatusCode != 0:
		http.Error(rw, "status unavailable", script.StatusCode)
	case poll <= script.RunningPolls:
		writeXML(rw, fmt.Sprintf(`<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0">
  <wps:Status><wps:ProcessStarted percentCompleted="%d">running</wps:ProcessStarted></wps:Status>
</wps:ExecuteResponse>`, poll*100/(script.RunningPolls+1)))
	case script.Fail != "":
		writeXML(rw, fmt.Sprintf(`<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <wps:Status><wps:ProcessFailed>%s</wps:ProcessFailed></wps:Status>
  <wps:ProcessOutputs>%s</wps:ProcessOutputs>
</wps:ExecuteResponse>`, exceptionReport(script.Fail), w.outputs(id, script, true)))
	default:
		writeXML(rw, fmt.Sprintf(`<wps:ExecuteResponse xmlns:wps="http://www.opengis.net/wps/1.0.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <wps:Status><wps:ProcessSucceeded>done</wps:ProcessSucceeded></wps:Status>
  <wps:ProcessOutputs>%s</wps:ProcessOutputs>
</wps:ExecuteResponse>`, w.outputs(id, script, false)))
	}
}

func (w *WPS) outputs(id string, s JobScript, logOnly bool) string {
	var b strings.Builder
	ref := func(output, name string) {
		fmt.Fprintf(&b, `<wps:Output><ows:Identifier>%s</ows:Identifier><wps:Reference href="%s/out/%s/%s"/></wps:Output>`,
			output, w.Server.URL, id, name)
	}
	if !s.NoLog {
		ref("f0", "log")
	}
	if !logOnly {
		ref("f1", "states")
		ref("f2", "summary")
	}
	return b.String()
}

func (w *WPS) handleOutput(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	script, ok := w.scripts[r.PathValue("id")]
	w.mu.Unlock()
	if !ok {
		http.NotFound(rw, r)
		return
	}

	switch r.PathValue("name") {
	case "log":
		if script.LogStatus != 0 {
			http.Error(rw, "log unavailable", script.LogStatus)
			return
		}
		io.WriteString(rw, script.Log)
	case "states":
		io.WriteString(rw, script.States)
	case "summary":
		rw.Header().Set("Content-Type", "application/json")
		io.WriteString(rw, script.Summary)
	default:
		http.NotFound(rw, r)
	}
}

func exceptionReport(text string) string {
	return fmt.Sprintf(`<ows:ExceptionReport xmlns:ows="http://www.opengis.net/ows/1.1" version="1.0.0">
  <ows:Exception exceptionCode="NoApplicableCode"><ows:ExceptionText>%s</ows:ExceptionText></ows:Exception>
</ows:ExceptionReport>`, html.EscapeString(text))
}

func writeXML(rw http.ResponseWriter, doc string) {
	rw.Header().Set("Content-Type", "text/xml")
	io.WriteString(rw, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+doc)
}

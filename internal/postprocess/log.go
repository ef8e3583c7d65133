package postprocess

import (
	"bufio"
	"bytes"
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/observability"
	"cropstudy/internal/report"
	"log/slog"
	"strings"
)

// Log detail keys.
const (
	KeyErrors   = "errors"
	KeyWarnings = "warnings"
	KeyInfo     = "info"
	KeyDebug    = "debug"
	KeyTrace    = "trace"
)

// markerFields is how many leading fields of a line are searched for a
// severity marker; timestamps and logger names come first.
const markerFields = 4

var severityKeys = map[string]string{
	"ERROR":   KeyErrors,
	"WARN":    KeyWarnings,
	"WARNING": KeyWarnings,
	"INFO":    KeyInfo,
	"DEBUG":   KeyDebug,
	"TRACE":   KeyTrace,
}

// LogProcessor counts log lines by severity.
type LogProcessor struct {
	base
}

// NewLogProcessor creates a log processor. metrics may be nil.
func NewLogProcessor(gw Getter, credential string, metrics *observability.Metrics) *LogProcessor {
	return &LogProcessor{base{
		gw:         gw,
		credential: credential,
		logger:     slog.With("component", "postprocess", "processor", "log"),
		metrics:    metrics,
	}}
}

// Name returns "log".
func (p *LogProcessor) Name() string { return "log" }

// Process fetches the log at logURL and counts its lines per severity.
func (p *LogProcessor) Process(ctx context.Context, jobID, logURL string) Result {
	res := Result{JobID: jobID, Processor: p.Name()}
	if logURL == "" {
		res.Err = ErrNoArtifact
		return p.record(ctx, res)
	}

	body, err := p.gw.Get(ctx, logURL, p.credential)
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "log.fetch", err)
		return p.record(ctx, res)
	}

	counts, err := CountSeverities(body)
	if err != nil {
		res.Err = apperrors.PostProcessingFailed(jobID, "log.read", err)
		return p.record(ctx, res)
	}

	res.Details = report.Record{}
	for _, key := range []string{KeyErrors, KeyWarnings, KeyInfo, KeyDebug, KeyTrace} {
		res.Details[key] = report.Int(int64(counts[key]))
	}
	res.Errors = counts[KeyErrors]
	return p.record(ctx, res)
}

// CountSeverities counts lines per severity detail key. A line counts once,
// for the first marker among its leading fields.
func CountSeverities(log []byte) (map[string]int, error) {
	counts := make(map[string]int, 5)
	sc := bufio.NewScanner(bytes.NewReader(log))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if key, ok := severityOf(sc.Text()); ok {
			counts[key]++
		}
	}
	return counts, sc.Err()
}

func severityOf(line string) (string, bool) {
	fields := strings.Fields(line)
	for i := 0; i < len(fields) && i < markerFields; i++ {
		marker := strings.ToUpper(strings.Trim(fields[i], "[]:|-"))
		if key, ok := severityKeys[marker]; ok {
			return key, true
		}
	}
	return "", false
}

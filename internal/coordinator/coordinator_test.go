package coordinator

import (
	"context"
	"cropstudy/internal/apperrors"
	"cropstudy/internal/artifact"
	"cropstudy/internal/cropparam"
	"cropstudy/internal/datasource"
	"cropstudy/internal/gateway"
	"cropstudy/internal/postprocess"
	"cropstudy/internal/poller"
	"cropstudy/internal/report"
	"cropstudy/internal/study"
	"cropstudy/internal/submitter"
	"cropstudy/internal/testutil"
	"cropstudy/internal/wps"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobSummary = `{
	"study": {"crop": "sugar beet", "year": 2023},
	"results": [
		{"area": 20000, "tagp_end": 70, "hi_end": 0.5, "lai_max": 5, "tsum_end": 1500, "dvs_end": 1.5},
		{"area": 10000, "tagp_end": 63, "hi_end": 0.4, "lai_max": 4, "tsum_end": 1400, "dvs_end": 2.0}
	]
}`

type harness struct {
	wps   *testutil.WPS
	data  *testutil.DataService
	dir   string
	coord *Coordinator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		wps:  testutil.NewWPS(t),
		data: testutil.NewDataService(t, 0),
		dir:  t.TempDir(),
	}

	gw := gateway.NewClient(gateway.Config{}, nil)
	sub := submitter.New(gw, submitter.Target{
		URL:       h.wps.URL(),
		ProcessID: "cropsim.run",
		Outputs:   wps.DefaultOutputIDs,
	}, submitter.Config{MaxJitter: 5 * time.Millisecond}, nil)
	pol := poller.New(gw, "", wps.DefaultOutputIDs, poller.Config{
		Interval:       10 * time.Millisecond,
		Retries:        1,
		BackoffInitial: 5 * time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
	}, nil, nil)
	ds := datasource.New(gw, h.data.URL(), "")

	h.coord = New(cfg, Deps{
		Submitter: sub,
		Poller:    pol,
		Logs:      postprocess.NewLogProcessor(gw, "", nil),
		Summaries: postprocess.NewSummaryProcessor(gw, "", nil),
		States:    postprocess.NewStatesFetcher(gw, "", nil),
		Data:      ds,
		Params:    cropparam.NewLibrary(h.dir, ds),
		Store:     artifact.NewStore(h.dir),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.coord.Close(ctx)
	})
	return h
}

func fieldStudy(name string, fields int) *study.StudySpec {
	ids := make([]string, fields)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 1000+i)
	}
	spec := &study.StudySpec{
		Name:                name,
		Title:               "Pilot",
		Kind:                study.FieldSet{FieldIDs: ids, Year: 2023},
		BatchSize:           10,
		MaxBatches:          10,
		BatchTimeoutSeconds: 60,
	}
	return spec
}

func TestRun_IsolatesFailures(t *testing.T) {
	h := newHarness(t, Config{Format: FormatJSON})
	for i := 1; i <= 5; i++ {
		id := study.JobID("pilot", i)
		h.wps.Script(id, testutil.JobScript{
			RunningPolls: i % 2,
			Log:          "INFO start\nWARN slow\nINFO done\n",
			States:       "day,DVS\n2023-05-01,0.4\n",
			Summary:      jobSummary,
		})
	}
	h.wps.Script("pilot-0003", testutil.JobScript{Reject: "server busy"})

	res, err := h.coord.Run(context.Background(), fieldStudy("pilot", 50))
	require.NoError(t, err)
	rep := res.Report

	require.Len(t, rep.Entries, 5)
	for i, e := range rep.Entries {
		assert.Equal(t, study.JobID("pilot", i+1), e.JobID, "entries sorted by job id")
	}
	assert.Equal(t, 4, rep.OK)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 8, rep.Results)
	assert.Zero(t, rep.Skipped)

	rejected := rep.Entries[2]
	status, _ := rejected.Get(KeyStatus)
	assert.Equal(t, report.Str(StatusRejected), status)
	reason, _ := rejected.Get(KeyReason)
	assert.Contains(t, reason.String(), "server busy")
	_, hasResults := rejected.Get(postprocess.KeyResults)
	assert.False(t, hasResults, "a rejected job contributes no results")
	assert.Zero(t, h.wps.Polls("pilot-0003"), "a rejected job is never polled")

	ok := rep.Entries[0]
	status, _ = ok.Get(KeyStatus)
	assert.Equal(t, report.Str(StatusSucceeded), status)
	warnings, _ := ok.Get(postprocess.KeyWarnings)
	assert.Equal(t, report.Int(1), warnings)
	dvs, _ := ok.Get(postprocess.KeyDVS)
	assert.Equal(t, report.Int(1), dvs)
	crop, _ := ok.Get("study.crop")
	assert.Equal(t, report.Str("sugar beet"), crop)

	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(4), decoded["ok"])

	states, err := os.ReadFile(res.StatesPath)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(states), "\n"), "header plus one row per succeeded job")

	progress, err := os.ReadFile(filepath.Join(h.dir, "pilot.progress"))
	require.NoError(t, err)
	assert.Equal(t, "100", string(progress))

	snap := h.coord.Snapshot()
	assert.Equal(t, PhaseDone, snap.Phase)
	assert.Equal(t, 5, snap.Jobs)
	assert.Equal(t, 4, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Len(t, snap.Pools, 4)
}

func TestRun_AllFailedStillReports(t *testing.T) {
	h := newHarness(t, Config{})
	h.wps.Script("dry-0001", testutil.JobScript{Fail: "weather missing", Log: "ERROR no weather\n"})

	res, err := h.coord.Run(context.Background(), fieldStudy("dry", 10))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Report.OK)
	assert.Equal(t, 1, res.Report.Failed)
	e := res.Report.Entries[0]
	status, _ := e.Get(KeyStatus)
	assert.Equal(t, report.Str(StatusFailed), status)
	errs, _ := e.Get(postprocess.KeyErrors)
	assert.Equal(t, report.Int(1), errs, "the log of a failed job is still processed")

	assert.True(t, strings.HasSuffix(res.ReportPath, "dry-report.html"))
	states, err := os.ReadFile(res.StatesPath)
	require.NoError(t, err)
	assert.Contains(t, string(states), "no job produced states")
}

func TestRun_UnprocessableSummary(t *testing.T) {
	h := newHarness(t, Config{})
	h.wps.Script("odd-0001", testutil.JobScript{Summary: "<html>proxy error</html>"})

	res, err := h.coord.Run(context.Background(), fieldStudy("odd", 10))
	require.NoError(t, err)

	status, _ := res.Report.Entries[0].Get(KeyStatus)
	assert.Equal(t, report.Str(StatusUnprocessable), status)
	assert.Equal(t, 1, res.Report.OK, "a succeeded job without log errors is ok")
	assert.Zero(t, res.Report.Results)
}

func TestRun_LogNotReadable(t *testing.T) {
	h := newHarness(t, Config{})
	h.wps.Script("blind-0001", testutil.JobScript{LogStatus: http.StatusInternalServerError, Summary: jobSummary})

	res, err := h.coord.Run(context.Background(), fieldStudy("blind", 10))
	require.NoError(t, err)

	status, _ := res.Report.Entries[0].Get(KeyStatus)
	assert.Equal(t, report.Str(StatusUnprocessable), status)
	reason, ok := res.Report.Entries[0].Get(KeyReason)
	require.True(t, ok)
	assert.NotEmpty(t, reason)
	assert.Zero(t, res.Report.OK, "a job whose log was never read is not ok")
	assert.Equal(t, 1, res.Report.Failed)
}

func TestRun_BatchCapSkips(t *testing.T) {
	h := newHarness(t, Config{})
	spec := fieldStudy("capped", 35)
	spec.MaxBatches = 2
	for i := 1; i <= 2; i++ {
		h.wps.Script(study.JobID("capped", i), testutil.JobScript{Summary: jobSummary})
	}

	res, err := h.coord.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, res.Report.Entries, 2)
	assert.Equal(t, 15, res.Report.Skipped)
	assert.Equal(t, "2", res.Report.Settings["jobs"])
}

func TestRun_GeometrySetupFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.data.Fail(http.StatusServiceUnavailable)

	spec := fieldStudy("geo", 10)
	spec.Kind = study.GeometrySelection{Geometry: "POLYGON((5 52,6 52,6 53,5 52))", CropCode: 256, Year: 2023}

	_, err := h.coord.Run(context.Background(), spec)
	require.ErrorIs(t, err, apperrors.ErrRunSetupFailed)
	assert.Equal(t, apperrors.ExitRunFailed, apperrors.ExitCode(err))
	assert.Zero(t, h.wps.Executes())
	assert.Equal(t, PhaseFailed, h.coord.Snapshot().Phase)
}

func TestRun_GeometryWindows(t *testing.T) {
	h := newHarness(t, Config{})
	h.data.SetCount(25)
	for i := 1; i <= 3; i++ {
		h.wps.Script(study.JobID("geo", i), testutil.JobScript{Summary: jobSummary})
	}

	spec := fieldStudy("geo", 10)
	spec.Kind = study.GeometrySelection{Geometry: "POLYGON((5 52,6 52,6 53,5 52))", CropCode: 256, Year: 2023}

	res, err := h.coord.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, res.Report.Entries, 3)
	assert.Equal(t, 3, res.Report.OK)
	assert.Equal(t, int64(3), h.wps.Executes())
}

func TestRun_SweepFromParameterFile(t *testing.T) {
	h := newHarness(t, Config{})
	base := filepath.Join(h.dir, "base.yaml")
	require.NoError(t, os.WriteFile(base, []byte("TSUM1: 1000.0\nIDSL: 0\n"), 0o644))
	for i := 1; i <= 3; i++ {
		h.wps.Script(study.JobID("sweep", i), testutil.JobScript{Summary: jobSummary})
	}

	spec := fieldStudy("sweep", 10)
	spec.Kind = study.SweepStudy{BaseFile: base, Parameter: "TSUM1", Min: 900, Max: 1100, Steps: 3}

	res, err := h.coord.Run(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, res.Report.Entries, 3)
	assert.Equal(t, 3, res.Report.OK)

	spec.Kind = study.SweepStudy{BaseFile: base, Parameter: "MISSING", Min: 1, Max: 2, Steps: 2}
	_, err = h.coord.Run(context.Background(), spec)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	spec.Kind = study.SweepStudy{BaseFile: filepath.Join(h.dir, "nope.yaml"), Parameter: "TSUM1", Min: 1, Max: 2, Steps: 2}
	_, err = h.coord.Run(context.Background(), spec)
	assert.ErrorIs(t, err, apperrors.ErrRunSetupFailed)
}

func TestRun_Timeout(t *testing.T) {
	h := newHarness(t, Config{})
	h.wps.Script("slow-0001", testutil.JobScript{RunningPolls: 1_000_000})

	spec := fieldStudy("slow", 10)
	spec.BatchTimeoutSeconds = 1

	start := time.Now()
	res, err := h.coord.Run(context.Background(), spec)
	require.ErrorIs(t, err, apperrors.ErrRunTimeout)
	assert.Nil(t, res, "no partial report on timeout")
	assert.Less(t, time.Since(start), 10*time.Second)

	_, statErr := os.Stat(filepath.Join(h.dir, "slow-report.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_InvalidStudy(t *testing.T) {
	h := newHarness(t, Config{})
	spec := fieldStudy("bad", 10)
	spec.BatchSize = 1

	_, err := h.coord.Run(context.Background(), spec)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Zero(t, h.wps.Executes())
}

func TestRun_CancelledWhilePolling(t *testing.T) {
	h := newHarness(t, Config{})
	h.wps.Script("held-0001", testutil.JobScript{RunningPolls: 1_000_000})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.coord.Run(ctx, fieldStudy("held", 10))
		done <- outcome{res, err}
	}()

	h.wps.MustWaitForPolls(t, "held-0001", 2)

	snap := h.coord.Snapshot()
	assert.Equal(t, PhaseScatter, snap.Phase)
	assert.Equal(t, 1, snap.Jobs)
	assert.Equal(t, 1, snap.Accepted)
	o, ok := h.coord.Job("held-0001")
	require.True(t, ok)
	assert.NotEmpty(t, o.StatusURL)

	_, err := h.coord.Run(context.Background(), fieldStudy("other", 10))
	assert.ErrorIs(t, err, ErrRunInProgress)

	cancel()
	got := <-done
	assert.Nil(t, got.res)
	assert.ErrorIs(t, got.err, apperrors.ErrInternal)
	assert.Equal(t, PhaseFailed, h.coord.Snapshot().Phase)
}

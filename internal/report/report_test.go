package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "40.90", Float(40.9).String())
	assert.Equal(t, "wheat", Str("wheat").String())
	assert.Equal(t, KindInt, Value{}.Kind())

	f, ok := Int(3).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = Str("x").AsFloat()
	assert.False(t, ok)
}

func TestValue_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Record{"a": Int(1), "b": Float(0.5), "c": Str("x")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":0.5,"c":"x"}`, string(data))
}

func TestMerge_IsIdempotentAndLaterWins(t *testing.T) {
	t.Parallel()

	a := Record{"errors": Int(0), "status": Str("ok")}
	b := Record{"errors": Int(2), "results": Int(7)}

	once := Merge(Merge(nil, a), b)
	twice := Merge(Merge(Merge(nil, a), b), b)
	assert.Equal(t, once, twice)
	assert.Equal(t, Record{"errors": Int(2), "status": Str("ok"), "results": Int(7)}, once)
}

func TestReporter_SortsEntriesByJobID(t *testing.T) {
	t.Parallel()
	r := NewReporter()
	r.StartNewReport("run-1", Header{Title: "Wheat"})

	for _, id := range []string{"C", "A", "B"} {
		require.NoError(t, r.AddRecord(id, Record{"errors": Int(0)}))
	}
	rep := r.Finalize(Footer{OK: 3})

	ids := make([]string, 0, len(rep.Entries))
	for _, e := range rep.Entries {
		ids = append(ids, e.JobID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 3, rep.OK)
}

func TestReporter_MergesRecordsForSameJob(t *testing.T) {
	t.Parallel()
	r := NewReporter()
	r.StartNewReport("run-1", Header{})

	require.NoError(t, r.AddRecord("j1", Record{"errors": Int(1), "warnings": Int(4)}))
	require.NoError(t, r.AddRecord("j1", Record{"results": Int(12)}))
	require.NoError(t, r.AddRecord("j1", Record{"errors": Int(0)}))
	assert.Equal(t, 1, r.Len())

	rep := r.Finalize(Footer{})
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, []NamedValue{
		{"errors", Int(0)},
		{"results", Int(12)},
		{"warnings", Int(4)},
	}, rep.Entries[0].Values)
}

func TestReporter_ConcurrentAddRecord(t *testing.T) {
	t.Parallel()
	r := NewReporter()
	r.StartNewReport("run-1", Header{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AddRecord("job", Record{string(rune('a' + i%26)): Int(int64(i))})
		}(i)
	}
	wg.Wait()

	rep := r.Finalize(Footer{})
	require.Len(t, rep.Entries, 1)
	assert.Len(t, rep.Entries[0].Values, 26)
}

func TestReporter_Lifecycle(t *testing.T) {
	t.Parallel()
	r := NewReporter()
	assert.Equal(t, Empty, r.State())

	assert.ErrorIs(t, r.AddRecord("j1", Record{}), ErrNotCollecting)

	empty := r.Finalize(Footer{})
	assert.Empty(t, empty.Entries)
	assert.Equal(t, Empty, r.State())

	r.StartNewReport("run-1", Header{Title: "first", Skipped: 3})
	r.AddRecord("j1", Record{"errors": Int(1)})
	r.StartNewReport("run-1", Header{Title: "restarted"})
	assert.Zero(t, r.Len(), "restart discards records")
	r.AddRecord("j2", Record{"errors": Int(0)})

	first := r.Finalize(Footer{OK: 1})
	assert.Equal(t, Finalized, r.State())
	assert.Equal(t, "restarted", first.Title)
	assert.Zero(t, first.Skipped)
	require.Len(t, first.Entries, 1)

	assert.Same(t, first, r.Finalize(Footer{OK: 99}), "second Finalize returns the first report")
	assert.ErrorIs(t, r.AddRecord("j3", Record{}), ErrNotCollecting)
}

func sampleReport() *RunReport {
	r := NewReporter()
	r.StartNewReport("run-7", Header{Title: "Beets <north>", Settings: map[string]string{"batchSize": "1000"}, Skipped: 2})
	r.AddRecord("beets-0001", Record{"errors": Int(0), "avg(HI_END)": Float(0.512)})
	r.AddRecord("beets-0000", Record{"errors": Int(3), "status": Str("failed")})
	return r.Finalize(Footer{OK: 1, Failed: 1, Results: 40})
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded struct {
		RunID   string `json:"runId"`
		Entries []struct {
			JobID string `json:"jobId"`
		} `json:"entries"`
		Results int `json:"results"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-7", decoded.RunID)
	assert.Equal(t, "beets-0000", decoded.Entries[0].JobID)
	assert.Equal(t, 40, decoded.Results)
	assert.Equal(t, 2, decoded.Skipped)
}

func TestWriteHTML(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleReport()))

	page := buf.String()
	assert.Contains(t, page, "Beets &lt;north&gt;")
	assert.Contains(t, page, "<th>avg(HI_END)</th><th>errors</th><th>status</th>")
	assert.Contains(t, page, "<td>beets-0001</td><td>0.51</td><td>0</td><td></td>")
	assert.Contains(t, page, "Items skipped by batch cap: 2")
	assert.Less(t, strings.Index(page, "beets-0000"), strings.Index(page, "beets-0001"))
}

func TestStatesCSV(t *testing.T) {
	t.Parallel()

	a, err := ReadStatesCSV("j1", strings.NewReader("day,LAI,DVS\n1,0.1,0.0\n2,0.2,0.1\n"))
	require.NoError(t, err)
	b, err := ReadStatesCSV("j2", strings.NewReader("day,DVS,TAGP\n1,0.0,10\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStatesCSV(&buf, []StatesTable{a, b}))
	assert.Equal(t, "job,day,LAI,DVS,TAGP\nj1,1,0.1,0.0,\nj1,2,0.2,0.1,\nj2,1,,0.0,10\n", buf.String())

	empty, err := ReadStatesCSV("j3", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
}

func TestWriteStatesPlaceholder(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteStatesPlaceholder(&buf))
	assert.Equal(t, "job,note\n,no job produced states\n", buf.String())
}

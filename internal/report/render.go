package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"maps"
	"slices"
	"time"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": func(e Entry, name string) string {
		if v, ok := e.Get(name); ok {
			return v.String()
		}
		return ""
	},
	"date": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Report.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.failed { color: #b00; }
</style>
</head>
<body>
<h1>{{.Report.Title}}</h1>
<p>Run {{.Report.RunID}}, generated {{date .Report.GeneratedAt}}</p>
<ul>
<li>Jobs ok: {{.Report.OK}}</li>
<li class="failed">Jobs failed: {{.Report.Failed}}</li>
<li>Result rows: {{.Report.Results}}</li>
{{- if .Report.Skipped}}
<li class="failed">Items skipped by batch cap: {{.Report.Skipped}}</li>
{{- end}}
</ul>
{{- if .Settings}}
<h2>Settings</h2>
<table>
{{- range .Settings}}
<tr><th>{{index . 0}}</th><td>{{index . 1}}</td></tr>
{{- end}}
</table>
{{- end}}
<h2>Jobs</h2>
<table>
<tr><th>job</th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{- range $e := .Report.Entries}}
<tr><td>{{$e.JobID}}</td>{{range $.Columns}}<td>{{cell $e .}}</td>{{end}}</tr>
{{- end}}
</table>
</body>
</html>
`))

// WriteHTML renders r as a standalone HTML page.
func WriteHTML(w io.Writer, r *RunReport) error {
	settings := make([][2]string, 0, len(r.Settings))
	for _, k := range slices.Sorted(maps.Keys(r.Settings)) {
		settings = append(settings, [2]string{k, r.Settings[k]})
	}
	data := struct {
		Report   *RunReport
		Columns  []string
		Settings [][2]string
	}{r, r.Columns(), settings}

	if err := htmlTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// StatesTable is one job's state-variable table.
type StatesTable struct {
	JobID  string
	Header []string
	Rows   [][]string
}

// ReadStatesCSV parses a job's states artifact. The first record is the header.
func ReadStatesCSV(jobID string, r io.Reader) (StatesTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return StatesTable{}, fmt.Errorf("failed to read states of %s: %w", jobID, err)
	}
	if len(records) == 0 {
		return StatesTable{JobID: jobID}, nil
	}
	return StatesTable{JobID: jobID, Header: records[0], Rows: records[1:]}, nil
}

// WriteStatesCSV writes all tables as one CSV with a leading job column.
// Columns are the union of all headers in first-seen order; cells a job
// does not have are left empty.
func WriteStatesCSV(w io.Writer, tables []StatesTable) error {
	var columns []string
	index := make(map[string]int)
	for _, t := range tables {
		for _, h := range t.Header {
			if _, ok := index[h]; !ok {
				index[h] = len(columns)
				columns = append(columns, h)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"job"}, columns...)); err != nil {
		return err
	}
	for _, t := range tables {
		for _, row := range t.Rows {
			out := make([]string, len(columns)+1)
			out[0] = t.JobID
			for i, cell := range row {
				if i < len(t.Header) {
					out[index[t.Header[i]]+1] = cell
				}
			}
			if err := cw.Write(out); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatesPlaceholder writes the states file of a run in which no job
// produced states, so that consumers always find a file.
func WriteStatesPlaceholder(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"job", "note"})
	cw.Write([]string{"", "no job produced states"})
	cw.Flush()
	return cw.Error()
}

package journal

import (
	"fmt"
	"io"
	"os"
	"text/template"
	"time"
)

// RunReport summarizes the records of one harvest run.
type RunReport struct {
	RunID    string
	Provider string
	Started  time.Time
	Finished time.Time

	Symbols   int
	OK        int
	Failed    int
	Truncated int
	CacheHits int
	Bars      int

	Records []FetchRecord
}

// Summarize builds the report for recs, which should all share runID.
func Summarize(runID string, recs []FetchRecord) RunReport {
	r := RunReport{RunID: runID, Records: recs, Symbols: len(recs)}
	for _, rec := range recs {
		if r.Provider == "" {
			r.Provider = rec.Provider
		}
		if r.Started.IsZero() || rec.StartedAt.Before(r.Started) {
			r.Started = rec.StartedAt
		}
		if end := rec.StartedAt.Add(rec.Duration); end.After(r.Finished) {
			r.Finished = end
		}
		switch {
		case rec.Error != "":
			r.Failed++
		case rec.Truncated:
			r.Truncated++
		default:
			r.OK++
		}
		if rec.CacheHit {
			r.CacheHits++
		}
		r.Bars += rec.Bars
	}
	return r
}

var runOrgFuncs = template.FuncMap{
	"status": func(rec FetchRecord) string {
		switch {
		case rec.Error != "":
			return "FAILED"
		case rec.Truncated:
			return "SHORT"
		case rec.CacheHit:
			return "CACHED"
		default:
			return "FETCHED"
		}
	},
	"day": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders the report as an Org-mode document.
func (r RunReport) WriteOrg(w io.Writer) error {
	return runOrg.Execute(w, r)
}

// WriteOrgFile writes the Org-mode report to path.
func (r RunReport) WriteOrgFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteOrg(f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

const RunOrgTemplate = `* HARVEST: {{if .Provider}}{{.Provider}}{{else}}(provider?){{end}} {{.RunID}}
:PROPERTIES:
:RUN_ID:     {{.RunID}}
:PROVIDER:   {{.Provider}}
:STARTED:    [{{.Started.Format "2006-01-02 Mon 15:04"}}]
:FINISHED:   [{{.Finished.Format "2006-01-02 Mon 15:04"}}]
:SYMBOLS:    {{.Symbols}}
:OK:         {{.OK}}
:FAILED:     {{.Failed}}
:TRUNCATED:  {{.Truncated}}
:CACHE_HITS: {{.CacheHits}}
:BARS:       {{.Bars}}
:END:

** Fetches
| Symbol | Gran | Since | Until | Bars | Status |
|--------+------+-------+-------+------+--------|
{{- range .Records }}
| {{.Symbol}} | {{.Granularity}} | {{day .Since}} | {{day .Until}} | {{.Bars}} | {{status .}} |
{{- end }}
{{- if .Failed }}

** Errors
{{- range .Records }}{{ if .Error }}
- {{.Symbol}}: {{.Error}}
{{- end }}{{ end }}
{{- end }}
`

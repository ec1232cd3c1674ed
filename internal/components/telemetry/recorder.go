package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call made against a Recorder.
type Report struct {
	Kind   string
	ID     string
	Params []any
	Count  int64
}

// Recorder is an API that keeps every report in memory, it is meant
// for tests that need to assert that something was (or was not) reported.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) add(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add(Report{Kind: "broken", ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add(Report{Kind: "warning", ID: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add(Report{Kind: "debug", ID: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add(Report{Kind: "count", ID: id, Count: count})
}

// Reports returns a copy of every report of the given kind ("broken", "warning",
// "debug", "count"), an empty kind returns all of them.
func (r *Recorder) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if kind != "" && report.Kind != kind {
			continue
		}
		out = append(out, report)
	}
	return out
}

// Has reports whether a report of the given kind exists with an id ending in `suffix`.
func (r *Recorder) Has(kind, suffix string) bool {
	for _, report := range r.Reports(kind) {
		if strings.HasSuffix(report.ID, suffix) {
			return true
		}
	}
	return false
}

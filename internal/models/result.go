package models

import "sort"

// FileOutcome classifies what happened to a single file during a scan.
type FileOutcome string

const (
	OutcomeClean       FileOutcome = "clean"        // no diagnostics
	OutcomeDiagnosed   FileOutcome = "diagnosed"    // diagnostics, nothing written
	OutcomeHealed      FileOutcome = "healed"       // fixes applied and written
	OutcomeParseFailed FileOutcome = "parse-failed" // no tree could be built
	OutcomeWriteFailed FileOutcome = "write-failed" // fixes computed, write failed
)

// FileResult is the structured result for one scanned file.
type FileResult struct {
	Path         string       `json:"path"`
	Outcome      FileOutcome  `json:"outcome"`
	Documents    int          `json:"documents"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
	FixesApplied int          `json:"fixesApplied"`
	Err          string       `json:"error,omitempty"`
}

// Counts returns the number of diagnostics per severity.
func (r *FileResult) Counts() (errors, warnings, infos int) {
	for _, d := range r.Diagnostics {
		switch d.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		default:
			infos++
		}
	}
	return
}

// SortDiagnostics orders diagnostics deterministically: by document, line,
// column, then rule id. Identical input must always render identically.
func (r *FileResult) SortDiagnostics() {
	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		a, b := r.Diagnostics[i], r.Diagnostics[j]
		if a.Location.DocIndex != b.Location.DocIndex {
			return a.Location.DocIndex < b.Location.DocIndex
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
		return a.RuleID < b.RuleID
	})
}

// ScanResult aggregates all file results for one scan invocation.
type ScanResult struct {
	RunID   string       `json:"runId"`
	Files   []FileResult `json:"files"`
	Elapsed int64        `json:"elapsedMs"`
}

// Exit codes: 0 clean, 1 error diagnostics remain, 2 unrecoverable input.
const (
	ExitClean         = 0
	ExitDiagnostics   = 1
	ExitUnrecoverable = 2
)

// ExitCode computes the process exit code from the worst outcome
// observed. Only unrecoverable input escalates to 2; a failed
// write-back leaves the input intact and counts as a diagnostic.
func (s *ScanResult) ExitCode() int {
	code := ExitClean
	for i := range s.Files {
		f := &s.Files[i]
		if f.Outcome == OutcomeParseFailed {
			return ExitUnrecoverable
		}
		if f.Outcome == OutcomeWriteFailed {
			code = ExitDiagnostics
			continue
		}
		if errs, _, _ := f.Counts(); errs > 0 {
			code = ExitDiagnostics
		}
	}
	return code
}

// SortFiles orders file results by path for deterministic reporting.
func (s *ScanResult) SortFiles() {
	sort.SliceStable(s.Files, func(i, j int) bool {
		return s.Files[i].Path < s.Files[j].Path
	})
}

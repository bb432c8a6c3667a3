package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode_WorstOutcomeWins(t *testing.T) {
	res := &ScanResult{Files: []FileResult{
		{Outcome: OutcomeClean},
		{Outcome: OutcomeHealed},
	}}
	assert.Equal(t, ExitClean, res.ExitCode())

	// a failed write-back leaves the input intact, so it aggregates as a
	// diagnostic, not as unrecoverable input
	res.Files = append(res.Files, FileResult{Outcome: OutcomeWriteFailed})
	assert.Equal(t, ExitDiagnostics, res.ExitCode())

	res.Files = append(res.Files, FileResult{Outcome: OutcomeParseFailed})
	assert.Equal(t, ExitUnrecoverable, res.ExitCode())
}

func TestExitCode_ErrorDiagnostics(t *testing.T) {
	res := &ScanResult{Files: []FileResult{
		{Outcome: OutcomeDiagnosed, Diagnostics: []Diagnostic{
			{RuleID: "lexer/encoding", Severity: SeverityError},
		}},
	}}
	assert.Equal(t, ExitDiagnostics, res.ExitCode())
}

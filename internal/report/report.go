// Package report renders scan results for machines (JSON) and humans
// (styled terminal output). A single-file scan gets a detailed view;
// scans over many files get a summary table.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yamlr/yamlr/internal/models"
)

// Format selects the output rendering.
type Format string

const (
	FormatAuto  Format = "auto" // human on a terminal, detailed vs summary by file count
	FormatJSON  Format = "json"
	FormatHuman Format = "human"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatAuto, FormatJSON, FormatHuman:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want auto, json or human)", s)
	}
}

// Renderer writes a ScanResult to an output stream.
type Renderer struct {
	out    io.Writer
	format Format
}

// NewRenderer creates a renderer for the given stream and format.
func NewRenderer(out io.Writer, format Format) *Renderer {
	return &Renderer{out: out, format: format}
}

// Render writes the result. With FormatAuto a single-file result gets
// the detailed view and anything larger the summary table.
func (r *Renderer) Render(result *models.ScanResult) error {
	result.SortFiles()
	for i := range result.Files {
		result.Files[i].SortDiagnostics()
	}

	switch r.format {
	case FormatJSON:
		return r.renderJSON(result)
	default:
		if len(result.Files) == 1 {
			return r.renderDetailed(result)
		}
		return r.renderSummary(result)
	}
}

func (r *Renderer) renderJSON(result *models.ScanResult) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// renderDetailed prints every diagnostic of every file with its
// location, rule id and attached fix.
func (r *Renderer) renderDetailed(result *models.ScanResult) error {
	fmt.Fprintln(r.out, headerStyle.Render("yamlr scan")+mutedStyle.Render(" run "+result.RunID))
	fmt.Fprintln(r.out)

	for i := range result.Files {
		file := &result.Files[i]
		fmt.Fprintln(r.out, pathStyle.Render(file.Path)+" "+outcomeBadge(file))

		if file.Err != "" {
			fmt.Fprintln(r.out, "  "+errorStyle.Render(file.Err))
		}
		for _, d := range file.Diagnostics {
			sev := severityStyle(string(d.Severity)).Render(strings.ToUpper(string(d.Severity)))
			loc := mutedStyle.Render(fmt.Sprintf("%d:%d", d.Location.Line, d.Location.Column))
			fmt.Fprintf(r.out, "  %s %s %s %s\n", sev, loc, d.Message, ruleStyle.Render("("+d.RuleID+")"))
			if d.Fix != nil {
				fmt.Fprintln(r.out, "      "+fixStyle.Render("fix: "+d.Fix.Description))
			}
		}
		if len(file.Diagnostics) == 0 && file.Err == "" {
			fmt.Fprintln(r.out, "  "+cleanStyle.Render("clean"))
		}
		fmt.Fprintln(r.out)
	}
	r.renderTotals(result)
	return nil
}

// renderSummary prints one row per file with severity counts.
func (r *Renderer) renderSummary(result *models.ScanResult) error {
	fmt.Fprintln(r.out, headerStyle.Render("yamlr scan")+mutedStyle.Render(" run "+result.RunID))
	fmt.Fprintln(r.out)

	width := 0
	for i := range result.Files {
		if n := lipgloss.Width(result.Files[i].Path); n > width {
			width = n
		}
	}

	for i := range result.Files {
		file := &result.Files[i]
		errs, warns, infos := file.Counts()
		pad := strings.Repeat(" ", width-lipgloss.Width(file.Path)+2)
		row := pathStyle.Render(file.Path) + pad

		switch {
		case file.Err != "":
			row += errorStyle.Render("FAILED") + " " + mutedStyle.Render(file.Err)
		case errs == 0 && warns == 0 && infos == 0:
			row += cleanStyle.Render("clean")
		default:
			parts := make([]string, 0, 3)
			if errs > 0 {
				parts = append(parts, errorStyle.Render(fmt.Sprintf("%d errors", errs)))
			}
			if warns > 0 {
				parts = append(parts, warningStyle.Render(fmt.Sprintf("%d warnings", warns)))
			}
			if infos > 0 {
				parts = append(parts, infoStyle.Render(fmt.Sprintf("%d infos", infos)))
			}
			row += strings.Join(parts, " ")
		}
		if file.FixesApplied > 0 {
			row += " " + fixStyle.Render(fmt.Sprintf("%d fixed", file.FixesApplied))
		}
		fmt.Fprintln(r.out, row)
	}
	fmt.Fprintln(r.out)
	r.renderTotals(result)
	return nil
}

func (r *Renderer) renderTotals(result *models.ScanResult) {
	var errs, warns, infos, fixed int
	for i := range result.Files {
		e, w, n := result.Files[i].Counts()
		errs += e
		warns += w
		infos += n
		fixed += result.Files[i].FixesApplied
	}
	line := fmt.Sprintf("%d files, %d errors, %d warnings, %d infos",
		len(result.Files), errs, warns, infos)
	if fixed > 0 {
		line += fmt.Sprintf(", %d fixes applied", fixed)
	}
	line += fmt.Sprintf(" (%dms)", result.Elapsed)
	fmt.Fprintln(r.out, mutedStyle.Render(line))
}

func outcomeBadge(file *models.FileResult) string {
	switch file.Outcome {
	case models.OutcomeHealed:
		return fixStyle.Render("[healed]")
	case models.OutcomeParseFailed, models.OutcomeWriteFailed:
		return errorStyle.Render("[" + string(file.Outcome) + "]")
	case models.OutcomeClean:
		return cleanStyle.Render("[clean]")
	default:
		return mutedStyle.Render("[" + string(file.Outcome) + "]")
	}
}

// Package pipeline orchestrates a healing pass: per-file lexing,
// building, validation and migration run concurrently, the
// cross-resource graph stage runs once after every file finished.
// A stage failure is confined to its file and never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yamlr/yamlr/internal/config"
	"github.com/yamlr/yamlr/internal/deprecation"
	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/fileio"
	"github.com/yamlr/yamlr/internal/graph"
	"github.com/yamlr/yamlr/internal/lexer"
	"github.com/yamlr/yamlr/internal/logging"
	"github.com/yamlr/yamlr/internal/metrics"
	"github.com/yamlr/yamlr/internal/migrate"
	"github.com/yamlr/yamlr/internal/models"
	"github.com/yamlr/yamlr/internal/rules"
	"github.com/yamlr/yamlr/internal/schema"
)

// Pipeline runs scans over a fixed configuration and policy.
type Pipeline struct {
	cfg      *config.Config
	policy   Policy
	writer   *fileio.Writer
	registry *rules.Registry
	checker  *deprecation.Checker
	engine   *migrate.Engine
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *logging.Logger
	lexOpts  lexer.Options
	fixScope func(ruleID string) bool
}

// New builds a pipeline. The config must already be validated against
// defaults; the policy decides whether fixes are written back.
func New(cfg *config.Config, policy Policy) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	checker, err := deprecation.NewChecker(cfg.TargetVersion)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		policy:   policy,
		writer:   fileio.NewWriter(cfg.BackupKeep),
		registry: rules.NewRegistry(rules.Options{DefaultImageTag: cfg.DefaultImageTag}),
		checker:  checker,
		engine:   migrate.NewEngine(),
		metrics:  metrics.New(),
		tracer:   otel.Tracer("yamlr/pipeline"),
		logger:   logging.GetLogger("pipeline"),
		lexOpts:  lexer.DefaultOptions(),
		fixScope: func(string) bool { return true },
	}, nil
}

// SetFixScope restricts which diagnostics may apply their fixes, by
// rule id. Out-of-scope fixes are still reported, never run.
func (p *Pipeline) SetFixScope(scope func(ruleID string) bool) {
	if scope != nil {
		p.fixScope = scope
	}
}

// Metrics exposes the run instrumentation for dumping.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}

// fileState carries one file's parsed documents next to its result so
// the graph stage can revisit the trees after the barrier.
type fileState struct {
	result     models.FileResult
	docs       []*document.Document
	migrations []*migrate.Migration
}

// Run crawls the targets, processes every file on a bounded worker
// pool and finishes with the cross-resource graph stage.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*models.ScanResult, error) {
	start := time.Now()

	files, err := fileio.Crawl(paths, p.cfg.IgnoreFiles)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files found under %v", paths)
	}

	mode := p.policy.Mode
	if mode == ModeInteractive && len(files) > 1 {
		ok, err := p.policy.Prompter.ConfirmBatch(len(files))
		if err != nil {
			return nil, err
		}
		if ok {
			mode = ModeAuto
		} else {
			p.logger.Info("batch heal declined, reporting only")
			mode = ModeDryRun
		}
	}

	workers := p.cfg.Workers
	if workers < 1 || mode == ModeInteractive {
		workers = 1
	}

	states := make([]*fileState, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			states[i] = p.processFile(gctx, path, mode)
			return nil
		})
	}
	// Workers only return nil; Wait is the graph barrier.
	_ = g.Wait()

	p.runGraph(ctx, states)
	return p.collect(states, start), nil
}

// StdinPath is the synthetic path reported for diagnostics on a stream
// read from standard input.
const StdinPath = "<stdin>"

// RunStream scans a single YAML stream. A stream has no file to write
// back to, so fixes are reported but never applied.
func (p *Pipeline) RunStream(ctx context.Context, name string, r io.Reader) (*models.ScanResult, error) {
	start := time.Now()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	states := []*fileState{p.process(ctx, name, data, ModeDryRun)}
	p.runGraph(ctx, states)
	return p.collect(states, start), nil
}

func (p *Pipeline) collect(states []*fileState, start time.Time) *models.ScanResult {
	result := &models.ScanResult{RunID: uuid.NewString()}
	for _, st := range states {
		if st == nil {
			continue
		}
		st.result.SortDiagnostics()
		for _, d := range st.result.Diagnostics {
			p.metrics.ObserveDiagnostic(d.RuleID, string(d.Severity))
		}
		for _, m := range st.migrations {
			p.metrics.ObserveMigration(migrationOutcome(m))
		}
		result.Files = append(result.Files, st.result)
	}
	result.SortFiles()
	result.Elapsed = time.Since(start).Milliseconds()
	return result
}

func migrationOutcome(m *migrate.Migration) string {
	switch m.State {
	case migrate.StateApplied:
		return "applied"
	case migrate.StateRejected:
		return "rejected"
	default:
		return "skipped"
	}
}

func (p *Pipeline) processFile(ctx context.Context, path string, mode Mode) *fileState {
	data, err := os.ReadFile(path)
	if err != nil {
		st := &fileState{result: models.FileResult{Path: path}}
		p.metrics.FilesScanned.Inc()
		p.fail(st, fmt.Errorf("reading %s: %w", path, err))
		return st
	}
	return p.process(ctx, path, data, mode)
}

func (p *Pipeline) process(ctx context.Context, path string, data []byte, mode Mode) *fileState {
	_, span := p.tracer.Start(ctx, "pipeline.file",
		trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	st := &fileState{result: models.FileResult{Path: path, Outcome: models.OutcomeClean}}
	p.metrics.FilesScanned.Inc()

	parseStart := time.Now()
	docs, repairs, err := document.Parse(path, data, p.lexOpts)
	p.metrics.ObserveStage("parse", time.Since(parseStart).Seconds())
	if err != nil {
		p.fail(st, err)
		return st
	}
	st.docs = docs
	st.result.Documents = len(docs)

	damaged := false
	var diags []models.Diagnostic
	for _, rec := range repairs {
		d := p.repairDiagnostic(path, rec)
		if d.Severity == models.SeverityError {
			damaged = true
		}
		diags = append(diags, d)
	}

	validateStart := time.Now()
	for _, doc := range docs {
		if doc.Ignored {
			continue
		}
		diags = append(diags, filterIgnored(doc, schema.Validate(doc))...)
		diags = append(diags, p.registry.Run(doc)...)
		diags = append(diags, filterIgnored(doc, p.checker.Check(doc))...)
	}
	p.metrics.ObserveStage("validate", time.Since(validateStart).Seconds())

	for _, doc := range docs {
		if doc.Ignored {
			continue
		}
		if m := p.engine.Detect(doc); m != nil {
			if doc.LineIgnored(m.Diagnostic.Location.Line) {
				continue
			}
			st.migrations = append(st.migrations, m)
			diags = append(diags, m.Diagnostic)
		}
	}

	fixable := 0
	for _, d := range diags {
		if d.HasFix() && p.fixScope(d.RuleID) {
			fixable++
		}
	}
	if fixable > 0 && !damaged && p.approve(path, fixable, mode) {
		fixStart := time.Now()
		for i := range diags {
			d := &diags[i]
			if d.Fix == nil || !p.fixScope(d.RuleID) {
				continue
			}
			changed, err := d.Fix.Apply(docAt(docs, d.Location.DocIndex))
			if err != nil {
				if models.IsMigrationRejected(err) || models.IsAmbiguousMigration(err) {
					// an expected rollback, already reflected in the
					// migration state
					p.logger.Info("migration rolled back at %s: %v", d.Location, err)
				} else {
					p.logger.Warn("fix for %s at %s failed: %v", d.RuleID, d.Location, err)
				}
				continue
			}
			if changed {
				st.result.FixesApplied++
				p.metrics.FixesApplied.Inc()
			}
		}
		p.metrics.ObserveStage("fix", time.Since(fixStart).Seconds())
	}

	st.result.Diagnostics = diags

	switch {
	case damaged:
		// Encoding damage is unrecoverable input. Never write it back.
		st.result.Outcome = models.OutcomeParseFailed
		p.metrics.FilesFailed.Inc()
	case anyChanged(docs) && mode != ModeDryRun:
		p.write(st, path, docs)
	case len(diags) > 0:
		st.result.Outcome = models.OutcomeDiagnosed
	}
	return st
}

func (p *Pipeline) write(st *fileState, path string, docs []*document.Document) {
	out, err := document.Marshal(docs)
	if err != nil {
		st.result.Outcome = models.OutcomeWriteFailed
		st.result.Err = err.Error()
		return
	}
	writeStart := time.Now()
	err = p.writer.Write(path, out)
	p.metrics.ObserveStage("write", time.Since(writeStart).Seconds())
	if err != nil {
		st.result.Outcome = models.OutcomeWriteFailed
		st.result.Err = err.Error()
		p.logger.ErrorWithErr("writing healed file %s", err, path)
		return
	}
	st.result.Outcome = models.OutcomeHealed
	if p.cfg.BackupKeep > 0 {
		p.metrics.BackupsRotated.Inc()
	}
	p.logger.Info("healed %s (%d fixes)", path, st.result.FixesApplied)
}

// fail marks a file unrecoverable. Parse and read failures surface in
// the result and the exit code, not as a batch error.
func (p *Pipeline) fail(st *fileState, err error) {
	st.result.Outcome = models.OutcomeParseFailed
	st.result.Err = err.Error()
	p.metrics.FilesFailed.Inc()
	p.logger.Warn("skipping %s: %v", st.result.Path, err)
}

func (p *Pipeline) approve(path string, fixes int, mode Mode) bool {
	switch mode {
	case ModeAuto:
		return true
	case ModeInteractive:
		ok, err := p.policy.Prompter.ConfirmFile(path, fixes)
		if err != nil {
			p.logger.Warn("prompt failed, skipping heal of %s: %v", path, err)
			return false
		}
		return ok
	default:
		return false
	}
}

// repairDiagnostic converts a lexer repair into a diagnostic. Fixable
// repairs at or above the confidence threshold carry a fix that marks
// the repaired tree for write-back; below the threshold they are
// report-only. Encoding damage is an error and never fixable.
func (p *Pipeline) repairDiagnostic(path string, rec lexer.RepairRecord) models.Diagnostic {
	d := models.Diagnostic{
		RuleID:   rec.Heuristic,
		Severity: models.SeverityWarning,
		Message:  fmt.Sprintf("repaired %q to %q (confidence %.2f)", rec.Before, rec.After, rec.Confidence),
		Location: models.Location{Path: path, Line: rec.Line, Column: rec.Column},
	}
	if !rec.Fixable {
		d.Severity = models.SeverityError
		d.Message = fmt.Sprintf("invalid input at line %d: %s", rec.Line, rec.Before)
		return d
	}
	if rec.Confidence >= p.cfg.Threshold {
		applied := false
		d.Fix = models.NewFix(
			fmt.Sprintf("persist %s repair at line %d", rec.Heuristic, rec.Line),
			func(doc *document.Document) (bool, error) {
				// The lexer already repaired the tree; the fix only
				// marks the document changed so it gets written.
				if applied {
					return false, nil
				}
				applied = true
				return true, nil
			})
	}
	return d
}

// runGraph builds the cross-resource graph over every parsed document
// and attributes its findings back to the owning files.
func (p *Pipeline) runGraph(ctx context.Context, states []*fileState) {
	_, span := p.tracer.Start(ctx, "pipeline.graph")
	defer span.End()
	graphStart := time.Now()

	byPath := make(map[string]*fileState, len(states))
	var all []*document.Document
	for _, st := range states {
		if st == nil || st.result.Outcome == models.OutcomeParseFailed {
			continue
		}
		byPath[st.result.Path] = st
		for _, doc := range st.docs {
			if !doc.Ignored {
				all = append(all, doc)
			}
		}
	}

	g := graph.Build(all)
	for _, d := range g.Analyze() {
		st := byPath[d.Location.Path]
		if st == nil {
			continue
		}
		if doc := docAt(st.docs, d.Location.DocIndex); doc != nil && doc.LineIgnored(d.Location.Line) {
			continue
		}
		st.result.Diagnostics = append(st.result.Diagnostics, d)
		if st.result.Outcome == models.OutcomeClean {
			st.result.Outcome = models.OutcomeDiagnosed
		}
	}
	p.metrics.ObserveStage("graph", time.Since(graphStart).Seconds())
}

func filterIgnored(doc *document.Document, diags []models.Diagnostic) []models.Diagnostic {
	kept := diags[:0]
	for _, d := range diags {
		if !doc.LineIgnored(d.Location.Line) {
			kept = append(kept, d)
		}
	}
	return kept
}

func docAt(docs []*document.Document, index int) *document.Document {
	if index >= 0 && index < len(docs) {
		return docs[index]
	}
	if len(docs) > 0 {
		return docs[0]
	}
	return nil
}

func anyChanged(docs []*document.Document) bool {
	for _, doc := range docs {
		if doc.Revision() > 0 {
			return true
		}
	}
	return false
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamlr/yamlr/internal/config"
	"github.com/yamlr/yamlr/internal/models"
)

const cleanDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  replicas: 2
  selector:
    matchLabels:
      app: web
  template:
    metadata:
      labels:
        app: web
`

// stuckDashPod carries one lexer-recoverable defect: the list marker
// of the first container is fused to its key.
const stuckDashPod = `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
    -name: web
      image: nginx:1.25
      resources:
        limits:
          cpu: "1"
          memory: 256Mi
        requests:
          cpu: 500m
          memory: 128Mi
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, policy Policy) *Pipeline {
	t.Helper()
	p, err := New(cfg, policy)
	require.NoError(t, err)
	return p
}

func fileByPath(t *testing.T, res *models.ScanResult, path string) *models.FileResult {
	t.Helper()
	for i := range res.Files {
		if res.Files[i].Path == path {
			return &res.Files[i]
		}
	}
	t.Fatalf("no result for %s", path)
	return nil
}

func diagnosticIDs(f *models.FileResult) []string {
	ids := make([]string, len(f.Diagnostics))
	for i, d := range f.Diagnostics {
		ids[i] = d.RuleID
	}
	return ids
}

func TestRun_CleanFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deploy.yaml", cleanDeployment)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeClean, f.Outcome)
	assert.Empty(t, f.Diagnostics)
	assert.Equal(t, models.ExitClean, res.ExitCode())
	assert.NotEmpty(t, res.RunID)
}

func TestRun_DryRunNeverWrites(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pod.yaml", stuckDashPod)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeDiagnosed, f.Outcome)
	assert.Contains(t, diagnosticIDs(f), "lexer/stuck-dash")
	assert.Equal(t, 0, f.FixesApplied)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stuckDashPod, string(after))

	// Stuck-dash repairs are warnings, not errors.
	assert.Equal(t, models.ExitClean, res.ExitCode())
}

func TestRunStream_DiagnosesWithoutTouchingDisk(t *testing.T) {
	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})

	res, err := p.RunStream(context.Background(), StdinPath, strings.NewReader(stuckDashPod))
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	f := &res.Files[0]
	assert.Equal(t, StdinPath, f.Path)
	assert.Equal(t, models.OutcomeDiagnosed, f.Outcome)
	assert.Contains(t, diagnosticIDs(f), "lexer/stuck-dash")
	assert.Equal(t, 0, f.FixesApplied)
}

func TestRunStream_CleanInput(t *testing.T) {
	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})

	res, err := p.RunStream(context.Background(), StdinPath, strings.NewReader(cleanDeployment))
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, models.OutcomeClean, res.Files[0].Outcome)
	assert.Equal(t, models.ExitClean, res.ExitCode())
}

func TestRun_AutoHealsAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pod.yaml", stuckDashPod)

	cfg := testConfig()
	p := newPipeline(t, cfg, Policy{Mode: ModeAuto})
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeHealed, f.Outcome)
	assert.Equal(t, 1, f.FixesApplied)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().FixesApplied))

	healed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(healed), "- name: web")
	assert.NotContains(t, string(healed), "-name:")

	// The pre-heal content survives as a rotated backup.
	backup, err := os.ReadFile(path + ".1.bak")
	require.NoError(t, err)
	assert.Equal(t, stuckDashPod, string(backup))

	// A second pass over the healed file finds nothing to do.
	p2 := newPipeline(t, cfg, Policy{Mode: ModeAuto})
	res2, err := p2.Run(context.Background(), []string{path})
	require.NoError(t, err)
	f2 := fileByPath(t, res2, path)
	assert.Equal(t, models.OutcomeClean, f2.Outcome)
	assert.Empty(t, f2.Diagnostics)
	assert.Equal(t, 0, f2.FixesApplied)
}

func TestRun_BinaryInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.yaml")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 'k', 'e', 'y', ':', ' ', 'v'}, 0o644))

	p := newPipeline(t, testConfig(), Policy{Mode: ModeAuto})
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeParseFailed, f.Outcome)
	assert.Equal(t, models.ExitUnrecoverable, res.ExitCode())

	// Damaged input is never written back.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 'k', 'e', 'y', ':', ' ', 'v'}, after)
}

func TestRun_SchemaErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deploy.yaml", `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  replicas: 2
`)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeDiagnosed, f.Outcome)
	assert.Contains(t, diagnosticIDs(f), "schema/missing-field")
	assert.Equal(t, models.ExitDiagnostics, res.ExitCode())
}

func TestRun_GraphSpansFiles(t *testing.T) {
	dir := t.TempDir()
	svc := writeFile(t, dir, "svc.yaml", `apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector:
    app: web
  ports:
    - port: 80
`)
	writeFile(t, dir, "pod.yaml", `apiVersion: v1
kind: Pod
metadata:
  name: web-1
  labels:
    app: wep
spec:
  containers:
    - name: web
      image: nginx:1.25
      resources:
        limits:
          cpu: "1"
          memory: 256Mi
        requests:
          cpu: 500m
          memory: 128Mi
      ports:
        - containerPort: 80
`)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	f := fileByPath(t, res, svc)
	ids := diagnosticIDs(f)
	assert.Contains(t, ids, "graph/ghost-service")
	assert.NotContains(t, ids, "graph/port-mismatch")
}

func TestRun_InteractiveDeclinesByDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pod.yaml", stuckDashPod)

	var out strings.Builder
	policy := Policy{
		Mode:     ModeInteractive,
		Prompter: NewPrompter(strings.NewReader("\n"), &out),
	}
	p := newPipeline(t, testConfig(), policy)
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeDiagnosed, f.Outcome)
	assert.Equal(t, 0, f.FixesApplied)
	assert.Contains(t, out.String(), "[y/N]")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stuckDashPod, string(after))
}

func TestRun_InteractiveAcceptsSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pod.yaml", stuckDashPod)

	var out strings.Builder
	policy := Policy{
		Mode:     ModeInteractive,
		Prompter: NewPrompter(strings.NewReader("y\n"), &out),
	}
	p := newPipeline(t, testConfig(), policy)
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeHealed, f.Outcome)
	assert.Equal(t, 1, f.FixesApplied)
}

func TestRun_InteractiveBatchNeedsToken(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", stuckDashPod)
	b := writeFile(t, dir, "b.yaml", stuckDashPod)

	// Anything but the token degrades the batch to report-only.
	var out strings.Builder
	policy := Policy{
		Mode:     ModeInteractive,
		Prompter: NewPrompter(strings.NewReader("yes\n"), &out),
	}
	p := newPipeline(t, testConfig(), policy)
	res, err := p.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Contains(t, out.String(), BatchToken)
	for _, path := range []string{a, b} {
		assert.Equal(t, models.OutcomeDiagnosed, fileByPath(t, res, path).Outcome)
	}

	// The typed token heals the whole batch without per-file prompts.
	policy.Prompter = NewPrompter(strings.NewReader(BatchToken+"\n"), &out)
	p2 := newPipeline(t, testConfig(), policy)
	res2, err := p2.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	for _, path := range []string{a, b} {
		assert.Equal(t, models.OutcomeHealed, fileByPath(t, res2, path).Outcome)
	}
}

func TestRun_IgnoredDocumentSuppressed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "widget.yaml", `# yamlr:ignore
apiVersion: example.com/v1
kind: Widget
metadata:
  name: w
`)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeClean, f.Outcome)
	assert.Empty(t, f.Diagnostics)
}

func TestRun_DeterministicOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", cleanDeployment)
	writeFile(t, dir, "a.yaml", cleanDeployment)
	writeFile(t, dir, "c.yaml", cleanDeployment)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeDryRun})
	res, err := p.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	require.Len(t, res.Files, 3)
	assert.True(t, strings.HasSuffix(res.Files[0].Path, "a.yaml"))
	assert.True(t, strings.HasSuffix(res.Files[1].Path, "b.yaml"))
	assert.True(t, strings.HasSuffix(res.Files[2].Path, "c.yaml"))
}

func TestRun_FixScope(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pod.yaml", stuckDashPod)

	p := newPipeline(t, testConfig(), Policy{Mode: ModeAuto})
	p.SetFixScope(func(ruleID string) bool {
		return strings.HasPrefix(ruleID, "migrate/")
	})
	res, err := p.Run(context.Background(), []string{path})
	require.NoError(t, err)

	// The stuck-dash fix is out of scope, so nothing is written.
	f := fileByPath(t, res, path)
	assert.Equal(t, models.OutcomeDiagnosed, f.Outcome)
	assert.Equal(t, 0, f.FixesApplied)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stuckDashPod, string(after))
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, Policy{Mode: ModeDryRun}.Validate())
	assert.NoError(t, Policy{Mode: ModeAuto}.Validate())
	assert.Error(t, Policy{Mode: ModeInteractive}.Validate())
	assert.Error(t, Policy{Mode: "yolo"}.Validate())
}

func TestPrompter_ConfirmBatch(t *testing.T) {
	var out strings.Builder
	ok, err := NewPrompter(strings.NewReader("heal-all\n"), &out).ConfirmBatch(3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewPrompter(strings.NewReader("\n"), &out).ConfirmBatch(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

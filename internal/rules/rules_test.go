package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamlr/yamlr/internal/document"
	"github.com/yamlr/yamlr/internal/lexer"
	"github.com/yamlr/yamlr/internal/models"
)

func parseDoc(t *testing.T, src string) *document.Document {
	t.Helper()
	docs, _, err := document.Parse("rules_test.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

func byRule(diags []models.Diagnostic, id string) []models.Diagnostic {
	var out []models.Diagnostic
	for _, d := range diags {
		if d.RuleID == id {
			out = append(out, d)
		}
	}
	return out
}

const podWithLatest = `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
  - name: app
    image: nginx:latest
    resources:
      limits:
        cpu: "1"
      requests:
        cpu: "1"
`

func TestNoLatestTag(t *testing.T) {
	reg := NewRegistry(Options{})
	diags := byRule(reg.Run(parseDoc(t, podWithLatest)), RuleNoLatestTag)
	require.Len(t, diags, 1)
	assert.Equal(t, models.SeverityError, diags[0].Severity)
	assert.False(t, diags[0].HasFix())
}

func TestNoLatestTag_FixWithDefaultTag(t *testing.T) {
	doc := parseDoc(t, podWithLatest)
	reg := NewRegistry(Options{DefaultImageTag: "1.25"})
	diags := byRule(reg.Run(doc), RuleNoLatestTag)
	require.Len(t, diags, 1)
	require.True(t, diags[0].HasFix())

	changed, err := diags[0].Fix.Apply(doc)
	require.NoError(t, err)
	assert.True(t, changed)
	image, _ := doc.Root.Lookup("spec", "containers").Items()[0].LookupString("image")
	assert.Equal(t, "nginx:1.25", image)
	assert.Equal(t, 1, doc.Revision())

	// applying the same fix again is a no-op
	changed, err = diags[0].Fix.Apply(doc)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, doc.Revision())
}

func TestNoLatestTag_UntaggedImage(t *testing.T) {
	doc := parseDoc(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
  - name: app
    image: nginx
`)
	diags := byRule(NewRegistry(Options{}).Run(doc), RuleNoLatestTag)
	require.Len(t, diags, 1)
}

func TestNoLatestTag_PinnedAndDigestClean(t *testing.T) {
	doc := parseDoc(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
  - name: a
    image: registry:5000/app:1.2.3
  - name: b
    image: nginx@sha256:abcd
`)
	assert.Empty(t, byRule(NewRegistry(Options{}).Run(doc), RuleNoLatestTag))
}

func TestDuplicateKey(t *testing.T) {
	doc := parseDoc(t, "kind: Pod\nkind: Service\n")
	diags := byRule(NewRegistry(Options{}).Run(doc), RuleDuplicateKey)
	require.Len(t, diags, 1)
	assert.Equal(t, 2, diags[0].Location.Line)
}

func TestStuckDashSurvivor(t *testing.T) {
	opts := lexer.DefaultOptions()
	opts.StuckDash = false
	docs, _, err := document.Parse("x.yaml", []byte("-image: nginx\n"), opts)
	require.NoError(t, err)
	diags := byRule(NewRegistry(Options{}).Run(docs[0]), RuleStuckDash)
	require.Len(t, diags, 1)
	assert.Equal(t, models.SeverityError, diags[0].Severity)
}

func TestResourceBounds(t *testing.T) {
	doc := parseDoc(t, `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  template:
    spec:
      containers:
      - name: app
        image: nginx:1.25
`)
	diags := NewRegistry(Options{}).Run(doc)
	assert.Len(t, byRule(diags, RuleMissingLimits), 1)
	assert.Len(t, byRule(diags, RuleMissingRequests), 1)
}

func TestSecurityContext(t *testing.T) {
	doc := parseDoc(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
  - name: app
    image: nginx:1.25
    securityContext:
      privileged: true
      runAsUser: 0
`)
	diags := NewRegistry(Options{}).Run(doc)
	require.Len(t, byRule(diags, RulePrivileged), 1)
	require.Len(t, byRule(diags, RuleRunAsRoot), 1)
	assert.Equal(t, models.SeverityError, byRule(diags, RulePrivileged)[0].Severity)
	assert.Equal(t, models.SeverityWarning, byRule(diags, RuleRunAsRoot)[0].Severity)
}

func TestInvalidName(t *testing.T) {
	doc := parseDoc(t, "kind: Pod\nmetadata:\n  name: Bad_Name\n")
	diags := byRule(NewRegistry(Options{}).Run(doc), RuleInvalidName)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Bad_Name")
}

func TestIgnoreDirectiveSuppresses(t *testing.T) {
	doc := parseDoc(t, `apiVersion: v1
kind: Pod
metadata:
  name: web
spec:
  containers:
  - name: app
    image: nginx:latest # yamlr:ignore
`)
	assert.Empty(t, byRule(NewRegistry(Options{}).Run(doc), RuleNoLatestTag))
}

func TestIgnoredDocumentProducesNothing(t *testing.T) {
	doc := parseDoc(t, "# yamlr:ignore\nkind: Pod\nmetadata:\n  name: Bad_Name\n")
	assert.Empty(t, NewRegistry(Options{}).Run(doc))
}

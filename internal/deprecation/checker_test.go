package deprecation

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
	docs, _, err := document.Parse("dep_test.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

func TestNewChecker_RejectsGarbage(t *testing.T) {
	_, err := NewChecker("not-a-version")
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestIsRemoved(t *testing.T) {
	c, err := NewChecker("1.29")
	require.NoError(t, err)

	assert.True(t, c.IsRemoved("extensions/v1beta1", "Deployment"))
	assert.True(t, c.IsRemoved("networking.k8s.io/v1beta1", "Ingress"))
	assert.True(t, c.IsRemoved("batch/v1beta1", "CronJob"))
	assert.False(t, c.IsRemoved("apps/v1", "Deployment"))
}

func TestIsRemoved_OldTarget(t *testing.T) {
	c, err := NewChecker("1.15")
	require.NoError(t, err)

	assert.False(t, c.IsRemoved("extensions/v1beta1", "Deployment"))
	assert.True(t, c.IsDeprecated("extensions/v1beta1", "Deployment"))
}

func TestCheck_RemovedIsError(t *testing.T) {
	c, err := NewChecker("1.29")
	require.NoError(t, err)

	doc := parseDoc(t, "apiVersion: extensions/v1beta1\nkind: Deployment\nmetadata:\n  name: web\n")
	diags := c.Check(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, RuleRemovedAPI, diags[0].RuleID)
	assert.Equal(t, models.SeverityError, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "apps/v1")
	assert.Equal(t, 1, diags[0].Location.Line)
}

func TestCheck_DeprecatedIsWarning(t *testing.T) {
	c, err := NewChecker("1.24")
	require.NoError(t, err)

	doc := parseDoc(t, "apiVersion: batch/v1beta1\nkind: CronJob\nmetadata:\n  name: tick\n")
	diags := c.Check(doc)
	require.Len(t, diags, 1)
	assert.Equal(t, RuleDeprecatedAPI, diags[0].RuleID)
	assert.Equal(t, models.SeverityWarning, diags[0].Severity)
}

func TestCheck_CurrentAPIsClean(t *testing.T) {
	c, err := NewChecker("1.29")
	require.NoError(t, err)
	doc := parseDoc(t, "apiVersion: apps/v1\nkind: Deployment\nmetadata:\n  name: web\n")
	assert.Empty(t, c.Check(doc))
}

package migrate

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
	docs, _, err := document.Parse("migrate_test.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

const betaDeployment = `apiVersion: extensions/v1beta1
kind: Deployment
metadata:
  name: web
spec:
  replicas: 2
  template:
    metadata:
      labels:
        app: web
    spec:
      containers:
      - name: web
        image: nginx:1.25
`

func TestDeploymentPromotionSynthesizesSelector(t *testing.T) {
	doc := parseDoc(t, betaDeployment)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)
	assert.Equal(t, StateDetected, m.State)
	assert.Equal(t, "extensions/v1beta1", m.From)
	assert.Equal(t, "apps/v1", m.To)
	assert.Equal(t, "workload-selector", m.Strategy)
	require.True(t, m.Diagnostic.HasFix())

	changed, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StateApplied, m.State)
	assert.Equal(t, "apps/v1", doc.APIVersion())

	match, ok := doc.Root.LookupString("spec", "selector", "matchLabels", "app")
	require.True(t, ok)
	assert.Equal(t, "web", match)
	assert.Equal(t, 1, doc.Revision())
}

func TestDeploymentPromotionIsIdempotent(t *testing.T) {
	doc := parseDoc(t, betaDeployment)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)

	_, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	changed, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, doc.Revision())
}

func TestDeploymentWithoutLabelsIsAmbiguous(t *testing.T) {
	doc := parseDoc(t, `apiVersion: extensions/v1beta1
kind: Deployment
metadata:
  name: web
spec:
  template:
    spec:
      containers:
      - name: web
        image: nginx:1.25
`)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)

	changed, err := m.Diagnostic.Fix.Apply(doc)
	assert.False(t, changed)
	require.Error(t, err)
	assert.True(t, models.IsAmbiguousMigration(err))
	assert.Equal(t, StateRejected, m.State)

	// rollback: the document still carries the old api version
	assert.Equal(t, "extensions/v1beta1", doc.APIVersion())
	assert.Equal(t, 0, doc.Revision())
}

func TestRevalidationFailureRollsBack(t *testing.T) {
	doc := parseDoc(t, `apiVersion: apps/v1beta1
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels:
      app: web
`)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)

	// apps/v1 requires spec.template, so the rewrite fails revalidation
	changed, err := m.Diagnostic.Fix.Apply(doc)
	assert.False(t, changed)
	require.Error(t, err)
	assert.True(t, models.IsMigrationRejected(err))
	assert.Equal(t, StateRejected, m.State)
	assert.NotEmpty(t, m.Reason)

	assert.Equal(t, "apps/v1beta1", doc.APIVersion())
	assert.Equal(t, 0, doc.Revision())
}

func TestExistingSelectorIsKept(t *testing.T) {
	doc := parseDoc(t, `apiVersion: apps/v1beta2
kind: Deployment
metadata:
  name: web
spec:
  selector:
    matchLabels:
      app: stable
  template:
    metadata:
      labels:
        app: web
`)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)
	_, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)

	v, _ := doc.Root.LookupString("spec", "selector", "matchLabels", "app")
	assert.Equal(t, "stable", v)
}

func TestIngressMigration(t *testing.T) {
	doc := parseDoc(t, `apiVersion: networking.k8s.io/v1beta1
kind: Ingress
metadata:
  name: web
spec:
  rules:
  - host: example.com
    http:
      paths:
      - path: /
        backend:
          serviceName: web
          servicePort: 80
`)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)
	assert.Equal(t, "ingress-v1", m.Strategy)

	changed, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "networking.k8s.io/v1", doc.APIVersion())

	path := doc.Root.Lookup("spec", "rules").Items()[0].Lookup("http", "paths").Items()[0]
	pathType, _ := path.LookupString("pathType")
	assert.Equal(t, "ImplementationSpecific", pathType)

	name, _ := path.LookupString("backend", "service", "name")
	assert.Equal(t, "web", name)
	port, ok := path.Lookup("backend", "service", "port", "number").AsInt()
	require.True(t, ok)
	assert.Equal(t, 80, port)
}

func TestCronJobMigrationIsPlainSwap(t *testing.T) {
	doc := parseDoc(t, `apiVersion: batch/v1beta1
kind: CronJob
metadata:
  name: tick
spec:
  schedule: "* * * * *"
  jobTemplate:
    spec:
      template:
        spec:
          containers:
          - name: tick
            image: busybox:1.36
`)
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)
	assert.Equal(t, "cronjob-v1", m.Strategy)

	changed, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "batch/v1", doc.APIVersion())
}

func TestGenericReplacement(t *testing.T) {
	doc := parseDoc(t, "apiVersion: scheduling.k8s.io/v1beta1\nkind: PriorityClass\nmetadata:\n  name: high\n")
	m := NewEngine().Detect(doc)
	require.NotNil(t, m)
	assert.Equal(t, "replace-apiversion", m.Strategy)

	_, err := m.Diagnostic.Fix.Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, "scheduling.k8s.io/v1", doc.APIVersion())
}

func TestNoMigrationForCurrentAPIs(t *testing.T) {
	doc := parseDoc(t, "apiVersion: apps/v1\nkind: Deployment\nmetadata:\n  name: web\n")
	assert.Nil(t, NewEngine().Detect(doc))
}

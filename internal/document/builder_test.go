package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamlr/yamlr/internal/lexer"
)

const deployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  labels:
    app: web
spec:
  replicas: 2
  template:
    spec:
      containers:
      - name: web
        image: nginx:1.25
        ports:
        - containerPort: 80
`

func parseOne(t *testing.T, src string) *Document {
	t.Helper()
	docs, _, err := Parse("test.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

func TestParse_Deployment(t *testing.T) {
	doc := parseOne(t, deployment)

	assert.Equal(t, "apps/v1", doc.APIVersion())
	assert.Equal(t, "Deployment", doc.Kind())
	assert.Equal(t, "web", doc.Name())
	assert.Equal(t, "default", doc.Namespace())

	replicas := doc.Root.Lookup("spec", "replicas")
	require.NotNil(t, replicas)
	n, ok := replicas.AsInt()
	require.True(t, ok)
	assert.Equal(t, 2, n)

	containers := doc.Root.Lookup("spec", "template", "spec", "containers")
	require.NotNil(t, containers)
	require.Equal(t, KindSequence, containers.Kind)
	require.Len(t, containers.Items(), 1)

	first := containers.Items()[0]
	image, ok := first.LookupString("image")
	require.True(t, ok)
	assert.Equal(t, "nginx:1.25", image)

	ports := first.Get("ports")
	require.NotNil(t, ports)
	require.Equal(t, KindSequence, ports.Kind)
	port, ok := ports.Items()[0].Get("containerPort").AsInt()
	require.True(t, ok)
	assert.Equal(t, 80, port)
}

func TestParse_KeyOrderPreserved(t *testing.T) {
	doc := parseOne(t, "b: 1\na: 2\nc: 3\n")
	assert.Equal(t, []string{"b", "a", "c"}, doc.Root.Keys())
}

func TestParse_MultiDocument(t *testing.T) {
	src := "---\nkind: Service\n---\nkind: ConfigMap\n"
	docs, _, err := Parse("multi.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Service", docs[0].Kind())
	assert.Equal(t, "ConfigMap", docs[1].Kind())
	assert.Equal(t, 0, docs[0].Index)
	assert.Equal(t, 1, docs[1].Index)
	assert.True(t, docs[0].LeadingMarker)
}

func TestParse_ProvenanceLines(t *testing.T) {
	doc := parseOne(t, "kind: Service\nmetadata:\n  name: web\n")
	name := doc.Root.Lookup("metadata", "name")
	require.NotNil(t, name)
	assert.Equal(t, 3, name.Line)
}

func TestParse_DuplicateKeysKeepFirst(t *testing.T) {
	doc := parseOne(t, "name: first\nname: second\n")
	v, _ := doc.Root.LookupString("name")
	assert.Equal(t, "first", v)
	require.Len(t, doc.Duplicates, 1)
	assert.Equal(t, "name", doc.Duplicates[0].Key)
	assert.Equal(t, 2, doc.Duplicates[0].Line)
}

func TestParse_ForcedArrayWrapsBareMapping(t *testing.T) {
	src := "spec:\n  containers:\n    name: web\n    image: nginx\n"
	docs, repairs, err := Parse("wrap.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)

	containers := docs[0].Root.Lookup("spec", "containers")
	require.NotNil(t, containers)
	require.Equal(t, KindSequence, containers.Kind)
	require.Len(t, containers.Items(), 1)
	img, _ := containers.Items()[0].LookupString("image")
	assert.Equal(t, "nginx", img)

	var heuristics []string
	for _, r := range repairs {
		heuristics = append(heuristics, r.Heuristic)
	}
	assert.Contains(t, heuristics, heuristicForcedArray)
}

func TestParse_BlockScalar(t *testing.T) {
	src := "data:\n  run.sh: |\n    echo one\n    echo two\n"
	doc := parseOne(t, src)
	script := doc.Root.Lookup("data", "run.sh")
	require.NotNil(t, script)
	assert.Equal(t, "echo one\necho two", script.Value)
	assert.Equal(t, StyleLiteral, script.Style)
}

func TestParse_QuotedScalars(t *testing.T) {
	doc := parseOne(t, `a: "hello world"`+"\n"+`b: 'it''s'`+"\n")
	a := doc.Root.Get("a")
	assert.Equal(t, "hello world", a.Value)
	assert.Equal(t, StyleDoubleQuoted, a.Style)
	b := doc.Root.Get("b")
	assert.Equal(t, "it's", b.Value)
	assert.Equal(t, StyleSingleQuoted, b.Style)
}

func TestParse_IgnoreDirectiveDocument(t *testing.T) {
	doc := parseOne(t, "# yamlr:ignore\nkind: Service\n")
	assert.True(t, doc.Ignored)
	assert.True(t, doc.LineIgnored(2))
}

func TestParse_IgnoreDirectiveInline(t *testing.T) {
	doc := parseOne(t, "kind: Service\nimage: nginx:latest # yamlr:ignore\n")
	assert.False(t, doc.Ignored)
	assert.True(t, doc.LineIgnored(2))
	assert.False(t, doc.LineIgnored(1))
}

func TestParse_IgnoreDirectiveNextLine(t *testing.T) {
	doc := parseOne(t, "kind: Service\n# YAMLR:IGNORE\nimage: nginx:latest\n")
	assert.False(t, doc.Ignored)
	assert.True(t, doc.LineIgnored(3))
}

func TestParse_InlineCommentBetweenKeyAndChild(t *testing.T) {
	doc := parseOne(t, "metadata: # tracked\n  name: web\n")
	v, ok := doc.Root.LookupString("metadata", "name")
	require.True(t, ok)
	assert.Equal(t, "web", v)
}

func TestParse_NullValues(t *testing.T) {
	doc := parseOne(t, "a:\nb: x\n")
	assert.True(t, doc.Root.Get("a").IsNull())
	assert.False(t, doc.Root.Get("b").IsNull())
}

func TestParse_StructureGuessAdopted(t *testing.T) {
	docs, repairs, err := Parse("guess.yaml", []byte(": orphan\n"), lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Root)
	assert.Equal(t, KindScalar, docs[0].Root.Kind)
	assert.Equal(t, "orphan", docs[0].Root.Value)

	var heuristics []string
	for _, r := range repairs {
		heuristics = append(heuristics, r.Heuristic)
	}
	assert.Contains(t, heuristics, heuristicGuess)
}

func TestParse_UnrecoverableFails(t *testing.T) {
	_, _, err := Parse("bad.yaml", []byte(":\n"), lexer.DefaultOptions())
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
}

func TestRevision(t *testing.T) {
	doc := parseOne(t, "a: 1\n")
	assert.Equal(t, 0, doc.Revision())
	doc.BumpRevision()
	assert.Equal(t, 1, doc.Revision())
}

func TestMarshal_RoundTripIsSemanticallyStable(t *testing.T) {
	doc := parseOne(t, deployment)
	out, err := Marshal([]*Document{doc})
	require.NoError(t, err)

	again, _, err := Parse("again.yaml", out, lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, Equal(doc.Root, again[0].Root))

	// a second pass changes nothing
	out2, err := Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
}

func TestMarshal_MultiDocumentSeparators(t *testing.T) {
	src := "---\na: 1\n---\nb: 2\n"
	docs, _, err := Parse("m.yaml", []byte(src), lexer.DefaultOptions())
	require.NoError(t, err)
	out, err := Marshal(docs)
	require.NoError(t, err)
	assert.Equal(t, "---\na: 1\n---\nb: 2\n", string(out))
}

func TestMarshal_PreservesComments(t *testing.T) {
	src := `# release: 2024-q3
apiVersion: v1
kind: Pod
metadata:
  name: web # owned by platform
spec:
  containers:
  # main container
  - name: web
    image: nginx:1.25
# end of manifest
`
	doc := parseOne(t, src)
	out, err := Marshal([]*Document{doc})
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# release: 2024-q3\napiVersion: v1")
	assert.Contains(t, text, "name: web # owned by platform")
	assert.Contains(t, text, "# main container")
	assert.Contains(t, text, "# end of manifest")

	again, _, err := Parse("again.yaml", out, lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, Equal(doc.Root, again[0].Root))
}

func TestMarshal_InlineIgnoreDirectiveSurvivesRewrite(t *testing.T) {
	doc := parseOne(t, "kind: Service\nimage: nginx:latest # yamlr:ignore\n")
	require.True(t, doc.LineIgnored(2))

	out, err := Marshal([]*Document{doc})
	require.NoError(t, err)
	assert.Contains(t, string(out), "image: nginx:latest # yamlr:ignore")

	again, _, err := Parse("again.yaml", out, lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, again, 1)
	line := again[0].Root.Get("image").Line
	assert.True(t, again[0].LineIgnored(line))
	assert.False(t, again[0].Ignored)
}

func TestMarshal_DocumentIgnoreDirectiveSurvivesRewrite(t *testing.T) {
	doc := parseOne(t, "# yamlr:ignore\nkind: Service\n")
	require.True(t, doc.Ignored)

	out, err := Marshal([]*Document{doc})
	require.NoError(t, err)

	again, _, err := Parse("again.yaml", out, lexer.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.True(t, again[0].Ignored)
}

func TestNode_SetRemove(t *testing.T) {
	m := NewMapping()
	m.Set("a", NewScalar("1"))
	m.Set("b", NewScalar("2"))
	m.Set("a", NewScalar("3"))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	assert.Equal(t, "3", m.Get("a").Value)

	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.Equal(t, []string{"b"}, m.Keys())
}

func TestNode_CloneIsDeep(t *testing.T) {
	doc := parseOne(t, deployment)
	clone := doc.Root.Clone()
	require.True(t, Equal(doc.Root, clone))

	clone.Lookup("metadata").Set("name", NewScalar("other"))
	assert.Equal(t, "web", doc.Name())
	assert.False(t, Equal(doc.Root, clone))
}

package rewriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/docuse/internal/parser"
	"github.com/standardbeagle/docuse/internal/types"
)

func mustConstructs(t *testing.T, content []byte) []types.Construct {
	t.Helper()
	p, err := parser.New()
	require.NoError(t, err)
	defer p.Close()
	cs, err := p.Parse("/project/mod.py", content)
	require.NoError(t, err)
	return cs
}

func findConstruct(t *testing.T, cs []types.Construct, kind types.ConstructKind, name string) *types.Construct {
	t.Helper()
	for i := range cs {
		if cs[i].Kind == kind && cs[i].Name == name {
			return &cs[i]
		}
	}
	t.Fatalf("no construct kind=%v name=%q among %d constructs", kind, name, len(cs))
	return nil
}

func refSet(files ...string) *types.ReferenceSet {
	rs := types.NewReferenceSet()
	for i, f := range files {
		rs.Add(types.Reference{File: f, Line: i + 1})
	}
	return rs
}

func TestRewriteFileNoOpWhenNoReferences(t *testing.T) {
	content := []byte("def greet():\n    pass\n")
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project", UpdateModuleDocs: true})
	require.NoError(t, err)

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: types.NewReferenceSet()},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, content, out)
}

func TestRewriteFileCreatesNewDocstring(t *testing.T) {
	content := []byte("def greet():\n    return 'hi'\n")
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: refSet("/project/caller.py")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)

	require.Contains(t, string(out), `"""`)
	require.Contains(t, string(out), "Used in:\n    - caller.py")
	assert.Contains(t, string(out), "return 'hi'")

	reparsed := mustConstructs(t, out)
	fn2 := findConstruct(t, reparsed, types.KindFunction, "greet")
	require.NotNil(t, fn2.ExistingDocstring)
	assert.Equal(t, "Used in:\n- caller.py", fn2.ExistingDocstring.Text)
}

func TestRewriteFileMergesIntoExistingUsedInBlock(t *testing.T) {
	content := []byte(`def greet():
    """Say hello.

    Used in:
    - old/caller.py

    Keep this trailing note.
    """
    return 'hi'
`)
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")
	require.NotNil(t, fn.ExistingDocstring)

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: refSet("/project/new/caller.py")},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)

	text := string(out)
	assert.Contains(t, text, "Say hello.")
	assert.Contains(t, text, "Keep this trailing note.")
	assert.Contains(t, text, "old/caller.py")
	assert.Contains(t, text, "new/caller.py")

	reparsed := mustConstructs(t, out)
	fn2 := findConstruct(t, reparsed, types.KindFunction, "greet")
	require.NotNil(t, fn2.ExistingDocstring)
	assert.Contains(t, fn2.ExistingDocstring.Text, "Say hello.")
	assert.Contains(t, fn2.ExistingDocstring.Text, "Keep this trailing note.")
	assert.Contains(t, fn2.ExistingDocstring.Text, "- new/caller.py")
	assert.Contains(t, fn2.ExistingDocstring.Text, "- old/caller.py")
}

func TestRewriteFileMergeIsNoOpWhenPathsAlreadyPresent(t *testing.T) {
	content := []byte(`def greet():
    """
    Used in:
    - caller.py
    """
    return 'hi'
`)
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: refSet("/project/caller.py")},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, content, out)
}

func TestRewriteFileSkipsModuleWhenUpdateModuleDocsDisabled(t *testing.T) {
	content := []byte("\"\"\"A module.\"\"\"\n\ndef greet():\n    pass\n")
	cs := mustConstructs(t, content)
	mod := findConstruct(t, cs, types.KindModule, "mod")

	r, err := New(Options{ProjectRoot: "/project", UpdateModuleDocs: false})
	require.NoError(t, err)

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: mod, Refs: refSet("/project/caller.py")},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, content, out)
}

func TestRewriteFileIncludesLineNumbersWhenEnabled(t *testing.T) {
	content := []byte("def greet():\n    pass\n")
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project", IncludeLineNumbers: true})
	require.NoError(t, err)

	rs := types.NewReferenceSet()
	rs.Add(types.Reference{File: "/project/caller.py", Line: 42})

	out, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: rs},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)
	assert.Contains(t, string(out), "caller.py (Line: 42)")
}

func TestRewriteFileWithLineNumbersIsIdempotentAcrossRuns(t *testing.T) {
	content := []byte("def greet():\n    pass\n")
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project", IncludeLineNumbers: true})
	require.NoError(t, err)

	rs := types.NewReferenceSet()
	rs.Add(types.Reference{File: "/project/caller.py", Line: 42})

	firstPass, outcome, err := r.RewriteFile("/project/mod.py", content, []ConstructRefs{
		{Construct: fn, Refs: rs},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)

	cs2 := mustConstructs(t, firstPass)
	fn2 := findConstruct(t, cs2, types.KindFunction, "greet")

	secondPass, outcome, err := r.RewriteFile("/project/mod.py", firstPass, []ConstructRefs{
		{Construct: fn2, Refs: rs},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome, "re-running with the same references must not append a duplicate bullet")
	assert.Equal(t, firstPass, secondPass)
	assert.Equal(t, 1, strings.Count(string(firstPass), "caller.py"), "exactly one bullet for caller.py, not one per run")
}

func TestSafetyGateRejectsUnparsableContent(t *testing.T) {
	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	err = r.safetyGate([]byte("def f(:\n"))
	assert.Error(t, err)
}

func TestSafetyGateAcceptsValidContent(t *testing.T) {
	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	err = r.safetyGate([]byte("def f():\n    pass\n"))
	assert.NoError(t, err)
}

func TestNewRejectsLooseBoundaryMode(t *testing.T) {
	_, err := New(Options{Boundary: BoundaryModeLoose})
	assert.Error(t, err)
}

func TestCleanFileRemovesUsedInBlockPreservingProse(t *testing.T) {
	content := []byte(`def greet():
    """Say hello.

    Used in:
    - caller.py
    """
    return 'hi'
`)
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.CleanFile("/project/mod.py", content, []*types.Construct{fn})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)

	text := string(out)
	assert.Contains(t, text, "Say hello.")
	assert.NotContains(t, text, "Used in:")
	assert.NotContains(t, text, "caller.py")
}

func TestCleanFileRemovesEntirelyGeneratedDocstring(t *testing.T) {
	content := []byte(`def greet():
    """
    Used in:
    - caller.py
    """
    return 'hi'
`)
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.CleanFile("/project/mod.py", content, []*types.Construct{fn})
	require.NoError(t, err)
	require.Equal(t, OutcomeModified, outcome)
	assert.NotContains(t, string(out), "Used in:")
}

func TestCleanFileNoOpWithoutUsedInBlock(t *testing.T) {
	content := []byte("def greet():\n    \"\"\"Say hello.\"\"\"\n    return 'hi'\n")
	cs := mustConstructs(t, content)
	fn := findConstruct(t, cs, types.KindFunction, "greet")

	r, err := New(Options{ProjectRoot: "/project"})
	require.NoError(t, err)

	out, outcome, err := r.CleanFile("/project/mod.py", content, []*types.Construct{fn})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, content, out)
}

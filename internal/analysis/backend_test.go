package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/docuse/internal/types"
)

func readerFor(files map[string]string) ReadFunc {
	return func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return []byte(content), nil
	}
}

func TestFastSymbolBackendFindsWordBoundaryMatches(t *testing.T) {
	b := NewFastSymbolBackend()
	construct := &types.Construct{Name: "greet"}
	files := map[string]string{
		"a.py": "greet(name)\nungreeted()\nx = greet\n",
	}

	refs, err := b.FindReferences(context.Background(), construct, []string{"a.py"}, readerFor(files))
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 1, refs[0].Line)
	assert.Equal(t, 3, refs[1].Line)
}

func TestFastSymbolBackendUnreadableFileIsSkippedNotFailed(t *testing.T) {
	b := NewFastSymbolBackend()
	construct := &types.Construct{Name: "greet"}

	refs, err := b.FindReferences(context.Background(), construct, []string{"missing.py"}, readerFor(nil))
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestFastSymbolBackendEmptyNameYieldsNothing(t *testing.T) {
	b := NewFastSymbolBackend()
	refs, err := b.FindReferences(context.Background(), &types.Construct{}, []string{"a.py"}, readerFor(map[string]string{"a.py": "x"}))
	require.NoError(t, err)
	assert.Nil(t, refs)
}

func TestLintDrivenBackendMatchesExactAndSimilarTokens(t *testing.T) {
	b := NewLintDrivenBackend()
	construct := &types.Construct{Name: "greet"}
	files := map[string]string{
		"a.py": "greet(name)\ngreett(name)\nunrelated_call()\n",
	}

	refs, err := b.FindReferences(context.Background(), construct, []string{"a.py"}, readerFor(files))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(refs), 1)
	assert.Equal(t, 1, refs[0].Line)
}

func TestDeepSemanticBackendFindsCallsAndAttributesAndSuperclasses(t *testing.T) {
	b := NewDeepSemanticBackend()
	construct := &types.Construct{Name: "Greeter"}
	files := map[string]string{
		"a.py": "class Loud(Greeter):\n    def hi(self):\n        return self.Greeter\n",
	}

	refs, err := b.FindReferences(context.Background(), construct, []string{"a.py"}, readerFor(files))
	require.NoError(t, err)
	assert.NotEmpty(t, refs)
}

func TestDeepSemanticBackendResolvesImportAlias(t *testing.T) {
	b := NewDeepSemanticBackend()
	construct := &types.Construct{Name: "greet"}
	files := map[string]string{
		"a.py": "import mod.greet as g\ng()\n",
	}

	refs, err := b.FindReferences(context.Background(), construct, []string{"a.py"}, readerFor(files))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 2, refs[0].Line)
}

func TestStructuralPatternBackendMatchesCallsAndImports(t *testing.T) {
	b, err := NewStructuralPatternBackend()
	require.NoError(t, err)
	defer b.Close()

	construct := &types.Construct{Name: "greet"}
	files := map[string]string{
		"a.py": "from mod import greet\ngreet()\n",
	}

	refs, err := b.FindReferences(context.Background(), construct, []string{"a.py"}, readerFor(files))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(refs), 2)
}

func TestAllBackendsReturnEmptyNotErrorOnMissingFile(t *testing.T) {
	construct := &types.Construct{Name: "greet"}
	structural, err := NewStructuralPatternBackend()
	require.NoError(t, err)
	defer structural.Close()

	backends := []Backend{
		NewFastSymbolBackend(),
		NewLintDrivenBackend(),
		NewDeepSemanticBackend(),
		structural,
	}
	for _, b := range backends {
		refs, err := b.FindReferences(context.Background(), construct, []string{"missing.py"}, readerFor(nil))
		require.NoError(t, err, b.Name())
		assert.Empty(t, refs, b.Name())
	}
}

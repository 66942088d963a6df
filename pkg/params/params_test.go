package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamSet_RoundTrip(t *testing.T) {
	t.Parallel()

	ps := New()
	ps.Set("hello_world", "banana")
	ps.Set(0, []any{1, 10, 14.1})
	ps.Set("chans", map[string]any{"1": "b"})
	ps.Set("enabled", true)

	path := filepath.Join(t.TempDir(), "params.yaml")

	err := ps.Write(path)
	require.NoError(t, err)

	read := New()

	err = read.Read(path)
	require.NoError(t, err)

	v, err := read.Get("hello_world")
	require.NoError(t, err)
	assert.Equal(t, "banana", v)

	// Integer keys are coerced to their string form on round-trip.
	v, err = read.Get("0")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 10, 14.1}, v)

	v, err = read.Get("chans")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"1": "b"}, v)

	v, err = read.Get("enabled")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestParamSet_ReadIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "params.yaml")

	err := os.WriteFile(path, []byte("a: 1\nb:\n  - x\n  - y\nc: 2.5\n"), 0o644)
	require.NoError(t, err)

	first := New()
	require.NoError(t, first.Read(path))

	second := New()
	require.NoError(t, second.Read(path))

	assert.Equal(t, first.Keys(), second.Keys())

	for _, k := range first.Keys() {
		fv, err := first.Get(k)
		require.NoError(t, err)

		sv, err := second.Get(k)
		require.NoError(t, err)

		assert.Equal(t, fv, sv)
	}
}

func TestParamSet_OrderPreserved(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "params.yaml")

	err := os.WriteFile(path, []byte("zeta: 1\nalpha: 2\nmid: 3\n"), 0o644)
	require.NoError(t, err)

	ps := New()
	require.NoError(t, ps.Read(path))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, ps.Keys())
}

func TestParamSet_ParseErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	badSyntax := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badSyntax, []byte("a: [1, 2\n"), 0o644))

	err := New().Read(badSyntax)
	assert.ErrorIs(t, err, ErrParse)

	notMapping := filepath.Join(dir, "seq.yaml")
	require.NoError(t, os.WriteFile(notMapping, []byte("- 1\n- 2\n"), 0o644))

	err = New().Read(notMapping)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParamSet_KeyNotFound(t *testing.T) {
	t.Parallel()

	ps := New()
	ps.Set("present", 1)

	_, err := ps.Get("absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.Equal(t, "fallback", ps.GetOr("absent", "fallback"))
	assert.Equal(t, 1, ps.GetOr("present", "fallback"))
}

func TestParamSet_CloneIsDeep(t *testing.T) {
	t.Parallel()

	ps := New()
	ps.Set("nested", map[string]any{"inner": []any{1, 2}})

	clone := ps.Clone()

	v, err := ps.Get("nested")
	require.NoError(t, err)

	v.(map[string]any)["inner"] = "mutated"

	cv, err := clone.Get("nested")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, cv.(map[string]any)["inner"])
}

func TestParamSet_Delete(t *testing.T) {
	t.Parallel()

	ps := FromPairs(
		Pair{Key: "a", Value: 1},
		Pair{Key: "b", Value: 2},
		Pair{Key: "c", Value: 3},
	)

	ps.Delete("b")

	assert.Equal(t, []string{"a", "c"}, ps.Keys())
	assert.False(t, ps.Has("b"))
}

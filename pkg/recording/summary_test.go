package recording

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summaryContainer builds a two-element container with scores attached.
func summaryContainer(t *testing.T) *Container {
	t.Helper()

	root := t.TempDir()
	loader := &countingLoader{}

	writeParamFile(t, filepath.Join(root, "a"), "params.yaml", nil)
	writeParamFile(t, filepath.Join(root, "b"), "params.yaml", nil)

	c := NewContainer(true, testResolver(loader), nil)

	_, err := c.AutoSetup(root, "params.yaml", true)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	first, err := c.At(0)
	require.NoError(t, err)
	first.Results.Set("score", 3.5)

	second, err := c.At(1)
	require.NoError(t, err)
	second.Results.Set("score", 7.25)

	return c
}

func TestSaveSummary_FixedPrecision(t *testing.T) {
	t.Parallel()

	c := summaryContainer(t)
	out := filepath.Join(t.TempDir(), "sim_results", "results.csv")

	err := c.SaveSummary(out, []SummaryColumn{{Path: "results.score", Name: "score"}}, false)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, "score\n3.50\n7.25\n", string(data))
}

func TestSaveSummary_MissingAttribute(t *testing.T) {
	t.Parallel()

	c := summaryContainer(t)
	out := filepath.Join(t.TempDir(), "results.csv")

	err := c.SaveSummary(out, []SummaryColumn{{Path: "results.absent"}}, false)
	assert.ErrorIs(t, err, ErrMissingAttribute)
}

func TestSaveSummary_SkipMissing(t *testing.T) {
	t.Parallel()

	c := summaryContainer(t)

	first, err := c.At(0)
	require.NoError(t, err)
	first.Results.Set("extra", 1)

	out := filepath.Join(t.TempDir(), "results.csv")

	err = c.SaveSummary(out, []SummaryColumn{
		{Path: "results.score", Name: "score"},
		{Path: "results.extra", Name: "extra"},
	}, true)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, "score,extra\n3.50,1\n7.25,\n", string(data))
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	c := summaryContainer(t)

	var buf bytes.Buffer

	err := c.RenderSummary(&buf, []SummaryColumn{{Path: "results.score", Name: "score"}}, false)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "3.50")
	assert.Contains(t, buf.String(), "7.25")
	assert.Contains(t, buf.String(), "SCORE")
}

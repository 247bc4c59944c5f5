package backtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
	"stocks": [
		{"symbol": "AAPL", "allocation": 0.6},
		{"symbol": "MSFT", "allocation": 0.4}
	],
	"startDate": "2023-01-01",
	"endDate": "2023-12-31",
	"initialCapital": 100000,
	"gridSpacing": 0.05,
	"profitTarget": 0.10,
	"enableBetaScaling": true,
	"enableBetaCapitalAllocation": true
}`

func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "portfolios"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios", "tech_mix.json"), []byte(sampleConfig), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	loader := NewConfigLoader(setupConfigDir(t), zerolog.Nop())

	params, err := loader.Load("tech_mix")
	require.NoError(t, err)
	require.NotNil(t, params)

	assert.Len(t, params.Stocks, 2)
	assert.Equal(t, 0.05, params.GridSpacing)
	assert.Equal(t, "2023-01-01", params.StartDate)
}

func TestLoad_MarksPreScaled(t *testing.T) {
	loader := NewConfigLoader(setupConfigDir(t), zerolog.Nop())

	params, err := loader.Load("tech_mix")
	require.NoError(t, err)

	// The file enables beta scaling but stored values are already scaled -
	// loading must force both flags off to prevent double scaling.
	assert.False(t, params.EnableBetaScaling)
	assert.False(t, params.EnableBetaCapitalAllocation)
}

func TestLoad_NotFound(t *testing.T) {
	loader := NewConfigLoader(setupConfigDir(t), zerolog.Nop())

	params, err := loader.Load("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestLoad_RejectsPathTraversal(t *testing.T) {
	loader := NewConfigLoader(setupConfigDir(t), zerolog.Nop())

	for _, name := range []string{"../secrets", "a/b", `a\b`, ""} {
		_, err := loader.Load(name)
		assert.Error(t, err, "name %q should be rejected", name)
	}
}

func TestLoad_InvalidAllocations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "portfolios"), 0o755))
	bad := `{"stocks": [{"symbol": "AAPL", "allocation": 0.5}], "initialCapital": 1000}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios", "bad.json"), []byte(bad), 0o644))

	loader := NewConfigLoader(dir, zerolog.Nop())
	_, err := loader.Load("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocations")
}

func TestList(t *testing.T) {
	dir := setupConfigDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios", "another.json"), []byte(sampleConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios", "notes.txt"), []byte("x"), 0o644))

	loader := NewConfigLoader(dir, zerolog.Nop())
	names, err := loader.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"another", "tech_mix"}, names)
}

func TestList_MissingDir(t *testing.T) {
	loader := NewConfigLoader(t.TempDir(), zerolog.Nop())

	names, err := loader.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"import", "preview", "layers", "migrate", "serve", "template"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "marketarea", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentPreRunE(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
store:
  driver: sqlite
  database_url: areas.db
import:
  project_id: proj-7
  default_state: TX
log:
  level: warn
  format: console
`), 0o644))

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, "proj-7", cfg.Import.ProjectID)
	assert.Equal(t, "TX", cfg.Import.DefaultState)
	assert.Equal(t, "Orange County", cfg.Import.DefaultCounty)
}

func TestRootCommand_PersistentPreRunE_BadLevel(t *testing.T) {
	t.Setenv("MARKETAREA_LOG_LEVEL", "loud")

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"project", "yes", "geojson", "shapefile", "sheet"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), "import should have --%s flag", name)
	}
	assert.Equal(t, "false", importCmd.Flags().Lookup("yes").DefValue)
}

func TestTemplateCommand_Flags(t *testing.T) {
	flag := templateCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "market_area_template.xlsx", flag.DefValue)
	assert.NotNil(t, templateCmd.Flags().Lookup("example"))
	assert.NotNil(t, templateCmd.Flags().Lookup("project"))
}

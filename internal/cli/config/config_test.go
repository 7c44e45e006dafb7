package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primmus/DC3-MWCP/internal/cli/config"
	"github.com/primmus/DC3-MWCP/internal/testutil"
	"github.com/primmus/DC3-MWCP/pkg/mwcp"
)

// newTestFlags mirrors the flag definitions registered by the root command.
func newTestFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("output-dir", "o", "", "")
	flags.StringP("prefix", "p", "", "")
	flags.BoolP("no-output-files", "w", false, "")
	flags.Bool("embed", false, "")
	flags.BoolP("no-debug", "d", false, "")
	flags.BoolP("no-cleanup", "t", false, "")
	flags.Bool("no-cascade", false, "")
	flags.Bool("no-dedup", false, "")
	flags.Bool("no-file-info", false, "")
	flags.StringP("format", "f", string(mwcp.DefaultReportFormat), "")
	flags.BoolP("recursive", "r", false, "")
	flags.StringArray("ignore", []string{}, "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

// TestLoadDefaults verifies the baseline configuration with no file, env,
// or flag overrides.
func TestLoadDefaults(t *testing.T) {
	settings, logger, err := config.LoadAndValidate("", newTestFlags())
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, mwcp.DefaultOutputDir, settings.OutputDir)
	assert.Equal(t, string(mwcp.DefaultReportFormat), settings.Format)
	assert.False(t, settings.Verbose)
	assert.False(t, settings.Recursive)
	assert.True(t, settings.RecordFileInfo, "File info recording should default on for the CLI")
	assert.Empty(t, settings.IgnorePatterns)
	assert.NotNil(t, settings.Logger, "Merged settings must carry a usable log handler")
}

// TestLoadFlagOverrides verifies explicitly set flags win over defaults.
func TestLoadFlagOverrides(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "artifacts")
	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{
		"--output-dir", outDir,
		"--format", "json",
		"--recursive",
		"--no-debug",
		"--no-dedup",
		"--ignore", "*.tmp",
		"--ignore", "skipme/*",
		"--verbose",
	}))

	settings, _, err := config.LoadAndValidate("", flags)
	require.NoError(t, err)

	assert.Equal(t, "json", settings.Format)
	assert.True(t, settings.Recursive)
	assert.True(t, settings.DisableDebug)
	assert.True(t, settings.DisableDedup)
	assert.True(t, settings.Verbose)
	assert.Equal(t, []string{"*.tmp", "skipme/*"}, settings.IgnorePatterns)

	// Output directory is resolved to an absolute path and created.
	assert.True(t, filepath.IsAbs(settings.OutputDir))
	info, statErr := os.Stat(settings.OutputDir)
	require.NoError(t, statErr, "Validation should create the output directory")
	assert.True(t, info.IsDir())
}

// TestLoadConfigFile verifies values are read from an explicit YAML file.
func TestLoadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "mwcp.yaml")
	testutil.CreateDummyFile(t, cfgPath, "format: json\nrecursive: true\nignore:\n  - \"*.bak\"\n")

	settings, _, err := config.LoadAndValidate(cfgPath, newTestFlags())
	require.NoError(t, err)

	assert.Equal(t, cfgPath, settings.ConfigFilePath)
	assert.Equal(t, "json", settings.Format)
	assert.True(t, settings.Recursive)
	assert.Equal(t, []string{"*.bak"}, settings.IgnorePatterns)
}

// TestLoadConfigFileMissing verifies an explicitly named but absent config
// file is an error, unlike the silent default search.
func TestLoadConfigFileMissing(t *testing.T) {
	_, _, err := config.LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml"), newTestFlags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

// TestLoadInvalidFormat verifies format validation failure semantics.
func TestLoadInvalidFormat(t *testing.T) {
	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--format", "xml"}))

	_, _, err := config.LoadAndValidate("", flags)
	require.Error(t, err)
	assert.ErrorIs(t, err, mwcp.ErrConfigValidation)
	assert.Contains(t, err.Error(), "xml")
}

// TestNoFileInfoFlag verifies --no-file-info inverts into RecordFileInfo.
func TestNoFileInfoFlag(t *testing.T) {
	flags := newTestFlags()
	require.NoError(t, flags.Parse([]string{"--no-file-info"}))

	settings, _, err := config.LoadAndValidate("", flags)
	require.NoError(t, err)
	assert.False(t, settings.RecordFileInfo)
}

// TestEngineOptionsPrefixModes verifies the --prefix value maps onto the
// engine's prefix modes, including the md5 keyword.
func TestEngineOptionsPrefixModes(t *testing.T) {
	cases := []struct {
		name       string
		prefix     string
		wantMode   mwcp.PrefixMode
		wantPrefix string
	}{
		{name: "empty is none", prefix: "", wantMode: mwcp.PrefixNone},
		{name: "md5 keyword selects input hash", prefix: config.PrefixMD5Keyword, wantMode: mwcp.PrefixInputHash},
		{name: "literal prefix is fixed", prefix: "run1", wantMode: mwcp.PrefixFixed, wantPrefix: "run1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := config.Settings{OutputPrefix: tc.prefix}
			opts := settings.EngineOptions()
			assert.Equal(t, tc.wantMode, opts.OutputPrefixMode)
			assert.Equal(t, tc.wantPrefix, opts.OutputPrefix)
		})
	}
}

// TestEngineOptionsCarriesKnobs verifies the engine-facing settings make it
// into the options struct unchanged.
func TestEngineOptionsCarriesKnobs(t *testing.T) {
	settings := config.Settings{
		OutputDir:           "/tmp/out",
		DisableOutputFiles:  true,
		DisableDebug:        true,
		DisableTempCleanup:  true,
		DisableCascade:      true,
		DisableDedup:        true,
		EmbedOutputPayloads: true,
		RecordFileInfo:      true,
	}
	opts := settings.EngineOptions()

	assert.Equal(t, "/tmp/out", opts.OutputDir)
	assert.True(t, opts.DisableOutputFiles)
	assert.True(t, opts.DisableDebug)
	assert.True(t, opts.DisableTempCleanup)
	assert.True(t, opts.DisableCascade)
	assert.True(t, opts.DisableDedup)
	assert.True(t, opts.EmbedOutputPayloads)
	assert.True(t, opts.RecordFileInfo)
}

// TestReportFormat verifies the typed accessor.
func TestReportFormat(t *testing.T) {
	settings := config.Settings{Format: "json"}
	assert.Equal(t, mwcp.ReportFormatJSON, settings.ReportFormat())
}

// Package config loads CLI configuration from defaults, an optional
// config file, environment variables, and command-line flags, in that
// precedence order, and turns the merged result into validated engine
// options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/primmus/DC3-MWCP/pkg/mwcp"
)

const (
	EnvPrefix         = "MWCP"
	DefaultConfigName = "mwcp"

	// PrefixMD5Keyword is the magic --prefix value selecting the
	// input-hash prefix mode instead of a literal prefix.
	PrefixMD5Keyword = "md5"
)

// Settings is the merged CLI configuration. Engine-facing knobs convert
// into mwcp.Options via EngineOptions; the rest drive the batch runner.
type Settings struct {
	// --- Engine knobs ---
	OutputDir           string `mapstructure:"outputDir"`
	OutputPrefix        string `mapstructure:"outputPrefix"`
	DisableOutputFiles  bool   `mapstructure:"disableOutputFiles"`
	DisableDebug        bool   `mapstructure:"disableDebug"`
	DisableTempCleanup  bool   `mapstructure:"disableTempCleanup"`
	DisableCascade      bool   `mapstructure:"disableCascade"`
	DisableDedup        bool   `mapstructure:"disableDedup"`
	EmbedOutputPayloads bool   `mapstructure:"embedOutputPayloads"`
	RecordFileInfo      bool   `mapstructure:"recordFileInfo"`

	// --- Batch runner knobs ---
	Format         string   `mapstructure:"format"`
	Recursive      bool     `mapstructure:"recursive"`
	IgnorePatterns []string `mapstructure:"ignore"`
	Verbose        bool     `mapstructure:"verbose"`

	ConfigFilePath string `mapstructure:"-"`

	// Logger is the slog handler built from the merged verbosity, shared
	// by the CLI and injected into the engine.
	Logger slog.Handler `mapstructure:"-"`
}

// LoadAndValidate loads configuration from all sources, validates the
// merged result, and builds the final logger. Flag values win over
// environment variables, which win over the config file.
func LoadAndValidate(cfgFile string, flags *pflag.FlagSet) (Settings, *slog.Logger, error) {
	var settings Settings
	v := viper.New()

	// Temporary logger for errors raised before verbosity is known.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return settings, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return settings, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		settings.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", settings.ConfigFilePath))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	flagKeys := []string{
		"output-dir", "prefix", "format", "recursive", "ignore", "verbose",
		"no-output-files", "no-debug", "no-cleanup", "no-cascade",
		"no-dedup", "embed", "no-file-info",
	}
	for _, key := range flagKeys {
		flag := flags.Lookup(key)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", key))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			tempLogger.Error("Error binding flag", slog.String("flag", key), slog.Any("error", err))
			return settings, tempLogger, fmt.Errorf("error binding flag '--%s': %w", key, err)
		}
	}
	// Map dashed flag names onto the camelCase config keys.
	v.RegisterAlias("outputDir", "output-dir")
	v.RegisterAlias("outputPrefix", "prefix")
	v.RegisterAlias("disableOutputFiles", "no-output-files")
	v.RegisterAlias("disableDebug", "no-debug")
	v.RegisterAlias("disableTempCleanup", "no-cleanup")
	v.RegisterAlias("disableCascade", "no-cascade")
	v.RegisterAlias("disableDedup", "no-dedup")
	v.RegisterAlias("embedOutputPayloads", "embed")

	if err := v.Unmarshal(&settings); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return settings, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Boolean flags always win when explicitly set; viper's merge can be
	// ambiguous about false values.
	if flags.Changed("verbose") {
		settings.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("no-file-info") {
		noInfo, _ := flags.GetBool("no-file-info")
		settings.RecordFileInfo = !noInfo
	}

	logLevel := slog.LevelInfo
	if settings.Verbose {
		logLevel = slog.LevelDebug
	}
	settings.Logger = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(settings.Logger)

	if err := validate(&settings, logger); err != nil {
		return settings, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", settings.ConfigFilePath),
		slog.Bool("verbose", settings.Verbose),
		slog.String("format", settings.Format),
	)
	return settings, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("outputDir", mwcp.DefaultOutputDir)
	v.SetDefault("outputPrefix", "")
	v.SetDefault("disableOutputFiles", false)
	v.SetDefault("disableDebug", false)
	v.SetDefault("disableTempCleanup", false)
	v.SetDefault("disableCascade", false)
	v.SetDefault("disableDedup", false)
	v.SetDefault("embedOutputPayloads", false)
	v.SetDefault("recordFileInfo", true)
	v.SetDefault("format", string(mwcp.DefaultReportFormat))
	v.SetDefault("recursive", false)
	v.SetDefault("ignore", []string{})
	v.SetDefault("verbose", false)
}

// validate performs semantic validation on the merged settings and
// prepares the output directory when artifacts will be written.
func validate(settings *Settings, logger *slog.Logger) error {
	allowedFormats := []string{string(mwcp.ReportFormatText), string(mwcp.ReportFormatJSON)}
	if !slices.Contains(allowedFormats, settings.Format) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'format' (flag --format). Allowed: %v",
			mwcp.ErrConfigValidation, settings.Format, allowedFormats)
		logger.Error(err.Error(), slog.String("key", "format"), slog.String("value", settings.Format))
		return err
	}

	if settings.OutputDir != "" && !settings.DisableOutputFiles {
		abs, err := filepath.Abs(settings.OutputDir)
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve absolute output directory '%s': %w",
				mwcp.ErrConfigValidation, settings.OutputDir, err)
			logger.Error(err.Error(), slog.String("key", "outputDir"))
			return err
		}
		settings.OutputDir = abs
		if mkdirErr := os.MkdirAll(settings.OutputDir, 0o755); mkdirErr != nil {
			err = fmt.Errorf("%w: cannot create or access output directory '%s': %w",
				mwcp.ErrConfigValidation, settings.OutputDir, mkdirErr)
			logger.Error(err.Error(), slog.String("key", "outputDir"))
			return err
		}
		logger.Debug("Resolved and verified output directory", slog.String("path", settings.OutputDir))
	}
	return nil
}

// EngineOptions converts the merged settings into engine options. The
// hooks and registry stay nil here; the caller wires those.
func (s Settings) EngineOptions() mwcp.Options {
	opts := mwcp.Options{
		OutputDir:           s.OutputDir,
		DisableOutputFiles:  s.DisableOutputFiles,
		DisableDebug:        s.DisableDebug,
		DisableTempCleanup:  s.DisableTempCleanup,
		DisableCascade:      s.DisableCascade,
		DisableDedup:        s.DisableDedup,
		EmbedOutputPayloads: s.EmbedOutputPayloads,
		RecordFileInfo:      s.RecordFileInfo,
		Logger:              s.Logger,
	}
	switch s.OutputPrefix {
	case "":
		opts.OutputPrefixMode = mwcp.PrefixNone
	case PrefixMD5Keyword:
		opts.OutputPrefixMode = mwcp.PrefixInputHash
	default:
		opts.OutputPrefixMode = mwcp.PrefixFixed
		opts.OutputPrefix = s.OutputPrefix
	}
	return opts
}

// ReportFormat returns the validated rendering mode.
func (s Settings) ReportFormat() mwcp.ReportFormat {
	return mwcp.ReportFormat(s.Format)
}

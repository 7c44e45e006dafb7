package mwcp

import (
	"log/slog"
	"time"

	"github.com/primmus/DC3-MWCP/pkg/mwcp/encoding"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/inspect"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
)

// Hooks defines callbacks for status updates during a run. Implementations
// are called synchronously from the run goroutine; they do not need to be
// thread-safe but must not block for long.
type Hooks interface {
	OnParserStart(source, name string) error
	OnParserComplete(source, name string, duration time.Duration, err error) error
	OnRunComplete(result *Result) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnParserStart implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnParserStart(source, name string) error { return nil }

// OnParserComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnParserComplete(source, name string, duration time.Duration, err error) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(result *Result) error { return nil }

// Inspector examines the raw input sample and reports advisory facts about
// it (executable format, compile timestamp). Failures are advisory: the
// engine logs them and continues.
type Inspector interface {
	Inspect(data []byte) (inspect.Facts, error)
}

// Options holds all configuration for an Engine. Zero value plus a Logger
// is a valid minimal configuration; New fills every nil collaborator with
// a working default.
type Options struct {
	// --- Output Artifacts ---
	OutputDir        string     `mapstructure:"outputDir"`        // Directory for written artifacts ("" = cwd)
	OutputPrefix     string     `mapstructure:"outputPrefix"`     // Literal prefix when OutputPrefixMode is "fixed"
	OutputPrefixMode PrefixMode `mapstructure:"outputPrefixMode"` // ("none", "fixed", "inputHash")

	// --- Behavior & Control ---
	DisableOutputFiles  bool `mapstructure:"disableOutputFiles"`  // Track artifacts in memory only, skip disk writes
	DisableDebug        bool `mapstructure:"disableDebug"`        // Drop debug-channel entries instead of storing them
	DisableTempCleanup  bool `mapstructure:"disableTempCleanup"`  // Keep temp input/scratch dir; log their paths at teardown
	DisableCascade      bool `mapstructure:"disableCascade"`      // Store reported values verbatim, derive nothing
	DisableDedup        bool `mapstructure:"disableDedup"`        // Append repeated values instead of suppressing them
	EmbedOutputPayloads bool `mapstructure:"embedOutputPayloads"` // Include base64 payloads in outputfile metadata
	RecordFileInfo      bool `mapstructure:"recordFileInfo"`      // Auto-record inputfilename/md5/sha1/sha256 at run start

	// --- Injected Dependencies ---
	Logger     slog.Handler             `mapstructure:"-"` // Required: Logging backend
	EventHooks Hooks                    `mapstructure:"-"` // Optional: Callback interface
	Registry   parser.Resolver          `mapstructure:"-"` // Optional: Parser resolution (defaults to parser.Default())
	Inspector  Inspector                `mapstructure:"-"` // Optional: Input introspection implementation
	Encoder    encoding.EncodingHandler `mapstructure:"-"` // Optional: Value-to-text conversion implementation
}

// setDefaults fills nil collaborators and empty enums with their working
// defaults. Called by New before validation.
func (o *Options) setDefaults() {
	if o.EventHooks == nil {
		o.EventHooks = &NoOpHooks{}
	}
	if o.Registry == nil {
		o.Registry = parser.Default()
	}
	if o.Inspector == nil {
		o.Inspector = inspect.New()
	}
	if o.Encoder == nil {
		o.Encoder = encoding.NewDefaultHandler()
	}
	if o.OutputPrefixMode == "" {
		o.OutputPrefixMode = DefaultPrefixMode
	}
}

// validate checks option combinations that cannot work. Returns an error
// wrapping ErrConfigValidation.
func (o *Options) validate() error {
	if o.Logger == nil {
		return wrapConfigErr("Logger is required")
	}
	switch o.OutputPrefixMode {
	case PrefixNone, PrefixFixed, PrefixInputHash:
	default:
		return wrapConfigErr("unknown outputPrefixMode %q", string(o.OutputPrefixMode))
	}
	if o.OutputPrefixMode == PrefixFixed && o.OutputPrefix == "" {
		return wrapConfigErr("outputPrefix is required when outputPrefixMode is %q", string(PrefixFixed))
	}
	return nil
}

package mwcp

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/primmus/DC3-MWCP/pkg/mwcp/encoding"
)

// RunSession is the per-run working state handed to parsers as their
// Reporter. It owns the metadata store, the run error log, the artifact
// registry, and the run-scoped temp resources, and guarantees teardown of
// the latter regardless of how the run ends.
type RunSession struct {
	opts    *Options
	logger  *slog.Logger
	encoder encoding.EncodingHandler
	store   *Store
	casc    cascade

	inputName string // logical filename of the sample
	inputPath string // caller-supplied path, "" for buffer input
	data      []byte
	inputMD5  string

	tempInput string // lazily materialized copy for path-demanding parsers
	scratch   string // lazily created parser scratch directory
	console   bytes.Buffer
	errors    []string

	outputs     []*OutputArtifact
	outputIndex map[string]int
	parsersRun  []string

	cleaned bool
}

func newRunSession(opts *Options, logger *slog.Logger, taxonomy *Taxonomy, inputName, inputPath string, data []byte, inputMD5 string) *RunSession {
	store := NewStore(taxonomy, opts.Encoder, logger, opts.DisableDedup, opts.DisableDebug)
	return &RunSession{
		opts:        opts,
		logger:      logger,
		encoder:     opts.Encoder,
		store:       store,
		casc:        cascade{store: store, enabled: !opts.DisableCascade},
		inputName:   inputName,
		inputPath:   inputPath,
		data:        data,
		inputMD5:    inputMD5,
		outputIndex: make(map[string]int),
	}
}

// Record implements parser.Reporter.
func (s *RunSession) Record(key string, value any) string {
	return string(s.casc.Record(key, value))
}

// LogDebug implements parser.Reporter. The message lands in both the
// report's debug trace and the structured log.
func (s *RunSession) LogDebug(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.store.AddDebug(msg)
	s.logger.Debug(msg, slog.String("component", "session"))
}

// LogError implements parser.Reporter. Errors accumulate on the run and
// are tagged with the sample identity by the engine's log handler.
func (s *RunSession) LogError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.errors = append(s.errors, s.tagError(msg))
	s.logger.Error(msg, slog.String("component", "session"), slog.String("input", s.inputIdentity()))
}

// tagError prefixes an error message with the sample identity so batch
// output remains attributable.
func (s *RunSession) tagError(msg string) string {
	return fmt.Sprintf("[%s] %s", s.inputIdentity(), msg)
}

// inputIdentity names the sample for log and error attribution: the
// caller-supplied path when there is one, the input MD5 otherwise.
func (s *RunSession) inputIdentity() string {
	if s.inputPath != "" {
		return s.inputPath
	}
	return s.inputMD5
}

// InputBytes implements parser.Reporter.
func (s *RunSession) InputBytes() []byte {
	return s.data
}

// InputPath implements parser.Reporter. Buffer-initiated runs materialize
// the sample into a temp file inside the scratch directory on first call;
// the file is removed at teardown with everything else.
func (s *RunSession) InputPath() (string, error) {
	if s.inputPath != "" {
		return s.inputPath, nil
	}
	if s.tempInput != "" {
		return s.tempInput, nil
	}

	dir, err := s.ScratchDir()
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, tempFilePrefix)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp input file: %v", ErrInputUnavailable, err)
	}
	if _, err := f.Write(s.data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: failed to write temp input file: %v", ErrInputUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close temp input file: %v", ErrInputUnavailable, err)
	}
	s.tempInput = f.Name()
	s.logger.Debug("Materialized input sample to temp file",
		slog.String("component", "session"), slog.String("path", s.tempInput))
	return s.tempInput, nil
}

// ScratchDir implements parser.Reporter.
func (s *RunSession) ScratchDir() (string, error) {
	if s.scratch != "" {
		return s.scratch, nil
	}
	dir, err := os.MkdirTemp("", scratchDirPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	s.scratch = dir
	return dir, nil
}

// Console implements parser.Reporter. Parser writes are buffered and
// folded into the debug trace when the parser finishes, so print-happy
// parsers never pollute the process's real output stream.
func (s *RunSession) Console() io.Writer {
	return &s.console
}

// flushConsole moves buffered console output into the debug trace, one
// entry per line. Called by the engine after each parser returns.
func (s *RunSession) flushConsole() {
	if s.console.Len() == 0 {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(s.console.String(), "\n"), "\n") {
		s.store.AddDebug(line)
	}
	s.console.Reset()
}

// cleanup removes the run's temp resources. It is idempotent and removes
// as much as it can, folding failures into the run error log. With
// DisableTempCleanup set it only logs the surviving paths.
func (s *RunSession) cleanup() {
	if s.cleaned {
		return
	}
	s.cleaned = true

	if s.opts.DisableTempCleanup {
		if s.tempInput != "" {
			s.logger.Info("Temp cleanup disabled, keeping temp input file",
				slog.String("component", "session"), slog.String("path", s.tempInput))
		}
		if s.scratch != "" {
			s.logger.Info("Temp cleanup disabled, keeping scratch directory",
				slog.String("component", "session"), slog.String("path", s.scratch))
		}
		return
	}

	if s.tempInput != "" {
		if err := os.Remove(s.tempInput); err != nil && !os.IsNotExist(err) {
			s.errors = append(s.errors, s.tagError(fmt.Sprintf("%s: %s: %v", ErrTempCleanup, s.tempInput, err)))
			s.logger.Warn("Failed to remove temp input file",
				slog.String("component", "session"), slog.String("path", s.tempInput), slog.Any("error", err))
		}
		s.tempInput = ""
	}
	if s.scratch != "" {
		if err := os.RemoveAll(s.scratch); err != nil {
			s.errors = append(s.errors, s.tagError(fmt.Sprintf("%s: %s: %v", ErrTempCleanup, s.scratch, err)))
			s.logger.Warn("Failed to remove scratch directory",
				slog.String("component", "session"), slog.String("path", s.scratch), slog.Any("error", err))
		}
		s.scratch = ""
	}
}

// scratchJoin resolves a parser-relative scratch path. Absolute paths
// pass through untouched.
func (s *RunSession) scratchJoin(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := s.ScratchDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// Package hooks bridges engine lifecycle events to the CLI surface:
// structured logging when verbose, a progress bar on interactive
// terminals, quiet otherwise.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/primmus/DC3-MWCP/pkg/mwcp"
)

// ProgressBar defines the interface needed to interact with the progress bar.
type ProgressBar interface {
	Add(num int) error
	Describe(description string) error
	Close() error
}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) error { return nil }

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

// CLIHooks implements the mwcp.Hooks interface, routing engine events to
// the logger and the progress bar. Methods are mutex-protected so a
// future concurrent batch driver does not corrupt the bar.
type CLIHooks struct {
	logger         *slog.Logger
	verboseEnabled bool
	progressBar    ProgressBar
	mu             sync.Mutex
}

// NewCLIHooks creates a new CLIHooks instance. Pass nil for progBar if no
// bar should be rendered; a NoOp version is substituted.
func NewCLIHooks(logger *slog.Logger, verboseEnabled bool, progBar ProgressBar) mwcp.Hooks {
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger,
		verboseEnabled: verboseEnabled,
		progressBar:    progBar,
	}
}

// OnParserStart handles the event fired before each parser is invoked.
func (h *CLIHooks) OnParserStart(source, name string) error {
	if h.verboseEnabled {
		h.logger.Debug("Parser starting",
			slog.String("source", source), slog.String("parser", name))
	}
	h.mu.Lock()
	_ = h.progressBar.Describe(fmt.Sprintf("running %s:%s", source, name))
	h.mu.Unlock()
	return nil // Engine ignores hook errors
}

// OnParserComplete handles the event fired after each parser returns.
func (h *CLIHooks) OnParserComplete(source, name string, duration time.Duration, err error) error {
	if h.verboseEnabled {
		level := slog.LevelDebug
		attrs := []any{
			slog.String("source", source),
			slog.String("parser", name),
			slog.Duration("duration", duration),
		}
		msg := "Parser finished"
		if err != nil {
			level = slog.LevelError
			msg = "Parser failed"
			attrs = append(attrs, slog.Any("error", err))
		}
		h.logger.Log(context.Background(), level, msg, attrs...)
	} else if err != nil {
		// Parser failures surface even in quiet mode.
		h.logger.Error("Parser failed",
			slog.String("parser", source+":"+name), slog.Any("error", err))
	}

	h.mu.Lock()
	_ = h.progressBar.Add(1)
	h.mu.Unlock()
	return nil
}

// OnRunComplete handles the event fired once per analyzed sample, after
// teardown. It finalizes the progress bar for the sample.
func (h *CLIHooks) OnRunComplete(result *mwcp.Result) error {
	if h.verboseEnabled {
		h.logger.Info("Run complete",
			slog.String("parser", result.ParserSpec),
			slog.String("md5", result.Input.MD5),
			slog.Int("errors", len(result.Errors)),
			slog.Float64("durationSeconds", result.DurationSeconds))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, isNoOp := h.progressBar.(*NoOpProgressBar); !isNoOp {
		_ = h.progressBar.Close()
		// Newline after the bar so the report does not overwrite it.
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}
	return nil
}

// Package cli drives the command-line workflow: sample discovery, engine
// construction, sequential batch analysis, and report rendering.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/primmus/DC3-MWCP/internal/cli/config"
	"github.com/primmus/DC3-MWCP/pkg/mwcp"
	"github.com/primmus/DC3-MWCP/pkg/util"
)

// Run analyzes every sample reachable from the input arguments with the
// named parser and writes one rendered report per sample to out. Samples
// that cannot be read are reported and skipped; Run returns an error only
// when nothing could be analyzed at all or the context was cancelled.
func Run(ctx context.Context, settings config.Settings, logger *slog.Logger, eventHooks mwcp.Hooks, parserSpec string, inputArgs []string, out io.Writer) error {
	var samples []string
	for _, arg := range inputArgs {
		found, err := util.DiscoverSamples(arg, settings.Recursive, settings.IgnorePatterns)
		if err != nil {
			logger.Error("Failed to discover samples", slog.String("input", arg), slog.Any("error", err))
			return err
		}
		samples = append(samples, found...)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples found under the given input paths")
	}
	logger.Debug("Discovered samples", slog.Int("count", len(samples)))

	opts := settings.EngineOptions()
	opts.EventHooks = eventHooks
	engine, err := mwcp.New(opts)
	if err != nil {
		logger.Error("Failed to construct engine", slog.Any("error", err))
		return err
	}

	analyzed := 0
	for _, sample := range samples {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Info("Batch cancelled", slog.Int("analyzed", analyzed), slog.Int("total", len(samples)))
			return ctxErr
		}

		result, runErr := engine.Run(ctx, parserSpec, mwcp.RunInput{Path: sample}, nil)
		if runErr != nil {
			// Unreadable sample; keep going so one bad file does not sink
			// the batch.
			logger.Error("Skipping sample", slog.String("path", sample), slog.Any("error", runErr))
			continue
		}
		analyzed++

		if err := render(result, settings.ReportFormat(), out); err != nil {
			logger.Error("Failed to render report", slog.String("path", sample), slog.Any("error", err))
			return err
		}
	}

	if analyzed == 0 {
		return fmt.Errorf("none of the %d discovered samples could be analyzed", len(samples))
	}
	logger.Debug("Batch complete", slog.Int("analyzed", analyzed), slog.Int("total", len(samples)))
	return nil
}

func render(result *mwcp.Result, format mwcp.ReportFormat, out io.Writer) error {
	var rendered string
	var err error
	switch format {
	case mwcp.ReportFormatJSON:
		rendered, err = result.JSON()
	default:
		rendered, err = result.Text()
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}

package mwcp

import (
	"errors"
	"fmt"
)

// Exported error variables. These represent the categories of failure the
// engine can return directly; library users check against them with
// errors.Is. Everything originating from parser-supplied data is degraded
// to a logged warning instead and never surfaces through these.

var (
	// ErrTaxonomyLoad indicates the field taxonomy resource was missing or
	// malformed. This is the one unrecoverable error in the engine: without
	// the taxonomy no reported value can ever be validated, so construction
	// fails outright.
	ErrTaxonomyLoad = errors.New("failed to load field taxonomy")

	// ErrConfigValidation indicates the provided Options failed validation
	// checks performed at engine construction or at the start of Run.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrInputUnavailable indicates the run input could not be read: the
	// path does not exist, is unreadable, or neither a path nor a data
	// buffer was supplied (or both were).
	ErrInputUnavailable = errors.New("run input unavailable")

	// ErrRunInProgress indicates Run was invoked on an engine whose
	// previous run has not completed. One engine instance processes one
	// sample at a time; concurrent analyses require separate instances.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrArtifactWrite indicates an output artifact could not be written to
	// the output directory. It is recorded as a warning on the run, never
	// returned from RegisterOutput: the in-memory registry entry survives.
	ErrArtifactWrite = errors.New("failed to write output artifact")

	// ErrTempCleanup indicates run-scoped temp resources could not be fully
	// removed at teardown. Recorded in the run's error log; cleanup always
	// completes as far as it can.
	ErrTempCleanup = errors.New("failed to clean up temp resources")
)

// wrapConfigErr builds a detailed configuration error that satisfies
// errors.Is(err, ErrConfigValidation).
func wrapConfigErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigValidation, fmt.Sprintf(format, args...))
}

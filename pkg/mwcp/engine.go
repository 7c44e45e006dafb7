package mwcp

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
)

// RunInput identifies the sample to analyze. Exactly one of Path and Data
// must be set. Name optionally overrides the logical filename recorded in
// the report; for path input it defaults to the path's basename.
type RunInput struct {
	Path string
	Data []byte
	Name string
}

// Engine runs parsers against samples and collects their findings into
// validated reports. One engine instance is reusable across runs but
// processes one sample at a time; concurrent analyses need separate
// instances.
type Engine struct {
	opts     Options
	taxonomy *Taxonomy
	logger   *slog.Logger
	running  atomic.Bool
}

// New creates an Engine from the given options. Nil collaborators are
// filled with working defaults; a nil Logger or an inconsistent prefix
// configuration is rejected with ErrConfigValidation.
func New(opts Options) (*Engine, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	taxonomy, err := LoadTaxonomy()
	if err != nil {
		return nil, err
	}

	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))
	return &Engine{opts: opts, taxonomy: taxonomy, logger: logger}, nil
}

// Taxonomy exposes the engine's loaded field catalog.
func (e *Engine) Taxonomy() *Taxonomy {
	return e.taxonomy
}

// Run analyzes one sample with every parser matching spec. Parser-level
// failures (parse errors, panics, bad metadata) are folded into the
// result's error log and debug trace; Run itself returns an error only
// when the run could not start at all.
func (e *Engine) Run(ctx context.Context, spec string, input RunInput, parserOpts map[string]any) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.running.Store(false)

	start := time.Now()
	e.logger.Debug("Run accepted",
		slog.String("state", string(StateIdle)),
		slog.String("parser", spec))

	data, name, err := e.resolveInput(input)
	if err != nil {
		e.logger.Error("Run input could not be resolved", slog.Any("error", err))
		return nil, err
	}

	md5Sum := md5.Sum(data)
	digestMD5 := hex.EncodeToString(md5Sum[:])
	session := newRunSession(&e.opts, e.logger, e.taxonomy, name, input.Path, data, digestMD5)
	defer session.cleanup()

	e.logger.Debug("Run prepared",
		slog.String("state", string(StatePrepared)),
		slog.String("parser", spec),
		slog.String("input", session.inputIdentity()),
		slog.Int("size", len(data)))

	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)
	inputFile := InputFile{
		Name:   name,
		Path:   input.Path,
		Size:   len(data),
		MD5:    digestMD5,
		SHA1:   hex.EncodeToString(sha1Sum[:]),
		SHA256: hex.EncodeToString(sha256Sum[:]),
	}
	e.inspectInput(session, data, &inputFile)
	if e.opts.RecordFileInfo {
		recordFileInfo(session, inputFile)
	}

	e.dispatch(ctx, session, spec, parserOpts)

	e.logger.Debug("Run complete, tearing down",
		slog.String("state", string(StateCompleted)),
		slog.String("parser", spec))
	session.cleanup()
	e.logger.Debug("Run resources released",
		slog.String("state", string(StateCleanedUp)),
		slog.String("parser", spec))

	result := &Result{
		ParserSpec:      spec,
		Input:           inputFile,
		Metadata:        session.store.Snapshot(),
		Errors:          session.errors,
		Timestamp:       start.UTC(),
		DurationSeconds: time.Since(start).Seconds(),
		store:           session.store,
		taxonomy:        e.taxonomy,
	}
	for _, a := range session.outputs {
		result.Outputs = append(result.Outputs, *a)
	}
	result.ParsersRun = session.parsersRun

	if hookErr := e.opts.EventHooks.OnRunComplete(result); hookErr != nil {
		e.logger.Warn("Error reported by OnRunComplete hook", slog.Any("hookError", hookErr))
	}
	return result, nil
}

// resolveInput loads the sample bytes and determines its logical name.
func (e *Engine) resolveInput(input RunInput) ([]byte, string, error) {
	switch {
	case input.Path == "" && input.Data == nil:
		return nil, "", fmt.Errorf("%w: neither an input path nor an input buffer was provided", ErrInputUnavailable)
	case input.Path != "" && input.Data != nil:
		return nil, "", fmt.Errorf("%w: both an input path and an input buffer were provided", ErrInputUnavailable)
	case input.Path != "":
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s: %v", ErrInputUnavailable, input.Path, err)
		}
		name := input.Name
		if name == "" {
			name = filepath.Base(input.Path)
		}
		return data, name, nil
	default:
		return input.Data, input.Name, nil
	}
}

// inspectInput runs the advisory introspector over the sample. Failures
// become debug entries; a hostile header must never stop the run.
func (e *Engine) inspectInput(session *RunSession, data []byte, info *InputFile) {
	facts, err := e.opts.Inspector.Inspect(data)
	if err != nil {
		session.LogDebug("Error inspecting input file: %s", err)
	}
	if facts.Format != "" && facts.Format != "unknown" {
		info.Format = string(facts.Format)
	}
	if !facts.CompileTime.IsZero() {
		info.CompileTime = facts.CompileTime.Format("2006-01-02 15:04:05")
	}
}

// recordFileInfo seeds the metadata store with the sample's identity.
// Only set fields are recorded so a nameless buffer run does not create
// an empty inputfilename entry.
func recordFileInfo(session *RunSession, info InputFile) {
	if info.Name != "" {
		session.Record("inputfilename", info.Name)
	}
	session.Record("md5", info.MD5)
	session.Record("sha1", info.SHA1)
	session.Record("sha256", info.SHA256)
	if info.CompileTime != "" {
		session.Record("compiletime", info.CompileTime)
	}
}

// dispatch resolves and runs every matching parser sequentially, each one
// isolated so a crash or error cannot take down the run or skip cleanup.
func (e *Engine) dispatch(ctx context.Context, session *RunSession, spec string, parserOpts map[string]any) {
	candidates := e.opts.Registry.Resolve(spec)
	if len(candidates) == 0 {
		session.LogError("Could not find parsers with name: %s", spec)
		return
	}

	e.logger.Debug("Dispatching parsers",
		slog.String("state", string(StateDispatching)),
		slog.Int("candidates", len(candidates)))

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			session.LogError("Run cancelled before parser %s:%s: %s", cand.Source, cand.Name, err)
			return
		}
		e.runOne(session, cand, parserOpts)
	}
}

func (e *Engine) runOne(session *RunSession, cand parser.Candidate, parserOpts map[string]any) {
	identity := cand.Source + ":" + cand.Name
	if hookErr := e.opts.EventHooks.OnParserStart(cand.Source, cand.Name); hookErr != nil {
		e.logger.Warn("Error reported by OnParserStart hook",
			slog.String("parser", identity), slog.Any("hookError", hookErr))
	}
	session.store.AddDebug(fmt.Sprintf("[*] Running parser: %s", identity))

	start := time.Now()
	err := e.invoke(session, cand, parserOpts)
	duration := time.Since(start)

	session.flushConsole()
	session.parsersRun = append(session.parsersRun, identity)

	if err != nil {
		session.LogError("Error running parser %s: %s", identity, err)
	}
	if hookErr := e.opts.EventHooks.OnParserComplete(cand.Source, cand.Name, duration, err); hookErr != nil {
		e.logger.Warn("Error reported by OnParserComplete hook",
			slog.String("parser", identity), slog.Any("hookError", hookErr))
	}
}

// invoke constructs and runs one parser with panic isolation.
func (e *Engine) invoke(session *RunSession, cand parser.Candidate, parserOpts map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panicked: %v", r)
		}
	}()
	p := cand.New(session)
	if p == nil {
		return fmt.Errorf("parser constructor returned nil")
	}
	return p.Parse(parserOpts)
}

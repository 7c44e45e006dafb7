// Package parser defines the contract between the analysis engine and the
// parser modules it dispatches, plus a registry that maps name
// specifications to candidate parsers. The engine consumes only the
// Resolver interface; discovery and packaging of parsers live outside the
// core.
package parser

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// ErrAlreadyRegistered indicates a parser with the same source and name
// was registered twice.
var ErrAlreadyRegistered = errors.New("parser already registered")

// ErrInvalidCandidate indicates a candidate with a missing name or
// constructor was offered for registration.
var ErrInvalidCandidate = errors.New("invalid parser candidate")

// Reporter is the engine-side API handed to every parser instance. All
// methods degrade parser-supplied problems to logged warnings; none panic
// or abort the run.
//
// Stability: Public Stable API - parser modules are written against this.
type Reporter interface {
	// Record reports one metadata item under a taxonomy field name. The
	// returned outcome string is advisory; parsers normally ignore it.
	Record(key string, value any) string

	// RegisterOutput reports a file produced by the parser as analysis
	// evidence. The payload is hashed, tracked in the artifact registry,
	// and (unless disabled) written under the configured output directory.
	RegisterOutput(payload []byte, logicalName, description string)

	// ReportTempFile loads a file the parser wrote into its scratch
	// directory and registers it as an output artifact.
	ReportTempFile(path, description string)

	// LogDebug records a parser-level diagnostic in the debug channel.
	LogDebug(format string, args ...any)

	// LogError records a run-level failure in the error log. Parsers
	// should normally prefer LogDebug; the error log is for the framework.
	LogError(format string, args ...any)

	// InputBytes returns the raw sample under analysis.
	InputBytes() []byte

	// InputPath returns a filesystem path holding the sample, materializing
	// a temp file on first call when the run started from a buffer.
	InputPath() (string, error)

	// ScratchDir returns a run-private directory for parser scratch files,
	// created on first call and removed at run teardown.
	ScratchDir() (string, error)

	// Console returns a writer whose contents are folded into the debug
	// channel when the parser finishes, instead of reaching the process's
	// real output stream.
	Console() io.Writer
}

// Parser is the capability interface every parser module satisfies. The
// constructor receives the Reporter; Parse is invoked exactly once per
// matched parser per run.
type Parser interface {
	Parse(opts map[string]any) error
}

// Candidate pairs a registered parser's identity with its constructor.
type Candidate struct {
	Name   string
	Source string
	New    func(Reporter) Parser
}

// Resolver enumerates candidates matching a name specification. The spec
// is either a plain parser name, matching across all sources, or
// "source:name" to pin one source.
type Resolver interface {
	Resolve(spec string) []Candidate
}

// Registry is a thread-safe Resolver implementation with runtime
// registration. Parser modules typically self-register into Default from
// an init function.
type Registry struct {
	mu         sync.RWMutex
	bySource   map[string][]Candidate
	sourceSeen []string // registration order of sources
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{bySource: make(map[string][]Candidate)}
}

// Register adds a parser constructor under a source namespace.
func (r *Registry) Register(source, name string, ctor func(Reporter) Parser) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("%w: name and constructor are required", ErrInvalidCandidate)
	}
	if source == "" {
		source = "default"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.bySource[source] {
		if c.Name == name {
			return fmt.Errorf("%w: %s:%s", ErrAlreadyRegistered, source, name)
		}
	}
	if _, seen := r.bySource[source]; !seen {
		r.sourceSeen = append(r.sourceSeen, source)
	}
	r.bySource[source] = append(r.bySource[source], Candidate{Name: name, Source: source, New: ctor})
	return nil
}

// MustRegister registers a parser and panics on error. Use for static
// registration at init time.
func (r *Registry) MustRegister(source, name string, ctor func(Reporter) Parser) {
	if err := r.Register(source, name, ctor); err != nil {
		panic(fmt.Sprintf("failed to register parser %s:%s: %v", source, name, err))
	}
}

// Resolve returns candidates matching the spec in deterministic order:
// sources in registration order, candidates in registration order within
// a source. A "source:name" spec pins the source; a plain name matches
// any source. An empty spec matches nothing.
func (r *Registry) Resolve(spec string) []Candidate {
	if spec == "" {
		return nil
	}
	wantSource, wantName := splitSpec(spec)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Candidate
	for _, source := range r.sourceSeen {
		if wantSource != "" && source != wantSource {
			continue
		}
		for _, c := range r.bySource[source] {
			if c.Name == wantName {
				out = append(out, c)
			}
		}
	}
	return out
}

// Names returns every registered "source:name" identity, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for source, cands := range r.bySource {
		for _, c := range cands {
			names = append(names, source+":"+c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// splitSpec parses "source:name" notation; a spec with no colon is a bare
// name matched across sources.
func splitSpec(spec string) (source, name string) {
	if i := strings.IndexByte(spec, ':'); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return "", spec
}

// defaultRegistry is the process-wide registry parser modules register
// into from init functions.
var defaultRegistry = NewRegistry()

// Default returns the process-wide parser registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
func Register(source, name string, ctor func(Reporter) Parser) error {
	return defaultRegistry.Register(source, name, ctor)
}

// MustRegister adds a parser to the default registry, panicking on error.
func MustRegister(source, name string, ctor func(Reporter) Parser) {
	defaultRegistry.MustRegister(source, name, ctor)
}

package mwcp

// FieldShape defines the structural type of a taxonomy field's values.
type FieldShape string

// Constants representing the defined field value shapes.
const (
	ShapeStringList      FieldShape = "listofstrings"
	ShapeStringTupleList FieldShape = "listofstringtuples"
	ShapeStringKeyedDict FieldShape = "dictofstrings"
)

// Outcome describes the result of a single Record call. Values reported by
// parsers never surface as errors; the store degrades every problem to a
// logged outcome so one bad report cannot abort a run.
type Outcome string

const (
	// OutcomeAccepted means the value was stored (and cascaded).
	OutcomeAccepted Outcome = "accepted"
	// OutcomeDuplicate means the value was already present and dedup
	// suppressed the append. Cascade rules still fire for duplicates,
	// since derived values dedup independently.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeDropped means the value was rejected (unknown key, wrong
	// shape, empty tuple) and a debug entry was recorded in its place.
	OutcomeDropped Outcome = "dropped"
)

// PrefixMode defines how output artifact filenames are prefixed when
// written to the output directory.
type PrefixMode string

const (
	// PrefixNone writes artifacts under their bare basename.
	PrefixNone PrefixMode = "none"
	// PrefixFixed prepends the configured OutputPrefix string.
	PrefixFixed PrefixMode = "fixed"
	// PrefixInputHash prepends the MD5 of the whole input sample, grouping
	// all artifacts extracted from one sample together.
	PrefixInputHash PrefixMode = "inputHash"
)

// RunState tracks the controller's position in the per-run state machine.
// It exists for observability (hooks, logging); callers never drive it.
type RunState string

const (
	StateIdle        RunState = "idle"
	StatePrepared    RunState = "prepared"
	StateDispatching RunState = "dispatching"
	StateCompleted   RunState = "completed"
	StateCleanedUp   RunState = "cleanedUp"
)

// ReportFormat defines the rendering mode for a finished run.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

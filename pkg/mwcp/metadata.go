package mwcp

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/primmus/DC3-MWCP/pkg/mwcp/encoding"
)

// Item is one normalized value produced by a Store.Add call. Scalar
// fields populate Value; tuple fields populate Tuple. The Outcome records
// what the store did with it.
type Item struct {
	Field   string
	Value   string
	Tuple   []string
	Outcome Outcome
}

// Store holds validated run metadata keyed by taxonomy field. It degrades
// every parser-supplied problem to a debug entry; nothing a parser reports
// can make the store fail.
//
// Store is not safe for concurrent use; one run owns one store.
type Store struct {
	taxonomy *Taxonomy
	encoder  encoding.EncodingHandler
	logger   *slog.Logger

	disableDedup bool
	disableDebug bool

	lists  map[string][]string
	tuples map[string][][]string

	// other maps sub-keys to a string or, after a conflicting report
	// promoted the entry, a []string carrying every distinct value.
	other map[string]any
}

// NewStore creates an empty metadata store bound to a taxonomy.
func NewStore(taxonomy *Taxonomy, encoder encoding.EncodingHandler, logger *slog.Logger, disableDedup, disableDebug bool) *Store {
	return &Store{
		taxonomy:     taxonomy,
		encoder:      encoder,
		logger:       logger,
		disableDedup: disableDedup,
		disableDebug: disableDebug,
		lists:        make(map[string][]string),
		tuples:       make(map[string][][]string),
		other:        make(map[string]any),
	}
}

// Add validates a reported value against the taxonomy and stores it.
// A flat-list field accepts a single value or a slice of values; a tuple
// field accepts one tuple (slice of positions); the dictionary field
// accepts a map. The returned items carry per-value outcomes so callers
// can run derivations for everything that validated.
func (s *Store) Add(key string, value any) []Item {
	field, ok := s.taxonomy.Lookup(key)
	if !ok {
		s.AddDebug(fmt.Sprintf("Error adding metadata because %s is not an allowed key", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}
	if value == nil {
		s.AddDebug(fmt.Sprintf("no values provided for %s, skipping", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}

	switch field.Shape {
	case ShapeStringList:
		return s.addStrings(key, value)
	case ShapeStringTupleList:
		return s.addTuple(key, value)
	case ShapeStringKeyedDict:
		return s.addDict(key, value)
	default:
		// Unreachable with a schema-validated taxonomy.
		s.AddDebug(fmt.Sprintf("Error adding metadata because %s has unsupported shape %s", key, field.Shape))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}
}

// AddDebug appends a message to the debug trace. The trace is exempt from
// dedup so repeated diagnostics stay visible in order.
func (s *Store) AddDebug(msg string) {
	if s.disableDebug {
		return
	}
	s.lists[FieldDebug] = append(s.lists[FieldDebug], msg)
}

func (s *Store) addStrings(key string, value any) []Item {
	values, ok := flattenScalars(value)
	if !ok {
		s.AddDebug(fmt.Sprintf("Error adding metadata because value for %s is not a string or list of strings", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}
	if len(values) == 0 {
		s.AddDebug(fmt.Sprintf("no values provided for %s, skipping", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}

	var items []Item
	for _, v := range values {
		text, err := s.encoder.ToText(v)
		if err != nil {
			s.AddDebug(fmt.Sprintf("Error converting value for %s to text: %s", key, err))
		}
		if text == "" {
			s.AddDebug(fmt.Sprintf("no values provided for %s, skipping", key))
			items = append(items, Item{Field: key, Outcome: OutcomeDropped})
			continue
		}
		items = append(items, Item{Field: key, Value: text, Outcome: s.appendString(key, text)})
	}
	return items
}

func (s *Store) addTuple(key string, value any) []Item {
	positions, ok := flattenScalars(value)
	if !ok {
		s.AddDebug(fmt.Sprintf("Error adding metadata because value for %s is not a list", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}

	tuple := make([]string, 0, len(positions))
	empty := true
	for _, p := range positions {
		text, err := s.encoder.ToText(p)
		if err != nil {
			s.AddDebug(fmt.Sprintf("Error converting value for %s to text: %s", key, err))
		}
		if text != "" {
			empty = false
		}
		tuple = append(tuple, text)
	}
	if len(tuple) == 0 || empty {
		s.AddDebug(fmt.Sprintf("no values provided for %s, skipping", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}

	return []Item{{Field: key, Tuple: tuple, Outcome: s.appendTuple(key, tuple)}}
}

func (s *Store) addDict(key string, value any) []Item {
	entries, ok := toStringKeyedMap(value)
	if !ok {
		s.AddDebug(fmt.Sprintf("Error adding metadata because value for %s is not a dictionary", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}
	if len(entries) == 0 {
		s.AddDebug(fmt.Sprintf("no values provided for %s, skipping", key))
		return []Item{{Field: key, Outcome: OutcomeDropped}}
	}

	// Deterministic merge order for reproducible debug traces.
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items []Item
	for _, k := range keys {
		raw := entries[k]
		switch raw.(type) {
		case string, []byte:
		default:
			s.AddDebug(fmt.Sprintf("Could not add object of %T to metadata under %s using key %s", raw, key, k))
			items = append(items, Item{Field: key, Outcome: OutcomeDropped})
			continue
		}
		text, err := s.encoder.ToText(raw)
		if err != nil {
			s.AddDebug(fmt.Sprintf("Error converting value for %s[%s] to text: %s", key, k, err))
		}
		items = append(items, Item{Field: key, Value: text, Outcome: s.mergeOther(k, text)})
	}
	return items
}

// mergeOther inserts one dictionary entry without ever clobbering an
// earlier value: a conflicting report promotes the entry to a list
// carrying both values, and further reports append when not yet present.
func (s *Store) mergeOther(key, value string) Outcome {
	prev, exists := s.other[key]
	if !exists {
		s.other[key] = value
		return OutcomeAccepted
	}
	switch existing := prev.(type) {
	case string:
		if existing == value && !s.disableDedup {
			return OutcomeDuplicate
		}
		s.other[key] = []string{existing, value}
	case []string:
		if !s.disableDedup {
			for _, v := range existing {
				if v == value {
					return OutcomeDuplicate
				}
			}
		}
		s.other[key] = append(existing, value)
	}
	return OutcomeAccepted
}

// appendString stores a scalar value, applying dedup unless disabled.
// The debug field is always append-only.
func (s *Store) appendString(field, value string) Outcome {
	if field != FieldDebug && !s.disableDedup {
		for _, existing := range s.lists[field] {
			if existing == value {
				return OutcomeDuplicate
			}
		}
	}
	s.lists[field] = append(s.lists[field], value)
	return OutcomeAccepted
}

func (s *Store) appendTuple(field string, tuple []string) Outcome {
	if !s.disableDedup {
		for _, existing := range s.tuples[field] {
			if tuplesEqual(existing, tuple) {
				return OutcomeDuplicate
			}
		}
	}
	s.tuples[field] = append(s.tuples[field], tuple)
	return OutcomeAccepted
}

// Strings returns the stored values for a flat-list field, in report order.
func (s *Store) Strings(field string) []string {
	return s.lists[field]
}

// Tuples returns the stored tuples for a tuple field, in report order.
func (s *Store) Tuples(field string) [][]string {
	return s.tuples[field]
}

// Other returns the catch-all dictionary. Values are strings, or string
// slices for sub-keys that saw conflicting reports.
func (s *Store) Other() map[string]any {
	return s.other
}

// HasAny reports whether any value was stored under field.
func (s *Store) HasAny(field string) bool {
	if field == FieldOther {
		return len(s.other) > 0
	}
	return len(s.lists[field]) > 0 || len(s.tuples[field]) > 0
}

// Empty reports whether nothing at all was stored.
func (s *Store) Empty() bool {
	return len(s.lists) == 0 && len(s.tuples) == 0 && len(s.other) == 0
}

// Snapshot returns the store contents as plain maps and slices, suitable
// for JSON serialization. The debug list is included only when present.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.lists)+len(s.tuples)+1)
	for field, values := range s.lists {
		if len(values) == 0 {
			continue
		}
		cp := make([]string, len(values))
		copy(cp, values)
		out[field] = cp
	}
	for field, tuples := range s.tuples {
		if len(tuples) == 0 {
			continue
		}
		cp := make([][]string, len(tuples))
		for i, t := range tuples {
			tc := make([]string, len(t))
			copy(tc, t)
			cp[i] = tc
		}
		out[field] = cp
	}
	if len(s.other) > 0 {
		oc := make(map[string]any, len(s.other))
		for k, v := range s.other {
			if list, ok := v.([]string); ok {
				lc := make([]string, len(list))
				copy(lc, list)
				oc[k] = lc
				continue
			}
			oc[k] = v
		}
		out[FieldOther] = oc
	}
	return out
}

func tuplesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flattenScalars normalizes the shapes parsers actually hand over: a bare
// scalar, []string, [][]byte, or []any of scalars.
func flattenScalars(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case [][]byte:
		out := make([]any, len(v))
		for i, b := range v {
			out[i] = b
		}
		return out, true
	case map[string]string, map[string]any:
		return nil, false
	default:
		return []any{value}, true
	}
}

func toStringKeyedMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, true
	default:
		return nil, false
	}
}

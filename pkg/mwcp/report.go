package mwcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"
)

// InputFile summarizes the sample a run analyzed.
type InputFile struct {
	Name        string `json:"name,omitempty"`
	Path        string `json:"path,omitempty"`
	Size        int    `json:"size"`
	MD5         string `json:"md5"`
	SHA1        string `json:"sha1"`
	SHA256      string `json:"sha256"`
	Format      string `json:"format,omitempty"`
	CompileTime string `json:"compileTime,omitempty"`
}

// Result is the complete outcome of one Engine.Run. It carries the
// validated metadata, the artifact registry, and the run error log, and
// renders itself as text or JSON.
type Result struct {
	ParserSpec      string           `json:"parser"`
	ParsersRun      []string         `json:"parsersRun,omitempty"`
	Input           InputFile        `json:"input"`
	Metadata        map[string]any   `json:"metadata"`
	Outputs         []OutputArtifact `json:"outputs,omitempty"`
	Errors          []string         `json:"errors,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	DurationSeconds float64          `json:"durationSeconds"`

	store    *Store
	taxonomy *Taxonomy
}

// Success reports whether the run completed without run-level errors.
// Debug entries do not count; they are diagnostics, not failures.
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

// JSON renders the result as indented JSON.
func (r *Result) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize result: %w", err)
	}
	return string(data), nil
}

// reportSection is one titled block of the text rendering.
type reportSection struct {
	Title string
	Rows  []reportRow
	Lines []string
}

type reportRow struct {
	Key   string
	Value string
}

const textReportTemplate = `{{range .}}----{{.Title}}----

{{range .Rows}}{{printf "%-20.20s %s" .Key .Value}}
{{end}}{{range .Lines}}{{.}}
{{end}}
{{end}}`

var reportTmpl = template.Must(template.New("report").Parse(textReportTemplate))

// Text renders the classic sectioned report: file information, standard
// metadata in canonical field order, the catch-all dictionary, the debug
// trace, output files, and errors. Empty sections are omitted.
func (r *Result) Text() (string, error) {
	var sections []reportSection

	if sec, ok := r.infoSection(); ok {
		sections = append(sections, sec)
	}
	if sec, ok := r.standardSection(); ok {
		sections = append(sections, sec)
	}
	if sec, ok := r.otherSection(); ok {
		sections = append(sections, sec)
	}
	if debug := r.store.Strings(FieldDebug); len(debug) > 0 {
		sections = append(sections, reportSection{Title: "Debug", Lines: debug})
	}
	if sec, ok := r.outputSection(); ok {
		sections = append(sections, sec)
	}
	if len(r.Errors) > 0 {
		sections = append(sections, reportSection{Title: "Errors", Lines: r.Errors})
	}

	var b strings.Builder
	if err := reportTmpl.Execute(&b, sections); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return b.String(), nil
}

// infoSection renders input identity fields. The section appears only
// when at least one identity value was recorded, so a run with
// RecordFileInfo disabled and no parser-reported digests stays silent.
func (r *Result) infoSection() (reportSection, bool) {
	var rows []reportRow
	for _, field := range infoFieldOrder {
		for _, v := range r.store.Strings(field) {
			rows = append(rows, reportRow{Key: field, Value: v})
		}
	}
	if len(rows) == 0 {
		return reportSection{}, false
	}
	return reportSection{Title: "File Information", Rows: rows}, true
}

func (r *Result) standardSection() (reportSection, bool) {
	var rows []reportRow
	seen := make(map[string]bool, len(standardFieldOrder))
	for _, field := range standardFieldOrder {
		seen[field] = true
		rows = append(rows, r.fieldRows(field)...)
	}
	// Fallback pass: declared fields outside the canonical order render
	// after it, so a taxonomy addition is never silently dropped.
	for _, field := range r.taxonomy.Names() {
		if seen[field] || isFrameworkField(field) || isInfoField(field) {
			continue
		}
		rows = append(rows, r.fieldRows(field)...)
	}
	if len(rows) == 0 {
		return reportSection{}, false
	}
	return reportSection{Title: "Standard Metadata", Rows: rows}, true
}

func (r *Result) otherSection() (reportSection, bool) {
	other := r.store.Other()
	if len(other) == 0 {
		return reportSection{}, false
	}
	keys := make([]string, 0, len(other))
	for k := range other {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]reportRow, 0, len(keys))
	for _, k := range keys {
		switch v := other[k].(type) {
		case []string:
			// Promoted entries render one row per surviving value.
			for _, item := range v {
				rows = append(rows, reportRow{Key: k, Value: item})
			}
		case string:
			rows = append(rows, reportRow{Key: k, Value: v})
		}
	}
	return reportSection{Title: "Other Metadata", Rows: rows}, true
}

func (r *Result) outputSection() (reportSection, bool) {
	if len(r.Outputs) == 0 {
		return reportSection{}, false
	}
	rows := make([]reportRow, 0, len(r.Outputs))
	for _, a := range r.Outputs {
		rows = append(rows, reportRow{Key: a.Name, Value: fmt.Sprintf("%s %s", a.Description, a.MD5)})
	}
	return reportSection{Title: "Output Files", Rows: rows}, true
}

// fieldRows renders every stored value of one field, one row per value,
// with tuple fields joined by their conventional separator.
func (r *Result) fieldRows(field string) []reportRow {
	var rows []reportRow
	for _, v := range r.store.Strings(field) {
		rows = append(rows, reportRow{Key: field, Value: v})
	}
	for _, t := range r.store.Tuples(field) {
		rows = append(rows, reportRow{Key: field, Value: formatTuple(field, t)})
	}
	return rows
}

// formatTuple joins tuple positions using the separator conventional for
// the field: credentials as user:pass, ports as number/protocol, socket
// addresses as host:port/protocol, registry pairs as key=value, services
// comma-separated, everything else space-separated.
func formatTuple(field string, tuple []string) string {
	switch field {
	case "credential":
		return strings.Join(tuple, ":")
	case "port", "listenport":
		return strings.Join(tuple, "/")
	case "socketaddress", "c2_socketaddress":
		if len(tuple) == 3 {
			return fmt.Sprintf("%s:%s/%s", tuple[0], tuple[1], tuple[2])
		}
		return strings.Join(tuple, " ")
	case "registrykeyvalue", "registrypathdata":
		return strings.Join(tuple, "=")
	case "service":
		return strings.Join(tuple, ", ")
	default:
		return strings.Join(tuple, " ")
	}
}

func isFrameworkField(field string) bool {
	return field == FieldDebug || field == FieldOther || field == FieldOutputFile
}

func isInfoField(field string) bool {
	for _, f := range infoFieldOrder {
		if f == field {
			return true
		}
	}
	return false
}

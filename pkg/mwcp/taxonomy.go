package mwcp

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var fieldsYAML []byte

//go:embed fields_schema.json
var fieldsSchemaJSON string

// Field describes one declared taxonomy entry.
type Field struct {
	Name        string     `yaml:"name"`
	Shape       FieldShape `yaml:"shape"`
	Description string     `yaml:"description"`
}

// Taxonomy is the loaded, schema-validated field catalog. It is immutable
// after construction and safe for concurrent reads.
type Taxonomy struct {
	byName  map[string]Field
	ordered []string // declaration order from the source document
}

type taxonomyDoc struct {
	Fields []Field `yaml:"fields"`
}

// LoadTaxonomy parses and validates the embedded field catalog. Any
// failure wraps ErrTaxonomyLoad; the engine cannot operate without a
// valid taxonomy.
func LoadTaxonomy() (*Taxonomy, error) {
	return loadTaxonomyFrom(fieldsYAML)
}

func loadTaxonomyFrom(raw []byte) (*Taxonomy, error) {
	// Validate the generic document shape against the JSON schema first,
	// so schema violations report schema paths rather than Go type errors.
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: failed to parse field catalog YAML: %v", ErrTaxonomyLoad, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(fieldsSchemaJSON)
	docLoader := gojsonschema.NewGoLoader(generic)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("%w: schema validation error: %v", ErrTaxonomyLoad, err)
	}
	if !result.Valid() {
		var details string
		for _, desc := range result.Errors() {
			details += fmt.Sprintf("\n - %s", desc)
		}
		return nil, fmt.Errorf("%w: field catalog failed schema validation:%s", ErrTaxonomyLoad, details)
	}

	var doc taxonomyDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode field catalog: %v", ErrTaxonomyLoad, err)
	}

	t := &Taxonomy{byName: make(map[string]Field, len(doc.Fields))}
	for _, f := range doc.Fields {
		if _, dup := t.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrTaxonomyLoad, f.Name)
		}
		t.byName[f.Name] = f
		t.ordered = append(t.ordered, f.Name)
	}
	return t, nil
}

// Lookup returns the field declaration for name.
func (t *Taxonomy) Lookup(name string) (Field, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Has reports whether name is a declared field.
func (t *Taxonomy) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Names returns all declared field names sorted lexicographically.
func (t *Taxonomy) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeclaredOrder returns field names in catalog declaration order.
func (t *Taxonomy) DeclaredOrder() []string {
	out := make([]string, len(t.ordered))
	copy(out, t.ordered)
	return out
}

package catalog

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// SupportedFormats is the version constraint catalog documents must satisfy.
const SupportedFormats = ">= 1.0, < 2.0"

// Document is the YAML representation of a catalog.
type Document struct {
	Format   string           `yaml:"format"`
	Entities []EntityDocument `yaml:"entities"`
}

// EntityDocument describes one entity.
type EntityDocument struct {
	Name            string                `yaml:"name"`
	Table           string                `yaml:"table"`
	ID              PropertyDocument      `yaml:"id"`
	SecondaryTables []TableDocument       `yaml:"secondary_tables"`
	Properties      []PropertyDocument    `yaml:"properties"`
	Associations    []AssociationDocument `yaml:"associations"`
	Filters         []FilterDocument      `yaml:"filters"`
}

// TableDocument describes a secondary table.
type TableDocument struct {
	Name     string   `yaml:"name"`
	Key      []string `yaml:"key"`
	Optional bool     `yaml:"optional"`
}

// PropertyDocument describes a property. Column is shorthand for a single-element Columns.
type PropertyDocument struct {
	Name    string   `yaml:"name"`
	Column  string   `yaml:"column"`
	Columns []string `yaml:"columns"`
	Type    string   `yaml:"type"`
	Table   string   `yaml:"table"`
}

// AssociationDocument describes an association.
type AssociationDocument struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Target  string   `yaml:"target"`
	Column  string   `yaml:"column"`
	Columns []string `yaml:"columns"`
	Table   string   `yaml:"table"`
}

// FilterDocument describes a filter definition.
type FilterDocument struct {
	Name       string            `yaml:"name"`
	Condition  string            `yaml:"condition"`
	Parameters map[string]string `yaml:"parameters"`
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*Registry, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return doc.Registry()
}

// LoadFile reads a YAML catalog document from fs.
func LoadFile(fs afero.Fs, path string) (*Registry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	reg, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// CheckFormat validates a document format string against SupportedFormats.
// An empty format is treated as 1.0.
func CheckFormat(format string) error {
	if format == "" {
		format = "1.0"
	}
	v, err := version.NewVersion(format)
	if err != nil {
		return fmt.Errorf("invalid catalog format %q: %w", format, err)
	}
	constraints, err := version.NewConstraint(SupportedFormats)
	if err != nil {
		return err
	}
	if !constraints.Check(v) {
		return fmt.Errorf("catalog format %s is not supported (want %s)", v, SupportedFormats)
	}
	return nil
}

// Registry converts the document into a validated Registry.
func (d *Document) Registry() (*Registry, error) {
	if err := CheckFormat(d.Format); err != nil {
		return nil, err
	}
	entities := make([]*Entity, 0, len(d.Entities))
	for _, ed := range d.Entities {
		e, err := ed.entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return NewRegistry(entities...)
}

func (ed EntityDocument) entity() (*Entity, error) {
	if ed.Table == "" {
		return nil, fmt.Errorf("entity %s: table is required", ed.Name)
	}
	if ed.ID.Name == "" {
		ed.ID.Name = "id"
	}
	e := &Entity{
		Name:       ed.Name,
		Tables:     []*Table{{Name: ed.Table}},
		Identifier: ed.ID.property(),
	}
	if e.Identifier.Type == Unknown {
		e.Identifier.Type = Integer
	}
	for _, td := range ed.SecondaryTables {
		e.Tables = append(e.Tables, &Table{Name: td.Name, Key: td.Key, Optional: td.Optional})
	}
	for _, pd := range ed.Properties {
		e.Properties = append(e.Properties, pd.property())
	}
	for _, ad := range ed.Associations {
		cols := ad.Columns
		if ad.Column != "" {
			cols = append([]string{ad.Column}, cols...)
		}
		e.Associations = append(e.Associations, &Association{
			Name:    ad.Name,
			Kind:    AssociationKind(ad.Kind),
			Target:  ad.Target,
			Columns: cols,
			Table:   ad.Table,
		})
	}
	for _, fd := range ed.Filters {
		params := make(map[string]Type, len(fd.Parameters))
		for name, t := range fd.Parameters {
			params[name] = Type(t)
		}
		e.Filters = append(e.Filters, &FilterDef{Name: fd.Name, Condition: fd.Condition, Parameters: params})
	}
	return e, nil
}

func (pd PropertyDocument) property() *Property {
	cols := pd.Columns
	if pd.Column != "" {
		cols = append([]string{pd.Column}, cols...)
	}
	if len(cols) == 0 && pd.Name != "" {
		cols = []string{pd.Name}
	}
	return &Property{Name: pd.Name, Columns: cols, Type: Type(pd.Type), Table: pd.Table}
}

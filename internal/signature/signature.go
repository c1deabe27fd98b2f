// Package signature models structural snapshots of declared schemas: which
// apps exist, which models they declare, and the fields, indexes, and
// constraints of each model. Snapshots are immutable by convention: every
// transformation works on a Clone and returns a new value, so a failed
// simulation can be discarded without side effects.
package signature

import (
	"fmt"
	"sort"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/pkg/types"
)

// ProjectSignature is the top-level snapshot: one entry per application.
type ProjectSignature struct {
	// FormatVersion is the serialization format version, not the applied
	// schema version tracked by the history store.
	FormatVersion int

	// Apps maps application label to its signature.
	Apps map[string]*AppSignature
}

// AppSignature holds the model signatures declared by one application.
type AppSignature struct {
	// Label is the application label; mirrors the key in ProjectSignature.Apps.
	Label string

	// Models maps model name to its signature.
	Models map[string]*ModelSignature
}

// ModelSignature is the structural snapshot of a single model.
type ModelSignature struct {
	// Name is the model name; mirrors the key in AppSignature.Models.
	Name string

	// TableName is the database table backing the model.
	TableName string

	// Fields is the ordered field list. Field names are unique within a model.
	Fields []*FieldSignature

	// Indexes is the set of explicitly declared indexes.
	Indexes []IndexSignature

	// UniqueTogether holds multi-column unique constraints as field-name tuples.
	UniqueTogether [][]string
}

// FieldSignature describes one field. Attributes left at their zero value
// are omitted from serialized form; equality treats an absent attribute and
// its default as the same.
type FieldSignature struct {
	Name string `json:"name" yaml:"name"`

	// ColumnName overrides the database column name; empty means the
	// column follows the field name.
	ColumnName string `json:"column,omitempty" yaml:"column,omitempty"`

	Type       types.FieldType `json:"type" yaml:"type"`
	Null       bool            `json:"null,omitempty" yaml:"null,omitempty"`
	PrimaryKey bool            `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Unique     bool            `json:"unique,omitempty" yaml:"unique,omitempty"`
	DBIndex    bool            `json:"db_index,omitempty" yaml:"db_index,omitempty"`
	MaxLength  int             `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Default    *string         `json:"default,omitempty" yaml:"default,omitempty"`

	// RelatedModel is the foreign-key target as "app.Model"; empty for
	// non-relational fields.
	RelatedModel string `json:"related_model,omitempty" yaml:"related_model,omitempty"`

	// RelatedDeferred marks the reference as intentionally unresolved so a
	// later operation in the same run may introduce the target model.
	RelatedDeferred bool `json:"related_deferred,omitempty" yaml:"related_deferred,omitempty"`
}

// IndexSignature describes one declared index.
type IndexSignature struct {
	// Name is the declared index name; empty means the backend names it.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Fields lists the covered field names, in order.
	Fields []string `json:"fields" yaml:"fields"`

	// Unique indicates whether the index enforces uniqueness.
	Unique bool `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// NewProjectSignature returns an empty project signature at the current
// serialization format version.
func NewProjectSignature() *ProjectSignature {
	return &ProjectSignature{
		FormatVersion: CurrentFormatVersion,
		Apps:          make(map[string]*AppSignature),
	}
}

// NewAppSignature returns an empty app signature for the given label.
func NewAppSignature(label string) *AppSignature {
	return &AppSignature{
		Label:  label,
		Models: make(map[string]*ModelSignature),
	}
}

// NewModelSignature returns a model signature with the given name and table.
func NewModelSignature(name, tableName string) *ModelSignature {
	return &ModelSignature{
		Name:      name,
		TableName: tableName,
	}
}

// App returns the signature for the given application label.
func (p *ProjectSignature) App(label string) (*AppSignature, bool) {
	app, ok := p.Apps[label]
	return app, ok
}

// AddApp creates and returns an empty app signature, or returns the
// existing one if the label is already present.
func (p *ProjectSignature) AddApp(label string) *AppSignature {
	if app, ok := p.Apps[label]; ok {
		return app
	}
	app := NewAppSignature(label)
	p.Apps[label] = app
	return app
}

// AppLabels returns all application labels in sorted order.
func (p *ProjectSignature) AppLabels() []string {
	labels := make([]string, 0, len(p.Apps))
	for label := range p.Apps {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Model resolves an (app, model) pair to its signature.
func (p *ProjectSignature) Model(appLabel, modelName string) (*ModelSignature, bool) {
	app, ok := p.Apps[appLabel]
	if !ok {
		return nil, false
	}
	model, ok := app.Models[modelName]
	return model, ok
}

// ResolveRelation resolves a "app.Model" reference to its model signature.
func (p *ProjectSignature) ResolveRelation(ref string) (*ModelSignature, bool) {
	appLabel, modelName, ok := SplitRelation(ref)
	if !ok {
		return nil, false
	}
	return p.Model(appLabel, modelName)
}

// SplitRelation splits an "app.Model" reference into its parts.
func SplitRelation(ref string) (appLabel, modelName string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			if i == 0 || i == len(ref)-1 {
				return "", "", false
			}
			return ref[:i], ref[i+1:], true
		}
	}
	return "", "", false
}

// Model returns the signature for the given model name.
func (a *AppSignature) Model(name string) (*ModelSignature, bool) {
	model, ok := a.Models[name]
	return model, ok
}

// SetModel adds or replaces a model signature under its name.
func (a *AppSignature) SetModel(model *ModelSignature) {
	a.Models[model.Name] = model
}

// RemoveModel deletes a model signature by name.
func (a *AppSignature) RemoveModel(name string) {
	delete(a.Models, name)
}

// ModelNames returns all model names in sorted order.
func (a *AppSignature) ModelNames() []string {
	names := make([]string, 0, len(a.Models))
	for name := range a.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field returns the field signature with the given name.
func (m *ModelSignature) Field(name string) (*FieldSignature, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// HasField reports whether a field with the given name exists.
func (m *ModelSignature) HasField(name string) bool {
	_, ok := m.Field(name)
	return ok
}

// AddField appends a field signature. The caller is responsible for
// checking name uniqueness first.
func (m *ModelSignature) AddField(f *FieldSignature) {
	m.Fields = append(m.Fields, f)
}

// RemoveField deletes the field with the given name and reports whether it
// was present.
func (m *ModelSignature) RemoveField(name string) bool {
	for i, f := range m.Fields {
		if f.Name == name {
			m.Fields = append(m.Fields[:i], m.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// PrimaryKeyField returns the field marked as primary key, if any.
func (m *ModelSignature) PrimaryKeyField() (*FieldSignature, bool) {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return nil, false
}

// Index returns the index with the given name.
func (m *ModelSignature) Index(name string) (*IndexSignature, bool) {
	if name == "" {
		return nil, false
	}
	for i := range m.Indexes {
		if m.Indexes[i].Name == name {
			return &m.Indexes[i], true
		}
	}
	return nil, false
}

// FindIndex returns the first index matching the given field tuple and
// uniqueness, regardless of name.
func (m *ModelSignature) FindIndex(fields []string, unique bool) (*IndexSignature, bool) {
	for i := range m.Indexes {
		if m.Indexes[i].Unique == unique && stringSlicesEqual(m.Indexes[i].Fields, fields) {
			return &m.Indexes[i], true
		}
	}
	return nil, false
}

// RemoveIndex deletes the given index (matched by name when set, otherwise
// by field tuple and uniqueness) and reports whether it was present.
func (m *ModelSignature) RemoveIndex(name string, fields []string, unique bool) bool {
	for i := range m.Indexes {
		idx := &m.Indexes[i]
		if name != "" {
			if idx.Name != name {
				continue
			}
		} else if idx.Unique != unique || !stringSlicesEqual(idx.Fields, fields) {
			continue
		}
		m.Indexes = append(m.Indexes[:i], m.Indexes[i+1:]...)
		return true
	}
	return false
}

// Column returns the effective database column name for the field.
func (f *FieldSignature) Column() string {
	if f.ColumnName != "" {
		return f.ColumnName
	}
	return f.Name
}

// ColumnDef converts the field signature into the column descriptor handed
// to statement generators. The referenced table and column are resolved
// against the given project when the field is relational.
func (f *FieldSignature) ColumnDef(p *ProjectSignature) types.ColumnDef {
	def := types.ColumnDef{
		Name:       f.Column(),
		Type:       f.Type,
		Nullable:   f.Null,
		PrimaryKey: f.PrimaryKey,
		Unique:     f.Unique,
		DBIndex:    f.DBIndex,
		MaxLength:  f.MaxLength,
	}
	if f.Default != nil {
		v := *f.Default
		def.Default = &v
	}
	if f.RelatedModel != "" && p != nil {
		if target, ok := p.ResolveRelation(f.RelatedModel); ok {
			ref := &types.ColumnRef{Table: target.TableName, Column: "id"}
			if pk, ok := target.PrimaryKeyField(); ok {
				ref.Column = pk.Column()
			}
			def.References = ref
		}
	}
	return def
}

// Clone returns a deep copy of the project signature.
func (p *ProjectSignature) Clone() *ProjectSignature {
	cp := &ProjectSignature{
		FormatVersion: p.FormatVersion,
		Apps:          make(map[string]*AppSignature, len(p.Apps)),
	}
	for label, app := range p.Apps {
		cp.Apps[label] = app.Clone()
	}
	return cp
}

// Clone returns a deep copy of the app signature.
func (a *AppSignature) Clone() *AppSignature {
	cp := &AppSignature{
		Label:  a.Label,
		Models: make(map[string]*ModelSignature, len(a.Models)),
	}
	for name, model := range a.Models {
		cp.Models[name] = model.Clone()
	}
	return cp
}

// Clone returns a deep copy of the model signature.
func (m *ModelSignature) Clone() *ModelSignature {
	cp := &ModelSignature{
		Name:      m.Name,
		TableName: m.TableName,
	}
	if len(m.Fields) > 0 {
		cp.Fields = make([]*FieldSignature, len(m.Fields))
		for i, f := range m.Fields {
			cp.Fields[i] = f.Clone()
		}
	}
	if len(m.Indexes) > 0 {
		cp.Indexes = make([]IndexSignature, len(m.Indexes))
		for i, idx := range m.Indexes {
			cp.Indexes[i] = idx.Clone()
		}
	}
	if len(m.UniqueTogether) > 0 {
		cp.UniqueTogether = cloneTuples(m.UniqueTogether)
	}
	return cp
}

// Clone returns a deep copy of the field signature.
func (f *FieldSignature) Clone() *FieldSignature {
	cp := *f
	if f.Default != nil {
		v := *f.Default
		cp.Default = &v
	}
	return &cp
}

// Clone returns a deep copy of the index signature.
func (idx IndexSignature) Clone() IndexSignature {
	cp := idx
	if len(idx.Fields) > 0 {
		cp.Fields = append([]string(nil), idx.Fields...)
	}
	return cp
}

// Validate checks the structural invariants: field names unique within a
// model, table names unique within an app, and every relational reference
// resolvable. Deferred references are not exempt; by the time a signature
// is validated as a whole, every target must exist.
func (p *ProjectSignature) Validate() error {
	for _, label := range p.AppLabels() {
		app := p.Apps[label]
		tables := make(map[string]string)
		for _, name := range app.ModelNames() {
			model := app.Models[name]
			if prev, ok := tables[model.TableName]; ok {
				return errors.NewValidationError(errors.CodeInvalidSignature,
					fmt.Sprintf("table %q is declared by both %s and %s in app %s",
						model.TableName, prev, name, label)).
					WithDetails(map[string]interface{}{"app": label, "model": name})
			}
			tables[model.TableName] = name

			seen := make(map[string]bool)
			for _, f := range model.Fields {
				if seen[f.Name] {
					return errors.NewValidationError(errors.CodeInvalidSignature,
						fmt.Sprintf("duplicate field %q on model %s.%s", f.Name, label, name)).
						WithDetails(map[string]interface{}{"app": label, "model": name, "field": f.Name})
				}
				seen[f.Name] = true

				if f.RelatedModel != "" {
					if _, ok := p.ResolveRelation(f.RelatedModel); !ok {
						return errors.NewUnresolvedError(errors.CodeUnknownRelation,
							fmt.Sprintf("field %s.%s.%s references unknown model %q",
								label, name, f.Name, f.RelatedModel)).
							WithDetails(map[string]interface{}{
								"app": label, "model": name, "field": f.Name,
								"related_model": f.RelatedModel,
							})
					}
				}
			}
		}
	}
	return nil
}

func cloneTuples(tuples [][]string) [][]string {
	cp := make([][]string, len(tuples))
	for i, t := range tuples {
		cp[i] = append([]string(nil), t...)
	}
	return cp
}

func stringSlicesEqual(a, b []string) bool {
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

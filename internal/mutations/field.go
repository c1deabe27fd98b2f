package mutations

import (
	"fmt"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// AddField adds a new field to an existing model. A non-null field with no
// default requires an initial value so existing rows can be backfilled.
type AddField struct {
	App   string
	Model string

	// Field is the complete definition of the field being added.
	Field signature.FieldSignature

	// Initial backfills existing rows when the column is non-null and has
	// no default. The UserValueRequired placeholder does not count.
	Initial *string
}

func (m AddField) Kind() types.OpKind { return types.OpAddField }

func (m AddField) Target() Target {
	return Target{App: m.App, Model: m.Model, Field: m.Field.Name}
}

func (m AddField) Touches() []Target {
	return append([]Target{m.Target()}, relationTargets(&m.Field)...)
}

// hasInitial reports whether a usable initial value was supplied.
func (m AddField) hasInitial() bool {
	return m.Initial != nil && *m.Initial != UserValueRequired
}

// needsInitial reports whether the field definition demands an initial
// value: non-null, no default, and not a generated key.
func needsInitial(f *signature.FieldSignature) bool {
	return !f.Null && !f.PrimaryKey && f.Default == nil && f.Type != types.FieldAuto
}

func (m AddField) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	model, err := lookupModel(next, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	if model.HasField(m.Field.Name) {
		return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
			fmt.Sprintf("add_field: field %s.%s.%s already exists", m.App, m.Model, m.Field.Name)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": m.Field.Name})
	}
	if needsInitial(&m.Field) && !m.hasInitial() {
		return nil, errors.NewConflictError(errors.CodeMissingInitial,
			fmt.Sprintf("add_field: field %s.%s.%s is non-null and has no initial value",
				m.App, m.Model, m.Field.Name)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": m.Field.Name})
	}
	if err := checkRelation(next, m.Kind(), m.App, m.Model, &m.Field); err != nil {
		return nil, err
	}
	model.AddField(m.Field.Clone())
	return next, nil
}

func (m AddField) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	if err := checkRelation(prior, m.Kind(), m.App, m.Model, &m.Field); err != nil {
		return nil, err
	}
	return []types.Instruction{{
		Kind:    types.OpAddField,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		Columns: []types.ColumnDef{m.Field.ColumnDef(prior)},
	}}, nil
}

func (m AddField) String() string {
	return fmt.Sprintf("add_field(%s)", m.Target())
}

// DeleteField removes a field from a model. Primary keys cannot be
// deleted. Unique-together tuples naming the field disappear with it;
// explicitly declared indexes have to be dropped with DeleteIndex.
type DeleteField struct {
	App   string
	Model string
	Field string
}

func (m DeleteField) Kind() types.OpKind { return types.OpDeleteField }

func (m DeleteField) Target() Target {
	return Target{App: m.App, Model: m.Model, Field: m.Field}
}

func (m DeleteField) Touches() []Target { return []Target{m.Target()} }

func (m DeleteField) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	model, field, err := lookupField(next, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}
	if field.PrimaryKey {
		return nil, errors.NewConflictError(errors.CodeProtectedEntity,
			fmt.Sprintf("delete_field: cannot delete primary key %s.%s.%s", m.App, m.Model, m.Field)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": m.Field})
	}
	model.RemoveField(m.Field)
	model.UniqueTogether = dropTuplesWith(model.UniqueTogether, m.Field)
	return next, nil
}

func (m DeleteField) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, field, err := lookupField(prior, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{{
		Kind:    types.OpDeleteField,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		Columns: []types.ColumnDef{field.ColumnDef(prior)},
	}}, nil
}

func (m DeleteField) String() string {
	return fmt.Sprintf("delete_field(%s)", m.Target())
}

// FieldAttrs holds the attribute overrides carried by a ChangeField. Only
// non-nil members are applied, so an unset attribute keeps its prior value.
type FieldAttrs struct {
	Null      *bool   `yaml:"null,omitempty"`
	Unique    *bool   `yaml:"unique,omitempty"`
	DBIndex   *bool   `yaml:"db_index,omitempty"`
	MaxLength *int    `yaml:"max_length,omitempty"`
	Default   *string `yaml:"default,omitempty"`

	// ClearDefault removes an existing default; it wins over Default.
	ClearDefault bool `yaml:"clear_default,omitempty"`

	// Column moves the field to a different database column.
	Column *string `yaml:"column,omitempty"`
}

// Apply writes the set attributes onto a field signature.
func (a FieldAttrs) Apply(f *signature.FieldSignature) {
	if a.Null != nil {
		f.Null = *a.Null
	}
	if a.Unique != nil {
		f.Unique = *a.Unique
	}
	if a.DBIndex != nil {
		f.DBIndex = *a.DBIndex
	}
	if a.MaxLength != nil {
		f.MaxLength = *a.MaxLength
	}
	if a.ClearDefault {
		f.Default = nil
	} else if a.Default != nil {
		v := *a.Default
		f.Default = &v
	}
	if a.Column != nil {
		f.ColumnName = *a.Column
	}
}

// Merge overlays later attributes on top of these, returning the combined
// set. Used when collapsing consecutive changes to one field.
func (a FieldAttrs) Merge(later FieldAttrs) FieldAttrs {
	out := a
	if later.Null != nil {
		out.Null = later.Null
	}
	if later.Unique != nil {
		out.Unique = later.Unique
	}
	if later.DBIndex != nil {
		out.DBIndex = later.DBIndex
	}
	if later.MaxLength != nil {
		out.MaxLength = later.MaxLength
	}
	if later.ClearDefault {
		out.ClearDefault = true
		out.Default = nil
	} else if later.Default != nil {
		out.ClearDefault = false
		out.Default = later.Default
	}
	if later.Column != nil {
		out.Column = later.Column
	}
	return out
}

// Changed lists the attributes that actually differ from the given prior
// field, in a fixed order. An empty result means the change is a no-op at
// the database level.
func (a FieldAttrs) Changed(prior *signature.FieldSignature) []string {
	var changed []string
	if a.Null != nil && *a.Null != prior.Null {
		changed = append(changed, "null")
	}
	if a.Unique != nil && *a.Unique != prior.Unique {
		changed = append(changed, "unique")
	}
	if a.DBIndex != nil && *a.DBIndex != prior.DBIndex {
		changed = append(changed, "db_index")
	}
	if a.MaxLength != nil && *a.MaxLength != prior.MaxLength {
		changed = append(changed, "max_length")
	}
	if a.ClearDefault {
		if prior.Default != nil {
			changed = append(changed, "default")
		}
	} else if a.Default != nil && (prior.Default == nil || *prior.Default != *a.Default) {
		changed = append(changed, "default")
	}
	if a.Column != nil && *a.Column != prior.Column() {
		changed = append(changed, "column")
	}
	return changed
}

// ChangeField alters attributes of an existing field. Repeating the current
// value of an attribute is legal and lowers to no instructions.
type ChangeField struct {
	App   string
	Model string
	Field string

	Attrs FieldAttrs

	// Initial backfills rows when the field tightens from null to
	// non-null without a default.
	Initial *string
}

func (m ChangeField) Kind() types.OpKind { return types.OpChangeField }

func (m ChangeField) Target() Target {
	return Target{App: m.App, Model: m.Model, Field: m.Field}
}

func (m ChangeField) Touches() []Target { return []Target{m.Target()} }

func (m ChangeField) hasInitial() bool {
	return m.Initial != nil && *m.Initial != UserValueRequired
}

func (m ChangeField) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	_, field, err := lookupField(next, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}

	tightens := m.Attrs.Null != nil && !*m.Attrs.Null && field.Null
	m.Attrs.Apply(field)
	if tightens && needsInitial(field) && !m.hasInitial() {
		return nil, errors.NewConflictError(errors.CodeMissingInitial,
			fmt.Sprintf("change_field: field %s.%s.%s becomes non-null and has no initial value",
				m.App, m.Model, m.Field)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": m.Field})
	}
	return next, nil
}

func (m ChangeField) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, field, err := lookupField(prior, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}
	changed := m.Attrs.Changed(field)
	if len(changed) == 0 {
		return nil, nil
	}
	after := field.Clone()
	m.Attrs.Apply(after)
	return []types.Instruction{{
		Kind:    types.OpChangeField,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		OldName: field.Column(),
		Columns: []types.ColumnDef{after.ColumnDef(prior)},
		Changed: changed,
	}}, nil
}

func (m ChangeField) String() string {
	return fmt.Sprintf("change_field(%s)", m.Target())
}

// RenameField renames a field, optionally moving it to a new column. When
// the field has no explicit column, the database column follows the field
// name and the rename is physical; with an explicit column and no new one
// given, the rename is signature-only.
type RenameField struct {
	App   string
	Model string

	// Field is the current field name.
	Field string

	NewName string

	// NewColumn sets an explicit column for the renamed field.
	NewColumn *string
}

func (m RenameField) Kind() types.OpKind { return types.OpRenameField }

func (m RenameField) Target() Target {
	return Target{App: m.App, Model: m.Model, Field: m.Field}
}

func (m RenameField) Touches() []Target {
	return []Target{
		m.Target(),
		{App: m.App, Model: m.Model, Field: m.NewName},
	}
}

func (m RenameField) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	if m.NewName == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidMutation,
			fmt.Sprintf("rename_field: empty new name for %s", m.Target()))
	}
	next := project.Clone()
	model, field, err := lookupField(next, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}
	if m.NewName != m.Field && model.HasField(m.NewName) {
		return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
			fmt.Sprintf("rename_field: field %s.%s.%s already exists", m.App, m.Model, m.NewName)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": m.NewName})
	}

	field.Name = m.NewName
	if m.NewColumn != nil {
		field.ColumnName = *m.NewColumn
	}
	renameInTuples(model.UniqueTogether, m.Field, m.NewName)
	for i := range model.Indexes {
		renameInSlice(model.Indexes[i].Fields, m.Field, m.NewName)
	}
	return next, nil
}

func (m RenameField) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, field, err := lookupField(prior, m.Kind(), m.App, m.Model, m.Field)
	if err != nil {
		return nil, err
	}
	after := field.Clone()
	after.Name = m.NewName
	if m.NewColumn != nil {
		after.ColumnName = *m.NewColumn
	}
	if after.Column() == field.Column() {
		return nil, nil
	}
	return []types.Instruction{{
		Kind:    types.OpRenameField,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		OldName: field.Column(),
		Columns: []types.ColumnDef{after.ColumnDef(prior)},
	}}, nil
}

func (m RenameField) String() string {
	return fmt.Sprintf("rename_field(%s -> %s)", m.Target(), m.NewName)
}

// dropTuplesWith returns the tuples that do not mention the given field.
func dropTuplesWith(tuples [][]string, field string) [][]string {
	var kept [][]string
	for _, t := range tuples {
		mentions := false
		for _, name := range t {
			if name == field {
				mentions = true
				break
			}
		}
		if !mentions {
			kept = append(kept, t)
		}
	}
	return kept
}

func renameInTuples(tuples [][]string, old, new string) {
	for _, t := range tuples {
		renameInSlice(t, old, new)
	}
}

func renameInSlice(names []string, old, new string) {
	for i, name := range names {
		if name == old {
			names[i] = new
		}
	}
}

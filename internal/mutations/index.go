package mutations

import (
	"fmt"
	"strings"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// AddIndex declares a new index on a model. Declaring the same index twice
// is a conflict, never silently deduplicated.
type AddIndex struct {
	App   string
	Model string
	Index signature.IndexSignature
}

func (m AddIndex) Kind() types.OpKind { return types.OpAddIndex }

func (m AddIndex) Target() Target {
	return Target{App: m.App, Model: m.Model}
}

func (m AddIndex) Touches() []Target {
	targets := []Target{m.Target()}
	for _, f := range m.Index.Fields {
		targets = append(targets, Target{App: m.App, Model: m.Model, Field: f})
	}
	return targets
}

func (m AddIndex) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	if len(m.Index.Fields) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidMutation,
			fmt.Sprintf("add_index: index on %s.%s covers no fields", m.App, m.Model))
	}
	next := project.Clone()
	model, err := lookupModel(next, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	for _, name := range m.Index.Fields {
		if !model.HasField(name) {
			return nil, errors.NewConflictError(errors.CodeUnknownEntity,
				fmt.Sprintf("add_index: field %s.%s.%s does not exist", m.App, m.Model, name)).
				WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": name})
		}
	}
	if m.Index.Name != "" {
		if _, ok := model.Index(m.Index.Name); ok {
			return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
				fmt.Sprintf("add_index: index %q already exists on %s.%s",
					m.Index.Name, m.App, m.Model)).
				WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "index": m.Index.Name})
		}
	} else if _, ok := model.FindIndex(m.Index.Fields, m.Index.Unique); ok {
		return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
			fmt.Sprintf("add_index: an index on %s.%s (%s) already exists",
				m.App, m.Model, strings.Join(m.Index.Fields, ", "))).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "fields": m.Index.Fields})
	}
	model.Indexes = append(model.Indexes, m.Index.Clone())
	return next, nil
}

func (m AddIndex) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{{
		Kind:    types.OpAddIndex,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		Indexes: []types.IndexDef{indexDef(model, m.Index)},
	}}, nil
}

func (m AddIndex) String() string {
	return fmt.Sprintf("add_index(%s: %s)", m.Target(), strings.Join(m.Index.Fields, ","))
}

// DeleteIndex drops an index, matched by name when one is given, otherwise
// by its field tuple and uniqueness.
type DeleteIndex struct {
	App   string
	Model string

	Name   string
	Fields []string
	Unique bool
}

func (m DeleteIndex) Kind() types.OpKind { return types.OpDeleteIndex }

func (m DeleteIndex) Target() Target {
	return Target{App: m.App, Model: m.Model}
}

func (m DeleteIndex) Touches() []Target {
	targets := []Target{m.Target()}
	for _, f := range m.Fields {
		targets = append(targets, Target{App: m.App, Model: m.Model, Field: f})
	}
	return targets
}

// matches reports whether the given index is the one this operation drops.
func (m DeleteIndex) matches(idx signature.IndexSignature) bool {
	if m.Name != "" {
		return idx.Name == m.Name
	}
	return idx.Unique == m.Unique && stringsEqual(idx.Fields, m.Fields)
}

func (m DeleteIndex) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	model, err := lookupModel(next, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	if !model.RemoveIndex(m.Name, m.Fields, m.Unique) {
		return nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("delete_index: no such index on %s.%s", m.App, m.Model)).
			WithDetails(map[string]interface{}{
				"app": m.App, "model": m.Model, "index": m.Name, "fields": m.Fields,
			})
	}
	return next, nil
}

func (m DeleteIndex) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	var found *signature.IndexSignature
	for i := range model.Indexes {
		if m.matches(model.Indexes[i]) {
			found = &model.Indexes[i]
			break
		}
	}
	if found == nil {
		return nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("delete_index: no such index on %s.%s", m.App, m.Model)).
			WithDetails(map[string]interface{}{
				"app": m.App, "model": m.Model, "index": m.Name, "fields": m.Fields,
			})
	}
	return []types.Instruction{{
		Kind:    types.OpDeleteIndex,
		App:     m.App,
		Model:   m.Model,
		Table:   model.TableName,
		Indexes: []types.IndexDef{indexDef(model, *found)},
	}}, nil
}

func (m DeleteIndex) String() string {
	if m.Name != "" {
		return fmt.Sprintf("delete_index(%s: %s)", m.Target(), m.Name)
	}
	return fmt.Sprintf("delete_index(%s: %s)", m.Target(), strings.Join(m.Fields, ","))
}

// indexDef lowers an index signature to its instruction form, resolving
// field names to column names and synthesizing a deterministic name when
// none was declared.
func indexDef(model *signature.ModelSignature, idx signature.IndexSignature) types.IndexDef {
	def := types.IndexDef{
		Name:   idx.Name,
		Unique: idx.Unique,
	}
	for _, fieldName := range idx.Fields {
		col := fieldName
		if f, ok := model.Field(fieldName); ok {
			col = f.Column()
		}
		def.Columns = append(def.Columns, col)
	}
	if def.Name == "" {
		def.Name = fmt.Sprintf("idx_%s_%s", model.TableName, strings.Join(def.Columns, "_"))
	}
	return def
}

// columnTuples lowers unique-together field tuples to column tuples.
func columnTuples(model *signature.ModelSignature, tuples [][]string) [][]string {
	if tuples == nil {
		return nil
	}
	out := make([][]string, len(tuples))
	for i, tuple := range tuples {
		cols := make([]string, len(tuple))
		for j, fieldName := range tuple {
			cols[j] = fieldName
			if f, ok := model.Field(fieldName); ok {
				cols[j] = f.Column()
			}
		}
		out[i] = cols
	}
	return out
}

func stringsEqual(a, b []string) bool {
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

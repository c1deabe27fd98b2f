package mutations

import (
	"fmt"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// AddModel introduces a complete model. The owning app is created
// implicitly when this is its first model. Fields may reference models
// added later in the same run by marking the relation deferred.
type AddModel struct {
	App string

	// Model is the full definition, including its fields, indexes, and
	// unique-together constraints.
	Model signature.ModelSignature
}

func (m AddModel) Kind() types.OpKind { return types.OpAddModel }

func (m AddModel) Target() Target {
	return Target{App: m.App, Model: m.Model.Name}
}

func (m AddModel) Touches() []Target {
	targets := []Target{m.Target()}
	for _, f := range m.Model.Fields {
		targets = append(targets, relationTargets(f)...)
	}
	return targets
}

func (m AddModel) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	app := next.AddApp(m.App)
	if _, ok := app.Model(m.Model.Name); ok {
		return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
			fmt.Sprintf("add_model: model %s.%s already exists", m.App, m.Model.Name)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model.Name})
	}

	pks := 0
	seen := make(map[string]bool)
	for _, f := range m.Model.Fields {
		if seen[f.Name] {
			return nil, errors.NewValidationError(errors.CodeInvalidMutation,
				fmt.Sprintf("add_model: duplicate field %q on %s.%s", f.Name, m.App, m.Model.Name))
		}
		seen[f.Name] = true
		if f.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return nil, errors.NewValidationError(errors.CodeInvalidMutation,
			fmt.Sprintf("add_model: %s.%s declares %d primary keys", m.App, m.Model.Name, pks))
	}

	// Insert before resolving relations so self-references work.
	app.SetModel(m.Model.Clone())
	for _, f := range m.Model.Fields {
		if err := checkRelation(next, m.Kind(), m.App, m.Model.Name, f); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (m AddModel) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	// Resolve column references against a view that already contains the
	// new model, so self-referential keys point at the right table.
	scope := prior.Clone()
	inserted := m.Model.Clone()
	scope.AddApp(m.App).SetModel(inserted)

	inst := types.Instruction{
		Kind:           types.OpAddModel,
		App:            m.App,
		Model:          m.Model.Name,
		Table:          m.Model.TableName,
		UniqueTogether: columnTuples(inserted, m.Model.UniqueTogether),
	}
	for _, idx := range m.Model.Indexes {
		inst.Indexes = append(inst.Indexes, indexDef(inserted, idx))
	}
	for _, f := range m.Model.Fields {
		if err := checkRelation(scope, m.Kind(), m.App, m.Model.Name, f); err != nil {
			return nil, err
		}
		inst.Columns = append(inst.Columns, f.ColumnDef(scope))
	}
	return []types.Instruction{inst}, nil
}

func (m AddModel) String() string {
	return fmt.Sprintf("add_model(%s)", m.Target())
}

// DeleteModel removes a model and its table. Fields elsewhere that still
// reference it are caught by final validation, not here.
type DeleteModel struct {
	App   string
	Model string
}

func (m DeleteModel) Kind() types.OpKind { return types.OpDeleteModel }

func (m DeleteModel) Target() Target {
	return Target{App: m.App, Model: m.Model}
}

func (m DeleteModel) Touches() []Target { return []Target{m.Target()} }

func (m DeleteModel) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	if _, err := lookupModel(next, m.Kind(), m.App, m.Model); err != nil {
		return nil, err
	}
	next.Apps[m.App].RemoveModel(m.Model)
	return next, nil
}

func (m DeleteModel) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{{
		Kind:  types.OpDeleteModel,
		App:   m.App,
		Model: m.Model,
		Table: model.TableName,
	}}, nil
}

func (m DeleteModel) String() string {
	return fmt.Sprintf("delete_model(%s)", m.Target())
}

// RenameModel renames a model and rewrites every relation that pointed at
// the old name, across all apps. The backing table only moves when a new
// table name is given; otherwise the rename is signature-only.
type RenameModel struct {
	App   string
	Model string

	NewName string

	// NewTable moves the backing table as part of the rename.
	NewTable *string
}

func (m RenameModel) Kind() types.OpKind { return types.OpRenameModel }

func (m RenameModel) Target() Target {
	return Target{App: m.App, Model: m.Model}
}

// Touches claims the whole app: rewriting relations can reach any model
// that refers to the renamed one. Referencing operations in other apps
// declare their side of the overlap through their own relation targets.
func (m RenameModel) Touches() []Target {
	return []Target{{App: m.App}}
}

func (m RenameModel) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	if m.NewName == "" {
		return nil, errors.NewValidationError(errors.CodeInvalidMutation,
			fmt.Sprintf("rename_model: empty new name for %s", m.Target()))
	}
	next := project.Clone()
	app, err := lookupApp(next, m.Kind(), m.App)
	if err != nil {
		return nil, err
	}
	model, ok := app.Model(m.Model)
	if !ok {
		return nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("rename_model: model %s.%s does not exist", m.App, m.Model)).
			WithDetails(map[string]interface{}{"app": m.App, "model": m.Model})
	}
	if m.NewName != m.Model {
		if _, ok := app.Model(m.NewName); ok {
			return nil, errors.NewConflictError(errors.CodeDuplicateEntity,
				fmt.Sprintf("rename_model: model %s.%s already exists", m.App, m.NewName)).
				WithDetails(map[string]interface{}{"app": m.App, "model": m.NewName})
		}
	}

	app.RemoveModel(m.Model)
	model.Name = m.NewName
	if m.NewTable != nil {
		model.TableName = *m.NewTable
	}
	app.SetModel(model)

	oldRef := m.App + "." + m.Model
	newRef := m.App + "." + m.NewName
	for _, a := range next.Apps {
		for _, mod := range a.Models {
			for _, f := range mod.Fields {
				if f.RelatedModel == oldRef {
					f.RelatedModel = newRef
				}
			}
		}
	}
	return next, nil
}

func (m RenameModel) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	if m.NewTable == nil || *m.NewTable == model.TableName {
		return nil, nil
	}
	return []types.Instruction{{
		Kind:     types.OpRenameModel,
		App:      m.App,
		Model:    m.Model,
		Table:    model.TableName,
		NewTable: *m.NewTable,
	}}, nil
}

func (m RenameModel) String() string {
	return fmt.Sprintf("rename_model(%s -> %s)", m.Target(), m.NewName)
}

package mutations

import (
	"fmt"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// ChangeMeta replaces a model's unique-together constraints wholesale.
// The new tuple set is the complete declaration, not a delta.
type ChangeMeta struct {
	App   string
	Model string

	UniqueTogether [][]string
}

func (m ChangeMeta) Kind() types.OpKind { return types.OpChangeMeta }

func (m ChangeMeta) Target() Target {
	return Target{App: m.App, Model: m.Model}
}

func (m ChangeMeta) Touches() []Target { return []Target{m.Target()} }

func (m ChangeMeta) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	next := project.Clone()
	model, err := lookupModel(next, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	for _, tuple := range m.UniqueTogether {
		if len(tuple) == 0 {
			return nil, errors.NewValidationError(errors.CodeInvalidMutation,
				fmt.Sprintf("change_meta: empty unique_together tuple on %s.%s", m.App, m.Model))
		}
		for _, name := range tuple {
			if !model.HasField(name) {
				return nil, errors.NewConflictError(errors.CodeUnknownEntity,
					fmt.Sprintf("change_meta: field %s.%s.%s does not exist", m.App, m.Model, name)).
					WithDetails(map[string]interface{}{"app": m.App, "model": m.Model, "field": name})
			}
		}
	}
	model.UniqueTogether = cloneTuples(m.UniqueTogether)
	return next, nil
}

func (m ChangeMeta) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	model, err := lookupModel(prior, m.Kind(), m.App, m.Model)
	if err != nil {
		return nil, err
	}
	return []types.Instruction{{
		Kind:              types.OpChangeMeta,
		App:               m.App,
		Model:             m.Model,
		Table:             model.TableName,
		UniqueTogether:    columnTuples(model, m.UniqueTogether),
		OldUniqueTogether: columnTuples(model, model.UniqueTogether),
	}}, nil
}

func (m ChangeMeta) String() string {
	return fmt.Sprintf("change_meta(%s: unique_together)", m.Target())
}

func cloneTuples(tuples [][]string) [][]string {
	if tuples == nil {
		return nil
	}
	out := make([][]string, len(tuples))
	for i, t := range tuples {
		out[i] = append([]string(nil), t...)
	}
	return out
}

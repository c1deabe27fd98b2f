// Package mutations defines the closed set of schema change operations.
// Each operation knows how to simulate itself against a project signature,
// which parts of the schema it touches, and how to lower itself into
// backend-neutral instructions. Simulation never modifies its input: every
// operation clones the incoming snapshot and returns the evolved copy, so a
// failed step leaves the caller's state untouched.
package mutations

import (
	"fmt"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// UserValueRequired is the placeholder written into generated hints where a
// human must supply an initial value. An operation still carrying it at
// simulation time is treated as having no initial value at all.
const UserValueRequired = "<<USER VALUE REQUIRED>>"

// Target names the schema region an operation works on. An empty Model
// means the whole application, an empty Field the whole model.
type Target struct {
	App   string
	Model string
	Field string
}

// Overlaps reports whether two targets can touch the same schema object.
// A wider target (empty model or field) overlaps everything beneath it.
func (t Target) Overlaps(other Target) bool {
	if t.App != other.App {
		return false
	}
	if t.Model == "" || other.Model == "" {
		return true
	}
	if t.Model != other.Model {
		return false
	}
	if t.Field == "" || other.Field == "" {
		return true
	}
	return t.Field == other.Field
}

// String renders the target as a dotted path.
func (t Target) String() string {
	s := t.App
	if t.Model != "" {
		s += "." + t.Model
	}
	if t.Field != "" {
		s += "." + t.Field
	}
	return s
}

// Mutation is one schema change operation. Implementations are small value
// types; copying one is cheap and never shares mutable state, which the
// optimizer relies on when it merges operations.
type Mutation interface {
	// Kind identifies the operation variant.
	Kind() types.OpKind

	// Target names the primary schema object the operation changes.
	Target() Target

	// Touches lists every target the operation reads or writes, the
	// primary one included. The optimizer uses this to decide which
	// operations may interact.
	Touches() []Target

	// Simulate applies the operation to a snapshot and returns the evolved
	// copy. The input is never modified. Errors follow the shared
	// taxonomy: unknown or duplicate entities are conflicts, unresolvable
	// relations are unresolved-reference errors.
	Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error)

	// Instructions lowers the operation into backend-neutral instructions,
	// resolved against the signature as it stands before this operation
	// runs. Operations whose effect is signature-only return none.
	Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error)

	// String renders the operation for logs and error messages.
	String() string
}

// lookupApp resolves an application label, reporting a conflict when it is
// unknown.
func lookupApp(p *signature.ProjectSignature, op types.OpKind, app string) (*signature.AppSignature, error) {
	a, ok := p.App(app)
	if !ok {
		return nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("%s: app %q does not exist", op, app)).
			WithDetails(map[string]interface{}{"op": string(op), "app": app})
	}
	return a, nil
}

// lookupModel resolves an (app, model) pair, reporting a conflict when
// either level is unknown.
func lookupModel(p *signature.ProjectSignature, op types.OpKind, app, model string) (*signature.ModelSignature, error) {
	if _, err := lookupApp(p, op, app); err != nil {
		return nil, err
	}
	m, ok := p.Model(app, model)
	if !ok {
		return nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("%s: model %s.%s does not exist", op, app, model)).
			WithDetails(map[string]interface{}{"op": string(op), "app": app, "model": model})
	}
	return m, nil
}

// lookupField resolves an (app, model, field) triple, reporting a conflict
// when any level is unknown.
func lookupField(p *signature.ProjectSignature, op types.OpKind, app, model, field string) (*signature.ModelSignature, *signature.FieldSignature, error) {
	m, err := lookupModel(p, op, app, model)
	if err != nil {
		return nil, nil, err
	}
	f, ok := m.Field(field)
	if !ok {
		return nil, nil, errors.NewConflictError(errors.CodeUnknownEntity,
			fmt.Sprintf("%s: field %s.%s.%s does not exist", op, app, model, field)).
			WithDetails(map[string]interface{}{"op": string(op), "app": app, "model": model, "field": field})
	}
	return m, f, nil
}

// checkRelation verifies that a field's relation target exists, unless
// resolution is deferred to final validation.
func checkRelation(p *signature.ProjectSignature, op types.OpKind, app, model string, f *signature.FieldSignature) error {
	if f.RelatedModel == "" || f.RelatedDeferred {
		return nil
	}
	if _, ok := p.ResolveRelation(f.RelatedModel); !ok {
		return errors.NewUnresolvedError(errors.CodeUnknownRelation,
			fmt.Sprintf("%s: field %s.%s.%s references unknown model %q",
				op, app, model, f.Name, f.RelatedModel)).
			WithDetails(map[string]interface{}{
				"op": string(op), "app": app, "model": model,
				"field": f.Name, "related_model": f.RelatedModel,
			})
	}
	return nil
}

// relationTargets returns the extra targets touched through a field's
// relation, if any.
func relationTargets(f *signature.FieldSignature) []Target {
	if f.RelatedModel == "" {
		return nil
	}
	app, model, ok := signature.SplitRelation(f.RelatedModel)
	if !ok {
		return nil
	}
	return []Target{{App: app, Model: model}}
}

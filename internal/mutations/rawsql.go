package mutations

import (
	"fmt"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// RawSQL runs literal statements against the backend. The engine cannot
// see through SQL, so simulation requires an explicit Update function that
// applies the equivalent signature change; without one the operation
// reports that it cannot be simulated. Its touch set is the whole app,
// which keeps the optimizer from moving anything across it.
type RawSQL struct {
	App string

	// SQL holds the statements to execute, in order.
	SQL []string

	// Update mirrors the statements' effect onto the signature during
	// simulation. It receives a private clone and may modify it in place.
	Update func(project *signature.ProjectSignature) error
}

func (m RawSQL) Kind() types.OpKind { return types.OpRawSQL }

func (m RawSQL) Target() Target {
	return Target{App: m.App}
}

func (m RawSQL) Touches() []Target { return []Target{m.Target()} }

func (m RawSQL) Simulate(project *signature.ProjectSignature) (*signature.ProjectSignature, error) {
	if m.Update == nil {
		return nil, errors.NewConflictError(errors.CodeCannotSimulate,
			fmt.Sprintf("sql: raw statements for app %q carry no signature update", m.App)).
			WithDetails(map[string]interface{}{"app": m.App})
	}
	next := project.Clone()
	if err := m.Update(next); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryConflict, errors.CodeCannotSimulate,
			fmt.Sprintf("sql: signature update for app %q failed", m.App), err)
	}
	return next, nil
}

func (m RawSQL) Instructions(prior *signature.ProjectSignature) ([]types.Instruction, error) {
	if len(m.SQL) == 0 {
		return nil, nil
	}
	return []types.Instruction{{
		Kind: types.OpRawSQL,
		App:  m.App,
		SQL:  append([]string(nil), m.SQL...),
	}}, nil
}

func (m RawSQL) String() string {
	return fmt.Sprintf("sql(%s: %d statements)", m.App, len(m.SQL))
}

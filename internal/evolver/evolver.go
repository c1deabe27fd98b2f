// Package evolver drives a schema evolution run: load the last applied
// signature, plan mutations (hinted from a diff or loaded from authored
// batches), optimize, simulate, validate against the registry's target
// signature, and hand generated statements to an external executor.
package evolver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/evolvedb/evolve/internal/diff"
	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/evolutions"
	"github.com/evolvedb/evolve/internal/history"
	"github.com/evolvedb/evolve/internal/mutations"
	"github.com/evolvedb/evolve/internal/optimizer"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// State names the phase a run has reached.
type State string

const (
	StateLoaded    State = "LOADED"
	StatePlanned   State = "PLANNED"
	StateOptimized State = "OPTIMIZED"
	StateSimulated State = "SIMULATED"
	StateValidated State = "VALIDATED"
	StateExecuted  State = "EXECUTED"
	StateAborted   State = "ABORTED"
)

// ModelRegistry supplies the target signature declared by the live
// model definitions.
type ModelRegistry interface {
	CurrentSignature() *signature.ProjectSignature
}

// StatementGenerator turns one abstract instruction into literal
// statements for a concrete backend.
type StatementGenerator interface {
	BuildStatements(instr types.Instruction) ([]string, error)
}

// StatementExecutor runs one literal statement against the target
// database. The evolver never wraps statements in its own transaction;
// that boundary belongs to the executor.
type StatementExecutor interface {
	ExecuteStatement(ctx context.Context, statement string) error
}

// Archive receives post-run artifacts. Both calls are best effort; the
// evolver logs failures and continues.
type Archive interface {
	ArchiveSnapshot(ctx context.Context, version int, sig *signature.ProjectSignature) error
	ArchiveRunReport(ctx context.Context, runID string, report []byte) error
}

// Options carries the optional collaborators for a run.
type Options struct {
	// Generator builds literal statements. Without one the run stops
	// after validation and reports no statement groups.
	Generator StatementGenerator

	// Executor runs the generated statements. Requires a Generator.
	// Without one the statements are generated but not executed.
	Executor StatementExecutor

	// Archive receives the applied snapshot and the run report after a
	// successful execution.
	Archive Archive

	// TrustUnsimulated lets raw-SQL batches without a simulation
	// function pass with a warning instead of aborting. Validation is
	// skipped for such runs and the registry signature is recorded as
	// applied, trusting the SQL to have produced it.
	TrustUnsimulated bool
}

// Evolver orchestrates runs against one history store and registry.
// It runs one evolution at a time; concurrent runs against the same
// store must be serialized externally.
type Evolver struct {
	store    history.Store
	registry ModelRegistry
	opts     Options
}

func New(store history.Store, registry ModelRegistry, opts Options) *Evolver {
	return &Evolver{store: store, registry: registry, opts: opts}
}

// RunHint diffs the registry's target signature against the last
// applied signature and runs the hinted mutations.
func (e *Evolver) RunHint(ctx context.Context) (*RunReport, error) {
	return e.run(ctx, nil, true)
}

// RunBatches runs authored evolution batches in order. Batches are
// recorded as applied only after every statement has executed.
func (e *Evolver) RunBatches(ctx context.Context, batches []evolutions.Batch) (*RunReport, error) {
	return e.run(ctx, batches, false)
}

func (e *Evolver) run(ctx context.Context, batches []evolutions.Batch, hinted bool) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		State:     StateLoaded,
		Hinted:    hinted,
	}

	err := e.pipeline(ctx, batches, hinted, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.State = StateAborted
		report.Error = err.Error()
		return report, err
	}
	if report.State == StateExecuted {
		e.archiveRun(ctx, report)
	}
	return report, nil
}

func (e *Evolver) pipeline(ctx context.Context, batches []evolutions.Batch, hinted bool, report *RunReport) error {
	if e.opts.Executor != nil && e.opts.Generator == nil {
		return errors.NewValidationError(errors.CodeInvalidConfig,
			"an executor requires a statement generator")
	}

	baseVersion, base, err := e.store.LoadLatest(ctx)
	if err != nil {
		return err
	}
	if base == nil {
		// First run: evolve from an empty project.
		base = signature.NewProjectSignature()
	}
	target := e.registry.CurrentSignature()
	if target == nil {
		return errors.NewValidationError(errors.CodeInvalidConfig,
			"model registry returned no signature")
	}
	report.BaseVersion = baseVersion
	log.Printf("[INFO] evolver: run %s loaded applied version %d", report.RunID, baseVersion)

	var seq []mutations.Mutation
	if hinted {
		seq = diff.Diff(base, target).Mutations()
	} else {
		for _, b := range batches {
			seq = append(seq, b.Mutations...)
			report.Batches = append(report.Batches, BatchRef{App: b.App, Label: b.Label})
		}
	}
	report.Plan = mutationStrings(seq)
	report.State = StatePlanned

	seq = optimizer.Optimize(seq)
	report.Optimized = mutationStrings(seq)
	report.State = StateOptimized

	// Replay the optimized sequence, keeping each operation's prior
	// signature for instruction building later.
	priors := make([]*signature.ProjectSignature, len(seq))
	current := base
	for i, m := range seq {
		priors[i] = current
		next, err := m.Simulate(current)
		if err != nil {
			if e.opts.TrustUnsimulated && errors.GetCode(err) == errors.CodeCannotSimulate {
				log.Printf("[WARN] evolver: run %s trusting unsimulated operation %d (%s)",
					report.RunID, i, m)
				report.Trusted = true
				continue
			}
			return errors.WithDetail(err, "op_index", i)
		}
		current = next
	}
	report.State = StateSimulated

	if report.Trusted {
		log.Printf("[WARN] evolver: run %s skipping validation, sequence contains unsimulated SQL",
			report.RunID)
	} else if err := validate(current, target); err != nil {
		return err
	}
	report.State = StateValidated

	if e.opts.Generator == nil {
		return nil
	}
	items, groups, err := e.buildStatements(seq, priors)
	if err != nil {
		return err
	}
	report.Groups = groups
	if e.opts.Executor == nil {
		return nil
	}

	// Nothing external has happened yet; this is the last point where
	// cancellation is side-effect free.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evolver: run cancelled before execution: %w", err)
	}

	for _, item := range items {
		if err := e.opts.Executor.ExecuteStatement(ctx, item.statement); err != nil {
			item.group.Failed = item.statement
			return errors.NewBackendError(
				fmt.Sprintf("statement failed for app %s", item.group.App), err).
				WithDetails(map[string]interface{}{
					"app":       item.group.App,
					"op":        item.op,
					"op_index":  item.opIndex,
					"statement": item.statement,
				})
		}
		item.group.Executed++
	}
	report.State = StateExecuted

	version, err := e.store.Save(ctx, target)
	if err != nil {
		return fmt.Errorf("evolver: schema applied but saving the version failed: %w", err)
	}
	report.TargetVersion = version
	report.targetSig = target
	for _, b := range batches {
		if err := e.store.RecordApplied(ctx, b.App, b.Label, version); err != nil {
			return fmt.Errorf("evolver: schema applied but recording %s/%s failed: %w",
				b.App, b.Label, err)
		}
	}
	log.Printf("[INFO] evolver: run %s applied version %d (%d statements)",
		report.RunID, version, statementCount(report.Groups))
	return nil
}

// validate confirms the simulated signature matches the target.
// Matching fingerprints mean identical serialized structure and settle
// it immediately; otherwise fall back to structural comparison.
func validate(simulated, target *signature.ProjectSignature) error {
	simFP, simErr := simulated.Fingerprint()
	tgtFP, tgtErr := target.Fingerprint()
	if simErr == nil && tgtErr == nil && simFP == tgtFP {
		return nil
	}
	if simulated.Equal(target) {
		return nil
	}
	d := simulated.FirstDifference(target)
	return errors.NewDivergenceError(
		fmt.Sprintf("simulated signature does not match the target: %s", d)).
		WithDetails(d.Details())
}

type execItem struct {
	opIndex   int
	op        string
	statement string
	group     *StatementGroup
}

// buildStatements translates every operation into literal statements,
// grouped per app in first-appearance order. Generation happens in full
// before anything executes so a generation failure has no side effects.
func (e *Evolver) buildStatements(seq []mutations.Mutation, priors []*signature.ProjectSignature) ([]execItem, []*StatementGroup, error) {
	var items []execItem
	var groups []*StatementGroup
	byApp := make(map[string]*StatementGroup)

	for i, m := range seq {
		instrs, err := m.Instructions(priors[i])
		if err != nil {
			return nil, nil, errors.WithDetail(err, "op_index", i)
		}
		app := m.Target().App
		group := byApp[app]
		if group == nil {
			group = &StatementGroup{App: app}
			byApp[app] = group
			groups = append(groups, group)
		}
		for _, instr := range instrs {
			stmts, err := e.opts.Generator.BuildStatements(instr)
			if err != nil {
				return nil, nil, fmt.Errorf("evolver: failed to generate statements for %s: %w", m, err)
			}
			for _, stmt := range stmts {
				group.Statements = append(group.Statements, stmt)
				items = append(items, execItem{opIndex: i, op: m.String(), statement: stmt, group: group})
			}
		}
	}
	return items, groups, nil
}

func (e *Evolver) archiveRun(ctx context.Context, report *RunReport) {
	if e.opts.Archive == nil {
		return
	}
	if report.targetSig != nil {
		if err := e.opts.Archive.ArchiveSnapshot(ctx, report.TargetVersion, report.targetSig); err != nil {
			log.Printf("[WARN] evolver: run %s failed to archive snapshot: %v", report.RunID, err)
		}
	}
	payload, err := report.Marshal()
	if err != nil {
		log.Printf("[WARN] evolver: run %s failed to encode report: %v", report.RunID, err)
		return
	}
	if err := e.opts.Archive.ArchiveRunReport(ctx, report.RunID, payload); err != nil {
		log.Printf("[WARN] evolver: run %s failed to archive report: %v", report.RunID, err)
	}
}

func mutationStrings(seq []mutations.Mutation) []string {
	if len(seq) == 0 {
		return nil
	}
	out := make([]string, len(seq))
	for i, m := range seq {
		out[i] = m.String()
	}
	return out
}

func statementCount(groups []*StatementGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Statements)
	}
	return n
}

// Package optimizer collapses redundant operations out of a mutation
// sequence without changing its net effect on any signature. It works
// purely on the operations' declared touch sets and payloads; it never
// simulates, and it never removes an operation that could be a genuine
// conflict, leaving those for the evolver's replay to surface.
package optimizer

import (
	"github.com/evolvedb/evolve/internal/mutations"
)

// Optimize returns an equivalent, possibly shorter copy of the sequence.
// The input is never modified.
//
// Collapse rules, applied earliest-first with a rescan from the start
// after every application, until a fixed point:
//
//   - an added field later deleted, with nothing in between touching it,
//     vanishes entirely;
//   - attribute changes to an added field merge into the add;
//   - a rename of an added field renames the add and disappears;
//   - an added index later deleted by an identical declaration vanishes;
//   - an added model later deleted, with nothing in between touching it,
//     vanishes.
//
// Renames of fields or models that pre-date the sequence survive
// untouched, as does everything the rules do not name: duplicate adds and
// deletes of unknown entities stay in place so simulation can report them.
func Optimize(seq []mutations.Mutation) []mutations.Mutation {
	out := append([]mutations.Mutation(nil), seq...)
	for {
		next, applied := applyFirstRule(out)
		if !applied {
			return out
		}
		out = next
	}
}

// applyFirstRule scans for the earliest operation that begins a collapsible
// pair and applies exactly one rule.
func applyFirstRule(seq []mutations.Mutation) ([]mutations.Mutation, bool) {
	for i, op := range seq {
		switch head := op.(type) {
		case mutations.AddField:
			if next, ok := collapseAddField(seq, i, head); ok {
				return next, true
			}
		case mutations.AddModel:
			if next, ok := collapseAddModel(seq, i, head); ok {
				return next, true
			}
		case mutations.AddIndex:
			if next, ok := collapseAddIndex(seq, i, head); ok {
				return next, true
			}
		}
	}
	return nil, false
}

// firstToucher returns the index of the first operation after i whose
// touch set overlaps the head's, or -1. Everything before that index is
// independent of the head, so pulling the toucher's effect into the head
// reorders nothing observable.
func firstToucher(seq []mutations.Mutation, i int, head mutations.Mutation) int {
	headTouches := head.Touches()
	for j := i + 1; j < len(seq); j++ {
		for _, t := range seq[j].Touches() {
			for _, h := range headTouches {
				if t.Overlaps(h) {
					return j
				}
			}
		}
	}
	return -1
}

func collapseAddField(seq []mutations.Mutation, i int, head mutations.AddField) ([]mutations.Mutation, bool) {
	j := firstToucher(seq, i, head)
	if j < 0 {
		return nil, false
	}
	target := head.Target()

	switch next := seq[j].(type) {
	case mutations.DeleteField:
		// Add then delete of the same field cancels both.
		if next.Target() == target {
			return removeAt(seq, i, j), true
		}
	case mutations.ChangeField:
		// Changes to a freshly added field fold into the add itself.
		if next.Target() == target {
			merged := head
			merged.Field = *head.Field.Clone()
			next.Attrs.Apply(&merged.Field)
			if next.Initial != nil {
				merged.Initial = next.Initial
			}
			return replaceAndRemove(seq, i, merged, j), true
		}
	case mutations.RenameField:
		// A rename of a field this sequence itself created renames the
		// add; the database never sees the old name.
		if next.Target() == target {
			merged := head
			merged.Field = *head.Field.Clone()
			merged.Field.Name = next.NewName
			if next.NewColumn != nil {
				merged.Field.ColumnName = *next.NewColumn
			}
			return replaceAndRemove(seq, i, merged, j), true
		}
	}
	return nil, false
}

func collapseAddModel(seq []mutations.Mutation, i int, head mutations.AddModel) ([]mutations.Mutation, bool) {
	j := firstToucher(seq, i, head)
	if j < 0 {
		return nil, false
	}
	if next, ok := seq[j].(mutations.DeleteModel); ok && next.Target() == head.Target() {
		return removeAt(seq, i, j), true
	}
	return nil, false
}

func collapseAddIndex(seq []mutations.Mutation, i int, head mutations.AddIndex) ([]mutations.Mutation, bool) {
	j := firstToucher(seq, i, head)
	if j < 0 {
		return nil, false
	}
	next, ok := seq[j].(mutations.DeleteIndex)
	if !ok || next.App != head.App || next.Model != head.Model {
		return nil, false
	}
	// The delete must unambiguously refer to the added index: matching
	// explicit names, or a field-tuple match when the add carries no name.
	// A by-tuple delete after a named add may hit an unnamed index that
	// existed before the sequence, so that pair stays.
	switch {
	case next.Name != "" && next.Name == head.Index.Name:
	case next.Name == "" && head.Index.Name == "" &&
		next.Unique == head.Index.Unique && tuplesMatch(next.Fields, head.Index.Fields):
	default:
		return nil, false
	}
	return removeAt(seq, i, j), true
}

// removeAt returns a copy of the sequence without the two given positions.
func removeAt(seq []mutations.Mutation, i, j int) []mutations.Mutation {
	out := make([]mutations.Mutation, 0, len(seq)-2)
	for k, op := range seq {
		if k != i && k != j {
			out = append(out, op)
		}
	}
	return out
}

// replaceAndRemove returns a copy with position i replaced and position j
// dropped.
func replaceAndRemove(seq []mutations.Mutation, i int, replacement mutations.Mutation, j int) []mutations.Mutation {
	out := make([]mutations.Mutation, 0, len(seq)-1)
	for k, op := range seq {
		switch k {
		case i:
			out = append(out, replacement)
		case j:
		default:
			out = append(out, op)
		}
	}
	return out
}

func tuplesMatch(a, b []string) bool {
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

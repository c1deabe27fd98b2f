// Package diff compares two project signatures and produces a structured
// change set, which can then be expressed as a mutation sequence
// ("hinting"). Renames are never inferred: an entity that disappeared
// under one name and appeared under another is reported as a delete and an
// add, and substituting a rename is the caller's decision.
package diff

import (
	"sort"

	"github.com/evolvedb/evolve/internal/mutations"
	"github.com/evolvedb/evolve/internal/signature"
)

// ChangeSet is the structured difference between two project signatures,
// grouped per application in sorted order.
type ChangeSet struct {
	Apps []*AppChanges
}

// AppChanges collects the differences within one application.
type AppChanges struct {
	App string

	// AddedModels holds full definitions of models present only in the
	// target, with relations marked deferred when their targets are also
	// new.
	AddedModels []*signature.ModelSignature

	// DeletedModels names models present only in the source.
	DeletedModels []string

	// Changed holds per-model differences for models present in both.
	Changed []*ModelChanges
}

// ModelChanges collects the differences within one model.
type ModelChanges struct {
	Model string

	// AddedFields holds definitions of fields present only in the target.
	AddedFields []*signature.FieldSignature

	// DeletedFields names fields present only in the source. A field
	// whose type or relation changed appears both here and in
	// AddedFields: such changes are too destructive to express as an
	// attribute change.
	DeletedFields []string

	// ChangedFields pairs old and new definitions of fields whose
	// attributes differ.
	ChangedFields []FieldChange

	AddedIndexes   []signature.IndexSignature
	DeletedIndexes []signature.IndexSignature

	// UniqueTogetherChanged reports whether the constraint set differs;
	// UniqueTogether then holds the complete target set.
	UniqueTogetherChanged bool
	UniqueTogether        [][]string
}

// FieldChange pairs the source and target definitions of one field.
type FieldChange struct {
	Field string
	Old   *signature.FieldSignature
	New   *signature.FieldSignature
}

// Empty reports whether the change set contains no differences.
func (cs *ChangeSet) Empty() bool {
	for _, app := range cs.Apps {
		if len(app.AddedModels) > 0 || len(app.DeletedModels) > 0 {
			return false
		}
		for _, mc := range app.Changed {
			if !mc.empty() {
				return false
			}
		}
	}
	return true
}

func (mc *ModelChanges) empty() bool {
	return len(mc.AddedFields) == 0 &&
		len(mc.DeletedFields) == 0 &&
		len(mc.ChangedFields) == 0 &&
		len(mc.AddedIndexes) == 0 &&
		len(mc.DeletedIndexes) == 0 &&
		!mc.UniqueTogetherChanged
}

// Diff compares a source signature against a target and returns the
// change set that would transform the source into the target.
func Diff(source, target *signature.ProjectSignature) *ChangeSet {
	cs := &ChangeSet{}
	for _, label := range unionLabels(source, target) {
		srcApp, inSrc := source.App(label)
		tgtApp, inTgt := target.App(label)

		ac := &AppChanges{App: label}
		switch {
		case !inSrc:
			for _, name := range tgtApp.ModelNames() {
				ac.AddedModels = append(ac.AddedModels, prepareAddedModel(source, tgtApp.Models[name]))
			}
		case !inTgt:
			ac.DeletedModels = srcApp.ModelNames()
		default:
			diffApp(source, srcApp, tgtApp, ac)
		}
		if len(ac.AddedModels) > 0 || len(ac.DeletedModels) > 0 || len(ac.Changed) > 0 {
			cs.Apps = append(cs.Apps, ac)
		}
	}
	return cs
}

func diffApp(source *signature.ProjectSignature, src, tgt *signature.AppSignature, ac *AppChanges) {
	for _, name := range unionNames(src.ModelNames(), tgt.ModelNames()) {
		srcModel, inSrc := src.Model(name)
		tgtModel, inTgt := tgt.Model(name)

		switch {
		case !inSrc:
			ac.AddedModels = append(ac.AddedModels, prepareAddedModel(source, tgtModel))
		case !inTgt:
			ac.DeletedModels = append(ac.DeletedModels, name)
		case srcModel.TableName != tgtModel.TableName:
			// A matched model on a different table is an apparent table
			// rename; per the no-inference policy it becomes a delete
			// and an add.
			ac.DeletedModels = append(ac.DeletedModels, name)
			ac.AddedModels = append(ac.AddedModels, prepareAddedModel(source, tgtModel))
		default:
			if mc := diffModel(source, srcModel, tgtModel); !mc.empty() {
				ac.Changed = append(ac.Changed, mc)
			}
		}
	}
}

func diffModel(source *signature.ProjectSignature, src, tgt *signature.ModelSignature) *ModelChanges {
	mc := &ModelChanges{Model: src.Name}

	for _, name := range unionNames(fieldNames(src), fieldNames(tgt)) {
		srcField, inSrc := src.Field(name)
		tgtField, inTgt := tgt.Field(name)

		switch {
		case !inSrc:
			mc.AddedFields = append(mc.AddedFields, prepareAddedField(source, src.Name, tgtField))
		case !inTgt:
			mc.DeletedFields = append(mc.DeletedFields, name)
		case srcField.Type != tgtField.Type || srcField.RelatedModel != tgtField.RelatedModel:
			// Type and relation changes cannot be expressed as attribute
			// changes; report them as a delete and an add.
			mc.DeletedFields = append(mc.DeletedFields, name)
			mc.AddedFields = append(mc.AddedFields, prepareAddedField(source, src.Name, tgtField))
		case !srcField.Equal(tgtField):
			mc.ChangedFields = append(mc.ChangedFields, FieldChange{
				Field: name,
				Old:   srcField.Clone(),
				New:   tgtField.Clone(),
			})
		}
	}

	mc.AddedIndexes, mc.DeletedIndexes = diffIndexes(src.Indexes, tgt.Indexes)

	if !tupleSetsEqual(src.UniqueTogether, tgt.UniqueTogether) {
		mc.UniqueTogetherChanged = true
		mc.UniqueTogether = cloneTuples(tgt.UniqueTogether)
	}
	return mc
}

// diffIndexes compares index sets. An index matches when name, field tuple,
// and uniqueness all agree; anything else is a delete plus an add.
func diffIndexes(src, tgt []signature.IndexSignature) (added, deleted []signature.IndexSignature) {
	matched := make([]bool, len(src))
	for _, ti := range tgt {
		found := false
		for i, si := range src {
			if !matched[i] && si.Equal(ti) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			added = append(added, ti.Clone())
		}
	}
	for i, si := range src {
		if !matched[i] {
			deleted = append(deleted, si.Clone())
		}
	}
	return added, deleted
}

// prepareAddedModel clones a target model and marks relations deferred
// when their targets do not exist in the source signature. Those targets
// are being added in the same change set, so resolution waits for final
// validation. Self references always resolve.
func prepareAddedModel(source *signature.ProjectSignature, model *signature.ModelSignature) *signature.ModelSignature {
	cp := model.Clone()
	for _, f := range cp.Fields {
		markDeferred(source, cp.Name, f)
	}
	return cp
}

func prepareAddedField(source *signature.ProjectSignature, modelName string, field *signature.FieldSignature) *signature.FieldSignature {
	cp := field.Clone()
	markDeferred(source, modelName, cp)
	return cp
}

func markDeferred(source *signature.ProjectSignature, modelName string, f *signature.FieldSignature) {
	if f.RelatedModel == "" {
		return
	}
	if _, targetModel, ok := signature.SplitRelation(f.RelatedModel); ok && targetModel == modelName {
		return
	}
	if _, ok := source.ResolveRelation(f.RelatedModel); !ok {
		f.RelatedDeferred = true
	}
}

func unionLabels(a, b *signature.ProjectSignature) []string {
	return unionNames(a.AppLabels(), b.AppLabels())
}

func unionNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func fieldNames(m *signature.ModelSignature) []string {
	names := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		names = append(names, f.Name)
	}
	return names
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

func tupleSetsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, ta := range a {
		for j, tb := range b {
			if !used[j] && namesEqual(ta, tb) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func namesEqual(a, b []string) bool {
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

// Mutations expresses the change set as an ordered mutation sequence.
// Within each app the order is: per changed model, index deletes, field
// deletes, field adds, field changes, index adds, then constraint changes;
// then whole deleted models; then whole added models. Deletes precede adds
// so that a model rebuilt under the same name or on a reclaimed table does
// not collide with its old incarnation. Added non-null fields without a
// default carry the user-value placeholder as their initial value, to be
// filled in by hand.
func (cs *ChangeSet) Mutations() []mutations.Mutation {
	var muts []mutations.Mutation
	for _, ac := range cs.Apps {
		for _, mc := range ac.Changed {
			muts = append(muts, mc.mutations(ac.App)...)
		}
		for _, name := range ac.DeletedModels {
			muts = append(muts, mutations.DeleteModel{App: ac.App, Model: name})
		}
		for _, model := range ac.AddedModels {
			muts = append(muts, mutations.AddModel{App: ac.App, Model: *model.Clone()})
		}
	}
	return muts
}

func (mc *ModelChanges) mutations(app string) []mutations.Mutation {
	var muts []mutations.Mutation
	for _, idx := range mc.DeletedIndexes {
		muts = append(muts, mutations.DeleteIndex{
			App: app, Model: mc.Model,
			Name: idx.Name, Fields: idx.Fields, Unique: idx.Unique,
		})
	}
	for _, name := range mc.DeletedFields {
		muts = append(muts, mutations.DeleteField{App: app, Model: mc.Model, Field: name})
	}
	for _, f := range mc.AddedFields {
		add := mutations.AddField{App: app, Model: mc.Model, Field: *f.Clone()}
		if !f.Null && !f.PrimaryKey && f.Default == nil {
			add.Initial = signature.StringPtr(mutations.UserValueRequired)
		}
		muts = append(muts, add)
	}
	for _, fc := range mc.ChangedFields {
		muts = append(muts, fc.mutation(app, mc.Model))
	}
	for _, idx := range mc.AddedIndexes {
		muts = append(muts, mutations.AddIndex{App: app, Model: mc.Model, Index: idx.Clone()})
	}
	if mc.UniqueTogetherChanged {
		muts = append(muts, mutations.ChangeMeta{
			App: app, Model: mc.Model,
			UniqueTogether: cloneTuples(mc.UniqueTogether),
		})
	}
	return muts
}

// mutation lowers a field change to a ChangeField carrying only the
// attributes that differ.
func (fc FieldChange) mutation(app, model string) mutations.Mutation {
	var attrs mutations.FieldAttrs
	if fc.Old.Null != fc.New.Null {
		attrs.Null = signature.BoolPtr(fc.New.Null)
	}
	if fc.Old.Unique != fc.New.Unique {
		attrs.Unique = signature.BoolPtr(fc.New.Unique)
	}
	if fc.Old.DBIndex != fc.New.DBIndex {
		attrs.DBIndex = signature.BoolPtr(fc.New.DBIndex)
	}
	if fc.Old.MaxLength != fc.New.MaxLength {
		attrs.MaxLength = signature.IntPtr(fc.New.MaxLength)
	}
	switch {
	case fc.New.Default == nil && fc.Old.Default != nil:
		attrs.ClearDefault = true
	case fc.New.Default != nil && (fc.Old.Default == nil || *fc.Old.Default != *fc.New.Default):
		attrs.Default = signature.StringPtr(*fc.New.Default)
	}
	if fc.Old.Column() != fc.New.Column() {
		attrs.Column = signature.StringPtr(fc.New.Column())
	}

	cf := mutations.ChangeField{App: app, Model: model, Field: fc.Field, Attrs: attrs}
	if fc.Old.Null && !fc.New.Null && fc.New.Default == nil {
		cf.Initial = signature.StringPtr(mutations.UserValueRequired)
	}
	return cf
}

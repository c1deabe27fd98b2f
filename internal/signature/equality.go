package signature

import (
	"fmt"
	"sort"
)

// Difference pinpoints the first detected divergence between two project
// signatures. It feeds the details map of a divergence error, so the
// positions are structured rather than prose.
type Difference struct {
	App       string
	Model     string
	Field     string
	Attribute string
	Got       string
	Want      string
}

// String renders the difference as a dotted path with the differing values.
func (d Difference) String() string {
	path := d.App
	if d.Model != "" {
		path += "." + d.Model
	}
	if d.Field != "" {
		path += "." + d.Field
	}
	if d.Attribute != "" {
		path += " (" + d.Attribute + ")"
	}
	return fmt.Sprintf("%s: %s != %s", path, d.Got, d.Want)
}

// Details returns the difference as a details map for structured errors.
func (d Difference) Details() map[string]interface{} {
	details := map[string]interface{}{"app": d.App}
	if d.Model != "" {
		details["model"] = d.Model
	}
	if d.Field != "" {
		details["field"] = d.Field
	}
	if d.Attribute != "" {
		details["attribute"] = d.Attribute
	}
	details["got"] = d.Got
	details["want"] = d.Want
	return details
}

// Equal reports whether two project signatures describe the same schema.
// App and model sets are compared by name, field sets by name ignoring
// declaration order, and attribute defaults count as equal to their
// explicit form. The serialization format version is not part of the
// comparison.
func (p *ProjectSignature) Equal(other *ProjectSignature) bool {
	return p.FirstDifference(other) == nil
}

// FirstDifference walks both signatures in deterministic order and returns
// the first divergence found, or nil when the signatures are equal. The
// walk is stable so repeated comparisons of the same pair report the same
// position.
func (p *ProjectSignature) FirstDifference(other *ProjectSignature) *Difference {
	if other == nil {
		return &Difference{Attribute: "project", Got: "signature", Want: "nil"}
	}
	for _, label := range unionSorted(keysOfApps(p.Apps), keysOfApps(other.Apps)) {
		a, aok := p.Apps[label]
		b, bok := other.Apps[label]
		if !aok {
			return &Difference{App: label, Attribute: "app", Got: "missing", Want: "present"}
		}
		if !bok {
			return &Difference{App: label, Attribute: "app", Got: "present", Want: "missing"}
		}
		if d := appDifference(a, b); d != nil {
			d.App = label
			return d
		}
	}
	return nil
}

func appDifference(a, b *AppSignature) *Difference {
	for _, name := range unionSorted(keysOfModels(a.Models), keysOfModels(b.Models)) {
		ma, aok := a.Models[name]
		mb, bok := b.Models[name]
		if !aok {
			return &Difference{Model: name, Attribute: "model", Got: "missing", Want: "present"}
		}
		if !bok {
			return &Difference{Model: name, Attribute: "model", Got: "present", Want: "missing"}
		}
		if d := modelDifference(ma, mb); d != nil {
			d.Model = name
			return d
		}
	}
	return nil
}

func modelDifference(a, b *ModelSignature) *Difference {
	if a.TableName != b.TableName {
		return &Difference{Attribute: "table", Got: a.TableName, Want: b.TableName}
	}
	for _, name := range unionSorted(fieldNames(a), fieldNames(b)) {
		fa, aok := a.Field(name)
		fb, bok := b.Field(name)
		if !aok {
			return &Difference{Field: name, Attribute: "field", Got: "missing", Want: "present"}
		}
		if !bok {
			return &Difference{Field: name, Attribute: "field", Got: "present", Want: "missing"}
		}
		if attr, got, want, ok := fieldDifference(fa, fb); ok {
			return &Difference{Field: name, Attribute: attr, Got: got, Want: want}
		}
	}
	if !indexSetsEqual(a.Indexes, b.Indexes) {
		return &Difference{Attribute: "indexes",
			Got:  fmt.Sprintf("%v", a.Indexes),
			Want: fmt.Sprintf("%v", b.Indexes)}
	}
	if !tupleSetsEqual(a.UniqueTogether, b.UniqueTogether) {
		return &Difference{Attribute: "unique_together",
			Got:  fmt.Sprintf("%v", a.UniqueTogether),
			Want: fmt.Sprintf("%v", b.UniqueTogether)}
	}
	return nil
}

// fieldDifference compares two field signatures attribute by attribute.
// Column names are compared in effective form, so an implicit column equals
// an explicit one spelling out the field name.
func fieldDifference(a, b *FieldSignature) (attr, got, want string, differs bool) {
	switch {
	case a.Type != b.Type:
		return "type", string(a.Type), string(b.Type), true
	case a.Column() != b.Column():
		return "column", a.Column(), b.Column(), true
	case a.Null != b.Null:
		return "null", fmt.Sprintf("%v", a.Null), fmt.Sprintf("%v", b.Null), true
	case a.PrimaryKey != b.PrimaryKey:
		return "primary_key", fmt.Sprintf("%v", a.PrimaryKey), fmt.Sprintf("%v", b.PrimaryKey), true
	case a.Unique != b.Unique:
		return "unique", fmt.Sprintf("%v", a.Unique), fmt.Sprintf("%v", b.Unique), true
	case a.DBIndex != b.DBIndex:
		return "db_index", fmt.Sprintf("%v", a.DBIndex), fmt.Sprintf("%v", b.DBIndex), true
	case a.MaxLength != b.MaxLength:
		return "max_length", fmt.Sprintf("%d", a.MaxLength), fmt.Sprintf("%d", b.MaxLength), true
	case !stringPtrEqual(a.Default, b.Default):
		return "default", formatPtr(a.Default), formatPtr(b.Default), true
	case a.RelatedModel != b.RelatedModel:
		return "related_model", a.RelatedModel, b.RelatedModel, true
	}
	return "", "", "", false
}

// Equal reports whether two field signatures carry the same attributes.
func (f *FieldSignature) Equal(other *FieldSignature) bool {
	if f == nil || other == nil {
		return f == other
	}
	_, _, _, differs := fieldDifference(f, other)
	return !differs && f.Name == other.Name
}

// Equal reports whether two index signatures match: same name, same field
// tuple in order, same uniqueness.
func (idx IndexSignature) Equal(other IndexSignature) bool {
	return idx.Name == other.Name &&
		idx.Unique == other.Unique &&
		stringSlicesEqual(idx.Fields, other.Fields)
}

// indexSetsEqual compares index lists as sets; declaration order does not
// matter, the field order inside each index does.
func indexSetsEqual(a, b []IndexSignature) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, ia := range a {
		for j, ib := range b {
			if !used[j] && ia.Equal(ib) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// tupleSetsEqual compares unique_together constraints as sets of exact
// tuples; tuple order within the set does not matter, field order within a
// tuple does.
func tupleSetsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, ta := range a {
		for j, tb := range b {
			if !used[j] && stringSlicesEqual(ta, tb) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatPtr(p *string) string {
	if p == nil {
		return "<unset>"
	}
	return *p
}

func keysOfApps(m map[string]*AppSignature) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func keysOfModels(m map[string]*ModelSignature) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func fieldNames(m *ModelSignature) []string {
	names := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		names = append(names, f.Name)
	}
	return names
}

func unionSorted(a, b []string) []string {
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

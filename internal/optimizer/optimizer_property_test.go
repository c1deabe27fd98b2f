package optimizer

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/evolvedb/evolve/internal/mutations"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

var (
	propFieldPool = []string{"note", "score", "batch", "label", "extra"}
	propModelPool = []string{"Invoice", "Shipment", "Coupon"}
)

func propBaseProject() *signature.ProjectSignature {
	p := signature.NewProjectSignature()
	app := p.AddApp("shop")

	customer := signature.NewModelSignature("Customer", "shop_customer")
	customer.AddField(&signature.FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	customer.AddField(&signature.FieldSignature{Name: "email", Type: types.FieldVarchar, MaxLength: 254})
	customer.AddField(&signature.FieldSignature{Name: "name", Type: types.FieldVarchar, MaxLength: 100, Null: true})
	app.SetModel(customer)

	order := signature.NewModelSignature("Order", "shop_order")
	order.AddField(&signature.FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	order.AddField(&signature.FieldSignature{Name: "status", Type: types.FieldVarchar, MaxLength: 20})
	order.AddField(&signature.FieldSignature{Name: "total", Type: types.FieldDecimal, Null: true})
	app.SetModel(order)

	return p
}

// randomSequence walks a working copy of the signature and emits only
// mutations that simulate cleanly at their position, so every generated
// sequence is valid end to end.
func randomSequence(base *signature.ProjectSignature, seed int64) []mutations.Mutation {
	rng := rand.New(rand.NewSource(seed))
	work := base
	var seq []mutations.Mutation
	serial := 0

	fresh := func(pool []string) string {
		serial++
		return fmt.Sprintf("%s_%d", pool[rng.Intn(len(pool))], serial)
	}

	steps := 1 + rng.Intn(11)
	for len(seq) < steps {
		app := work.App("shop")
		names := app.ModelNames()
		model := app.Model(names[rng.Intn(len(names))])

		var m mutations.Mutation
		switch rng.Intn(9) {
		case 0, 1: // adding fields dominates, as in real histories
			f := signature.FieldSignature{Name: fresh(propFieldPool), Type: types.FieldVarchar, MaxLength: 64}
			if rng.Intn(2) == 0 {
				f.Null = true
			} else {
				f.Default = signature.StringPtr("")
			}
			m = mutations.AddField{App: "shop", Model: model.Name, Field: f}
		case 2:
			name := deletableField(model)
			if name == "" {
				continue
			}
			m = mutations.DeleteField{App: "shop", Model: model.Name, Field: name}
		case 3:
			f := randomPlainField(rng, model)
			if f == nil {
				continue
			}
			attrs := mutations.FieldAttrs{}
			switch rng.Intn(3) {
			case 0:
				attrs.Null = signature.BoolPtr(true)
			case 1:
				attrs.Null = signature.BoolPtr(false)
				attrs.Default = signature.StringPtr("0")
			default:
				attrs.MaxLength = signature.IntPtr(32 + rng.Intn(200))
			}
			m = mutations.ChangeField{App: "shop", Model: model.Name, Field: f.Name, Attrs: attrs}
		case 4:
			f := randomPlainField(rng, model)
			if f == nil {
				continue
			}
			m = mutations.RenameField{App: "shop", Model: model.Name, Field: f.Name, NewName: fresh(propFieldPool)}
		case 5:
			f := randomPlainField(rng, model)
			if f == nil || model.FindIndex([]string{f.Name}, false) != nil {
				continue
			}
			m = mutations.AddIndex{App: "shop", Model: model.Name,
				Index: signature.IndexSignature{Fields: []string{f.Name}}}
		case 6:
			if len(model.Indexes) == 0 {
				continue
			}
			idx := model.Indexes[rng.Intn(len(model.Indexes))]
			del := mutations.DeleteIndex{App: "shop", Model: model.Name, Name: idx.Name}
			if idx.Name == "" {
				del.Fields = append([]string(nil), idx.Fields...)
				del.Unique = idx.Unique
			}
			m = del
		case 7:
			if rng.Intn(2) == 0 {
				name := fresh(propModelPool)
				m = mutations.AddModel{App: "shop", Model: signature.ModelSignature{
					Name:      name,
					TableName: "shop_" + name,
					Fields: []*signature.FieldSignature{
						{Name: "id", Type: types.FieldAuto, PrimaryKey: true},
						{Name: "code", Type: types.FieldVarchar, MaxLength: 40, Null: true},
					},
				}}
			} else if len(names) > 2 {
				m = mutations.DeleteModel{App: "shop", Model: names[rng.Intn(len(names))]}
			} else {
				continue
			}
		default:
			f := randomPlainField(rng, model)
			if f == nil {
				continue
			}
			meta := mutations.ChangeMeta{App: "shop", Model: model.Name}
			if rng.Intn(3) > 0 {
				meta.UniqueTogether = [][]string{{f.Name}}
			}
			m = meta
		}

		next, err := m.Simulate(work)
		if err != nil {
			continue
		}
		work = next
		seq = append(seq, m)
	}
	return seq
}

// deletableField picks a non-key field no index covers, so dropping it
// leaves the signature well formed.
func deletableField(model *signature.ModelSignature) string {
	for _, f := range model.Fields {
		if f.PrimaryKey {
			continue
		}
		covered := false
		for _, idx := range model.Indexes {
			for _, name := range idx.Fields {
				if name == f.Name {
					covered = true
				}
			}
		}
		if !covered {
			return f.Name
		}
	}
	return ""
}

func randomPlainField(rng *rand.Rand, model *signature.ModelSignature) *signature.FieldSignature {
	var plain []*signature.FieldSignature
	for _, f := range model.Fields {
		if !f.PrimaryKey {
			plain = append(plain, f)
		}
	}
	if len(plain) == 0 {
		return nil
	}
	return plain[rng.Intn(len(plain))]
}

func replaySeq(base *signature.ProjectSignature, seq []mutations.Mutation) (*signature.ProjectSignature, error) {
	current := base
	for _, m := range seq {
		next, err := m.Simulate(current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func TestProperty_OptimizePreservesNetEffect(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("optimized sequence reaches the same signature", prop.ForAll(
		func(seed int64) bool {
			base := propBaseProject()
			seq := randomSequence(base, seed)

			want, err := replaySeq(base, seq)
			if err != nil {
				return false
			}
			got, err := replaySeq(base, Optimize(seq))
			if err != nil {
				return false
			}
			return got.Equal(want)
		},
		gen.Int64Range(0, 1<<30),
	))

	properties.Property("optimizing never lengthens the sequence", prop.ForAll(
		func(seed int64) bool {
			seq := randomSequence(propBaseProject(), seed)
			return len(Optimize(seq)) <= len(seq)
		},
		gen.Int64Range(0, 1<<30),
	))

	properties.TestingRun(t)
}

func TestProperty_OptimizeIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("second pass is a fixed point", prop.ForAll(
		func(seed int64) bool {
			seq := randomSequence(propBaseProject(), seed)
			once := Optimize(seq)
			twice := Optimize(once)
			return reflect.DeepEqual(once, twice)
		},
		gen.Int64Range(0, 1<<30),
	))

	properties.TestingRun(t)
}

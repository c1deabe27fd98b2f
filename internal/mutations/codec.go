package mutations

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// batchDoc is the YAML shape of one evolution batch: an app label, the
// batch label, and the mutation list.
type batchDoc struct {
	App       string        `yaml:"app"`
	Label     string        `yaml:"label"`
	Mutations []mutationDoc `yaml:"mutations"`
}

// mutationDoc is the flattened YAML form of any mutation. Which members
// are meaningful depends on the op.
type mutationDoc struct {
	Op    string `yaml:"op"`
	Model string `yaml:"model,omitempty"`

	// Field-level ops.
	Field     *signature.FieldSignature `yaml:"field,omitempty"`
	Name      string                    `yaml:"name,omitempty"`
	NewName   string                    `yaml:"new_name,omitempty"`
	NewColumn *string                   `yaml:"new_column,omitempty"`
	Attrs     *FieldAttrs               `yaml:"attrs,omitempty"`
	Initial   *string                   `yaml:"initial,omitempty"`

	// Model-level ops.
	Table    string                      `yaml:"table,omitempty"`
	NewTable *string                     `yaml:"new_table,omitempty"`
	Fields   []*signature.FieldSignature `yaml:"fields,omitempty"`
	Indexes  []signature.IndexSignature  `yaml:"indexes,omitempty"`

	// Index ops.
	Index *signature.IndexSignature `yaml:"index,omitempty"`

	// Meta and raw SQL ops.
	UniqueTogether [][]string `yaml:"unique_together,omitempty"`
	Statements     []string   `yaml:"statements,omitempty"`
}

// MarshalBatch renders an evolution batch as YAML. Raw SQL operations
// lose their signature update function; only the statements survive.
func MarshalBatch(app, label string, muts []Mutation) ([]byte, error) {
	doc := batchDoc{App: app, Label: label}
	for _, m := range muts {
		md, err := encodeMutation(m)
		if err != nil {
			return nil, err
		}
		doc.Mutations = append(doc.Mutations, md)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("mutations: failed to marshal batch %s/%s: %w", app, label, err)
	}
	return data, nil
}

// UnmarshalBatch parses a YAML evolution batch back into mutations.
func UnmarshalBatch(data []byte) (app, label string, muts []Mutation, err error) {
	var doc batchDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", "", nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidMutation,
			"failed to parse evolution batch", err)
	}
	if doc.App == "" {
		return "", "", nil, errors.NewValidationError(errors.CodeInvalidMutation,
			"evolution batch is missing its app label")
	}
	for i, md := range doc.Mutations {
		m, err := decodeMutation(doc.App, md)
		if err != nil {
			return "", "", nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidMutation,
				fmt.Sprintf("evolution batch %s/%s: mutation %d", doc.App, doc.Label, i), err)
		}
		muts = append(muts, m)
	}
	return doc.App, doc.Label, muts, nil
}

func encodeMutation(m Mutation) (mutationDoc, error) {
	switch op := m.(type) {
	case AddField:
		f := op.Field
		return mutationDoc{
			Op:      string(op.Kind()),
			Model:   op.Model,
			Field:   &f,
			Initial: op.Initial,
		}, nil
	case DeleteField:
		return mutationDoc{Op: string(op.Kind()), Model: op.Model, Name: op.Field}, nil
	case ChangeField:
		attrs := op.Attrs
		return mutationDoc{
			Op:      string(op.Kind()),
			Model:   op.Model,
			Name:    op.Field,
			Attrs:   &attrs,
			Initial: op.Initial,
		}, nil
	case RenameField:
		return mutationDoc{
			Op:        string(op.Kind()),
			Model:     op.Model,
			Name:      op.Field,
			NewName:   op.NewName,
			NewColumn: op.NewColumn,
		}, nil
	case AddModel:
		return mutationDoc{
			Op:             string(op.Kind()),
			Model:          op.Model.Name,
			Table:          op.Model.TableName,
			Fields:         op.Model.Fields,
			Indexes:        op.Model.Indexes,
			UniqueTogether: op.Model.UniqueTogether,
		}, nil
	case DeleteModel:
		return mutationDoc{Op: string(op.Kind()), Model: op.Model}, nil
	case RenameModel:
		return mutationDoc{
			Op:       string(op.Kind()),
			Model:    op.Model,
			NewName:  op.NewName,
			NewTable: op.NewTable,
		}, nil
	case AddIndex:
		idx := op.Index
		return mutationDoc{Op: string(op.Kind()), Model: op.Model, Index: &idx}, nil
	case DeleteIndex:
		idx := signature.IndexSignature{Name: op.Name, Fields: op.Fields, Unique: op.Unique}
		return mutationDoc{Op: string(op.Kind()), Model: op.Model, Index: &idx}, nil
	case ChangeMeta:
		return mutationDoc{
			Op:             string(op.Kind()),
			Model:          op.Model,
			UniqueTogether: op.UniqueTogether,
		}, nil
	case RawSQL:
		return mutationDoc{Op: string(op.Kind()), Statements: op.SQL}, nil
	default:
		return mutationDoc{}, errors.NewValidationError(errors.CodeInvalidMutation,
			fmt.Sprintf("cannot encode mutation type %T", m))
	}
}

func decodeMutation(app string, md mutationDoc) (Mutation, error) {
	switch types.OpKind(md.Op) {
	case types.OpAddField:
		if md.Field == nil {
			return nil, fmt.Errorf("add_field requires a field definition")
		}
		return AddField{App: app, Model: md.Model, Field: *md.Field, Initial: md.Initial}, nil
	case types.OpDeleteField:
		return DeleteField{App: app, Model: md.Model, Field: md.Name}, nil
	case types.OpChangeField:
		var attrs FieldAttrs
		if md.Attrs != nil {
			attrs = *md.Attrs
		}
		return ChangeField{App: app, Model: md.Model, Field: md.Name, Attrs: attrs, Initial: md.Initial}, nil
	case types.OpRenameField:
		return RenameField{
			App: app, Model: md.Model, Field: md.Name,
			NewName: md.NewName, NewColumn: md.NewColumn,
		}, nil
	case types.OpAddModel:
		model := signature.ModelSignature{
			Name:           md.Model,
			TableName:      md.Table,
			Fields:         md.Fields,
			Indexes:        md.Indexes,
			UniqueTogether: md.UniqueTogether,
		}
		return AddModel{App: app, Model: model}, nil
	case types.OpDeleteModel:
		return DeleteModel{App: app, Model: md.Model}, nil
	case types.OpRenameModel:
		return RenameModel{App: app, Model: md.Model, NewName: md.NewName, NewTable: md.NewTable}, nil
	case types.OpAddIndex:
		if md.Index == nil {
			return nil, fmt.Errorf("add_index requires an index definition")
		}
		return AddIndex{App: app, Model: md.Model, Index: *md.Index}, nil
	case types.OpDeleteIndex:
		if md.Index == nil {
			return nil, fmt.Errorf("delete_index requires an index definition")
		}
		return DeleteIndex{
			App: app, Model: md.Model,
			Name: md.Index.Name, Fields: md.Index.Fields, Unique: md.Index.Unique,
		}, nil
	case types.OpChangeMeta:
		return ChangeMeta{App: app, Model: md.Model, UniqueTogether: md.UniqueTogether}, nil
	case types.OpRawSQL:
		return RawSQL{App: app, SQL: md.Statements}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", md.Op)
	}
}

package mutations

import (
	"strings"
	"testing"

	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

func TestBatchRoundTrip(t *testing.T) {
	muts := []Mutation{
		AddField{
			App: "books", Model: "Author",
			Field:   signature.FieldSignature{Name: "rating", Type: types.FieldInteger},
			Initial: signature.StringPtr("0"),
		},
		DeleteField{App: "books", Model: "Book", Field: "pages"},
		ChangeField{
			App: "books", Model: "Book", Field: "title",
			Attrs: FieldAttrs{MaxLength: signature.IntPtr(300), Null: signature.BoolPtr(true)},
		},
		RenameField{App: "books", Model: "Author", Field: "name", NewName: "full_name"},
		AddModel{App: "books", Model: signature.ModelSignature{
			Name:      "Publisher",
			TableName: "books_publisher",
			Fields: []*signature.FieldSignature{
				{Name: "id", Type: types.FieldAuto, PrimaryKey: true},
				{Name: "name", Type: types.FieldVarchar, MaxLength: 100},
			},
			UniqueTogether: [][]string{{"name"}},
		}},
		DeleteModel{App: "books", Model: "Draft"},
		RenameModel{App: "books", Model: "Author", NewName: "Writer", NewTable: signature.StringPtr("books_writer")},
		AddIndex{App: "books", Model: "Book", Index: signature.IndexSignature{Name: "by_title", Fields: []string{"title"}}},
		DeleteIndex{App: "books", Model: "Book", Fields: []string{"pages"}, Unique: true},
		ChangeMeta{App: "books", Model: "Book", UniqueTogether: [][]string{{"title", "author"}}},
		RawSQL{App: "books", SQL: []string{"UPDATE books_book SET pages = 0", "VACUUM"}},
	}

	data, err := MarshalBatch("books", "0002_reshape", muts)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	app, label, decoded, err := UnmarshalBatch(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if app != "books" || label != "0002_reshape" {
		t.Errorf("batch header = %s/%s", app, label)
	}
	if len(decoded) != len(muts) {
		t.Fatalf("got %d mutations, want %d", len(decoded), len(muts))
	}
	for i, m := range decoded {
		if m.Kind() != muts[i].Kind() {
			t.Errorf("mutation %d kind = %s, want %s", i, m.Kind(), muts[i].Kind())
		}
		if m.String() != muts[i].String() {
			t.Errorf("mutation %d = %s, want %s", i, m, muts[i])
		}
	}

	// Spot-check the attribute-bearing ops in detail.
	cf := decoded[2].(ChangeField)
	if cf.Attrs.MaxLength == nil || *cf.Attrs.MaxLength != 300 {
		t.Errorf("change_field max_length = %v", cf.Attrs.MaxLength)
	}
	am := decoded[4].(AddModel)
	if am.Model.TableName != "books_publisher" || len(am.Model.Fields) != 2 {
		t.Errorf("add_model = %+v", am.Model)
	}
	if len(am.Model.UniqueTogether) != 1 {
		t.Errorf("add_model unique_together = %v", am.Model.UniqueTogether)
	}
	di := decoded[8].(DeleteIndex)
	if !di.Unique || di.Fields[0] != "pages" {
		t.Errorf("delete_index = %+v", di)
	}
	sql := decoded[10].(RawSQL)
	if len(sql.SQL) != 2 || sql.Update != nil {
		t.Errorf("raw sql = %+v", sql)
	}
}

func TestMarshalBatchRendersPlaceholder(t *testing.T) {
	data, err := MarshalBatch("books", "0003_add_rating", []Mutation{
		AddField{
			App: "books", Model: "Author",
			Field:   signature.FieldSignature{Name: "rating", Type: types.FieldInteger},
			Initial: signature.StringPtr(UserValueRequired),
		},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), UserValueRequired) {
		t.Errorf("placeholder missing from rendered batch:\n%s", data)
	}
}

func TestUnmarshalBatchErrors(t *testing.T) {
	t.Run("missing app", func(t *testing.T) {
		if _, _, _, err := UnmarshalBatch([]byte("label: x\nmutations: []\n")); err == nil {
			t.Errorf("expected error for missing app")
		}
	})

	t.Run("unknown op", func(t *testing.T) {
		doc := "app: books\nlabel: x\nmutations:\n  - op: explode\n"
		if _, _, _, err := UnmarshalBatch([]byte(doc)); err == nil {
			t.Errorf("expected error for unknown op")
		}
	})

	t.Run("add_field without definition", func(t *testing.T) {
		doc := "app: books\nlabel: x\nmutations:\n  - op: add_field\n    model: Author\n"
		if _, _, _, err := UnmarshalBatch([]byte(doc)); err == nil {
			t.Errorf("expected error for missing field definition")
		}
	})

	t.Run("not yaml", func(t *testing.T) {
		if _, _, _, err := UnmarshalBatch([]byte("{")); err == nil {
			t.Errorf("expected parse error")
		}
	})
}

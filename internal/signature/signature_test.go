package signature

import (
	"bytes"
	"testing"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/pkg/types"
)

// sampleProject builds a small two-model project used across the package
// tests: an Author with an optional bio, and a Book pointing back at it.
func sampleProject() *ProjectSignature {
	p := NewProjectSignature()
	app := p.AddApp("books")

	author := NewModelSignature("Author", "books_author")
	author.AddField(&FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	author.AddField(&FieldSignature{Name: "name", Type: types.FieldVarchar, MaxLength: 100})
	author.AddField(&FieldSignature{Name: "bio", Type: types.FieldText, Null: true})
	app.SetModel(author)

	book := NewModelSignature("Book", "books_book")
	book.AddField(&FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	book.AddField(&FieldSignature{Name: "title", Type: types.FieldVarchar, MaxLength: 200})
	book.AddField(&FieldSignature{Name: "author", Type: types.FieldForeignKey, RelatedModel: "books.Author"})
	book.AddField(&FieldSignature{Name: "pages", Type: types.FieldInteger, Null: true})
	book.Indexes = []IndexSignature{{Name: "books_book_title", Fields: []string{"title"}}}
	app.SetModel(book)

	return p
}

func TestCloneIndependence(t *testing.T) {
	orig := sampleProject()
	cp := orig.Clone()

	if !orig.Equal(cp) {
		t.Fatalf("clone should equal the original")
	}

	// Mutating the clone must not leak into the original.
	book, _ := cp.Model("books", "Book")
	book.RemoveField("pages")
	book.TableName = "books_book_v2"
	cp.Apps["books"].Models["Author"].Fields[1].MaxLength = 500
	cp.AddApp("reviews")

	if _, ok := orig.Model("books", "Book"); !ok {
		t.Fatalf("original lost model Book")
	}
	origBook, _ := orig.Model("books", "Book")
	if !origBook.HasField("pages") {
		t.Errorf("original Book lost field pages after clone mutation")
	}
	if origBook.TableName != "books_book" {
		t.Errorf("original table name changed to %q", origBook.TableName)
	}
	origAuthor, _ := orig.Model("books", "Author")
	if f, _ := origAuthor.Field("name"); f.MaxLength != 100 {
		t.Errorf("original max_length changed to %d", f.MaxLength)
	}
	if _, ok := orig.App("reviews"); ok {
		t.Errorf("original gained app added to the clone")
	}
}

func TestEqualIgnoresFieldOrder(t *testing.T) {
	a := sampleProject()
	b := sampleProject()

	book, _ := b.Model("books", "Book")
	book.Fields[1], book.Fields[3] = book.Fields[3], book.Fields[1]

	if !a.Equal(b) {
		t.Errorf("field declaration order should not affect equality")
	}
}

func TestEqualEffectiveColumn(t *testing.T) {
	a := sampleProject()
	b := sampleProject()

	// An explicit column name spelling out the field name is the same as
	// leaving it implicit.
	f, _ := b.Apps["books"].Models["Author"].Field("bio")
	f.ColumnName = "bio"
	if !a.Equal(b) {
		t.Errorf("implicit and explicit column names should compare equal")
	}

	f.ColumnName = "biography"
	if a.Equal(b) {
		t.Errorf("different effective columns should not compare equal")
	}
}

func TestEqualIndexAndConstraintSets(t *testing.T) {
	a := sampleProject()
	b := sampleProject()

	book, _ := b.Model("books", "Book")
	book.Indexes = append(book.Indexes, IndexSignature{Fields: []string{"author"}})
	if a.Equal(b) {
		t.Fatalf("extra index should break equality")
	}

	ab, _ := a.Model("books", "Book")
	ab.Indexes = append([]IndexSignature{{Fields: []string{"author"}}}, ab.Indexes...)
	if !a.Equal(b) {
		t.Errorf("index declaration order should not affect equality")
	}

	ab.UniqueTogether = [][]string{{"title", "author"}}
	book.UniqueTogether = [][]string{{"author", "title"}}
	if a.Equal(b) {
		t.Errorf("unique_together tuples are ordered and should not match reversed")
	}
}

func TestFirstDifference(t *testing.T) {
	base := sampleProject()

	tests := []struct {
		name    string
		mutate  func(p *ProjectSignature)
		wantApp string
		wantMdl string
		wantFld string
		attr    string
	}{
		{
			name:    "missing model",
			mutate:  func(p *ProjectSignature) { p.Apps["books"].RemoveModel("Book") },
			wantApp: "books", wantMdl: "Book", attr: "model",
		},
		{
			name: "table renamed",
			mutate: func(p *ProjectSignature) {
				p.Apps["books"].Models["Author"].TableName = "authors"
			},
			wantApp: "books", wantMdl: "Author", attr: "table",
		},
		{
			name: "field nullability",
			mutate: func(p *ProjectSignature) {
				f, _ := p.Apps["books"].Models["Book"].Field("pages")
				f.Null = false
			},
			wantApp: "books", wantMdl: "Book", wantFld: "pages", attr: "null",
		},
		{
			name: "missing app",
			mutate: func(p *ProjectSignature) {
				delete(p.Apps, "books")
			},
			wantApp: "books", attr: "app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(other)

			d := base.FirstDifference(other)
			if d == nil {
				t.Fatalf("expected a difference, got none")
			}
			if d.App != tt.wantApp || d.Model != tt.wantMdl || d.Field != tt.wantFld {
				t.Errorf("difference at %s.%s.%s, want %s.%s.%s",
					d.App, d.Model, d.Field, tt.wantApp, tt.wantMdl, tt.wantFld)
			}
			if d.Attribute != tt.attr {
				t.Errorf("difference attribute = %q, want %q", d.Attribute, tt.attr)
			}
		})
	}

	if d := base.FirstDifference(base.Clone()); d != nil {
		t.Errorf("equal signatures reported difference: %v", d)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	orig := sampleProject()
	book, _ := orig.Model("books", "Book")
	book.UniqueTogether = [][]string{{"title", "author"}}

	data, err := orig.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	restored, err := Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if !orig.Equal(restored) {
		t.Fatalf("round trip changed the signature: %v", orig.FirstDifference(restored))
	}

	// Names restored from map keys must be populated.
	app, ok := restored.App("books")
	if !ok || app.Label != "books" {
		t.Errorf("app label not restored, got %q", app.Label)
	}
	model, _ := restored.Model("books", "Author")
	if model.Name != "Author" {
		t.Errorf("model name not restored, got %q", model.Name)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	p := sampleProject()

	first, err := p.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	second, err := p.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("repeated serialization produced different bytes")
	}

	fp1, err := p.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	fp2, _ := p.Clone().Fingerprint()
	if fp1 != fp2 {
		t.Errorf("clone fingerprint %s differs from original %s", fp2, fp1)
	}
	if len(fp1) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(fp1))
	}

	changed := p.Clone()
	f, _ := changed.Apps["books"].Models["Author"].Field("bio")
	f.Null = false
	fpChanged, _ := changed.Fingerprint()
	if fpChanged == fp1 {
		t.Errorf("structural change did not change the fingerprint")
	}
}

func TestDeserializeRejectsUnknownVersion(t *testing.T) {
	_, err := Deserialize([]byte(`{"__version__": 7, "apps": {}}`))
	if err == nil {
		t.Fatalf("expected error for unknown format version")
	}
	if errors.GetCode(err) != errors.CodeInvalidSignature {
		t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.CodeInvalidSignature)
	}

	if _, err := Deserialize([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed document")
	}
}

func TestValidate(t *testing.T) {
	if err := sampleProject().Validate(); err != nil {
		t.Fatalf("valid project reported error: %v", err)
	}

	t.Run("unknown relation", func(t *testing.T) {
		p := sampleProject()
		f, _ := p.Apps["books"].Models["Book"].Field("author")
		f.RelatedModel = "books.Publisher"

		err := p.Validate()
		if err == nil {
			t.Fatalf("expected unresolved reference error")
		}
		if errors.GetCategory(err) != errors.ErrCategoryUnresolved {
			t.Errorf("category = %q, want %q", errors.GetCategory(err), errors.ErrCategoryUnresolved)
		}
		if got := errors.GetDetail(err, "related_model"); got != "books.Publisher" {
			t.Errorf("related_model detail = %v", got)
		}
	})

	t.Run("duplicate field", func(t *testing.T) {
		p := sampleProject()
		author, _ := p.Model("books", "Author")
		author.AddField(&FieldSignature{Name: "bio", Type: types.FieldText})

		err := p.Validate()
		if err == nil {
			t.Fatalf("expected validation error")
		}
		if errors.GetCode(err) != errors.CodeInvalidSignature {
			t.Errorf("code = %q, want %q", errors.GetCode(err), errors.CodeInvalidSignature)
		}
	})

	t.Run("duplicate table", func(t *testing.T) {
		p := sampleProject()
		dup := NewModelSignature("Novel", "books_book")
		dup.AddField(&FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
		p.Apps["books"].SetModel(dup)

		if err := p.Validate(); err == nil {
			t.Fatalf("expected validation error for duplicate table")
		}
	})
}

func TestSplitRelation(t *testing.T) {
	tests := []struct {
		ref   string
		app   string
		model string
		ok    bool
	}{
		{"books.Author", "books", "Author", true},
		{"a.B", "a", "B", true},
		{"noapp", "", "", false},
		{".Model", "", "", false},
		{"app.", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		app, model, ok := SplitRelation(tt.ref)
		if app != tt.app || model != tt.model || ok != tt.ok {
			t.Errorf("SplitRelation(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.ref, app, model, ok, tt.app, tt.model, tt.ok)
		}
	}
}

func TestModelFieldHelpers(t *testing.T) {
	p := sampleProject()
	book, _ := p.Model("books", "Book")

	if !book.RemoveField("pages") {
		t.Fatalf("RemoveField(pages) = false")
	}
	if book.HasField("pages") {
		t.Errorf("pages still present after removal")
	}
	if book.RemoveField("pages") {
		t.Errorf("second RemoveField(pages) = true")
	}

	pk, ok := book.PrimaryKeyField()
	if !ok || pk.Name != "id" {
		t.Errorf("primary key field = %v, want id", pk)
	}
}

func TestIndexHelpers(t *testing.T) {
	m := NewModelSignature("Book", "books_book")
	m.Indexes = []IndexSignature{
		{Name: "books_book_title", Fields: []string{"title"}},
		{Fields: []string{"author", "title"}, Unique: true},
	}

	if _, ok := m.Index("books_book_title"); !ok {
		t.Errorf("named index not found")
	}
	if _, ok := m.Index(""); ok {
		t.Errorf("empty name should never match")
	}
	if _, ok := m.FindIndex([]string{"author", "title"}, true); !ok {
		t.Errorf("index not found by field tuple")
	}
	if _, ok := m.FindIndex([]string{"title", "author"}, true); ok {
		t.Errorf("field order should be significant in index lookup")
	}

	if !m.RemoveIndex("", []string{"author", "title"}, true) {
		t.Fatalf("RemoveIndex by fields failed")
	}
	if !m.RemoveIndex("books_book_title", nil, false) {
		t.Fatalf("RemoveIndex by name failed")
	}
	if len(m.Indexes) != 0 {
		t.Errorf("indexes remain after removal: %v", m.Indexes)
	}
}

func TestColumnDefResolvesRelation(t *testing.T) {
	p := sampleProject()
	book, _ := p.Model("books", "Book")
	author, _ := book.Field("author")

	def := author.ColumnDef(p)
	if def.References == nil {
		t.Fatalf("expected resolved reference for relational field")
	}
	if def.References.Table != "books_author" || def.References.Column != "id" {
		t.Errorf("reference = %+v, want books_author.id", def.References)
	}

	bio := &FieldSignature{Name: "bio", ColumnName: "biography", Type: types.FieldText, Null: true}
	def = bio.ColumnDef(p)
	if def.Name != "biography" || !def.Nullable || def.References != nil {
		t.Errorf("unexpected column def: %+v", def)
	}
}

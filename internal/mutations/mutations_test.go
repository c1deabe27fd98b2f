package mutations

import (
	"testing"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/pkg/types"
)

// bookProject builds the project used across the mutation tests: an Author
// with an optional bio and a Book referencing it.
func bookProject() *signature.ProjectSignature {
	p := signature.NewProjectSignature()
	app := p.AddApp("books")

	author := signature.NewModelSignature("Author", "books_author")
	author.AddField(&signature.FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	author.AddField(&signature.FieldSignature{Name: "name", Type: types.FieldVarchar, MaxLength: 100})
	app.SetModel(author)

	book := signature.NewModelSignature("Book", "books_book")
	book.AddField(&signature.FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
	book.AddField(&signature.FieldSignature{Name: "title", Type: types.FieldVarchar, MaxLength: 200})
	book.AddField(&signature.FieldSignature{Name: "author", Type: types.FieldForeignKey, RelatedModel: "books.Author"})
	book.AddField(&signature.FieldSignature{Name: "pages", Type: types.FieldInteger})
	book.UniqueTogether = [][]string{{"title", "author"}}
	app.SetModel(book)

	return p
}

// simulate runs a mutation and fails the test on error.
func simulate(t *testing.T, p *signature.ProjectSignature, m Mutation) *signature.ProjectSignature {
	t.Helper()
	next, err := m.Simulate(p)
	if err != nil {
		t.Fatalf("%s failed: %v", m, err)
	}
	return next
}

// wantConflict asserts that a mutation fails simulation with the given
// conflict code.
func wantConflict(t *testing.T, p *signature.ProjectSignature, m Mutation, code string) error {
	t.Helper()
	_, err := m.Simulate(p)
	if err == nil {
		t.Fatalf("%s should have failed", m)
	}
	if errors.GetCategory(err) != errors.ErrCategoryConflict {
		t.Fatalf("%s: category = %q, want %q (err: %v)",
			m, errors.GetCategory(err), errors.ErrCategoryConflict, err)
	}
	if errors.GetCode(err) != code {
		t.Errorf("%s: code = %q, want %q", m, errors.GetCode(err), code)
	}
	return err
}

func TestSimulateLeavesInputUntouched(t *testing.T) {
	p := bookProject()
	before, _ := p.Fingerprint()

	muts := []Mutation{
		AddField{App: "books", Model: "Author", Field: signature.FieldSignature{Name: "bio", Type: types.FieldText, Null: true}},
		DeleteField{App: "books", Model: "Book", Field: "pages"},
		RenameField{App: "books", Model: "Book", Field: "title", NewName: "name"},
		DeleteModel{App: "books", Model: "Book"},
		RenameModel{App: "books", Model: "Author", NewName: "Writer"},
		ChangeMeta{App: "books", Model: "Book", UniqueTogether: nil},
	}
	for _, m := range muts {
		if _, err := m.Simulate(p); err != nil {
			t.Fatalf("%s failed: %v", m, err)
		}
		after, _ := p.Fingerprint()
		if after != before {
			t.Fatalf("%s modified its input snapshot", m)
		}
	}
}

func TestAddField(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, AddField{
		App: "books", Model: "Author",
		Field: signature.FieldSignature{Name: "bio", Type: types.FieldText, Null: true},
	})
	author, _ := next.Model("books", "Author")
	if !author.HasField("bio") {
		t.Fatalf("bio not added")
	}

	t.Run("duplicate", func(t *testing.T) {
		err := wantConflict(t, next, AddField{
			App: "books", Model: "Author",
			Field: signature.FieldSignature{Name: "bio", Type: types.FieldText, Null: true},
		}, errors.CodeDuplicateEntity)
		if errors.GetDetail(err, "field") != "bio" {
			t.Errorf("field detail = %v, want bio", errors.GetDetail(err, "field"))
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		wantConflict(t, p, AddField{
			App: "books", Model: "Publisher",
			Field: signature.FieldSignature{Name: "x", Type: types.FieldText, Null: true},
		}, errors.CodeUnknownEntity)
	})

	t.Run("non-null without initial", func(t *testing.T) {
		wantConflict(t, p, AddField{
			App: "books", Model: "Author",
			Field: signature.FieldSignature{Name: "rating", Type: types.FieldInteger},
		}, errors.CodeMissingInitial)
	})

	t.Run("placeholder initial does not count", func(t *testing.T) {
		wantConflict(t, p, AddField{
			App: "books", Model: "Author",
			Field:   signature.FieldSignature{Name: "rating", Type: types.FieldInteger},
			Initial: signature.StringPtr(UserValueRequired),
		}, errors.CodeMissingInitial)
	})

	t.Run("non-null with initial", func(t *testing.T) {
		simulate(t, p, AddField{
			App: "books", Model: "Author",
			Field:   signature.FieldSignature{Name: "rating", Type: types.FieldInteger},
			Initial: signature.StringPtr("0"),
		})
	})

	t.Run("non-null with default", func(t *testing.T) {
		simulate(t, p, AddField{
			App: "books", Model: "Author",
			Field: signature.FieldSignature{Name: "rating", Type: types.FieldInteger, Default: signature.StringPtr("0")},
		})
	})

	t.Run("unknown relation", func(t *testing.T) {
		_, err := AddField{
			App: "books", Model: "Book",
			Field: signature.FieldSignature{Name: "publisher", Type: types.FieldForeignKey, Null: true, RelatedModel: "books.Publisher"},
		}.Simulate(p)
		if errors.GetCategory(err) != errors.ErrCategoryUnresolved {
			t.Fatalf("category = %q, want %q", errors.GetCategory(err), errors.ErrCategoryUnresolved)
		}
	})

	t.Run("deferred relation", func(t *testing.T) {
		simulate(t, p, AddField{
			App: "books", Model: "Book",
			Field: signature.FieldSignature{
				Name: "publisher", Type: types.FieldForeignKey, Null: true,
				RelatedModel: "books.Publisher", RelatedDeferred: true,
			},
		})
	})
}

func TestAddFieldInstructions(t *testing.T) {
	p := bookProject()
	m := AddField{
		App: "books", Model: "Book",
		Field: signature.FieldSignature{Name: "editor", Type: types.FieldForeignKey, Null: true, RelatedModel: "books.Author"},
	}

	insts, err := m.Instructions(p)
	if err != nil {
		t.Fatalf("instructions failed: %v", err)
	}
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
	inst := insts[0]
	if inst.Kind != types.OpAddField || inst.Table != "books_book" {
		t.Errorf("unexpected instruction: %+v", inst)
	}
	if len(inst.Columns) != 1 || inst.Columns[0].References == nil {
		t.Fatalf("expected one column with a resolved reference: %+v", inst.Columns)
	}
	if inst.Columns[0].References.Table != "books_author" {
		t.Errorf("reference table = %q, want books_author", inst.Columns[0].References.Table)
	}
}

func TestDeleteField(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, DeleteField{App: "books", Model: "Book", Field: "title"})
	book, _ := next.Model("books", "Book")
	if book.HasField("title") {
		t.Fatalf("title still present")
	}
	if len(book.UniqueTogether) != 0 {
		t.Errorf("unique_together tuple naming the field survived: %v", book.UniqueTogether)
	}

	t.Run("missing field", func(t *testing.T) {
		wantConflict(t, p, DeleteField{App: "books", Model: "Book", Field: "isbn"},
			errors.CodeUnknownEntity)
	})

	t.Run("missing twice in a row", func(t *testing.T) {
		// Deleting an already-deleted field is the same conflict again,
		// no matter how often it is attempted.
		for i := 0; i < 3; i++ {
			wantConflict(t, next, DeleteField{App: "books", Model: "Book", Field: "title"},
				errors.CodeUnknownEntity)
		}
	})

	t.Run("primary key", func(t *testing.T) {
		wantConflict(t, p, DeleteField{App: "books", Model: "Book", Field: "id"},
			errors.CodeProtectedEntity)
	})
}

func TestChangeField(t *testing.T) {
	p := bookProject()

	t.Run("loosen to nullable", func(t *testing.T) {
		next := simulate(t, p, ChangeField{
			App: "books", Model: "Book", Field: "pages",
			Attrs: FieldAttrs{Null: signature.BoolPtr(true)},
		})
		f, _ := next.Apps["books"].Models["Book"].Field("pages")
		if !f.Null {
			t.Errorf("pages still non-null")
		}
	})

	t.Run("no-op change is legal", func(t *testing.T) {
		m := ChangeField{
			App: "books", Model: "Book", Field: "title",
			Attrs: FieldAttrs{MaxLength: signature.IntPtr(200)},
		}
		next := simulate(t, p, m)
		if !p.Equal(next) {
			t.Errorf("no-op change altered the signature")
		}
		insts, err := m.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 0 {
			t.Errorf("no-op change produced instructions: %v", insts)
		}
	})

	t.Run("tighten without initial", func(t *testing.T) {
		loose := simulate(t, p, ChangeField{
			App: "books", Model: "Book", Field: "pages",
			Attrs: FieldAttrs{Null: signature.BoolPtr(true)},
		})
		wantConflict(t, loose, ChangeField{
			App: "books", Model: "Book", Field: "pages",
			Attrs: FieldAttrs{Null: signature.BoolPtr(false)},
		}, errors.CodeMissingInitial)

		simulate(t, loose, ChangeField{
			App: "books", Model: "Book", Field: "pages",
			Attrs:   FieldAttrs{Null: signature.BoolPtr(false)},
			Initial: signature.StringPtr("0"),
		})
	})

	t.Run("unknown field", func(t *testing.T) {
		wantConflict(t, p, ChangeField{
			App: "books", Model: "Book", Field: "isbn",
			Attrs: FieldAttrs{Null: signature.BoolPtr(true)},
		}, errors.CodeUnknownEntity)
	})
}

func TestChangeFieldInstructions(t *testing.T) {
	p := bookProject()
	m := ChangeField{
		App: "books", Model: "Book", Field: "pages",
		Attrs: FieldAttrs{
			Null:   signature.BoolPtr(true),
			Column: signature.StringPtr("page_count"),
		},
	}

	insts, err := m.Instructions(p)
	if err != nil {
		t.Fatalf("instructions failed: %v", err)
	}
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
	inst := insts[0]
	if inst.OldName != "pages" {
		t.Errorf("old column = %q, want pages", inst.OldName)
	}
	if inst.Columns[0].Name != "page_count" {
		t.Errorf("new column = %q, want page_count", inst.Columns[0].Name)
	}
	if len(inst.Changed) != 2 {
		t.Errorf("changed attrs = %v, want [null column]", inst.Changed)
	}
}

func TestRenameField(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, RenameField{
		App: "books", Model: "Book", Field: "title", NewName: "name",
	})
	book, _ := next.Model("books", "Book")
	if book.HasField("title") || !book.HasField("name") {
		t.Fatalf("rename did not take: %v", book.Fields)
	}
	if book.UniqueTogether[0][0] != "name" {
		t.Errorf("unique_together not updated: %v", book.UniqueTogether)
	}

	t.Run("target exists", func(t *testing.T) {
		wantConflict(t, p, RenameField{
			App: "books", Model: "Book", Field: "title", NewName: "pages",
		}, errors.CodeDuplicateEntity)
	})

	t.Run("missing source", func(t *testing.T) {
		wantConflict(t, p, RenameField{
			App: "books", Model: "Book", Field: "subtitle", NewName: "x",
		}, errors.CodeUnknownEntity)
	})

	t.Run("physical rename instruction", func(t *testing.T) {
		insts, err := RenameField{
			App: "books", Model: "Book", Field: "title", NewName: "name",
		}.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 1 || insts[0].OldName != "title" || insts[0].Columns[0].Name != "name" {
			t.Errorf("unexpected instructions: %+v", insts)
		}
	})

	t.Run("signature-only when column pinned", func(t *testing.T) {
		pinned := p.Clone()
		f, _ := pinned.Apps["books"].Models["Book"].Field("title")
		f.ColumnName = "title_col"

		insts, err := RenameField{
			App: "books", Model: "Book", Field: "title", NewName: "name",
		}.Instructions(pinned)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 0 {
			t.Errorf("pinned column should not produce a rename: %+v", insts)
		}
	})
}

func TestAddModel(t *testing.T) {
	p := bookProject()

	publisher := signature.ModelSignature{
		Name:      "Publisher",
		TableName: "books_publisher",
		Fields: []*signature.FieldSignature{
			{Name: "id", Type: types.FieldAuto, PrimaryKey: true},
			{Name: "name", Type: types.FieldVarchar, MaxLength: 100},
		},
	}
	next := simulate(t, p, AddModel{App: "books", Model: publisher})
	if _, ok := next.Model("books", "Publisher"); !ok {
		t.Fatalf("Publisher not added")
	}

	t.Run("duplicate", func(t *testing.T) {
		wantConflict(t, next, AddModel{App: "books", Model: publisher},
			errors.CodeDuplicateEntity)
	})

	t.Run("implicit app creation", func(t *testing.T) {
		review := signature.ModelSignature{
			Name:      "Review",
			TableName: "reviews_review",
			Fields: []*signature.FieldSignature{
				{Name: "id", Type: types.FieldAuto, PrimaryKey: true},
				{Name: "book", Type: types.FieldForeignKey, RelatedModel: "books.Book"},
			},
		}
		got := simulate(t, p, AddModel{App: "reviews", Model: review})
		if _, ok := got.Model("reviews", "Review"); !ok {
			t.Errorf("model not reachable under new app")
		}
	})

	t.Run("self reference", func(t *testing.T) {
		node := signature.ModelSignature{
			Name:      "Category",
			TableName: "books_category",
			Fields: []*signature.FieldSignature{
				{Name: "id", Type: types.FieldAuto, PrimaryKey: true},
				{Name: "parent", Type: types.FieldForeignKey, Null: true, RelatedModel: "books.Category"},
			},
		}
		simulate(t, p, AddModel{App: "books", Model: node})
	})

	t.Run("two primary keys", func(t *testing.T) {
		bad := signature.ModelSignature{
			Name:      "Broken",
			TableName: "books_broken",
			Fields: []*signature.FieldSignature{
				{Name: "a", Type: types.FieldAuto, PrimaryKey: true},
				{Name: "b", Type: types.FieldAuto, PrimaryKey: true},
			},
		}
		_, err := AddModel{App: "books", Model: bad}.Simulate(p)
		if errors.GetCode(err) != errors.CodeInvalidMutation {
			t.Errorf("code = %q, want %q", errors.GetCode(err), errors.CodeInvalidMutation)
		}
	})
}

func TestDeleteModel(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, DeleteModel{App: "books", Model: "Book"})
	if _, ok := next.Model("books", "Book"); ok {
		t.Fatalf("Book still present")
	}

	wantConflict(t, next, DeleteModel{App: "books", Model: "Book"}, errors.CodeUnknownEntity)
}

func TestRenameModel(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, RenameModel{App: "books", Model: "Author", NewName: "Writer"})
	if _, ok := next.Model("books", "Author"); ok {
		t.Fatalf("Author still present")
	}
	writer, ok := next.Model("books", "Writer")
	if !ok {
		t.Fatalf("Writer missing")
	}
	if writer.TableName != "books_author" {
		t.Errorf("table moved without NewTable: %q", writer.TableName)
	}

	// The relation from Book must follow the rename.
	f, _ := next.Apps["books"].Models["Book"].Field("author")
	if f.RelatedModel != "books.Writer" {
		t.Errorf("relation not rewritten: %q", f.RelatedModel)
	}

	t.Run("cross-app references", func(t *testing.T) {
		wide := p.Clone()
		review := signature.NewModelSignature("Review", "reviews_review")
		review.AddField(&signature.FieldSignature{Name: "id", Type: types.FieldAuto, PrimaryKey: true})
		review.AddField(&signature.FieldSignature{Name: "author", Type: types.FieldForeignKey, RelatedModel: "books.Author"})
		wide.AddApp("reviews").SetModel(review)

		got := simulate(t, wide, RenameModel{App: "books", Model: "Author", NewName: "Writer"})
		rf, _ := got.Apps["reviews"].Models["Review"].Field("author")
		if rf.RelatedModel != "books.Writer" {
			t.Errorf("cross-app relation not rewritten: %q", rf.RelatedModel)
		}
	})

	t.Run("instructions only when table moves", func(t *testing.T) {
		m := RenameModel{App: "books", Model: "Author", NewName: "Writer"}
		insts, err := m.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 0 {
			t.Errorf("signature-only rename produced instructions: %v", insts)
		}

		m.NewTable = signature.StringPtr("books_writer")
		insts, err = m.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 1 || insts[0].Table != "books_author" || insts[0].NewTable != "books_writer" {
			t.Errorf("unexpected instructions: %+v", insts)
		}
	})

	t.Run("target exists", func(t *testing.T) {
		wantConflict(t, p, RenameModel{App: "books", Model: "Author", NewName: "Book"},
			errors.CodeDuplicateEntity)
	})
}

func TestAddIndex(t *testing.T) {
	p := bookProject()
	idx := signature.IndexSignature{Fields: []string{"title"}}

	next := simulate(t, p, AddIndex{App: "books", Model: "Book", Index: idx})
	book, _ := next.Model("books", "Book")
	if len(book.Indexes) != 1 {
		t.Fatalf("index not added")
	}

	t.Run("identical index conflicts", func(t *testing.T) {
		wantConflict(t, next, AddIndex{App: "books", Model: "Book", Index: idx},
			errors.CodeDuplicateEntity)
	})

	t.Run("same name conflicts", func(t *testing.T) {
		named := simulate(t, p, AddIndex{App: "books", Model: "Book",
			Index: signature.IndexSignature{Name: "by_title", Fields: []string{"title"}}})
		wantConflict(t, named, AddIndex{App: "books", Model: "Book",
			Index: signature.IndexSignature{Name: "by_title", Fields: []string{"pages"}}},
			errors.CodeDuplicateEntity)
	})

	t.Run("unknown field", func(t *testing.T) {
		wantConflict(t, p, AddIndex{App: "books", Model: "Book",
			Index: signature.IndexSignature{Fields: []string{"isbn"}}},
			errors.CodeUnknownEntity)
	})
}

func TestDeleteIndex(t *testing.T) {
	p := bookProject()
	book, _ := p.Model("books", "Book")
	book.Indexes = []signature.IndexSignature{
		{Name: "by_title", Fields: []string{"title"}},
		{Fields: []string{"pages"}, Unique: false},
	}

	t.Run("by name", func(t *testing.T) {
		next := simulate(t, p, DeleteIndex{App: "books", Model: "Book", Name: "by_title"})
		m, _ := next.Model("books", "Book")
		if len(m.Indexes) != 1 {
			t.Errorf("indexes = %v", m.Indexes)
		}
	})

	t.Run("by fields", func(t *testing.T) {
		next := simulate(t, p, DeleteIndex{App: "books", Model: "Book", Fields: []string{"pages"}})
		m, _ := next.Model("books", "Book")
		if len(m.Indexes) != 1 || m.Indexes[0].Name != "by_title" {
			t.Errorf("indexes = %v", m.Indexes)
		}
	})

	t.Run("missing", func(t *testing.T) {
		wantConflict(t, p, DeleteIndex{App: "books", Model: "Book", Name: "nope"},
			errors.CodeUnknownEntity)
	})

	t.Run("synthesized name in instructions", func(t *testing.T) {
		insts, err := DeleteIndex{App: "books", Model: "Book", Fields: []string{"pages"}}.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if insts[0].Indexes[0].Name != "idx_books_book_pages" {
			t.Errorf("index name = %q", insts[0].Indexes[0].Name)
		}
	})
}

func TestChangeMeta(t *testing.T) {
	p := bookProject()

	next := simulate(t, p, ChangeMeta{
		App: "books", Model: "Book",
		UniqueTogether: [][]string{{"title", "pages"}},
	})
	book, _ := next.Model("books", "Book")
	if len(book.UniqueTogether) != 1 || book.UniqueTogether[0][1] != "pages" {
		t.Errorf("unique_together = %v", book.UniqueTogether)
	}

	t.Run("clear", func(t *testing.T) {
		cleared := simulate(t, p, ChangeMeta{App: "books", Model: "Book"})
		m, _ := cleared.Model("books", "Book")
		if len(m.UniqueTogether) != 0 {
			t.Errorf("unique_together not cleared: %v", m.UniqueTogether)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		wantConflict(t, p, ChangeMeta{
			App: "books", Model: "Book",
			UniqueTogether: [][]string{{"title", "isbn"}},
		}, errors.CodeUnknownEntity)
	})

	t.Run("instructions carry both tuple sets", func(t *testing.T) {
		insts, err := ChangeMeta{
			App: "books", Model: "Book",
			UniqueTogether: [][]string{{"title", "pages"}},
		}.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		inst := insts[0]
		if len(inst.OldUniqueTogether) != 1 || len(inst.UniqueTogether) != 1 {
			t.Errorf("instruction = %+v", inst)
		}
	})
}

func TestRawSQL(t *testing.T) {
	p := bookProject()

	t.Run("cannot simulate without update", func(t *testing.T) {
		wantConflict(t, p, RawSQL{App: "books", SQL: []string{"UPDATE books_book SET pages = 0"}},
			errors.CodeCannotSimulate)
	})

	t.Run("update applies to a private clone", func(t *testing.T) {
		m := RawSQL{
			App: "books",
			SQL: []string{"ALTER TABLE books_book DROP COLUMN pages"},
			Update: func(project *signature.ProjectSignature) error {
				project.Apps["books"].Models["Book"].RemoveField("pages")
				return nil
			},
		}
		next := simulate(t, p, m)
		if next.Apps["books"].Models["Book"].HasField("pages") {
			t.Errorf("update did not apply")
		}
		if !p.Apps["books"].Models["Book"].HasField("pages") {
			t.Errorf("update leaked into the input")
		}
	})

	t.Run("instructions pass statements through", func(t *testing.T) {
		insts, err := RawSQL{App: "books", SQL: []string{"SELECT 1"}}.Instructions(p)
		if err != nil {
			t.Fatalf("instructions failed: %v", err)
		}
		if len(insts) != 1 || insts[0].Kind != types.OpRawSQL || insts[0].SQL[0] != "SELECT 1" {
			t.Errorf("instructions = %+v", insts)
		}
	})
}

func TestTargetOverlaps(t *testing.T) {
	tests := []struct {
		a, b Target
		want bool
	}{
		{Target{App: "books"}, Target{App: "books", Model: "Book", Field: "title"}, true},
		{Target{App: "books", Model: "Book"}, Target{App: "books", Model: "Book", Field: "x"}, true},
		{Target{App: "books", Model: "Book", Field: "x"}, Target{App: "books", Model: "Book", Field: "x"}, true},
		{Target{App: "books", Model: "Book", Field: "x"}, Target{App: "books", Model: "Book", Field: "y"}, false},
		{Target{App: "books", Model: "Book"}, Target{App: "books", Model: "Author"}, false},
		{Target{App: "books"}, Target{App: "reviews"}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Overlaps(tt.a); got != tt.want {
			t.Errorf("Overlaps(%v, %v) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}

package types

// OpKind identifies the kind of schema change an instruction describes.
type OpKind string

// The closed set of operation kinds.
const (
	OpAddField    OpKind = "add_field"
	OpDeleteField OpKind = "delete_field"
	OpChangeField OpKind = "change_field"
	OpRenameField OpKind = "rename_field"
	OpAddModel    OpKind = "add_model"
	OpDeleteModel OpKind = "delete_model"
	OpRenameModel OpKind = "rename_model"
	OpAddIndex    OpKind = "add_index"
	OpDeleteIndex OpKind = "delete_index"
	OpChangeMeta  OpKind = "change_meta"
	OpRawSQL      OpKind = "sql"
)

// Instruction is one abstract SQL-generation instruction handed to an
// external statement generator. Only the fields relevant to Kind are
// populated; the generator returns ordered literal statements for its
// dialect.
type Instruction struct {
	// Kind is the operation kind
	Kind OpKind `json:"kind"`

	// App is the application label the change belongs to
	App string `json:"app"`

	// Model is the model name the change targets (empty for raw SQL)
	Model string `json:"model,omitempty"`

	// Table is the table name the change targets
	Table string `json:"table,omitempty"`

	// NewTable is the new table name for rename_model
	NewTable string `json:"new_table,omitempty"`

	// OldName is the previous column name for rename_field
	OldName string `json:"old_name,omitempty"`

	// Columns holds the column descriptors for the change. For add_model
	// it is the full column list; for column-level changes it holds the
	// single affected column's new definition.
	Columns []ColumnDef `json:"columns,omitempty"`

	// Changed names the column attributes that differ from the prior
	// definition for change_field (e.g. "null", "default", "max_length").
	Changed []string `json:"changed,omitempty"`

	// Indexes holds index descriptors for add_model, add_index and
	// delete_index.
	Indexes []IndexDef `json:"indexes,omitempty"`

	// UniqueTogether is the new set of unique-together column tuples for
	// change_meta (and the initial set for add_model).
	UniqueTogether [][]string `json:"unique_together,omitempty"`

	// OldUniqueTogether is the prior set of unique-together column tuples
	// for change_meta, so generators can drop superseded constraints.
	OldUniqueTogether [][]string `json:"old_unique_together,omitempty"`

	// SQL holds literal statements for raw SQL instructions, passed to the
	// backend verbatim.
	SQL []string `json:"sql,omitempty"`
}

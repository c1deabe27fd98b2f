// Package types defines the shared value types exchanged between the
// evolution engine and external SQL backends: field type tags, column and
// index descriptors, and the abstract instructions handed to statement
// generators.
package types

// FieldType is a backend-agnostic type tag for a field. Statement
// generators map tags to their dialect's column types; unknown tags are
// passed through verbatim.
type FieldType string

// Common field type tags.
const (
	FieldAuto       FieldType = "auto"
	FieldInteger    FieldType = "integer"
	FieldBigInteger FieldType = "bigint"
	FieldFloat      FieldType = "float"
	FieldDecimal    FieldType = "decimal"
	FieldBoolean    FieldType = "boolean"
	FieldText       FieldType = "text"
	FieldVarchar    FieldType = "varchar"
	FieldDate       FieldType = "date"
	FieldDateTime   FieldType = "datetime"
	FieldBlob       FieldType = "blob"
	FieldForeignKey FieldType = "foreign_key"
)

// ColumnDef describes a single column in an instruction.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the backend-agnostic field type tag
	Type FieldType `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable,omitempty"`

	// PrimaryKey indicates whether this column is the primary key
	PrimaryKey bool `json:"primary_key,omitempty"`

	// Unique indicates whether the column carries a single-column unique constraint
	Unique bool `json:"unique,omitempty"`

	// DBIndex indicates whether the column carries a plain single-column index
	DBIndex bool `json:"db_index,omitempty"`

	// MaxLength is the maximum length for varchar-like types (0 = unbounded)
	MaxLength int `json:"max_length,omitempty"`

	// Default is the literal default value, nil when the column has none
	Default *string `json:"default,omitempty"`

	// References identifies the referenced table and column for foreign keys
	References *ColumnRef `json:"references,omitempty"`
}

// ColumnRef identifies a referenced column for foreign-key definitions.
type ColumnRef struct {
	// Table is the referenced table name
	Table string `json:"table"`

	// Column is the referenced column name
	Column string `json:"column"`
}

// IndexDef describes an index in an instruction.
type IndexDef struct {
	// Name is the index name; empty means the backend chooses one
	Name string `json:"name,omitempty"`

	// Columns lists the columns included in the index, in order
	Columns []string `json:"columns"`

	// Unique indicates whether the index enforces uniqueness
	Unique bool `json:"unique,omitempty"`
}

// Package sqlgen is a minimal generic statement generator. It lowers
// abstract instructions to plain DDL that SQLite and PostgreSQL both
// accept for the common cases; production deployments are expected to
// plug in a dialect-specific generator instead.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/pkg/types"
)

// Generator lowers instructions to generic DDL statements.
type Generator struct{}

// New returns a generic statement generator.
func New() *Generator {
	return &Generator{}
}

// BuildStatements returns the ordered statements for one instruction.
func (g *Generator) BuildStatements(inst types.Instruction) ([]string, error) {
	switch inst.Kind {
	case types.OpAddField:
		return g.addColumn(inst)
	case types.OpDeleteField:
		return g.dropColumn(inst)
	case types.OpChangeField:
		return g.alterColumn(inst)
	case types.OpRenameField:
		return g.renameColumn(inst)
	case types.OpAddModel:
		return g.createTable(inst)
	case types.OpDeleteModel:
		return []string{fmt.Sprintf("DROP TABLE %s", inst.Table)}, nil
	case types.OpRenameModel:
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", inst.Table, inst.NewTable)}, nil
	case types.OpAddIndex:
		return g.createIndexes(inst.Table, inst.Indexes), nil
	case types.OpDeleteIndex:
		return g.dropIndexes(inst.Indexes), nil
	case types.OpChangeMeta:
		return g.replaceUniqueTogether(inst), nil
	case types.OpRawSQL:
		return append([]string(nil), inst.SQL...), nil
	default:
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: unknown instruction kind %q", inst.Kind), nil)
	}
}

func (g *Generator) addColumn(inst types.Instruction) ([]string, error) {
	if len(inst.Columns) != 1 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: add_field for %s carries %d columns", inst.Table, len(inst.Columns)), nil)
	}
	col := inst.Columns[0]

	// SQLite cannot add a UNIQUE column in ALTER TABLE, so the
	// constraint becomes a separate unique index.
	inline := col
	inline.Unique = false
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", inst.Table, columnClause(inline))}
	if col.Unique {
		stmts = append(stmts, createUniqueIndex(inst.Table, []string{col.Name}))
	} else if col.DBIndex {
		stmts = append(stmts, createPlainIndex(inst.Table, col.Name))
	}
	return stmts, nil
}

func (g *Generator) dropColumn(inst types.Instruction) ([]string, error) {
	if len(inst.Columns) != 1 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: delete_field for %s carries %d columns", inst.Table, len(inst.Columns)), nil)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", inst.Table, inst.Columns[0].Name)}, nil
}

// alterColumn emits one statement per changed attribute. A column move
// is emitted last so every preceding statement still names the old
// column.
func (g *Generator) alterColumn(inst types.Instruction) ([]string, error) {
	if len(inst.Columns) != 1 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: change_field for %s carries %d columns", inst.Table, len(inst.Columns)), nil)
	}
	col := inst.Columns[0]
	oldName := inst.OldName
	if oldName == "" {
		oldName = col.Name
	}

	var stmts []string
	renamed := false
	for _, attr := range inst.Changed {
		switch attr {
		case "null":
			if col.Nullable {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", inst.Table, oldName))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", inst.Table, oldName))
			}
		case "default":
			if col.Default == nil {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", inst.Table, oldName))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
					inst.Table, oldName, literal(*col.Default)))
			}
		case "max_length":
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
				inst.Table, oldName, columnType(col)))
		case "unique":
			if col.Unique {
				stmts = append(stmts, createUniqueIndex(inst.Table, []string{oldName}))
			} else {
				stmts = append(stmts, fmt.Sprintf("DROP INDEX %s", uniqueIndexName(inst.Table, []string{oldName})))
			}
		case "db_index":
			// The non-unique index follows the synthesized naming used
			// for unnamed declared indexes.
			if col.DBIndex {
				stmts = append(stmts, createPlainIndex(inst.Table, oldName))
			} else {
				stmts = append(stmts, fmt.Sprintf("DROP INDEX idx_%s_%s", inst.Table, oldName))
			}
		case "column":
			renamed = true
		default:
			return nil, errors.NewInternalError(
				fmt.Sprintf("sqlgen: change_field altered unknown attribute %q", attr), nil)
		}
	}
	if renamed && col.Name != oldName {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", inst.Table, oldName, col.Name))
	}
	return stmts, nil
}

func (g *Generator) renameColumn(inst types.Instruction) ([]string, error) {
	if len(inst.Columns) != 1 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: rename_field for %s carries %d columns", inst.Table, len(inst.Columns)), nil)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		inst.Table, inst.OldName, inst.Columns[0].Name)}, nil
}

func (g *Generator) createTable(inst types.Instruction) ([]string, error) {
	if len(inst.Columns) == 0 {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sqlgen: add_model for %s carries no columns", inst.Table), nil)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(inst.Table)
	sb.WriteString(" (\n")
	clauses := make([]string, len(inst.Columns))
	for i, col := range inst.Columns {
		clauses[i] = "    " + columnClause(col)
	}
	sb.WriteString(strings.Join(clauses, ",\n"))
	sb.WriteString("\n)")

	stmts := []string{sb.String()}
	for _, col := range inst.Columns {
		if col.DBIndex && !col.Unique && !col.PrimaryKey {
			stmts = append(stmts, createPlainIndex(inst.Table, col.Name))
		}
	}
	stmts = append(stmts, g.createIndexes(inst.Table, inst.Indexes)...)
	for _, tuple := range inst.UniqueTogether {
		stmts = append(stmts, createUniqueIndex(inst.Table, tuple))
	}
	return stmts, nil
}

func (g *Generator) createIndexes(table string, indexes []types.IndexDef) []string {
	var stmts []string
	for _, idx := range indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s %s ON %s (%s)",
			kind, idx.Name, table, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

func (g *Generator) dropIndexes(indexes []types.IndexDef) []string {
	var stmts []string
	for _, idx := range indexes {
		stmts = append(stmts, fmt.Sprintf("DROP INDEX %s", idx.Name))
	}
	return stmts
}

// replaceUniqueTogether drops the unique indexes for tuples that
// disappeared and creates indexes for new ones. Tuples present in both
// sets are left alone.
func (g *Generator) replaceUniqueTogether(inst types.Instruction) []string {
	var stmts []string
	for _, old := range inst.OldUniqueTogether {
		if !containsTuple(inst.UniqueTogether, old) {
			stmts = append(stmts, fmt.Sprintf("DROP INDEX %s", uniqueIndexName(inst.Table, old)))
		}
	}
	for _, tuple := range inst.UniqueTogether {
		if !containsTuple(inst.OldUniqueTogether, tuple) {
			stmts = append(stmts, createUniqueIndex(inst.Table, tuple))
		}
	}
	return stmts
}

func containsTuple(tuples [][]string, want []string) bool {
	for _, t := range tuples {
		if len(t) != len(want) {
			continue
		}
		same := true
		for i := range t {
			if t[i] != want[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func createUniqueIndex(table string, columns []string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		uniqueIndexName(table, columns), table, strings.Join(columns, ", "))
}

func createPlainIndex(table, column string) string {
	return fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s)", table, column, table, column)
}

// uniqueIndexName synthesizes a deterministic name so a later change
// can drop the constraint without knowing backend naming rules.
func uniqueIndexName(table string, columns []string) string {
	return fmt.Sprintf("%s_uniq_%s", table, strings.Join(columns, "_"))
}

// columnClause renders one column definition for CREATE TABLE or ADD
// COLUMN.
func columnClause(col types.ColumnDef) string {
	var sb strings.Builder
	sb.WriteString(col.Name)
	sb.WriteString(" ")
	sb.WriteString(columnType(col))
	if col.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !col.Nullable && !col.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	if col.Unique {
		sb.WriteString(" UNIQUE")
	}
	if col.Default != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(literal(*col.Default))
	}
	if col.References != nil {
		sb.WriteString(fmt.Sprintf(" REFERENCES %s (%s)", col.References.Table, col.References.Column))
	}
	return sb.String()
}

// columnType maps a field type tag to a generic SQL column type.
// Unknown tags pass through uppercased.
func columnType(col types.ColumnDef) string {
	switch col.Type {
	case types.FieldAuto:
		return "INTEGER"
	case types.FieldInteger:
		return "INTEGER"
	case types.FieldBigInteger:
		return "BIGINT"
	case types.FieldFloat:
		return "REAL"
	case types.FieldDecimal:
		return "NUMERIC"
	case types.FieldBoolean:
		return "BOOLEAN"
	case types.FieldText:
		return "TEXT"
	case types.FieldVarchar:
		if col.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		}
		return "TEXT"
	case types.FieldDate:
		return "DATE"
	case types.FieldDateTime:
		return "TIMESTAMP"
	case types.FieldBlob:
		return "BLOB"
	case types.FieldForeignKey:
		return "INTEGER"
	default:
		return strings.ToUpper(string(col.Type))
	}
}

// literal renders a default value. Numbers, booleans, NULL, and
// CURRENT_TIMESTAMP pass through raw; everything else is quoted.
func literal(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	switch strings.ToUpper(v) {
	case "TRUE", "FALSE", "NULL", "CURRENT_TIMESTAMP":
		return strings.ToUpper(v)
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

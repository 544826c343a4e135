package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
)

// ColumnDescriptor is one (name, declared type) pair of a table column.
type ColumnDescriptor struct {
	Name         string
	DeclaredType string
}

// TableDescriptor represents a source table's structure as data: the table
// name and its ordered column list. It drives both the recreation of the
// table in the warehouse and the generic row-copy logic, since source schemas
// are unknown at build time.
type TableDescriptor struct {
	Name    string
	Columns []ColumnDescriptor
}

// ColumnNames returns the column names in declared order.
func (d TableDescriptor) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// CreateDDL renders the CREATE TABLE statement that recreates this table's
// structure, with identical column order, names and declared types, under the
// given target name.
func (d TableDescriptor) CreateDDL(targetName string) string {
	cols := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		declared := c.DeclaredType
		if declared == "" {
			declared = "TEXT"
		}
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), declared)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(targetName), strings.Join(cols, ", "))
}

// quoteIdent wraps an identifier in double quotes, escaping embedded quotes.
// Double-quoted identifiers are valid for sqlite, which is the only dialect
// DDL is ever executed against (the warehouse).
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// systemTables are driver bookkeeping tables excluded from enumeration.
var systemTables = map[string]struct{}{
	"sqlite_sequence": {},
	"sqlite_stat1":    {},
	"sqlite_stat4":    {},
}

// Inspector reads table and column metadata from a source store.
// It is read-only: no method mutates the inspected store.
type Inspector struct{}

// NewInspector creates a new Inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// Tables produces the ordered list of TableDescriptors contained in the store.
// System bookkeeping tables are excluded. A store that cannot be enumerated
// is reported as a skippable ErrSchemaUnavailable condition.
func (i *Inspector) Tables(db *gorm.DB) ([]TableDescriptor, error) {
	names, err := db.Migrator().GetTables()
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to enumerate tables",
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err), true)
	}

	descriptors := make([]TableDescriptor, 0, len(names))
	for _, name := range names {
		if _, system := systemTables[name]; system {
			continue
		}
		desc, err := i.Describe(db, name)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}

// Describe produces the exact structural definition of one named table.
// A missing table or unreadable metadata is a skippable ErrSchemaUnavailable
// condition; duplicate column names violate the descriptor invariant and are
// reported rather than silently accepted.
func (i *Inspector) Describe(db *gorm.DB, table string) (TableDescriptor, error) {
	if !db.Migrator().HasTable(table) {
		return TableDescriptor{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("table '%s' does not exist", table),
			exception.ErrSchemaUnavailable, true)
	}

	columnTypes, err := db.Migrator().ColumnTypes(table)
	if err != nil {
		return TableDescriptor{}, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to read column metadata for table '%s'", table),
			fmt.Errorf("%w: %v", exception.ErrSchemaUnavailable, err), true)
	}

	desc := TableDescriptor{Name: table, Columns: make([]ColumnDescriptor, 0, len(columnTypes))}
	seen := make(map[string]struct{}, len(columnTypes))
	for _, ct := range columnTypes {
		name := ct.Name()
		if _, dup := seen[name]; dup {
			return TableDescriptor{}, exception.NewPipelineError(moduleName,
				fmt.Sprintf("table '%s' declares duplicate column '%s'", table, name),
				exception.ErrSchemaUnavailable, true)
		}
		seen[name] = struct{}{}
		desc.Columns = append(desc.Columns, ColumnDescriptor{
			Name:         name,
			DeclaredType: ct.DatabaseTypeName(),
		})
	}
	return desc, nil
}

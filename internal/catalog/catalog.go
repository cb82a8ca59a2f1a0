// Package catalog reads column definitions of the transformation's output
// tables from the warehouse catalog.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sqltransform/internal/config"
	"sqltransform/internal/storage"
)

// Querier is the part of storage.Conn the introspector needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (storage.Rows, error)
	Dialect() storage.Dialect
}

// Length holds the raw catalog length attributes of a column. Nil means the
// catalog reported NULL.
type Length struct {
	CharacterMaximum *int64
	NumericPrecision *int64
	NumericScale     *int64
}

// ColumnDef is one column as reported by the catalog.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
	Length   Length
}

// TableStructure is one output table with its columns in ordinal order.
type TableStructure struct {
	Name    string
	Columns []ColumnDef
}

// Attribute is a scalar table attribute exported as table metadata.
type Attribute struct {
	Key   string
	Value any
}

// Attributes returns the table's scalar attributes, i.e. everything except
// the columns.
func (t TableStructure) Attributes() []Attribute {
	return []Attribute{{Key: "name", Value: t.Name}}
}

// MissingTablesError lists expected output tables the catalog does not know.
type MissingTablesError struct {
	Tables []string
}

func (e *MissingTablesError) Error() string {
	return fmt.Sprintf(`Tables "%s" specified in output were not created by the transformation.`,
		strings.Join(e.Tables, `", "`))
}

// SourceNames returns the source table names of the expected outputs in
// configuration order.
func SourceNames(tables []config.OutputTable) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, t.Source)
	}
	return out
}

// DescribeTables fetches the columns of tableNames in schema with a single
// catalog query. An empty input returns an empty map without touching the
// connection. If any requested table has no columns in the catalog the
// result is a *MissingTablesError naming them in input order.
func DescribeTables(ctx context.Context, q Querier, schema string, tableNames []string) (map[string]TableStructure, error) {
	out := map[string]TableStructure{}
	names := dedupe(tableNames)
	if len(names) == 0 {
		return out, nil
	}

	query, args := q.Dialect().ColumnsQuery(schema, names)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			colName, tableName, isNullable, dataType string
			charMax, precision, scale                sql.NullInt64
		)
		if err := rows.Scan(&colName, &tableName, &isNullable, &dataType, &charMax, &precision, &scale); err != nil {
			return nil, fmt.Errorf("catalog: scan column: %w", err)
		}
		ts, ok := out[tableName]
		if !ok {
			ts = TableStructure{Name: tableName}
		}
		ts.Columns = append(ts.Columns, ColumnDef{
			Name:     colName,
			Type:     dataType,
			Nullable: strings.TrimSpace(isNullable) != "NO",
			Length: Length{
				CharacterMaximum: nullInt(charMax),
				NumericPrecision: nullInt(precision),
				NumericScale:     nullInt(scale),
			},
		})
		out[tableName] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: read columns: %w", err)
	}

	var missing []string
	for _, n := range names {
		if _, ok := out[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingTablesError{Tables: missing}
	}
	return out, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

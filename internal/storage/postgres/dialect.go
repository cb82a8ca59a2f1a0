package postgres

import (
	"fmt"
	"strconv"

	"sqltransform/internal/storage"
)

// Dialect is the Redshift/Postgres catalog dialect.
type Dialect struct{ kind string }

var _ storage.Dialect = Dialect{}

// Name implements storage.Dialect.
func (d Dialect) Name() string {
	if d.kind == "" {
		return "postgres"
	}
	return d.kind
}

// ColumnsQuery selects column metadata from information_schema.columns. The
// casts pin every column to a plain type; Redshift and Postgres expose
// several of them as information_schema domains.
func (d Dialect) ColumnsQuery(schema string, tables []string) (string, []any) {
	q := fmt.Sprintf(`SELECT column_name::varchar, table_name::varchar, is_nullable::varchar, data_type::varchar,
       character_maximum_length::int, numeric_precision::int, numeric_scale::int
FROM information_schema.columns
WHERE table_schema = $1 AND table_name IN (%s)
ORDER BY ordinal_position`,
		storage.Placeholders(2, len(tables), func(i int) string { return "$" + strconv.Itoa(i) }),
	)
	args := append([]any{schema}, storage.StringArgs(tables)...)
	return q, args
}

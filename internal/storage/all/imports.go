// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their openers with the storage package.
//
// Importing this package makes the following kinds available at runtime:
//
//   - "redshift", "postgres" (sqltransform/internal/storage/postgres)
//   - "mysql"                (sqltransform/internal/storage/mysql)
//   - "mssql"                (sqltransform/internal/storage/mssql)
//   - "sqlite"               (sqltransform/internal/storage/sqlite)
//
// Typical usage (in cmd/transform/main.go):
//
//	import (
//	    _ "sqltransform/internal/storage/all" // enable all built-in backends
//
//	    "sqltransform/internal/storage"
//	)
//
//	conn, err := storage.Open(ctx, storage.Config{Kind: "redshift", ...})
//
// A binary that needs only a subset of backends can import the backend
// packages directly instead of this one.
package all

import (
	_ "sqltransform/internal/storage/mssql"
	_ "sqltransform/internal/storage/mysql"
	_ "sqltransform/internal/storage/postgres"
	_ "sqltransform/internal/storage/sqlite"
)

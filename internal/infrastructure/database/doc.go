// Package database provides SQLite connectivity and schema migrations for Synexa.
//
// It manages:
//   - The connection (WAL mode, foreign keys, busy timeout, single writer)
//   - Embedded, versioned migrations applied one transaction at a time
//   - A WithTx helper used by the repositories for multi-statement writes
//
// All queries elsewhere in the tree use parameterised statements. The
// database file is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are NULLABLE or carry a DEFAULT, and
// every .up.sql ships with a matching .down.sql.
package database

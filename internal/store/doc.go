// Package store provides the SQLite persistence layer for catalog-described
// entity types.
//
// Tables are derived from the catalog: one table per type, one column per
// field, with the identifier column declared INTEGER PRIMARY KEY. Rows cross
// the package boundary as Row values keyed by field name; column names never
// leak to callers.
//
// # Sessions
//
// Every read and write helper takes a Session, which *sql.DB and *sql.Tx both
// satisfy. Referential rules and the write they guard share one Session so a
// failed post-write rule can roll the write back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce declared foreign keys
//   - case_sensitive_like=ON: LIKE compares bytes; case folding is explicit
package store

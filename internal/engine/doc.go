// Package engine wires a frozen catalog to a store and exposes the
// repository pipeline for every declared type.
//
// An Engine owns one validator, one rule registry and one record-backed
// repository per catalog type. Callers address types by name and pass
// loosely typed values (from YAML, JSON or CLI flags); values are coerced
// to the declared field types before any rule runs.
//
// Lifecycle:
//
//	eng, err := engine.Open(ctx, "shop.db", catalog)
//	defer eng.Close()
//	rec, err := eng.Create(ctx, "Product", map[string]any{"code": "P-1", "name": "Hammer"})
//
// Outcomes of write calls are classified by Classify so the harness and
// the CLI report them the same way.
package engine

// Package querysql compiles restriction predicates, orders and pagination
// into parameterized SQL for SQLite.
//
// CRITICAL: All values are parameterized (never interpolated).
// CRITICAL: Every SELECT ends with the root id as ORDER BY tiebreaker so
// pagination is deterministic.
//
// Dotted property paths are resolved against the catalog's declared
// property graph. Each relation prefix becomes one LEFT JOIN with a stable
// alias (t0 is the root, t1.. in order of first use):
//
//	category.name = ?
//
// becomes
//
//	SELECT ... FROM "products" AS t0
//	LEFT JOIN "categories" AS t1 ON t0."category_id" = t1."id"
//	WHERE t1."name" = ?
//
// Result columns are labelled with field names, not column names, so rows
// scan directly into field-keyed maps.
package querysql

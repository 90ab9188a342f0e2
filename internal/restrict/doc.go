// Package restrict provides typed predicate and ordering builders for
// filtered, sorted queries.
//
// Predicates reference properties by dotted path ("category.name"); paths
// are resolved against a type's declared property graph when the query is
// compiled, not when the predicate is built.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, which lets backends switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Comparison:
//	case Like:
//	case Null:
//	case Truth:
//	case And, Or, Not:
//	}
//
// CONTAINERS:
//
// Restrictions accumulates predicates combined with AND. The combination
// policy is fixed; OR and NOT are available as composite predicates added
// through Restrictions.Add. Orders maps property paths to directions with
// last-write-wins semantics.
//
// Both containers are mutable builders. Accessors return copies, so a
// snapshot handed to the query layer cannot be changed afterwards.
package restrict

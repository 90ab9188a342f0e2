// Package harness provides conformance testing for warden type declarations.
//
// The harness loads a directory of CUE type declarations, executes a
// scenario of create, update and delete calls against a fresh in-memory
// store, and checks each call's outcome and the final rows.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: product_lifecycle
//	description: "Codes stay unique and categories cannot be orphaned"
//	specs: ../../testdata/specs
//	post_phase: rollback
//	setup:
//	  - invoke: Category.create
//	    values: { name: Tools }
//	flow:
//	  - invoke: Product.create
//	    values: { code: P-1, name: Hammer, price: 10, categoryId: 1 }
//	    expect: { outcome: ok }
//	  - invoke: Category.delete
//	    id: 1
//	    expect: { outcome: referential, rule: category_in_use }
//	assertions:
//	  - type: row_count
//	    entity: Product
//	    count: 1
//	  - type: final_state
//	    entity: Product
//	    where: { code: P-1 }
//	    expect: { name: Hammer }
//
// The specs path is resolved relative to the scenario file.
//
// # Outcomes
//
// A step's expect clause names one of ok, validation, referential,
// not_found or error, optionally narrowed by the violated rule, property,
// message key, or whether an advisory post-phase write committed.
//
// # Assertion Types
//
//   - trace_contains: a call to action completed (with the given outcome and args)
//   - trace_order: actions were invoked in the given order
//   - trace_count: action completed exactly N times (with the given outcome)
//   - row_count: N rows of entity match where
//   - final_state: exactly one row of entity matches where and holds expect
//
// # Deterministic Testing
//
// Call ids come from testutil.SequentialIDs ("call-1", "call-2", ...) and
// every trace event carries a logical sequence number, so traces are
// identical across runs and can be compared against golden files.
package harness

// Package repository orchestrates validation and persistence for one
// catalog type.
//
// Every write follows the same pipeline:
//
//	integrity -> pre rules -> write -> post rules -> commit
//
// Each stage returns an error value; the first error aborts the pipeline
// and nothing after it runs. Pre rules, the write, and (under the default
// rollback policy) post rules share one transaction, so a post violation
// undoes the write. Under the advisory policy the write commits before
// post rules run, and a post violation is returned wrapped in
// *CommittedError.
//
// Reads (Filter, FindByPrimaryKey, Count) compile restrict predicates
// through querysql and never run rules.
package repository

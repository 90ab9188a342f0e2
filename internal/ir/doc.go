// Package ir provides the declaration types shared by every warden package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the declaration model
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Declarations are immutable once a Catalog is built from them
//   - Rule order is declaration order, never map order
//   - An empty Modes or Phases set means "never applicable"
//   - Errors in errors.go are the only failure surface returned to callers
package ir

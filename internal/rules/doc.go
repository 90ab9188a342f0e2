// Package rules resolves and dispatches the constraint declarations of
// catalog types.
//
// A Registry is built once per catalog. Construction resolves every
// declaration's kind to a RuleFunc and parses its expression template, so
// a misconfigured rule fails at startup rather than on the first write.
//
// Built-in kinds:
//   - count: binds the expression, counts rows, and compares the count
//     against [Min, Max]; outside the bounds is *ir.ReferentialViolation
//   - integrity: runs the field-level Validator on the instance
//
// Additional kinds are registered with WithRule.
package rules

package restrict

import (
	"slices"

	"github.com/roach88/warden/internal/expr"
)

// Restrictions is an ordered accumulator of predicates combined with AND.
//
// Adding an empty path, a nil value, or a nil predicate is a no-op, so the
// container never holds null entries. The zero value is ready to use.
type Restrictions struct {
	preds []Predicate
}

// NewRestrictions returns an empty container.
func NewRestrictions() *Restrictions {
	return &Restrictions{}
}

// Add appends pred. Nil predicates are ignored.
func (r *Restrictions) Add(pred Predicate) *Restrictions {
	if pred == nil || expr.IsNil(pred) {
		return r
	}
	r.preds = append(r.preds, pred)
	return r
}

func (r *Restrictions) addComparison(path string, op Operator, value any) *Restrictions {
	if path == "" || expr.IsNil(value) {
		return r
	}
	return r.Add(Comparison{Path: path, Op: op, Value: value})
}

// AddEq appends path = value.
func (r *Restrictions) AddEq(path string, value any) *Restrictions {
	return r.addComparison(path, OpEq, value)
}

// AddNotEq appends path <> value.
func (r *Restrictions) AddNotEq(path string, value any) *Restrictions {
	return r.addComparison(path, OpNotEq, value)
}

// AddGe appends path >= value.
func (r *Restrictions) AddGe(path string, value any) *Restrictions {
	return r.addComparison(path, OpGe, value)
}

// AddGt appends path > value.
func (r *Restrictions) AddGt(path string, value any) *Restrictions {
	return r.addComparison(path, OpGt, value)
}

// AddLe appends path <= value.
func (r *Restrictions) AddLe(path string, value any) *Restrictions {
	return r.addComparison(path, OpLe, value)
}

// AddLt appends path < value.
func (r *Restrictions) AddLt(path string, value any) *Restrictions {
	return r.addComparison(path, OpLt, value)
}

func (r *Restrictions) addLike(path, pattern string, negate, fold bool) *Restrictions {
	if path == "" || pattern == "" {
		return r
	}
	return r.Add(Like{Path: path, Pattern: pattern, Negate: negate, FoldCase: fold})
}

// AddLike appends a case-sensitive pattern match.
func (r *Restrictions) AddLike(path, pattern string) *Restrictions {
	return r.addLike(path, pattern, false, false)
}

// AddNotLike appends a negated case-sensitive pattern match.
func (r *Restrictions) AddNotLike(path, pattern string) *Restrictions {
	return r.addLike(path, pattern, true, false)
}

// AddLikeIgnoreCase appends a case-folded pattern match.
func (r *Restrictions) AddLikeIgnoreCase(path, pattern string) *Restrictions {
	return r.addLike(path, pattern, false, true)
}

// AddIsNull appends path IS NULL.
func (r *Restrictions) AddIsNull(path string) *Restrictions {
	if path == "" {
		return r
	}
	return r.Add(Null{Path: path})
}

// AddIsNotNull appends path IS NOT NULL.
func (r *Restrictions) AddIsNotNull(path string) *Restrictions {
	if path == "" {
		return r
	}
	return r.Add(Null{Path: path, Negate: true})
}

// AddIsTrue appends path is true.
func (r *Restrictions) AddIsTrue(path string) *Restrictions {
	if path == "" {
		return r
	}
	return r.Add(Truth{Path: path, Want: true})
}

// AddIsFalse appends path is false.
func (r *Restrictions) AddIsFalse(path string) *Restrictions {
	if path == "" {
		return r
	}
	return r.Add(Truth{Path: path, Want: false})
}

// Size returns the number of predicates.
func (r *Restrictions) Size() int {
	if r == nil {
		return 0
	}
	return len(r.preds)
}

// Clear removes all predicates.
func (r *Restrictions) Clear() {
	if r == nil {
		return
	}
	r.preds = nil
}

// Restrictions returns a copy of the predicates in insertion order.
func (r *Restrictions) Restrictions() []Predicate {
	if r == nil {
		return nil
	}
	return slices.Clone(r.preds)
}

// Predicate returns the conjunction of all predicates, or nil when empty.
func (r *Restrictions) Predicate() Predicate {
	switch r.Size() {
	case 0:
		return nil
	case 1:
		return r.preds[0]
	default:
		return And{Predicates: r.Restrictions()}
	}
}

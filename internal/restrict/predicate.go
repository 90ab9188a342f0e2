package restrict

// Predicate is a single typed filter condition on a property path.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Operator is a scalar comparison operator.
type Operator string

const (
	OpEq    Operator = "="
	OpNotEq Operator = "<>"
	OpGe    Operator = ">="
	OpGt    Operator = ">"
	OpLe    Operator = "<="
	OpLt    Operator = "<"
)

// Comparison compares a property with a literal value.
//
// Semantics:
//
//	<path> <op> <value>
type Comparison struct {
	Path  string
	Op    Operator
	Value any
}

func (Comparison) predicateNode() {}

// Like matches a text property against a pattern using % and _ wildcards.
//
// Matching is case-sensitive raw text comparison unless FoldCase is set,
// in which case both operand and pattern are case-folded first.
type Like struct {
	Path     string
	Pattern  string
	Negate   bool
	FoldCase bool
}

func (Like) predicateNode() {}

// Null tests a property for NULL (or NOT NULL when Negate is set).
type Null struct {
	Path   string
	Negate bool
}

func (Null) predicateNode() {}

// Truth tests a boolean property for true or false.
type Truth struct {
	Path string
	Want bool
}

func (Truth) predicateNode() {}

// And is satisfied when all Predicates are (vacuously true when empty).
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is satisfied when any of Predicates is (false when empty).
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates Predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Eq returns path = value.
func Eq(path string, value any) Comparison { return Comparison{Path: path, Op: OpEq, Value: value} }

// NotEq returns path <> value.
func NotEq(path string, value any) Comparison {
	return Comparison{Path: path, Op: OpNotEq, Value: value}
}

// Ge returns path >= value.
func Ge(path string, value any) Comparison { return Comparison{Path: path, Op: OpGe, Value: value} }

// Gt returns path > value.
func Gt(path string, value any) Comparison { return Comparison{Path: path, Op: OpGt, Value: value} }

// Le returns path <= value.
func Le(path string, value any) Comparison { return Comparison{Path: path, Op: OpLe, Value: value} }

// Lt returns path < value.
func Lt(path string, value any) Comparison { return Comparison{Path: path, Op: OpLt, Value: value} }

// AnyOf returns the disjunction of preds.
func AnyOf(preds ...Predicate) Or { return Or{Predicates: preds} }

// Negate returns NOT pred.
func Negate(pred Predicate) Not { return Not{Predicate: pred} }

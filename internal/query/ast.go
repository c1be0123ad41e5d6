// Package query implements the structured query surface of the store: a
// small predicate language over dot-addressable documents, per-record
// evaluation, sorting, pagination, and facet counting.
package query

// Expr is a node in the predicate tree.
//
// Sealed interface: only types in this package implement it, which keeps
// type switches in the evaluator exhaustive.
type Expr interface {
	exprNode()
}

// Rel is the comparison operator of a Term.
type Rel string

const (
	RelEq      Rel = "=="
	RelMatch   Rel = "="
	RelNotEq   Rel = "<>"
	RelLess    Rel = "<"
	RelGreater Rel = ">"
	RelLessEq  Rel = "<="
	RelGreatEq Rel = ">="
)

// Term compares one field against a literal. With RelMatch the value may
// contain '*' wildcards.
type Term struct {
	Field string
	Rel   Rel
	Value string
}

// And matches when every child matches.
type And struct {
	Exprs []Expr
}

// Or matches when any child matches.
type Or struct {
	Exprs []Expr
}

// Not inverts its child.
type Not struct {
	Expr Expr
}

// MatchAll is the empty/omitted query: every record matches.
type MatchAll struct{}

func (Term) exprNode()     {}
func (And) exprNode()      {}
func (Or) exprNode()       {}
func (Not) exprNode()      {}
func (MatchAll) exprNode() {}

// Sort is an optional ordering clause.
type Sort struct {
	Field      string
	Descending bool
}

// FacetRequest asks for the top-N distinct values of one field.
type FacetRequest struct {
	Field string
	TopN  int
}

// DefaultFacetTopN applies when a facet request omits the count.
const DefaultFacetTopN = 5

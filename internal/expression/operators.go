// Package expression compiles and evaluates channel filter expressions.
//
// An expression is a boolean combination of field predicates:
//
//	Group ~ "(?i)^DE" AND NOT (Name = "Test" OR Title contains "XXX")
//
// Grammar:
//
//	expr      := or
//	or        := and ( OR and )*
//	and       := unary ( AND unary )*
//	unary     := NOT unary | primary
//	primary   := '(' expr ')' | predicate
//	predicate := FIELD [NOT] OPERATOR VALUE
//
// Precedence is NOT over AND over OR; AND and OR are left-associative and
// parentheses group explicitly. The keywords AND, OR and NOT are
// case-insensitive and have the symbolic forms &&, || and !. Field names are
// case-insensitive and limited to the fields a Channel exposes.
//
// Operators are ~ (regex match, also =~ and matches), !~, = (also ==),
// != and the keywords equals, contains, starts_with, ends_with, matches
// with their not_ forms. Regex operands keep their backslashes and honour
// inline flags such as (?i). A regex matches whatever span the pattern
// declares; anchor the pattern for whole-value matches.
//
// Groups joined by the same operator are flattened, so a OR (b OR c)
// compiles to a single disjunction of three predicates. An empty expression
// matches every channel.
package expression

import "strings"

// FilterOperator represents a comparison operator in a filter condition.
type FilterOperator string

// Filter operators for condition matching.
const (
	// String comparison operators
	OpEquals        FilterOperator = "equals"
	OpNotEquals     FilterOperator = "not_equals"
	OpContains      FilterOperator = "contains"
	OpNotContains   FilterOperator = "not_contains"
	OpStartsWith    FilterOperator = "starts_with"
	OpNotStartsWith FilterOperator = "not_starts_with"
	OpEndsWith      FilterOperator = "ends_with"
	OpNotEndsWith   FilterOperator = "not_ends_with"

	// Regex operators
	OpMatches    FilterOperator = "matches"
	OpNotMatches FilterOperator = "not_matches"
)

// IsNegated returns true if the operator is a negated form.
func (op FilterOperator) IsNegated() bool {
	switch op {
	case OpNotEquals, OpNotContains, OpNotStartsWith, OpNotEndsWith, OpNotMatches:
		return true
	default:
		return false
	}
}

// Base returns the non-negated form of the operator.
func (op FilterOperator) Base() FilterOperator {
	switch op {
	case OpNotEquals:
		return OpEquals
	case OpNotContains:
		return OpContains
	case OpNotStartsWith:
		return OpStartsWith
	case OpNotEndsWith:
		return OpEndsWith
	case OpNotMatches:
		return OpMatches
	default:
		return op
	}
}

// Negate returns the opposite operator.
func (op FilterOperator) Negate() FilterOperator {
	switch op {
	case OpEquals:
		return OpNotEquals
	case OpNotEquals:
		return OpEquals
	case OpContains:
		return OpNotContains
	case OpNotContains:
		return OpContains
	case OpStartsWith:
		return OpNotStartsWith
	case OpNotStartsWith:
		return OpStartsWith
	case OpEndsWith:
		return OpNotEndsWith
	case OpNotEndsWith:
		return OpEndsWith
	case OpMatches:
		return OpNotMatches
	case OpNotMatches:
		return OpMatches
	default:
		return op
	}
}

// IsRegex returns true if the operator uses regex matching.
func (op FilterOperator) IsRegex() bool {
	return op == OpMatches || op == OpNotMatches
}

// Symbol returns the compact symbol used when printing the operator.
func (op FilterOperator) Symbol() string {
	switch op {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "!="
	case OpMatches:
		return "~"
	case OpNotMatches:
		return "!~"
	default:
		return string(op)
	}
}

// LogicalOperator represents a boolean operator for combining conditions.
type LogicalOperator string

// Logical operators for combining conditions.
const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// operatorKeywords maps keyword strings to FilterOperator values.
var operatorKeywords = map[string]FilterOperator{
	"equals":          OpEquals,
	"not_equals":      OpNotEquals,
	"contains":        OpContains,
	"not_contains":    OpNotContains,
	"starts_with":     OpStartsWith,
	"not_starts_with": OpNotStartsWith,
	"ends_with":       OpEndsWith,
	"not_ends_with":   OpNotEndsWith,
	"matches":         OpMatches,
	"not_matches":     OpNotMatches,
	// Aliases
	"eq":  OpEquals,
	"neq": OpNotEquals,
}

// symbolOperators maps symbolic comparison tokens to FilterOperator values.
var symbolOperators = map[TokenType]FilterOperator{
	TokenTilde:     OpMatches,
	TokenNotTilde:  OpNotMatches,
	TokenEquals:    OpEquals,
	TokenNotEquals: OpNotEquals,
}

// ParseFilterOperator parses a keyword into a FilterOperator, ignoring case.
// Returns the operator and true if valid, or empty and false if invalid.
func ParseFilterOperator(s string) (FilterOperator, bool) {
	op, ok := operatorKeywords[strings.ToLower(s)]
	return op, ok
}

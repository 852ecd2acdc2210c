package expression

import (
	"strings"

	"github.com/jmylchreest/tvfilter/internal/util"
)

// FieldValueAccessor provides access to field values for evaluation.
type FieldValueAccessor interface {
	// GetFieldValue returns the value of a field by name.
	// Returns the value and true if found, or empty string and false if not found.
	GetFieldValue(name string) (string, bool)
}

// Options controls how an expression matches field values.
type Options struct {
	// MatchAsASCII folds field values (and literal operands) to ASCII before
	// comparing, so "Österreich" matches "Osterreich".
	MatchAsASCII bool
}

// Captures holds the regex captures of the predicates that made an
// expression match.
type Captures struct {
	// Named maps named groups to their captured text.
	Named map[string]string

	// Groups holds the numbered groups of the first matching regex,
	// index 0 being the full match.
	Groups []string
}

// Get returns a named capture, or a numbered one when name is a digit string.
func (c Captures) Get(name string) (string, bool) {
	if v, ok := c.Named[name]; ok {
		return v, true
	}
	idx := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			return "", false
		}
		idx = idx*10 + int(r-'0')
	}
	if name == "" || idx >= len(c.Groups) {
		return "", false
	}
	return c.Groups[idx], true
}

func (c *Captures) merge(other Captures) {
	if len(other.Named) > 0 {
		if c.Named == nil {
			c.Named = make(map[string]string, len(other.Named))
		}
		for k, v := range other.Named {
			c.Named[k] = v
		}
	}
	if c.Groups == nil {
		c.Groups = other.Groups
	}
}

// Expression is a compiled filter. It is immutable and safe for concurrent
// use by multiple goroutines.
type Expression struct {
	root   Node
	source string
	opts   Options
}

// Root returns the root of the condition tree, nil for the match-all expression.
func (e *Expression) Root() Node {
	return e.root
}

// Source returns the text the expression was compiled from.
func (e *Expression) Source() string {
	return e.source
}

// IsEmpty reports whether the expression matches everything.
func (e *Expression) IsEmpty() bool {
	return e == nil || e.root == nil
}

// String renders the compiled tree in canonical form.
func (e *Expression) String() string {
	if e.IsEmpty() {
		return ""
	}
	return e.root.String()
}

// Fields returns the distinct fields referenced by the expression.
func (e *Expression) Fields() []string {
	if e.IsEmpty() {
		return nil
	}
	var fields []string
	seen := make(map[string]bool)
	walk(e.root, func(c *Condition) {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	})
	return fields
}

// Evaluate reports whether the accessor satisfies the expression.
// AND stops at the first false child and OR at the first true child.
func (e *Expression) Evaluate(acc FieldValueAccessor) bool {
	if e.IsEmpty() {
		return true
	}
	return e.eval(e.root, acc)
}

func (e *Expression) eval(n Node, acc FieldValueAccessor) bool {
	switch v := n.(type) {
	case *Condition:
		return e.evalCondition(v, acc)
	case *ConditionGroup:
		if v.Operator == LogicalAnd {
			for _, child := range v.Children {
				if !e.eval(child, acc) {
					return false
				}
			}
			return true
		}
		for _, child := range v.Children {
			if e.eval(child, acc) {
				return true
			}
		}
		return false
	case *Negation:
		return !e.eval(v.Child, acc)
	default:
		return false
	}
}

// EvaluateCaptures evaluates the expression and returns the captures of the
// regex predicates that contributed to the match. Conjunctions merge the
// captures of all children; disjunctions keep those of the first true child.
func (e *Expression) EvaluateCaptures(acc FieldValueAccessor) (bool, Captures) {
	if e.IsEmpty() {
		return true, Captures{}
	}
	return e.evalCaptures(e.root, acc)
}

func (e *Expression) evalCaptures(n Node, acc FieldValueAccessor) (bool, Captures) {
	switch v := n.(type) {
	case *Condition:
		if v.Operator != OpMatches {
			return e.evalCondition(v, acc), Captures{}
		}
		m := v.re.FindStringSubmatch(e.fieldValue(v.Field, acc))
		if m == nil {
			return false, Captures{}
		}
		caps := Captures{Groups: m}
		for i, name := range v.re.SubexpNames() {
			if name != "" && i < len(m) {
				if caps.Named == nil {
					caps.Named = make(map[string]string)
				}
				caps.Named[name] = m[i]
			}
		}
		return true, caps
	case *ConditionGroup:
		if v.Operator == LogicalAnd {
			var caps Captures
			for _, child := range v.Children {
				ok, c := e.evalCaptures(child, acc)
				if !ok {
					return false, Captures{}
				}
				caps.merge(c)
			}
			return true, caps
		}
		for _, child := range v.Children {
			if ok, c := e.evalCaptures(child, acc); ok {
				return true, c
			}
		}
		return false, Captures{}
	case *Negation:
		return !e.eval(v.Child, acc), Captures{}
	default:
		return false, Captures{}
	}
}

func (e *Expression) fieldValue(field string, acc FieldValueAccessor) string {
	value, _ := acc.GetFieldValue(field)
	if e.opts.MatchAsASCII {
		return util.FoldASCII(value)
	}
	return value
}

func (e *Expression) evalCondition(c *Condition, acc FieldValueAccessor) bool {
	value := e.fieldValue(c.Field, acc)

	var matched bool
	switch c.Operator.Base() {
	case OpEquals:
		matched = value == c.operand
	case OpContains:
		matched = strings.Contains(value, c.operand)
	case OpStartsWith:
		matched = strings.HasPrefix(value, c.operand)
	case OpEndsWith:
		matched = strings.HasSuffix(value, c.operand)
	case OpMatches:
		matched = c.re.MatchString(value)
	}

	if c.Operator.IsNegated() {
		return !matched
	}
	return matched
}

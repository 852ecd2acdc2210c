package expression

import (
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

// Node is the interface implemented by all condition tree nodes.
// Nodes are immutable once compiled.
type Node interface {
	String() string
	node()
}

// Condition represents a single field comparison.
type Condition struct {
	Field    string         // canonical field name
	Operator FilterOperator // comparison operator
	Value    string         // operand as written
	Pos      int            // byte offset of the field in the source text

	re      *regexp.Regexp // compiled pattern for regex operators
	operand string         // Value, ASCII folded when MatchAsASCII is set
}

func (c *Condition) node() {}

// Pattern returns the compiled regex of a regex condition, or nil.
func (c *Condition) Pattern() *regexp.Regexp {
	return c.re
}

// String renders the condition in canonical form.
func (c *Condition) String() string {
	return c.Field + " " + c.Operator.Symbol() + " " + strconv.Quote(c.Value)
}

// ConditionGroup represents conditions joined by one logical operator.
// A group never directly contains a group with the same operator.
type ConditionGroup struct {
	Operator LogicalOperator
	Children []Node
}

func (g *ConditionGroup) node() {}

// String renders the group in canonical, fully parenthesized form.
func (g *ConditionGroup) String() string {
	parts := make([]string, len(g.Children))
	for i, child := range g.Children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, " "+string(g.Operator)+" ") + ")"
}

// Negation inverts a group. NOT applied to a single condition is folded into
// the condition's operator instead.
type Negation struct {
	Child Node
}

func (n *Negation) node() {}

// String renders the negation.
func (n *Negation) String() string {
	return "NOT " + n.Child.String()
}

// combine joins two nodes with op, splicing in the children of any operand
// that is already a group of the same operator.
func combine(op LogicalOperator, left, right Node) Node {
	group := &ConditionGroup{Operator: op}
	for _, n := range []Node{left, right} {
		if g, ok := n.(*ConditionGroup); ok && g.Operator == op {
			group.Children = append(group.Children, g.Children...)
			continue
		}
		group.Children = append(group.Children, n)
	}
	return group
}

// negate applies NOT to a node.
func negate(n Node) Node {
	switch v := n.(type) {
	case *Condition:
		c := *v
		c.Operator = v.Operator.Negate()
		return &c
	case *Negation:
		return v.Child
	default:
		return &Negation{Child: n}
	}
}

// walk visits every condition in the tree.
func walk(n Node, fn func(*Condition)) {
	switch v := n.(type) {
	case *Condition:
		fn(v)
	case *ConditionGroup:
		for _, child := range v.Children {
			walk(child, fn)
		}
	case *Negation:
		walk(v.Child, fn)
	}
}

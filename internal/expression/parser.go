package expression

import (
	"fmt"

	"github.com/grafana/regexp"

	"github.com/jmylchreest/tvfilter/internal/util"
)

// Parser parses expression tokens into a condition tree.
type Parser struct {
	tokens  []Token
	pos     int
	current Token
	opts    Options
}

// NewParser creates a new parser for the given tokens.
func NewParser(tokens []Token, opts Options) *Parser {
	p := &Parser{
		tokens: tokens,
		opts:   opts,
	}
	if len(tokens) > 0 {
		p.current = tokens[0]
	}
	return p
}

// Parse parses the tokens into a condition tree.
// It returns a nil node for an empty expression.
func (p *Parser) Parse() (Node, error) {
	if p.current.Type == TokenEOF {
		return nil, nil
	}

	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, p.errorf("unexpected token %s", p.current)
	}
	return root, nil
}

// parseOr parses OR-connected conditions.
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		p.advance() // consume OR

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = combine(LogicalOr, left, right)
	}

	return left, nil
}

// parseAnd parses AND-connected conditions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		p.advance() // consume AND

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = combine(LogicalAnd, left, right)
	}

	return left, nil
}

// parseUnary parses a possibly negated condition.
func (p *Parser) parseUnary() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance() // consume NOT
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(n), nil
	}

	return p.parsePrimary()
}

// parsePrimary parses a parenthesized group or a predicate.
func (p *Parser) parsePrimary() (Node, error) {
	if p.current.Type == TokenLParen {
		p.advance() // consume (

		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.current.Type != TokenRParen {
			return nil, p.errorf("expected ')' but got %s", p.current)
		}
		p.advance() // consume )

		return n, nil
	}

	return p.parsePredicate()
}

// parsePredicate parses "field [not] operator value".
func (p *Parser) parsePredicate() (*Condition, error) {
	if p.current.Type != TokenIdent {
		return nil, p.errorf("expected field name but got %s", p.current)
	}
	fieldTok := p.current
	field, ok := CanonicalField(fieldTok.Value)
	if !ok {
		return nil, &UnknownFieldError{Name: fieldTok.Value, Pos: fieldTok.Pos}
	}
	p.advance()

	negated := false
	if p.current.Type == TokenNot {
		negated = true
		p.advance()
	}

	var op FilterOperator
	switch {
	case p.current.Type.isComparison():
		op = symbolOperators[p.current.Type]
	case p.current.Type == TokenIdent:
		op, ok = ParseFilterOperator(p.current.Value)
		if !ok {
			return nil, p.errorf("unknown operator %q", p.current.Value)
		}
	default:
		return nil, p.errorf("expected operator after %s but got %s", field, p.current)
	}
	if negated {
		op = op.Negate()
	}
	p.advance()

	if p.current.Type != TokenString && p.current.Type != TokenIdent {
		return nil, p.errorf("expected value but got %s", p.current)
	}
	valueTok := p.current
	p.advance()

	cond := &Condition{
		Field:    field,
		Operator: op,
		Value:    valueTok.Value,
		Pos:      fieldTok.Pos,
		operand:  valueTok.Value,
	}

	if op.IsRegex() {
		re, err := regexp.Compile(valueTok.Value)
		if err != nil {
			return nil, &InvalidPatternError{Pattern: valueTok.Value, Pos: valueTok.Pos, Err: err}
		}
		cond.re = re
	} else if p.opts.MatchAsASCII {
		cond.operand = util.FoldASCII(valueTok.Value)
	}

	return cond, nil
}

// advance moves to the next token.
func (p *Parser) advance() {
	p.pos++
	if p.pos < len(p.tokens) {
		p.current = p.tokens[p.pos]
	} else {
		p.current = Token{Type: TokenEOF}
	}
}

// errorf creates a syntax error at the current token.
func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Pos:     p.current.Pos,
		Line:    p.current.Line,
		Column:  p.current.Column,
	}
}

// Compile parses expression text into an immutable Expression.
func Compile(input string) (*Expression, error) {
	return CompileWithOptions(input, Options{})
}

// CompileWithOptions parses expression text with evaluation options.
func CompileWithOptions(input string, opts Options) (*Expression, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}

	root, err := NewParser(tokens, opts).Parse()
	if err != nil {
		return nil, err
	}

	return &Expression{
		root:   root,
		source: input,
		opts:   opts,
	}, nil
}

// MustCompile compiles an expression and panics on error.
// Useful for tests and static expressions.
func MustCompile(input string) *Expression {
	expr, err := Compile(input)
	if err != nil {
		panic(fmt.Sprintf("expression compile error: %v", err))
	}
	return expr
}

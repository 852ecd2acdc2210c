package expression

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

// Token types.
const (
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent  // field names, operator keywords, barewords
	TokenString // "quoted string" or 'quoted string'

	// Comparison
	TokenTilde     // ~, =~
	TokenNotTilde  // !~
	TokenEquals    // =, ==
	TokenNotEquals // !=

	// Logical
	TokenAnd // AND, &&
	TokenOr  // OR, ||
	TokenNot // NOT, !

	// Grouping
	TokenLParen // (
	TokenRParen // )
)

// Token represents a lexical token.
type Token struct {
	Type   TokenType
	Value  string
	Pos    int // byte offset in input
	Line   int
	Column int
}

// String returns a string representation of the token.
func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Value)
	default:
		if len(t.Value) > 20 {
			return fmt.Sprintf("%s(%.20s...)", t.Type, t.Value)
		}
		return fmt.Sprintf("%s(%s)", t.Type, t.Value)
	}
}

// String returns the name of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "Error"
	case TokenIdent:
		return "Ident"
	case TokenString:
		return "String"
	case TokenTilde:
		return "Tilde"
	case TokenNotTilde:
		return "NotTilde"
	case TokenEquals:
		return "Equals"
	case TokenNotEquals:
		return "NotEquals"
	case TokenAnd:
		return "And"
	case TokenOr:
		return "Or"
	case TokenNot:
		return "Not"
	case TokenLParen:
		return "LParen"
	case TokenRParen:
		return "RParen"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// LookupKeyword returns the token type for an identifier.
// The logical keywords are matched case-insensitively.
func LookupKeyword(ident string) TokenType {
	switch strings.ToUpper(ident) {
	case "AND":
		return TokenAnd
	case "OR":
		return TokenOr
	case "NOT":
		return TokenNot
	default:
		return TokenIdent
	}
}

// isComparison reports whether the token is a symbolic comparison operator.
func (t TokenType) isComparison() bool {
	switch t {
	case TokenTilde, TokenNotTilde, TokenEquals, TokenNotEquals:
		return true
	default:
		return false
	}
}

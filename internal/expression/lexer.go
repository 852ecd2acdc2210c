package expression

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes an expression string.
type Lexer struct {
	input  string
	pos    int // current position in input
	start  int // start position of current token
	width  int // width of last rune read
	line   int
	column int

	// position of the current token's first rune
	startLine   int
	startColumn int

	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// Tokenize lexes the entire input and returns all tokens.
//
// An unterminated string that follows a regex operator is reported as an
// InvalidPatternError, every other lexical problem as a SyntaxError.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.nextToken()
		if tok.Type == TokenError {
			if tok.Value == msgUnterminatedString && l.afterRegexOperator() {
				return l.tokens, &InvalidPatternError{
					Pattern: l.input[tok.Pos:],
					Pos:     tok.Pos,
					Err:     ErrUnterminatedPattern,
				}
			}
			return l.tokens, &SyntaxError{
				Message: tok.Value,
				Pos:     tok.Pos,
				Line:    tok.Line,
				Column:  tok.Column,
			}
		}
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return l.tokens, nil
}

const msgUnterminatedString = "unterminated string"

// afterRegexOperator reports whether the last emitted token introduces a
// regex operand.
func (l *Lexer) afterRegexOperator() bool {
	if len(l.tokens) == 0 {
		return false
	}
	prev := l.tokens[len(l.tokens)-1]
	switch prev.Type {
	case TokenTilde, TokenNotTilde:
		return true
	case TokenIdent:
		op, ok := ParseFilterOperator(prev.Value)
		return ok && op.IsRegex()
	default:
		return false
	}
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	l.start = l.pos
	l.startLine = l.line
	l.startColumn = l.column

	if l.pos >= len(l.input) {
		return l.makeToken(TokenEOF, "")
	}

	ch := l.next()

	switch {
	case ch == '(':
		return l.makeToken(TokenLParen, "(")
	case ch == ')':
		return l.makeToken(TokenRParen, ")")
	case ch == '~':
		return l.makeToken(TokenTilde, "~")
	case ch == '=':
		switch l.peek() {
		case '=':
			l.next()
			return l.makeToken(TokenEquals, "==")
		case '~':
			l.next()
			return l.makeToken(TokenTilde, "=~")
		}
		return l.makeToken(TokenEquals, "=")
	case ch == '!':
		switch l.peek() {
		case '=':
			l.next()
			return l.makeToken(TokenNotEquals, "!=")
		case '~':
			l.next()
			return l.makeToken(TokenNotTilde, "!~")
		}
		return l.makeToken(TokenNot, "!")
	case ch == '&':
		if l.peek() == '&' {
			l.next()
			return l.makeToken(TokenAnd, "&&")
		}
		return l.makeErrorToken("unexpected character '&'")
	case ch == '|':
		if l.peek() == '|' {
			l.next()
			return l.makeToken(TokenOr, "||")
		}
		return l.makeErrorToken("unexpected character '|'")
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	case isIdentPart(ch):
		l.backup()
		return l.scanIdent()
	default:
		return l.makeErrorToken("unexpected character '" + string(ch) + "'")
	}
}

// scanString scans a quoted string. Backslashes are kept verbatim so regex
// escapes such as \d survive; only an escaped quote is unescaped.
func (l *Lexer) scanString(quote rune) Token {
	var sb strings.Builder

	for {
		if l.pos >= len(l.input) {
			return l.makeErrorToken(msgUnterminatedString)
		}
		ch := l.next()
		if ch == quote {
			break
		}
		if ch == '\\' && l.peek() == quote {
			l.next()
			sb.WriteRune(quote)
			continue
		}
		if ch == '\\' && l.peek() == '\\' {
			// keep the pair so \\" is an escaped backslash followed by the closing quote
			l.next()
			sb.WriteString(`\\`)
			continue
		}
		sb.WriteRune(ch)
	}

	return l.makeToken(TokenString, sb.String())
}

// scanIdent scans an identifier, keyword or bareword operand.
func (l *Lexer) scanIdent() Token {
	for isIdentPart(l.peek()) {
		l.next()
	}

	value := l.input[l.start:l.pos]
	return l.makeToken(LookupKeyword(value), value)
}

// next returns the next rune and advances the position.
func (l *Lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w

	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	return r
}

// backup steps back one rune. It is only used on the first rune of a token.
func (l *Lexer) backup() {
	l.pos -= l.width
	l.line = l.startLine
	l.column = l.startColumn
}

// peek returns the next rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// skipWhitespace skips whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.peek()) {
		l.next()
	}
}

// makeToken creates a token positioned at the start of the current lexeme.
func (l *Lexer) makeToken(typ TokenType, value string) Token {
	return Token{
		Type:   typ,
		Value:  value,
		Pos:    l.start,
		Line:   l.startLine,
		Column: l.startColumn,
	}
}

// makeErrorToken creates an error token.
func (l *Lexer) makeErrorToken(msg string) Token {
	return Token{
		Type:   TokenError,
		Value:  msg,
		Pos:    l.start,
		Line:   l.startLine,
		Column: l.startColumn,
	}
}

// isIdentPart returns true if the rune can be part of an identifier or bareword.
func isIdentPart(ch rune) bool {
	if ch == 0 {
		return false
	}
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '-' || ch == '.' || ch == ':' || ch == '/'
}

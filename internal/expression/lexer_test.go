package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "regex predicate",
			input: `Group ~ "(?i)^DE"`,
			want:  []TokenType{TokenIdent, TokenTilde, TokenString, TokenEOF},
		},
		{
			name:  "symbolic operators",
			input: `= == != !~ =~ ! && ||`,
			want: []TokenType{
				TokenEquals, TokenEquals, TokenNotEquals, TokenNotTilde,
				TokenTilde, TokenNot, TokenAnd, TokenOr, TokenEOF,
			},
		},
		{
			name:  "case-insensitive keywords",
			input: `and Or NOT`,
			want:  []TokenType{TokenAnd, TokenOr, TokenNot, TokenEOF},
		},
		{
			name:  "parentheses and bareword",
			input: `(kind = live)`,
			want:  []TokenType{TokenLParen, TokenIdent, TokenEquals, TokenIdent, TokenRParen, TokenEOF},
		},
		{
			name:  "single quoted string",
			input: `name = 'BBC One'`,
			want:  []TokenType{TokenIdent, TokenEquals, TokenString, TokenEOF},
		},
		{
			name:  "empty input",
			input: "   ",
			want:  []TokenType{TokenEOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewLexer(tt.input).Tokenize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, tokenTypes(tokens))
		})
	}
}

func TestLexer_StringKeepsBackslashes(t *testing.T) {
	tokens, err := NewLexer(`name ~ "^\d+\s\"x\"$"`).Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, `^\d+\s"x"$`, tokens[2].Value)
}

func TestLexer_SymbolsInsideStringsAreLiteral(t *testing.T) {
	tokens, err := NewLexer(`name = "a && b || !c ~ (d)"`).Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, 4)
	assert.Equal(t, "a && b || !c ~ (d)", tokens[2].Value)
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := NewLexer("group ~ \"x\"\n  AND name = y").Tokenize()
	require.NoError(t, err)

	and := tokens[3]
	assert.Equal(t, TokenAnd, and.Type)
	assert.Equal(t, 2, and.Line)
	assert.Equal(t, 3, and.Column)
	assert.Equal(t, 14, and.Pos)
}

func TestLexer_Errors(t *testing.T) {
	t.Run("unexpected character", func(t *testing.T) {
		_, err := NewLexer(`name = a & b`).Tokenize()
		var syntaxErr *SyntaxError
		require.ErrorAs(t, err, &syntaxErr)
		assert.Equal(t, 9, syntaxErr.Pos)
	})

	t.Run("unterminated equality string", func(t *testing.T) {
		_, err := NewLexer(`name = "abc`).Tokenize()
		var syntaxErr *SyntaxError
		require.ErrorAs(t, err, &syntaxErr)
		assert.Contains(t, syntaxErr.Message, "unterminated")
	})

	t.Run("unterminated regex is an invalid pattern", func(t *testing.T) {
		_, err := NewLexer(`group ~ "(?i)^DE`).Tokenize()
		var patternErr *InvalidPatternError
		require.ErrorAs(t, err, &patternErr)
		assert.True(t, errors.Is(err, ErrUnterminatedPattern))
		assert.Equal(t, 8, patternErr.Pos)
	})

	t.Run("unterminated matches keyword operand", func(t *testing.T) {
		_, err := NewLexer(`title matches 'abc`).Tokenize()
		var patternErr *InvalidPatternError
		require.ErrorAs(t, err, &patternErr)
	})
}

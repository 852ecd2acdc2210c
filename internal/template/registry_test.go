package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/expression"
	"github.com/jmylchreest/tvfilter/internal/models"
)

func newTestRegistry(t *testing.T, pairs ...string) *Registry {
	t.Helper()
	r := NewRegistry(0)
	for i := 0; i+1 < len(pairs); i += 2 {
		require.NoError(t, r.Register(pairs[i], pairs[i+1]))
	}
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register("DE_CHAN", `group ~ "^DE"`))

	t.Run("duplicate name", func(t *testing.T) {
		err := r.Register("DE_CHAN", `group ~ "x"`)
		var dupErr *DuplicateNameError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "DE_CHAN", dupErr.Name)

		fragment, _ := r.Lookup("DE_CHAN")
		assert.Equal(t, `group ~ "^DE"`, fragment)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "DE-CHAN", "DE CHAN", "DE!"} {
			assert.ErrorIs(t, r.Register(name, "x"), ErrInvalidName, name)
		}
	})

	assert.Equal(t, []string{"DE_CHAN"}, r.Names())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t,
		"DE", `group ~ "^DE"`,
		"NEWS", `group ~ "News" OR name contains "News"`,
		"DE_NEWS", `!DE! AND !NEWS!`,
	)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no references", `name = x`, `name = x`},
		{"single reference", `!DE!`, `(group ~ "^DE")`},
		{"nested reference", `!DE_NEWS!`, `((group ~ "^DE") AND (group ~ "News" OR name contains "News"))`},
		{"negation symbol kept", `!DE! AND !(name = x) AND name != y`, `(group ~ "^DE") AND !(name = x) AND name != y`},
		{"reference inside double quotes untouched", `name = "!DE!" OR !DE!`, `name = "!DE!" OR (group ~ "^DE")`},
		{"reference inside single quotes untouched", `name = '!DE!'`, `name = '!DE!'`},
		{"escaped quote inside literal", `name = "a\"!DE!"`, `name = "a\"!DE!"`},
		{"lone bang", `name = a !`, `name = a !`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Unresolved(t *testing.T) {
	r := newTestRegistry(t, "A", `!MISSING! OR name = x`)

	_, err := r.Resolve(`!A!`)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "MISSING", unresolved.Name)
	assert.Equal(t, []string{"A"}, unresolved.Chain)
}

func TestRegistry_Cycle(t *testing.T) {
	r := newTestRegistry(t,
		"A", `!B! OR name = a`,
		"B", `!C!`,
		"C", `!A! AND name = c`,
	)

	_, err := r.Resolve(`kind = live AND !A!`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCyclicOrExcessiveExpansion))

	var expErr *ExpansionError
	require.ErrorAs(t, err, &expErr)
	assert.True(t, expErr.Cyclic)
	assert.Equal(t, []string{"A", "B", "C", "A"}, expErr.Chain)
	assert.Contains(t, err.Error(), "A -> B -> C -> A")
}

func TestRegistry_SelfReference(t *testing.T) {
	r := newTestRegistry(t, "SELF", `!SELF!`)
	err := r.Validate()

	var expErr *ExpansionError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, []string{"SELF", "SELF"}, expErr.Chain)
}

func TestRegistry_DepthBound(t *testing.T) {
	r := NewRegistry(3)
	require.NoError(t, r.Register("L1", `!L2!`))
	require.NoError(t, r.Register("L2", `!L3!`))
	require.NoError(t, r.Register("L3", `name = x`))
	require.NoError(t, r.Register("L0", `!L1!`))

	got, err := r.Resolve(`!L1!`)
	require.NoError(t, err)
	assert.Equal(t, `(((name = x)))`, got)

	_, err = r.Resolve(`!L0!`)
	var expErr *ExpansionError
	require.ErrorAs(t, err, &expErr)
	assert.False(t, expErr.Cyclic)
	assert.Equal(t, []string{"L0", "L1", "L2", "L3"}, expErr.Chain)
	assert.ErrorIs(t, err, ErrCyclicOrExcessiveExpansion)
}

func TestRegistry_ValidateReportsUnusedCycle(t *testing.T) {
	r := newTestRegistry(t,
		"OK", `name = x`,
		"X", `!Y!`,
		"Y", `!X!`,
	)
	assert.ErrorIs(t, r.Validate(), ErrCyclicOrExcessiveExpansion)
}

func TestTemplateChainFlattensToSingleDisjunction(t *testing.T) {
	r := newTestRegistry(t,
		"DE_CHAN", `Group ~ "(?i)^.DE.*Serien.*"`,
		"TR_CHAN", `Group ~ "(?i)^.TR.*Filme.*"`,
		"FR_CHAN", `Group ~ "(?i)^FR" OR Name ~ "(?i)\bfrance\b"`,
		"ALL_CHAN", `!DE_CHAN! OR !TR_CHAN! OR !FR_CHAN!`,
	)

	resolved, err := r.Resolve(`!ALL_CHAN!`)
	require.NoError(t, err)

	templated, err := expression.Compile(resolved)
	require.NoError(t, err)
	inlined, err := expression.Compile(
		`Group ~ "(?i)^.DE.*Serien.*" OR Group ~ "(?i)^.TR.*Filme.*" OR Group ~ "(?i)^FR" OR Name ~ "(?i)\bfrance\b"`,
	)
	require.NoError(t, err)

	group, ok := templated.Root().(*expression.ConditionGroup)
	require.True(t, ok)
	assert.Equal(t, expression.LogicalOr, group.Operator)
	assert.Len(t, group.Children, 4)
	for _, child := range group.Children {
		assert.IsType(t, &expression.Condition{}, child)
	}
	assert.Equal(t, inlined.String(), templated.String())

	channels := []*models.Channel{
		{Name: "Serie 1", Group: "|DE| Serien HD"},
		{Name: "Film", Group: "|tr| filme action"},
		{Name: "Movie", Group: "FR Movies"},
		{Name: "TV France 2", Group: "Misc"},
		{Name: "BBC One", Group: "UK General"},
		{Name: "Serien", Group: "DE Serien"},
	}
	for _, ch := range channels {
		assert.Equal(t, inlined.Evaluate(ch), templated.Evaluate(ch), ch.Group)
	}
	assert.True(t, templated.Evaluate(channels[0]))
	assert.False(t, templated.Evaluate(channels[4]))
}

func TestTemplatePrecedencePreserved(t *testing.T) {
	r := newTestRegistry(t, "NEWS", `group = News OR group = Sport`)

	resolved, err := r.Resolve(`kind = live AND !NEWS!`)
	require.NoError(t, err)
	expr, err := expression.Compile(resolved)
	require.NoError(t, err)

	ch := &models.Channel{Group: "Sport", Kind: models.ChannelKindVideo}
	assert.False(t, expr.Evaluate(ch))
}

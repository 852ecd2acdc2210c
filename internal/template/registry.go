// Package template expands named filter fragments into expression text.
//
// A reference is written !NAME! and is replaced by the fragment registered
// under NAME, wrapped in parentheses so the fragment keeps its own
// precedence. References inside quoted strings are left alone. Expansion is
// purely textual and happens before the expression is compiled.
package template

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultMaxDepth bounds the length of a reference chain.
const DefaultMaxDepth = 16

// Sentinel errors.
var (
	// ErrInvalidName is returned for names outside [A-Za-z0-9_]+.
	ErrInvalidName = errors.New("invalid template name")

	// ErrCyclicOrExcessiveExpansion is wrapped by ExpansionError.
	ErrCyclicOrExcessiveExpansion = errors.New("cyclic or excessive template expansion")
)

// DuplicateNameError is returned when a name is registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate template name %q", e.Name)
}

// UnresolvedError is returned for a reference to an unregistered template.
type UnresolvedError struct {
	Name  string
	Chain []string // templates being expanded when the reference was found
}

func (e *UnresolvedError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("unresolved template reference !%s!", e.Name)
	}
	return fmt.Sprintf("unresolved template reference !%s! in %s", e.Name, strings.Join(e.Chain, " -> "))
}

// ExpansionError names the reference chain that could not be expanded.
type ExpansionError struct {
	Chain  []string
	Cyclic bool
	Depth  int
}

func (e *ExpansionError) Error() string {
	chain := strings.Join(e.Chain, " -> ")
	if e.Cyclic {
		return fmt.Sprintf("cyclic template reference: %s", chain)
	}
	return fmt.Sprintf("template expansion exceeds depth %d: %s", e.Depth, chain)
}

func (e *ExpansionError) Unwrap() error {
	return ErrCyclicOrExcessiveExpansion
}

// Registry holds named fragments. It is populated while a catalog loads and
// only read afterwards.
type Registry struct {
	templates map[string]string
	order     []string
	maxDepth  int
}

// NewRegistry creates an empty registry. A maxDepth below one selects
// DefaultMaxDepth.
func NewRegistry(maxDepth int) *Registry {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Registry{
		templates: make(map[string]string),
		maxDepth:  maxDepth,
	}
}

// Register adds a fragment under name.
func (r *Registry) Register(name, fragment string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, exists := r.templates[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	r.templates[name] = fragment
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the raw fragment registered under name.
func (r *Registry) Lookup(name string) (string, bool) {
	f, ok := r.templates[name]
	return f, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.order)
}

// Resolve expands every reference in text.
func (r *Registry) Resolve(text string) (string, error) {
	return r.expand(text, nil)
}

// Validate expands every registered template once so that cycles and
// unresolved references surface even when no filter uses them.
func (r *Registry) Validate() error {
	for _, name := range r.order {
		if _, err := r.expand("!"+name+"!", nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) expand(text string, chain []string) (string, error) {
	if !strings.Contains(text, "!") {
		return text, nil
	}

	var sb strings.Builder
	sb.Grow(len(text))

	var quote byte
	for i := 0; i < len(text); i++ {
		ch := text[i]

		if quote != 0 {
			sb.WriteByte(ch)
			switch {
			case ch == '\\' && i+1 < len(text):
				i++
				sb.WriteByte(text[i])
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
			sb.WriteByte(ch)
			continue
		case '!':
			name, end := scanReference(text, i)
			if name == "" {
				sb.WriteByte(ch)
				continue
			}
			sub, err := r.substitute(name, chain)
			if err != nil {
				return "", err
			}
			sb.WriteByte('(')
			sb.WriteString(sub)
			sb.WriteByte(')')
			i = end
			continue
		}
		sb.WriteByte(ch)
	}

	return sb.String(), nil
}

func (r *Registry) substitute(name string, chain []string) (string, error) {
	next := append(slices.Clone(chain), name)

	if slices.Contains(chain, name) {
		return "", &ExpansionError{Chain: next, Cyclic: true, Depth: r.maxDepth}
	}
	if len(next) > r.maxDepth {
		return "", &ExpansionError{Chain: next, Depth: r.maxDepth}
	}

	fragment, ok := r.templates[name]
	if !ok {
		return "", &UnresolvedError{Name: name, Chain: chain}
	}
	return r.expand(fragment, next)
}

// scanReference reads "!NAME!" starting at text[start]. It returns the name
// and the index of the closing '!', or an empty name when no reference
// starts there.
func scanReference(text string, start int) (string, int) {
	j := start + 1
	for j < len(text) && isNameChar(text[j]) {
		j++
	}
	if j == start+1 || j >= len(text) || text[j] != '!' {
		return "", start
	}
	return text[start+1 : j], j
}

// ValidName reports whether name is a valid template name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return true
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

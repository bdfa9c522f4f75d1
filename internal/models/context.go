package models

import "strings"

// Context is the thematic domain a session plays in. It selects both the
// scenario sequence and the weight table row.
type Context string

const (
	ContextBusiness   Context = "business"
	ContextPhilosophy Context = "philosophy"
	ContextScience    Context = "science"
	ContextPolicy     Context = "policy"
)

// Contexts lists every context in catalog order.
var Contexts = []Context{ContextBusiness, ContextPhilosophy, ContextScience, ContextPolicy}

// ParseContext validates s against the closed set of contexts.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseContext(s string) (Context, error) {
	c := Context(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &InvalidContextError{Value: s}
	}
	return c, nil
}

// Valid reports whether c is one of the known contexts.
func (c Context) Valid() bool {
	return c.Index() >= 0
}

// Index returns the ordinal of c in Contexts, or -1 if c is unknown.
func (c Context) Index() int {
	for i, known := range Contexts {
		if c == known {
			return i
		}
	}
	return -1
}

func (c Context) String() string {
	return string(c)
}

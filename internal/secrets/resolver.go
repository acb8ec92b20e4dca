package secrets

import (
	"os"
	"strings"
)

// DefaultPrefix marks a stored value as a reference to a named variable.
const DefaultPrefix = "ENV_"

// LookupFunc returns the value of a named variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// Resolution is the outcome of resolving a possibly-indirected secret.
type Resolution struct {
	Value string
	// Ref is the referenced variable name, empty for literal values.
	Ref   string
	Found bool
}

// IsReference reports whether the value was an indirection.
func (r Resolution) IsReference() bool {
	return r.Ref != ""
}

// Missing reports an indirection whose variable was not set.
func (r Resolution) Missing() bool {
	return r.Ref != "" && !r.Found
}

type Resolver struct {
	prefix string
	lookup LookupFunc
}

// NewResolver uses os.LookupEnv when lookup is nil and DefaultPrefix when
// prefix is empty.
func NewResolver(prefix string, lookup LookupFunc) *Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Resolver{prefix: prefix, lookup: lookup}
}

// Resolve substitutes "ENV_NAME" with the current value of NAME. A missing
// variable yields an empty value; it is up to the caller whether that is fatal.
func (r *Resolver) Resolve(value string) Resolution {
	if !strings.HasPrefix(value, r.prefix) {
		return Resolution{Value: value, Found: true}
	}
	name := strings.TrimPrefix(value, r.prefix)
	v, ok := r.lookup(name)
	if !ok {
		return Resolution{Ref: name}
	}
	return Resolution{Value: v, Ref: name, Found: true}
}

// MapLookup is a LookupFunc over a fixed map, used for explicit configuration.
func MapLookup(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Package hotspot implements the hot-code frequency profile: exact concurrent
// occurrence counting over code unit keys with a fixed capacity, Space-Saving
// displacement once the capacity is reached, and deterministic ranked
// retrieval of the most frequently observed units.
package hotspot

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for malformed inputs: empty key fields,
// non-positive capacities, negative ranking limits. Callers match it with
// errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// Key identifies a code unit: a type (or package) name plus a signature
// within it. Keys are immutable values with structural equality, usable
// directly as map keys.
type Key struct {
	Type      string
	Signature string
}

// NewKey builds a Key, rejecting empty components.
func NewKey(typ, sig string) (Key, error) {
	if typ == "" {
		return Key{}, fmt.Errorf("%w: empty key type", ErrInvalidArgument)
	}
	if sig == "" {
		return Key{}, fmt.Errorf("%w: empty key signature", ErrInvalidArgument)
	}
	return Key{Type: typ, Signature: sig}, nil
}

// Compare orders keys by Type, then Signature, both lexicographic. The order
// is used for deterministic tie-breaks only; ranking is always by count.
func (k Key) Compare(other Key) int {
	if c := strings.Compare(k.Type, other.Type); c != 0 {
		return c
	}
	return strings.Compare(k.Signature, other.Signature)
}

// String renders the key as Type.Signature, matching Go's package-qualified
// function naming.
func (k Key) String() string {
	return k.Type + "." + k.Signature
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.Type == "" && k.Signature == ""
}

// valid reports whether both components are present. A Key built through
// NewKey is always valid; zero or hand-assembled partial keys are not.
func (k Key) valid() bool {
	return k.Type != "" && k.Signature != ""
}

package hotspot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey("net/http", "ServeMux.ServeHTTP")
	require.NoError(t, err)
	assert.Equal(t, "net/http", key.Type)
	assert.Equal(t, "ServeMux.ServeHTTP", key.Signature)
	assert.False(t, key.IsZero())
}

func TestNewKey_EmptyComponents(t *testing.T) {
	_, err := NewKey("", "Run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewKey("net/http", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewKey("", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestKey_StructuralEquality(t *testing.T) {
	a, err := NewKey("runtime", "gcBgMarkWorker")
	require.NoError(t, err)
	b, err := NewKey("runtime", "gcBgMarkWorker")
	require.NoError(t, err)

	assert.Equal(t, a, b)

	// Separately constructed equal keys land in the same map slot.
	counts := map[Key]int{a: 1}
	counts[b]++
	assert.Len(t, counts, 1)
	assert.Equal(t, 2, counts[a])
}

func TestKey_Compare(t *testing.T) {
	a := Key{Type: "app/worker", Signature: "Run"}
	b := Key{Type: "app/worker", Signature: "Stop"}
	c := Key{Type: "net/http", Signature: "Get"}

	// Type is the primary component.
	assert.Negative(t, a.Compare(c))
	assert.Positive(t, c.Compare(a))

	// Signature breaks ties within a type.
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))

	assert.Zero(t, a.Compare(a))
}

func TestKey_String(t *testing.T) {
	key := Key{Type: "database/sql", Signature: "DB.QueryContext"}
	assert.Equal(t, "database/sql.DB.QueryContext", key.String())
}

func TestKey_IsZero(t *testing.T) {
	assert.True(t, Key{}.IsZero())
	assert.False(t, Key{Type: "runtime"}.IsZero())
	assert.False(t, Key{Signature: "main"}.IsZero())
}

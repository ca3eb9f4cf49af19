package kvp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_NilAndEmptyEqual(t *testing.T) {
	assert.Equal(t, 0, Compare(nil, Frame{}))
	assert.True(t, Equal(nil, nil))
}

func TestCompare_Ordering(t *testing.T) {
	a := NewFrame(P("k", String("a")))
	b := NewFrame(P("k", String("b")))

	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.False(t, Equal(a, b))
	assert.True(t, Equal(a, NewFrame(P("k", String("a")))))
}

func TestClone_Deep(t *testing.T) {
	orig := NewFrame(
		P("list", List{String("x")}),
		P("inner", NewFrame(P("k", Int(1)))),
	)
	cp := orig.Clone()
	require.True(t, Equal(orig, cp))

	cp["inner"].(Frame)["k"] = Int(2)
	cp["list"].(List)[0] = String("y")

	assert.Equal(t, Int(1), orig["inner"].(Frame)["k"])
	assert.Equal(t, String("x"), orig["list"].(List)[0])
	assert.Nil(t, Frame(nil).Clone())
}

func TestHash_StableAndDomainSeparated(t *testing.T) {
	f := NewFrame(P("a", Int(1)), P("b", String("x")))
	h1, err := Hash(f)
	require.NoError(t, err)
	h2, err := Hash(NewFrame(P("b", String("x")), P("a", Int(1))))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	empty, err := Hash(nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, empty)
}

package registry

import (
	"testing"

	"github.com/roach88/splitledger/internal/guid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct{ name string }

func TestRegistry_StoreLookupRemove(t *testing.T) {
	r := New()
	id := guid.MustParse("00000000-0000-0000-0000-000000000001")
	e := &fakeEntity{name: "t1"}

	require.NoError(t, r.Store(e, id, TagTransaction))
	got, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Same(t, e, got)

	tag, ok := r.TagOf(id)
	require.True(t, ok)
	assert.Equal(t, TagTransaction, tag)

	r.Remove(id)
	_, ok = r.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// Removing twice is harmless.
	r.Remove(id)
}

func TestRegistry_LookupTag(t *testing.T) {
	r := New()
	id := guid.MustParse("00000000-0000-0000-0000-000000000002")
	require.NoError(t, r.Store(&fakeEntity{}, id, TagSplit))

	_, ok := r.LookupTag(id, TagTransaction)
	assert.False(t, ok)

	_, ok = r.LookupTag(id, TagSplit)
	assert.True(t, ok)
}

func TestRegistry_StoreReplaces(t *testing.T) {
	r := New()
	id := guid.MustParse("00000000-0000-0000-0000-000000000003")
	first := &fakeEntity{name: "first"}
	second := &fakeEntity{name: "second"}

	require.NoError(t, r.Store(first, id, TagSplit))
	require.NoError(t, r.Store(second, id, TagSplit))

	got, _ := r.Lookup(id)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RejectsNullAndNil(t *testing.T) {
	r := New()
	assert.Error(t, r.Store(&fakeEntity{}, guid.Null, TagSplit))
	assert.Error(t, r.Store(nil, guid.New(), TagSplit))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Count(t *testing.T) {
	r := New()
	gen := guid.NewSequenceGenerator(1)
	require.NoError(t, r.Store(&fakeEntity{}, gen.Generate(), TagTransaction))
	require.NoError(t, r.Store(&fakeEntity{}, gen.Generate(), TagSplit))
	require.NoError(t, r.Store(&fakeEntity{}, gen.Generate(), TagSplit))

	assert.Equal(t, 1, r.Count(TagTransaction))
	assert.Equal(t, 2, r.Count(TagSplit))
	assert.Equal(t, 3, r.Len())
}

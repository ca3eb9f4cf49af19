package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/kvp"
)

func TestNewBook_Deterministic(t *testing.T) {
	run := func() ([]byte, string) {
		b, journal := NewBook()
		ctx := context.Background()

		tx := b.NewTransaction()
		require.NoError(t, tx.BeginEdit(ctx, false))
		require.NoError(t, tx.SetDescription("coffee"))
		require.NoError(t, tx.AppendSplit(b.NewSplit()))
		require.NoError(t, tx.CommitEdit(ctx))

		doc, err := kvp.MarshalCanonical(tx.Snapshot().Document())
		require.NoError(t, err)
		return doc, journal.Kinds()
	}

	doc1, kinds1 := run()
	doc2, kinds2 := run()
	assert.Equal(t, string(doc1), string(doc2))
	assert.Equal(t, "BC", kinds1)
	assert.Equal(t, kinds1, kinds2)
}

func TestNewBook_OptionsOverride(t *testing.T) {
	b, _ := NewBook(engine.WithForceDoubleEntry(engine.DoubleEntryMirror))
	assert.Equal(t, int(engine.DoubleEntryMirror), b.ForceDoubleEntry())

	tx := b.NewTransaction()
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", tx.GUID().String())

	require.NoError(t, tx.BeginEdit(context.Background(), false))
	require.NoError(t, tx.SetDateToday())
	assert.Equal(t, Epoch, tx.DatePosted())
}

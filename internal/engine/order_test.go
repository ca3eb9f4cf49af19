package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTx returns an open transaction with the given posted date and num.
func openTx(t *testing.T, b *Book, posted time.Time, num string) *Transaction {
	t.Helper()
	tx := b.NewTransaction()
	require.NoError(t, tx.BeginEdit(context.Background(), false))
	require.NoError(t, tx.SetDatePosted(posted))
	require.NoError(t, tx.SetNum(num))
	return tx
}

func TestCompareTransactions(t *testing.T) {
	b, _ := newTestBook(t)
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("date posted first", func(t *testing.T) {
		early := openTx(t, b, jan, "9")
		late := openTx(t, b, feb, "1")
		assert.Equal(t, -1, CompareTransactions(early, late))
		assert.Equal(t, 1, CompareTransactions(late, early))
	})

	t.Run("then num", func(t *testing.T) {
		a := openTx(t, b, jan, "100")
		c := openTx(t, b, jan, "200")
		assert.Equal(t, -1, CompareTransactions(a, c))
	})

	t.Run("then date entered", func(t *testing.T) {
		a := openTx(t, b, jan, "1")
		c := openTx(t, b, jan, "1")
		require.NoError(t, a.SetDateEntered(feb))
		require.NoError(t, c.SetDateEntered(jan))
		assert.Equal(t, 1, CompareTransactions(a, c))
	})

	t.Run("then description", func(t *testing.T) {
		a := openTx(t, b, jan, "1")
		c := openTx(t, b, jan, "1")
		require.NoError(t, a.SetDescription("rent"))
		require.NoError(t, c.SetDescription("groceries"))
		assert.Equal(t, 1, CompareTransactions(a, c))
	})

	t.Run("guid breaks ties", func(t *testing.T) {
		first := openTx(t, b, jan, "1")
		second := openTx(t, b, jan, "1")
		assert.Equal(t, -1, CompareTransactions(first, second))
		assert.Equal(t, 1, CompareTransactions(second, first))
		assert.Equal(t, 0, CompareTransactions(first, first))
	})

	t.Run("sub-second precision", func(t *testing.T) {
		a := openTx(t, b, jan.Add(time.Millisecond), "1")
		c := openTx(t, b, jan.Add(2*time.Millisecond), "1")
		assert.Equal(t, -1, CompareTransactions(a, c))
	})

	t.Run("nil sorts first", func(t *testing.T) {
		a := openTx(t, b, jan, "1")
		assert.Equal(t, -1, CompareTransactions(nil, a))
		assert.Equal(t, 1, CompareTransactions(a, nil))
		assert.Equal(t, 0, CompareTransactions(nil, nil))
	})
}

func TestSortTransactions(t *testing.T) {
	b, _ := newTestBook(t)
	d := func(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }

	third := openTx(t, b, d(3), "")
	first := openTx(t, b, d(1), "")
	second := openTx(t, b, d(2), "")

	ts := []*Transaction{third, first, second}
	SortTransactions(ts)
	assert.Equal(t, []*Transaction{first, second, third}, ts)
}

func TestCompareSplits_ReconcileOrdinal(t *testing.T) {
	b, _ := newTestBook(t)
	mk := func(r ReconcileState) *Split {
		s := b.NewSplit()
		require.NoError(t, s.SetReconcile(r))
		return s
	}
	frozen, reconciled, cleared, open := mk(Frozen), mk(Reconciled), mk(Cleared), mk(NotReconciled)

	ss := []*Split{frozen, reconciled, cleared, open}
	SortSplits(ss)
	assert.Equal(t, []*Split{open, cleared, reconciled, frozen}, ss)
}

func TestCompareSplits_Fields(t *testing.T) {
	b, _ := newTestBook(t)

	t.Run("memo before action", func(t *testing.T) {
		a, c := b.NewSplit(), b.NewSplit()
		require.NoError(t, a.SetMemo("a"))
		require.NoError(t, a.SetAction("z"))
		require.NoError(t, c.SetMemo("b"))
		require.NoError(t, c.SetAction("a"))
		assert.Equal(t, -1, CompareSplits(a, c))
	})

	t.Run("quantity before value", func(t *testing.T) {
		a, c := b.NewSplit(), b.NewSplit()
		a.SetQuantityDirectly(dec("1"))
		a.SetValueDirectly(dec("500"))
		c.SetQuantityDirectly(dec("2"))
		c.SetValueDirectly(dec("1"))
		assert.Equal(t, -1, CompareSplits(a, c))
	})

	t.Run("parent transaction first", func(t *testing.T) {
		early := openTx(t, b, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "")
		late := openTx(t, b, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "")
		a, c := b.NewSplit(), b.NewSplit()
		require.NoError(t, a.SetMemo("z"))
		require.NoError(t, early.AppendSplit(a))
		require.NoError(t, late.AppendSplit(c))
		assert.Equal(t, -1, CompareSplits(a, c))
	})

	t.Run("guid breaks ties", func(t *testing.T) {
		a, c := b.NewSplit(), b.NewSplit()
		assert.Equal(t, -1, CompareSplits(a, c))
		assert.Equal(t, 1, CompareSplits(c, a))
	})

	t.Run("nil sorts first", func(t *testing.T) {
		assert.Equal(t, -1, CompareSplits(nil, b.NewSplit()))
	})
}

package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/guid"
)

func newBook() *engine.Book {
	return engine.NewBook(
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithGUIDGenerator(guid.NewSequenceGenerator(1)),
	)
}

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func mustAccount(t *testing.T, g *Group, name string) *Account {
	t.Helper()
	a, err := g.NewAccount(name, commodity.MustISO("USD"), nil)
	require.NoError(t, err)
	return a
}

// post commits amount from -> to on the given date and returns the
// transaction with its two splits.
func post(t *testing.T, b *engine.Book, from, to *Account, amount string, posted time.Time) (*engine.Transaction, *engine.Split, *engine.Split) {
	t.Helper()
	ctx := context.Background()
	tx := b.NewTransaction()
	require.NoError(t, tx.BeginEdit(ctx, false))
	require.NoError(t, tx.SetDatePosted(posted))

	s1, s2 := b.NewSplit(), b.NewSplit()
	require.NoError(t, s1.SetAccount(from))
	require.NoError(t, s2.SetAccount(to))
	require.NoError(t, tx.AppendSplit(s1))
	require.NoError(t, tx.AppendSplit(s2))
	require.NoError(t, s1.SetValue(decimal.RequireFromString(amount)))
	require.NoError(t, tx.CommitEdit(ctx))
	return tx, s1, s2
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestNew_Validates(t *testing.T) {
	_, err := New("", commodity.MustISO("USD"), nil)
	assert.Error(t, err)

	_, err = New("Cash", nil, nil)
	assert.Error(t, err)

	a, err := New("Cash", commodity.MustISO("USD"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Cash", a.Name())
	assert.Nil(t, a.Security())
	assert.Nil(t, a.Group())
}

func TestGroup_NewAccount(t *testing.T) {
	g := NewGroup()
	assert.True(t, g.IsSaved())

	b := mustAccount(t, g, "B")
	a := mustAccount(t, g, "A")
	assert.False(t, g.IsSaved())
	assert.Same(t, g, a.Group())

	_, err := g.NewAccount("A", commodity.MustISO("USD"), nil)
	assert.Error(t, err, "duplicate name")

	got, ok := g.Lookup("B")
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, []*Account{a, b}, g.Accounts())
}

func TestGroup_TracksUnsavedChanges(t *testing.T) {
	g := NewGroup()
	checking, groceries := mustAccount(t, g, "Checking"), mustAccount(t, g, "Groceries")
	g.MarkSaved()

	post(t, newBook(), checking, groceries, "10", day(time.January, 1))
	assert.False(t, g.IsSaved())
}

func TestAccount_RunningBalances(t *testing.T) {
	g := NewGroup()
	checking, groceries := mustAccount(t, g, "Checking"), mustAccount(t, g, "Groceries")
	b := newBook()

	// Posted out of order; the account keeps date order.
	_, feb, _ := post(t, b, checking, groceries, "50", day(time.February, 1))
	_, jan, _ := post(t, b, checking, groceries, "100", day(time.January, 1))

	assert.Equal(t, []*engine.Split{jan, feb}, checking.Splits())
	assert.Equal(t, 2, checking.Len())
	assert.False(t, checking.BalanceDirty())

	assertDec(t, "100", jan.Balances().Balance)
	assertDec(t, "150", feb.Balances().Balance)
	assertDec(t, "150", checking.Balances().Balance)
	assertDec(t, "150", checking.Balances().ShareBalance)
	assertDec(t, "-150", groceries.Balances().Balance)
}

func TestAccount_ClearedAndReconciledBalances(t *testing.T) {
	ctx := context.Background()
	g := NewGroup()
	checking, groceries := mustAccount(t, g, "Checking"), mustAccount(t, g, "Groceries")
	b := newBook()

	tx1, c1, _ := post(t, b, checking, groceries, "100", day(time.January, 1))
	tx2, c2, _ := post(t, b, checking, groceries, "50", day(time.February, 1))

	require.NoError(t, tx1.BeginEdit(ctx, false))
	require.NoError(t, c1.SetReconcile(engine.Cleared))
	require.NoError(t, tx1.CommitEdit(ctx))

	require.NoError(t, tx2.BeginEdit(ctx, false))
	require.NoError(t, c2.SetReconcile(engine.Reconciled))
	require.NoError(t, tx2.CommitEdit(ctx))

	assertDec(t, "100", c1.Balances().ClearedBalance)
	assertDec(t, "0", c1.Balances().ReconciledBalance)

	totals := checking.Balances()
	assertDec(t, "150", totals.Balance)
	assertDec(t, "150", totals.ClearedBalance)
	assertDec(t, "50", totals.ReconciledBalance)
	assertDec(t, "50", totals.ShareReconciledBalance)
}

func TestAccount_EditLevelSuspendsBalancing(t *testing.T) {
	ctx := context.Background()
	g := NewGroup()
	checking, groceries := mustAccount(t, g, "Checking"), mustAccount(t, g, "Groceries")
	b := newBook()
	tx, c1, g1 := post(t, b, checking, groceries, "100", day(time.January, 1))

	checking.BeginEdit()
	assert.Equal(t, 1, checking.EditLevel())

	require.NoError(t, tx.BeginEdit(ctx, false))
	require.NoError(t, c1.SetValue(decimal.RequireFromString("300")))
	assertDec(t, "-100", g1.Value())
	assertDec(t, "100", checking.Balances().Balance)
	assert.True(t, checking.BalanceDirty())

	checking.CommitEdit()
	assert.Equal(t, 0, checking.EditLevel())
	assertDec(t, "300", checking.Balances().Balance)

	require.NoError(t, tx.CommitEdit(ctx))
	assertDec(t, "-300", g1.Value())
	assertDec(t, "-300", groceries.Balances().Balance)
}

func TestAccount_RemoveSplit(t *testing.T) {
	ctx := context.Background()
	g := NewGroup()
	checking, groceries := mustAccount(t, g, "Checking"), mustAccount(t, g, "Groceries")
	b := newBook()
	tx, _, _ := post(t, b, checking, groceries, "20", day(time.March, 3))

	require.NoError(t, tx.BeginEdit(ctx, false))
	require.NoError(t, tx.Destroy(ctx))
	require.NoError(t, tx.CommitEdit(ctx))

	assert.Equal(t, 0, checking.Len())
	assert.Equal(t, 0, groceries.Len())
	assertDec(t, "0", checking.Balances().Balance)
}

package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/guid"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testAccount is a minimal Account that records how the engine drives it.
type testAccount struct {
	name      string
	currency  *commodity.Commodity
	security  *commodity.Commodity
	splits    []*Split
	editLevel int

	dirty      int
	recomputes int
	fixes      int
}

func newTestAccount(name, code string) *testAccount {
	return &testAccount{name: name, currency: commodity.MustISO(code)}
}

func newStockAccount(name, code string, security *commodity.Commodity) *testAccount {
	return &testAccount{name: name, currency: commodity.MustISO(code), security: security}
}

func (a *testAccount) Name() string { return a.name }
func (a *testAccount) Currency() *commodity.Commodity { return a.currency }
func (a *testAccount) Security() *commodity.Commodity { return a.security }
func (a *testAccount) MarkDirty() { a.dirty++ }
func (a *testAccount) RecomputeBalance() { a.recomputes++ }
func (a *testAccount) FixSplitDateOrder(*Split) { a.fixes++ }
func (a *testAccount) EditLevel() int { return a.editLevel }

func (a *testAccount) InsertSplit(s *Split) {
	if !slices.Contains(a.splits, s) {
		a.splits = append(a.splits, s)
	}
}

func (a *testAccount) RemoveSplit(s *Split) {
	if i := slices.Index(a.splits, s); i >= 0 {
		a.splits = slices.Delete(a.splits, i, i+1)
	}
}

// countingObserver tallies operations by name.
type countingObserver struct {
	ok     map[string]int
	failed map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{ok: make(map[string]int), failed: make(map[string]int)}
}

func (o *countingObserver) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	if success {
		o.ok[op]++
		return
	}
	o.failed[op]++
}

func (o *countingObserver) reset() {
	clear(o.ok)
	clear(o.failed)
}

// fakeBackend records hook calls and can be told to fail.
type fakeBackend struct {
	begins     int
	commits    int
	destroyed  []guid.GUID
	lastOrig   *TransactionSnapshot
	failBegin  bool
	failCommit bool
	failDelete bool
}

var errBackendDown = errors.New("backend down")

func (f *fakeBackend) TransBeginEdit(_ context.Context, _ *Transaction, _ bool) error {
	if f.failBegin {
		return errBackendDown
	}
	f.begins++
	return nil
}

func (f *fakeBackend) TransCommitEdit(_ context.Context, _ *Transaction, orig *TransactionSnapshot) error {
	if f.failCommit {
		return errBackendDown
	}
	f.commits++
	f.lastOrig = orig
	return nil
}

func (f *fakeBackend) TransDestroyed(_ context.Context, id guid.GUID, _ *TransactionSnapshot) error {
	if f.failDelete {
		return errBackendDown
	}
	f.destroyed = append(f.destroyed, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBook returns a deterministic book: sequential GUIDs, fixed wall
// clock, silent logger, in-memory journal.
func newTestBook(t *testing.T, opts ...BookOption) (*Book, *MemoryJournal) {
	t.Helper()
	j := NewMemoryJournal()
	base := []BookOption{
		WithLogger(discardLogger()),
		WithGUIDGenerator(guid.NewSequenceGenerator(1)),
		WithWallClock(func() time.Time { return fixedNow }),
		WithJournal(j),
	}
	return NewBook(append(base, opts...)...), j
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// newAccountSplit creates a split already attached to acc.
func newAccountSplit(t *testing.T, b *Book, acc Account) *Split {
	t.Helper()
	s := b.NewSplit()
	require.NoError(t, s.SetAccount(acc))
	return s
}

// newBalancedTx commits a two-split transaction: src carries amount in
// accA, dst carries -amount in accB.
func newBalancedTx(t *testing.T, b *Book, accA, accB Account, amount string) (*Transaction, *Split, *Split) {
	t.Helper()
	ctx := context.Background()

	tx := b.NewTransaction()
	require.NoError(t, tx.BeginEdit(ctx, false))
	src := newAccountSplit(t, b, accA)
	dst := newAccountSplit(t, b, accB)
	require.NoError(t, tx.AppendSplit(src))
	require.NoError(t, tx.AppendSplit(dst))
	require.NoError(t, src.SetValue(dec(amount)))
	require.NoError(t, tx.CommitEdit(ctx))
	return tx, src, dst
}

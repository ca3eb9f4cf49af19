package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/account"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/kvp"
)

func TestCommit_StoresSnapshot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := createTestBook(s)

	tx, _ := commitTransfer(t, b, account.NewGroup(), "42.10")

	ct, err := s.ReadCommitted(ctx, tx.GUID())
	if err != nil {
		t.Fatalf("ReadCommitted() failed: %v", err)
	}
	if ct.GUID != tx.GUID() {
		t.Errorf("GUID = %s, want %s", ct.GUID, tx.GUID())
	}
	if ct.SplitCount != 2 {
		t.Errorf("SplitCount = %d, want 2", ct.SplitCount)
	}
	if ct.Revision != 1 {
		t.Errorf("Revision = %d, want 1", ct.Revision)
	}

	want, err := kvp.MarshalCanonical(tx.Snapshot().Document())
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	if ct.Payload != string(want) {
		t.Errorf("payload mismatch:\n got: %s\nwant: %s", ct.Payload, want)
	}

	splits, ok := ct.Document["splits"].(kvp.List)
	if !ok || len(splits) != 2 {
		t.Fatalf("splits = %#v", ct.Document["splits"])
	}
	value, ok := splits[1].(kvp.Frame)["value"].(kvp.Numeric)
	if !ok {
		t.Fatalf("value is %T, want kvp.Numeric", splits[1].(kvp.Frame)["value"])
	}
	if !value.Equal(decimal.RequireFromString("-42.1")) {
		t.Errorf("second split value = %s, want -42.1", value)
	}
}

func TestCommit_BumpsRevision(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := createTestBook(s)
	tx, src := commitTransfer(t, b, account.NewGroup(), "10")

	mustNoErr(t, tx.BeginEdit(ctx, false))
	mustNoErr(t, src.SetValue(decimal.NewFromInt(25)))
	mustNoErr(t, tx.CommitEdit(ctx))

	ct, err := s.ReadCommitted(ctx, tx.GUID())
	if err != nil {
		t.Fatalf("ReadCommitted() failed: %v", err)
	}
	if ct.Revision != 2 {
		t.Errorf("Revision = %d, want 2", ct.Revision)
	}
	if got := journalKinds(t, s); got != "BCBC" {
		t.Errorf("journal kinds = %q, want BCBC", got)
	}
}

func TestDelete_RemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := createTestBook(s)
	tx, _ := commitTransfer(t, b, account.NewGroup(), "10")

	mustNoErr(t, tx.BeginEdit(ctx, false))
	mustNoErr(t, tx.Destroy(ctx))
	mustNoErr(t, tx.CommitEdit(ctx))

	_, err := s.ReadCommitted(ctx, tx.GUID())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadCommitted() after delete = %v, want sql.ErrNoRows", err)
	}
	if got := journalKinds(t, s); got != "BCBDD" {
		t.Errorf("journal kinds = %q, want BCBDD", got)
	}
}

func TestReadOnly_RejectsCommit(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, ReadOnly())
	if !s.IsReadOnly() {
		t.Fatal("IsReadOnly() = false")
	}
	b := createTestBook(s)
	g := account.NewGroup()

	from, _ := g.NewAccount("Checking", mustUSD(t), nil)
	tx := b.NewTransaction()
	mustNoErr(t, tx.BeginEdit(ctx, false))
	sp := b.NewSplit()
	mustNoErr(t, sp.SetAccount(from))
	mustNoErr(t, tx.AppendSplit(sp))

	err := tx.CommitEdit(ctx)
	if !errors.Is(err, engine.ErrBackendRejected) {
		t.Fatalf("CommitEdit() = %v, want BACKEND_REJECTED", err)
	}
	if !errors.Is(err, ErrReadOnly) {
		t.Errorf("CommitEdit() = %v, want wrapped ErrReadOnly", err)
	}
	if tx.IsOpen() {
		t.Error("transaction still open after rejected commit")
	}
	if tx.SplitCount() != 0 {
		t.Errorf("SplitCount() = %d, want 0 after rollback", tx.SplitCount())
	}

	all, err := s.ReadAllCommitted(ctx)
	if err != nil {
		t.Fatalf("ReadAllCommitted() failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("committed rows = %d, want 0", len(all))
	}
	if got := journalKinds(t, s); got != "BR" {
		t.Errorf("journal kinds = %q, want BR", got)
	}
}

func TestAppend_DuplicateSeqIgnored(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	b := createTestBook(s)
	tx := b.NewTransaction()

	entry := engine.JournalEntry{Seq: 7, Kind: engine.JournalBegin, Transaction: tx.GUID(), Snapshot: tx.Snapshot()}
	mustNoErr(t, s.Append(ctx, entry))

	entry.Kind = engine.JournalCommit
	mustNoErr(t, s.Append(ctx, entry))

	recs, err := s.ReadJournal(ctx, JournalFilter{})
	if err != nil {
		t.Fatalf("ReadJournal() failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != engine.JournalBegin {
		t.Errorf("journal = %+v, want the first entry only", recs)
	}
}

func TestAppend_RejectsUnknownKind(t *testing.T) {
	s := createTestStore(t)
	b := createTestBook(s)
	tx := b.NewTransaction()

	err := s.Append(context.Background(), engine.JournalEntry{
		Seq: 1, Kind: engine.JournalKind('X'), Transaction: tx.GUID(), Snapshot: tx.Snapshot(),
	})
	if err == nil {
		t.Error("expected CHECK constraint error for kind X")
	}
}

package engine

import (
	"context"
	"time"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/registry"
)

// BeginEdit opens an edit session. Re-entry on an open transaction only
// re-asserts the defer flag. On first entry the backend is notified, a
// 'B' journal entry is written and the committed state is snapshotted for
// rollback.
func (t *Transaction) BeginEdit(ctx context.Context, deferRebalance bool) (err error) {
	start := time.Now()
	defer func() { t.book.observe(ctx, OpBeginEdit, start, err) }()

	if t.freed {
		return t.book.violation(&LedgerError{
			Code:        ErrCodeAlreadyDestroyed,
			Message:     "BeginEdit on freed transaction",
			Transaction: t.guid,
		})
	}

	prev := t.open
	t.open = prev&flagBeingDestroyed | flagBeginEdit
	if deferRebalance {
		t.open |= flagDeferRebalance
	}
	if prev&flagBeginEdit != 0 {
		return nil
	}

	if be := t.book.backend; be != nil {
		if err := be.TransBeginEdit(ctx, t, deferRebalance); err != nil {
			t.open = prev
			t.book.logger.Error("backend refused begin edit",
				"transaction", t.guid.String(),
				"error", err,
			)
			return &LedgerError{
				Code:        ErrCodeBackendRejected,
				Message:     "backend refused begin edit",
				Transaction: t.guid,
				Err:         err,
			}
		}
	}

	t.book.writeJournal(ctx, t, JournalBegin)
	snap := t.Snapshot()
	t.orig = &snap

	t.book.logger.Debug("begin edit",
		"transaction", t.guid.String(),
		"deferred", deferRebalance,
		"splits", len(t.splits),
	)
	return nil
}

// CommitEdit validates and closes the edit session.
//
// A transaction with no splits, or one destroyed during the session, is
// deleted instead: journaled as 'D', unregistered and freed. Otherwise
// date_entered is defaulted, a lone split is mirrored under
// DoubleEntryMirror, the transaction is rebalanced once, and the backend
// is handed the new state with the snapshot. If the backend rejects the
// commit the edit is rolled back and a BACKEND_REJECTED error returned.
//
// A balancing failure leaves the session open and untouched so the caller
// can fix the splits or roll back.
func (t *Transaction) CommitEdit(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { t.book.observe(ctx, OpCommitEdit, start, err) }()

	if err := t.checkOpen("CommitEdit"); err != nil {
		return err
	}

	if len(t.splits) == 0 || t.IsBeingDestroyed() {
		return t.commitDelete(ctx)
	}

	// Resolve balancing problems before anything is changed.
	if _, err := t.balanceBase(); err != nil {
		t.book.logger.Error("commit refused",
			"transaction", t.guid.String(),
			"error", err,
		)
		return err
	}

	if dateUnset(t.dateEntered) {
		t.dateEntered = t.book.now()
	}

	if t.book.force == DoubleEntryMirror && len(t.splits) == 1 && !t.splits[0].quantity.IsZero() {
		t.mirrorSplit(t.splits[0])
	}

	prevOpen := t.open
	t.open &^= flagDeferRebalance
	if err := t.rebalance(); err != nil {
		t.open = prevOpen
		return err
	}

	if be := t.book.backend; be != nil {
		if berr := be.TransCommitEdit(ctx, t, t.orig); berr != nil {
			t.book.logger.Error("backend rejected commit, rolling back",
				"transaction", t.guid.String(),
				"error", berr,
			)
			if rerr := t.RollbackEdit(ctx); rerr != nil {
				t.book.logger.Error("rollback after backend rejection failed",
					"transaction", t.guid.String(),
					"error", rerr,
				)
			}
			return &LedgerError{
				Code:        ErrCodeBackendRejected,
				Message:     "backend rejected commit; edit rolled back",
				Transaction: t.guid,
				Err:         berr,
			}
		}
	}

	for _, s := range t.splits {
		if s.account != nil {
			s.account.FixSplitDateOrder(s)
		}
	}
	for _, s := range t.splits {
		if s.account != nil {
			s.account.RecomputeBalance()
		}
	}

	t.open = 0
	t.book.writeJournal(ctx, t, JournalCommit)
	t.orig = nil

	t.book.logger.Info("commit edit",
		"transaction", t.guid.String(),
		"splits", len(t.splits),
	)
	return nil
}

// balanceBase resolves the common currency the commit will rebalance in,
// surfacing missing-account and no-common-currency errors up front.
func (t *Transaction) balanceBase() (*commodity.Commodity, error) {
	if len(t.splits) == 0 {
		return nil, nil
	}
	src := t.splits[0]
	if src.account == nil {
		if t.book.strict() {
			return nil, newMissingAccountError(t, src)
		}
		return nil, nil
	}
	base, err := t.findCommon(src.account.Currency(), securityOf(src.account), nil)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, newNoCommonCurrencyError(t, src)
	}
	return base, nil
}

func (t *Transaction) commitDelete(ctx context.Context) error {
	t.book.logger.Info("delete transaction",
		"transaction", t.guid.String(),
		"destroyed", t.IsBeingDestroyed(),
	)

	if d, ok := t.book.backend.(TransactionDestroyer); ok {
		if berr := d.TransDestroyed(ctx, t.guid, t.orig); berr != nil {
			t.book.logger.Error("backend rejected delete, rolling back",
				"transaction", t.guid.String(),
				"error", berr,
			)
			if rerr := t.RollbackEdit(ctx); rerr != nil {
				t.book.logger.Error("rollback after backend rejection failed",
					"transaction", t.guid.String(),
					"error", rerr,
				)
			}
			return &LedgerError{
				Code:        ErrCodeBackendRejected,
				Message:     "backend rejected delete; edit rolled back",
				Transaction: t.guid,
				Err:         berr,
			}
		}
	}

	t.book.writeJournal(ctx, t, JournalDelete)
	t.book.registry.Remove(t.guid)
	for _, s := range t.splits {
		t.book.registry.Remove(s.guid)
		if s.account != nil {
			s.account.RemoveSplit(s)
			s.account.RecomputeBalance()
		}
	}
	t.free()
	return nil
}

// RollbackEdit restores the pre-edit snapshot and closes the session.
//
// The restore walks live and snapshot splits in lockstep, copying fields
// back while both lists agree on identity and account. From the first
// disagreement on (or from the start, if the transaction was destroyed)
// the remaining live splits are destroyed and the remaining snapshot
// splits are rebuilt, re-registered and re-inserted into their accounts.
func (t *Transaction) RollbackEdit(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { t.book.observe(ctx, OpRollbackEdit, start, err) }()

	if err := t.checkOpen("RollbackEdit"); err != nil {
		return err
	}
	orig := t.orig

	if t.guid != orig.GUID {
		t.book.registry.Remove(t.guid)
		t.guid = orig.GUID
	}
	// A destroy in this session unlisted the guid.
	t.book.store(t, t.guid, registry.TagTransaction)

	t.num = orig.Num
	t.description = orig.Description
	t.dateEntered = orig.DateEntered
	t.datePosted = orig.DatePosted
	t.slots = orig.Slots.Clone()

	mismatch := -1
	if t.IsBeingDestroyed() {
		mismatch = 0
	} else {
		n := min(len(t.splits), len(orig.Splits))
		for i := 0; i < n; i++ {
			s, so := t.splits[i], &orig.Splits[i]
			if s.guid != so.GUID || s.account != so.Account {
				mismatch = i
				break
			}
			s.restore(so)
			if s.account != nil {
				s.account.FixSplitDateOrder(s)
			}
			s.markDirty()
			if s.account != nil {
				s.account.RecomputeBalance()
			}
		}
		if mismatch < 0 && len(t.splits) != len(orig.Splits) {
			mismatch = n
		}
	}

	if mismatch >= 0 {
		t.replaceSplitsFrom(mismatch, orig)
	}

	t.book.writeJournal(ctx, t, JournalRollback)
	t.orig = nil
	t.open = 0

	t.book.logger.Info("rollback edit",
		"transaction", t.guid.String(),
		"mismatch", mismatch,
		"splits", len(t.splits),
	)
	return nil
}

// replaceSplitsFrom destroys live splits at index >= from and rebuilds
// the snapshot's splits in their place. A snapshot split that was
// relocated during the session and is still live is taken back rather
// than duplicated; see reclaimSplit.
func (t *Transaction) replaceSplitsFrom(from int, orig *TransactionSnapshot) {
	from = min(from, len(t.splits))
	for _, s := range t.splits[from:] {
		s.markDirty()
		if s.account != nil {
			s.account.RemoveSplit(s)
			s.account.RecomputeBalance()
		}
		t.book.registry.Remove(s.guid)
		s.free()
	}

	kept := t.splits[:from:from]
	for i := from; i < len(orig.Splits); i++ {
		so := &orig.Splits[i]
		s, ok := t.reclaimSplit(so.GUID)
		if !ok {
			continue
		}
		if s == nil {
			s = &Split{book: t.book, guid: so.GUID}
			t.book.store(s, s.guid, registry.TagSplit)
		}
		s.parent = t
		s.restore(so)
		kept = append(kept, s)

		if s.account != so.Account {
			s.moveAccount(s.account, so.Account)
		} else if s.account != nil {
			s.account.InsertSplit(s)
			s.markDirty()
			s.account.RecomputeBalance()
		}
	}
	t.splits = kept
}

// reclaimSplit resolves a snapshot split GUID that rollback is about to
// rebuild. It returns (nil, true) when nothing live holds the GUID, and
// (s, true) when s was detached from an open transaction (which is then
// rebalanced without it) and can be reused. A split that another
// transaction has since committed stays there: (nil, false).
func (t *Transaction) reclaimSplit(id guid.GUID) (*Split, bool) {
	live := t.book.LookupSplit(id)
	if live == nil || live.destroyed {
		return nil, true
	}
	holder := live.parent
	if holder == nil || holder == t {
		return live, true
	}
	if !holder.IsOpen() {
		t.book.logger.Warn("split committed elsewhere, not restored",
			"split", id.String(),
			"transaction", t.guid.String(),
			"holder", holder.guid.String(),
		)
		return nil, false
	}

	holder.removeSplit(live)
	live.parent = nil
	if err := holder.rebalance(); err != nil {
		t.book.logger.Warn("transaction left unbalanced after split reclaimed",
			"split", id.String(),
			"holder", holder.guid.String(),
			"error", err,
		)
	}
	t.book.logger.Debug("split reclaimed",
		"split", id.String(),
		"transaction", t.guid.String(),
		"holder", holder.guid.String(),
	)
	return live, true
}

// Destroy marks the transaction for deletion inside an open session:
// every split is detached from its account and the registry, and the
// transaction is unregistered. The next CommitEdit frees it;
// RollbackEdit brings everything back.
func (t *Transaction) Destroy(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { t.book.observe(ctx, OpDestroy, start, err) }()

	if err := t.checkOpen("Destroy"); err != nil {
		return err
	}
	if t.IsBeingDestroyed() {
		return t.book.violation(&LedgerError{
			Code:        ErrCodeAlreadyDestroyed,
			Message:     "transaction destroyed twice",
			Transaction: t.guid,
		})
	}

	t.open |= flagBeingDestroyed
	t.book.writeJournal(ctx, t, JournalDelete)

	for _, s := range t.splits {
		s.markDirty()
		if s.account != nil {
			s.account.RemoveSplit(s)
			s.account.RecomputeBalance()
		}
		t.book.registry.Remove(s.guid)
		s.free()
	}
	t.splits = nil
	t.book.registry.Remove(t.guid)

	t.book.logger.Info("destroy transaction", "transaction", t.guid.String())
	return nil
}

// Package account provides an in-memory implementation of the engine's
// Account collaborator: a date-ordered split list with cached running
// balances, grouped under a Group that tracks whether anything changed
// since the last save.
package account

import (
	"fmt"
	"slices"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/engine"
)

// Account holds splits in one currency (and optionally one security).
//
// Thread-safety: none. Edits of transactions sharing an account must be
// serialized by the caller.
type Account struct {
	name     string
	currency *commodity.Commodity
	security *commodity.Commodity
	group    *Group

	splits       []*engine.Split
	balanceDirty bool
	sortDirty    bool
	editLevel    int

	totals engine.Balances
}

var _ engine.Account = (*Account)(nil)
var _ engine.EditLeveler = (*Account)(nil)

// New creates a detached account. security may be nil.
func New(name string, currency, security *commodity.Commodity) (*Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account: empty name")
	}
	if currency == nil {
		return nil, fmt.Errorf("account %s: currency is required", name)
	}
	return &Account{name: name, currency: currency, security: security}, nil
}

func (a *Account) Name() string { return a.name }
func (a *Account) Currency() *commodity.Commodity { return a.currency }
func (a *Account) Security() *commodity.Commodity { return a.security }
func (a *Account) Group() *Group { return a.group }

// Splits returns the account's splits in date order as of the last sort.
func (a *Account) Splits() []*engine.Split {
	return slices.Clone(a.splits)
}

// Len returns the number of splits.
func (a *Account) Len() int {
	return len(a.splits)
}

// BalanceDirty reports whether cached balances are stale.
func (a *Account) BalanceDirty() bool { return a.balanceDirty }

// SortDirty reports whether the split order is stale.
func (a *Account) SortDirty() bool { return a.sortDirty }

// InsertSplit adds s, keeping date order. Inserting a split twice is a no-op.
func (a *Account) InsertSplit(s *engine.Split) {
	if slices.Contains(a.splits, s) {
		return
	}
	i, _ := slices.BinarySearchFunc(a.splits, s, engine.CompareSplits)
	a.splits = slices.Insert(a.splits, i, s)
	a.MarkDirty()
}

// RemoveSplit drops s. Removing an unknown split is a no-op.
func (a *Account) RemoveSplit(s *engine.Split) {
	i := slices.Index(a.splits, s)
	if i < 0 {
		return
	}
	a.splits = slices.Delete(a.splits, i, i+1)
	a.MarkDirty()
}

// FixSplitDateOrder moves s to its date-ordered position.
func (a *Account) FixSplitDateOrder(s *engine.Split) {
	i := slices.Index(a.splits, s)
	if i < 0 {
		return
	}
	a.splits = slices.Delete(a.splits, i, i+1)
	j, _ := slices.BinarySearchFunc(a.splits, s, engine.CompareSplits)
	a.splits = slices.Insert(a.splits, j, s)
}

// MarkDirty flags balances and order stale and tells the group it has
// unsaved changes.
func (a *Account) MarkDirty() {
	a.balanceDirty = true
	a.sortDirty = true
	if a.group != nil {
		a.group.MarkNotSaved()
	}
}

// RecomputeBalance re-sorts if needed and walks the splits in date order,
// storing the running balances on each split. A split counts toward the
// cleared balances unless it is not-reconciled, and toward the reconciled
// balances when it is reconciled or frozen.
func (a *Account) RecomputeBalance() {
	if a.editLevel > 0 {
		return
	}
	if a.sortDirty {
		slices.SortStableFunc(a.splits, engine.CompareSplits)
		a.sortDirty = false
	}

	var run engine.Balances
	for _, s := range a.splits {
		v, q := s.Value(), s.Quantity()
		run.Balance = run.Balance.Add(v)
		run.ShareBalance = run.ShareBalance.Add(q)
		switch s.Reconcile() {
		case engine.Cleared:
			run.ClearedBalance = run.ClearedBalance.Add(v)
			run.ShareClearedBalance = run.ShareClearedBalance.Add(q)
		case engine.Reconciled, engine.Frozen:
			run.ClearedBalance = run.ClearedBalance.Add(v)
			run.ShareClearedBalance = run.ShareClearedBalance.Add(q)
			run.ReconciledBalance = run.ReconciledBalance.Add(v)
			run.ShareReconciledBalance = run.ShareReconciledBalance.Add(q)
		}
		s.SetBalances(run)
	}
	a.totals = run
	a.balanceDirty = false
}

// Balances returns the account totals from the last recompute.
func (a *Account) Balances() engine.Balances {
	return a.totals
}

// BeginEdit raises the edit level. While positive, splits of this account
// are not rebalanced and balances are not recomputed.
func (a *Account) BeginEdit() {
	a.editLevel++
}

// CommitEdit lowers the edit level and recomputes when it reaches zero.
func (a *Account) CommitEdit() {
	if a.editLevel == 0 {
		return
	}
	a.editLevel--
	if a.editLevel == 0 && a.balanceDirty {
		a.RecomputeBalance()
	}
}

// EditLevel implements engine.EditLeveler.
func (a *Account) EditLevel() int {
	return a.editLevel
}

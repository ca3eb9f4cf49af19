package engine

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/roach88/splitledger/internal/guid"
)

// CompareTransactions is the total order used for display and diffing:
// date posted, num, date entered, description, then GUID bytes. nil sorts
// before any transaction.
func CompareTransactions(a, b *Transaction) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if c := compareTimes(a.datePosted, b.datePosted); c != 0 {
		return c
	}
	if c := strings.Compare(a.num, b.num); c != 0 {
		return c
	}
	if c := compareTimes(a.dateEntered, b.dateEntered); c != 0 {
		return c
	}
	if c := strings.Compare(a.description, b.description); c != 0 {
		return c
	}
	return guid.Compare(a.guid, b.guid)
}

// CompareSplits orders splits by their transactions first, then memo,
// action, reconciled state, quantity, value, reconcile date and GUID.
// nil sorts before any split.
func CompareSplits(a, b *Split) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if c := CompareTransactions(a.parent, b.parent); c != 0 {
		return c
	}
	if c := strings.Compare(a.memo, b.memo); c != 0 {
		return c
	}
	if c := strings.Compare(a.action, b.action); c != 0 {
		return c
	}
	if c := cmp.Compare(a.reconcile.Ordinal(), b.reconcile.Ordinal()); c != 0 {
		return c
	}
	if c := a.quantity.Cmp(b.quantity); c != 0 {
		return c
	}
	if c := a.value.Cmp(b.value); c != 0 {
		return c
	}
	if c := compareTimes(a.dateReconciled, b.dateReconciled); c != 0 {
		return c
	}
	return guid.Compare(a.guid, b.guid)
}

// compareTimes compares seconds, then the sub-second part.
func compareTimes(a, b time.Time) int {
	if c := cmp.Compare(a.Unix(), b.Unix()); c != 0 {
		return c
	}
	return cmp.Compare(a.Nanosecond(), b.Nanosecond())
}

// SortTransactions sorts ts in place by CompareTransactions.
func SortTransactions(ts []*Transaction) {
	slices.SortFunc(ts, CompareTransactions)
}

// SortSplits sorts ss in place by CompareSplits.
func SortSplits(ss []*Split) {
	slices.SortFunc(ss, CompareSplits)
}

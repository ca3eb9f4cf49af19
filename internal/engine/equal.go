package engine

import (
	"github.com/roach88/splitledger/internal/kvp"
)

// SplitsEqual compares two splits structurally: memo, action, metadata,
// reconciled state and date, quantity and value, and their parent
// transactions (compared without their splits, so the check terminates).
// GUIDs are compared only when checkGUIDs is set; checkTxnSplits is passed
// down to the parent comparison.
func SplitsEqual(a, b *Split, checkGUIDs, checkTxnSplits bool) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if checkGUIDs && a.guid != b.guid {
		return false
	}
	if a.memo != b.memo || a.action != b.action {
		return false
	}
	if !kvp.Equal(a.slots, b.slots) {
		return false
	}
	if a.reconcile != b.reconcile || !a.dateReconciled.Equal(b.dateReconciled) {
		return false
	}
	if !a.quantity.Equal(b.quantity) || !a.value.Equal(b.value) {
		return false
	}
	return TransactionsEqual(a.parent, b.parent, checkGUIDs, checkTxnSplits)
}

// TransactionsEqual compares two transactions structurally: both dates,
// num, description and metadata, plus (when checkSplits is set) the split
// lists pairwise in order. Split comparisons made here do not recurse back
// into the transactions.
func TransactionsEqual(a, b *Transaction, checkGUIDs, checkSplits bool) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if checkGUIDs && a.guid != b.guid {
		return false
	}
	if !a.dateEntered.Equal(b.dateEntered) || !a.datePosted.Equal(b.datePosted) {
		return false
	}
	if a.num != b.num || a.description != b.description {
		return false
	}
	if !kvp.Equal(a.slots, b.slots) {
		return false
	}
	if !checkSplits {
		return true
	}
	if len(a.splits) != len(b.splits) {
		return false
	}
	for i := range a.splits {
		if !splitFieldsEqual(a.splits[i], b.splits[i], checkGUIDs) {
			return false
		}
	}
	return true
}

// splitFieldsEqual is SplitsEqual without the parent comparison.
func splitFieldsEqual(a, b *Split, checkGUIDs bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if checkGUIDs && a.guid != b.guid {
		return false
	}
	return a.memo == b.memo &&
		a.action == b.action &&
		kvp.Equal(a.slots, b.slots) &&
		a.reconcile == b.reconcile &&
		a.dateReconciled.Equal(b.dateReconciled) &&
		a.quantity.Equal(b.quantity) &&
		a.value.Equal(b.value)
}

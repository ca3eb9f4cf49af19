package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/guid"
	"github.com/roach88/splitledger/internal/kvp"
	"github.com/roach88/splitledger/internal/registry"
)

// PriceDenom is the denominator share prices are rounded to.
const PriceDenom = 100000

// ReconcileState tracks bank-statement matching status of a split.
type ReconcileState byte

const (
	NotReconciled ReconcileState = 'n'
	Cleared       ReconcileState = 'c'
	Reconciled    ReconcileState = 'y'
	Frozen        ReconcileState = 'f'
)

// Valid reports whether r is one of the four states.
func (r ReconcileState) Valid() bool {
	switch r {
	case NotReconciled, Cleared, Reconciled, Frozen:
		return true
	}
	return false
}

// Ordinal gives the sort position: not-reconciled, cleared, reconciled, frozen.
func (r ReconcileState) Ordinal() int {
	switch r {
	case NotReconciled:
		return 0
	case Cleared:
		return 1
	case Reconciled:
		return 2
	case Frozen:
		return 3
	}
	return -1
}

func (r ReconcileState) String() string {
	return string(rune(r))
}

// ParseReconcile accepts the single-letter form ("n", "c", "y", "f").
func ParseReconcile(s string) (ReconcileState, error) {
	if len(s) == 1 {
		if r := ReconcileState(s[0]); r.Valid() {
			return r, nil
		}
	}
	return 0, &LedgerError{
		Code:    ErrCodeInvalidReconcile,
		Message: fmt.Sprintf("bad reconciled flag %q", s),
	}
}

// Balances are the running balances an account caches on each split, in
// value terms and in share (quantity) terms.
type Balances struct {
	Balance           decimal.Decimal
	ClearedBalance    decimal.Decimal
	ReconciledBalance decimal.Decimal

	ShareBalance           decimal.Decimal
	ShareClearedBalance    decimal.Decimal
	ShareReconciledBalance decimal.Decimal
}

// Split is one account-tagged money movement within a transaction.
//
// value is in the transaction's common currency, quantized to the
// account currency's SCU; quantity is in the account's security, quantized
// to its SCU. The implied price is value/quantity.
type Split struct {
	book    *Book
	guid    guid.GUID
	account Account
	parent  *Transaction

	memo      string
	action    string
	reconcile ReconcileState

	value          decimal.Decimal
	quantity       decimal.Decimal
	dateReconciled time.Time

	balances Balances
	slots    kvp.Frame

	destroyed bool
}

// GUID returns the split's identifier.
func (s *Split) GUID() guid.GUID { return s.guid }

// Account returns the owning account, or nil for a loose split.
func (s *Split) Account() Account { return s.account }

// Parent returns the owning transaction, or nil before the split is appended.
func (s *Split) Parent() *Transaction { return s.parent }

func (s *Split) Memo() string { return s.memo }
func (s *Split) Action() string { return s.action }
func (s *Split) Reconcile() ReconcileState { return s.reconcile }
func (s *Split) Value() decimal.Decimal { return s.value }
func (s *Split) Quantity() decimal.Decimal { return s.quantity }
func (s *Split) DateReconciled() time.Time { return s.dateReconciled }
func (s *Split) Balances() Balances { return s.balances }
func (s *Split) IsDestroyed() bool { return s.destroyed }

// Slots returns a copy of the split's metadata frame.
func (s *Split) Slots() kvp.Frame { return s.slots.Clone() }

// SetBalances stores the running balances. Called by the account
// collaborator while recomputing; never rebalances.
func (s *Split) SetBalances(b Balances) {
	s.balances = b
}

// SharePrice returns value/quantity rounded to 1/PriceDenom, or 1 when the
// quantity is zero.
func (s *Split) SharePrice() decimal.Decimal {
	if s.quantity.IsZero() {
		return decimal.NewFromInt(1)
	}
	return commodity.Quantize(s.value.Div(s.quantity), PriceDenom)
}

// SetGUID re-keys the split, keeping the registry consistent. A GUID
// registered to any other entity is refused.
func (s *Split) SetGUID(id guid.GUID) error {
	if id.IsNull() {
		return fmt.Errorf("split set guid: null guid")
	}
	if id == s.guid {
		return nil
	}
	if err := s.book.checkGUIDFree(id, s); err != nil {
		err.Split = s.guid
		return err
	}
	s.book.registry.Remove(s.guid)
	s.guid = id
	s.book.store(s, s.guid, registry.TagSplit)
	return nil
}

// checkMutable enforces the edit protocol for split setters. A split
// without a parent is still being prepared and may be changed freely.
func (s *Split) checkMutable(op string) error {
	if s.destroyed {
		return s.book.violation(&LedgerError{
			Code:    ErrCodeAlreadyDestroyed,
			Message: fmt.Sprintf("%s on destroyed split", op),
			Split:   s.guid,
		})
	}
	if s.parent != nil && !s.parent.IsOpen() {
		e := newNotOpenError(s.parent, op)
		e.Split = s.guid
		return s.book.violation(e)
	}
	return nil
}

// markDirty flags the owning account's balance and sort caches.
func (s *Split) markDirty() {
	if s.account != nil {
		s.account.MarkDirty()
	}
}

func (s *Split) currencyDenom() int64 {
	if s.account == nil {
		return commodity.LooseFraction
	}
	return s.account.Currency().SCU()
}

func (s *Split) securityDenom() int64 {
	if s.account == nil {
		return commodity.LooseFraction
	}
	return securityOf(s.account).SCU()
}

// impliedPrice is value/quantity, or 1 when quantity is zero.
func (s *Split) impliedPrice() decimal.Decimal {
	if s.quantity.IsZero() {
		return decimal.NewFromInt(1)
	}
	return s.value.Div(s.quantity)
}

// rebalanceOrRestore runs the rebalancing engine after a numeric change
// and, if balancing fails, puts the previous amounts back.
func (s *Split) rebalanceOrRestore(prevValue, prevQuantity decimal.Decimal) error {
	if s.parent == nil {
		return nil
	}
	if err := s.parent.rebalanceSplit(s); err != nil {
		s.value, s.quantity = prevValue, prevQuantity
		s.book.logger.Error("split change refused",
			"split", s.guid.String(),
			"transaction", s.parent.guid.String(),
			"error", err,
		)
		return err
	}
	return nil
}

// SetValue sets the value, keeping the implied price: the quantity is
// recomputed from the new value at the old price.
func (s *Split) SetValue(v decimal.Decimal) error {
	if err := s.checkMutable("SetValue"); err != nil {
		return err
	}
	prevV, prevQ := s.value, s.quantity
	s.markDirty()

	price := s.impliedPrice()
	s.value = commodity.Quantize(v, s.currencyDenom())
	if !price.IsZero() {
		s.quantity = commodity.Quantize(s.value.Div(price), s.securityDenom())
	}
	return s.rebalanceOrRestore(prevV, prevQ)
}

// SetQuantity sets the share amount, keeping the implied price: the value
// is recomputed from the new quantity at the old price.
func (s *Split) SetQuantity(q decimal.Decimal) error {
	if err := s.checkMutable("SetQuantity"); err != nil {
		return err
	}
	prevV, prevQ := s.value, s.quantity
	s.markDirty()

	price := s.impliedPrice()
	s.quantity = commodity.Quantize(q, s.securityDenom())
	s.value = commodity.Quantize(s.quantity.Mul(price), s.currencyDenom())
	return s.rebalanceOrRestore(prevV, prevQ)
}

// SetSharePrice sets value = quantity * price.
func (s *Split) SetSharePrice(price decimal.Decimal) error {
	if err := s.checkMutable("SetSharePrice"); err != nil {
		return err
	}
	prevV, prevQ := s.value, s.quantity
	s.markDirty()

	s.value = commodity.Quantize(s.quantity.Mul(price), s.currencyDenom())
	return s.rebalanceOrRestore(prevV, prevQ)
}

// SetSharePriceAndAmount sets quantity = amount and value = amount * price.
func (s *Split) SetSharePriceAndAmount(price, amount decimal.Decimal) error {
	if err := s.checkMutable("SetSharePriceAndAmount"); err != nil {
		return err
	}
	prevV, prevQ := s.value, s.quantity
	s.markDirty()

	s.quantity = commodity.Quantize(amount, s.securityDenom())
	s.value = commodity.Quantize(s.quantity.Mul(price), s.currencyDenom())
	return s.rebalanceOrRestore(prevV, prevQ)
}

// SetBaseValue sets the split's amount expressed in base, which must be
// the account's currency or security (or nil for a loose book).
func (s *Split) SetBaseValue(v decimal.Decimal, base *commodity.Commodity) error {
	if err := s.checkMutable("SetBaseValue"); err != nil {
		return err
	}
	prevV, prevQ := s.value, s.quantity
	s.markDirty()

	if err := s.setBaseValue(v, base); err != nil {
		s.value, s.quantity = prevV, prevQ
		return err
	}
	return s.rebalanceOrRestore(prevV, prevQ)
}

// BaseValue returns the split's amount expressed in base: the value when
// base is the account currency, the quantity when it is the security.
func (s *Split) BaseValue(base *commodity.Commodity) (decimal.Decimal, error) {
	if s.account == nil {
		if s.book.strict() {
			return decimal.Zero, &LedgerError{
				Code:    ErrCodeMissingAccount,
				Message: "split must have an account under a strict double-entry policy",
				Split:   s.guid,
			}
		}
		return s.value, nil
	}
	switch {
	case commodity.Equiv(s.account.Currency(), base):
		return s.value, nil
	case commodity.Equiv(securityOf(s.account), base):
		return s.quantity, nil
	case base == nil && !s.book.strict():
		return s.value, nil
	}
	return decimal.Zero, s.inconsistentBase(base)
}

// setBaseValue writes v through the account's currency and/or security
// without rebalancing.
func (s *Split) setBaseValue(v decimal.Decimal, base *commodity.Commodity) error {
	if s.account == nil {
		if s.book.strict() {
			return &LedgerError{
				Code:    ErrCodeMissingAccount,
				Message: "split must have an account under a strict double-entry policy",
				Split:   s.guid,
			}
		}
		v = commodity.Quantize(v, commodity.LooseFraction)
		s.value = v
		s.quantity = v
		return nil
	}

	currency := s.account.Currency()
	security := securityOf(s.account)
	switch {
	case commodity.Equiv(currency, base):
		if commodity.Equiv(security, base) {
			s.quantity = security.Quantize(v)
		}
		s.value = currency.Quantize(v)
	case commodity.Equiv(security, base):
		s.quantity = security.Quantize(v)
	case base == nil && !s.book.strict():
		s.value = currency.Quantize(v)
	default:
		return s.inconsistentBase(base)
	}
	return nil
}

func (s *Split) inconsistentBase(base *commodity.Commodity) *LedgerError {
	return &LedgerError{
		Code:    ErrCodeInconsistentCurrency,
		Message: "inappropriate base currency for split",
		Split:   s.guid,
		Details: map[string]string{
			"base":     base.String(),
			"currency": s.account.Currency().String(),
			"security": securityOf(s.account).String(),
		},
	}
}

// SetValueDirectly sets the value with no rebalancing and no protocol
// check. For bulk load paths only.
func (s *Split) SetValueDirectly(v decimal.Decimal) {
	s.value = v
	s.markDirty()
}

// SetQuantityDirectly sets the quantity with no rebalancing and no
// protocol check. For bulk load paths only.
func (s *Split) SetQuantityDirectly(q decimal.Decimal) {
	s.quantity = q
	s.markDirty()
}

// SetAccount moves the split to acc (nil detaches it). The old account
// loses the split and the new one gains it; the parent transaction is
// rebalanced, and the move is undone if that fails.
func (s *Split) SetAccount(acc Account) error {
	if err := s.checkMutable("SetAccount"); err != nil {
		return err
	}
	old := s.account
	if old == acc {
		return nil
	}
	s.moveAccount(old, acc)

	if s.parent != nil {
		if err := s.parent.rebalanceSplit(s); err != nil {
			s.moveAccount(acc, old)
			return err
		}
	}
	return nil
}

func (s *Split) moveAccount(from, to Account) {
	if from != nil {
		from.MarkDirty()
		from.RemoveSplit(s)
		from.RecomputeBalance()
	}
	s.account = to
	if to != nil {
		to.InsertSplit(s)
		to.MarkDirty()
		to.RecomputeBalance()
	}
}

// SetMemo sets the memo.
func (s *Split) SetMemo(memo string) error {
	if err := s.checkMutable("SetMemo"); err != nil {
		return err
	}
	s.memo = memo
	s.markDirty()
	return nil
}

// SetAction sets the action tag.
func (s *Split) SetAction(action string) error {
	if err := s.checkMutable("SetAction"); err != nil {
		return err
	}
	s.action = action
	s.markDirty()
	return nil
}

// SetReconcile sets the reconciled state and has the account recompute
// its cleared/reconciled balances.
func (s *Split) SetReconcile(r ReconcileState) error {
	if !r.Valid() {
		s.book.logger.Error("bad reconciled flag", "split", s.guid.String(), "flag", r.String())
		return &LedgerError{
			Code:    ErrCodeInvalidReconcile,
			Message: fmt.Sprintf("bad reconciled flag %q", r.String()),
			Split:   s.guid,
		}
	}
	if err := s.checkMutable("SetReconcile"); err != nil {
		return err
	}
	s.reconcile = r
	s.markDirty()
	if s.account != nil {
		s.account.RecomputeBalance()
	}
	return nil
}

// SetDateReconciled sets the reconciliation timestamp. The zero time and
// the Unix epoch both mean unset.
func (s *Split) SetDateReconciled(ts time.Time) error {
	if err := s.checkMutable("SetDateReconciled"); err != nil {
		return err
	}
	s.dateReconciled = ts
	s.markDirty()
	return nil
}

// SetDateReconciledSecs sets the reconciliation time to whole seconds.
func (s *Split) SetDateReconciledSecs(secs int64) error {
	return s.SetDateReconciled(time.Unix(secs, 0))
}

// SetSlot stores v under key in the split's metadata frame.
func (s *Split) SetSlot(key string, v kvp.Value) error {
	if err := s.checkMutable("SetSlot"); err != nil {
		return err
	}
	if s.slots == nil {
		s.slots = make(kvp.Frame)
	}
	s.slots[key] = v
	return nil
}

// DeleteSlot removes key from the split's metadata frame.
func (s *Split) DeleteSlot(key string) error {
	if err := s.checkMutable("DeleteSlot"); err != nil {
		return err
	}
	delete(s.slots, key)
	return nil
}

// OtherSplit returns the other split of a two-split transaction, or nil.
func (s *Split) OtherSplit() *Split {
	t := s.parent
	if t == nil || len(t.splits) != 2 {
		return nil
	}
	if t.splits[0] == s {
		return t.splits[1]
	}
	return t.splits[0]
}

// IsPeerSplit reports whether a and b belong to the same transaction.
func IsPeerSplit(a, b *Split) bool {
	if a == nil || b == nil {
		return false
	}
	return a.parent != nil && a.parent == b.parent
}

// Destroy removes the split from its transaction, its account and the
// registry. The parent transaction must be open. The transaction is
// rebalanced only if more than one split remains, so a sole survivor
// keeps its value until the caller finishes editing.
func (s *Split) Destroy() error {
	if s.destroyed {
		return s.book.violation(&LedgerError{
			Code:    ErrCodeAlreadyDestroyed,
			Message: "split destroyed twice",
			Split:   s.guid,
		})
	}
	t := s.parent
	if t != nil {
		if !t.IsOpen() {
			e := newNotOpenError(t, "SplitDestroy")
			e.Split = s.guid
			return s.book.violation(e)
		}
		if t.indexOf(s) < 0 {
			return s.book.violation(&LedgerError{
				Code:        ErrCodeNotMember,
				Message:     "split not found in its parent transaction",
				Transaction: t.guid,
				Split:       s.guid,
			})
		}
	}

	s.book.registry.Remove(s.guid)
	if t != nil {
		t.markChanged()
		t.removeSplit(s)
	}
	s.markDirty()
	if s.account != nil {
		s.account.RemoveSplit(s)
		s.account.RecomputeBalance()
	}
	s.free()

	if t != nil && len(t.splits) > 1 {
		if err := t.rebalance(); err != nil {
			return err
		}
	}
	return nil
}

// free releases the split's links. The object stays allocated but is
// unusable.
func (s *Split) free() {
	s.destroyed = true
	s.parent = nil
	s.account = nil
	s.value = decimal.Zero
	s.quantity = decimal.Zero
	s.slots = nil
}

// securityOf returns the account's security, defaulting to its currency.
func securityOf(acc Account) *commodity.Commodity {
	if sec := acc.Security(); sec != nil {
		return sec
	}
	return acc.Currency()
}

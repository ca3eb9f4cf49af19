package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/commodity"
)

// IsCommonCurrency reports whether two (currency, security) pairs share a
// commodity. A nil security means none; a nil currency never matches.
func IsCommonCurrency(currency1, security1, currency2, security2 *commodity.Commodity) bool {
	if currency1 == nil || currency2 == nil {
		return false
	}
	if commodity.Equiv(currency1, currency2) || commodity.Equiv(currency1, security2) {
		return true
	}
	if security1 == nil {
		return false
	}
	return commodity.Equiv(security1, currency2) || commodity.Equiv(security1, security2)
}

// findCommon narrows the candidates ra and rb against every split's
// account currency and security, skipping excl. It returns the surviving
// candidate (preferring ra), or nil if none survives.
//
// Splits without an account are skipped, unless the book is strict, in
// which case they are an error.
func (t *Transaction) findCommon(ra, rb *commodity.Commodity, excl *Split) (*commodity.Commodity, error) {
	if len(t.splits) == 0 {
		return nil, nil
	}
	for _, s := range t.splits {
		if s == excl {
			continue
		}
		if s.account == nil {
			if t.book.strict() {
				return nil, newMissingAccountError(t, s)
			}
			continue
		}
		sa := s.account.Currency()
		sb := securityOf(s.account)

		switch {
		case ra != nil && rb != nil:
			aa := !commodity.Equiv(ra, sa)
			ab := !commodity.Equiv(ra, sb)
			ba := !commodity.Equiv(rb, sa)
			bb := !commodity.Equiv(rb, sb)

			switch {
			case !aa && bb:
				rb = nil
			case !ab && ba:
				rb = nil
			case !ba && ab:
				ra = nil
			case !bb && aa:
				ra = nil
			case aa && bb && ab && ba:
				ra, rb = nil, nil
			}
			if ra == nil {
				ra, rb = rb, nil
			}
		case ra != nil:
			if !commodity.Equiv(ra, sa) && !commodity.Equiv(ra, sb) {
				ra = nil
			}
		}

		if ra == nil && rb == nil {
			return nil, nil
		}
	}
	return ra, nil
}

// FindCommonCurrency returns the commodity every split can be valued in,
// starting from the first split's account. nil means there is none (or
// the first split has no account).
func (t *Transaction) FindCommonCurrency() (*commodity.Commodity, error) {
	if len(t.splits) == 0 || t.splits[0].account == nil {
		return nil, nil
	}
	first := t.splits[0].account
	return t.findCommon(first.Currency(), securityOf(first), nil)
}

// IsCommonCurrency returns c if every split can be valued in it, else nil.
func (t *Transaction) IsCommonCurrency(c *commodity.Commodity) (*commodity.Commodity, error) {
	return t.findCommon(c, nil, nil)
}

// IsCommonExclSCurrency is IsCommonCurrency ignoring split excl.
func (t *Transaction) IsCommonExclSCurrency(c *commodity.Commodity, excl *Split) (*commodity.Commodity, error) {
	return t.findCommon(c, nil, excl)
}

// computeValue sums the splits (except skip) expressed in base.
func (t *Transaction) computeValue(skip *Split, base *commodity.Commodity) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range t.splits {
		if s == skip {
			continue
		}
		if s.account == nil {
			if t.book.strict() {
				return decimal.Zero, newMissingAccountError(t, s)
			}
			total = total.Add(s.value)
			continue
		}
		if base == nil && !t.book.strict() {
			total = total.Add(s.value)
			continue
		}
		switch {
		case commodity.Equiv(s.account.Currency(), base):
			total = total.Add(s.value)
		case commodity.Equiv(securityOf(s.account), base):
			total = total.Add(s.quantity)
		default:
			e := s.inconsistentBase(base)
			e.Transaction = t.guid
			return decimal.Zero, e
		}
	}
	return total, nil
}

// Imbalance is the sum of all split values in the common currency. A
// balanced transaction has zero imbalance.
func (t *Transaction) Imbalance() (decimal.Decimal, error) {
	base, err := t.FindCommonCurrency()
	if err != nil {
		return decimal.Zero, err
	}
	return t.computeValue(nil, base)
}

// Rebalance runs the rebalancing engine from the source split, as commit
// does. It respects a deferred session.
func (t *Transaction) Rebalance() error {
	if err := t.checkOpen("Rebalance"); err != nil {
		return err
	}
	return t.rebalance()
}

func (t *Transaction) rebalance() error {
	if len(t.splits) == 0 {
		return nil
	}
	return t.rebalanceSplit(t.splits[0])
}

// rebalanceSplit restores the zero-sum invariant after changed was
// modified. Every failure is detected before any split is touched.
func (t *Transaction) rebalanceSplit(changed *Split) error {
	if t == nil || len(t.splits) == 0 || t.IsDeferred() {
		return nil
	}
	if acc := changed.account; acc != nil {
		if el, ok := acc.(EditLeveler); ok && el.EditLevel() > 0 {
			return nil
		}
	}

	start := time.Now()
	err := t.doRebalance(changed)
	t.book.observe(context.Background(), OpRebalance, start, err)
	return err
}

func (t *Transaction) doRebalance(changed *Split) error {
	var base *commodity.Commodity
	if acc := changed.account; acc != nil {
		var err error
		base, err = t.findCommon(acc.Currency(), securityOf(acc), nil)
		if err != nil {
			return err
		}
		if base == nil {
			return newNoCommonCurrencyError(t, changed)
		}
	} else if t.book.strict() {
		return newMissingAccountError(t, changed)
	}

	source := t.splits[0]
	if changed == source {
		if len(t.splits) == 1 {
			if t.book.strict() && !source.quantity.IsZero() {
				t.mirrorSplit(source)
			}
			return nil
		}
		dest := t.splits[1]
		total, err := t.computeValue(dest, base)
		if err != nil {
			return err
		}
		return t.absorb(dest, total.Neg(), base)
	}

	total, err := t.computeValue(source, base)
	if err != nil {
		return err
	}
	return t.absorb(source, total.Neg(), base)
}

// absorb forces target's amount in base to v and refreshes its account.
func (t *Transaction) absorb(target *Split, v decimal.Decimal, base *commodity.Commodity) error {
	if err := target.setBaseValue(v, base); err != nil {
		return err
	}
	target.markDirty()
	if target.account != nil {
		target.account.RecomputeBalance()
	}
	t.book.logger.Debug("rebalanced",
		"transaction", t.guid.String(),
		"target", target.guid.String(),
		"value", target.value.String(),
		"base", base.String(),
	)
	return nil
}

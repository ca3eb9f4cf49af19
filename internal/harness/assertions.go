package harness

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/account"
	"github.com/roach88/splitledger/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Seq, event.Op, event.Target, event.Outcome)
		}
	}

	return buf.String()
}

// AssertionContext is what assertions can see after the flow ran.
type AssertionContext struct {
	Book         *engine.Book
	Journal      string
	Accounts     *account.Group
	Transactions map[string]*engine.Transaction
	Splits       map[string]*engine.Split
}

func (c *AssertionContext) tx(alias string) (*engine.Transaction, error) {
	t, ok := c.Transactions[alias]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %q", alias)
	}
	return t, nil
}

func (c *AssertionContext) split(alias string) (*engine.Split, error) {
	s, ok := c.Splits[alias]
	if !ok {
		return nil, fmt.Errorf("unknown split %q", alias)
	}
	return s, nil
}

// EvaluateAssertions runs all assertions against a scenario result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			if ae, ok := err.(*AssertionError); ok {
				ae.Trace = result.Trace
			}
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errors
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertBalanced:
		return assertBalanced(a, actx)
	case AssertSplitValue, AssertSplitQuantity:
		return assertSplitAmount(a, actx)
	case AssertSplitCount:
		t, err := actx.tx(a.Tx)
		if err != nil {
			return err
		}
		if got := t.SplitCount(); got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s has %d splits", a.Tx, a.Count),
				Actual:   fmt.Sprintf("%d splits", got),
			}
		}
		return nil
	case AssertSplitMemo:
		s, err := actx.split(a.Split)
		if err != nil {
			return err
		}
		if s.Memo() != a.Value {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s memo %q", a.Split, a.Value),
				Actual:   fmt.Sprintf("%q", s.Memo()),
			}
		}
		return nil
	case AssertRegistered:
		return assertRegistered(a, actx)
	case AssertOpen:
		t, err := actx.tx(a.Tx)
		if err != nil {
			return err
		}
		if want := expectTrue(a); t.IsOpen() != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s open=%t", a.Tx, want),
				Actual:   fmt.Sprintf("open=%t", t.IsOpen()),
			}
		}
		return nil
	case AssertJournalKinds:
		if actx.Journal != a.Value {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("journal %q", a.Value),
				Actual:   fmt.Sprintf("%q", actx.Journal),
			}
		}
		return nil
	case AssertAccountBalance:
		return assertAccountBalance(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func expectTrue(a Assertion) bool {
	return a.Expect == nil || *a.Expect
}

func assertBalanced(a Assertion, actx *AssertionContext) error {
	t, err := actx.tx(a.Tx)
	if err != nil {
		return err
	}
	imbalance, err := t.Imbalance()
	if err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s balanced", a.Tx),
			Actual:   fmt.Sprintf("imbalance not computable: %v", err),
		}
	}
	if !imbalance.IsZero() {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s balanced", a.Tx),
			Actual:   fmt.Sprintf("imbalance %s", imbalance),
		}
	}
	return nil
}

func assertSplitAmount(a Assertion, actx *AssertionContext) error {
	s, err := actx.split(a.Split)
	if err != nil {
		return err
	}
	want, err := decimal.NewFromString(a.Value)
	if err != nil {
		return fmt.Errorf("value %q: %w", a.Value, err)
	}
	field, got := "value", s.Value()
	if a.Type == AssertSplitQuantity {
		field, got = "quantity", s.Quantity()
	}
	if !got.Equal(want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s %s %s", a.Split, field, want),
			Actual:   got.String(),
		}
	}
	return nil
}

func assertRegistered(a Assertion, actx *AssertionContext) error {
	want := expectTrue(a)
	var alias string
	var got bool
	if a.Tx != "" {
		t, err := actx.tx(a.Tx)
		if err != nil {
			return err
		}
		alias, got = a.Tx, actx.Book.LookupTransaction(t.GUID()) == t
	} else {
		s, err := actx.split(a.Split)
		if err != nil {
			return err
		}
		alias, got = a.Split, actx.Book.LookupSplit(s.GUID()) == s
	}
	if got != want {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s registered=%t", alias, want),
			Actual:   fmt.Sprintf("registered=%t", got),
		}
	}
	return nil
}

func assertAccountBalance(a Assertion, actx *AssertionContext) error {
	acc, ok := actx.Accounts.Lookup(a.Account)
	if !ok {
		return fmt.Errorf("unknown account %q", a.Account)
	}
	want, err := decimal.NewFromString(a.Value)
	if err != nil {
		return fmt.Errorf("value %q: %w", a.Value, err)
	}
	if got := acc.Balances().Balance; !got.Equal(want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s balance %s", a.Account, want),
			Actual:   got.String(),
		}
	}
	return nil
}

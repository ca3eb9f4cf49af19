package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/splitledger/internal/account"
	"github.com/roach88/splitledger/internal/commodity"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/kvp"
	"github.com/roach88/splitledger/internal/testutil"
)

// Harness is the test execution engine for one scenario run.
type Harness struct {
	book     *engine.Book
	journal  *engine.MemoryJournal
	accounts *account.Group
	clock    *engine.Clock
	logger   *slog.Logger

	txs     map[string]*engine.Transaction
	txOrder []string
	splits  map[string]*engine.Split
}

// Option configures a run.
type Option func(*options)

type options struct {
	journal      engine.Journal
	journalClock *engine.Clock
	backend      engine.Backend
	observer     engine.Observer
	logger       *slog.Logger
	bookOpts     []engine.BookOption
}

// WithJournal also writes every journal entry to j. The in-memory
// journal behind Result.Journal is kept either way.
func WithJournal(j engine.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithJournalClock stamps journal entries from c, for resuming a
// persistent journal.
func WithJournalClock(c *engine.Clock) Option {
	return func(o *options) { o.journalClock = c }
}

// WithBackend registers a persistence backend on the book.
func WithBackend(be engine.Backend) Option {
	return func(o *options) { o.backend = be }
}

// WithObserver registers an operation observer on the book.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger for both the harness and the book.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBookOptions applies extra book options after the scenario's own,
// so they take precedence.
func WithBookOptions(opts ...engine.BookOption) Option {
	return func(o *options) { o.bookOpts = append(o.bookOpts, opts...) }
}

// teeJournal appends to the in-memory journal and then to a second one.
type teeJournal struct {
	memory *engine.MemoryJournal
	also   engine.Journal
}

func (j teeJournal) Append(ctx context.Context, entry engine.JournalEntry) error {
	if err := j.memory.Append(ctx, entry); err != nil {
		return err
	}
	return j.also.Append(ctx, entry)
}

// Run executes a test scenario and returns the result.
//
// Each run gets a fresh deterministic book. A step that fails differently
// from its expect clause, and an assertion that does not hold, are
// recorded in Result.Errors. A returned error means the scenario itself
// is broken: an unknown alias or account, or an unparsable argument.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	memory := engine.NewMemoryJournal()
	var journal engine.Journal = memory
	if o.journal != nil {
		journal = teeJournal{memory: memory, also: o.journal}
	}

	bookOpts := []engine.BookOption{
		engine.WithForceDoubleEntry(engine.DoubleEntryPolicy(scenario.ForceDoubleEntry)),
		engine.WithLogger(o.logger),
		engine.WithJournal(journal),
	}
	if o.journalClock != nil {
		bookOpts = append(bookOpts, engine.WithJournalClock(o.journalClock))
	}
	if o.backend != nil {
		bookOpts = append(bookOpts, engine.WithBackend(o.backend))
	}
	if o.observer != nil {
		bookOpts = append(bookOpts, engine.WithObserver(o.observer))
	}
	bookOpts = append(bookOpts, o.bookOpts...)
	book, _ := testutil.NewBook(bookOpts...)

	h := &Harness{
		book:     book,
		journal:  memory,
		accounts: account.NewGroup(),
		clock:    engine.NewClock(),
		logger:   o.logger,
		txs:      make(map[string]*engine.Transaction),
		splits:   make(map[string]*engine.Split),
	}

	if err := h.createAccounts(scenario.Accounts); err != nil {
		return nil, fmt.Errorf("failed to create accounts: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	result.Journal = memory.Kinds()
	result.State = h.finalState()

	actx := &AssertionContext{
		Book:         book,
		Journal:      result.Journal,
		Accounts:     h.accounts,
		Transactions: h.txs,
		Splits:       h.splits,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) createAccounts(specs []AccountSpec) error {
	for _, spec := range specs {
		cur, err := spec.Currency.Resolve()
		if err != nil {
			return fmt.Errorf("account %q: %w", spec.Name, err)
		}
		var sec *commodity.Commodity
		if spec.Security != nil {
			if sec, err = spec.Security.Resolve(); err != nil {
				return fmt.Errorf("account %q: %w", spec.Name, err)
			}
		}
		if _, err := h.accounts.NewAccount(spec.Name, cur, sec); err != nil {
			return err
		}
	}
	return nil
}

// executeFlow runs the flow steps in order and checks each against its
// expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		stepErr, err := h.apply(ctx, step)
		if err != nil {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Op, err)
		}

		outcome := OutcomeOK
		if stepErr != nil {
			outcome = string(engine.CodeOf(stepErr))
			if outcome == "" {
				outcome = "ERROR"
			}
		}
		result.AddTrace(h.clock.Next(), step.Op, targetOf(step), outcome)

		switch {
		case step.Expect != nil && outcome != step.Expect.Error:
			result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %s", i, step.Op, step.Expect.Error, outcome))
		case step.Expect == nil && stepErr != nil:
			result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, step.Op, stepErr))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"target", targetOf(step),
			"outcome", outcome,
		)
	}
	return nil
}

// targetOf names the entity a step acts on: its split, else its transaction.
func targetOf(step FlowStep) string {
	if s, ok := step.Args["split"]; ok {
		return fmt.Sprint(s)
	}
	return fmt.Sprint(step.Args["tx"])
}

// apply runs one step. stepErr is the engine's answer; err means the
// step itself could not be interpreted.
func (h *Harness) apply(ctx context.Context, step FlowStep) (stepErr, err error) {
	args := step.Args

	switch step.Op {
	case OpNewTransaction:
		alias, err := argString(args, "tx")
		if err != nil {
			return nil, err
		}
		if _, dup := h.txs[alias]; dup {
			return nil, fmt.Errorf("transaction alias %q already used", alias)
		}
		h.txs[alias] = h.book.NewTransaction()
		h.txOrder = append(h.txOrder, alias)
		return nil, nil

	case OpNewSplit:
		alias, err := argString(args, "split")
		if err != nil {
			return nil, err
		}
		if _, dup := h.splits[alias]; dup {
			return nil, fmt.Errorf("split alias %q already used", alias)
		}
		s := h.book.NewSplit()
		h.splits[alias] = s
		if _, ok := args["tx"]; !ok {
			return nil, nil
		}
		t, err := h.tx(args)
		if err != nil {
			return nil, err
		}
		return t.AppendSplit(s), nil
	}

	if _, ok := args["split"]; ok {
		return h.applySplit(ctx, step)
	}

	t, err := h.tx(args)
	if err != nil {
		return nil, err
	}
	switch step.Op {
	case OpBegin:
		deferred, err := argBool(args, "defer")
		if err != nil {
			return nil, err
		}
		return t.BeginEdit(ctx, deferred), nil
	case OpCommit:
		return t.CommitEdit(ctx), nil
	case OpRollback:
		return t.RollbackEdit(ctx), nil
	case OpDestroy:
		return t.Destroy(ctx), nil
	case OpRebalance:
		return t.Rebalance(), nil
	case OpSetNum:
		num, err := argString(args, "num")
		if err != nil {
			return nil, err
		}
		return t.SetNum(num), nil
	case OpSetDescription:
		desc, err := argString(args, "description")
		if err != nil {
			return nil, err
		}
		return t.SetDescription(desc), nil
	case OpSetDatePosted:
		date, err := argTime(args, "date")
		if err != nil {
			return nil, err
		}
		return t.SetDatePosted(date), nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (h *Harness) applySplit(_ context.Context, step FlowStep) (stepErr, err error) {
	args := step.Args
	s, err := h.split(args)
	if err != nil {
		return nil, err
	}

	switch step.Op {
	case OpAppendSplit:
		t, err := h.tx(args)
		if err != nil {
			return nil, err
		}
		return t.AppendSplit(s), nil
	case OpSetAccount:
		name, err := argString(args, "account")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return s.SetAccount(nil), nil
		}
		acc, ok := h.accounts.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown account %q", name)
		}
		return s.SetAccount(acc), nil
	case OpSetValue:
		v, err := argDecimal(args, "amount")
		if err != nil {
			return nil, err
		}
		return s.SetValue(v), nil
	case OpSetQuantity:
		q, err := argDecimal(args, "amount")
		if err != nil {
			return nil, err
		}
		return s.SetQuantity(q), nil
	case OpSetPrice:
		p, err := argDecimal(args, "price")
		if err != nil {
			return nil, err
		}
		return s.SetSharePrice(p), nil
	case OpSetMemo:
		memo, err := argString(args, "memo")
		if err != nil {
			return nil, err
		}
		return s.SetMemo(memo), nil
	case OpSetAction:
		action, err := argString(args, "action")
		if err != nil {
			return nil, err
		}
		return s.SetAction(action), nil
	case OpSetReconcile:
		flag, err := argString(args, "state")
		if err != nil {
			return nil, err
		}
		r, perr := engine.ParseReconcile(flag)
		if perr != nil {
			return perr, nil
		}
		return s.SetReconcile(r), nil
	case OpDestroySplit:
		return s.Destroy(), nil
	}
	return nil, fmt.Errorf("op %q does not take a split", step.Op)
}

func (h *Harness) tx(args map[string]any) (*engine.Transaction, error) {
	alias, err := argString(args, "tx")
	if err != nil {
		return nil, err
	}
	t, ok := h.txs[alias]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %q", alias)
	}
	return t, nil
}

func (h *Harness) split(args map[string]any) (*engine.Split, error) {
	alias, err := argString(args, "split")
	if err != nil {
		return nil, err
	}
	s, ok := h.splits[alias]
	if !ok {
		return nil, fmt.Errorf("unknown split %q", alias)
	}
	return s, nil
}

// finalState renders the live transactions and every account's totals.
func (h *Harness) finalState() kvp.Frame {
	txs := kvp.List{}
	for _, alias := range h.txOrder {
		t := h.txs[alias]
		if t.IsFreed() {
			continue
		}
		txs = append(txs, t.Snapshot().Document())
	}

	accounts := kvp.List{}
	for _, acc := range h.accounts.Accounts() {
		bal := acc.Balances()
		accounts = append(accounts, kvp.NewFrame(
			kvp.P("name", kvp.String(acc.Name())),
			kvp.P("balance", kvp.NewNumeric(bal.Balance)),
			kvp.P("cleared_balance", kvp.NewNumeric(bal.ClearedBalance)),
			kvp.P("reconciled_balance", kvp.NewNumeric(bal.ReconciledBalance)),
			kvp.P("share_balance", kvp.NewNumeric(bal.ShareBalance)),
		))
	}

	return kvp.NewFrame(
		kvp.P("transactions", txs),
		kvp.P("accounts", accounts),
	)
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int64, bool:
		return fmt.Sprint(s), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("arg %q: expected string, got %T", key, v)
}

func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("arg %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// argDecimal accepts a quoted decimal ("12.50") or a YAML number.
func argDecimal(args map[string]any, key string) (decimal.Decimal, error) {
	v, ok := args[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing arg %q", key)
	}
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("arg %q: %w", key, err)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	}
	return decimal.Zero, fmt.Errorf("arg %q: expected decimal, got %T", key, v)
}

// argTime accepts a date ("2024-01-15", UTC midnight) or an RFC 3339 time.
func argTime(args map[string]any, key string) (time.Time, error) {
	v, ok := args[key]
	if !ok {
		return time.Time{}, fmt.Errorf("missing arg %q", key)
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		if d, err := time.Parse(time.DateOnly, t); err == nil {
			return d, nil
		}
		ts, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("arg %q: %w", key, err)
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("arg %q: expected date, got %T", key, v)
}

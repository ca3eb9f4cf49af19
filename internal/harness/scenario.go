package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splitledger/internal/commodity"
)

// Scenario is a ledger test case: accounts, a flow of edit operations and
// assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ForceDoubleEntry is the book policy (0, 1 or 2).
	ForceDoubleEntry int `yaml:"force_double_entry,omitempty"`

	// Accounts are created before the flow runs.
	Accounts []AccountSpec `yaml:"accounts"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSpec declares an account.
type AccountSpec struct {
	Name     string         `yaml:"name"`
	Currency CommoditySpec  `yaml:"currency"`
	Security *CommoditySpec `yaml:"security,omitempty"`
}

// CommoditySpec is written either as an ISO-4217 code ("USD") or as an
// explicit mapping with namespace, mnemonic and fraction.
type CommoditySpec struct {
	ISO       string `yaml:"-"`
	Namespace string `yaml:"namespace"`
	Mnemonic  string `yaml:"mnemonic"`
	Fraction  int64  `yaml:"fraction"`
}

// UnmarshalYAML accepts the scalar and mapping forms.
func (c *CommoditySpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.ISO = node.Value
		return nil
	}
	type plain CommoditySpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = CommoditySpec(p)
	return nil
}

// Resolve builds the commodity.
func (c CommoditySpec) Resolve() (*commodity.Commodity, error) {
	if c.ISO != "" {
		return commodity.ISO(c.ISO)
	}
	return commodity.New(c.Namespace, c.Mnemonic, c.Fraction)
}

// FlowStep is one operation against the book.
type FlowStep struct {
	// Op is the operation name, e.g. "set_value".
	Op string `yaml:"op"`

	// Args holds the operation's arguments. tx and split are aliases.
	Args map[string]any `yaml:"args"`

	// Expect, when set, requires the step to fail with the given code.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies an expected failure.
type ExpectClause struct {
	// Error is the expected error code, e.g. "NOT_OPEN".
	Error string `yaml:"error"`
}

// Assertion validates final state.
type Assertion struct {
	Type    string `yaml:"type"`
	Tx      string `yaml:"tx,omitempty"`
	Split   string `yaml:"split,omitempty"`
	Account string `yaml:"account,omitempty"`

	// Value is the expected decimal, memo or journal string.
	Value string `yaml:"value,omitempty"`

	// Count is the expected split count (split_count).
	Count int `yaml:"count,omitempty"`

	// Expect is the expected truth for registered and open. Defaults to true.
	Expect *bool `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertBalanced       = "balanced"
	AssertSplitValue     = "split_value"
	AssertSplitQuantity  = "split_quantity"
	AssertSplitCount     = "split_count"
	AssertSplitMemo      = "split_memo"
	AssertRegistered     = "registered"
	AssertOpen           = "open"
	AssertJournalKinds   = "journal_kinds"
	AssertAccountBalance = "account_balance"
)

// Flow operation names.
const (
	OpNewTransaction = "new_transaction"
	OpBegin          = "begin"
	OpCommit         = "commit"
	OpRollback       = "rollback"
	OpDestroy        = "destroy"
	OpRebalance      = "rebalance"
	OpNewSplit       = "new_split"
	OpAppendSplit    = "append_split"
	OpSetAccount     = "set_account"
	OpSetValue       = "set_value"
	OpSetQuantity    = "set_quantity"
	OpSetPrice       = "set_price"
	OpSetMemo        = "set_memo"
	OpSetAction      = "set_action"
	OpSetReconcile   = "set_reconcile"
	OpSetNum         = "set_num"
	OpSetDescription = "set_description"
	OpSetDatePosted  = "set_date_posted"
	OpDestroySplit   = "destroy_split"
)

// opArgs lists the required arguments of each operation.
var opArgs = map[string][]string{
	OpNewTransaction: {"tx"},
	OpBegin:          {"tx"},
	OpCommit:         {"tx"},
	OpRollback:       {"tx"},
	OpDestroy:        {"tx"},
	OpRebalance:      {"tx"},
	OpNewSplit:       {"split"},
	OpAppendSplit:    {"tx", "split"},
	OpSetAccount:     {"split", "account"},
	OpSetValue:       {"split", "amount"},
	OpSetQuantity:    {"split", "amount"},
	OpSetPrice:       {"split", "price"},
	OpSetMemo:        {"split", "memo"},
	OpSetAction:      {"split", "action"},
	OpSetReconcile:   {"split", "state"},
	OpSetNum:         {"tx", "num"},
	OpSetDescription: {"tx", "description"},
	OpSetDatePosted:  {"tx", "date"},
	OpDestroySplit:   {"split"},
}

// KnownOps returns the supported operation names, sorted.
func KnownOps() []string {
	ops := make([]string, 0, len(opArgs))
	for op := range opArgs {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.ForceDoubleEntry < 0 || s.ForceDoubleEntry > 2 {
		return fmt.Errorf("force_double_entry must be 0, 1 or 2, got %d", s.ForceDoubleEntry)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, acc := range s.Accounts {
		if acc.Name == "" {
			return fmt.Errorf("accounts[%d]: name is required", i)
		}
		if seen[acc.Name] {
			return fmt.Errorf("accounts[%d]: duplicate account %q", i, acc.Name)
		}
		seen[acc.Name] = true
		if _, err := acc.Currency.Resolve(); err != nil {
			return fmt.Errorf("accounts[%d].currency: %w", i, err)
		}
		if acc.Security != nil {
			if _, err := acc.Security.Resolve(); err != nil {
				return fmt.Errorf("accounts[%d].security: %w", i, err)
			}
		}
	}

	for i, step := range s.Flow {
		required, ok := opArgs[step.Op]
		if !ok {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		for _, key := range required {
			if _, ok := step.Args[key]; !ok {
				return fmt.Errorf("flow[%d]: %s requires arg %q", i, step.Op, key)
			}
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("flow[%d].expect: error is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBalanced, AssertOpen:
		if a.Tx == "" {
			return fmt.Errorf("assertions[%d]: tx is required for %s", index, a.Type)
		}
	case AssertSplitCount:
		if a.Tx == "" {
			return fmt.Errorf("assertions[%d]: tx is required for split_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for split_count", index)
		}
	case AssertSplitValue, AssertSplitQuantity:
		if a.Split == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: split and value are required for %s", index, a.Type)
		}
	case AssertSplitMemo:
		if a.Split == "" {
			return fmt.Errorf("assertions[%d]: split is required for split_memo", index)
		}
	case AssertRegistered:
		if (a.Tx == "") == (a.Split == "") {
			return fmt.Errorf("assertions[%d]: exactly one of tx or split is required for registered", index)
		}
	case AssertJournalKinds:
		for _, k := range a.Value {
			if !strings.ContainsRune("BCRD", k) {
				return fmt.Errorf("assertions[%d]: journal kind %q is not one of B, C, R, D", index, k)
			}
		}
	case AssertAccountBalance:
		if a.Account == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: account and value are required for account_balance", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

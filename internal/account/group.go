package account

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/splitledger/internal/commodity"
)

// Group is a flat, name-keyed collection of accounts with a saved flag.
type Group struct {
	accounts map[string]*Account
	saved    bool
}

// NewGroup creates an empty group. A new group counts as saved.
func NewGroup() *Group {
	return &Group{accounts: make(map[string]*Account), saved: true}
}

// NewAccount creates an account and adds it to the group.
func (g *Group) NewAccount(name string, currency, security *commodity.Commodity) (*Account, error) {
	if _, ok := g.accounts[name]; ok {
		return nil, fmt.Errorf("account %q already exists", name)
	}
	a, err := New(name, currency, security)
	if err != nil {
		return nil, err
	}
	a.group = g
	g.accounts[name] = a
	g.MarkNotSaved()
	return a, nil
}

// Lookup returns the account named name.
func (g *Group) Lookup(name string) (*Account, bool) {
	a, ok := g.accounts[name]
	return a, ok
}

// Accounts returns the group's accounts sorted by name.
func (g *Group) Accounts() []*Account {
	out := make([]*Account, 0, len(g.accounts))
	for _, a := range g.accounts {
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y *Account) int { return strings.Compare(x.name, y.name) })
	return out
}

// MarkNotSaved records that the group has unsaved changes.
func (g *Group) MarkNotSaved() {
	g.saved = false
}

// MarkSaved clears the unsaved flag.
func (g *Group) MarkSaved() {
	g.saved = true
}

// IsSaved reports whether nothing changed since the last MarkSaved.
func (g *Group) IsSaved() bool {
	return g.saved
}

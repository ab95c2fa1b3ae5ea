// Package ledger holds the in-memory working table of general-ledger
// balances that every pipeline stage loads, mutates and persists.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gyeh/clincost/internal/model"
)

// Scale is the number of decimal places computed amounts are rounded to
// before they are moved. Moves themselves are exact.
const Scale = 10

// Ledger is an indexed set of account balances for one run key.
// The zero value is not usable; call New.
type Ledger struct {
	balances map[model.AccountKey]decimal.Decimal
}

// New returns a ledger holding the given accounts. Accounts sharing a key are
// summed.
func New(accounts []model.Account) *Ledger {
	l := &Ledger{balances: make(map[model.AccountKey]decimal.Decimal, len(accounts))}
	for _, a := range accounts {
		l.balances[a.AccountKey] = l.balances[a.AccountKey].Add(a.Cost)
	}
	return l
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{balances: make(map[model.AccountKey]decimal.Decimal, len(l.balances))}
	for k, v := range l.balances {
		c.balances[k] = v
	}
	return c
}

// Balance returns the account balance and whether the account exists.
func (l *Ledger) Balance(k model.AccountKey) (decimal.Decimal, bool) {
	v, ok := l.balances[k]
	return v, ok
}

// Set overwrites an account balance, creating the account if needed.
func (l *Ledger) Set(k model.AccountKey, v decimal.Decimal) {
	l.balances[k] = v
}

// Zero sets an existing account to zero. Absent accounts stay absent.
func (l *Ledger) Zero(k model.AccountKey) {
	if _, ok := l.balances[k]; ok {
		l.balances[k] = decimal.Zero
	}
}

// Len returns the number of accounts, including zero balances.
func (l *Ledger) Len() int { return len(l.balances) }

// Total returns the sum of every balance.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range l.balances {
		total = total.Add(v)
	}
	return total
}

// Keys returns every account key ordered by department then cost type.
func (l *Ledger) Keys() []model.AccountKey {
	keys := make([]model.AccountKey, 0, len(l.balances))
	for k := range l.balances {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// KeysWhere returns the ordered keys accepted by match.
func (l *Ledger) KeysWhere(match func(model.AccountKey) bool) []model.AccountKey {
	var keys []model.AccountKey
	for _, k := range l.Keys() {
		if match(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// DepartmentTotals returns the summed balance of every department.
func (l *Ledger) DepartmentTotals() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for k, v := range l.balances {
		totals[k.Department] = totals[k.Department].Add(v)
	}
	return totals
}

// Rows returns the non-zero accounts in key order, ready to persist.
func (l *Ledger) Rows() []model.Account {
	rows := make([]model.Account, 0, len(l.balances))
	for _, k := range l.Keys() {
		v := l.balances[k]
		if v.IsZero() {
			continue
		}
		rows = append(rows, model.Account{AccountKey: k, Cost: v})
	}
	return rows
}

// MoveCosts moves cost from one account to another and returns the amount
// moved. In MoveFraction mode amount is a fraction of the source balance at
// the time of the call. Nothing moves when the source is absent or zero. The
// destination is created when absent. The ledger total is unchanged.
func (l *Ledger) MoveCosts(from model.AccountKey, amount decimal.Decimal, to model.AccountKey, mode model.MoveMode) decimal.Decimal {
	balance, ok := l.balances[from]
	if !ok || balance.IsZero() {
		return decimal.Zero
	}
	if mode == model.MoveFraction {
		amount = balance.Mul(amount).Round(Scale)
	}
	if amount.IsZero() {
		return decimal.Zero
	}
	l.balances[from] = balance.Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return amount
}

package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is the balance state machine of a single client.
//
// Invariant after every Apply: Total == Available + Held.
// A transaction id lives in at most one of effects and disputes.
type Account struct {
	client    uint16
	available decimal.Decimal
	held      decimal.Decimal
	total     decimal.Decimal
	locked    bool

	// deposits and withdrawals that may still be referenced by a dispute
	effects map[uint32]Transaction
	// deposits currently under dispute
	disputes map[uint32]Transaction
}

func NewAccount(client uint16) *Account {
	return &Account{
		client:    client,
		available: decimal.Zero,
		held:      decimal.Zero,
		total:     decimal.Zero,
		effects:   make(map[uint32]Transaction),
		disputes:  make(map[uint32]Transaction),
	}
}

func (a *Account) Client() uint16             { return a.client }
func (a *Account) Available() decimal.Decimal { return a.available }
func (a *Account) Held() decimal.Decimal      { return a.held }
func (a *Account) Total() decimal.Decimal     { return a.total }
func (a *Account) Locked() bool               { return a.locked }

// Balance returns a copy of the reportable state.
func (a *Account) Balance() Balance {
	return Balance{
		Client:    a.client,
		Available: a.available,
		Held:      a.held,
		Total:     a.total,
		Locked:    a.locked,
	}
}

// Apply mutates the account according to tx. On error nothing changes.
func (a *Account) Apply(tx Transaction) error {
	if tx.Client() != a.client {
		return fmt.Errorf("%w: account=%d", reject(ErrClientMismatch, tx), a.client)
	}

	var err error
	switch tx.Type() {
	case TypeDeposit:
		err = a.deposit(tx.Amount())
	case TypeWithdrawal:
		err = a.withdraw(tx.Amount())
	case TypeDispute:
		err = a.dispute(tx.ID())
	case TypeResolve:
		err = a.resolve(tx.ID())
	case TypeChargeback:
		err = a.chargeback(tx.ID())
	default:
		err = ErrUnknownType
	}
	if err != nil {
		return reject(err, tx)
	}

	if tx.IsEffect() {
		a.effects[tx.ID()] = tx
	}
	return nil
}

func (a *Account) deposit(amount decimal.Decimal) error {
	if a.locked {
		return ErrAccountLocked
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}

	a.available = a.available.Add(amount)
	a.total = a.total.Add(amount)
	return nil
}

func (a *Account) withdraw(amount decimal.Decimal) error {
	if a.locked {
		return ErrAccountLocked
	}
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if a.available.LessThan(amount) {
		return ErrInsufficientFunds
	}

	a.available = a.available.Sub(amount)
	a.total = a.total.Sub(amount)
	return nil
}

// dispute moves a deposit's amount from available to held. Available may
// go negative when the funds were already withdrawn.
func (a *Account) dispute(id uint32) error {
	if _, ok := a.disputes[id]; ok {
		return ErrAlreadyDisputed
	}
	orig, ok := a.effects[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if orig.Type() != TypeDeposit {
		return ErrNotDisputable
	}

	amount := orig.Amount()
	delete(a.effects, id)
	a.available = a.available.Sub(amount)
	a.held = a.held.Add(amount)
	a.disputes[id] = orig
	return nil
}

// resolve releases held funds and makes the deposit disputable again.
// Allowed on locked accounts.
func (a *Account) resolve(id uint32) error {
	orig, ok := a.disputes[id]
	if !ok {
		return ErrNotDisputed
	}

	amount := orig.Amount()
	delete(a.disputes, id)
	a.held = a.held.Sub(amount)
	a.available = a.available.Add(amount)
	a.effects[id] = orig
	return nil
}

// chargeback removes held funds for good and locks the account.
// Allowed on locked accounts.
func (a *Account) chargeback(id uint32) error {
	orig, ok := a.disputes[id]
	if !ok {
		return ErrNotDisputed
	}

	amount := orig.Amount()
	delete(a.disputes, id)
	a.held = a.held.Sub(amount)
	a.total = a.total.Sub(amount)
	a.locked = true
	return nil
}

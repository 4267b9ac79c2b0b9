package engine

import (
	"sort"
	"sync"

	"txengine/internal/model"
)

// Engine owns one account per client id and routes transactions to it.
//
// Accounts are created on first sight of a client id. The account table is
// guarded by mu; each account is mutated under its own slot lock, so
// transactions of different clients never contend beyond the lookup.
type Engine struct {
	mu       sync.RWMutex
	accounts map[uint16]*slot
}

type slot struct {
	mu      sync.Mutex
	account *model.Account
}

func New() *Engine {
	return &Engine{
		accounts: make(map[uint16]*slot),
	}
}

// Process applies tx to the account of tx.Client(). Account rule violations
// are returned unchanged and leave the account as it was.
func (e *Engine) Process(tx model.Transaction) error {
	s := e.slot(tx.Client())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Apply(tx)
}

// ProcessBalance is Process that also returns the account balance right
// after tx, read under the same lock.
func (e *Engine) ProcessBalance(tx model.Transaction) (model.Balance, error) {
	s := e.slot(tx.Client())

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.account.Apply(tx)
	return s.account.Balance(), err
}

// slot returns the account slot for client, inserting it if absent.
func (e *Engine) slot(client uint16) *slot {
	e.mu.RLock()
	s, ok := e.accounts[client]
	e.mu.RUnlock()
	if ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.accounts[client]; ok {
		return s
	}
	s = &slot{account: model.NewAccount(client)}
	e.accounts[client] = s
	return s
}

// Account returns the balance of client, if the client has been seen.
func (e *Engine) Account(client uint16) (model.Balance, bool) {
	e.mu.RLock()
	s, ok := e.accounts[client]
	e.mu.RUnlock()
	if !ok {
		return model.Balance{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Balance(), true
}

// Accounts returns every balance ordered by ascending client id.
func (e *Engine) Accounts() []model.Balance {
	e.mu.RLock()
	slots := make([]*slot, 0, len(e.accounts))
	for _, s := range e.accounts {
		slots = append(slots, s)
	}
	e.mu.RUnlock()

	balances := make([]model.Balance, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		balances = append(balances, s.account.Balance())
		s.mu.Unlock()
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Client < balances[j].Client
	})
	return balances
}

// Len returns the number of known accounts.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.accounts)
}

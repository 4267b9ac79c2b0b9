package service

import (
	"sync/atomic"

	"go.uber.org/zap"

	"txengine/internal/engine"
	"txengine/internal/model"
)

const reasonOther = "other"

// Stats summarises what happened to submitted transactions.
type Stats struct {
	Applied  int64            `json:"applied"`
	Rejected map[string]int64 `json:"rejected"`
	Skipped  int64            `json:"skipped"`
}

// RejectedTotal sums rejections over all reasons.
func (s Stats) RejectedTotal() int64 {
	var n int64
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// LedgerService applies transactions to the engine and keeps count of the
// outcomes. Rejections are business outcomes: they are counted and logged,
// never returned as failures of the run.
type LedgerService struct {
	engine *engine.Engine
	log    *zap.Logger

	applied  atomic.Int64
	skipped  atomic.Int64
	rejected []atomic.Int64 // indexed like model.RuleErrors, plus one for unclassified
}

func NewLedgerService(eng *engine.Engine, log *zap.Logger) *LedgerService {
	return &LedgerService{
		engine:   eng,
		log:      log,
		rejected: make([]atomic.Int64, len(model.RuleErrors)+1),
	}
}

// Submit applies one transaction and returns the resulting balance of its
// account. On rejection the balance is the unchanged one and the account
// error is returned as is.
func (s *LedgerService) Submit(tx model.Transaction) (model.Balance, error) {
	balance, err := s.engine.ProcessBalance(tx)
	s.Record(tx, err)
	return balance, err
}

// Record counts one processed transaction. It is the engine.ResultFunc used
// for streamed runs and is safe for concurrent use.
func (s *LedgerService) Record(tx model.Transaction, err error) {
	if err == nil {
		s.applied.Add(1)
		return
	}

	s.rejected[reasonIndex(err)].Add(1)
	s.log.Debug("transaction rejected",
		zap.Uint16("client", tx.Client()),
		zap.Uint32("tx", tx.ID()),
		zap.String("type", string(tx.Type())),
		zap.Error(err),
	)
}

// Skip counts an input record that never became a transaction.
func (s *LedgerService) Skip(err error) {
	s.skipped.Add(1)
	s.log.Warn("record skipped", zap.Error(err))
}

func (s *LedgerService) Stats() Stats {
	stats := Stats{
		Applied:  s.applied.Load(),
		Skipped:  s.skipped.Load(),
		Rejected: make(map[string]int64),
	}
	for i := range s.rejected {
		n := s.rejected[i].Load()
		if n == 0 {
			continue
		}
		stats.Rejected[reasonName(i)] = n
	}
	return stats
}

func (s *LedgerService) Balances() []model.Balance {
	return s.engine.Accounts()
}

func (s *LedgerService) Balance(client uint16) (model.Balance, bool) {
	return s.engine.Account(client)
}

func reasonIndex(err error) int {
	reason := model.Reason(err)
	for i, r := range model.RuleErrors {
		if r == reason {
			return i
		}
	}
	return len(model.RuleErrors)
}

func reasonName(i int) string {
	if i < len(model.RuleErrors) {
		return model.RuleErrors[i].Error()
	}
	return reasonOther
}

package service

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"txengine/internal/engine"
	"txengine/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerService_Submit(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ledger := NewLedgerService(engine.New(), zap.New(core))

	balance, err := ledger.Submit(model.NewDeposit(1, 1, dec("2.5")))
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(dec("2.5")))

	balance, err = ledger.Submit(model.NewWithdrawal(1, 2, dec("3")))
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.True(t, balance.Available.Equal(dec("2.5")), "rejected withdrawal leaves the balance unchanged")

	_, err = ledger.Submit(model.NewDispute(1, 42))
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)

	stats := ledger.Stats()
	assert.Equal(t, int64(1), stats.Applied)
	assert.Equal(t, int64(2), stats.RejectedTotal())
	assert.Equal(t, int64(1), stats.Rejected[model.ErrInsufficientFunds.Error()])
	assert.Equal(t, int64(1), stats.Rejected[model.ErrTransactionNotFound.Error()])

	rejected := logs.FilterMessage("transaction rejected").All()
	require.Len(t, rejected, 2)
	assert.EqualValues(t, 2, rejected[0].ContextMap()["tx"])
}

func TestLedgerService_UnclassifiedRejection(t *testing.T) {
	ledger := NewLedgerService(engine.New(), zap.NewNop())

	ledger.Record(model.NewDeposit(1, 1, dec("1")), assert.AnError)

	assert.Equal(t, map[string]int64{reasonOther: 1}, ledger.Stats().Rejected)
}

func TestLedgerService_Skip(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ledger := NewLedgerService(engine.New(), zap.New(core))

	ledger.Skip(assert.AnError)

	assert.Equal(t, int64(1), ledger.Stats().Skipped)
	assert.Equal(t, 1, logs.FilterMessage("record skipped").Len())
}

func TestLedgerService_Balances(t *testing.T) {
	ledger := NewLedgerService(engine.New(), zap.NewNop())
	_, _ = ledger.Submit(model.NewDeposit(2, 1, dec("1")))
	_, _ = ledger.Submit(model.NewDeposit(1, 2, dec("1")))

	balances := ledger.Balances()
	require.Len(t, balances, 2)
	assert.Equal(t, uint16(1), balances[0].Client)

	_, ok := ledger.Balance(3)
	assert.False(t, ok)
}

func TestLedgerService_ConcurrentSubmitSeesOwnBalance(t *testing.T) {
	ledger := NewLedgerService(engine.New(), zap.NewNop())

	const n = 100
	totals := make(chan string, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			b, err := ledger.Submit(model.NewDeposit(1, id, dec("1")))
			assert.NoError(t, err)
			totals <- b.Total.String()
		}(uint32(i))
	}
	wg.Wait()
	close(totals)

	seen := make(map[string]struct{}, n)
	for total := range totals {
		seen[total] = struct{}{}
	}
	assert.Len(t, seen, n, "every submission reports its own post-state")
}

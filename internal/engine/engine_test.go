package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txengine/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEngine_CreatesAccountsLazily(t *testing.T) {
	eng := New()
	assert.Equal(t, 0, eng.Len())

	require.NoError(t, eng.Process(model.NewDeposit(2, 1, dec("10"))))
	err := eng.Process(model.NewDispute(5, 9))

	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
	assert.Equal(t, 2, eng.Len())

	b, ok := eng.Account(5)
	require.True(t, ok)
	assert.True(t, b.Total.IsZero())

	_, ok = eng.Account(3)
	assert.False(t, ok)
}

func TestEngine_AccountsAreSortedByClient(t *testing.T) {
	eng := New()
	for _, c := range []uint16{9, 1, 65535, 0, 4} {
		require.NoError(t, eng.Process(model.NewDeposit(c, uint32(c)+1, dec("1"))))
	}

	var clients []uint16
	for _, b := range eng.Accounts() {
		clients = append(clients, b.Client)
	}

	assert.Equal(t, []uint16{0, 1, 4, 9, 65535}, clients)
}

func TestEngine_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		txs    []model.Transaction
		want   model.Balance
		failed int
	}{
		{
			name: "dispute then resolve",
			txs: []model.Transaction{
				model.NewDeposit(1, 1, dec("100.0")),
				model.NewDispute(1, 1),
				model.NewResolve(1, 1),
			},
			want: model.Balance{Client: 1, Available: dec("100"), Held: dec("0"), Total: dec("100")},
		},
		{
			name: "dispute after withdrawal goes negative",
			txs: []model.Transaction{
				model.NewDeposit(1, 1, dec("100.0")),
				model.NewWithdrawal(1, 2, dec("100.0")),
				model.NewDispute(1, 1),
			},
			want: model.Balance{Client: 1, Available: dec("-100"), Held: dec("100"), Total: dec("0")},
		},
		{
			name: "chargeback locks",
			txs: []model.Transaction{
				model.NewDeposit(1, 1, dec("100.0")),
				model.NewDispute(1, 1),
				model.NewChargeback(1, 1),
				model.NewDeposit(1, 2, dec("50.0")),
			},
			want:   model.Balance{Client: 1, Available: dec("0"), Held: dec("0"), Total: dec("0"), Locked: true},
			failed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := New()
			failed := 0
			for _, tx := range tt.txs {
				if eng.Process(tx) != nil {
					failed++
				}
			}

			got, ok := eng.Account(1)
			require.True(t, ok)
			assert.Equal(t, tt.failed, failed)
			assert.True(t, tt.want.Available.Equal(got.Available))
			assert.True(t, tt.want.Held.Equal(got.Held))
			assert.True(t, tt.want.Total.Equal(got.Total))
			assert.Equal(t, tt.want.Locked, got.Locked)
		})
	}
}

func TestEngine_ConcurrentProcessIsRaceFree(t *testing.T) {
	eng := New()
	const clients, perClient = 16, 200

	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(client uint16, offset uint32) {
				defer wg.Done()
				for i := uint32(0); i < perClient; i++ {
					_ = eng.Process(model.NewDeposit(client, offset+i, dec("0.5")))
				}
			}(uint16(c), uint32(g*perClient))
		}
	}
	wg.Wait()

	balances := eng.Accounts()
	require.Len(t, balances, clients)
	for _, b := range balances {
		assert.Equal(t, "200.0000", b.Total.StringFixed(4), "client %d", b.Client)
	}
}

func feed(txs []model.Transaction) <-chan model.Transaction {
	ch := make(chan model.Transaction)
	go func() {
		defer close(ch)
		for _, tx := range txs {
			ch <- tx
		}
	}()
	return ch
}

// mixedStream interleaves order-sensitive dispute chains across many clients.
func mixedStream() []model.Transaction {
	var txs []model.Transaction
	id := uint32(1)
	for round := 0; round < 5; round++ {
		for c := uint16(1); c <= 40; c++ {
			dep := id
			txs = append(txs,
				model.NewDeposit(c, dep, dec("10.25")),
				model.NewWithdrawal(c, dep+1, dec("3.1")),
				model.NewDispute(c, dep),
			)
			if c%3 == 0 {
				txs = append(txs, model.NewChargeback(c, dep))
			} else {
				txs = append(txs, model.NewResolve(c, dep))
			}
			id += 2
		}
	}
	return txs
}

func TestRun_ShardedMatchesSerial(t *testing.T) {
	txs := mixedStream()

	serial := New()
	for _, tx := range txs {
		_ = serial.Process(tx)
	}

	for _, workers := range []int{0, 1, 3, 8} {
		eng := New()
		var processed, rejected atomic.Int64

		err := Run(context.Background(), eng, feed(txs), workers, func(_ model.Transaction, err error) {
			processed.Add(1)
			if err != nil {
				rejected.Add(1)
			}
		})

		require.NoError(t, err)
		assert.Equal(t, int64(len(txs)), processed.Load())
		assert.Positive(t, rejected.Load())
		assert.Equal(t, rows(serial.Accounts()), rows(eng.Accounts()), "workers=%d", workers)
	}
}

func TestRun_NilResultFunc(t *testing.T) {
	eng := New()

	err := Run(context.Background(), eng, feed([]model.Transaction{model.NewDeposit(1, 1, dec("1"))}), 2, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, eng.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	for _, workers := range []int{1, 4} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Run(ctx, New(), make(chan model.Transaction), workers, nil)

		assert.ErrorIs(t, err, context.Canceled)
	}
}

func rows(balances []model.Balance) [][]string {
	out := make([][]string, 0, len(balances))
	for _, b := range balances {
		out = append(out, b.Row())
	}
	return out
}

func TestEngine_ProcessBalanceReturnsOwnPostState(t *testing.T) {
	eng := New()

	const n = 200
	totals := make(chan string, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			b, err := eng.ProcessBalance(model.NewDeposit(5, id, decimal.NewFromInt(1)))
			assert.NoError(t, err)
			totals <- b.Total.String()
		}(uint32(i))
	}
	wg.Wait()
	close(totals)

	seen := make(map[string]bool, n)
	for total := range totals {
		assert.False(t, seen[total], "total %s returned twice", total)
		seen[total] = true
	}
	assert.Len(t, seen, n)

	b, err := eng.ProcessBalance(model.NewWithdrawal(5, 999, decimal.NewFromInt(1000)))
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, "200", b.Total.String(), "rejection returns the unchanged balance")
}

package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"txengine/internal/model"
)

const shardBuffer = 256

// ResultFunc observes the outcome of every processed transaction. With more
// than one worker it is called concurrently from different shards.
type ResultFunc func(tx model.Transaction, err error)

// Run drains source into eng until source is closed or ctx is done.
//
// With workers > 1 transactions are sharded by client id, one goroutine per
// shard. All transactions of a client land on the same shard, so their
// relative order is exactly the order they were read from source.
func Run(ctx context.Context, eng *Engine, source <-chan model.Transaction, workers int, onResult ResultFunc) error {
	if onResult == nil {
		onResult = func(model.Transaction, error) {}
	}

	if workers <= 1 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case tx, ok := <-source:
				if !ok {
					return nil
				}
				onResult(tx, eng.Process(tx))
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	shards := make([]chan model.Transaction, workers)
	for i := range shards {
		ch := make(chan model.Transaction, shardBuffer)
		shards[i] = ch
		g.Go(func() error {
			for tx := range ch {
				onResult(tx, eng.Process(tx))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case tx, ok := <-source:
				if !ok {
					return nil
				}
				select {
				case shards[shardOf(tx.Client(), workers)] <- tx:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	return g.Wait()
}

func shardOf(client uint16, workers int) int {
	return int(client) % workers
}

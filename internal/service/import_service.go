package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"txengine/internal/engine"
	"txengine/internal/ingest"
	"txengine/internal/model"
)

const sourceBuffer = 1024

// ImportService streams a CSV source through the engine.
type ImportService struct {
	engine  *engine.Engine
	ledger  *LedgerService
	workers int
	log     *zap.Logger
}

func NewImportService(eng *engine.Engine, ledger *LedgerService, workers int, log *zap.Logger) *ImportService {
	return &ImportService{
		engine:  eng,
		ledger:  ledger,
		workers: workers,
		log:     log,
	}
}

// Import reads every record of r and applies it. Malformed records are
// skipped and rejected transactions are counted; only a failure to read r
// or a cancelled ctx stops the import early.
func (s *ImportService) Import(ctx context.Context, r io.Reader) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	source := make(chan model.Transaction, sourceBuffer)

	g.Go(func() error {
		defer close(source)

		reader := ingest.NewReader(r)
		for {
			tx, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ingest.ErrMalformedRecord) {
				s.ledger.Skip(err)
				continue
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			select {
			case source <- tx:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		return engine.Run(gctx, s.engine, source, s.workers, s.ledger.Record)
	})

	err := g.Wait()
	stats := s.ledger.Stats()

	if err != nil {
		return stats, err
	}

	s.log.Info("import finished",
		zap.Int64("applied", stats.Applied),
		zap.Int64("rejected", stats.RejectedTotal()),
		zap.Int64("skipped", stats.Skipped),
		zap.Int("accounts", s.engine.Len()),
		zap.Int("workers", s.workers),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

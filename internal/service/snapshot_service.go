package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"txengine/internal/engine"
	"txengine/internal/model"
	"txengine/pkg/idgen"
)

// Exporter is a destination for balance snapshots.
type Exporter interface {
	Name() string
	Export(ctx context.Context, runNo string, balances []model.Balance) error
}

// SnapshotStore reads back exported runs.
type SnapshotStore interface {
	ListByRunNo(ctx context.Context, runNo string) ([]*model.AccountSnapshot, error)
}

var ErrSnapshotStoreDisabled = errors.New("snapshot store not configured")

type SnapshotResult struct {
	RunNo    string `json:"run_no"`
	Accounts int    `json:"accounts"`
}

// SnapshotService exports the engine's balances to every exporter.
type SnapshotService struct {
	engine    *engine.Engine
	exporters []Exporter
	store     SnapshotStore
	log       *zap.Logger
	runNo     func() string
}

func NewSnapshotService(eng *engine.Engine, log *zap.Logger, exporters ...Exporter) *SnapshotService {
	return &SnapshotService{
		engine:    eng,
		exporters: exporters,
		log:       log,
		runNo:     idgen.GenerateRunNo,
	}
}

// Export sends one snapshot run. A failing exporter does not stop the
// others; their errors are joined.
func (s *SnapshotService) Export(ctx context.Context) (SnapshotResult, error) {
	balances := s.engine.Accounts()
	result := SnapshotResult{RunNo: s.runNo(), Accounts: len(balances)}

	if len(s.exporters) == 0 || len(balances) == 0 {
		return result, nil
	}

	var errs []error
	for _, e := range s.exporters {
		if err := e.Export(ctx, result.RunNo, balances); err != nil {
			s.log.Error("snapshot export failed",
				zap.String("exporter", e.Name()),
				zap.String("run_no", result.RunNo),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		s.log.Info("snapshot exported",
			zap.String("exporter", e.Name()),
			zap.String("run_no", result.RunNo),
			zap.Int("accounts", len(balances)),
		)
	}
	return result, errors.Join(errs...)
}

// WithStore enables Find. The store is usually also one of the exporters.
func (s *SnapshotService) WithStore(store SnapshotStore) *SnapshotService {
	s.store = store
	return s
}

// Find returns the rows of an exported run.
func (s *SnapshotService) Find(ctx context.Context, runNo string) ([]*model.AccountSnapshot, error) {
	if s.store == nil {
		return nil, ErrSnapshotStoreDisabled
	}
	return s.store.ListByRunNo(ctx, runNo)
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"txengine/internal/model"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const snapshotBatchSize = 500

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Name() string { return "mysql" }

// Export stores one run of balances. It satisfies the snapshot exporter
// interface.
func (r *SnapshotRepository) Export(ctx context.Context, runNo string, balances []model.Balance) error {
	return r.SaveBatch(ctx, runNo, balances)
}

// SaveBatch inserts a row per balance. Re-saving the same run overwrites
// its rows instead of failing on uk_run_client.
func (r *SnapshotRepository) SaveBatch(ctx context.Context, runNo string, balances []model.Balance) error {
	if len(balances) == 0 {
		return nil
	}

	rows := make([]*model.AccountSnapshot, 0, len(balances))
	for _, b := range balances {
		rows = append(rows, model.NewAccountSnapshot(runNo, b))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_no"}, {Name: "client"}},
			DoUpdates: clause.AssignmentColumns([]string{"available", "held", "total", "locked"}),
		}).
		CreateInBatches(rows, snapshotBatchSize).Error
}

// ListByRunNo returns a run's rows in client order.
func (r *SnapshotRepository) ListByRunNo(ctx context.Context, runNo string) ([]*model.AccountSnapshot, error) {
	var rows []*model.AccountSnapshot
	err := r.db.WithContext(ctx).
		Where("run_no = ?", runNo).
		Order("client ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return rows, nil
}

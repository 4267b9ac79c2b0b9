package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"txengine/internal/service"
)

const finalExportTimeout = 10 * time.Second

var ErrInvalidInterval = errors.New("snapshot interval must be positive")

// SnapshotExporter is satisfied by service.SnapshotService.
type SnapshotExporter interface {
	Export(ctx context.Context) (service.SnapshotResult, error)
}

// SnapshotJob exports balances periodically and once more when stopped, so
// the last state before shutdown is always published.
type SnapshotJob struct {
	exporter SnapshotExporter
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSnapshotJob(exporter SnapshotExporter, interval time.Duration, log *zap.Logger) (*SnapshotJob, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	return &SnapshotJob{
		exporter: exporter,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start blocks until ctx is done or Stop is called. Either way it exports
// once more before returning.
func (j *SnapshotJob) Start(ctx context.Context) {
	j.log.Info("snapshot job started", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("snapshot job cancelled")
			j.finalExport()
			return
		case <-j.stopCh:
			j.log.Info("snapshot job stopped")
			j.finalExport()
			return
		case <-ticker.C:
			j.export(ctx)
		}
	}
}

func (j *SnapshotJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *SnapshotJob) export(ctx context.Context) {
	result, err := j.exporter.Export(ctx)
	if err != nil {
		j.log.Error("snapshot export failed", zap.String("run_no", result.RunNo), zap.Error(err))
		return
	}
	j.log.Debug("snapshot run done", zap.String("run_no", result.RunNo), zap.Int("accounts", result.Accounts))
}

// finalExport runs on a fresh context since the job's own may be cancelled.
func (j *SnapshotJob) finalExport() {
	ctx, cancel := context.WithTimeout(context.Background(), finalExportTimeout)
	defer cancel()
	j.export(ctx)
}

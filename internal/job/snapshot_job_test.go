package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"txengine/internal/service"
)

type countingExporter struct {
	calls   atomic.Int64
	err     error
	ctxErrs []error
	mu      sync.Mutex
}

func (e *countingExporter) Export(ctx context.Context) (service.SnapshotResult, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.ctxErrs = append(e.ctxErrs, ctx.Err())
	e.mu.Unlock()
	return service.SnapshotResult{RunNo: "SNP"}, e.err
}

func runJob(ctx context.Context, j *SnapshotJob) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Start(ctx)
	}()
	return done
}

func TestSnapshotJob_TicksAndExportsOnStop(t *testing.T) {
	exp := &countingExporter{}
	j, err := NewSnapshotJob(exp, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	done := runJob(context.Background(), j)

	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	before := exp.calls.Load()

	j.Stop()
	j.Stop()
	<-done

	assert.GreaterOrEqual(t, exp.calls.Load(), before+1)
}

func TestSnapshotJob_FinalExportSurvivesCancel(t *testing.T) {
	exp := &countingExporter{}
	j, err := NewSnapshotJob(exp, time.Hour, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runJob(ctx, j)
	cancel()
	<-done

	require.Equal(t, int64(1), exp.calls.Load())
	assert.NoError(t, exp.ctxErrs[0], "final export gets a live context")
}

func TestSnapshotJob_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	exp := &countingExporter{err: errors.New("broker down")}
	j, err := NewSnapshotJob(exp, time.Hour, zap.New(core))
	require.NoError(t, err)

	done := runJob(context.Background(), j)
	j.Stop()
	<-done

	assert.Equal(t, 1, logs.FilterMessage("snapshot export failed").Len())
}

func TestNewSnapshotJob_RejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		_, err := NewSnapshotJob(&countingExporter{}, interval, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
}

package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// Snowflake IDs for snapshot runs
// ============================================================================
//
//   0 - 41 bit timestamp - 10 bit worker - 12 bit sequence
//
// Run numbers tag every exported snapshot row and message so consumers can
// group the balances of one export together.
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake generates time ordered unique ids.
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	mu               sync.Mutex
)

// NewSnowflake returns a generator for workerID in [0, 1023].
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID must be within 0-%d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets up the package generator. Once it succeeded later calls are
// no-ops.
func Init(workerID int64) error {
	mu.Lock()
	defer mu.Unlock()

	if defaultGenerator != nil {
		return nil
	}
	g, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	defaultGenerator = g
	return nil
}

// NextID uses worker 1 unless Init was called first.
func NextID() int64 {
	_ = Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted, wait for the next millisecond
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateRunNo returns a snapshot run number.
// Format: SNP + yyyyMMddHHmmss + last 8 digits of a snowflake id,
// e.g. SNP2024011514305212345678.
func GenerateRunNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("SNP%s%08d", timestamp, id%100000000)
}

package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// GenerationLocker collapses concurrent generation attempts for one batch:
// exactly one caller runs, the rest observe ErrNotEligible and no-op.
type GenerationLocker interface {
	TryLock(ctx context.Context, batchID string) (unlock func(), err error)
}

var errLockBusy = errors.New("generation already in progress")

// RedsyncLocker coordinates generation across server instances.
type RedsyncLocker struct {
	rs *redsync.Redsync
}

func NewRedsyncLocker(client *redis.Client) *RedsyncLocker {
	return &RedsyncLocker{rs: redsync.New(goredis.NewPool(client))}
}

func (l *RedsyncLocker) TryLock(ctx context.Context, batchID string) (func(), error) {
	mutex := l.rs.NewMutex("import:generation:"+batchID,
		redsync.WithExpiry(15*time.Minute),
		redsync.WithTries(1),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		return nil, errLockBusy
	}
	return func() {
		mutex.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}

// LocalLocker is the single-process fallback.
type LocalLocker struct {
	mu    sync.Mutex
	taken map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{taken: map[string]bool{}}
}

func (l *LocalLocker) TryLock(_ context.Context, batchID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.taken[batchID] {
		return nil, errLockBusy
	}
	l.taken[batchID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.taken, batchID)
	}, nil
}

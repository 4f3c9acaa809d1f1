package batch

import (
	"context"
	"testing"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	unlock, err := l.TryLock(ctx, "b-1")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := l.TryLock(ctx, "b-1"); err == nil {
		t.Fatal("second lock on the same batch should fail")
	}

	// other batches are independent
	unlockOther, err := l.TryLock(ctx, "b-2")
	if err != nil {
		t.Fatalf("lock on other batch: %v", err)
	}
	unlockOther()

	unlock()
	unlock2, err := l.TryLock(ctx, "b-1")
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	unlock2()
}

package record

import (
	"context"
	"errors"
	"testing"

	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/models"
)

func TestResubmitAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingReview)
	env.seedRecord(t, b.BatchID, 1, models.RecordProcessingComplete)
	env.seedRecord(t, b.BatchID, 2, models.RecordPendingReview)

	n, err := env.Mgr.ResubmitAll(ctx, b.BatchID, []int{0, 1, 2}, "drw")
	if err != nil {
		t.Fatalf("resubmit all: %v", err)
	}
	if n != 3 {
		t.Fatalf("resubmitted %d, want 3", n)
	}
	for i := 0; i < 3; i++ {
		r, err := env.Meta.GetRecord(ctx, b.BatchID, i)
		if err != nil {
			t.Fatal(err)
		}
		if r.Status != models.RecordPendingProcessing {
			t.Errorf("record %d status = %s", i, r.Status)
		}
	}
	if items := drainQueue(env.Queue); len(items) != 3 {
		t.Fatalf("want 3 enqueued items, got %d", len(items))
	}

	cur, err := env.Meta.GetBatch(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.StatusCounts[models.RecordPendingProcessing] != 3 {
		t.Errorf("aggregate counts not refreshed: %v", cur.StatusCounts)
	}
}

func TestResubmitAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingReview)
	// still in data entry, not resubmittable
	env.seedRecord(t, b.BatchID, 1, models.RecordPendingDataEntry)

	n, err := env.Mgr.ResubmitAll(ctx, b.BatchID, []int{0, 1}, "drw")
	if n != 1 {
		t.Fatalf("resubmitted %d, want 1", n)
	}
	if !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("want the per-record conflict joined into the error, got %v", err)
	}

	r, err := env.Meta.GetRecord(ctx, b.BatchID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.RecordPendingDataEntry {
		t.Errorf("unresubmittable record was moved: %s", r.Status)
	}
	if items := drainQueue(env.Queue); len(items) != 1 {
		t.Fatalf("want 1 enqueued item, got %d", len(items))
	}
}

package aggregate

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/metrics"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

// Aggregator recomputes a batch's status counts from a full scan of its
// records after every record mutation. Batches are bounded (pages of a fax,
// rows of an export), so the O(records) scan is acceptable.
type Aggregator struct {
	Meta metastore.Store
}

func New(meta metastore.Store) *Aggregator {
	return &Aggregator{Meta: meta}
}

// Recompute derives the batch's counts and, where warranted, pushes its
// status forward. This is the one writer that does not guard on current
// status: counts are whatever the records say they are.
func (a *Aggregator) Recompute(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	batch, err := a.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	records, err := a.Meta.ListRecords(ctx, batchID)
	if err != nil {
		return nil, err
	}

	counts := map[models.RecordStatus]int{}
	done := 0
	pendingReview := 0
	for _, r := range records {
		counts[r.Status]++
		if models.DoneRecordStatus(r.Status) {
			done++
		}
		if r.Status == models.RecordPendingReview {
			pendingReview++
		}
	}

	batch.StatusCounts = counts
	total := len(records)
	switch {
	case batch.Status == models.BatchDiscarded:
		// counts still refresh, but a discarded batch never moves
	case done == total:
		// vacuously true for a zero-record batch
		if batch.Status != models.BatchComplete {
			now := time.Now().UTC()
			batch.CompletedAt = &now
			metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchComplete)).Inc()
		}
		batch.Status = models.BatchComplete
	case pendingReview > 0 && done+pendingReview == total:
		if batch.Status != models.BatchPendingReview {
			metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchPendingReview)).Inc()
		}
		batch.Status = models.BatchPendingReview
	default:
		// Neither predicate holds. A batch parked in pending_review returns to
		// processing once a resubmitted record reopens work; anything else is
		// left alone.
		if batch.Status == models.BatchPendingReview {
			batch.Status = models.BatchProcessing
			metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchProcessing)).Inc()
		}
	}
	batch.LastUpdatedAt = time.Now().UTC()

	if err := a.Meta.UpdateBatch(ctx, batch, nil); err != nil {
		return nil, err
	}
	logger.Debug("recomputed batch status", "batchId", batchID, "status", batch.Status, "records", total)
	return batch, nil
}

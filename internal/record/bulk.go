package record

import (
	"context"
	"errors"
	"sync"

	"github.com/chartflow/import-server/internal/metrics"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
)

// BulkConcurrency bounds simultaneous per-record submissions during a bulk
// resubmit.
var BulkConcurrency = 4

// ResubmitAll resubmits a set of records for reprocessing. Per-record
// aggregate recomputes are skipped and a single recompute runs at the end;
// work queue signals go out chunked in one best-effort publish.
func (m *Manager) ResubmitAll(ctx context.Context, batchID string, indexes []int, actor string) (int, error) {
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}

	sem := make(chan struct{}, BulkConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	resubmitted := make([]int, 0, len(indexes))

	for _, idx := range indexes {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			_, err := m.Resubmit(ctx, batchID, idx, actor, true)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			resubmitted = append(resubmitted, idx)
		}(idx)
	}
	wg.Wait()

	if _, err := m.Agg.Recompute(ctx, batchID); err != nil {
		return len(resubmitted), err
	}

	items := make([]*queue.WorkItem, 0, len(resubmitted))
	for _, idx := range resubmitted {
		items = append(items, queue.NewRecordReady(batchID, idx, b.DownstreamFlowID))
	}
	if err := queue.PublishChunked(ctx, m.Queue, items); err != nil {
		metrics.QueuePublishFailures.Inc()
		logger.Error("best-effort bulk enqueue failed", "batchId", batchID, "items", len(items), "error", err)
	}

	return len(resubmitted), errors.Join(errs...)
}

// List returns a batch's records in index order.
func (m *Manager) List(ctx context.Context, batchID string) ([]*models.ImportBatchRecord, error) {
	return m.Meta.ListRecords(ctx, batchID)
}

// Get returns one record.
func (m *Manager) Get(ctx context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error) {
	return m.Meta.GetRecord(ctx, batchID, recordIndex)
}

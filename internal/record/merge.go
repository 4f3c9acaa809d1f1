package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/models"
)

// MergeRecords concatenates the page payloads of several pdf records into one
// new record appended at the next free index. The merged-from records stay in
// place, visible but superseded; assignee tooling is expected to know that.
func (m *Manager) MergeRecords(ctx context.Context, batchID string, indexes []int, actor string) (*models.ImportBatchRecord, error) {
	if len(indexes) < 2 {
		return nil, fmt.Errorf("%w: a merge needs at least two records", models.ErrValidation)
	}
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.DataFormat != models.FormatPDF {
		return nil, fmt.Errorf("%w: only pdf batches support merging", models.ErrValidation)
	}
	if b.Status == models.BatchGenerating || b.Status == models.BatchPendingGeneration {
		return nil, fmt.Errorf("batch %s is %s: %w", batchID, b.Status, metastore.ErrStateConflict)
	}

	merged := generators.PDFPageSetPayload{}
	for _, idx := range indexes {
		r, err := m.Meta.GetRecord(ctx, batchID, idx)
		if err != nil {
			return nil, err
		}
		if r.Status != models.RecordPendingDataEntry {
			return nil, fmt.Errorf("record %s/%d is %s: %w", batchID, idx, r.Status, metastore.ErrStateConflict)
		}
		raw, err := m.Blobs.Get(ctx, models.RecordPayloadBucket, blobKey(batchID, idx))
		if err != nil {
			return nil, err
		}
		var payload generators.PDFPageSetPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		merged.Pages = append(merged.Pages, payload.Pages...)
	}

	maxIdx, err := m.Meta.MaxRecordIndex(ctx, batchID)
	if err != nil {
		return nil, err
	}
	newIndex := maxIdx + 1

	payload, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := m.Blobs.PutIfAbsent(ctx, models.RecordPayloadBucket, blobKey(batchID, newIndex), payload); err != nil {
		return nil, err
	}
	snapshot, _ := json.Marshal(map[string]string{})
	if err := m.Blobs.Put(ctx, models.DataEntryBucket, blobKey(batchID, newIndex), snapshot); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &models.ImportBatchRecord{
		BatchID:       batchID,
		RecordIndex:   newIndex,
		RecordFormat:  models.RecordFormatPDFPageSet,
		Status:        models.RecordPendingDataEntry,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := m.Meta.CreateRecord(ctx, r); err != nil {
		return nil, err
	}

	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:    eventlog.BatchRecordsMerged,
		BatchID: batchID,
		Actor:   actor,
		EventData: map[string]any{
			"sourceIndexes": indexes,
			"mergedIndex":   newIndex,
		},
	})
	if _, err := m.Agg.Recompute(ctx, batchID); err != nil {
		return nil, err
	}
	return r, nil
}

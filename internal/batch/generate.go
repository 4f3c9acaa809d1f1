package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/metrics"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
	"github.com/chartflow/import-server/pkg/sloger"
)

// GenerationStaleAfter is how long a batch may sit in generating with no
// update before another caller may take generation over.
var GenerationStaleAfter = 10 * time.Minute

// admitGeneration decides whether generation may run right now. Anything
// outside these cases is an expected rejection, not a failure.
func admitGeneration(b *models.ImportBatch, recordCount int) error {
	if b.DataFormat == models.FormatPDF && b.PDFPageCount != nil && *b.PDFPageCount > recordCount {
		return nil
	}
	switch b.Status {
	case models.BatchPendingGeneration, models.BatchGenerationError:
		return nil
	case models.BatchGenerating:
		if time.Since(b.LastUpdatedAt) > GenerationStaleAfter {
			return nil
		}
	case models.BatchTriage:
		if recordCount == 0 {
			return nil
		}
	}
	return fmt.Errorf("batch %s is %s with %d records: %w", b.BatchID, b.Status, recordCount, ErrNotEligible)
}

// Generate admits, runs the format's generator, persists each produced
// record, and settles the batch's post-generation status. Generator and
// infrastructure failures during the run are recorded as generation_error on
// the batch rather than propagated, so the batch stays inspectable and
// retryable. Returns how many records were newly persisted.
func (m *Manager) Generate(ctx context.Context, batchID string) (int, error) {
	ctx = sloger.SetBatchID(ctx, batchID)
	log := sloger.FromContext(ctx)

	unlock, err := m.Locker.TryLock(ctx, batchID)
	if err != nil {
		log.Info("generation collapsed onto an in-flight run")
		return 0, ErrNotEligible
	}
	defer unlock()

	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	records, err := m.Meta.ListRecords(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if err := admitGeneration(b, len(records)); err != nil {
		return 0, err
	}

	// Exactly one concurrent admit wins this guarded write.
	from := b.Status
	b.Status = models.BatchGenerating
	b.GenerationError = ""
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, []models.BatchStatus{from}); err != nil {
		if errors.Is(err, metastore.ErrStateConflict) {
			metrics.StateConflictsTotal.Inc()
			return 0, ErrNotEligible
		}
		return 0, err
	}
	metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchGenerating)).Inc()

	created, err := m.runGeneration(ctx, b)
	if err != nil {
		return 0, m.recordGenerationError(ctx, b, err)
	}
	if err := m.markGenerationComplete(ctx, b); err != nil {
		return created, err
	}
	return created, nil
}

func (m *Manager) runGeneration(ctx context.Context, b *models.ImportBatch) (int, error) {
	raw, err := m.Blobs.Get(ctx, models.BatchBlobBucket, b.BatchID)
	if err != nil {
		return 0, err
	}

	if b.DataFormat == models.FormatPDF && b.PDFPageCount == nil {
		if m.Raster == nil {
			return 0, ErrNoRasterizer
		}
		count, err := m.Raster.PageCount(ctx, raw)
		if err != nil {
			return 0, err
		}
		b.PDFPageCount = &count
		b.LastUpdatedAt = time.Now().UTC()
		if err := m.Meta.UpdateBatch(ctx, b, nil); err != nil {
			return 0, err
		}
	}

	gen, err := generators.Get(b.DataFormat)
	if err != nil {
		return 0, err
	}
	maxIdx, err := m.Meta.MaxRecordIndex(ctx, b.BatchID)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	candidates, err := gen.Generate(ctx, raw, b.FormatOptions, maxIdx+1)
	metrics.GenerationDuration.WithLabelValues(string(b.DataFormat)).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range candidates {
		fresh, err := m.persistCandidate(ctx, b, c)
		if err != nil {
			return created, err
		}
		if fresh {
			created++
		}
	}
	sloger.FromContext(ctx).Info("generation produced records", "format", b.DataFormat, "candidates", len(candidates), "created", created)
	return created, nil
}

// persistCandidate writes both blobs then the metadata record. A candidate
// whose index already exists is a resume or regeneration overlap and is
// skipped; both blob writes are create-only so a regeneration pass never
// overwrites entry work saved against an existing record. Returns whether a
// new record was created.
func (m *Manager) persistCandidate(ctx context.Context, b *models.ImportBatch, c generators.Candidate) (bool, error) {
	blobKey := b.BatchID + "/" + strconv.Itoa(c.Index)
	payload, err := json.Marshal(c.Payload)
	if err != nil {
		return false, err
	}
	if err := m.Blobs.PutIfAbsent(ctx, models.RecordPayloadBucket, blobKey, payload); err != nil && !errors.Is(err, blobstore.ErrExists) {
		return false, err
	}
	snapshot, err := json.Marshal(c.EntrySnapshot)
	if err != nil {
		return false, err
	}
	if err := m.Blobs.PutIfAbsent(ctx, models.DataEntryBucket, blobKey, snapshot); err != nil && !errors.Is(err, blobstore.ErrExists) {
		return false, err
	}

	status := models.RecordPendingProcessing
	if b.RequiresDataEntry {
		status = models.RecordPendingDataEntry
	}
	now := time.Now().UTC()
	r := &models.ImportBatchRecord{
		BatchID:       b.BatchID,
		RecordIndex:   c.Index,
		RecordFormat:  c.Format,
		Status:        status,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := m.Meta.CreateRecord(ctx, r); err != nil {
		if errors.Is(err, metastore.ErrExists) {
			return false, nil
		}
		return false, err
	}

	if status == models.RecordPendingProcessing {
		if err := m.Queue.Publish(ctx, queue.NewRecordReady(b.BatchID, c.Index, b.DownstreamFlowID)); err != nil {
			metrics.QueuePublishFailures.Inc()
			logger.Error("best-effort enqueue of generated record failed", "batchId", b.BatchID, "recordIndex", c.Index, "error", err)
		}
	}
	return true, nil
}

// markGenerationComplete settles the batch after a successful run: zero
// records leave it complete with zero work; a pdf batch must account for
// every authoritative page; an already-assigned and triaged batch opens
// immediately; everything else lands in triage.
func (m *Manager) markGenerationComplete(ctx context.Context, b *models.ImportBatch) error {
	b, err := m.Agg.Recompute(ctx, b.BatchID)
	if err != nil {
		return err
	}
	if b.Status == models.BatchComplete {
		// zero records resulted; the batch is complete with zero work
		return nil
	}

	if b.DataFormat == models.FormatPDF {
		if m.Raster == nil {
			return m.recordGenerationError(ctx, b, ErrNoRasterizer)
		}
		raw, err := m.Blobs.Get(ctx, models.BatchBlobBucket, b.BatchID)
		if err != nil {
			return err
		}
		pageCount, err := m.Raster.PageCount(ctx, raw)
		if err != nil {
			return err
		}
		b.PDFPageCount = &pageCount
		records, err := m.Meta.ListRecords(ctx, b.BatchID)
		if err != nil {
			return err
		}
		if len(records) != pageCount {
			return m.recordGenerationError(ctx, b,
				fmt.Errorf("generated %d records for %d pages", len(records), pageCount))
		}
	}

	if b.AssignedTo != "" && b.FacilityID != nil {
		assignee := b.AssignedTo
		b.Status = models.BatchToTriage.To
		b.LastUpdatedAt = time.Now().UTC()
		if err := m.Meta.UpdateBatch(ctx, b, models.BatchToTriage.From); err != nil {
			return m.countConflict(err)
		}
		_, err := m.OpenForProcessing(ctx, b.BatchID, assignee)
		return err
	}

	b.Status = models.BatchToTriage.To
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, models.BatchToTriage.From); err != nil {
		return m.countConflict(err)
	}
	metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchTriage)).Inc()
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchStatusUpdate,
		BatchID:   b.BatchID,
		EventData: map[string]any{"status": string(models.BatchTriage)},
	})
	return nil
}

// recordGenerationError parks the batch in generation_error with the causal
// message. The batch remains retryable; nil is returned so upstream intake
// does not re-drive a failure that is already recorded.
func (m *Manager) recordGenerationError(ctx context.Context, b *models.ImportBatch, cause error) error {
	metrics.GenerationFailures.WithLabelValues(string(b.DataFormat)).Inc()
	sloger.FromContext(ctx).Error("generation failed", "batchId", b.BatchID, "error", cause)

	cur, err := m.Meta.GetBatch(ctx, b.BatchID)
	if err != nil {
		return err
	}
	cur.Status = models.BatchGenerationError
	cur.GenerationError = cause.Error()
	cur.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, cur, nil); err != nil {
		return err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchStatusUpdate,
		BatchID:   b.BatchID,
		EventData: map[string]any{"status": string(models.BatchGenerationError), "error": cause.Error()},
	})
	return nil
}

// PageImage returns one page bitmap of a pdf record. A missing blob is
// regenerated on demand from the original source bytes, trading latency for
// resilience against partial writes.
func (m *Manager) PageImage(ctx context.Context, batchID string, recordIndex int) ([]byte, error) {
	blobKey := batchID + "/" + strconv.Itoa(recordIndex)
	raw, err := m.Blobs.Get(ctx, models.RecordPayloadBucket, blobKey)
	if err == nil {
		var payload generators.PDFPageSetPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if len(payload.Pages) > 0 {
			return payload.Pages[0], nil
		}
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return nil, err
	}

	if m.Raster == nil {
		return nil, ErrNoRasterizer
	}
	source, err := m.Blobs.Get(ctx, models.BatchBlobBucket, batchID)
	if err != nil {
		return nil, err
	}
	bitmaps, err := m.Raster.RenderPages(ctx, source, recordIndex, 1)
	if err != nil {
		return nil, err
	}
	if len(bitmaps) == 0 {
		return nil, fmt.Errorf("page %d: %w", recordIndex, blobstore.ErrNotFound)
	}
	payload, err := json.Marshal(generators.PDFPageSetPayload{Pages: bitmaps[:1]})
	if err != nil {
		return nil, err
	}
	if err := m.Blobs.Put(ctx, models.RecordPayloadBucket, blobKey, payload); err != nil {
		logger.Error("failed to backfill regenerated page blob", "batchId", batchID, "recordIndex", recordIndex, "error", err)
	}
	return bitmaps[0], nil
}

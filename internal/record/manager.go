package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/chartflow/import-server/internal/aggregate"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/metrics"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
	"github.com/chartflow/import-server/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

var ErrReasonRequired = errors.New("a reason is required")

// Manager owns the record state machine. Every status change is one guarded
// store update; a losing racer gets ErrStateConflict and must re-read.
type Manager struct {
	Meta   metastore.Store
	Blobs  blobstore.Store
	Queue  queue.Publisher
	Events *eventlog.Log
	Agg    *aggregate.Aggregator
}

func blobKey(batchID string, recordIndex int) string {
	return batchID + "/" + strconv.Itoa(recordIndex)
}

// SaveDataEntryInput is one editor save against a record.
type SaveDataEntryInput struct {
	Entry         map[string]string
	ErrorFields   []string
	InvalidFields []string
	// FormDefRef names the form definition the entry was keyed against.
	FormDefRef string
	Actor      string
}

// SaveDataEntry persists the editor's field map and moves the record to
// pending_processing. The error-field set present before the very first save
// is snapshotted write-once for data-entry-quality analytics.
func (m *Manager) SaveDataEntry(ctx context.Context, batchID string, recordIndex int, in SaveDataEntryInput) (*models.ImportBatchRecord, error) {
	ctx = sloger.SetRecord(ctx, batchID, recordIndex)
	r, err := m.Meta.GetRecord(ctx, batchID, recordIndex)
	if err != nil {
		return nil, err
	}
	allowed := append([]models.RecordStatus(nil), models.RecordToPendingProcessingFromEntry.From...)
	if !statusIn(r.Status, allowed) {
		return nil, fmt.Errorf("record %s/%d is %s: %w", batchID, recordIndex, r.Status, metastore.ErrStateConflict)
	}

	if r.Status == models.RecordPendingDataEntry {
		r.FreezeInitialErrorFields(in.ErrorFields)
	}

	snapshot, err := json.Marshal(in.Entry)
	if err != nil {
		return nil, err
	}
	if err := m.Blobs.Put(ctx, models.DataEntryBucket, blobKey(batchID, recordIndex), snapshot); err != nil {
		return nil, err
	}

	r.DataEntryErrorFields = in.ErrorFields
	r.DataEntryInvalidFields = in.InvalidFields
	if in.Actor != "" {
		r.DataEntryBy = append(r.DataEntryBy, in.Actor)
	}
	r.Status = models.RecordToPendingProcessingFromEntry.To
	r.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateRecord(ctx, r, allowed); err != nil {
		return nil, m.countConflict(err)
	}
	metrics.TransitionsTotal.WithLabelValues("record", string(r.Status)).Inc()

	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordDataEntered,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       in.Actor,
		EventData:   map[string]any{"formDefRef": in.FormDefRef},
	})
	if _, err := m.Agg.Recompute(ctx, batchID); err != nil {
		return nil, err
	}
	m.enqueue(ctx, r)
	return r, nil
}

// DataEntrySnapshot returns the current editor field map.
func (m *Manager) DataEntrySnapshot(ctx context.Context, batchID string, recordIndex int) (map[string]string, error) {
	raw, err := m.Blobs.Get(ctx, models.DataEntryBucket, blobKey(batchID, recordIndex))
	if err != nil {
		return nil, err
	}
	var snapshot map[string]string
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// MarkPendingProcessing routes a record to the processing queue without a
// data-entry save.
func (m *Manager) MarkPendingProcessing(ctx context.Context, batchID string, recordIndex int, actor string) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToPendingProcessing, func(r *models.ImportBatchRecord) {}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordStatusUpdate,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
		EventData:   map[string]any{"status": string(r.Status)},
	})
	m.enqueue(ctx, r)
	return r, nil
}

// BeginProcessing stamps the start of a downstream flow run. Re-entrant from
// processing so a crashed worker's retry is not rejected.
func (m *Manager) BeginProcessing(ctx context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToProcessing, func(r *models.ImportBatchRecord) {
		now := time.Now().UTC()
		r.ProcessingStartedAt = &now
		r.ProcessingFailedReason = ""
	}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordStatusUpdate,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		EventData:   map[string]any{"status": string(r.Status)},
	})
	return r, nil
}

// CompleteProcessing stores the flow result and settles the record.
func (m *Manager) CompleteProcessing(ctx context.Context, batchID string, recordIndex int, processingData map[string]any) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToProcessingComplete, func(r *models.ImportBatchRecord) {
		now := time.Now().UTC()
		r.ProcessingData = processingData
		r.ProcessingStartedAt = nil
		r.ProcessingFailedReason = ""
		r.CompletedAt = &now
	}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordProcessingSucceeded,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		EventData:   map[string]any{"flowResult": anyMap(processingData)},
	})
	return r, nil
}

// FailProcessing routes a failed flow run to human review; failures are
// recoverable, never a dead-end terminal state.
func (m *Manager) FailProcessing(ctx context.Context, batchID string, recordIndex int, reason string, processingData map[string]any) (*models.ImportBatchRecord, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, ErrReasonRequired)
	}
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToPendingReview, func(r *models.ImportBatchRecord) {
		r.ProcessingFailedReason = reason
		r.ProcessingData = processingData
		r.ProcessingStartedAt = nil
	}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordProcessingFailed,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		EventData:   map[string]any{"reason": reason, "flowResult": anyMap(processingData)},
	})
	return r, nil
}

// Resubmit queues an already-processed or reviewed record for another pass.
// Bulk callers set skipRecompute and recompute once at the end.
func (m *Manager) Resubmit(ctx context.Context, batchID string, recordIndex int, actor string, skipRecompute bool) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToReprocess, func(r *models.ImportBatchRecord) {
		r.ProcessingFailedReason = ""
		r.ProcessingStartedAt = nil
		r.CompletedAt = nil
	}, !skipRecompute)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordReprocess,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
	})
	if !skipRecompute {
		m.enqueue(ctx, r)
	}
	return r, nil
}

// Discard parks an un-entered record; the reason is required.
func (m *Manager) Discard(ctx context.Context, batchID string, recordIndex int, reason, actor string) (*models.ImportBatchRecord, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, ErrReasonRequired)
	}
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToDiscarded, func(r *models.ImportBatchRecord) {
		r.DiscardReason = reason
	}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordDiscarded,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
		EventData:   map[string]any{"reason": reason},
	})
	return r, nil
}

// Undiscard returns a discarded record to data entry with nothing else
// altered beyond timestamps and the cleared reason.
func (m *Manager) Undiscard(ctx context.Context, batchID string, recordIndex int, actor string) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToUndiscarded, func(r *models.ImportBatchRecord) {
		r.DiscardReason = ""
	}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordUndiscarded,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
	})
	return r, nil
}

// Ignore sidelines a reviewed or completed record from the batch's workload.
func (m *Manager) Ignore(ctx context.Context, batchID string, recordIndex int, actor string) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToIgnored, func(r *models.ImportBatchRecord) {}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordIgnored,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
	})
	return r, nil
}

// Unignore returns an ignored record to review.
func (m *Manager) Unignore(ctx context.Context, batchID string, recordIndex int, actor string) (*models.ImportBatchRecord, error) {
	r, err := m.transition(ctx, batchID, recordIndex, models.RecordToUnignored, func(r *models.ImportBatchRecord) {}, true)
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordUnignored,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       actor,
	})
	return r, nil
}

// AddNote appends a note; metadata only, no status change.
func (m *Manager) AddNote(ctx context.Context, batchID string, recordIndex int, author, text string) (*models.ImportBatchRecord, error) {
	r, err := m.mutate(ctx, batchID, recordIndex, func(r *models.ImportBatchRecord) {
		r.Notes = append(r.Notes, models.Note{Author: author, Text: text, CreatedAt: time.Now().UTC()})
	})
	if err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:        eventlog.RecordNoteAdded,
		BatchID:     batchID,
		RecordIndex: &recordIndex,
		Actor:       author,
		EventData:   map[string]any{"note": text},
	})
	return r, nil
}

// Touch bumps the record's update time, keeping a long-running edit session
// visibly alive.
func (m *Manager) Touch(ctx context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error) {
	return m.mutate(ctx, batchID, recordIndex, func(r *models.ImportBatchRecord) {})
}

// SetImageRotation persists the viewer's rotation; metadata only.
func (m *Manager) SetImageRotation(ctx context.Context, batchID string, recordIndex int, degrees int) (*models.ImportBatchRecord, error) {
	if degrees%90 != 0 {
		return nil, fmt.Errorf("%w: rotation must be a multiple of 90", models.ErrValidation)
	}
	return m.mutate(ctx, batchID, recordIndex, func(r *models.ImportBatchRecord) {
		r.ImageRotationDegrees = ((degrees % 360) + 360) % 360
	})
}

// transition applies one guarded edge: read, check, mutate, conditional
// write. Failed attempts leave the stored entity unmodified.
func (m *Manager) transition(ctx context.Context, batchID string, recordIndex int, edge models.Transition[models.RecordStatus], mutate func(*models.ImportBatchRecord), recompute bool) (*models.ImportBatchRecord, error) {
	r, err := m.Meta.GetRecord(ctx, batchID, recordIndex)
	if err != nil {
		return nil, err
	}
	if !edge.Allows(r.Status) {
		return nil, fmt.Errorf("record %s/%d is %s: %w", batchID, recordIndex, r.Status, metastore.ErrStateConflict)
	}
	r.Status = edge.To
	mutate(r)
	r.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateRecord(ctx, r, edge.From); err != nil {
		return nil, m.countConflict(err)
	}
	metrics.TransitionsTotal.WithLabelValues("record", string(edge.To)).Inc()
	if recompute {
		if _, err := m.Agg.Recompute(ctx, batchID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// mutate applies a metadata-only change guarded on the current status, so a
// concurrent transition is never silently overwritten.
func (m *Manager) mutate(ctx context.Context, batchID string, recordIndex int, apply func(*models.ImportBatchRecord)) (*models.ImportBatchRecord, error) {
	r, err := m.Meta.GetRecord(ctx, batchID, recordIndex)
	if err != nil {
		return nil, err
	}
	apply(r)
	r.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateRecord(ctx, r, []models.RecordStatus{r.Status}); err != nil {
		return nil, m.countConflict(err)
	}
	return r, nil
}

// enqueue signals the work queue best-effort; a crash between the status
// write and this publish leaves the record ready but unsignaled, which
// downstream tolerates as delayed at-least-once delivery.
func (m *Manager) enqueue(ctx context.Context, r *models.ImportBatchRecord) {
	b, err := m.Meta.GetBatch(ctx, r.BatchID)
	if err != nil {
		logger.Error("failed to load batch for enqueue", "batchId", r.BatchID, "error", err)
		return
	}
	if err := m.Queue.Publish(ctx, queue.NewRecordReady(r.BatchID, r.RecordIndex, b.DownstreamFlowID)); err != nil {
		metrics.QueuePublishFailures.Inc()
		logger.Error("best-effort enqueue failed", "batchId", r.BatchID, "recordIndex", r.RecordIndex, "error", err)
	}
}

func (m *Manager) appendEvent(ctx context.Context, e *eventlog.ImportEvent) {
	if m.Events == nil {
		return
	}
	if err := m.Events.Append(ctx, e); err != nil {
		logger.Error("failed to append audit event", "kind", e.Kind, "batchId", e.BatchID, "error", err)
		return
	}
	metrics.EventsAppended.WithLabelValues(string(e.Kind)).Inc()
}

func (m *Manager) countConflict(err error) error {
	if errors.Is(err, metastore.ErrStateConflict) {
		metrics.StateConflictsTotal.Inc()
	}
	return err
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func statusIn[S ~string](s S, allowed []S) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

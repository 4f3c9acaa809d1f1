package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/chartflow/import-server/internal/aggregate"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/metrics"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
	"github.com/chartflow/import-server/pkg/sloger"
	"github.com/google/uuid"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

var (
	// ErrNotEligible flags an expected no-op, not a failure; callers must not
	// surface it to retry logic as an error.
	ErrNotEligible     = errors.New("batch not eligible for generation")
	ErrNoBatchAvailable = errors.New("no batch available to grab")
	ErrReasonRequired   = errors.New("a reason is required")
	ErrNoRasterizer     = errors.New("no rasterizer configured")
)

// Manager owns the batch state machine.
type Manager struct {
	Meta   metastore.Store
	Blobs  blobstore.Store
	Queue  queue.Publisher
	Events *eventlog.Log
	Agg    *aggregate.Aggregator
	Raster generators.Rasterizer
	Locker GenerationLocker
}

// CreateInput carries everything a caller hands over at intake time.
type CreateInput struct {
	OrgID             string
	FacilityID        *int
	SourceKind        models.SourceKind
	SourceRefs        map[string]string
	DataFormat        models.DataFormat
	FormatOptions     models.FormatOptions
	RequiresDataEntry bool
	TemplateID        string
	DownstreamFlowID  string
	ReceivedAt        time.Time
	Raw               []byte
	// DeferGeneration leaves the batch pending_generation for a later
	// explicit Generate call.
	DeferGeneration bool
	Actor           string
}

// Create validates, persists raw bytes then metadata, and unless deferred
// runs generation in line. Generation failures are recorded on the batch,
// never propagated, so the created batch is always returned inspectable.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*models.ImportBatch, error) {
	now := time.Now().UTC()
	received := in.ReceivedAt
	if received.IsZero() {
		received = now
	}
	b := &models.ImportBatch{
		BatchID:           uuid.NewString(),
		OrgID:             in.OrgID,
		FacilityID:        in.FacilityID,
		SourceKind:        in.SourceKind,
		SourceRefs:        in.SourceRefs,
		DataFormat:        in.DataFormat,
		FormatOptions:     in.FormatOptions,
		Status:            models.BatchPendingGeneration,
		RequiresDataEntry: in.RequiresDataEntry,
		TemplateID:        in.TemplateID,
		DownstreamFlowID:  in.DownstreamFlowID,
		StatusCounts:      map[models.RecordStatus]int{},
		CreatedAt:         now,
		ReceivedAt:        received,
		LastUpdatedAt:     now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(in.Raw) == 0 {
		return nil, fmt.Errorf("%w: empty source payload", models.ErrValidation)
	}

	ctx = sloger.SetBatchID(ctx, b.BatchID)
	if err := m.Blobs.PutIfAbsent(ctx, models.BatchBlobBucket, b.BatchID, in.Raw); err != nil {
		return nil, err
	}
	if err := m.Meta.CreateBatch(ctx, b); err != nil {
		return nil, err
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:    eventlog.BatchCreated,
		BatchID: b.BatchID,
		Actor:   in.Actor,
		EventData: map[string]any{
			"sourceKind": string(b.SourceKind),
			"dataFormat": string(b.DataFormat),
		},
	})

	if in.DeferGeneration {
		return b, nil
	}
	if _, err := m.Generate(ctx, b.BatchID); err != nil && !errors.Is(err, ErrNotEligible) {
		return b, err
	}
	return m.Meta.GetBatch(ctx, b.BatchID)
}

// OpenForProcessing moves a triaged batch onto an assignee's desk. Records
// already pending processing are re-signaled best-effort; a failed enqueue
// never fails the open.
func (m *Manager) OpenForProcessing(ctx context.Context, batchID, assignee string) (*models.ImportBatch, error) {
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.FacilityID == nil {
		return nil, fmt.Errorf("%w: batch has no facility set", models.ErrValidation)
	}
	if !models.BatchToProcessing.Allows(b.Status) {
		return nil, fmt.Errorf("batch %s is %s: %w", batchID, b.Status, metastore.ErrStateConflict)
	}
	b.Status = models.BatchToProcessing.To
	b.AssignedTo = assignee
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, models.BatchToProcessing.From); err != nil {
		return nil, m.countConflict(err)
	}
	metrics.TransitionsTotal.WithLabelValues("batch", string(b.Status)).Inc()

	m.enqueuePending(ctx, b)
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchOpened,
		BatchID:   batchID,
		Actor:     assignee,
		EventData: map[string]any{"assignee": assignee},
	})
	return b, nil
}

// enqueuePending re-signals every record already pending processing.
func (m *Manager) enqueuePending(ctx context.Context, b *models.ImportBatch) {
	records, err := m.Meta.ListRecords(ctx, b.BatchID)
	if err != nil {
		logger.Error("failed to list records for re-enqueue", "batchId", b.BatchID, "error", err)
		return
	}
	var items []*queue.WorkItem
	for _, r := range records {
		if r.Status == models.RecordPendingProcessing {
			items = append(items, queue.NewRecordReady(r.BatchID, r.RecordIndex, b.DownstreamFlowID))
		}
	}
	if len(items) == 0 {
		return
	}
	if err := queue.PublishChunked(ctx, m.Queue, items); err != nil {
		metrics.QueuePublishFailures.Inc()
		logger.Error("best-effort re-enqueue failed", "batchId", b.BatchID, "items", len(items), "error", err)
	}
}

// AssignBatch updates the assignee, optionally only when nobody holds the
// batch yet.
func (m *Manager) AssignBatch(ctx context.Context, batchID, assignee string, onlyIfUnassigned bool) (*models.ImportBatch, error) {
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !statusIn(b.Status, models.BatchAssignable) {
		return nil, fmt.Errorf("batch %s is %s: %w", batchID, b.Status, metastore.ErrStateConflict)
	}
	if onlyIfUnassigned && b.AssignedTo != "" {
		return nil, fmt.Errorf("batch %s already assigned to %s: %w", batchID, b.AssignedTo, metastore.ErrStateConflict)
	}
	b.AssignedTo = assignee
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, []models.BatchStatus{b.Status}); err != nil {
		return nil, m.countConflict(err)
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchAssigned,
		BatchID:   batchID,
		Actor:     assignee,
		EventData: map[string]any{"assignee": assignee},
	})
	return b, nil
}

// GrabNextBatch hands the assignee the oldest workable batch in the org.
func (m *Manager) GrabNextBatch(ctx context.Context, orgID, assignee string) (*models.ImportBatch, error) {
	all, err := m.Meta.ListBatches(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var head *models.ImportBatch
	for _, b := range all {
		if b.AssignedTo != "" || b.FacilityID == nil {
			continue
		}
		if b.Status == models.BatchComplete || b.Status == models.BatchDiscarded {
			continue
		}
		head = b
		break
	}
	if head == nil {
		return nil, ErrNoBatchAvailable
	}
	switch head.Status {
	case models.BatchTriage:
		return m.OpenForProcessing(ctx, head.BatchID, assignee)
	case models.BatchProcessing:
		return m.AssignBatch(ctx, head.BatchID, assignee, true)
	}
	return nil, fmt.Errorf("head batch %s is %s: %w", head.BatchID, head.Status, metastore.ErrStateConflict)
}

// DiscardBatch is terminal and explicit; the reason is required and the
// assignee is released.
func (m *Manager) DiscardBatch(ctx context.Context, batchID, reason, actor string) (*models.ImportBatch, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, ErrReasonRequired)
	}
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	b.Status = models.BatchToDiscarded.To
	b.AssignedTo = ""
	b.DiscardReason = reason
	b.DiscardedAt = &now
	b.LastUpdatedAt = now
	if err := m.Meta.UpdateBatch(ctx, b, models.BatchToDiscarded.From); err != nil {
		return nil, m.countConflict(err)
	}
	metrics.TransitionsTotal.WithLabelValues("batch", string(models.BatchDiscarded)).Inc()
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchDiscarded,
		BatchID:   batchID,
		Actor:     actor,
		EventData: map[string]any{"reason": reason},
	})
	return b, nil
}

// SetFacility triages a batch to a facility; only valid before it opens.
func (m *Manager) SetFacility(ctx context.Context, batchID string, facilityID int, actor string) (*models.ImportBatch, error) {
	if facilityID <= 0 {
		return nil, fmt.Errorf("%w: facility id must be positive", models.ErrValidation)
	}
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BatchTriage {
		return nil, fmt.Errorf("batch %s is %s: %w", batchID, b.Status, metastore.ErrStateConflict)
	}
	b.FacilityID = &facilityID
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, []models.BatchStatus{models.BatchTriage}); err != nil {
		return nil, m.countConflict(err)
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchFacilitySet,
		BatchID:   batchID,
		Actor:     actor,
		EventData: map[string]any{"facilityId": facilityID},
	})
	return b, nil
}

// SetTemplate swaps the data-entry template used by the form renderer.
func (m *Manager) SetTemplate(ctx context.Context, batchID, templateID, actor string) (*models.ImportBatch, error) {
	b, err := m.Meta.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BatchDiscarded || b.Status == models.BatchComplete {
		return nil, fmt.Errorf("batch %s is %s: %w", batchID, b.Status, metastore.ErrStateConflict)
	}
	b.TemplateID = templateID
	b.LastUpdatedAt = time.Now().UTC()
	if err := m.Meta.UpdateBatch(ctx, b, []models.BatchStatus{b.Status}); err != nil {
		return nil, m.countConflict(err)
	}
	m.appendEvent(ctx, &eventlog.ImportEvent{
		Kind:      eventlog.BatchTemplateChange,
		BatchID:   batchID,
		Actor:     actor,
		EventData: map[string]any{"templateId": templateID},
	})
	return b, nil
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

func statusIn[S ~string](s S, allowed []S) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

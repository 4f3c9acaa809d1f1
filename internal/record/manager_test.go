package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chartflow/import-server/internal/aggregate"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
)

type captureAppender struct {
	mu     sync.Mutex
	events []*eventlog.ImportEvent
}

func (c *captureAppender) Append(_ context.Context, e *eventlog.ImportEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *e
	c.events = append(c.events, &copied)
	return nil
}

func (c *captureAppender) last() *eventlog.ImportEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type testEnv struct {
	Meta   *metastore.MemoryStore
	Blobs  blobstore.Store
	Queue  *queue.MemoryQueue
	Events *captureAppender
	Mgr    *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	meta := metastore.NewMemoryStore()
	blobs := blobstore.NewFileStore(t.TempDir())
	mq := queue.NewMemoryQueue(256)
	sink := &captureAppender{}
	return &testEnv{
		Meta:   meta,
		Blobs:  blobs,
		Queue:  mq,
		Events: sink,
		Mgr: &Manager{
			Meta:   meta,
			Blobs:  blobs,
			Queue:  mq,
			Events: eventlog.New(blobs, sink),
			Agg:    aggregate.New(meta),
		},
	}
}

func (e *testEnv) seedBatch(t *testing.T, format models.DataFormat) *models.ImportBatch {
	t.Helper()
	b := &models.ImportBatch{
		BatchID:           "b-1",
		OrgID:             "org-1",
		SourceKind:        models.SourceFax,
		SourceRefs:        map[string]string{"fax_sid": "FX1"},
		DataFormat:        format,
		Status:            models.BatchProcessing,
		RequiresDataEntry: true,
		DownstreamFlowID:  "flow-1",
		StatusCounts:      map[models.RecordStatus]int{},
		CreatedAt:         time.Now().UTC(),
		LastUpdatedAt:     time.Now().UTC(),
	}
	if err := e.Meta.CreateBatch(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return b
}

func (e *testEnv) seedRecord(t *testing.T, batchID string, idx int, status models.RecordStatus) *models.ImportBatchRecord {
	t.Helper()
	now := time.Now().UTC()
	r := &models.ImportBatchRecord{
		BatchID:       batchID,
		RecordIndex:   idx,
		RecordFormat:  models.RecordFormatPDFPageSet,
		Status:        status,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := e.Meta.CreateRecord(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func drainQueue(mq *queue.MemoryQueue) []*queue.WorkItem {
	var out []*queue.WorkItem
	for {
		select {
		case item := <-mq.Chan:
			out = append(out, item)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func TestSaveDataEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)

	got, err := env.Mgr.SaveDataEntry(ctx, b.BatchID, 0, SaveDataEntryInput{
		Entry:       map[string]string{"mrn": "100", "name": "Ada"},
		ErrorFields: []string{"mrn"},
		FormDefRef:  "forms/intake-v2",
		Actor:       "drw",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got.Status != models.RecordPendingProcessing {
		t.Fatalf("status = %s, want pending_processing", got.Status)
	}
	if !got.InitialErrorFieldsFrozen || len(got.InitialDataEntryErrorFields) != 1 || got.InitialDataEntryErrorFields[0] != "mrn" {
		t.Errorf("initial error fields not frozen on first save: %+v", got)
	}
	if len(got.DataEntryBy) != 1 || got.DataEntryBy[0] != "drw" {
		t.Errorf("data entry author not recorded: %v", got.DataEntryBy)
	}

	snapshot, err := env.Mgr.DataEntrySnapshot(ctx, b.BatchID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot["mrn"] != "100" || snapshot["name"] != "Ada" {
		t.Errorf("snapshot = %v", snapshot)
	}

	e := env.Events.last()
	if e == nil || e.Kind != eventlog.RecordDataEntered {
		t.Fatalf("last event = %+v, want record_data_entered", e)
	}
	if e.EventData["formDefRef"] != "forms/intake-v2" {
		t.Errorf("form reference missing from event: %v", e.EventData)
	}

	items := drainQueue(env.Queue)
	if len(items) != 1 || items[0].RecordIndex != 0 || items[0].FlowID != "flow-1" {
		t.Fatalf("record not enqueued after save: %+v", items)
	}

	// a record already out for processing cannot be saved over
	if _, err := env.Mgr.SaveDataEntry(ctx, b.BatchID, 0, SaveDataEntryInput{Entry: map[string]string{}}); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("save over pending_processing should conflict, got %v", err)
	}
}

func TestSaveDataEntryInitialErrorFieldsWriteOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)

	if _, err := env.Mgr.SaveDataEntry(ctx, b.BatchID, 0, SaveDataEntryInput{
		Entry:       map[string]string{"mrn": "100"},
		ErrorFields: []string{"mrn"},
		Actor:       "drw",
	}); err != nil {
		t.Fatal(err)
	}

	// route the record back through review and save again with a new error set
	if _, err := env.Mgr.BeginProcessing(ctx, b.BatchID, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.FailProcessing(ctx, b.BatchID, 0, "bad mrn", nil); err != nil {
		t.Fatal(err)
	}
	got, err := env.Mgr.SaveDataEntry(ctx, b.BatchID, 0, SaveDataEntryInput{
		Entry:       map[string]string{"mrn": "200"},
		ErrorFields: []string{"name", "dob"},
		Actor:       "drw",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.DataEntryErrorFields) != 2 {
		t.Errorf("current error fields = %v", got.DataEntryErrorFields)
	}
	if len(got.InitialDataEntryErrorFields) != 1 || got.InitialDataEntryErrorFields[0] != "mrn" {
		t.Errorf("initial snapshot overwritten: %v", got.InitialDataEntryErrorFields)
	}
}

func TestProcessingLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingProcessing)

	got, err := env.Mgr.BeginProcessing(ctx, b.BatchID, 0)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if got.Status != models.RecordProcessing || got.ProcessingStartedAt == nil {
		t.Fatalf("begin result wrong: %+v", got)
	}

	// a crashed worker's retry begins again without conflict
	if _, err := env.Mgr.BeginProcessing(ctx, b.BatchID, 0); err != nil {
		t.Fatalf("re-entrant begin: %v", err)
	}

	got, err = env.Mgr.CompleteProcessing(ctx, b.BatchID, 0, map[string]any{"chartId": "c-9"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != models.RecordProcessingComplete || got.CompletedAt == nil || got.ProcessingStartedAt != nil {
		t.Fatalf("complete result wrong: %+v", got)
	}
	if got.ProcessingData["chartId"] != "c-9" {
		t.Errorf("flow result not stored: %v", got.ProcessingData)
	}

	// all records done settles the batch
	cur, err := env.Meta.GetBatch(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != models.BatchComplete {
		t.Errorf("batch status = %s, want complete", cur.Status)
	}

	// completing twice is a conflict, not an idempotent no-op
	if _, err := env.Mgr.CompleteProcessing(ctx, b.BatchID, 0, nil); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("double complete should conflict, got %v", err)
	}
}

func TestFailProcessingRoutesToReview(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingProcessing)

	if _, err := env.Mgr.FailProcessing(ctx, b.BatchID, 0, "", nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("fail without reason should be rejected, got %v", err)
	}

	if _, err := env.Mgr.BeginProcessing(ctx, b.BatchID, 0); err != nil {
		t.Fatal(err)
	}
	got, err := env.Mgr.FailProcessing(ctx, b.BatchID, 0, "downstream 502", map[string]any{"attempt": 1})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got.Status != models.RecordPendingReview || got.ProcessingFailedReason != "downstream 502" {
		t.Fatalf("fail result wrong: %+v", got)
	}

	e := env.Events.last()
	if e == nil || e.Kind != eventlog.RecordProcessingFailed || e.Actor != "" {
		t.Fatalf("failure event wrong: %+v", e)
	}
}

func TestResubmitClearsFailureState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	r := env.seedRecord(t, b.BatchID, 0, models.RecordPendingReview)
	r.ProcessingFailedReason = "downstream 502"
	if err := env.Meta.UpdateRecord(ctx, r, nil); err != nil {
		t.Fatal(err)
	}

	got, err := env.Mgr.Resubmit(ctx, b.BatchID, 0, "drw", false)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if got.Status != models.RecordPendingProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ProcessingFailedReason != "" || got.CompletedAt != nil || got.ProcessingStartedAt != nil {
		t.Errorf("failure state not cleared: %+v", got)
	}
	if items := drainQueue(env.Queue); len(items) != 1 {
		t.Fatalf("resubmit should re-enqueue, got %d items", len(items))
	}
}

func TestDiscardUndiscardRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)

	if _, err := env.Mgr.Discard(ctx, b.BatchID, 0, "", "drw"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("discard without reason should be rejected, got %v", err)
	}
	got, err := env.Mgr.Discard(ctx, b.BatchID, 0, "blank page", "drw")
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if got.Status != models.RecordDiscarded || got.DiscardReason != "blank page" {
		t.Fatalf("discard result wrong: %+v", got)
	}

	got, err = env.Mgr.Undiscard(ctx, b.BatchID, 0, "drw")
	if err != nil {
		t.Fatalf("undiscard: %v", err)
	}
	if got.Status != models.RecordPendingDataEntry || got.DiscardReason != "" {
		t.Fatalf("undiscard result wrong: %+v", got)
	}
}

func TestDiscardOnlyBeforeDataEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingProcessing)

	_, err := env.Mgr.Discard(ctx, b.BatchID, 0, "too late", "drw")
	if !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("want state conflict, got %v", err)
	}
	// the failed attempt must leave the stored record untouched
	cur, err := env.Meta.GetRecord(ctx, b.BatchID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != models.RecordPendingProcessing || cur.DiscardReason != "" {
		t.Fatalf("failed discard modified the record: %+v", cur)
	}
}

func TestIgnoreUnignore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingReview)

	got, err := env.Mgr.Ignore(ctx, b.BatchID, 0, "drw")
	if err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if got.Status != models.RecordIgnored {
		t.Fatalf("status = %s", got.Status)
	}
	got, err = env.Mgr.Unignore(ctx, b.BatchID, 0, "drw")
	if err != nil {
		t.Fatalf("unignore: %v", err)
	}
	if got.Status != models.RecordPendingReview {
		t.Fatalf("status = %s", got.Status)
	}

	env.seedRecord(t, b.BatchID, 1, models.RecordPendingDataEntry)
	if _, err := env.Mgr.Ignore(ctx, b.BatchID, 1, "drw"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("ignore before review should conflict, got %v", err)
	}
}

func TestMetadataOnlyMutations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)

	got, err := env.Mgr.AddNote(ctx, b.BatchID, 0, "drw", "check page 2 for the date")
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	if len(got.Notes) != 1 || got.Notes[0].Author != "drw" {
		t.Fatalf("note not appended: %+v", got.Notes)
	}
	if got.Status != models.RecordPendingDataEntry {
		t.Error("note must not change status")
	}

	if _, err := env.Mgr.SetImageRotation(ctx, b.BatchID, 0, 45); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("rotation must be a multiple of 90, got %v", err)
	}
	got, err = env.Mgr.SetImageRotation(ctx, b.BatchID, 0, -90)
	if err != nil {
		t.Fatal(err)
	}
	if got.ImageRotationDegrees != 270 {
		t.Errorf("rotation = %d, want normalized 270", got.ImageRotationDegrees)
	}

	before, _ := env.Meta.GetRecord(ctx, b.BatchID, 0)
	time.Sleep(5 * time.Millisecond)
	touched, err := env.Mgr.Touch(ctx, b.BatchID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !touched.LastUpdatedAt.After(before.LastUpdatedAt) {
		t.Error("touch did not advance the update time")
	}
}

func TestMarkPendingProcessingSkipsDataEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)

	got, err := env.Mgr.MarkPendingProcessing(ctx, b.BatchID, 0, "drw")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got.Status != models.RecordPendingProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if items := drainQueue(env.Queue); len(items) != 1 {
		t.Fatalf("record not enqueued, got %d items", len(items))
	}

	// processing_complete is reachable only through a full entry save
	env.seedRecord(t, b.BatchID, 1, models.RecordProcessingComplete)
	if _, err := env.Mgr.MarkPendingProcessing(ctx, b.BatchID, 1, "drw"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("want conflict for completed record, got %v", err)
	}
}

func TestGetAndListDelegate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.seedBatch(t, models.FormatPDF)
	env.seedRecord(t, b.BatchID, 0, models.RecordPendingDataEntry)
	env.seedRecord(t, b.BatchID, 1, models.RecordPendingDataEntry)

	all, err := env.Mgr.List(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("list = %d records", len(all))
	}
	if _, err := env.Mgr.Get(ctx, b.BatchID, 5); !errors.Is(err, metastore.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

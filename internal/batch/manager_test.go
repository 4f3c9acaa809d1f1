package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chartflow/import-server/internal/aggregate"
	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/eventlog"
	"github.com/chartflow/import-server/internal/generators"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/queue"
)

// fakeRasterizer decouples the reported page count from what actually
// renders, so mismatch handling is testable.
type fakeRasterizer struct {
	pageCount int
	pages     [][]byte
	countErr  error
}

func (r *fakeRasterizer) PageCount(_ context.Context, _ []byte) (int, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.pageCount, nil
}

func (r *fakeRasterizer) RenderPages(_ context.Context, _ []byte, start, count int) ([][]byte, error) {
	if start >= len(r.pages) {
		return nil, nil
	}
	end := start + count
	if end > len(r.pages) {
		end = len(r.pages)
	}
	return r.pages[start:end], nil
}

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

func (c *captureAppender) kinds() []eventlog.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]eventlog.Kind, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

type testEnv struct {
	Meta   *metastore.MemoryStore
	Blobs  blobstore.Store
	Queue  *queue.MemoryQueue
	Events *captureAppender
	Raster *fakeRasterizer
	Mgr    *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	meta := metastore.NewMemoryStore()
	blobs := blobstore.NewFileStore(t.TempDir())
	mq := queue.NewMemoryQueue(256)
	sink := &captureAppender{}
	raster := &fakeRasterizer{pageCount: 2, pages: [][]byte{[]byte("p0"), []byte("p1")}}

	generators.Register(models.FormatPDF, &generators.PDFGenerator{Raster: raster})
	generators.Register(models.FormatDelimited, &generators.DelimitedGenerator{})

	mgr := &Manager{
		Meta:   meta,
		Blobs:  blobs,
		Queue:  mq,
		Events: eventlog.New(blobs, sink),
		Agg:    aggregate.New(meta),
		Raster: raster,
		Locker: NewLocalLocker(),
	}
	return &testEnv{Meta: meta, Blobs: blobs, Queue: mq, Events: sink, Raster: raster, Mgr: mgr}
}

func pdfCreateInput() CreateInput {
	return CreateInput{
		OrgID:             "org-1",
		SourceKind:        models.SourceFax,
		SourceRefs:        map[string]string{"fax_sid": "FX1"},
		DataFormat:        models.FormatPDF,
		RequiresDataEntry: true,
		DownstreamFlowID:  "flow-1",
		Raw:               []byte("%PDF fake"),
		Actor:             "intake",
	}
}

func drainQueue(mq *queue.MemoryQueue) []*queue.WorkItem {
	// Publish hands off on a goroutine; give the handoffs a moment to land.
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

func TestCreatePDFBatchGeneratesToTriage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.BatchTriage {
		t.Fatalf("status = %s, want triage", b.Status)
	}
	if b.PDFPageCount == nil || *b.PDFPageCount != 2 {
		t.Fatalf("page count not recorded: %v", b.PDFPageCount)
	}

	records, err := env.Meta.ListRecords(ctx, b.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("want one record per page, got %d", len(records))
	}
	for i, r := range records {
		if r.Status != models.RecordPendingDataEntry {
			t.Errorf("record %d status = %s, want pending_data_entry", i, r.Status)
		}
		if r.RecordFormat != models.RecordFormatPDFPageSet {
			t.Errorf("record %d format = %s", i, r.RecordFormat)
		}
	}

	if _, err := env.Blobs.Get(ctx, models.BatchBlobBucket, b.BatchID); err != nil {
		t.Errorf("raw source blob missing: %v", err)
	}
	if _, err := env.Blobs.Get(ctx, models.RecordPayloadBucket, b.BatchID+"/0"); err != nil {
		t.Errorf("record payload blob missing: %v", err)
	}

	kinds := env.Events.kinds()
	if len(kinds) == 0 || kinds[0] != eventlog.BatchCreated {
		t.Errorf("first event should be batch_created, got %v", kinds)
	}

	// data-entry records are not work-queue ready
	if items := drainQueue(env.Queue); len(items) != 0 {
		t.Errorf("pending_data_entry records should not be enqueued, got %d items", len(items))
	}
}

func TestCreateDelimitedBatchEnqueuesRecords(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, CreateInput{
		OrgID:      "org-1",
		SourceKind: models.SourceFTP,
		SourceRefs: map[string]string{"remote_path": "/drop/a.csv"},
		DataFormat: models.FormatDelimited,
		FormatOptions: models.FormatOptions{
			Delimiter: ",",
			HasHeader: true,
		},
		RequiresDataEntry: false,
		DownstreamFlowID:  "flow-9",
		Raw:               []byte("mrn,name\n100,Ada\n101,Grace\n"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	records, _ := env.Meta.ListRecords(ctx, b.BatchID)
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.Status != models.RecordPendingProcessing {
			t.Errorf("record %d status = %s, want pending_processing", r.RecordIndex, r.Status)
		}
	}

	items := drainQueue(env.Queue)
	if len(items) != 2 {
		t.Fatalf("want 2 enqueued items, got %d", len(items))
	}
	for _, item := range items {
		if item.FlowID != "flow-9" || item.BatchID != b.BatchID {
			t.Errorf("work item mis-addressed: %+v", item)
		}
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := pdfCreateInput()
	in.SourceRefs = nil
	if _, err := env.Mgr.Create(ctx, in); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("missing fax_sid should fail validation, got %v", err)
	}

	in = pdfCreateInput()
	in.Raw = nil
	if _, err := env.Mgr.Create(ctx, in); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("empty payload should fail validation, got %v", err)
	}
}

func TestCreateRecordsGenerationFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.Raster.countErr = fmt.Errorf("renderer crashed")

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatalf("generation failure must not propagate from create: %v", err)
	}
	if b.Status != models.BatchGenerationError {
		t.Fatalf("status = %s, want generation_error", b.Status)
	}
	if b.GenerationError == "" {
		t.Error("generation error message not recorded")
	}

	// the failure is retryable once the renderer recovers
	env.Raster.countErr = nil
	if _, err := env.Mgr.Generate(ctx, b.BatchID); err != nil {
		t.Fatalf("retry after generation_error: %v", err)
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchTriage {
		t.Fatalf("retried batch status = %s, want triage", cur.Status)
	}
}

func TestGenerateRejectsIneligibleBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	// triage with all pages accounted for: nothing to do
	if _, err := env.Mgr.Generate(ctx, b.BatchID); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("want ErrNotEligible, got %v", err)
	}
}

func TestGenerateCatchesUpMissingPDFPages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.Raster.pageCount = 3
	env.Raster.pages = [][]byte{[]byte("p0"), []byte("p1"), []byte("p2")}

	// a batch that previously generated only two of its three pages
	three := 3
	b := &models.ImportBatch{
		BatchID:       "b-partial",
		OrgID:         "org-1",
		SourceKind:    models.SourceFax,
		SourceRefs:    map[string]string{"fax_sid": "FX1"},
		DataFormat:    models.FormatPDF,
		Status:        models.BatchTriage,
		PDFPageCount:  &three,
		LastUpdatedAt: time.Now().UTC(),
	}
	if err := env.Meta.CreateBatch(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := env.Blobs.PutIfAbsent(ctx, models.BatchBlobBucket, b.BatchID, []byte("%PDF fake")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := env.Meta.CreateRecord(ctx, &models.ImportBatchRecord{
			BatchID: b.BatchID, RecordIndex: i,
			RecordFormat: models.RecordFormatPDFPageSet,
			Status:       models.RecordPendingDataEntry,
		}); err != nil {
			t.Fatal(err)
		}
	}

	created, err := env.Mgr.Generate(ctx, b.BatchID)
	if err != nil {
		t.Fatalf("catch-up generation: %v", err)
	}
	if created != 1 {
		t.Fatalf("want 1 new record, got %d", created)
	}
	records, _ := env.Meta.ListRecords(ctx, b.BatchID)
	if len(records) != 3 || records[2].RecordIndex != 2 {
		t.Fatalf("missing page not backfilled: %+v", records)
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchTriage {
		t.Fatalf("status = %s, want triage", cur.Status)
	}
}

func TestGeneratePageCountMismatchParksInError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	// three pages claimed, only two render
	env.Raster.pageCount = 3
	env.Raster.pages = [][]byte{[]byte("p0"), []byte("p1")}

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.BatchGenerationError {
		t.Fatalf("status = %s, want generation_error", b.Status)
	}
}

func TestGenerateStaleGeneratingTakeover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b := &models.ImportBatch{
		BatchID:       "b-stale",
		OrgID:         "org-1",
		SourceKind:    models.SourceFax,
		SourceRefs:    map[string]string{"fax_sid": "FX1"},
		DataFormat:    models.FormatPDF,
		Status:        models.BatchGenerating,
		LastUpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := env.Meta.CreateBatch(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := env.Blobs.PutIfAbsent(ctx, models.BatchBlobBucket, b.BatchID, []byte("%PDF fake")); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Mgr.Generate(ctx, b.BatchID); err != nil {
		t.Fatalf("stale takeover: %v", err)
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchTriage {
		t.Fatalf("status = %s, want triage", cur.Status)
	}

	// a fresh generating batch is off limits
	fresh := &models.ImportBatch{
		BatchID: "b-fresh", OrgID: "org-1",
		SourceKind: models.SourceFax, SourceRefs: map[string]string{"fax_sid": "FX2"},
		DataFormat: models.FormatPDF, Status: models.BatchGenerating,
		LastUpdatedAt: time.Now().UTC(),
	}
	if err := env.Meta.CreateBatch(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.Generate(ctx, fresh.BatchID); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("fresh generating batch should be rejected, got %v", err)
	}
}

func TestGenerateCollapsesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	unlock, err := env.Mgr.Locker.TryLock(ctx, "b-1")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	if _, err := env.Mgr.Generate(ctx, "b-1"); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("held lock should collapse to ErrNotEligible, got %v", err)
	}
}

func TestOpenForProcessing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	// no facility yet
	if _, err := env.Mgr.OpenForProcessing(ctx, b.BatchID, "drw"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("open without facility should fail validation, got %v", err)
	}

	if _, err := env.Mgr.SetFacility(ctx, b.BatchID, 42, "triager"); err != nil {
		t.Fatal(err)
	}
	opened, err := env.Mgr.OpenForProcessing(ctx, b.BatchID, "drw")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Status != models.BatchProcessing || opened.AssignedTo != "drw" {
		t.Fatalf("open result wrong: %s / %s", opened.Status, opened.AssignedTo)
	}

	// re-open of a processing batch conflicts; assignment is the way in
	if _, err := env.Mgr.OpenForProcessing(ctx, b.BatchID, "other"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("double open should conflict, got %v", err)
	}
}

func TestAssignBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.AssignBatch(ctx, b.BatchID, "drw", false); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := env.Mgr.AssignBatch(ctx, b.BatchID, "other", true); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("only-if-unassigned should conflict, got %v", err)
	}
	got, err := env.Mgr.AssignBatch(ctx, b.BatchID, "other", false)
	if err != nil {
		t.Fatalf("forced reassign: %v", err)
	}
	if got.AssignedTo != "other" {
		t.Fatalf("assignee = %s", got.AssignedTo)
	}
}

func TestGrabNextBatchOldestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if _, err := env.Mgr.GrabNextBatch(ctx, "org-1", "drw"); !errors.Is(err, ErrNoBatchAvailable) {
		t.Fatalf("empty org should yield ErrNoBatchAvailable, got %v", err)
	}

	first, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	// batches without a facility are not grabbable
	if _, err := env.Mgr.GrabNextBatch(ctx, "org-1", "drw"); !errors.Is(err, ErrNoBatchAvailable) {
		t.Fatalf("untriaged batches should not be grabbable, got %v", err)
	}

	if _, err := env.Mgr.SetFacility(ctx, second.BatchID, 42, "triager"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.SetFacility(ctx, first.BatchID, 42, "triager"); err != nil {
		t.Fatal(err)
	}

	got, err := env.Mgr.GrabNextBatch(ctx, "org-1", "drw")
	if err != nil {
		t.Fatalf("grab: %v", err)
	}
	if got.BatchID != first.BatchID {
		t.Fatalf("grabbed %s, want the oldest %s", got.BatchID, first.BatchID)
	}
	if got.Status != models.BatchProcessing || got.AssignedTo != "drw" {
		t.Fatalf("grab should open the batch: %s / %s", got.Status, got.AssignedTo)
	}

	// the first batch is now held, so the next grab takes the second
	next, err := env.Mgr.GrabNextBatch(ctx, "org-1", "other")
	if err != nil {
		t.Fatal(err)
	}
	if next.BatchID != second.BatchID {
		t.Fatalf("grabbed %s, want %s", next.BatchID, second.BatchID)
	}
}

func TestDiscardBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.DiscardBatch(ctx, b.BatchID, "", "drw"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("discard without reason should fail, got %v", err)
	}

	if _, err := env.Mgr.AssignBatch(ctx, b.BatchID, "drw", false); err != nil {
		t.Fatal(err)
	}
	got, err := env.Mgr.DiscardBatch(ctx, b.BatchID, "duplicate fax", "drw")
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	if got.Status != models.BatchDiscarded || got.AssignedTo != "" || got.DiscardedAt == nil {
		t.Fatalf("discard incomplete: %+v", got)
	}

	if _, err := env.Mgr.DiscardBatch(ctx, b.BatchID, "again", "drw"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("double discard should conflict, got %v", err)
	}
}

func TestSetFacilityAndTemplateGuards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.Mgr.SetFacility(ctx, b.BatchID, 0, "t"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("non-positive facility should fail, got %v", err)
	}
	if _, err := env.Mgr.SetFacility(ctx, b.BatchID, 42, "t"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.OpenForProcessing(ctx, b.BatchID, "drw"); err != nil {
		t.Fatal(err)
	}
	// facility is frozen once the batch leaves triage
	if _, err := env.Mgr.SetFacility(ctx, b.BatchID, 43, "t"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("facility change after open should conflict, got %v", err)
	}

	if _, err := env.Mgr.SetTemplate(ctx, b.BatchID, "tpl-2", "drw"); err != nil {
		t.Fatalf("template change while processing: %v", err)
	}
	if _, err := env.Mgr.DiscardBatch(ctx, b.BatchID, "bad scan", "drw"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.SetTemplate(ctx, b.BatchID, "tpl-3", "drw"); !errors.Is(err, metastore.ErrStateConflict) {
		t.Fatalf("template change on discarded batch should conflict, got %v", err)
	}
}

func TestGenerateWithoutRasterizerParksInError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.Mgr.Raster = nil

	b, err := env.Mgr.Create(ctx, pdfCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.BatchGenerationError {
		t.Fatalf("status = %s, want generation_error", b.Status)
	}
	if b.GenerationError == "" {
		t.Error("generation error message not recorded")
	}

	if _, err := env.Mgr.PageImage(ctx, b.BatchID, 0); !errors.Is(err, ErrNoRasterizer) {
		t.Fatalf("page image error = %v, want ErrNoRasterizer", err)
	}

	// the authoritative recount after record generation fails the same way
	two := 2
	b.PDFPageCount = &two
	if err := env.Meta.UpdateBatch(ctx, b, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.Generate(ctx, b.BatchID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchGenerationError {
		t.Fatalf("recount status = %s, want generation_error", cur.Status)
	}
}

func TestRegenerationPreservesSavedDataEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	b, err := env.Mgr.Create(ctx, CreateInput{
		OrgID:             "org-1",
		SourceKind:        models.SourceFTP,
		SourceRefs:        map[string]string{"remote_path": "/drop/a.csv"},
		DataFormat:        models.FormatDelimited,
		FormatOptions:     models.FormatOptions{Delimiter: ",", HasHeader: true},
		RequiresDataEntry: true,
		DownstreamFlowID:  "flow-9",
		Raw:               []byte("name,dob\nalice,1970\nbob,1980\n"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// an operator corrects record 0's entry after generation
	corrected := []byte(`{"name":"Alice Corrected","dob":"1970-01-01"}`)
	if err := env.Blobs.Put(ctx, models.DataEntryBucket, b.BatchID+"/0", corrected); err != nil {
		t.Fatal(err)
	}

	// a crashed run left the batch generating long enough to be taken over
	b.Status = models.BatchGenerating
	b.LastUpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := env.Meta.UpdateBatch(ctx, b, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Mgr.Generate(ctx, b.BatchID); err != nil {
		t.Fatalf("takeover generation: %v", err)
	}

	got, err := env.Blobs.Get(ctx, models.DataEntryBucket, b.BatchID+"/0")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(corrected) {
		t.Fatalf("regeneration clobbered saved entry: %s", got)
	}
	records, _ := env.Meta.ListRecords(ctx, b.BatchID)
	if len(records) != 2 {
		t.Fatalf("regeneration duplicated records: %d", len(records))
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchTriage {
		t.Fatalf("status = %s, want triage", cur.Status)
	}
}

func TestGenerationAutoOpensAssignedBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	fortytwo := 42
	in := pdfCreateInput()
	in.FacilityID = &fortytwo
	in.DeferGeneration = true

	b, err := env.Mgr.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.BatchPendingGeneration {
		t.Fatalf("deferred create status = %s", b.Status)
	}

	// assignment happens while generation is still pending
	b.AssignedTo = "drw"
	if err := env.Meta.UpdateBatch(ctx, b, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Mgr.Generate(ctx, b.BatchID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	cur, _ := env.Meta.GetBatch(ctx, b.BatchID)
	if cur.Status != models.BatchProcessing || cur.AssignedTo != "drw" {
		t.Fatalf("assigned batch should auto-open after generation: %s / %s", cur.Status, cur.AssignedTo)
	}
}

package queue

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/chartflow/import-server/internal/health"
	"github.com/chartflow/import-server/pkg/sloger"
)

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

const RecordReadyType = "RecordReady"

// ChunkSize bounds batch publishes to the downstream transport limit
// (SQS batch entries max out at 10).
const ChunkSize = 10

// WorkItem signals that a record is ready for downstream flow processing.
// Ordering is only guaranteed within one partition key, which is the batch id
// so a batch's records arrive in record order.
type WorkItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	RetryCount  int    `json:"retry_count"`
	BatchID     string `json:"batch_id"`
	RecordIndex int    `json:"record_index"`
	FlowID      string `json:"flow_id"`
}

func (w *WorkItem) PartitionKey() string {
	return w.BatchID
}

func NewRecordReady(batchID string, recordIndex int, flowID string) *WorkItem {
	return &WorkItem{
		Type:        RecordReadyType,
		BatchID:     batchID,
		RecordIndex: recordIndex,
		FlowID:      flowID,
	}
}

// Publisher delivers work items at least once.
type Publisher interface {
	health.Checkable
	io.Closer
	Publish(ctx context.Context, item *WorkItem) error
}

// BatchPublisher is implemented by backends with a native batch send.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, items []*WorkItem) error
}

// PublishChunked fans a bulk publish out in transport-sized chunks. The first
// failure aborts; the caller treats the whole publish as best-effort anyway.
func PublishChunked(ctx context.Context, p Publisher, items []*WorkItem) error {
	bp, batchable := p.(BatchPublisher)
	for start := 0; start < len(items); start += ChunkSize {
		end := min(start+ChunkSize, len(items))
		if batchable {
			if err := bp.PublishBatch(ctx, items[start:end]); err != nil {
				return err
			}
			continue
		}
		for _, item := range items[start:end] {
			if err := p.Publish(ctx, item); err != nil {
				return err
			}
		}
	}
	return nil
}

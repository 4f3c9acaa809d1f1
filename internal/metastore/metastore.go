package metastore

import (
	"context"
	"errors"

	"github.com/chartflow/import-server/internal/health"
	"github.com/chartflow/import-server/internal/models"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrExists   = errors.New("entity already exists")
	// ErrStateConflict means a conditional update's guard failed because the
	// stored status was not in the allowed source set. Expected under
	// concurrency; callers re-read before retrying.
	ErrStateConflict = errors.New("current state not eligible")
)

// Store is the metadata tier: small mutable batch and record entities with
// compare-and-swap status guards. An empty allowedFrom set makes the update
// unconditional; the status aggregator is the only caller that does that.
type Store interface {
	health.Checkable

	CreateBatch(ctx context.Context, b *models.ImportBatch) error
	GetBatch(ctx context.Context, batchID string) (*models.ImportBatch, error)
	UpdateBatch(ctx context.Context, b *models.ImportBatch, allowedFrom []models.BatchStatus) error
	ListBatches(ctx context.Context, orgID string) ([]*models.ImportBatch, error)

	CreateRecord(ctx context.Context, r *models.ImportBatchRecord) error
	GetRecord(ctx context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error)
	UpdateRecord(ctx context.Context, r *models.ImportBatchRecord, allowedFrom []models.RecordStatus) error
	ListRecords(ctx context.Context, batchID string) ([]*models.ImportBatchRecord, error)
	// MaxRecordIndex returns -1 when the batch has no records yet.
	MaxRecordIndex(ctx context.Context, batchID string) (int, error)
}

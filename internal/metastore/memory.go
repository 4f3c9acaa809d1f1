package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/chartflow/import-server/internal/models"
)

// MemoryStore backs local runs and tests. Entities are copied on the way in
// and out so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*models.ImportBatch
	records map[string]map[int]*models.ImportBatchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: map[string]*models.ImportBatch{},
		records: map[string]map[int]*models.ImportBatchRecord{},
	}
}

func copyOf[T any](src *T) *T {
	b, _ := json.Marshal(src)
	dst := new(T)
	json.Unmarshal(b, dst)
	return dst
}

func (s *MemoryStore) CreateBatch(_ context.Context, b *models.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[b.BatchID]; ok {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrExists)
	}
	s.batches[b.BatchID] = copyOf(b)
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, batchID string) (*models.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	return copyOf(b), nil
}

func (s *MemoryStore) UpdateBatch(_ context.Context, b *models.ImportBatch, allowedFrom []models.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.batches[b.BatchID]
	if !ok {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrNotFound)
	}
	if len(allowedFrom) > 0 && !statusIn(cur.Status, allowedFrom) {
		return fmt.Errorf("batch %s is %s: %w", b.BatchID, cur.Status, ErrStateConflict)
	}
	s.batches[b.BatchID] = copyOf(b)
	return nil
}

func (s *MemoryStore) ListBatches(_ context.Context, orgID string) ([]*models.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ImportBatch
	for _, b := range s.batches {
		if b.OrgID == orgID {
			out = append(out, copyOf(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CreateRecord(_ context.Context, r *models.ImportBatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[r.BatchID]
	if recs == nil {
		recs = map[int]*models.ImportBatchRecord{}
		s.records[r.BatchID] = recs
	}
	if _, ok := recs[r.RecordIndex]; ok {
		return fmt.Errorf("record %s/%d: %w", r.BatchID, r.RecordIndex, ErrExists)
	}
	recs[r.RecordIndex] = copyOf(r)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[batchID][recordIndex]
	if !ok {
		return nil, fmt.Errorf("record %s/%d: %w", batchID, recordIndex, ErrNotFound)
	}
	return copyOf(r), nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, r *models.ImportBatchRecord, allowedFrom []models.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[r.BatchID][r.RecordIndex]
	if !ok {
		return fmt.Errorf("record %s/%d: %w", r.BatchID, r.RecordIndex, ErrNotFound)
	}
	if len(allowedFrom) > 0 && !statusIn(cur.Status, allowedFrom) {
		return fmt.Errorf("record %s/%d is %s: %w", r.BatchID, r.RecordIndex, cur.Status, ErrStateConflict)
	}
	s.records[r.BatchID][r.RecordIndex] = copyOf(r)
	return nil
}

func (s *MemoryStore) ListRecords(_ context.Context, batchID string) ([]*models.ImportBatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ImportBatchRecord
	for _, r := range s.records[batchID] {
		out = append(out, copyOf(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordIndex < out[j].RecordIndex })
	return out, nil
}

func (s *MemoryStore) MaxRecordIndex(_ context.Context, batchID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := -1
	for idx := range s.records[batchID] {
		if idx > max {
			max = idx
		}
	}
	return max, nil
}

func (s *MemoryStore) Health(_ context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.META_STORE + " (memory)"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	return rsp
}

func statusIn[S ~string](s S, allowed []S) bool {
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

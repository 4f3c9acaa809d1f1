package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chartflow/import-server/internal/models"
	"github.com/redis/go-redis/v9"
)

// casScript performs the guarded write server-side so that competing
// transitions are resolved by redis: exactly one wins, the rest see CONFLICT.
// KEYS[1] entity key; ARGV[1] new json; ARGV[2..] allowed current statuses
// (none means unconditional).
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return redis.error_reply('NOTFOUND')
end
if #ARGV > 1 then
  local status = cjson.decode(cur)['status']
  local ok = false
  for i = 2, #ARGV do
    if ARGV[i] == status then ok = true end
  end
  if not ok then
    return redis.error_reply('CONFLICT ' .. status)
  end
end
redis.call('SET', KEYS[1], ARGV[1])
return 'OK'
`)

// RedisStore is the production metadata tier. Batches and records are JSON
// values; secondary ordering lives in sorted sets (org batches by creation
// time, batch records by index).
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func batchKey(id string) string               { return "import:batch:" + id }
func orgKey(org string) string                { return "import:org:" + org + ":batches" }
func recordKey(batchID string, i int) string  { return "import:record:" + batchID + ":" + strconv.Itoa(i) }
func batchRecordsKey(batchID string) string   { return "import:batch:" + batchID + ":records" }

func (s *RedisStore) CreateBatch(ctx context.Context, b *models.ImportBatch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	ok, err := s.Client.SetNX(ctx, batchKey(b.BatchID), payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("batch %s: %w", b.BatchID, ErrExists)
	}
	return s.Client.ZAdd(ctx, orgKey(b.OrgID), redis.Z{
		Score:  float64(b.CreatedAt.UnixNano()),
		Member: b.BatchID,
	}).Err()
}

func (s *RedisStore) GetBatch(ctx context.Context, batchID string) (*models.ImportBatch, error) {
	raw, err := s.Client.Get(ctx, batchKey(batchID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b := &models.ImportBatch{}
	if err := json.Unmarshal([]byte(raw), b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *RedisStore) UpdateBatch(ctx context.Context, b *models.ImportBatch, allowedFrom []models.BatchStatus) error {
	args := make([]any, 0, len(allowedFrom)+1)
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	args = append(args, string(payload))
	for _, a := range allowedFrom {
		args = append(args, string(a))
	}
	return casErr("batch "+b.BatchID, casScript.Run(ctx, s.Client, []string{batchKey(b.BatchID)}, args...).Err())
}

func (s *RedisStore) ListBatches(ctx context.Context, orgID string) ([]*models.ImportBatch, error) {
	ids, err := s.Client.ZRange(ctx, orgKey(orgID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.ImportBatch, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBatch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *RedisStore) CreateRecord(ctx context.Context, r *models.ImportBatchRecord) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ok, err := s.Client.SetNX(ctx, recordKey(r.BatchID, r.RecordIndex), payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("record %s/%d: %w", r.BatchID, r.RecordIndex, ErrExists)
	}
	return s.Client.ZAdd(ctx, batchRecordsKey(r.BatchID), redis.Z{
		Score:  float64(r.RecordIndex),
		Member: strconv.Itoa(r.RecordIndex),
	}).Err()
}

func (s *RedisStore) GetRecord(ctx context.Context, batchID string, recordIndex int) (*models.ImportBatchRecord, error) {
	raw, err := s.Client.Get(ctx, recordKey(batchID, recordIndex)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("record %s/%d: %w", batchID, recordIndex, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r := &models.ImportBatchRecord{}
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RedisStore) UpdateRecord(ctx context.Context, r *models.ImportBatchRecord, allowedFrom []models.RecordStatus) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(allowedFrom)+1)
	args = append(args, string(payload))
	for _, a := range allowedFrom {
		args = append(args, string(a))
	}
	key := recordKey(r.BatchID, r.RecordIndex)
	return casErr(fmt.Sprintf("record %s/%d", r.BatchID, r.RecordIndex), casScript.Run(ctx, s.Client, []string{key}, args...).Err())
}

func (s *RedisStore) ListRecords(ctx context.Context, batchID string) ([]*models.ImportBatchRecord, error) {
	idxs, err := s.Client.ZRange(ctx, batchRecordsKey(batchID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.ImportBatchRecord, 0, len(idxs))
	for _, raw := range idxs {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		r, err := s.GetRecord(ctx, batchID, i)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) MaxRecordIndex(ctx context.Context, batchID string) (int, error) {
	idxs, err := s.Client.ZRange(ctx, batchRecordsKey(batchID), -1, -1).Result()
	if err != nil {
		return -1, err
	}
	if len(idxs) == 0 {
		return -1, nil
	}
	return strconv.Atoi(idxs[0])
}

func (s *RedisStore) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.META_STORE + " (redis)"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return rsp.BuildErrorResponse(err)
	}
	return rsp
}

func casErr(entity string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NOTFOUND"):
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	case strings.Contains(msg, "CONFLICT"):
		return fmt.Errorf("%s: %w", entity, ErrStateConflict)
	}
	return err
}

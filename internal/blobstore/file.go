package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chartflow/import-server/internal/models"
	"github.com/dustin/go-humanize"
)

// FileStore keeps blobs on the local filesystem under baseDir/bucket/key.
// Used for local runs and tests.
type FileStore struct {
	BaseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{BaseDir: baseDir}
}

func (s *FileStore) path(bucket, key string) string {
	return filepath.Join(s.BaseDir, bucket, filepath.FromSlash(key))
}

func (s *FileStore) Put(_ context.Context, bucket, key string, data []byte) error {
	p := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return err
	}
	logger.Debug("writing blob", "bucket", bucket, "key", key, "size", humanize.Bytes(uint64(len(data))))
	return os.WriteFile(p, data, 0644)
}

func (s *FileStore) PutIfAbsent(_ context.Context, bucket, key string, data []byte) error {
	p := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrExists)
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (s *FileStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *FileStore) Health(_ context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.BLOB_STORE + " (file)"
	info, err := os.Stat(s.BaseDir)
	if err != nil {
		return rsp.BuildErrorResponse(err)
	}
	if !info.IsDir() {
		return rsp.BuildErrorResponse(fmt.Errorf("%s is not a directory", s.BaseDir))
	}
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	return rsp
}

package blobstore

import (
	"context"
	"errors"
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

var (
	ErrNotFound = errors.New("blob not found")
	ErrExists   = errors.New("blob already exists")
)

// Store is the large-payload tier. PutIfAbsent backs the immutable payloads
// (raw batch bytes, record payloads, event offloads); Put backs the
// data-entry snapshot, which is overwritten on every save.
type Store interface {
	health.Checkable

	Put(ctx context.Context, bucket, key string, data []byte) error
	PutIfAbsent(ctx context.Context, bucket, key string, data []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

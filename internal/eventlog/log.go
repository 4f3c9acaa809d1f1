package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/chartflow/import-server/internal/blobstore"
	"github.com/chartflow/import-server/internal/models"
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
	ErrUnknownKind   = errors.New("unknown event kind")
	ErrBadEventShape = errors.New("event does not match its kind schema")
)

// OffloadThreshold is the serialized size above which an event-data field is
// relocated to the blob store and replaced by a reference.
var OffloadThreshold = 32 * 1024

// offloadableFields are the event-data fields that can grow past what the
// event stream should carry inline.
var offloadableFields = []string{"flowResult", "sourceData"}

const blobRefField = "blob_ref"

// Appender is one sink of the append-only stream.
type Appender interface {
	Append(ctx context.Context, e *ImportEvent) error
}

// Log validates events against their kind schema, relocates oversized
// payload fields to the blob store, and appends to every sink.
type Log struct {
	Appenders []Appender
	Blobs     blobstore.Store
}

func New(blobs blobstore.Store, appenders ...Appender) *Log {
	return &Log{Appenders: appenders, Blobs: blobs}
}

func Validate(e *ImportEvent) error {
	schema, ok := kindSchemas[e.Kind]
	if !ok {
		return fmt.Errorf("%s: %w", e.Kind, ErrUnknownKind)
	}
	var errs []error
	switch schema.actor {
	case actorRequired:
		if e.Actor == "" {
			errs = append(errs, fmt.Errorf("%s requires an actor", e.Kind))
		}
	case actorForbidden:
		if e.Actor != "" {
			errs = append(errs, fmt.Errorf("%s is system-triggered and forbids an actor", e.Kind))
		}
	}
	if schema.needsBatch && e.BatchID == "" {
		errs = append(errs, fmt.Errorf("%s requires a batch reference", e.Kind))
	}
	if schema.needsRecord && e.RecordIndex == nil {
		errs = append(errs, fmt.Errorf("%s requires a record reference", e.Kind))
	}
	if schema.needsForm && e.ExternalFormID == "" {
		errs = append(errs, fmt.Errorf("%s requires an external form reference", e.Kind))
	}
	for _, field := range schema.requiredData {
		if _, ok := e.EventData[field]; !ok {
			errs = append(errs, fmt.Errorf("%s requires event data field %s", e.Kind, field))
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrBadEventShape}, errs...)...)
	}
	return nil
}

func (l *Log) Append(ctx context.Context, e *ImportEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.EventTime.IsZero() {
		e.EventTime = time.Now().UTC()
	}
	if err := Validate(e); err != nil {
		return err
	}
	if err := l.offload(ctx, e); err != nil {
		return err
	}
	for _, a := range l.Appenders {
		if err := a.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// offload moves oversized payload fields to the blob store keyed by event id,
// leaving a reference in their place.
func (l *Log) offload(ctx context.Context, e *ImportEvent) error {
	for _, field := range offloadableFields {
		val, ok := e.EventData[field]
		if !ok {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		if len(raw) <= OffloadThreshold {
			continue
		}
		key := e.EventID + "/" + field
		if err := l.Blobs.PutIfAbsent(ctx, models.EventPayloadBucket, key, raw); err != nil && !errors.Is(err, blobstore.ErrExists) {
			return err
		}
		e.EventData[field] = map[string]any{blobRefField: key}
		logger.Debug("offloaded oversized event field", "eventId", e.EventID, "field", field)
	}
	return nil
}

// Rehydrate resolves any offloaded field references back into the event.
func (l *Log) Rehydrate(ctx context.Context, e *ImportEvent) error {
	for _, field := range offloadableFields {
		ref, ok := e.EventData[field].(map[string]any)
		if !ok {
			continue
		}
		key, ok := ref[blobRefField].(string)
		if !ok {
			continue
		}
		raw, err := l.Blobs.Get(ctx, models.EventPayloadBucket, key)
		if err != nil {
			return err
		}
		var val any
		if err := json.Unmarshal(raw, &val); err != nil {
			return err
		}
		e.EventData[field] = val
	}
	return nil
}

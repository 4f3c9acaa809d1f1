package generators

import (
	"context"
	"errors"
	"fmt"

	"github.com/chartflow/import-server/internal/models"
)

var ErrNoGenerator = errors.New("no generator registered for format")

// Candidate is one generated record before persistence: its batch-scoped
// index, its format tag, the immutable structured payload, and the flattened
// field map that seeds the data-entry snapshot.
type Candidate struct {
	Index         int
	Format        models.RecordFormat
	Payload       any
	EntrySnapshot map[string]string
}

// Generator turns a batch's raw bytes into an ordered candidate list.
// resumeFrom is the first index still wanted; formats that cannot resume
// reparse everything and the caller skips what already exists.
type Generator interface {
	Generate(ctx context.Context, raw []byte, opts models.FormatOptions, resumeFrom int) ([]Candidate, error)
}

// Rasterizer is the external document renderer, consumed as a black box.
type Rasterizer interface {
	PageCount(ctx context.Context, raw []byte) (int, error)
	RenderPages(ctx context.Context, raw []byte, start, count int) ([][]byte, error)
}

// RecordSet is one vendor-parsed structured record.
type RecordSet map[string]any

// RecordSetParser is a vendor export parser, consumed as a black box.
type RecordSetParser interface {
	Parse(ctx context.Context, text string) ([]RecordSet, error)
}

var registry = map[models.DataFormat]Generator{}

func Register(format models.DataFormat, g Generator) {
	registry[format] = g
}

func Get(format models.DataFormat) (Generator, error) {
	g, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("%s: %w", format, ErrNoGenerator)
	}
	return g, nil
}

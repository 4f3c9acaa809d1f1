package generators

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/chartflow/import-server/internal/models"
)

var ErrBadDelimiter = errors.New("delimiter must be a single character")

// DelimitedRowPayload is the structured payload of a delimited-row record.
type DelimitedRowPayload struct {
	Columns []string `json:"columns"`
	Cells   []string `json:"cells"`
}

// DelimitedGenerator parses the whole text on every call; the format is not
// resumable, so regeneration rebuilds the full candidate list and the caller
// keeps only what it is missing. Record index is the row's position in the
// parsed table (post-header), preserved across linesToSkip so skipped rows
// still occupy their ordinals.
type DelimitedGenerator struct{}

func (g *DelimitedGenerator) Generate(_ context.Context, raw []byte, opts models.FormatOptions, _ int) ([]Candidate, error) {
	delim := []rune(opts.Delimiter)
	if len(delim) != 1 {
		return nil, fmt.Errorf("%q: %w", opts.Delimiter, ErrBadDelimiter)
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = delim[0]
	reader.LazyQuotes = true
	// Column-count enforcement is done below so short rows keep their index.
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	columns := opts.ColumnNames
	if opts.HasHeader {
		if len(rows) == 0 {
			return nil, nil
		}
		columns = rows[0]
		rows = rows[1:]
	}

	var candidates []Candidate
	for idx, cells := range rows {
		if idx < opts.LinesToSkip {
			continue
		}
		if isBlankRow(cells) {
			if opts.SkipEmptyLines {
				continue
			}
			return nil, fmt.Errorf("%w: blank row at index %d", models.ErrValidation, idx)
		}
		cols := columns
		if len(cols) == 0 {
			cols = positionalColumns(len(cells))
		}
		if len(cells) < len(cols) {
			if opts.SkipShortRows {
				continue
			}
			if !opts.RelaxColumnCount {
				return nil, fmt.Errorf("%w: row %d has %d cells, want %d", models.ErrValidation, idx, len(cells), len(cols))
			}
		}
		snapshot := map[string]string{}
		for i, col := range cols {
			if i < len(cells) {
				snapshot[col] = cells[i]
			}
		}
		candidates = append(candidates, Candidate{
			Index:         idx,
			Format:        models.RecordFormatDelimitedRow,
			Payload:       DelimitedRowPayload{Columns: cols, Cells: cells},
			EntrySnapshot: snapshot,
		})
	}
	return candidates, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("column_%d", i)
	}
	return cols
}

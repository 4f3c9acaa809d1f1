package generators

import (
	"context"

	"github.com/chartflow/import-server/internal/models"
)

// VendorGenerator wraps one vendor's record-set parser. Resumption reparses
// the full text and discards the already-generated prefix; the sources are
// small enough that reparse beats a persisted cursor.
type VendorGenerator struct {
	Parser       RecordSetParser
	RecordFormat models.RecordFormat
}

func (g *VendorGenerator) Generate(ctx context.Context, raw []byte, _ models.FormatOptions, resumeFrom int) ([]Candidate, error) {
	sets, err := g.Parser.Parse(ctx, string(raw))
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	for idx, set := range sets {
		if idx < resumeFrom {
			continue
		}
		candidates = append(candidates, Candidate{
			Index:         idx,
			Format:        g.RecordFormat,
			Payload:       set,
			EntrySnapshot: Flatten(set),
		})
	}
	return candidates, nil
}

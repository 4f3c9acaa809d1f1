package generators

import (
	"context"

	"github.com/chartflow/import-server/internal/models"
)

// PDFPageSetPayload is the structured payload of a pdf-page-set record: the
// rendered page bitmaps, one record per source page at generation time,
// several after a merge.
type PDFPageSetPayload struct {
	Pages [][]byte `json:"pages"`
}

// PDFGenerator emits one record per rasterized page, resuming at
// resumeFrom so a partially generated batch picks up where it stopped.
type PDFGenerator struct {
	Raster Rasterizer
}

func (g *PDFGenerator) Generate(ctx context.Context, raw []byte, _ models.FormatOptions, resumeFrom int) ([]Candidate, error) {
	pageCount, err := g.Raster.PageCount(ctx, raw)
	if err != nil {
		return nil, err
	}
	if resumeFrom >= pageCount {
		return nil, nil
	}
	bitmaps, err := g.Raster.RenderPages(ctx, raw, resumeFrom, pageCount-resumeFrom)
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(bitmaps))
	for i, bitmap := range bitmaps {
		payload := PDFPageSetPayload{Pages: [][]byte{bitmap}}
		candidates = append(candidates, Candidate{
			Index:   resumeFrom + i,
			Format:  models.RecordFormatPDFPageSet,
			Payload: payload,
			// Page bitmaps carry no fields; data entry starts from a blank map.
			EntrySnapshot: map[string]string{},
		})
	}
	return candidates, nil
}

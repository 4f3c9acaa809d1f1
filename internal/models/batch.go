package models

import (
	"errors"
	"fmt"
	"time"
)

type SourceKind string

const (
	SourceFax    SourceKind = "fax"
	SourceFTP    SourceKind = "ftp"
	SourceManual SourceKind = "manual"
)

type DataFormat string

const (
	FormatPDF       DataFormat = "pdf"
	FormatDelimited DataFormat = "delimited"
	FormatVendorA   DataFormat = "vendora"
	FormatVendorB   DataFormat = "vendorb"
	FormatVendorC   DataFormat = "vendorc"
)

var ErrValidation = errors.New("validation failure")

// FormatOptions only carries meaning for the delimited format; other formats
// must leave it zero.
type FormatOptions struct {
	Delimiter        string   `json:"delimiter,omitempty"`
	HasHeader        bool     `json:"has_header,omitempty"`
	ColumnNames      []string `json:"column_names,omitempty"`
	LinesToSkip      int      `json:"lines_to_skip,omitempty"`
	SkipEmptyLines   bool     `json:"skip_empty_lines,omitempty"`
	RelaxColumnCount bool     `json:"relax_column_count,omitempty"`
	SkipShortRows    bool     `json:"skip_short_rows,omitempty"`
}

func (o FormatOptions) IsZero() bool {
	return o.Delimiter == "" && !o.HasHeader && len(o.ColumnNames) == 0 &&
		o.LinesToSkip == 0 && !o.SkipEmptyLines && !o.RelaxColumnCount && !o.SkipShortRows
}

// ImportBatch is one ingested source document and its processing envelope.
// Raw source bytes never live here; they are blob-stored under the batch id.
type ImportBatch struct {
	BatchID   string     `json:"batch_id"`
	OrgID     string     `json:"org_id"`
	FacilityID *int      `json:"facility_id,omitempty"`
	SourceKind SourceKind `json:"source_kind"`
	// Kind-specific correlation ids, e.g. fax sid or ftp file path.
	SourceRefs    map[string]string `json:"source_refs,omitempty"`
	DataFormat    DataFormat        `json:"data_format"`
	FormatOptions FormatOptions     `json:"format_options,omitempty"`

	Status            BatchStatus          `json:"status"`
	AssignedTo        string               `json:"assigned_to,omitempty"`
	RequiresDataEntry bool                 `json:"requires_data_entry"`
	TemplateID        string               `json:"template_id,omitempty"`
	DownstreamFlowID  string               `json:"downstream_flow_id"`
	StatusCounts      map[RecordStatus]int `json:"status_counts,omitempty"`
	PDFPageCount      *int                 `json:"pdf_page_count,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	ReceivedAt    time.Time  `json:"received_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DiscardedAt   *time.Time `json:"discarded_at,omitempty"`

	GenerationError string `json:"generation_error,omitempty"`
	DiscardReason   string `json:"discard_reason,omitempty"`
}

var requiredSourceRefs = map[SourceKind][]string{
	SourceFax: {"fax_sid"},
	SourceFTP: {"remote_path"},
}

// Validate enforces the format-conditioned creation schema: delimiter and
// header rules only apply to delimited batches, and each source kind demands
// its own correlation ids.
func (b *ImportBatch) Validate() error {
	var errs []error
	if b.OrgID == "" {
		errs = append(errs, &ErrorMissing{Field: "org_id"})
	}
	switch b.SourceKind {
	case SourceFax, SourceFTP, SourceManual:
	default:
		errs = append(errs, &ErrorNotAnAllowedValue{Field: "source_kind", Value: string(b.SourceKind)})
	}
	switch b.DataFormat {
	case FormatPDF, FormatDelimited, FormatVendorA, FormatVendorB, FormatVendorC:
	default:
		errs = append(errs, &ErrorNotAnAllowedValue{Field: "data_format", Value: string(b.DataFormat)})
	}
	for _, ref := range requiredSourceRefs[b.SourceKind] {
		if b.SourceRefs[ref] == "" {
			errs = append(errs, &ErrorMissing{Field: "source_refs." + ref})
		}
	}
	if b.DataFormat == FormatDelimited {
		if b.FormatOptions.Delimiter == "" {
			errs = append(errs, &ErrorMissing{Field: "format_options.delimiter"})
		}
		if !b.FormatOptions.HasHeader && len(b.FormatOptions.ColumnNames) == 0 {
			errs = append(errs, fmt.Errorf("format_options requires a header row or explicit column_names"))
		}
		if b.FormatOptions.LinesToSkip < 0 {
			errs = append(errs, &ErrorNotAnAllowedValue{Field: "format_options.lines_to_skip", Value: fmt.Sprint(b.FormatOptions.LinesToSkip)})
		}
	} else if !b.FormatOptions.IsZero() {
		errs = append(errs, fmt.Errorf("format_options only apply to the delimited format"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrValidation}, errs...)...)
	}
	return nil
}

type ErrorMissing struct {
	Field string
}

func (e *ErrorMissing) Error() string {
	return fmt.Sprintf("field %s was missing", e.Field)
}

type ErrorNotAnAllowedValue struct {
	Field string
	Value string
}

func (e *ErrorNotAnAllowedValue) Error() string {
	return fmt.Sprintf("%s had disallowed value %s", e.Field, e.Value)
}

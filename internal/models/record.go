package models

import "time"

type RecordFormat string

const (
	RecordFormatDelimitedRow  RecordFormat = "delimited-row"
	RecordFormatPDFPageSet    RecordFormat = "pdf-page-set"
	RecordFormatExternalForm  RecordFormat = "external-form"
	RecordFormatVendorARecord RecordFormat = "vendora-record"
	RecordFormatVendorBRecord RecordFormat = "vendorb-record"
	RecordFormatVendorCRecord RecordFormat = "vendorc-record"
)

type Note struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportBatchRecord is one unit of work produced from a batch. Its key is
// (BatchID, RecordIndex); RecordIndex is a dense batch-scoped ordinal assigned
// in source order and never reused, even across merges.
type ImportBatchRecord struct {
	BatchID      string       `json:"batch_id"`
	RecordIndex  int          `json:"record_index"`
	RecordFormat RecordFormat `json:"record_format"`

	Status RecordStatus `json:"status"`
	Notes  []Note       `json:"notes,omitempty"`

	DataEntryBy                 []string `json:"data_entry_by,omitempty"`
	DataEntryErrorFields        []string `json:"data_entry_error_fields,omitempty"`
	DataEntryInvalidFields      []string `json:"data_entry_invalid_fields,omitempty"`
	InitialDataEntryErrorFields []string `json:"initial_data_entry_error_fields,omitempty"`

	ResponsibleProviderIDs       []string `json:"responsible_provider_ids,omitempty"`
	PrimaryResponsibleProviderID string   `json:"primary_responsible_provider_id,omitempty"`
	FormServiceDate              string   `json:"form_service_date,omitempty"`
	ImageRotationDegrees         int      `json:"image_rotation_degrees,omitempty"`

	ProcessingData         map[string]any `json:"processing_data,omitempty"`
	ProcessingFailedReason string         `json:"processing_failed_reason,omitempty"`
	ProcessingStartedAt    *time.Time     `json:"processing_started_at,omitempty"`
	DiscardReason          string         `json:"discard_reason,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Snapshot tracking is json-visible so it round-trips through the store.
	InitialErrorFieldsFrozen bool `json:"initial_error_fields_frozen,omitempty"`
}

// FreezeInitialErrorFields takes the write-once snapshot of the error-field
// set recorded before the first data entry. Later saves never overwrite it.
func (r *ImportBatchRecord) FreezeInitialErrorFields(fields []string) {
	if r.InitialErrorFieldsFrozen {
		return
	}
	r.InitialDataEntryErrorFields = append([]string(nil), fields...)
	r.InitialErrorFieldsFrozen = true
}

package eventlog

import (
	"time"
)

type Kind string

// The closed set of audit event kinds. Adding a kind means adding its schema
// to kindSchemas below.
const (
	BatchCreated        Kind = "batch_created"
	BatchAssigned       Kind = "batch_assigned"
	BatchIgnored        Kind = "batch_ignored"
	BatchStatusUpdate   Kind = "batch_status_update"
	BatchTemplateChange Kind = "batch_template_change"
	BatchDiscarded      Kind = "batch_discarded"
	BatchOpened         Kind = "batch_opened"
	BatchFacilitySet    Kind = "batch_facility_set"
	BatchRecordsMerged  Kind = "batch_records_merged"

	RecordStatusUpdate        Kind = "record_status_update"
	RecordDataEntered         Kind = "record_data_entered"
	RecordNoteAdded           Kind = "record_note_added"
	RecordOpened              Kind = "record_opened"
	RecordDiscarded           Kind = "record_discarded"
	RecordUndiscarded         Kind = "record_undiscarded"
	RecordIgnored             Kind = "record_ignored"
	RecordUnignored           Kind = "record_unignored"
	RecordProcessingSucceeded Kind = "record_processing_succeeded"
	RecordProcessingFailed    Kind = "record_processing_failed"
	RecordReprocess           Kind = "record_reprocess"

	FaxReceived Kind = "fax_received"
	EWFOpened   Kind = "ewf_opened"
	EWFSaved    Kind = "ewf_saved"
)

// ImportEvent is one append-only audit fact. Events are write-once; nothing
// in this core mutates or deletes them after Append.
type ImportEvent struct {
	EventID        string         `json:"event_id"`
	Kind           Kind           `json:"kind"`
	BatchID        string         `json:"batch_id,omitempty"`
	RecordIndex    *int           `json:"record_index,omitempty"`
	ExternalFormID string         `json:"external_form_id,omitempty"`
	Actor          string         `json:"actor,omitempty"`
	EventTime      time.Time      `json:"event_time"`
	EventData      map[string]any `json:"event_data,omitempty"`
}

type actorMode int

const (
	actorRequired actorMode = iota
	actorForbidden
	actorOptional
)

type kindSchema struct {
	actor        actorMode
	needsBatch   bool
	needsRecord  bool
	needsForm    bool
	requiredData []string
}

var kindSchemas = map[Kind]kindSchema{
	BatchCreated:        {actor: actorOptional, needsBatch: true},
	BatchAssigned:       {actor: actorRequired, needsBatch: true, requiredData: []string{"assignee"}},
	BatchIgnored:        {actor: actorRequired, needsBatch: true},
	BatchStatusUpdate:   {actor: actorOptional, needsBatch: true, requiredData: []string{"status"}},
	BatchTemplateChange: {actor: actorRequired, needsBatch: true, requiredData: []string{"templateId"}},
	BatchDiscarded:      {actor: actorRequired, needsBatch: true, requiredData: []string{"reason"}},
	BatchOpened:         {actor: actorRequired, needsBatch: true},
	BatchFacilitySet:    {actor: actorRequired, needsBatch: true, requiredData: []string{"facilityId"}},
	BatchRecordsMerged:  {actor: actorRequired, needsBatch: true, requiredData: []string{"sourceIndexes", "mergedIndex"}},

	RecordStatusUpdate:        {actor: actorOptional, needsBatch: true, needsRecord: true, requiredData: []string{"status"}},
	RecordDataEntered:         {actor: actorRequired, needsBatch: true, needsRecord: true},
	RecordNoteAdded:           {actor: actorRequired, needsBatch: true, needsRecord: true, requiredData: []string{"note"}},
	RecordOpened:              {actor: actorRequired, needsBatch: true, needsRecord: true},
	RecordDiscarded:           {actor: actorRequired, needsBatch: true, needsRecord: true, requiredData: []string{"reason"}},
	RecordUndiscarded:         {actor: actorRequired, needsBatch: true, needsRecord: true},
	RecordIgnored:             {actor: actorRequired, needsBatch: true, needsRecord: true},
	RecordUnignored:           {actor: actorRequired, needsBatch: true, needsRecord: true},
	RecordProcessingSucceeded: {actor: actorForbidden, needsBatch: true, needsRecord: true},
	RecordProcessingFailed:    {actor: actorForbidden, needsBatch: true, needsRecord: true, requiredData: []string{"reason"}},
	RecordReprocess:           {actor: actorRequired, needsBatch: true, needsRecord: true},

	FaxReceived: {actor: actorForbidden, requiredData: []string{"faxSid"}},
	EWFOpened:   {actor: actorRequired, needsForm: true},
	EWFSaved:    {actor: actorRequired, needsForm: true},
}

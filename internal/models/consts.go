package models

const (
	STATUS_UP         = "UP"
	STATUS_DEGRADED   = "DEGRADED"
	STATUS_DOWN       = "DOWN"
	HEALTH_ISSUE_NONE = "None reported"
	//
	SERVICE_BUS    = "Azure Service Bus"
	WORK_QUEUE_SQS = "SQS Work Queue"
	META_STORE     = "Metadata Store"
	BLOB_STORE     = "Blob Store"

	BatchBlobBucket       = "batches"
	RecordPayloadBucket   = "record-payloads"
	DataEntryBucket       = "data-entry"
	EventPayloadBucket    = "event-payloads"
) // .const

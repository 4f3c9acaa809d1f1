package models

import "slices"

type BatchStatus string

const (
	BatchPendingGeneration BatchStatus = "pending_generation"
	BatchGenerating        BatchStatus = "generating"
	BatchGenerationError   BatchStatus = "generation_error"
	BatchTriage            BatchStatus = "triage"
	BatchProcessing        BatchStatus = "processing"
	BatchPendingReview     BatchStatus = "pending_review"
	BatchComplete          BatchStatus = "complete"
	BatchDiscarded         BatchStatus = "discarded"
)

type RecordStatus string

const (
	RecordPendingDataEntry   RecordStatus = "pending_data_entry"
	RecordPendingProcessing  RecordStatus = "pending_processing"
	RecordProcessing         RecordStatus = "processing"
	RecordPendingReview      RecordStatus = "pending_review"
	RecordProcessingComplete RecordStatus = "processing_complete"
	RecordDiscarded          RecordStatus = "discarded"
	RecordIgnored            RecordStatus = "ignored"

	// Accepted on input as an alias of pending_review; never stored.
	RecordProcessingFailed RecordStatus = "processing_failed"
)

// Transition is one edge of a status machine. Guards are data so that both
// the batch and record machines share the same conditional-update mechanics.
type Transition[S ~string] struct {
	From []S
	To   S
}

func (t Transition[S]) Allows(current S) bool {
	return slices.Contains(t.From, current)
}

// Batch machine edges. The processing/pending_review/complete moves are owned
// by the status aggregator and have no guarded edge here.
var (
	BatchToGenerating = Transition[BatchStatus]{
		From: []BatchStatus{BatchPendingGeneration, BatchGenerationError, BatchGenerating, BatchTriage},
		To:   BatchGenerating,
	}
	BatchToTriage = Transition[BatchStatus]{
		From: []BatchStatus{BatchGenerating},
		To:   BatchTriage,
	}
	BatchToGenerationError = Transition[BatchStatus]{
		From: []BatchStatus{BatchGenerating, BatchPendingGeneration},
		To:   BatchGenerationError,
	}
	BatchToProcessing = Transition[BatchStatus]{
		From: []BatchStatus{BatchTriage, BatchGenerating},
		To:   BatchProcessing,
	}
	BatchAssignable = []BatchStatus{BatchTriage, BatchProcessing, BatchPendingReview}
	BatchToDiscarded = Transition[BatchStatus]{
		From: []BatchStatus{BatchTriage, BatchProcessing, BatchPendingReview, BatchGenerationError},
		To:   BatchDiscarded,
	}
)

// Record machine edges.
var (
	RecordToPendingProcessingFromEntry = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingDataEntry, RecordPendingReview, RecordProcessingComplete},
		To:   RecordPendingProcessing,
	}
	RecordToPendingProcessing = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingDataEntry, RecordPendingReview},
		To:   RecordPendingProcessing,
	}
	RecordToProcessing = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingProcessing, RecordProcessing},
		To:   RecordProcessing,
	}
	RecordToProcessingComplete = Transition[RecordStatus]{
		From: []RecordStatus{RecordProcessing},
		To:   RecordProcessingComplete,
	}
	RecordToPendingReview = Transition[RecordStatus]{
		From: []RecordStatus{RecordProcessing},
		To:   RecordPendingReview,
	}
	RecordToReprocess = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingProcessing, RecordProcessing, RecordProcessingComplete, RecordPendingReview},
		To:   RecordPendingProcessing,
	}
	RecordToDiscarded = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingDataEntry},
		To:   RecordDiscarded,
	}
	RecordToUndiscarded = Transition[RecordStatus]{
		From: []RecordStatus{RecordDiscarded},
		To:   RecordPendingDataEntry,
	}
	RecordToIgnored = Transition[RecordStatus]{
		From: []RecordStatus{RecordPendingReview, RecordProcessingComplete},
		To:   RecordIgnored,
	}
	RecordToUnignored = Transition[RecordStatus]{
		From: []RecordStatus{RecordIgnored},
		To:   RecordPendingReview,
	}
)

// NormalizeRecordStatus maps legacy input aliases onto stored statuses.
func NormalizeRecordStatus(s RecordStatus) RecordStatus {
	if s == RecordProcessingFailed {
		return RecordPendingReview
	}
	return s
}

// DoneRecordStatus reports whether a record needs no further work.
func DoneRecordStatus(s RecordStatus) bool {
	switch s {
	case RecordProcessingComplete, RecordDiscarded, RecordIgnored:
		return true
	}
	return false
}

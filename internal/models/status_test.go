package models

import "testing"

func TestBatchTransitionGuards(t *testing.T) {
	cases := []struct {
		name    string
		edge    Transition[BatchStatus]
		from    BatchStatus
		allowed bool
	}{
		{"generate from pending", BatchToGenerating, BatchPendingGeneration, true},
		{"generate retry after error", BatchToGenerating, BatchGenerationError, true},
		{"generate catch-up from triage", BatchToGenerating, BatchTriage, true},
		{"generate not from processing", BatchToGenerating, BatchProcessing, false},
		{"triage only from generating", BatchToTriage, BatchGenerating, true},
		{"triage not from pending", BatchToTriage, BatchPendingGeneration, false},
		{"open from triage", BatchToProcessing, BatchTriage, true},
		{"open not from complete", BatchToProcessing, BatchComplete, false},
		{"discard from review", BatchToDiscarded, BatchPendingReview, true},
		{"discard from generation error", BatchToDiscarded, BatchGenerationError, true},
		{"discard not from complete", BatchToDiscarded, BatchComplete, false},
		{"discard not twice", BatchToDiscarded, BatchDiscarded, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.edge.Allows(c.from); got != c.allowed {
				t.Errorf("Allows(%s) = %v, want %v", c.from, got, c.allowed)
			}
		})
	}
}

func TestRecordTransitionGuards(t *testing.T) {
	cases := []struct {
		name    string
		edge    Transition[RecordStatus]
		from    RecordStatus
		allowed bool
	}{
		{"entry save from data entry", RecordToPendingProcessingFromEntry, RecordPendingDataEntry, true},
		{"entry save re-edit from review", RecordToPendingProcessingFromEntry, RecordPendingReview, true},
		{"entry save after complete", RecordToPendingProcessingFromEntry, RecordProcessingComplete, true},
		{"entry save not from discarded", RecordToPendingProcessingFromEntry, RecordDiscarded, false},
		{"begin from pending", RecordToProcessing, RecordPendingProcessing, true},
		{"begin re-entrant", RecordToProcessing, RecordProcessing, true},
		{"begin not from data entry", RecordToProcessing, RecordPendingDataEntry, false},
		{"complete from processing", RecordToProcessingComplete, RecordProcessing, true},
		{"complete not from pending", RecordToProcessingComplete, RecordPendingProcessing, false},
		{"fail from processing", RecordToPendingReview, RecordProcessing, true},
		{"resubmit from review", RecordToReprocess, RecordPendingReview, true},
		{"resubmit from complete", RecordToReprocess, RecordProcessingComplete, true},
		{"resubmit not from data entry", RecordToReprocess, RecordPendingDataEntry, false},
		{"discard only before entry", RecordToDiscarded, RecordPendingDataEntry, true},
		{"discard not after submit", RecordToDiscarded, RecordPendingProcessing, false},
		{"undiscard round trip", RecordToUndiscarded, RecordDiscarded, true},
		{"ignore from review", RecordToIgnored, RecordPendingReview, true},
		{"ignore from complete", RecordToIgnored, RecordProcessingComplete, true},
		{"unignore back to review", RecordToUnignored, RecordIgnored, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.edge.Allows(c.from); got != c.allowed {
				t.Errorf("Allows(%s) = %v, want %v", c.from, got, c.allowed)
			}
		})
	}
}

func TestNormalizeRecordStatus(t *testing.T) {
	if got := NormalizeRecordStatus(RecordProcessingFailed); got != RecordPendingReview {
		t.Errorf("processing_failed should normalize to pending_review, got %s", got)
	}
	if got := NormalizeRecordStatus(RecordProcessing); got != RecordProcessing {
		t.Errorf("processing should pass through, got %s", got)
	}
}

func TestDoneRecordStatus(t *testing.T) {
	done := []RecordStatus{RecordProcessingComplete, RecordDiscarded, RecordIgnored}
	for _, s := range done {
		if !DoneRecordStatus(s) {
			t.Errorf("%s should count as done", s)
		}
	}
	open := []RecordStatus{RecordPendingDataEntry, RecordPendingProcessing, RecordProcessing, RecordPendingReview}
	for _, s := range open {
		if DoneRecordStatus(s) {
			t.Errorf("%s should not count as done", s)
		}
	}
}

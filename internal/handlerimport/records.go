package handlerimport

import (
	"net/http"

	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/record"
)

// listRecords returns the batch's records, optionally filtered by a status
// query parameter. Legacy status aliases are accepted on input.
func (hi *HandlerImport) listRecords(w http.ResponseWriter, r *http.Request) {
	records, err := hi.Records.List(r.Context(), pathBatchID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	if q := r.URL.Query().Get("status"); q != "" {
		want := models.NormalizeRecordStatus(models.RecordStatus(q))
		filtered := make([]*models.ImportBatchRecord, 0, len(records))
		for _, rec := range records {
			if rec.Status == want {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	respondJSON(w, http.StatusOK, records)
}

func (hi *HandlerImport) getRecord(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	rec, err := hi.Records.Get(r.Context(), pathBatchID(r), idx)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) saveDataEntry(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		Entry         map[string]string `json:"entry"`
		ErrorFields   []string          `json:"error_fields,omitempty"`
		InvalidFields []string          `json:"invalid_fields,omitempty"`
		FormDefRef    string            `json:"form_def_ref,omitempty"`
		Actor         string            `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.SaveDataEntry(r.Context(), pathBatchID(r), idx, record.SaveDataEntryInput{
		Entry:         req.Entry,
		ErrorFields:   req.ErrorFields,
		InvalidFields: req.InvalidFields,
		FormDefRef:    req.FormDefRef,
		Actor:         req.Actor,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) getDataEntry(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	entry, err := hi.Records.DataEntrySnapshot(r.Context(), pathBatchID(r), idx)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (hi *HandlerImport) pageImage(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	img, err := hi.Batches.PageImage(r.Context(), pathBatchID(r), idx)
	if err != nil {
		respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

type actorRequest struct {
	Actor string `json:"actor,omitempty"`
}

func (hi *HandlerImport) markPendingProcessing(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, req actorRequest) (any, error) {
		return hi.Records.MarkPendingProcessing(r.Context(), batchID, idx, req.Actor)
	})
}

func (hi *HandlerImport) beginProcessing(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, _ actorRequest) (any, error) {
		return hi.Records.BeginProcessing(r.Context(), batchID, idx)
	})
}

func (hi *HandlerImport) completeProcessing(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		ProcessingData map[string]any `json:"processing_data,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.CompleteProcessing(r.Context(), pathBatchID(r), idx, req.ProcessingData)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) failProcessing(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		Reason         string         `json:"reason"`
		ProcessingData map[string]any `json:"processing_data,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.FailProcessing(r.Context(), pathBatchID(r), idx, req.Reason, req.ProcessingData)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) resubmitRecord(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, req actorRequest) (any, error) {
		return hi.Records.Resubmit(r.Context(), batchID, idx, req.Actor, false)
	})
}

func (hi *HandlerImport) discardRecord(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.Discard(r.Context(), pathBatchID(r), idx, req.Reason, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) undiscardRecord(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, req actorRequest) (any, error) {
		return hi.Records.Undiscard(r.Context(), batchID, idx, req.Actor)
	})
}

func (hi *HandlerImport) ignoreRecord(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, req actorRequest) (any, error) {
		return hi.Records.Ignore(r.Context(), batchID, idx, req.Actor)
	})
}

func (hi *HandlerImport) unignoreRecord(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, req actorRequest) (any, error) {
		return hi.Records.Unignore(r.Context(), batchID, idx, req.Actor)
	})
}

func (hi *HandlerImport) addNote(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.AddNote(r.Context(), pathBatchID(r), idx, req.Author, req.Text)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) touchRecord(w http.ResponseWriter, r *http.Request) {
	hi.recordOp(w, r, func(batchID string, idx int, _ actorRequest) (any, error) {
		return hi.Records.Touch(r.Context(), batchID, idx)
	})
}

func (hi *HandlerImport) setRotation(w http.ResponseWriter, r *http.Request) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req struct {
		Degrees int `json:"degrees"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.SetImageRotation(r.Context(), pathBatchID(r), idx, req.Degrees)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (hi *HandlerImport) mergeRecords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Indexes []int  `json:"indexes"`
		Actor   string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	rec, err := hi.Records.MergeRecords(r.Context(), pathBatchID(r), req.Indexes, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (hi *HandlerImport) resubmitAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Indexes []int  `json:"indexes"`
		Actor   string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	n, err := hi.Records.ResubmitAll(r.Context(), pathBatchID(r), req.Indexes, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"resubmitted": n})
}

// recordOp factors the common decode-index, decode-actor, call, respond path.
func (hi *HandlerImport) recordOp(w http.ResponseWriter, r *http.Request, op func(string, int, actorRequest) (any, error)) {
	idx, err := pathRecordIndex(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "record index must be an integer"})
		return
	}
	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	out, err := op(pathBatchID(r), idx, req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

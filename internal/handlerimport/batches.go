package handlerimport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chartflow/import-server/internal/batch"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/version"
)

type createBatchRequest struct {
	OrgID             string               `json:"org_id"`
	FacilityID        *int                 `json:"facility_id,omitempty"`
	SourceKind        models.SourceKind    `json:"source_kind"`
	SourceRefs        map[string]string    `json:"source_refs,omitempty"`
	DataFormat        models.DataFormat    `json:"data_format"`
	FormatOptions     models.FormatOptions `json:"format_options,omitempty"`
	RequiresDataEntry bool                 `json:"requires_data_entry"`
	TemplateID        string               `json:"template_id,omitempty"`
	DownstreamFlowID  string               `json:"downstream_flow_id"`
	ReceivedAt        time.Time            `json:"received_at,omitempty"`
	// Raw carries the source bytes base64-encoded, per encoding/json []byte.
	Raw             []byte `json:"raw"`
	DeferGeneration bool   `json:"defer_generation,omitempty"`
	Actor           string `json:"actor,omitempty"`
}

func (hi *HandlerImport) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	if req.DataFormat == models.FormatDelimited && req.FormatOptions.IsZero() {
		if opts, ok := hi.Defaults.For(req.OrgID); ok {
			req.FormatOptions = opts
		}
	}

	b, err := hi.Batches.Create(r.Context(), batch.CreateInput{
		OrgID:             req.OrgID,
		FacilityID:        req.FacilityID,
		SourceKind:        req.SourceKind,
		SourceRefs:        req.SourceRefs,
		DataFormat:        req.DataFormat,
		FormatOptions:     req.FormatOptions,
		RequiresDataEntry: req.RequiresDataEntry,
		TemplateID:        req.TemplateID,
		DownstreamFlowID:  req.DownstreamFlowID,
		ReceivedAt:        req.ReceivedAt,
		Raw:               req.Raw,
		DeferGeneration:   req.DeferGeneration,
		Actor:             req.Actor,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (hi *HandlerImport) listBatches(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "org_id query parameter is required"})
		return
	}
	batches, err := hi.Batches.Meta.ListBatches(r.Context(), orgID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (hi *HandlerImport) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := hi.Batches.Meta.GetBatch(r.Context(), pathBatchID(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) generateBatch(w http.ResponseWriter, r *http.Request) {
	produced, err := hi.Batches.Generate(r.Context(), pathBatchID(r))
	if errors.Is(err, batch.ErrNotEligible) {
		// expected no-op: another worker holds the lock or nothing to do
		respondJSON(w, http.StatusOK, map[string]any{"generated": 0, "eligible": false})
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"generated": produced, "eligible": true})
}

type assigneeRequest struct {
	Assignee         string `json:"assignee"`
	OnlyIfUnassigned bool   `json:"only_if_unassigned,omitempty"`
}

func (hi *HandlerImport) openBatch(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.OpenForProcessing(r.Context(), pathBatchID(r), req.Assignee)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) assignBatch(w http.ResponseWriter, r *http.Request) {
	var req assigneeRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.AssignBatch(r.Context(), pathBatchID(r), req.Assignee, req.OnlyIfUnassigned)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) grabBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrgID    string `json:"org_id"`
		Assignee string `json:"assignee"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.GrabNextBatch(r.Context(), req.OrgID, req.Assignee)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) discardBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.DiscardBatch(r.Context(), pathBatchID(r), req.Reason, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) setFacility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FacilityID int    `json:"facility_id"`
		Actor      string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.SetFacility(r.Context(), pathBatchID(r), req.FacilityID, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) setTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		Actor      string `json:"actor,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	b, err := hi.Batches.SetTemplate(r.Context(), pathBatchID(r), req.TemplateID, req.Actor)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (hi *HandlerImport) version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &version.Response{
		Repo:             version.GitRepo,
		LatestReleaseTag: version.LatestReleaseTag,
		GitShortSha:      version.GitShortSha,
	})
}

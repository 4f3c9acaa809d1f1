package handlerimport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/chartflow/import-server/internal/appconfig"
	"github.com/chartflow/import-server/internal/batch"
	"github.com/chartflow/import-server/internal/health"
	"github.com/chartflow/import-server/internal/metastore"
	"github.com/chartflow/import-server/internal/middleware"
	"github.com/chartflow/import-server/internal/models"
	"github.com/chartflow/import-server/internal/record"
	"github.com/chartflow/import-server/pkg/sloger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
) // .import

var logger *slog.Logger

func init() {
	type Empty struct{}
	pkgParts := strings.Split(reflect.TypeOf(Empty{}).PkgPath(), "/")
	// add package name to app logger
	logger = sloger.With("pkg", pkgParts[len(pkgParts)-1])
}

// HandlerImport is the import server's http surface. It owns routing and
// request/response shaping only; all state rules live in the managers.
type HandlerImport struct {
	appConfig appconfig.AppConfig
	Batches   *batch.Manager
	Records   *record.Manager
	Auth      *middleware.AuthMiddleware
	Defaults  *appconfig.FormatDefaults
} // .HandlerImport

// New returns an import server handler that can handle http requests
func New(appConfig appconfig.AppConfig, batches *batch.Manager, records *record.Manager, auth *middleware.AuthMiddleware, defaults *appconfig.FormatDefaults) *HandlerImport {
	logger.Info("started import handler")
	return &HandlerImport{
		appConfig: appConfig,
		Batches:   batches,
		Records:   records,
		Auth:      auth,
		Defaults:  defaults,
	} // .&HandlerImport
} // .New

// Router builds the route table. Info, health, version and metrics stay open;
// everything under /batches goes through token verification.
func (hi *HandlerImport) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/", appconfig.Handler()).Methods(http.MethodGet)
	r.Handle("/health", health.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/version", hi.version).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/batches").Subrouter()
	api.Use(hi.Auth.VerifyTokenMiddleware)

	api.HandleFunc("", hi.createBatch).Methods(http.MethodPost)
	api.HandleFunc("", hi.listBatches).Methods(http.MethodGet)
	api.HandleFunc("/grab", hi.grabBatch).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}", hi.getBatch).Methods(http.MethodGet)
	api.HandleFunc("/{batchId}/generate", hi.generateBatch).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}/open", hi.openBatch).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}/assign", hi.assignBatch).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}/discard", hi.discardBatch).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}/facility", hi.setFacility).Methods(http.MethodPut)
	api.HandleFunc("/{batchId}/template", hi.setTemplate).Methods(http.MethodPut)
	api.HandleFunc("/{batchId}/records", hi.listRecords).Methods(http.MethodGet)
	api.HandleFunc("/{batchId}/records/merge", hi.mergeRecords).Methods(http.MethodPost)
	api.HandleFunc("/{batchId}/records/resubmit", hi.resubmitAll).Methods(http.MethodPost)

	rec := api.PathPrefix("/{batchId}/records/{recordIndex:[0-9]+}").Subrouter()
	rec.HandleFunc("", hi.getRecord).Methods(http.MethodGet)
	rec.HandleFunc("/entry", hi.saveDataEntry).Methods(http.MethodPut)
	rec.HandleFunc("/entry", hi.getDataEntry).Methods(http.MethodGet)
	rec.HandleFunc("/image", hi.pageImage).Methods(http.MethodGet)
	rec.HandleFunc("/submit", hi.markPendingProcessing).Methods(http.MethodPost)
	rec.HandleFunc("/processing/begin", hi.beginProcessing).Methods(http.MethodPost)
	rec.HandleFunc("/processing/complete", hi.completeProcessing).Methods(http.MethodPost)
	rec.HandleFunc("/processing/fail", hi.failProcessing).Methods(http.MethodPost)
	rec.HandleFunc("/resubmit", hi.resubmitRecord).Methods(http.MethodPost)
	rec.HandleFunc("/discard", hi.discardRecord).Methods(http.MethodPost)
	rec.HandleFunc("/undiscard", hi.undiscardRecord).Methods(http.MethodPost)
	rec.HandleFunc("/ignore", hi.ignoreRecord).Methods(http.MethodPost)
	rec.HandleFunc("/unignore", hi.unignoreRecord).Methods(http.MethodPost)
	rec.HandleFunc("/notes", hi.addNote).Methods(http.MethodPost)
	rec.HandleFunc("/touch", hi.touchRecord).Methods(http.MethodPost)
	rec.HandleFunc("/rotation", hi.setRotation).Methods(http.MethodPut)

	return r
} // .Router

func pathBatchID(r *http.Request) string {
	return mux.Vars(r)["batchId"]
}

func pathRecordIndex(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["recordIndex"])
}

// decodeBody parses a json request body; an empty body leaves v zeroed.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Error("error writing json response", "error", err)
		}
	}
}

// respondErr maps domain errors onto http statuses. Conflicts surface as 409
// with the current entity unchanged server-side.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, batch.ErrReasonRequired):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, metastore.ErrNotFound), errors.Is(err, batch.ErrNoBatchAvailable):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, metastore.ErrStateConflict), errors.Is(err, metastore.ErrExists):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error("unhandled error serving request", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	} // .switch
} // .respondErr

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/holden-dev/photolibbackend/workers"
)

// ImportHandler exposes the admin endpoints that trigger and observe
// background jobs. All triggers are fire-and-forget; progress is polled via
// the status endpoints.
type ImportHandler struct {
	jobs *workers.JobManager
}

func NewImportHandler(jobs *workers.JobManager) *ImportHandler {
	return &ImportHandler{jobs: jobs}
}

// StartLocalImport handles POST /api/admin/import/local
func (h *ImportHandler) StartLocalImport(w http.ResponseWriter, r *http.Request) {
	h.startJob(w, "import", h.jobs.StartLocalImport())
}

// StartWebDAVImport handles POST /api/admin/import/webdav
func (h *ImportHandler) StartWebDAVImport(w http.ResponseWriter, r *http.Request) {
	err := h.jobs.StartWebDAVImport()
	if errors.Is(err, workers.ErrWebDAVDisabled) {
		WriteAPIError(w, http.StatusBadRequest, "webdav_disabled", "WebDAV import is not configured")
		return
	}
	h.startJob(w, "import", err)
}

// ImportStatus handles GET /api/admin/import/status
func (h *ImportHandler) ImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.ImportSnapshot())
}

type regenerateRequest struct {
	MissingOnly *bool `json:"missingOnly"`
}

// StartRegeneration handles POST /api/admin/import/regenerate. The body may
// carry {"missingOnly": bool}; omitted means true.
func (h *ImportHandler) StartRegeneration(w http.ResponseWriter, r *http.Request) {
	missingOnly := true

	body, err := io.ReadAll(r.Body)
	if err == nil && len(body) > 0 {
		var req regenerateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Request body must be JSON")
			return
		}
		if req.MissingOnly != nil {
			missingOnly = *req.MissingOnly
		}
	}

	h.startJob(w, "regeneration", h.jobs.StartRegeneration(missingOnly))
}

// RegenerationStatus handles GET /api/admin/import/regenerate/status
func (h *ImportHandler) RegenerationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.RegenerationSnapshot())
}

// CancelRegeneration handles POST /api/admin/import/regenerate/cancel
func (h *ImportHandler) CancelRegeneration(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Cancel(); err != nil {
		WriteAPIError(w, http.StatusConflict, "not_running", "No job is currently running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// StartReset handles POST /api/admin/import/reset. It clears all derived
// data and rebuilds the library.
func (h *ImportHandler) StartReset(w http.ResponseWriter, r *http.Request) {
	h.startJob(w, "reset", h.jobs.StartReset())
}

func (h *ImportHandler) startJob(w http.ResponseWriter, name string, err error) {
	if err != nil {
		if errors.Is(err, workers.ErrAlreadyRunning) {
			WriteAPIError(w, http.StatusConflict, "job_already_running", "Another import or regeneration job is already running")
			return
		}
		log.Printf("handler: failed to start %s job: %v", name, err)
		WriteAPIError(w, http.StatusInternalServerError, "job_start_failed", "Failed to start "+name+" job")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": name + " started"})
}

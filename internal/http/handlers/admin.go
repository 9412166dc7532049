package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// AdminDoctorsHandler lets operators review and approve doctors.
type AdminDoctorsHandler struct {
	directory *directory.Service
	logger    *logging.Logger
}

func NewAdminDoctorsHandler(dir *directory.Service, logger *logging.Logger) *AdminDoctorsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminDoctorsHandler{directory: dir, logger: logger}
}

// List handles GET /admin/doctors?status=unverified|verified|all.
func (h *AdminDoctorsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := directory.DoctorFilter{}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))) {
	case "", "unverified":
		filter.UnverifiedOnly = true
	case "verified":
	case "all":
		filter.IncludeUnverified = true
	default:
		writeError(w, r, h.logger, apperr.E(apperr.KindInvalidInput, "status must be unverified, verified or all"))
		return
	}
	doctors, err := h.directory.ListDoctors(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if doctors == nil {
		doctors = []*directory.Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

// Approve handles POST /admin/doctors/{id}/approve.
func (h *AdminDoctorsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	doc, err := h.directory.ApproveDoctor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("doctor approved via admin api", "doctor_id", doc.ID)
	writeJSON(w, http.StatusOK, doc)
}

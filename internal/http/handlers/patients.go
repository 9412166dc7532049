package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/queries"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// PatientsHandler serves patient registration and appointment views.
type PatientsHandler struct {
	directory *directory.Service
	queries   *queries.Service
	logger    *logging.Logger
}

func NewPatientsHandler(dir *directory.Service, q *queries.Service, logger *logging.Logger) *PatientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{directory: dir, queries: q, logger: logger}
}

// Register handles POST /patients.
func (h *PatientsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var profile directory.PatientProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	patient, err := h.directory.RegisterPatient(r.Context(), profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

// Appointments handles GET /patients/{id}/appointments?view=upcoming|history.
func (h *PatientsHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !caller.IsPatient() || caller.ID != id {
		writeError(w, r, h.logger, apperr.E(apperr.KindForbidden, "patients can only view their own appointments"))
		return
	}

	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	var err error
	var result any
	switch view {
	case "", "upcoming":
		view = "upcoming"
		appts, qerr := h.queries.UpcomingForPatient(r.Context(), id)
		result, err = nonNil(appts), qerr
	case "history":
		appts, qerr := h.queries.HistoryForPatient(r.Context(), id)
		result, err = nonNil(appts), qerr
	default:
		err = apperr.E(apperr.KindInvalidInput, "view must be upcoming or history")
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": view, "appointments": result})
}

// UpdateProfile handles PUT /patients/{id}.
func (h *PatientsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	var profile directory.PatientProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	patient, err := h.directory.UpdatePatientProfile(r.Context(), chi.URLParam(r, "id"), caller.ID, profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

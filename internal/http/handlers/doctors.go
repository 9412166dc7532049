package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/queries"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// DoctorsHandler serves doctor registration, discovery and dashboards.
type DoctorsHandler struct {
	directory *directory.Service
	queries   *queries.Service
	logger    *logging.Logger
}

func NewDoctorsHandler(dir *directory.Service, q *queries.Service, logger *logging.Logger) *DoctorsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorsHandler{directory: dir, queries: q, logger: logger}
}

// Register handles POST /doctors. New doctors await admin approval.
func (h *DoctorsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req directory.RegisterDoctorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.directory.RegisterDoctor(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// List handles GET /doctors?q=&specialization=. Only verified doctors are listed.
func (h *DoctorsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctors, err := h.directory.ListDoctors(r.Context(), directory.DoctorFilter{
		Query:          strings.TrimSpace(q.Get("q")),
		Specialization: strings.TrimSpace(q.Get("specialization")),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if doctors == nil {
		doctors = []*directory.Doctor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

// Get handles GET /doctors/{id}.
func (h *DoctorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.directory.GetDoctor(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !doc.Verified {
		err = apperr.E(apperr.KindNotFound, "doctor %s not found", doc.ID)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Slots handles GET /doctors/{id}/slots?date=YYYY-MM-DD.
func (h *DoctorsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	date, err := calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, h.logger, apperr.E(apperr.KindInvalidInput, "date must be YYYY-MM-DD"))
		return
	}
	open, err := h.queries.OpenSlots(r.Context(), id, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if open == nil {
		open = []calendar.Clock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctor_id": id, "date": date.String(), "slots": open})
}

// Appointments handles GET /doctors/{id}/appointments?status=.
func (h *DoctorsHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}
	status := appointments.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		writeError(w, r, h.logger, apperr.E(apperr.KindInvalidInput, "unknown status %q", status))
		return
	}
	queue, err := h.queries.QueueForDoctor(r.Context(), id, status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": nonNil(queue)})
}

// Stats handles GET /doctors/{id}/stats.
func (h *DoctorsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r)
	if !ok {
		return
	}
	stats, err := h.queries.DoctorStats(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type availabilityRequest struct {
	Availability []directory.WeeklyWindow `json:"availability"`
}

// UpdateAvailability handles PUT /doctors/{id}/availability.
func (h *DoctorsHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.directory.UpdateAvailability(r.Context(), chi.URLParam(r, "id"), caller.ID, req.Availability)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type feeRequest struct {
	ConsultationFee int64 `json:"consultation_fee"`
}

// UpdateFee handles PUT /doctors/{id}/fee. Booked appointments keep
// the fee they were booked at.
func (h *DoctorsHandler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req feeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	doc, err := h.directory.UpdateConsultationFee(r.Context(), chi.URLParam(r, "id"), caller.ID, req.ConsultationFee)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// self checks that the caller is the doctor named in the path.
func (h *DoctorsHandler) self(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := requireActor(w, r)
	if !ok {
		return "", false
	}
	id := chi.URLParam(r, "id")
	if !caller.IsDoctor() || caller.ID != id {
		writeError(w, r, h.logger, apperr.E(apperr.KindForbidden, "doctors can only view their own schedule"))
		return "", false
	}
	return id, true
}

func nonNil(appts []*appointments.Appointment) []*appointments.Appointment {
	if appts == nil {
		return []*appointments.Appointment{}
	}
	return appts
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/ayurwell-scheduler/internal/actor"
	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/audit"
	"github.com/wolfman30/ayurwell-scheduler/internal/booking"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/lifecycle"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// AppointmentsHandler serves booking and lifecycle endpoints.
type AppointmentsHandler struct {
	booking   *booking.Service
	lifecycle *lifecycle.Manager
	store     appointments.Store
	trail     audit.Trail
	logger    *logging.Logger
}

func NewAppointmentsHandler(b *booking.Service, l *lifecycle.Manager, store appointments.Store, trail audit.Trail, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{booking: b, lifecycle: l, store: store, trail: trail, logger: logger}
}

// BookRequest is the body of POST /appointments. The patient is the caller.
type BookRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Type     string `json:"type"`
	Symptoms string `json:"symptoms"`
	Notes    string `json:"notes"`
}

func (req BookRequest) toBooking(patientID string) (booking.Request, error) {
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		return booking.Request{}, apperr.E(apperr.KindInvalidInput, "date must be YYYY-MM-DD")
	}
	at, err := calendar.ParseClock(req.Time)
	if err != nil {
		return booking.Request{}, apperr.E(apperr.KindInvalidInput, "time must be HH:MM")
	}
	return booking.Request{
		PatientID: patientID,
		DoctorID:  strings.TrimSpace(req.DoctorID),
		Date:      date,
		Time:      at,
		Type:      appointments.Type(strings.ToLower(strings.TrimSpace(req.Type))),
		Symptoms:  req.Symptoms,
		Notes:     req.Notes,
	}, nil
}

// Book handles POST /appointments.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !caller.IsPatient() {
		writeError(w, r, h.logger, apperr.E(apperr.KindForbidden, "only patients can book appointments"))
		return
	}
	var body BookRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req, err := body.toBooking(caller.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.booking.BookAppointment(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Get handles GET /appointments/{id}. Only the two parties may read it.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadForParty(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// History handles GET /appointments/{id}/history.
func (h *AppointmentsHandler) History(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.loadForParty(w, r)
	if !ok {
		return
	}
	entries := []audit.Entry{}
	if h.trail != nil {
		recorded, err := h.trail.History(r.Context(), appt.ID)
		if err != nil {
			writeError(w, r, h.logger, apperr.Wrap(apperr.KindUnavailable, err, "audit trail unavailable"))
			return
		}
		entries = append(entries, recorded...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": appt.ID, "entries": entries})
}

func (h *AppointmentsHandler) loadForParty(w http.ResponseWriter, r *http.Request) (*appointments.Appointment, bool) {
	caller, ok := requireActor(w, r)
	if !ok {
		return nil, false
	}
	appt, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if caller.ID != appt.PatientID && caller.ID != appt.DoctorID {
		writeError(w, r, h.logger, apperr.E(apperr.KindForbidden, "appointment %s belongs to someone else", appt.ID))
		return nil, false
	}
	return appt, true
}

// TransitionRequest carries the optional fields of lifecycle calls.
type TransitionRequest struct {
	Reason       string  `json:"reason"`
	Prescription *string `json:"prescription"`
}

func (h *AppointmentsHandler) transitionBody(w http.ResponseWriter, r *http.Request) (TransitionRequest, bool) {
	var body TransitionRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return body, false
	}
	return body, true
}

func (h *AppointmentsHandler) respondTransition(w http.ResponseWriter, r *http.Request, appt *appointments.Appointment, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Confirm handles POST /appointments/{id}/confirm.
func (h *AppointmentsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	appt, err := h.lifecycle.Confirm(r.Context(), chi.URLParam(r, "id"), doctorActor(caller))
	h.respondTransition(w, r, appt, err)
}

// Decline handles POST /appointments/{id}/decline.
func (h *AppointmentsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	body, ok := h.transitionBody(w, r)
	if !ok {
		return
	}
	appt, err := h.lifecycle.Decline(r.Context(), chi.URLParam(r, "id"), doctorActor(caller), body.Reason)
	h.respondTransition(w, r, appt, err)
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	body, ok := h.transitionBody(w, r)
	if !ok {
		return
	}
	appt, err := h.lifecycle.Cancel(r.Context(), chi.URLParam(r, "id"), caller.ID, body.Reason)
	h.respondTransition(w, r, appt, err)
}

// Complete handles POST /appointments/{id}/complete.
func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireActor(w, r)
	if !ok {
		return
	}
	body, ok := h.transitionBody(w, r)
	if !ok {
		return
	}
	appt, err := h.lifecycle.Complete(r.Context(), chi.URLParam(r, "id"), doctorActor(caller), body.Prescription)
	h.respondTransition(w, r, appt, err)
}

// doctorActor passes the caller id through only when the caller is a
// doctor, so a patient id can never satisfy a doctor-only check.
func doctorActor(a actor.Actor) string {
	if a.IsDoctor() {
		return a.ID
	}
	return ""
}

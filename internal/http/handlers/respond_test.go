package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindNotFound:            http.StatusNotFound,
		apperr.KindForbidden:           http.StatusForbidden,
		apperr.KindSlotConflict:        http.StatusConflict,
		apperr.KindInvalidTransition:   http.StatusConflict,
		apperr.KindInvalidInput:        http.StatusBadRequest,
		apperr.KindDoctorUnverified:    http.StatusUnprocessableEntity,
		apperr.KindInvalidDate:         http.StatusUnprocessableEntity,
		apperr.KindOutsideAvailability: http.StatusUnprocessableEntity,
		apperr.KindInvalidSlot:         http.StatusUnprocessableEntity,
		apperr.KindLimitExceeded:       http.StatusTooManyRequests,
		apperr.KindUnavailable:         http.StatusServiceUnavailable,
		apperr.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	writeError(rec, req, logging.Default(), errors.New("pq: password authentication failed"))

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusInternalServerError || body.Error != "internal" || body.Message != "internal error" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestWriteErrorClassified(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/appointments", nil)
	rec := httptest.NewRecorder()
	writeError(rec, req, logging.Default(), apperr.E(apperr.KindSlotConflict, "slot 10:00 is taken"))

	var body ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusConflict || body.Error != "slot_conflict" || body.Message != "slot 10:00 is taken" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

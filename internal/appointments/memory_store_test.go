package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
)

var slotDate = civil.Date{Year: 2026, Month: time.October, Day: 26}

func newAppointment(patientID string, at string) *Appointment {
	return &Appointment{
		PatientID:       patientID,
		DoctorID:        "dr-a",
		Date:            slotDate,
		Time:            calendar.MustClock(at),
		Type:            TypeVideo,
		ConsultationFee: 800,
	}
}

func TestStatusTransitions(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
	}
	all := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != legal[[2]Status{from, to}] {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, legal[[2]Status{from, to}], got)
			}
		}
	}
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() || StatusConfirmed.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, newAppointment("p-1", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != StatusPending || created.Version != 1 {
		t.Fatalf("unexpected created appointment %+v", created)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Time != calendar.MustClock("10:00") || got.ConsultationFee != 800 {
		t.Fatalf("unexpected stored appointment %+v", got)
	}

	got.ConsultationFee = 1
	again, _ := store.Get(ctx, created.ID)
	if again.ConsultationFee != 800 {
		t.Fatalf("store leaked internal state")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreSlotConflictAndRelease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Create(ctx, newAppointment("p-1", "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, newAppointment("p-2", "10:00")); !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	if _, err := store.Create(ctx, newAppointment("p-2", "11:00")); err != nil {
		t.Fatalf("different slot should book: %v", err)
	}

	if _, err := store.Update(ctx, first.ID, StatusPending, func(a *Appointment) error {
		a.Status = StatusCancelled
		return nil
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := store.Create(ctx, newAppointment("p-2", "10:00")); err != nil {
		t.Fatalf("slot should be bookable after cancellation: %v", err)
	}
}

func TestMemoryStoreConcurrentCreateOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const attempts = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := store.Create(ctx, newAppointment(fmt.Sprintf("p-%d", i), "14:00"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, apperr.ErrSlotConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 || conflicts.Load() != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", successes.Load(), conflicts.Load())
	}
}

func TestMemoryStoreOptimisticUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, _ := store.Create(ctx, newAppointment("p-1", "10:00"))

	confirm := func(x *Appointment) error { x.Status = StatusConfirmed; return nil }
	cancel := func(x *Appointment) error { x.Status = StatusCancelled; return nil }

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, mut := range []func(*Appointment) error{confirm, cancel} {
		wg.Add(1)
		go func(i int, mut func(*Appointment) error) {
			defer wg.Done()
			_, results[i] = store.Update(ctx, a.ID, StatusPending, mut)
		}(i, mut)
	}
	wg.Wait()

	failures := 0
	for _, err := range results {
		if err != nil {
			if !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Fatalf("expected invalid transition for the loser, got %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one loser, got %d", failures)
	}
	final, _ := store.Get(ctx, a.ID)
	if final.Version != 2 {
		t.Fatalf("expected one applied mutation, version %d", final.Version)
	}
}

func TestMemoryStoreRejectsIllegalMutations(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, _ := store.Create(ctx, newAppointment("p-1", "10:00"))

	if _, err := store.Update(ctx, a.ID, StatusPending, func(x *Appointment) error {
		x.Status = StatusCompleted
		return nil
	}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("pending -> completed must fail, got %v", err)
	}

	if _, err := store.Update(ctx, a.ID, StatusPending, func(x *Appointment) error {
		x.ConsultationFee = 1200
		return nil
	}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("fee change must be rejected as a transition error, got %v", err)
	}

	if _, err := store.Update(ctx, a.ID, StatusPending, func(x *Appointment) error {
		x.Status = StatusConfirmed
		x.Time = calendar.MustClock("11:00")
		return nil
	}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("slot change must be rejected as a transition error, got %v", err)
	}

	rx := "Triphala at night"
	if _, err := store.Update(ctx, a.ID, StatusPending, func(x *Appointment) error {
		x.Status = StatusConfirmed
		x.Prescription = &rx
		return nil
	}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("prescription outside completion must fail, got %v", err)
	}

	unchanged, _ := store.Get(ctx, a.ID)
	if unchanged.Status != StatusPending || unchanged.Version != 1 {
		t.Fatalf("rejected mutations must not apply: %+v", unchanged)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i, at := range []string{"09:00", "10:00", "11:00"} {
		a := newAppointment(fmt.Sprintf("p-%d", i%2), at)
		if _, err := store.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := newAppointment("p-0", "09:00")
	other.Date = slotDate.AddDays(7)
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	byPatient, err := Collect(store.Query(ctx, Filter{PatientID: "p-0"}))
	if err != nil || len(byPatient) != 3 {
		t.Fatalf("expected 3 for p-0, got %d %v", len(byPatient), err)
	}
	ranged, _ := Collect(store.Query(ctx, Filter{DoctorID: "dr-a", From: slotDate, To: slotDate}))
	if len(ranged) != 3 {
		t.Fatalf("expected 3 on %s, got %d", slotDate, len(ranged))
	}
	matched, _ := Collect(store.Query(ctx, Filter{Match: func(a *Appointment) bool { return a.Time == calendar.MustClock("11:00") }}))
	if len(matched) != 1 {
		t.Fatalf("expected predicate to select one, got %d", len(matched))
	}

	seen := 0
	for range store.Query(ctx, Filter{}) {
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected early stop to be honoured")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Collect(store.Query(cancelled, Filter{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

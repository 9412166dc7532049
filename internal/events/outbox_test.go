package events

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewOutboxStore(mock)
	evt := NewAppointmentEvent(AppointmentBooked, "p-1", sampleAppointment(), time.Now())

	mock.ExpectExec("INSERT INTO outbox").WithArgs(evt.EventID, "appointment.booked.v1", "appt-1", pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Notify(context.Background(), evt); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "event_type", "appointment_id", "payload", "created_at"}).
		AddRow(evt.EventID, "appointment.booked.v1", "appt-1", []byte(`{"event_id":"x"}`), now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != evt.EventID || entries[0].Type != AppointmentBooked {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec(`UPDATE outbox SET delivered_at = now\(\) WHERE id = \$1::uuid`).WithArgs(evt.EventID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), evt.EventID)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type fakeOutbox struct {
	pending   []OutboxEntry
	delivered []string
}

func (f *fakeOutbox) FetchPending(context.Context, int32) ([]OutboxEntry, error) {
	return f.pending, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, id string) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

type flakyHandler struct{ failID string }

func (h flakyHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if entry.ID == h.failID {
		return errors.New("sqs throttled")
	}
	return nil
}

func TestDelivererLeavesFailedEntriesPending(t *testing.T) {
	outbox := &fakeOutbox{pending: []OutboxEntry{{ID: "e-1"}, {ID: "e-2"}, {ID: "e-3"}}}
	d := newDeliverer(outbox, flakyHandler{failID: "e-2"}, nil)

	if got := d.drain(context.Background()); got != 2 {
		t.Fatalf("expected 2 delivered, got %d", got)
	}
	if len(outbox.delivered) != 2 || outbox.delivered[0] != "e-1" || outbox.delivered[1] != "e-3" {
		t.Fatalf("unexpected delivered set %v", outbox.delivered)
	}
}

func TestQueueRelayForwardsPayload(t *testing.T) {
	q := NewMemoryQueue(1)
	relay := NewQueueRelay(q)
	if err := relay.Handle(context.Background(), OutboxEntry{ID: "e-1", Payload: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("relay: %v", err)
	}
	msgs, err := q.Receive(context.Background(), 1, 1)
	if err != nil || len(msgs) != 1 || msgs[0].Body != `{"a":1}` {
		t.Fatalf("unexpected relay result %v %v", msgs, err)
	}
}

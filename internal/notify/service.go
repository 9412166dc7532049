package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

// Directory resolves contact details for the parties of an appointment.
type Directory interface {
	GetPatient(ctx context.Context, id string) (*directory.Patient, error)
	GetDoctor(ctx context.Context, id string) (*directory.Doctor, error)
}

// Service emails patients and doctors about appointment events.
type Service struct {
	email     EmailSender
	directory Directory
	logger    *logging.Logger
}

func NewService(email EmailSender, dir Directory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{email: email, directory: dir, logger: logger}
}

// HandleEvent sends every email the event calls for. Recipients without
// an address are skipped; the first send failure is returned after all
// recipients were attempted.
func (s *Service) HandleEvent(ctx context.Context, evt events.AppointmentEvent) error {
	if evt.Appointment == nil {
		return fmt.Errorf("notify: event %s has no appointment", evt.EventID)
	}
	var errs []error
	for _, who := range audience(evt) {
		toEmail, toName, err := s.contact(ctx, evt, who)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if toEmail == "" {
			s.logger.Debug("notify: recipient has no email, skipping", "event_id", evt.EventID, "type", evt.Type)
			continue
		}
		msg, ok := buildEmail(evt, who, toEmail, toName)
		if !ok {
			continue
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: email send failed", "error", err, "event_id", evt.EventID, "to", toEmail)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) contact(ctx context.Context, evt events.AppointmentEvent, who recipient) (string, string, error) {
	a := evt.Appointment
	if s.directory == nil {
		return "", "", nil
	}
	switch who {
	case toDoctor:
		doc, err := s.directory.GetDoctor(ctx, a.DoctorID)
		if err != nil {
			return "", "", fmt.Errorf("notify: lookup doctor %s: %w", a.DoctorID, err)
		}
		return doc.Email, doc.Name, nil
	default:
		p, err := s.directory.GetPatient(ctx, a.PatientID)
		if err != nil {
			return "", "", fmt.Errorf("notify: lookup patient %s: %w", a.PatientID, err)
		}
		return p.Email, p.Name, nil
	}
}

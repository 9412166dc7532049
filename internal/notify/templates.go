package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/ayurwell-scheduler/internal/appointments"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
)

// recipient says who an email is addressed to.
type recipient int

const (
	toPatient recipient = iota
	toDoctor
)

// audience lists who hears about an event. Cancellations go to the party
// that did not cancel.
func audience(evt events.AppointmentEvent) []recipient {
	appt := evt.Appointment
	switch evt.Type {
	case events.AppointmentBooked:
		return []recipient{toPatient, toDoctor}
	case events.AppointmentConfirmed, events.AppointmentCompleted:
		return []recipient{toPatient}
	case events.AppointmentCancelled:
		switch evt.ActorID {
		case appt.PatientID:
			return []recipient{toDoctor}
		case appt.DoctorID:
			return []recipient{toPatient}
		}
		return []recipient{toPatient, toDoctor}
	}
	return nil
}

func describeSlot(a *appointments.Appointment) string {
	return fmt.Sprintf("%s, %s at %s", calendar.Weekday(a.Date), a.Date.String(), a.Time.String())
}

// render builds the subject and bodies for one recipient.
func render(evt events.AppointmentEvent, who recipient) (subject string, lines []string) {
	a := evt.Appointment
	slot := describeSlot(a)
	switch evt.Type {
	case events.AppointmentBooked:
		if who == toDoctor {
			subject = "New appointment request from " + a.PatientName
			lines = []string{
				fmt.Sprintf("%s has requested a %s consultation on %s.", a.PatientName, a.Type, slot),
				"Please confirm or decline it from your dashboard.",
			}
			if a.Symptoms != "" {
				lines = append(lines, "Symptoms: "+a.Symptoms)
			}
			return subject, lines
		}
		return "Appointment request received", []string{
			fmt.Sprintf("Your %s consultation with %s on %s has been requested.", a.Type, a.DoctorName, slot),
			fmt.Sprintf("Consultation fee: ₹%d", a.ConsultationFee),
			"You will hear from us once the doctor confirms.",
		}
	case events.AppointmentConfirmed:
		return "Your appointment is confirmed", []string{
			fmt.Sprintf("%s has confirmed your %s consultation on %s.", a.DoctorName, a.Type, slot),
		}
	case events.AppointmentCancelled:
		lines = []string{fmt.Sprintf("The %s consultation on %s has been cancelled.", a.Type, slot)}
		if a.CancellationReason != "" {
			lines = append(lines, "Reason: "+a.CancellationReason)
		}
		if who == toDoctor {
			return "Appointment cancelled by " + a.PatientName, lines
		}
		return "Your appointment with " + a.DoctorName + " was cancelled", lines
	case events.AppointmentCompleted:
		lines = []string{fmt.Sprintf("Your consultation with %s on %s is complete.", a.DoctorName, slot)}
		if a.Prescription != nil {
			lines = append(lines, "Prescription: "+*a.Prescription)
		}
		return "Consultation summary", lines
	}
	return "", nil
}

// buildEmail renders the message for one recipient.
func buildEmail(evt events.AppointmentEvent, who recipient, toEmail, toName string) (EmailMessage, bool) {
	subject, lines := render(evt, who)
	if subject == "" {
		return EmailMessage{}, false
	}
	greeting := "Namaste " + firstNonEmpty(toName, "there") + ","
	text := greeting + "\n\n" + strings.Join(lines, "\n") + "\n\nAyurwell"

	var b strings.Builder
	b.WriteString("<p>" + html.EscapeString(greeting) + "</p>")
	for _, line := range lines {
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	b.WriteString("<p>Ayurwell</p>")

	return EmailMessage{To: toEmail, ToName: toName, Subject: subject, Body: text, HTML: b.String()}, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

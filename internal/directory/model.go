package directory

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/ayurwell-scheduler/internal/apperr"
	"github.com/wolfman30/ayurwell-scheduler/internal/calendar"
)

// Role discriminates the User variant.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RolePatient || r == RoleDoctor }

// Gender values accepted on patient profiles.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Doctor is a practitioner patients can book with.
type Doctor struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone,omitempty"`
	Specialization  string         `json:"specialization"`
	ExperienceYears int            `json:"experience_years"`
	Qualifications  []string       `json:"qualifications,omitempty"`
	About           string         `json:"about,omitempty"`
	ConsultationFee int64          `json:"consultation_fee"`
	Availability    []WeeklyWindow `json:"availability"`
	Verified        bool           `json:"verified"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Patient is a person booking consultations.
type Patient struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Age            *int      `json:"age,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	MedicalHistory []string  `json:"medical_history,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User is either a patient or a doctor; Role says which pointer is set.
type User struct {
	Role    Role     `json:"role"`
	Patient *Patient `json:"patient,omitempty"`
	Doctor  *Doctor  `json:"doctor,omitempty"`
}

// ID returns the identifier of whichever record the user wraps.
func (u User) ID() string {
	switch u.Role {
	case RolePatient:
		if u.Patient != nil {
			return u.Patient.ID
		}
	case RoleDoctor:
		if u.Doctor != nil {
			return u.Doctor.ID
		}
	}
	return ""
}

// Name returns the display name.
func (u User) Name() string {
	switch u.Role {
	case RolePatient:
		if u.Patient != nil {
			return u.Patient.Name
		}
	case RoleDoctor:
		if u.Doctor != nil {
			return u.Doctor.Name
		}
	}
	return ""
}

// Email returns the contact address.
func (u User) Email() string {
	switch u.Role {
	case RolePatient:
		if u.Patient != nil {
			return u.Patient.Email
		}
	case RoleDoctor:
		if u.Doctor != nil {
			return u.Doctor.Email
		}
	}
	return ""
}

// Weekday is time.Weekday with lowercase English text encoding.
type Weekday time.Weekday

func (d Weekday) String() string { return strings.ToLower(time.Weekday(d).String()) }

func (d Weekday) MarshalText() ([]byte, error) {
	if d < 0 || d > 6 {
		return nil, fmt.Errorf("directory: weekday %d out of range", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			*d = Weekday(wd)
			return nil
		}
	}
	return fmt.Errorf("directory: unknown weekday %q", string(b))
}

// WeeklyWindow is a recurring block of bookable time, [Start, End).
type WeeklyWindow struct {
	Day   Weekday        `json:"day"`
	Start calendar.Clock `json:"start"`
	End   calendar.Clock `json:"end"`
}

// Contains reports whether a slot start falls inside the window on its weekday.
func (w WeeklyWindow) Contains(day time.Weekday, t calendar.Clock) bool {
	return time.Weekday(w.Day) == day && w.Start <= t && t < w.End
}

// ValidateAvailability checks bounds and that windows on the same weekday
// do not overlap.
func ValidateAvailability(windows []WeeklyWindow) error {
	sorted := make([]WeeklyWindow, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day < sorted[j].Day
		}
		return sorted[i].Start < sorted[j].Start
	})
	for i, w := range sorted {
		if w.Day < 0 || w.Day > 6 {
			return apperr.E(apperr.KindInvalidInput, "availability: weekday %d out of range", int(w.Day))
		}
		if !w.Start.Valid() || !w.End.Valid() {
			return apperr.E(apperr.KindInvalidInput, "availability: %s window has an invalid bound", w.Day)
		}
		if w.Start >= w.End {
			return apperr.E(apperr.KindInvalidInput, "availability: %s window %s-%s must start before it ends", w.Day, w.Start, w.End)
		}
		if i > 0 && sorted[i-1].Day == w.Day && sorted[i-1].End > w.Start {
			return apperr.E(apperr.KindInvalidInput, "availability: %s windows %s-%s and %s-%s overlap",
				w.Day, sorted[i-1].Start, sorted[i-1].End, w.Start, w.End)
		}
	}
	return nil
}

// RegisterDoctorRequest carries the fields a doctor supplies at sign-up.
type RegisterDoctorRequest struct {
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Specialization  string         `json:"specialization"`
	ExperienceYears int            `json:"experience_years"`
	Qualifications  []string       `json:"qualifications"`
	About           string         `json:"about"`
	ConsultationFee int64          `json:"consultation_fee"`
	Availability    []WeeklyWindow `json:"availability"`
}

// Validate validates the doctor registration request
func (r *RegisterDoctorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.E(apperr.KindInvalidInput, "name is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if strings.TrimSpace(r.Specialization) == "" {
		return apperr.E(apperr.KindInvalidInput, "specialization is required")
	}
	if r.ExperienceYears < 0 {
		return apperr.E(apperr.KindInvalidInput, "experience cannot be negative")
	}
	if r.ConsultationFee <= 0 {
		return apperr.E(apperr.KindInvalidInput, "consultation fee must be positive")
	}
	return ValidateAvailability(r.Availability)
}

// PatientProfile holds the patient fields editable after registration.
type PatientProfile struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Age            *int     `json:"age,omitempty"`
	Gender         string   `json:"gender"`
	MedicalHistory []string `json:"medical_history"`
}

// Validate validates the patient profile
func (p *PatientProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.E(apperr.KindInvalidInput, "name is required")
	}
	if err := validateEmail(p.Email); err != nil {
		return err
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 150) {
		return apperr.E(apperr.KindInvalidInput, "age %d out of range", *p.Age)
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderOther:
	default:
		return apperr.E(apperr.KindInvalidInput, "unknown gender %q", p.Gender)
	}
	return nil
}

func validateEmail(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return apperr.E(apperr.KindInvalidInput, "email is required")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return apperr.E(apperr.KindInvalidInput, "email %q is invalid", addr)
	}
	return nil
}

func cloneDoctor(d *Doctor) *Doctor {
	if d == nil {
		return nil
	}
	out := *d
	out.Qualifications = append([]string(nil), d.Qualifications...)
	out.Availability = append([]WeeklyWindow(nil), d.Availability...)
	return &out
}

func clonePatient(p *Patient) *Patient {
	if p == nil {
		return nil
	}
	out := *p
	if p.Age != nil {
		age := *p.Age
		out.Age = &age
	}
	out.MedicalHistory = append([]string(nil), p.MedicalHistory...)
	return &out
}

package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

const kind = "appointment"

// Status is the lifecycle stage of an appointment.
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
)

// ParseStatus reads a status case-insensitively. Blank input is SCHEDULED.
func ParseStatus(raw string) (Status, error) {
	return lifecycle.Parse("appointment status", raw, StatusScheduled,
		StatusScheduled, StatusCompleted, StatusCancelled, StatusRescheduled)
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ConsultationType is how the patient meets the specialist.
type ConsultationType string

const (
	ConsultationVideo    ConsultationType = "VIDEO"
	ConsultationAudio    ConsultationType = "AUDIO"
	ConsultationInPerson ConsultationType = "IN_PERSON"
)

// ParseConsultationType reads a consultation type case-insensitively. Blank
// input is VIDEO.
func ParseConsultationType(raw string) (ConsultationType, error) {
	return lifecycle.Parse("consultation type", raw, ConsultationVideo,
		ConsultationVideo, ConsultationAudio, ConsultationInPerson)
}

func (t *ConsultationType) UnmarshalText(b []byte) error {
	v, err := ParseConsultationType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// transitions is the checked state machine. COMPLETED and CANCELLED are
// terminal.
var transitions = lifecycle.Table[Status]{
	StatusScheduled:   {StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusRescheduled: {StatusCompleted, StatusRescheduled},
}

// timeSlots are the bookable slots in the order they occur during the day.
var timeSlots = []string{
	"09:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
	"02:00 PM", "03:00 PM", "04:00 PM",
}

// TimeSlots returns the bookable slots in day order.
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// NormalizeTimeSlot maps raw onto a bookable slot. Legacy unpadded values
// such as "2:00 pm" are accepted.
func NormalizeTimeSlot(raw string) (string, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	if t, err := time.Parse("3:04 PM", raw); err == nil {
		raw = t.Format("03:04 PM")
	}
	for _, s := range timeSlots {
		if s == raw {
			return s, true
		}
	}
	return raw, false
}

// SlotIndex is the position of slot in the day, or len(TimeSlots()) when
// slot is not bookable so unknown values sort last.
func SlotIndex(slot string) int {
	if s, ok := NormalizeTimeSlot(slot); ok {
		for i, v := range timeSlots {
			if v == s {
				return i
			}
		}
	}
	return len(timeSlots)
}

// Appointment is a scheduled consultation between a patient and a
// specialist. Appointments are never deleted, only moved through their
// statuses.
type Appointment struct {
	ID               int64            `json:"id" gorm:"primaryKey;autoIncrement"`
	PatientName      string           `json:"patient_name" gorm:"size:100;not null;index"`
	SpecialistName   string           `json:"specialist_name" gorm:"size:100;not null"`
	AppointmentDate  *time.Time       `json:"appointment_date" gorm:"type:date;index"`
	TimeSlot         string           `json:"time_slot" gorm:"size:20"`
	Status           Status           `json:"status" gorm:"size:20;not null;default:SCHEDULED"`
	ConsultationType ConsultationType `json:"consultation_type" gorm:"size:20;not null;default:VIDEO"`
	Notes            string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Appointment) TableName() string { return "appointments" }

// NewAppointment builds an appointment with defaults applied. It never
// fails; required-field checks belong to the caller.
func NewAppointment(patient, specialist string, date *time.Time, slot string, status Status, ctype ConsultationType, notes string) *Appointment {
	a := &Appointment{
		PatientName:      patient,
		SpecialistName:   specialist,
		AppointmentDate:  date,
		TimeSlot:         slot,
		Status:           status,
		ConsultationType: ctype,
		Notes:            notes,
	}
	a.ApplyDefaults()
	return a
}

// ApplyDefaults fills blank enums with their defaults and canonicalises the
// case of recognised values. Unrecognised values are left untouched.
func (a *Appointment) ApplyDefaults() {
	if s, err := ParseStatus(string(a.Status)); err == nil {
		a.Status = s
	}
	if t, err := ParseConsultationType(string(a.ConsultationType)); err == nil {
		a.ConsultationType = t
	}
	if a.AppointmentDate != nil {
		d := dates.Day(*a.AppointmentDate)
		a.AppointmentDate = &d
	}
	if s, ok := NormalizeTimeSlot(a.TimeSlot); ok {
		a.TimeSlot = s
	}
}

func (a *Appointment) IsUpcoming() bool { return a.IsUpcomingAt(dates.Today()) }

// IsUpcomingAt reports whether the appointment falls strictly after today.
func (a *Appointment) IsUpcomingAt(today time.Time) bool {
	return a.AppointmentDate != nil && dates.After(*a.AppointmentDate, today)
}

func (a *Appointment) CanBeCancelled() bool { return a.CanBeCancelledAt(dates.Today()) }

// CanBeCancelledAt reports whether the appointment is SCHEDULED and upcoming.
func (a *Appointment) CanBeCancelledAt(today time.Time) bool {
	return lifecycle.Is(a.Status, StatusScheduled) && a.IsUpcomingAt(today)
}

// CanBeRescheduled reports whether the appointment is SCHEDULED or
// RESCHEDULED.
func (a *Appointment) CanBeRescheduled() bool {
	return lifecycle.Is(a.Status, StatusScheduled) || lifecycle.Is(a.Status, StatusRescheduled)
}

func (a *Appointment) IsCompleted() bool { return lifecycle.Is(a.Status, StatusCompleted) }
func (a *Appointment) IsCancelled() bool { return lifecycle.Is(a.Status, StatusCancelled) }

func (a *Appointment) refuse(to Status) error {
	return &lifecycle.TransitionError{Kind: kind, From: string(a.Status), To: string(to)}
}

// Complete moves a SCHEDULED or RESCHEDULED appointment to COMPLETED.
func (a *Appointment) Complete() error {
	if err := transitions.Check(kind, a.Status, StatusCompleted); err != nil {
		return err
	}
	a.Status = StatusCompleted
	return nil
}

func (a *Appointment) Cancel() error { return a.CancelAt(dates.Today()) }

// CancelAt cancels the appointment when CanBeCancelledAt(today) holds.
func (a *Appointment) CancelAt(today time.Time) error {
	if !a.CanBeCancelledAt(today) {
		return a.refuse(StatusCancelled)
	}
	a.Status = StatusCancelled
	return nil
}

// Reschedule moves the appointment to date and slot and marks it
// RESCHEDULED. The appointment must be reschedulable.
func (a *Appointment) Reschedule(date time.Time, slot string) error {
	if !a.CanBeRescheduled() {
		return a.refuse(StatusRescheduled)
	}
	d := dates.Day(date)
	a.AppointmentDate = &d
	if s, ok := NormalizeTimeSlot(slot); ok {
		slot = s
	}
	a.TimeSlot = slot
	a.Status = StatusRescheduled
	return nil
}

// MarkAsCompleted sets COMPLETED without checking the current status.
func (a *Appointment) MarkAsCompleted() { a.Status = StatusCompleted }

// MarkAsCancelled sets CANCELLED without checking the current status.
func (a *Appointment) MarkAsCancelled() { a.Status = StatusCancelled }

// MarkAsRescheduled sets RESCHEDULED without checking the current status.
func (a *Appointment) MarkAsRescheduled() { a.Status = StatusRescheduled }

// FormattedDate renders the date as dd/MM/yyyy.
func (a *Appointment) FormattedDate() string {
	return dates.Format(a.AppointmentDate, "No date set")
}

func (a *Appointment) Summary() string {
	return fmt.Sprintf("Patient: %s | Specialist: Dr. %s | Date: %s | Time: %s | Status: %s",
		orNA(a.PatientName), orNA(a.SpecialistName), a.FormattedDate(), orNA(a.TimeSlot), a.Status)
}

// String renders the full appointment for display.
func (a *Appointment) String() string {
	var b strings.Builder
	b.WriteString("Appointment Details:\n")
	fmt.Fprintf(&b, "ID: %d\n", a.ID)
	fmt.Fprintf(&b, "Patient: %s\n", orNA(a.PatientName))
	fmt.Fprintf(&b, "Specialist: Dr. %s\n", orNA(a.SpecialistName))
	fmt.Fprintf(&b, "Date: %s\n", dates.Format(a.AppointmentDate, "N/A"))
	fmt.Fprintf(&b, "Time: %s\n", orNA(a.TimeSlot))
	fmt.Fprintf(&b, "Status: %s\n", orNA(string(a.Status)))
	fmt.Fprintf(&b, "Type: %s\n", orNA(string(a.ConsultationType)))
	if strings.TrimSpace(a.Notes) != "" {
		fmt.Fprintf(&b, "Notes: %s\n", a.Notes)
	}
	return b.String()
}

// Before orders appointments by date, then by slot within the day.
// Undated appointments sort last.
func Before(x, y *Appointment) bool {
	switch {
	case x.AppointmentDate == nil && y.AppointmentDate == nil:
	case x.AppointmentDate == nil:
		return false
	case y.AppointmentDate == nil:
		return true
	case !x.AppointmentDate.Equal(*y.AppointmentDate):
		return x.AppointmentDate.Before(*y.AppointmentDate)
	}
	return SlotIndex(x.TimeSlot) < SlotIndex(y.TimeSlot)
}

// View is the JSON projection returned by the API: the stored fields plus
// the derived flags a client needs to decide which actions to offer.
type View struct {
	*Appointment
	FormattedDate    string `json:"formatted_date"`
	IsUpcoming       bool   `json:"is_upcoming"`
	CanBeCancelled   bool   `json:"can_be_cancelled"`
	CanBeRescheduled bool   `json:"can_be_rescheduled"`
}

func NewView(a *Appointment, today time.Time) View {
	return View{
		Appointment:      a,
		FormattedDate:    a.FormattedDate(),
		IsUpcoming:       a.IsUpcomingAt(today),
		CanBeCancelled:   a.CanBeCancelledAt(today),
		CanBeRescheduled: a.CanBeRescheduled(),
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

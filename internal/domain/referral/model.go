package referral

import (
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

const kind = "referral"

// DefaultLeadDays is how far out the preferred date is set when the
// referring doctor leaves it blank.
const DefaultLeadDays = 7

type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// ParseUrgency reads an urgency level case-insensitively. Blank input is
// MEDIUM.
func ParseUrgency(raw string) (Urgency, error) {
	return lifecycle.Parse("urgency", raw, UrgencyMedium,
		UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyEmergency)
}

func (u *Urgency) UnmarshalText(b []byte) error {
	v, err := ParseUrgency(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Priority ranks urgency from 1 (LOW) to 4 (EMERGENCY). Anything else
// ranks as MEDIUM.
func (u Urgency) Priority() int {
	switch strings.ToUpper(strings.TrimSpace(string(u))) {
	case string(UrgencyEmergency):
		return 4
	case string(UrgencyHigh):
		return 3
	case string(UrgencyLow):
		return 1
	default:
		return 2
	}
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(raw string) (Status, error) {
	return lifecycle.Parse("referral status", raw, StatusPending,
		StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled)
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// COMPLETED and CANCELLED are terminal.
var transitions = lifecycle.Table[Status]{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// HospitalReferral sends a patient to an external hospital department.
type HospitalReferral struct {
	ID                       int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	PatientName              string     `json:"patient_name" gorm:"size:100;not null;index"`
	ReferringDoctor          string     `json:"referring_doctor" gorm:"size:100;not null"`
	HospitalName             string     `json:"hospital_name" gorm:"size:150;not null"`
	Department               string     `json:"department" gorm:"size:100;not null"`
	SpecialtyRequired        string     `json:"specialty_required,omitempty" gorm:"size:100"`
	Reason                   string     `json:"reason" gorm:"type:text;not null"`
	UrgencyLevel             Urgency    `json:"urgency_level" gorm:"size:20;not null;default:MEDIUM"`
	ReferralDate             *time.Time `json:"referral_date" gorm:"type:date"`
	PreferredAppointmentDate *time.Time `json:"preferred_appointment_date,omitempty" gorm:"type:date"`
	Status                   Status     `json:"status" gorm:"size:20;not null;default:PENDING;index:idx_referrals_status"`
	ContactNumber            string     `json:"contact_number,omitempty" gorm:"size:30"`
	Notes                    string     `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

func (HospitalReferral) TableName() string { return "hospital_referrals" }

// NewHospitalReferral builds a PENDING referral dated today.
func NewHospitalReferral(patient, doctor, hospital, department, reason string, urgency Urgency) *HospitalReferral {
	r := &HospitalReferral{
		PatientName:     patient,
		ReferringDoctor: doctor,
		HospitalName:    hospital,
		Department:      department,
		Reason:          reason,
		UrgencyLevel:    urgency,
	}
	r.ApplyDefaults(dates.Today())
	return r
}

// ApplyDefaults fills blank enums and a missing referral date. Unknown
// enum values are left for validation to reject.
func (r *HospitalReferral) ApplyDefaults(today time.Time) {
	if u, err := ParseUrgency(string(r.UrgencyLevel)); err == nil {
		r.UrgencyLevel = u
	}
	if s, err := ParseStatus(string(r.Status)); err == nil {
		r.Status = s
	}
	if r.ReferralDate == nil {
		t := dates.Day(today)
		r.ReferralDate = &t
	} else {
		t := dates.Day(*r.ReferralDate)
		r.ReferralDate = &t
	}
	if r.PreferredAppointmentDate != nil {
		t := dates.Day(*r.PreferredAppointmentDate)
		r.PreferredAppointmentDate = &t
	}
}

func (r *HospitalReferral) IsUrgent() bool {
	return lifecycle.Is(r.UrgencyLevel, UrgencyHigh) || r.IsEmergency()
}

func (r *HospitalReferral) IsEmergency() bool    { return lifecycle.Is(r.UrgencyLevel, UrgencyEmergency) }
func (r *HospitalReferral) IsPending() bool      { return lifecycle.Is(r.Status, StatusPending) }
func (r *HospitalReferral) IsConfirmed() bool    { return lifecycle.Is(r.Status, StatusConfirmed) }
func (r *HospitalReferral) IsCompleted() bool    { return lifecycle.Is(r.Status, StatusCompleted) }
func (r *HospitalReferral) IsCancelled() bool    { return lifecycle.Is(r.Status, StatusCancelled) }
func (r *HospitalReferral) CanBeCancelled() bool { return r.IsPending() || r.IsConfirmed() }

func (r *HospitalReferral) IsOverdue() bool { return r.IsOverdueAt(dates.Today()) }

// IsOverdueAt reports a PENDING referral whose preferred date has passed.
func (r *HospitalReferral) IsOverdueAt(today time.Time) bool {
	return r.PreferredAppointmentDate != nil &&
		dates.Before(*r.PreferredAppointmentDate, today) &&
		r.IsPending()
}

func (r *HospitalReferral) PriorityLevel() int { return r.UrgencyLevel.Priority() }

func (r *HospitalReferral) StatusColor() string {
	switch strings.ToUpper(string(r.Status)) {
	case string(StatusPending):
		return "#FFA500"
	case string(StatusConfirmed):
		return "#4CAF50"
	case string(StatusCompleted):
		return "#2196F3"
	case string(StatusCancelled):
		return "#F44336"
	default:
		return "#999999"
	}
}

func (r *HospitalReferral) UrgencyColor() string {
	switch strings.ToUpper(string(r.UrgencyLevel)) {
	case string(UrgencyEmergency):
		return "#FF0000"
	case string(UrgencyHigh):
		return "#FF6600"
	case string(UrgencyMedium):
		return "#FFA500"
	case string(UrgencyLow):
		return "#4CAF50"
	default:
		return "#999999"
	}
}

// Confirm accepts a PENDING referral.
func (r *HospitalReferral) Confirm() error { return r.move(StatusConfirmed) }

// Complete closes a CONFIRMED referral.
func (r *HospitalReferral) Complete() error { return r.move(StatusCompleted) }

// Cancel withdraws a PENDING or CONFIRMED referral.
func (r *HospitalReferral) Cancel() error { return r.move(StatusCancelled) }

func (r *HospitalReferral) move(to Status) error {
	if err := transitions.Check(kind, r.Status, to); err != nil {
		return err
	}
	r.Status = to
	return nil
}

func (r *HospitalReferral) MarkAsConfirmed() { r.Status = StatusConfirmed }
func (r *HospitalReferral) MarkAsCompleted() { r.Status = StatusCompleted }
func (r *HospitalReferral) MarkAsCancelled() { r.Status = StatusCancelled }

func (r *HospitalReferral) FormattedReferralDate() string {
	return dates.Format(r.ReferralDate, "No date set")
}

func (r *HospitalReferral) FormattedPreferredDate() string {
	return dates.Format(r.PreferredAppointmentDate, "Not specified")
}

func (r *HospitalReferral) Summary() string {
	patient := r.PatientName
	if strings.TrimSpace(patient) == "" {
		patient = "Unknown"
	}
	return fmt.Sprintf("Patient: %s | Hospital: %s | Urgency: %s | Status: %s",
		patient, orNA(r.HospitalName), r.UrgencyLevel, r.Status)
}

func (r *HospitalReferral) String() string {
	var b strings.Builder
	b.WriteString("Hospital Referral:\n")
	fmt.Fprintf(&b, "ID: %d\n", r.ID)
	fmt.Fprintf(&b, "Patient: %s\n", orNA(r.PatientName))
	fmt.Fprintf(&b, "Referring Doctor: Dr. %s\n", orNA(r.ReferringDoctor))
	fmt.Fprintf(&b, "Hospital: %s\n", orNA(r.HospitalName))
	fmt.Fprintf(&b, "Department: %s\n", orNA(r.Department))
	fmt.Fprintf(&b, "Specialty: %s\n", orNA(r.SpecialtyRequired))
	fmt.Fprintf(&b, "Referral Date: %s\n", r.FormattedReferralDate())
	fmt.Fprintf(&b, "Preferred Date: %s\n", r.FormattedPreferredDate())
	fmt.Fprintf(&b, "Urgency: %s | Status: %s\n\n", r.UrgencyLevel, r.Status)
	if strings.TrimSpace(r.Reason) != "" {
		fmt.Fprintf(&b, "Reason for Referral:\n%s\n\n", r.Reason)
	}
	if strings.TrimSpace(r.ContactNumber) != "" {
		fmt.Fprintf(&b, "Contact: %s\n", r.ContactNumber)
	}
	if strings.TrimSpace(r.Notes) != "" {
		fmt.Fprintf(&b, "Notes: %s\n", r.Notes)
	}
	return b.String()
}

// Letter renders the referral letter sent to the receiving hospital,
// dated on issued.
func (r *HospitalReferral) Letter(issued time.Time) string {
	var b strings.Builder
	b.WriteString("HOSPITAL REFERRAL LETTER\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Date: %s\n\n", issued.Format(dates.DisplayLayout))
	fmt.Fprintf(&b, "To: %s\n", r.HospitalName)
	fmt.Fprintf(&b, "Department: %s\n\n", r.Department)
	fmt.Fprintf(&b, "From: %s\n", r.ReferringDoctor)
	b.WriteString("TeleHealth System\n\n")
	b.WriteString("Dear Colleague,\n\n")
	fmt.Fprintf(&b, "RE: %s\n\n", r.PatientName)
	b.WriteString("I am referring the above patient for your specialist opinion and management.\n\n")
	fmt.Fprintf(&b, "REASON FOR REFERRAL:\n%s\n\n", r.Reason)
	if strings.TrimSpace(r.SpecialtyRequired) != "" {
		fmt.Fprintf(&b, "SPECIALTY REQUIRED: %s\n\n", r.SpecialtyRequired)
	}
	fmt.Fprintf(&b, "URGENCY LEVEL: %s\n", r.UrgencyLevel)
	if r.PreferredAppointmentDate != nil {
		fmt.Fprintf(&b, "PREFERRED APPOINTMENT DATE: %s\n", r.PreferredAppointmentDate.Format(dates.ISOLayout))
	}
	if strings.TrimSpace(r.ContactNumber) != "" {
		fmt.Fprintf(&b, "PATIENT CONTACT: %s\n", r.ContactNumber)
	}
	b.WriteString("\nThank you for your assistance with this patient's care.\n\n")
	b.WriteString("Yours sincerely,\n")
	b.WriteString(r.ReferringDoctor + "\n")
	b.WriteString("TeleHealth System")
	return b.String()
}

// Before orders referrals by priority, highest first, then by referral
// date, newest first. Ties fall back to the higher id.
func Before(x, y *HospitalReferral) bool {
	if px, py := x.PriorityLevel(), y.PriorityLevel(); px != py {
		return px > py
	}
	switch {
	case x.ReferralDate == nil && y.ReferralDate != nil:
		return false
	case x.ReferralDate != nil && y.ReferralDate == nil:
		return true
	case x.ReferralDate != nil && !x.ReferralDate.Equal(*y.ReferralDate):
		return x.ReferralDate.After(*y.ReferralDate)
	}
	return x.ID > y.ID
}

// View adds the derived display fields to the stored ones.
type View struct {
	*HospitalReferral
	FormattedReferralDate  string `json:"formatted_referral_date"`
	FormattedPreferredDate string `json:"formatted_preferred_date"`
	Summary                string `json:"summary"`
	PriorityLevel          int    `json:"priority_level"`
	StatusColor            string `json:"status_color"`
	UrgencyColor           string `json:"urgency_color"`
	IsUrgent               bool   `json:"is_urgent"`
	IsOverdue              bool   `json:"is_overdue"`
	CanBeCancelled         bool   `json:"can_be_cancelled"`
}

func NewView(r *HospitalReferral, today time.Time) View {
	return View{
		HospitalReferral:       r,
		FormattedReferralDate:  r.FormattedReferralDate(),
		FormattedPreferredDate: r.FormattedPreferredDate(),
		Summary:                r.Summary(),
		PriorityLevel:          r.PriorityLevel(),
		StatusColor:            r.StatusColor(),
		UrgencyColor:           r.UrgencyColor(),
		IsUrgent:               r.IsUrgent(),
		IsOverdue:              r.IsOverdueAt(today),
		CanBeCancelled:         r.CanBeCancelled(),
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

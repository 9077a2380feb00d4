package clinical

import (
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

const kind = "diagnosis"

// RecentWindow is how far back a diagnosis still counts as recent.
const RecentWindow = 14

type Severity string

const (
	SeverityMild     Severity = "MILD"
	SeverityModerate Severity = "MODERATE"
	SeveritySevere   Severity = "SEVERE"
)

// ParseSeverity reads a severity case-insensitively. Blank input is
// MODERATE.
func ParseSeverity(raw string) (Severity, error) {
	return lifecycle.Parse("severity", raw, SeverityModerate,
		SeverityMild, SeverityModerate, SeveritySevere)
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusOngoing  Status = "ONGOING"
	StatusResolved Status = "RESOLVED"
)

// ParseStatus reads a diagnosis status case-insensitively. Blank input is
// ACTIVE.
func ParseStatus(raw string) (Status, error) {
	return lifecycle.Parse("diagnosis status", raw, StatusActive,
		StatusActive, StatusOngoing, StatusResolved)
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RESOLVED is terminal.
var transitions = lifecycle.Table[Status]{
	StatusActive:  {StatusOngoing, StatusResolved},
	StatusOngoing: {StatusResolved},
}

// Diagnosis is a doctor's assessment recorded after a consultation.
// AppointmentID is a weak reference; zero means none.
type Diagnosis struct {
	ID                   int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	AppointmentID        int64      `json:"appointment_id,omitempty" gorm:"index"`
	PatientName          string     `json:"patient_name" gorm:"size:100;not null;index"`
	DoctorName           string     `json:"doctor_name" gorm:"size:100;not null"`
	DiagnosisText        string     `json:"diagnosis" gorm:"column:diagnosis;type:text;not null"`
	Symptoms             string     `json:"symptoms,omitempty" gorm:"type:text"`
	PrescriptionDetails  string     `json:"prescription,omitempty" gorm:"column:prescription;type:text"`
	TreatmentPlan        string     `json:"treatment_plan,omitempty" gorm:"type:text"`
	FollowUpInstructions string     `json:"follow_up_instructions,omitempty" gorm:"type:text"`
	RecordedDate         *time.Time `json:"recorded_date" gorm:"type:date"`
	Severity             Severity   `json:"severity" gorm:"size:20;not null;default:MODERATE"`
	Status               Status     `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Diagnosis) TableName() string { return "diagnoses" }

// NewDiagnosis builds a diagnosis recorded today with defaults applied.
func NewDiagnosis(appointmentID int64, patient, doctor, text string, severity Severity) *Diagnosis {
	d := &Diagnosis{
		AppointmentID: appointmentID,
		PatientName:   patient,
		DoctorName:    doctor,
		DiagnosisText: text,
		Severity:      severity,
	}
	d.ApplyDefaults(dates.Today())
	return d
}

// ApplyDefaults fills blank enums and a missing recorded date.
func (d *Diagnosis) ApplyDefaults(today time.Time) {
	if s, err := ParseSeverity(string(d.Severity)); err == nil {
		d.Severity = s
	}
	if s, err := ParseStatus(string(d.Status)); err == nil {
		d.Status = s
	}
	if d.RecordedDate == nil {
		t := dates.Day(today)
		d.RecordedDate = &t
	} else {
		t := dates.Day(*d.RecordedDate)
		d.RecordedDate = &t
	}
}

func (d *Diagnosis) IsRecent() bool { return d.IsRecentAt(dates.Today()) }

// IsRecentAt reports whether the diagnosis was recorded within the last
// RecentWindow days.
func (d *Diagnosis) IsRecentAt(today time.Time) bool {
	return d.RecordedDate != nil && dates.After(*d.RecordedDate, dates.AddDays(today, -RecentWindow))
}

func (d *Diagnosis) RequiresFollowUp() bool {
	return strings.TrimSpace(d.FollowUpInstructions) != ""
}

func (d *Diagnosis) IsSevere() bool   { return lifecycle.Is(d.Severity, SeveritySevere) }
func (d *Diagnosis) IsResolved() bool { return lifecycle.Is(d.Status, StatusResolved) }

// MarkOngoing moves an ACTIVE diagnosis to ONGOING.
func (d *Diagnosis) MarkOngoing() error {
	if err := transitions.Check(kind, d.Status, StatusOngoing); err != nil {
		return err
	}
	d.Status = StatusOngoing
	return nil
}

// Resolve closes an ACTIVE or ONGOING diagnosis.
func (d *Diagnosis) Resolve() error {
	if err := transitions.Check(kind, d.Status, StatusResolved); err != nil {
		return err
	}
	d.Status = StatusResolved
	return nil
}

// MarkAsResolved sets RESOLVED without checking the current status.
func (d *Diagnosis) MarkAsResolved() { d.Status = StatusResolved }

// MarkAsOngoing sets ONGOING without checking the current status.
func (d *Diagnosis) MarkAsOngoing() { d.Status = StatusOngoing }

func (d *Diagnosis) FormattedDate() string {
	return dates.Format(d.RecordedDate, "No date recorded")
}

func (d *Diagnosis) Summary() string {
	patient := d.PatientName
	if strings.TrimSpace(patient) == "" {
		patient = "Unknown"
	}
	return fmt.Sprintf("Patient: %s | Date: %s | Status: %s | Severity: %s",
		patient, d.FormattedDate(), d.Status, d.Severity)
}

// String renders the full record; empty clinical sections are skipped.
func (d *Diagnosis) String() string {
	var b strings.Builder
	b.WriteString("Diagnosis Record:\n")
	fmt.Fprintf(&b, "ID: %d\n", d.ID)
	fmt.Fprintf(&b, "Patient: %s\n", orNA(d.PatientName))
	fmt.Fprintf(&b, "Doctor: Dr. %s\n", orNA(d.DoctorName))
	fmt.Fprintf(&b, "Date: %s\n", d.FormattedDate())
	fmt.Fprintf(&b, "Status: %s | Severity: %s\n\n", d.Status, d.Severity)
	section := func(title, body string, trailer string) {
		if strings.TrimSpace(body) != "" {
			fmt.Fprintf(&b, "%s:\n%s\n%s", title, body, trailer)
		}
	}
	section("Symptoms", d.Symptoms, "\n")
	section("Diagnosis", d.DiagnosisText, "\n")
	section("Prescription", d.PrescriptionDetails, "\n")
	section("Treatment Plan", d.TreatmentPlan, "\n")
	section("Follow-up Instructions", d.FollowUpInstructions, "")
	return b.String()
}

// View adds the derived flags to the stored fields.
type View struct {
	*Diagnosis
	FormattedDate    string `json:"formatted_date"`
	Summary          string `json:"summary"`
	IsRecent         bool   `json:"is_recent"`
	RequiresFollowUp bool   `json:"requires_follow_up"`
	IsSevere         bool   `json:"is_severe"`
	IsResolved       bool   `json:"is_resolved"`
}

func NewView(d *Diagnosis, today time.Time) View {
	return View{
		Diagnosis:        d,
		FormattedDate:    d.FormattedDate(),
		Summary:          d.Summary(),
		IsRecent:         d.IsRecentAt(today),
		RequiresFollowUp: d.RequiresFollowUp(),
		IsSevere:         d.IsSevere(),
		IsResolved:       d.IsResolved(),
	}
}

// HealthReport is the patient-facing projection of a diagnosis.
type HealthReport struct {
	DiagnosisID   int64      `json:"diagnosis_id"`
	RecordedDate  *time.Time `json:"recorded_date"`
	FormattedDate string     `json:"formatted_date"`
	DoctorName    string     `json:"doctor_name"`
	Diagnosis     string     `json:"diagnosis"`
	Prescription  string     `json:"prescription"`
	Severity      Severity   `json:"severity"`
	Status        Status     `json:"status"`
}

func (d *Diagnosis) Report() HealthReport {
	return HealthReport{
		DiagnosisID:   d.ID,
		RecordedDate:  d.RecordedDate,
		FormattedDate: d.FormattedDate(),
		DoctorName:    d.DoctorName,
		Diagnosis:     d.DiagnosisText,
		Prescription:  d.PrescriptionDetails,
		Severity:      d.Severity,
		Status:        d.Status,
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

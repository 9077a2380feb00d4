package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

type Service struct {
	diagnoses DiagnosisRepository
	observer  lifecycle.Observer
	today     func() time.Time
}

func NewService(diag DiagnosisRepository, obs lifecycle.Observer) *Service {
	if obs == nil {
		obs = lifecycle.Observers()
	}
	return &Service{diagnoses: diag, observer: obs, today: dates.Today}
}

func (s *Service) Today() time.Time { return s.today() }

// RecordDiagnosis validates and stores a new diagnosis. A missing recorded
// date becomes today.
func (s *Service) RecordDiagnosis(ctx context.Context, d *Diagnosis) error {
	d.ID = 0
	today := s.today()
	d.ApplyDefaults(today)
	switch {
	case strings.TrimSpace(d.PatientName) == "":
		return invalid("patient_name", "is required")
	case strings.TrimSpace(d.DoctorName) == "":
		return invalid("doctor_name", "is required")
	case strings.TrimSpace(d.DiagnosisText) == "":
		return invalid("diagnosis", "is required")
	case dates.After(*d.RecordedDate, today):
		return invalid("recorded_date", "must not be in the future")
	case d.AppointmentID < 0:
		return invalid("appointment_id", "must be positive")
	}
	if _, err := ParseSeverity(string(d.Severity)); err != nil {
		return invalid("severity", "must be one of MILD, MODERATE, SEVERE")
	}
	if _, err := ParseStatus(string(d.Status)); err != nil {
		return invalid("status", "must be one of ACTIVE, ONGOING, RESOLVED")
	}
	return s.diagnoses.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id int64) (*Diagnosis, error) {
	return s.diagnoses.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f DiagnosisFilter, limit, offset int) ([]*Diagnosis, int, error) {
	return s.diagnoses.List(ctx, f, limit, offset)
}

// ListByPatient is the patient's history, newest first.
func (s *Service) ListByPatient(ctx context.Context, patient string, limit, offset int) ([]*Diagnosis, int, error) {
	if strings.TrimSpace(patient) == "" {
		return nil, 0, invalid("patient", "is required")
	}
	return s.diagnoses.List(ctx, DiagnosisFilter{Patient: patient}, limit, offset)
}

// HealthReports projects a patient's history into report rows.
func (s *Service) HealthReports(ctx context.Context, patient string, limit, offset int) ([]HealthReport, int, error) {
	items, total, err := s.ListByPatient(ctx, patient, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	reports := make([]HealthReport, 0, len(items))
	for _, d := range items {
		reports = append(reports, d.Report())
	}
	return reports, total, nil
}

// SuggestPrescription drafts prescription text for a diagnosis.
func (s *Service) SuggestPrescription(diagnosis string) (string, error) {
	if strings.TrimSpace(diagnosis) == "" {
		return "", invalid("diagnosis", "is required")
	}
	return SuggestPrescription(diagnosis), nil
}

func (s *Service) TreatmentPlanTemplate() string { return TreatmentPlanTemplate() }

func (s *Service) MarkOngoing(ctx context.Context, id int64) (*Diagnosis, error) {
	return s.transition(ctx, id, StatusOngoing, (*Diagnosis).MarkOngoing)
}

func (s *Service) Resolve(ctx context.Context, id int64) (*Diagnosis, error) {
	return s.transition(ctx, id, StatusResolved, (*Diagnosis).Resolve)
}

// ForceStatus is the administrative override; it ignores the state machine.
func (s *Service) ForceStatus(ctx context.Context, id int64, status Status) (*Diagnosis, error) {
	var mark func(*Diagnosis)
	switch status {
	case StatusResolved:
		mark = (*Diagnosis).MarkAsResolved
	case StatusOngoing:
		mark = (*Diagnosis).MarkAsOngoing
	default:
		return nil, invalid("status", fmt.Sprintf("cannot be forced to %q", status))
	}
	return s.transition(ctx, id, status, func(d *Diagnosis) error {
		mark(d)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id int64, to Status, apply func(*Diagnosis) error) (*Diagnosis, error) {
	cur, err := s.diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	err = apply(&next)
	if err == nil {
		err = s.diagnoses.Update(ctx, &next)
	}
	s.observer.ObserveTransition(kind, string(cur.Status), string(to), err)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

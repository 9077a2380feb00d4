package clinical

import "context"

type DiagnosisRepository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id int64) (*Diagnosis, error)
	Update(ctx context.Context, d *Diagnosis) error
	// List returns matching diagnoses, newest recorded first.
	List(ctx context.Context, f DiagnosisFilter, limit, offset int) ([]*Diagnosis, int, error)
}

// DiagnosisFilter narrows a listing. Zero fields do not filter.
type DiagnosisFilter struct {
	Patient       string
	Doctor        string
	Status        Status
	Severity      Severity
	AppointmentID int64
}

func (f DiagnosisFilter) Matches(d *Diagnosis) bool {
	switch {
	case f.Patient != "" && d.PatientName != f.Patient:
		return false
	case f.Doctor != "" && d.DoctorName != f.Doctor:
		return false
	case f.Status != "" && d.Status != f.Status:
		return false
	case f.Severity != "" && d.Severity != f.Severity:
		return false
	case f.AppointmentID != 0 && d.AppointmentID != f.AppointmentID:
		return false
	}
	return true
}

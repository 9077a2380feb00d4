package referral

import (
	"context"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
)

type ReferralRepository interface {
	Create(ctx context.Context, r *HospitalReferral) error
	GetByID(ctx context.Context, id int64) (*HospitalReferral, error)
	Update(ctx context.Context, r *HospitalReferral) error
	// List returns matching referrals, highest priority first.
	List(ctx context.Context, f ReferralFilter, limit, offset int) ([]*HospitalReferral, int, error)
}

// ReferralFilter narrows a listing. Zero fields do not filter.
type ReferralFilter struct {
	Patient  string
	Doctor   string
	Hospital string
	Status   Status
	Urgency  Urgency
	// OverdueAt keeps PENDING referrals whose preferred date is before the
	// given day.
	OverdueAt *time.Time
}

func (f ReferralFilter) Matches(r *HospitalReferral) bool {
	switch {
	case f.Patient != "" && r.PatientName != f.Patient:
		return false
	case f.Doctor != "" && r.ReferringDoctor != f.Doctor:
		return false
	case f.Hospital != "" && r.HospitalName != f.Hospital:
		return false
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.Urgency != "" && r.UrgencyLevel != f.Urgency:
		return false
	case f.OverdueAt != nil && !r.IsOverdueAt(dates.Day(*f.OverdueAt)):
		return false
	}
	return true
}

// priorityOrderSQL ranks urgency the same way Urgency.Priority does.
const priorityOrderSQL = `CASE urgency_level
	WHEN 'EMERGENCY' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'LOW' THEN 1 ELSE 2 END DESC`

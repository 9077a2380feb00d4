package referral

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

type Service struct {
	referrals ReferralRepository
	observer  lifecycle.Observer
	today     func() time.Time
}

func NewService(repo ReferralRepository, obs lifecycle.Observer) *Service {
	if obs == nil {
		obs = lifecycle.Observers()
	}
	return &Service{referrals: repo, observer: obs, today: dates.Today}
}

func (s *Service) Today() time.Time { return s.today() }

// CreateReferral validates and stores a new PENDING referral. A missing
// preferred date is set DefaultLeadDays after today.
func (s *Service) CreateReferral(ctx context.Context, r *HospitalReferral) error {
	r.ID = 0
	r.Status = StatusPending
	today := s.today()
	r.ApplyDefaults(today)
	if r.PreferredAppointmentDate == nil {
		d := dates.AddDays(today, DefaultLeadDays)
		r.PreferredAppointmentDate = &d
	}
	for _, req := range []struct{ field, value string }{
		{"patient_name", r.PatientName},
		{"referring_doctor", r.ReferringDoctor},
		{"hospital_name", r.HospitalName},
		{"department", r.Department},
		{"reason", r.Reason},
	} {
		if strings.TrimSpace(req.value) == "" {
			return invalid(req.field, "is required")
		}
	}
	if _, err := ParseUrgency(string(r.UrgencyLevel)); err != nil {
		return invalid("urgency_level", "must be one of LOW, MEDIUM, HIGH, EMERGENCY")
	}
	if dates.Before(*r.PreferredAppointmentDate, *r.ReferralDate) {
		return invalid("preferred_appointment_date", "must not be before the referral date")
	}
	return s.referrals.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id int64) (*HospitalReferral, error) {
	return s.referrals.GetByID(ctx, id)
}

// List returns referrals ordered by priority, then newest referral date.
func (s *Service) List(ctx context.Context, f ReferralFilter, limit, offset int) ([]*HospitalReferral, int, error) {
	return s.referrals.List(ctx, f, limit, offset)
}

// ListOverdue returns PENDING referrals whose preferred date has passed.
func (s *Service) ListOverdue(ctx context.Context, f ReferralFilter, limit, offset int) ([]*HospitalReferral, int, error) {
	today := s.today()
	f.OverdueAt = &today
	return s.referrals.List(ctx, f, limit, offset)
}

func (s *Service) Confirm(ctx context.Context, id int64) (*HospitalReferral, error) {
	return s.transition(ctx, id, StatusConfirmed, (*HospitalReferral).Confirm)
}

func (s *Service) Complete(ctx context.Context, id int64) (*HospitalReferral, error) {
	return s.transition(ctx, id, StatusCompleted, (*HospitalReferral).Complete)
}

func (s *Service) Cancel(ctx context.Context, id int64) (*HospitalReferral, error) {
	return s.transition(ctx, id, StatusCancelled, (*HospitalReferral).Cancel)
}

// ForceStatus is the administrative override; it ignores the state machine.
func (s *Service) ForceStatus(ctx context.Context, id int64, status Status) (*HospitalReferral, error) {
	var mark func(*HospitalReferral)
	switch status {
	case StatusConfirmed:
		mark = (*HospitalReferral).MarkAsConfirmed
	case StatusCompleted:
		mark = (*HospitalReferral).MarkAsCompleted
	case StatusCancelled:
		mark = (*HospitalReferral).MarkAsCancelled
	default:
		return nil, invalid("status", fmt.Sprintf("cannot be forced to %q", status))
	}
	return s.transition(ctx, id, status, func(r *HospitalReferral) error {
		mark(r)
		return nil
	})
}

// Letter renders the referral letter dated today.
func (s *Service) Letter(ctx context.Context, id int64) (string, error) {
	r, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return r.Letter(s.today()), nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, apply func(*HospitalReferral) error) (*HospitalReferral, error) {
	cur, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	err = apply(&next)
	if err == nil {
		err = s.referrals.Update(ctx, &next)
	}
	s.observer.ObserveTransition(kind, string(cur.Status), string(to), err)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

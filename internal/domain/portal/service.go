package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/telehealth/clinic/pkg/lifecycle"
)

// PatientDirectory finds the account a patient name is registered under.
type PatientDirectory interface {
	LookupPatient(ctx context.Context, name string) (int64, bool, error)
}

type Service struct {
	vitals   VitalsRepository
	refills  RefillRepository
	patients PatientDirectory
	observer lifecycle.Observer
}

func NewService(vitals VitalsRepository, refills RefillRepository, obs lifecycle.Observer) *Service {
	if obs == nil {
		obs = lifecycle.Observers()
	}
	return &Service{vitals: vitals, refills: refills, observer: obs}
}

// SetPatientDirectory links records filed on a patient's behalf to that
// patient's account.
func (s *Service) SetPatientDirectory(d PatientDirectory) {
	s.patients = d
}

// resolvePatient returns the account id for a record that arrived without
// one. Names with no patient account stay unlinked.
func (s *Service) resolvePatient(ctx context.Context, userID int64, name string) (int64, error) {
	if userID != 0 || s.patients == nil {
		return userID, nil
	}
	id, ok, err := s.patients.LookupPatient(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("look up patient: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return id, nil
}

// -- Vitals --

// SubmitVitals stores the readings and returns any alerts they raise.
func (s *Service) SubmitVitals(ctx context.Context, v *VitalsSubmission) ([]Alert, error) {
	v.ID = 0
	if strings.TrimSpace(v.PatientName) == "" {
		return nil, invalid("patient_name", "is required")
	}
	for _, r := range []struct {
		field    string
		value    float64
		max      float64
		optional bool
	}{
		{"pulse", v.Pulse, MaxPulse, false},
		{"temperature", v.Temperature, MaxTemperature, false},
		{"respiration", v.Respiration, MaxRespiration, false},
		{"oxygen", v.Oxygen, MaxOxygen, false},
		{"weight", v.Weight, MaxWeight, true},
		{"height", v.Height, MaxHeight, true},
	} {
		switch {
		case r.optional && r.value < 0:
			return nil, invalid(r.field, "must not be negative")
		case !r.optional && r.value <= 0:
			return nil, invalid(r.field, "must be greater than 0")
		case r.value > r.max:
			return nil, invalid(r.field, fmt.Sprintf("must not exceed %g", r.max))
		}
	}
	id, err := s.resolvePatient(ctx, v.UserID, v.PatientName)
	if err != nil {
		return nil, err
	}
	v.UserID = id
	if err := s.vitals.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("store vitals: %w", err)
	}
	return v.Alerts(), nil
}

func (s *Service) ListVitals(ctx context.Context, f VitalsFilter, limit, offset int) ([]*VitalsSubmission, int, error) {
	return s.vitals.List(ctx, f, limit, offset)
}

// -- Refills --

// RequestRefill stores a new PENDING refill request.
func (s *Service) RequestRefill(ctx context.Context, r *RefillRequest) error {
	r.ID = 0
	r.Status = RefillPending
	switch {
	case strings.TrimSpace(r.PatientName) == "":
		return invalid("patient_name", "is required")
	case strings.TrimSpace(r.MedicationName) == "":
		return invalid("medication_name", "is required")
	case r.Quantity <= 0:
		return invalid("quantity", "must be greater than 0")
	case r.Quantity > MaxQuantity:
		return invalid("quantity", fmt.Sprintf("must not exceed %d", MaxQuantity))
	}
	id, err := s.resolvePatient(ctx, r.UserID, r.PatientName)
	if err != nil {
		return err
	}
	r.UserID = id
	return s.refills.Create(ctx, r)
}

func (s *Service) GetRefill(ctx context.Context, id int64) (*RefillRequest, error) {
	return s.refills.GetByID(ctx, id)
}

func (s *Service) ListRefills(ctx context.Context, f RefillFilter, limit, offset int) ([]*RefillRequest, int, error) {
	return s.refills.List(ctx, f, limit, offset)
}

func (s *Service) ApproveRefill(ctx context.Context, id int64) (*RefillRequest, error) {
	return s.transition(ctx, id, RefillApproved, (*RefillRequest).Approve)
}

func (s *Service) DenyRefill(ctx context.Context, id int64) (*RefillRequest, error) {
	return s.transition(ctx, id, RefillDenied, (*RefillRequest).Deny)
}

func (s *Service) FulfillRefill(ctx context.Context, id int64) (*RefillRequest, error) {
	return s.transition(ctx, id, RefillFulfilled, (*RefillRequest).Fulfill)
}

func (s *Service) transition(ctx context.Context, id int64, to RefillStatus, apply func(*RefillRequest) error) (*RefillRequest, error) {
	cur, err := s.refills.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	err = apply(&next)
	if err == nil {
		err = s.refills.Update(ctx, &next)
	}
	s.observer.ObserveTransition(refillKind, string(cur.Status), string(to), err)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

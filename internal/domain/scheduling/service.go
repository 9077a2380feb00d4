package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
	"github.com/telehealth/clinic/pkg/lifecycle"
)

type Service struct {
	appointments AppointmentRepository
	observer     lifecycle.Observer
	today        func() time.Time
}

func NewService(appt AppointmentRepository, obs lifecycle.Observer) *Service {
	if obs == nil {
		obs = lifecycle.Observers()
	}
	return &Service{appointments: appt, observer: obs, today: dates.Today}
}

// Today is the calendar day the service evaluates predicates against.
func (s *Service) Today() time.Time { return s.today() }

// Changes is a partial update of an appointment. Nil fields are left alone.
type Changes struct {
	SpecialistName   *string
	Date             *time.Time
	TimeSlot         *string
	ConsultationType *ConsultationType
	Notes            *string
}

// Book validates and stores a new appointment. The status is always
// SCHEDULED regardless of what the caller sent.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	a.ID = 0
	a.Status = StatusScheduled
	a.ApplyDefaults()
	if strings.TrimSpace(a.PatientName) == "" {
		return invalid("patient_name", "is required")
	}
	if strings.TrimSpace(a.SpecialistName) == "" {
		return invalid("specialist_name", "is required")
	}
	if a.AppointmentDate == nil {
		return invalid("appointment_date", "is required")
	}
	if err := s.checkSlot(*a.AppointmentDate, a.TimeSlot); err != nil {
		return err
	}
	if _, err := ParseConsultationType(string(a.ConsultationType)); err != nil {
		return invalid("consultation_type", "must be one of VIDEO, AUDIO, IN_PERSON")
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) checkSlot(date time.Time, slot string) error {
	if dates.Before(date, s.today()) {
		return invalid("appointment_date", "must not be in the past")
	}
	if _, ok := NormalizeTimeSlot(slot); !ok {
		return invalid("time_slot", "must be one of "+strings.Join(timeSlots, ", "))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// List returns appointments matching f ordered by date, then slot.
func (s *Service) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, f, limit, offset)
}

// ListUpcoming narrows f to open appointments after today.
func (s *Service) ListUpcoming(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	from := dates.AddDays(s.today(), 1)
	f.From = &from
	f.OpenOnly = true
	return s.appointments.List(ctx, f, limit, offset)
}

// Modify applies ch to an open appointment. Moving the date or slot marks
// it RESCHEDULED; other edits keep the current status.
func (s *Service) Modify(ctx context.Context, id int64, ch Changes) (*Appointment, error) {
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.CanBeRescheduled() {
		return nil, fmt.Errorf("%w: %s appointment cannot be modified", lifecycle.ErrInvalidTransition, cur.Status)
	}

	next := *cur
	if ch.SpecialistName != nil {
		if strings.TrimSpace(*ch.SpecialistName) == "" {
			return nil, invalid("specialist_name", "is required")
		}
		next.SpecialistName = *ch.SpecialistName
	}
	if ch.ConsultationType != nil {
		t, err := ParseConsultationType(string(*ch.ConsultationType))
		if err != nil {
			return nil, invalid("consultation_type", "must be one of VIDEO, AUDIO, IN_PERSON")
		}
		next.ConsultationType = t
	}
	if ch.Notes != nil {
		next.Notes = *ch.Notes
	}

	moved := false
	date, slot := cur.AppointmentDate, cur.TimeSlot
	if ch.Date != nil && (date == nil || !dates.Day(*ch.Date).Equal(*date)) {
		d := dates.Day(*ch.Date)
		date, moved = &d, true
	}
	if ch.TimeSlot != nil {
		if norm, _ := NormalizeTimeSlot(*ch.TimeSlot); norm != cur.TimeSlot {
			slot, moved = *ch.TimeSlot, true
		}
	}
	if !moved {
		if err := s.appointments.Update(ctx, &next); err != nil {
			return nil, err
		}
		return &next, nil
	}

	if date == nil {
		return nil, invalid("appointment_date", "is required")
	}
	if err := s.checkSlot(*date, slot); err != nil {
		return nil, err
	}
	return s.save(ctx, cur, &next, StatusRescheduled, func(a *Appointment) error {
		return a.Reschedule(*date, slot)
	})
}

// Reschedule moves an open appointment to a new date and slot.
func (s *Service) Reschedule(ctx context.Context, id int64, date time.Time, slot string) (*Appointment, error) {
	if err := s.checkSlot(date, slot); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusRescheduled, func(a *Appointment) error {
		return a.Reschedule(date, slot)
	})
}

// Cancel cancels a SCHEDULED appointment that has not happened yet.
func (s *Service) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	today := s.today()
	return s.transition(ctx, id, StatusCancelled, func(a *Appointment) error {
		return a.CancelAt(today)
	})
}

func (s *Service) Complete(ctx context.Context, id int64) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, (*Appointment).Complete)
}

// ForceStatus sets status without consulting the state machine. It is the
// administrative override for records the checked path refuses.
func (s *Service) ForceStatus(ctx context.Context, id int64, status Status) (*Appointment, error) {
	var mark func(*Appointment)
	switch status {
	case StatusCompleted:
		mark = (*Appointment).MarkAsCompleted
	case StatusCancelled:
		mark = (*Appointment).MarkAsCancelled
	case StatusRescheduled:
		mark = (*Appointment).MarkAsRescheduled
	default:
		return nil, invalid("status", fmt.Sprintf("cannot be forced to %q", status))
	}
	return s.transition(ctx, id, status, func(a *Appointment) error {
		mark(a)
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id int64, to Status, apply func(*Appointment) error) (*Appointment, error) {
	cur, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *cur
	return s.save(ctx, cur, &next, to, apply)
}

// save applies the transition to next, a copy of cur, and persists it. cur
// is never modified.
func (s *Service) save(ctx context.Context, cur, next *Appointment, to Status, apply func(*Appointment) error) (*Appointment, error) {
	err := apply(next)
	if err == nil {
		err = s.appointments.Update(ctx, next)
	}
	s.observer.ObserveTransition(kind, string(cur.Status), string(to), err)
	if err != nil {
		return nil, err
	}
	return next, nil
}

package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/telehealth/clinic/pkg/dates"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
}

// AppointmentFilter narrows a listing. Zero fields do not filter.
type AppointmentFilter struct {
	// Search matches patient or specialist names, case-insensitively.
	Search     string
	Status     Status
	Date       *time.Time
	Patient    string
	Specialist string
	// From keeps appointments on or after the given day.
	From *time.Time
	// OpenOnly keeps SCHEDULED and RESCHEDULED appointments.
	OpenOnly bool
}

// Matches applies the filter to a single appointment.
func (f AppointmentFilter) Matches(a *Appointment) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(a.PatientName), q) &&
			!strings.Contains(strings.ToLower(a.SpecialistName), q) {
			return false
		}
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.OpenOnly && !a.CanBeRescheduled() {
		return false
	}
	if f.Patient != "" && a.PatientName != f.Patient {
		return false
	}
	if f.Specialist != "" && a.SpecialistName != f.Specialist {
		return false
	}
	if f.Date != nil && (a.AppointmentDate == nil || !dates.Day(*a.AppointmentDate).Equal(dates.Day(*f.Date))) {
		return false
	}
	if f.From != nil && (a.AppointmentDate == nil || dates.Before(*a.AppointmentDate, *f.From)) {
		return false
	}
	return true
}

// slotOrderSQL ranks time_slot by position in the day. Both PostgreSQL and
// MySQL accept it.
var slotOrderSQL = func() string {
	var b strings.Builder
	b.WriteString("CASE time_slot")
	for i, s := range timeSlots {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", s, i)
	}
	b.WriteString(" ELSE 99 END")
	return b.String()
}()

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}

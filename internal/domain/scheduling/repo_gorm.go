package scheduling

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type appointmentRepoGorm struct{ db *gorm.DB }

// NewAppointmentRepoGorm stores appointments through gorm; used with the
// MySQL driver.
func NewAppointmentRepoGorm(db *gorm.DB) AppointmentRepository {
	return &appointmentRepoGorm{db: db}
}

func (r *appointmentRepoGorm) Create(ctx context.Context, a *Appointment) error {
	a.ID = 0
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *appointmentRepoGorm) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	var a Appointment
	err := r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ApplyDefaults()
	return &a, nil
}

func (r *appointmentRepoGorm) Update(ctx context.Context, a *Appointment) error {
	res := r.db.WithContext(ctx).Model(a).Select(
		"patient_name", "specialist_name", "appointment_date", "time_slot",
		"status", "consultation_type", "notes", "updated_at",
	).Updates(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoGorm) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	q := r.db.WithContext(ctx).Model(&Appointment{})
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("(LOWER(patient_name) LIKE ? OR LOWER(specialist_name) LIKE ?)", p, p)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.OpenOnly {
		q = q.Where("status IN ?", []string{string(StatusScheduled), string(StatusRescheduled)})
	}
	if f.Patient != "" {
		q = q.Where("patient_name = ?", f.Patient)
	}
	if f.Specialist != "" {
		q = q.Where("specialist_name = ?", f.Specialist)
	}
	if f.Date != nil {
		q = q.Where("appointment_date = ?", *f.Date)
	}
	if f.From != nil {
		q = q.Where("appointment_date >= ?", *f.From)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*Appointment
	err := q.Order("appointment_date IS NULL, appointment_date ASC, " + slotOrderSQL + ", id").
		Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	for _, a := range items {
		a.ApplyDefaults()
	}
	return items, int(total), nil
}

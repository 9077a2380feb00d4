package clinical

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type diagnosisRepoGorm struct{ db *gorm.DB }

func NewDiagnosisRepoGorm(db *gorm.DB) DiagnosisRepository {
	return &diagnosisRepoGorm{db: db}
}

func (r *diagnosisRepoGorm) Create(ctx context.Context, d *Diagnosis) error {
	d.ID = 0
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *diagnosisRepoGorm) GetByID(ctx context.Context, id int64) (*Diagnosis, error) {
	var d Diagnosis
	err := r.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *diagnosisRepoGorm) Update(ctx context.Context, d *Diagnosis) error {
	res := r.db.WithContext(ctx).Model(d).Select(
		"appointment_id", "patient_name", "doctor_name", "diagnosis", "symptoms",
		"prescription", "treatment_plan", "follow_up_instructions", "recorded_date",
		"severity", "status", "updated_at",
	).Updates(d)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *diagnosisRepoGorm) List(ctx context.Context, f DiagnosisFilter, limit, offset int) ([]*Diagnosis, int, error) {
	q := r.db.WithContext(ctx).Model(&Diagnosis{})
	if f.Patient != "" {
		q = q.Where("patient_name = ?", f.Patient)
	}
	if f.Doctor != "" {
		q = q.Where("doctor_name = ?", f.Doctor)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", string(f.Severity))
	}
	if f.AppointmentID != 0 {
		q = q.Where("appointment_id = ?", f.AppointmentID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []*Diagnosis
	if err := q.Order("recorded_date DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

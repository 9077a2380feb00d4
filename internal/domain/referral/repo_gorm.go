package referral

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type referralRepoGorm struct{ db *gorm.DB }

func NewReferralRepoGorm(db *gorm.DB) ReferralRepository {
	return &referralRepoGorm{db: db}
}

func (r *referralRepoGorm) Create(ctx context.Context, h *HospitalReferral) error {
	h.ID = 0
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *referralRepoGorm) GetByID(ctx context.Context, id int64) (*HospitalReferral, error) {
	var h HospitalReferral
	err := r.db.WithContext(ctx).First(&h, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *referralRepoGorm) Update(ctx context.Context, h *HospitalReferral) error {
	res := r.db.WithContext(ctx).Model(h).Select(
		"patient_name", "referring_doctor", "hospital_name", "department",
		"specialty_required", "reason", "urgency_level", "referral_date",
		"preferred_appointment_date", "status", "contact_number", "notes", "updated_at",
	).Updates(h)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *referralRepoGorm) List(ctx context.Context, f ReferralFilter, limit, offset int) ([]*HospitalReferral, int, error) {
	q := r.db.WithContext(ctx).Model(&HospitalReferral{})
	if f.Patient != "" {
		q = q.Where("patient_name = ?", f.Patient)
	}
	if f.Doctor != "" {
		q = q.Where("referring_doctor = ?", f.Doctor)
	}
	if f.Hospital != "" {
		q = q.Where("hospital_name = ?", f.Hospital)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Urgency != "" {
		q = q.Where("urgency_level = ?", string(f.Urgency))
	}
	if f.OverdueAt != nil {
		q = q.Where("status = ? AND preferred_appointment_date < ?", string(StatusPending), *f.OverdueAt)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*HospitalReferral
	err := q.Order(priorityOrderSQL + ", referral_date DESC, id DESC").
		Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

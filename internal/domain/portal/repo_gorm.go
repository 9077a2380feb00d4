package portal

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type vitalsRepoGorm struct{ db *gorm.DB }

func NewVitalsRepoGorm(db *gorm.DB) VitalsRepository {
	return &vitalsRepoGorm{db: db}
}

func (r *vitalsRepoGorm) Create(ctx context.Context, v *VitalsSubmission) error {
	v.ID = 0
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *vitalsRepoGorm) List(ctx context.Context, f VitalsFilter, limit, offset int) ([]*VitalsSubmission, int, error) {
	q := r.db.WithContext(ctx).Model(&VitalsSubmission{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Patient != "" {
		q = q.Where("patient_name = ?", f.Patient)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []*VitalsSubmission
	if err := q.Order("submitted_at DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

type refillRepoGorm struct{ db *gorm.DB }

func NewRefillRepoGorm(db *gorm.DB) RefillRepository {
	return &refillRepoGorm{db: db}
}

func (r *refillRepoGorm) Create(ctx context.Context, q *RefillRequest) error {
	q.ID = 0
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *refillRepoGorm) GetByID(ctx context.Context, id int64) (*RefillRequest, error) {
	var q RefillRequest
	err := r.db.WithContext(ctx).First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *refillRepoGorm) Update(ctx context.Context, q *RefillRequest) error {
	res := r.db.WithContext(ctx).Model(q).
		Select("medication_name", "quantity", "notes", "status", "updated_at").
		Updates(q)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *refillRepoGorm) List(ctx context.Context, f RefillFilter, limit, offset int) ([]*RefillRequest, int, error) {
	q := r.db.WithContext(ctx).Model(&RefillRequest{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Patient != "" {
		q = q.Where("patient_name = ?", f.Patient)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []*RefillRequest
	if err := q.Order("requested_at DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

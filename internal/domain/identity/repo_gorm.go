package identity

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type userRepoGorm struct{ db *gorm.DB }

// NewUserRepoGorm expects a DB opened with TranslateError so duplicate
// usernames surface as gorm.ErrDuplicatedKey.
func NewUserRepoGorm(db *gorm.DB) UserRepository {
	return &userRepoGorm{db: db}
}

func (r *userRepoGorm) Create(ctx context.Context, u *User) error {
	u.ID = 0
	err := r.db.WithContext(ctx).Create(u).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	// MySQL does not name the violated index in a way gorm exposes.
	if u.PatientKey != nil {
		if _, lookupErr := r.GetByPatientKey(ctx, *u.PatientKey); lookupErr == nil {
			return ErrPatientNameTaken
		}
	}
	return ErrUsernameTaken
}

func (r *userRepoGorm) GetByPatientKey(ctx context.Context, key string) (*User, error) {
	return r.first(ctx, "patient_key = ?", key)
}

func (r *userRepoGorm) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepoGorm) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepoGorm) first(ctx context.Context, cond string, arg interface{}) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where(cond, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

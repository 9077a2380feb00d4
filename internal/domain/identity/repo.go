package identity

import "context"

type UserRepository interface {
	// Create returns ErrUsernameTaken when the username exists and
	// ErrPatientNameTaken when the patient key does.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByPatientKey(ctx context.Context, key string) (*User, error)
}

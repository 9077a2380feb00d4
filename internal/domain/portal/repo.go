package portal

import "context"

type VitalsRepository interface {
	Create(ctx context.Context, v *VitalsSubmission) error
	// List returns matching submissions, newest first.
	List(ctx context.Context, f VitalsFilter, limit, offset int) ([]*VitalsSubmission, int, error)
}

type RefillRepository interface {
	Create(ctx context.Context, r *RefillRequest) error
	GetByID(ctx context.Context, id int64) (*RefillRequest, error)
	Update(ctx context.Context, r *RefillRequest) error
	// List returns matching requests, newest first.
	List(ctx context.Context, f RefillFilter, limit, offset int) ([]*RefillRequest, int, error)
}

type VitalsFilter struct {
	UserID  int64
	Patient string
}

func (f VitalsFilter) Matches(v *VitalsSubmission) bool {
	return (f.UserID == 0 || v.UserID == f.UserID) &&
		(f.Patient == "" || v.PatientName == f.Patient)
}

type RefillFilter struct {
	UserID  int64
	Patient string
	Status  RefillStatus
}

func (f RefillFilter) Matches(r *RefillRequest) bool {
	return (f.UserID == 0 || r.UserID == f.UserID) &&
		(f.Patient == "" || r.PatientName == f.Patient) &&
		(f.Status == "" || r.Status == f.Status)
}

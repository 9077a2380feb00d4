package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telehealth/clinic/internal/platform/db"
)

// -- Vitals --

type vitalsRepoPG struct{ pool *pgxpool.Pool }

func NewVitalsRepoPG(pool *pgxpool.Pool) VitalsRepository {
	return &vitalsRepoPG{pool: pool}
}

func (r *vitalsRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const vitalsCols = `id, user_id, patient_name, pulse, temperature, respiration,
	blood_pressure, weight, height, oxygen, submitted_at`

func (r *vitalsRepoPG) scanVitals(row pgx.Row) (*VitalsSubmission, error) {
	var v VitalsSubmission
	var userID *int64
	var bp *string
	var weight, height *float64
	err := row.Scan(&v.ID, &userID, &v.PatientName, &v.Pulse, &v.Temperature, &v.Respiration,
		&bp, &weight, &height, &v.Oxygen, &v.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		v.UserID = *userID
	}
	if bp != nil {
		v.BloodPressure = *bp
	}
	if weight != nil {
		v.Weight = *weight
	}
	if height != nil {
		v.Height = *height
	}
	return &v, nil
}

func (r *vitalsRepoPG) Create(ctx context.Context, v *VitalsSubmission) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vitals_submissions (user_id, patient_name, pulse, temperature, respiration,
			blood_pressure, weight, height, oxygen)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, submitted_at`,
		nullID(v.UserID), v.PatientName, v.Pulse, v.Temperature, v.Respiration,
		v.BloodPressure, nullFloat(v.Weight), nullFloat(v.Height), v.Oxygen,
	).Scan(&v.ID, &v.SubmittedAt)
}

func (r *vitalsRepoPG) List(ctx context.Context, f VitalsFilter, limit, offset int) ([]*VitalsSubmission, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.UserID != 0 {
		where += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, f.UserID)
		idx++
	}
	if f.Patient != "" {
		where += fmt.Sprintf(` AND patient_name = $%d`, idx)
		args = append(args, f.Patient)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vitals_submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vitalsCols + ` FROM vitals_submissions` + where +
		fmt.Sprintf(` ORDER BY submitted_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*VitalsSubmission
	for rows.Next() {
		v, err := r.scanVitals(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// -- Refills --

type refillRepoPG struct{ pool *pgxpool.Pool }

func NewRefillRepoPG(pool *pgxpool.Pool) RefillRepository {
	return &refillRepoPG{pool: pool}
}

func (r *refillRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const refillCols = `id, user_id, patient_name, medication_name, quantity, notes, status,
	requested_at, updated_at`

func (r *refillRepoPG) scanRefill(row pgx.Row) (*RefillRequest, error) {
	var q RefillRequest
	var userID *int64
	var notes *string
	var status string
	err := row.Scan(&q.ID, &userID, &q.PatientName, &q.MedicationName, &q.Quantity, &notes, &status,
		&q.RequestedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID != nil {
		q.UserID = *userID
	}
	if notes != nil {
		q.Notes = *notes
	}
	q.Status = RefillStatus(status)
	return &q, nil
}

func (r *refillRepoPG) Create(ctx context.Context, q *RefillRequest) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO refill_requests (user_id, patient_name, medication_name, quantity, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, requested_at, updated_at`,
		nullID(q.UserID), q.PatientName, q.MedicationName, q.Quantity, q.Notes, string(q.Status),
	).Scan(&q.ID, &q.RequestedAt, &q.UpdatedAt)
}

func (r *refillRepoPG) GetByID(ctx context.Context, id int64) (*RefillRequest, error) {
	return r.scanRefill(r.conn(ctx).QueryRow(ctx, `SELECT `+refillCols+` FROM refill_requests WHERE id = $1`, id))
}

func (r *refillRepoPG) Update(ctx context.Context, q *RefillRequest) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE refill_requests SET medication_name=$2, quantity=$3, notes=$4, status=$5,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		q.ID, q.MedicationName, q.Quantity, q.Notes, string(q.Status),
	).Scan(&q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *refillRepoPG) List(ctx context.Context, f RefillFilter, limit, offset int) ([]*RefillRequest, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.UserID != 0 {
		where += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, f.UserID)
		idx++
	}
	if f.Patient != "" {
		where += fmt.Sprintf(` AND patient_name = $%d`, idx)
		args = append(args, f.Patient)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM refill_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + refillCols + ` FROM refill_requests` + where +
		fmt.Sprintf(` ORDER BY requested_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*RefillRequest
	for rows.Next() {
		q, err := r.scanRefill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

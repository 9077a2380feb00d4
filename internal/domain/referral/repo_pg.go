package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telehealth/clinic/internal/platform/db"
)

type referralRepoPG struct{ pool *pgxpool.Pool }

func NewReferralRepoPG(pool *pgxpool.Pool) ReferralRepository {
	return &referralRepoPG{pool: pool}
}

func (r *referralRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const referralCols = `id, patient_name, referring_doctor, hospital_name, department,
	specialty_required, reason, urgency_level, referral_date, preferred_appointment_date,
	status, contact_number, notes, created_at, updated_at`

func (r *referralRepoPG) scanReferral(row pgx.Row) (*HospitalReferral, error) {
	var h HospitalReferral
	var specialty, contact, notes *string
	var urgency, status string
	err := row.Scan(&h.ID, &h.PatientName, &h.ReferringDoctor, &h.HospitalName, &h.Department,
		&specialty, &h.Reason, &urgency, &h.ReferralDate, &h.PreferredAppointmentDate,
		&status, &contact, &notes, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if specialty != nil {
		h.SpecialtyRequired = *specialty
	}
	if contact != nil {
		h.ContactNumber = *contact
	}
	if notes != nil {
		h.Notes = *notes
	}
	h.UrgencyLevel = Urgency(urgency)
	h.Status = Status(status)
	return &h, nil
}

func (r *referralRepoPG) Create(ctx context.Context, h *HospitalReferral) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospital_referrals (patient_name, referring_doctor, hospital_name, department,
			specialty_required, reason, urgency_level, referral_date, preferred_appointment_date,
			status, contact_number, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`,
		h.PatientName, h.ReferringDoctor, h.HospitalName, h.Department,
		h.SpecialtyRequired, h.Reason, string(h.UrgencyLevel), h.ReferralDate, h.PreferredAppointmentDate,
		string(h.Status), h.ContactNumber, h.Notes,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (r *referralRepoPG) GetByID(ctx context.Context, id int64) (*HospitalReferral, error) {
	return r.scanReferral(r.conn(ctx).QueryRow(ctx,
		`SELECT `+referralCols+` FROM hospital_referrals WHERE id = $1`, id))
}

func (r *referralRepoPG) Update(ctx context.Context, h *HospitalReferral) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE hospital_referrals SET patient_name=$2, referring_doctor=$3, hospital_name=$4,
			department=$5, specialty_required=$6, reason=$7, urgency_level=$8, referral_date=$9,
			preferred_appointment_date=$10, status=$11, contact_number=$12, notes=$13,
			updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		h.ID, h.PatientName, h.ReferringDoctor, h.HospitalName,
		h.Department, h.SpecialtyRequired, h.Reason, string(h.UrgencyLevel), h.ReferralDate,
		h.PreferredAppointmentDate, string(h.Status), h.ContactNumber, h.Notes,
	).Scan(&h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *referralRepoPG) List(ctx context.Context, f ReferralFilter, limit, offset int) ([]*HospitalReferral, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Patient != "" {
		where += fmt.Sprintf(` AND patient_name = $%d`, idx)
		args = append(args, f.Patient)
		idx++
	}
	if f.Doctor != "" {
		where += fmt.Sprintf(` AND referring_doctor = $%d`, idx)
		args = append(args, f.Doctor)
		idx++
	}
	if f.Hospital != "" {
		where += fmt.Sprintf(` AND hospital_name = $%d`, idx)
		args = append(args, f.Hospital)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.Urgency != "" {
		where += fmt.Sprintf(` AND urgency_level = $%d`, idx)
		args = append(args, string(f.Urgency))
		idx++
	}
	if f.OverdueAt != nil {
		where += fmt.Sprintf(` AND status = 'PENDING' AND preferred_appointment_date < $%d`, idx)
		args = append(args, *f.OverdueAt)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM hospital_referrals`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + referralCols + ` FROM hospital_referrals` + where +
		fmt.Sprintf(` ORDER BY %s, referral_date DESC, id DESC LIMIT $%d OFFSET $%d`, priorityOrderSQL, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*HospitalReferral
	for rows.Next() {
		h, err := r.scanReferral(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

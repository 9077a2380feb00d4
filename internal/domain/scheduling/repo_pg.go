package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telehealth/clinic/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_name, specialist_name, appointment_date, time_slot,
	status, consultation_type, notes, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, ctype string
	var slot, notes *string
	err := row.Scan(&a.ID, &a.PatientName, &a.SpecialistName, &a.AppointmentDate, &slot,
		&status, &ctype, &notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if slot != nil {
		a.TimeSlot = *slot
	}
	if notes != nil {
		a.Notes = *notes
	}
	a.Status = Status(status)
	a.ConsultationType = ConsultationType(ctype)
	a.ApplyDefaults()
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (patient_name, specialist_name, appointment_date, time_slot,
			status, consultation_type, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		a.PatientName, a.SpecialistName, a.AppointmentDate, a.TimeSlot,
		string(a.Status), string(a.ConsultationType), a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET patient_name=$2, specialist_name=$3, appointment_date=$4,
			time_slot=$5, status=$6, consultation_type=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientName, a.SpecialistName, a.AppointmentDate, a.TimeSlot,
		string(a.Status), string(a.ConsultationType), a.Notes,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Search != "" {
		where += fmt.Sprintf(` AND (LOWER(patient_name) LIKE $%d OR LOWER(specialist_name) LIKE $%d)`, idx, idx)
		args = append(args, likePattern(f.Search))
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.OpenOnly {
		where += ` AND status IN ('SCHEDULED', 'RESCHEDULED')`
	}
	if f.Patient != "" {
		where += fmt.Sprintf(` AND patient_name = $%d`, idx)
		args = append(args, f.Patient)
		idx++
	}
	if f.Specialist != "" {
		where += fmt.Sprintf(` AND specialist_name = $%d`, idx)
		args = append(args, f.Specialist)
		idx++
	}
	if f.Date != nil {
		where += fmt.Sprintf(` AND appointment_date = $%d`, idx)
		args = append(args, *f.Date)
		idx++
	}
	if f.From != nil {
		where += fmt.Sprintf(` AND appointment_date >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY appointment_date ASC NULLS LAST, %s, id LIMIT $%d OFFSET $%d`, slotOrderSQL, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

package clinical

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telehealth/clinic/internal/platform/db"
)

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository {
	return &diagnosisRepoPG{pool: pool}
}

func (r *diagnosisRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const diagCols = `id, appointment_id, patient_name, doctor_name, diagnosis, symptoms,
	prescription, treatment_plan, follow_up_instructions, recorded_date, severity, status,
	created_at, updated_at`

func (r *diagnosisRepoPG) scanDiag(row pgx.Row) (*Diagnosis, error) {
	var d Diagnosis
	var apptID *int64
	var symptoms, prescription, plan, followUp *string
	var severity, status string
	err := row.Scan(&d.ID, &apptID, &d.PatientName, &d.DoctorName, &d.DiagnosisText, &symptoms,
		&prescription, &plan, &followUp, &d.RecordedDate, &severity, &status,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if apptID != nil {
		d.AppointmentID = *apptID
	}
	d.Symptoms = strVal(symptoms)
	d.PrescriptionDetails = strVal(prescription)
	d.TreatmentPlan = strVal(plan)
	d.FollowUpInstructions = strVal(followUp)
	d.Severity = Severity(severity)
	d.Status = Status(status)
	return &d, nil
}

func (r *diagnosisRepoPG) Create(ctx context.Context, d *Diagnosis) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO diagnoses (appointment_id, patient_name, doctor_name, diagnosis, symptoms,
			prescription, treatment_plan, follow_up_instructions, recorded_date, severity, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id, created_at, updated_at`,
		nullID(d.AppointmentID), d.PatientName, d.DoctorName, d.DiagnosisText, d.Symptoms,
		d.PrescriptionDetails, d.TreatmentPlan, d.FollowUpInstructions, d.RecordedDate,
		string(d.Severity), string(d.Status),
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *diagnosisRepoPG) GetByID(ctx context.Context, id int64) (*Diagnosis, error) {
	return r.scanDiag(r.conn(ctx).QueryRow(ctx, `SELECT `+diagCols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *diagnosisRepoPG) Update(ctx context.Context, d *Diagnosis) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE diagnoses SET appointment_id=$2, patient_name=$3, doctor_name=$4, diagnosis=$5,
			symptoms=$6, prescription=$7, treatment_plan=$8, follow_up_instructions=$9,
			recorded_date=$10, severity=$11, status=$12, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, nullID(d.AppointmentID), d.PatientName, d.DoctorName, d.DiagnosisText,
		d.Symptoms, d.PrescriptionDetails, d.TreatmentPlan, d.FollowUpInstructions,
		d.RecordedDate, string(d.Severity), string(d.Status),
	).Scan(&d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *diagnosisRepoPG) List(ctx context.Context, f DiagnosisFilter, limit, offset int) ([]*Diagnosis, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Patient != "" {
		where += fmt.Sprintf(` AND patient_name = $%d`, idx)
		args = append(args, f.Patient)
		idx++
	}
	if f.Doctor != "" {
		where += fmt.Sprintf(` AND doctor_name = $%d`, idx)
		args = append(args, f.Doctor)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.Severity != "" {
		where += fmt.Sprintf(` AND severity = $%d`, idx)
		args = append(args, string(f.Severity))
		idx++
	}
	if f.AppointmentID != 0 {
		where += fmt.Sprintf(` AND appointment_id = $%d`, idx)
		args = append(args, f.AppointmentID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + diagCols + ` FROM diagnoses` + where +
		fmt.Sprintf(` ORDER BY recorded_date DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Diagnosis
	for rows.Next() {
		d, err := r.scanDiag(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

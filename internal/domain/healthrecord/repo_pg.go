package healthrecord

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const recordSelect = `SELECT h.id, h.patient_id, pt.username, h.provider_id, pr.username, h.record_type,
	h.title, h.description, h.height_cm, h.weight_kg, h.bp_systolic, h.bp_diastolic, h.heart_rate_bpm,
	h.temperature_c, h.symptoms, h.diagnosis, h.treatment_plan, h.medications, h.follow_up_date,
	h.is_confidential, h.is_emergency, h.status, h.record_date, h.created_at, h.updated_at
	FROM health_records h
	JOIN users pt ON pt.id = h.patient_id
	JOIN users pr ON pr.id = h.provider_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var h Record
	err := row.Scan(&h.ID, &h.PatientID, &h.PatientName, &h.ProviderID, &h.ProviderName, &h.RecordType,
		&h.Title, &h.Description, &h.HeightCM, &h.WeightKG, &h.BPSystolic, &h.BPDiastolic, &h.HeartRateBPM,
		&h.TemperatureC, &h.Symptoms, &h.Diagnosis, &h.TreatmentPlan, &h.Medications, &h.FollowUpDate,
		&h.IsConfidential, &h.IsEmergency, &h.Status, &h.RecordDate, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, db.NotFound(err, "health record")
	}
	return &h, nil
}

func (r *repoPG) Create(ctx context.Context, h *Record) error {
	h.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_records (id, patient_id, provider_id, record_type, title, description,
			height_cm, weight_kg, bp_systolic, bp_diastolic, heart_rate_bpm, temperature_c,
			symptoms, diagnosis, treatment_plan, medications, follow_up_date,
			is_confidential, is_emergency, status, record_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at`,
		h.ID, h.PatientID, h.ProviderID, h.RecordType, h.Title, h.Description,
		h.HeightCM, h.WeightKG, h.BPSystolic, h.BPDiastolic, h.HeartRateBPM, h.TemperatureC,
		h.Symptoms, h.Diagnosis, h.TreatmentPlan, h.Medications, h.FollowUpDate,
		h.IsConfidential, h.IsEmergency, h.Status, h.RecordDate).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE h.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, h *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE health_records SET record_type = $2, title = $3, description = $4,
			height_cm = $5, weight_kg = $6, bp_systolic = $7, bp_diastolic = $8, heart_rate_bpm = $9,
			temperature_c = $10, symptoms = $11, diagnosis = $12, treatment_plan = $13, medications = $14,
			follow_up_date = $15, is_confidential = $16, is_emergency = $17, status = $18, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		h.ID, h.RecordType, h.Title, h.Description,
		h.HeightCM, h.WeightKG, h.BPSystolic, h.BPDiastolic, h.HeartRateBPM,
		h.TemperatureC, h.Symptoms, h.Diagnosis, h.TreatmentPlan, h.Medications,
		h.FollowUpDate, h.IsConfidential, h.IsEmergency, h.Status).Scan(&h.UpdatedAt)
	return db.NotFound(err, "health record")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM health_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("health record")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	var clauses []string
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.PatientID != nil {
		add("h.patient_id = $%d", *f.PatientID)
	}
	if f.AssignedTo != nil {
		add(`h.patient_id IN (SELECT patient_id FROM patient_providers
			WHERE provider_id = $%d AND relationship_status = 'active')`, *f.AssignedTo)
	}
	if f.RecordType != "" {
		add("h.record_type = $%d", f.RecordType)
	}
	if f.Status != "" {
		add("h.status = $%d", f.Status)
	}
	where := "1=1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_records h WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	q := fmt.Sprintf(`%s WHERE %s ORDER BY h.record_date DESC LIMIT $%d OFFSET $%d`, recordSelect, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		h, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (r *repoPG) IsPatient(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = 'patient')`, id).Scan(&ok)
	return ok, err
}

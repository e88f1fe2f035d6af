package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment/entity"
)

// PostgresRepo provides data access for the assessments table using sqlx.
type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectColumns = `id, created_date, city, state, responsible_professional,
	patient_name, child_identified, guardian_present, guardian_name, visit_reason, referral_source, behavior_note,
	card_presented, vaccines_checked, schedule_complete, vaccines_overdue, guardian_guided, referred_to_clinic,
	weight_kg, height_m, bmi, nutrition_class, dietary_complaint, nutrition_guided, nutrition_referred,
	oral_hygiene_ok, visible_caries, pain_reported, hygiene_guided, dental_referred, dental_class,
	enrolled_in_program, referred_to_clinic_plan, referred_to_nutrition_plan, referred_to_dental_plan,
	referred_to_social_services, recorded_in_chart, next_assessment_date`

// EnsureTable creates the assessments table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *PostgresRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS assessments (
  id BIGSERIAL PRIMARY KEY,
  created_date DATE NOT NULL DEFAULT CURRENT_DATE,
  city TEXT NOT NULL DEFAULT 'Angicos',
  state TEXT NOT NULL DEFAULT 'RN',
  responsible_professional TEXT NOT NULL DEFAULT '',
  patient_name TEXT NOT NULL,
  child_identified BOOLEAN NOT NULL DEFAULT false,
  guardian_present BOOLEAN NOT NULL DEFAULT false,
  guardian_name TEXT NOT NULL DEFAULT '',
  visit_reason TEXT NOT NULL DEFAULT '',
  referral_source TEXT NOT NULL DEFAULT '',
  behavior_note TEXT NOT NULL DEFAULT '',
  card_presented BOOLEAN NOT NULL DEFAULT false,
  vaccines_checked BOOLEAN NOT NULL DEFAULT false,
  schedule_complete BOOLEAN NOT NULL DEFAULT false,
  vaccines_overdue BOOLEAN NOT NULL DEFAULT false,
  guardian_guided BOOLEAN NOT NULL DEFAULT false,
  referred_to_clinic BOOLEAN NOT NULL DEFAULT false,
  weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
  height_m DOUBLE PRECISION NOT NULL DEFAULT 0,
  bmi DOUBLE PRECISION NOT NULL DEFAULT 0,
  nutrition_class TEXT NOT NULL DEFAULT 'not_assessed',
  dietary_complaint TEXT NOT NULL DEFAULT '',
  nutrition_guided BOOLEAN NOT NULL DEFAULT false,
  nutrition_referred BOOLEAN NOT NULL DEFAULT false,
  oral_hygiene_ok BOOLEAN NOT NULL DEFAULT false,
  visible_caries BOOLEAN NOT NULL DEFAULT false,
  pain_reported BOOLEAN NOT NULL DEFAULT false,
  hygiene_guided BOOLEAN NOT NULL DEFAULT false,
  dental_referred BOOLEAN NOT NULL DEFAULT false,
  dental_class TEXT NOT NULL DEFAULT 'routine',
  enrolled_in_program BOOLEAN NOT NULL DEFAULT false,
  referred_to_clinic_plan BOOLEAN NOT NULL DEFAULT false,
  referred_to_nutrition_plan BOOLEAN NOT NULL DEFAULT false,
  referred_to_dental_plan BOOLEAN NOT NULL DEFAULT false,
  referred_to_social_services BOOLEAN NOT NULL DEFAULT false,
  recorded_in_chart BOOLEAN NOT NULL DEFAULT false,
  next_assessment_date DATE
);
CREATE INDEX IF NOT EXISTS idx_assessments_patient_date ON assessments(patient_name, created_date);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return apperr.Unavailable("ensure assessments table", err)
	}
	return nil
}

// Create inserts a new row and returns the id assigned by the sequence.
func (r *PostgresRepo) Create(ctx context.Context, a *entity.Assessment) (int64, error) {
	const q = `INSERT INTO assessments (created_date, city, state, responsible_professional,
		patient_name, child_identified, guardian_present, guardian_name, visit_reason, referral_source, behavior_note,
		card_presented, vaccines_checked, schedule_complete, vaccines_overdue, guardian_guided, referred_to_clinic,
		weight_kg, height_m, bmi, nutrition_class, dietary_complaint, nutrition_guided, nutrition_referred,
		oral_hygiene_ok, visible_caries, pain_reported, hygiene_guided, dental_referred, dental_class,
		enrolled_in_program, referred_to_clinic_plan, referred_to_nutrition_plan, referred_to_dental_plan,
		referred_to_social_services, recorded_in_chart, next_assessment_date)
	VALUES (:created_date, :city, :state, :responsible_professional,
		:patient_name, :child_identified, :guardian_present, :guardian_name, :visit_reason, :referral_source, :behavior_note,
		:card_presented, :vaccines_checked, :schedule_complete, :vaccines_overdue, :guardian_guided, :referred_to_clinic,
		:weight_kg, :height_m, :bmi, :nutrition_class, :dietary_complaint, :nutrition_guided, :nutrition_referred,
		:oral_hygiene_ok, :visible_caries, :pain_reported, :hygiene_guided, :dental_referred, :dental_class,
		:enrolled_in_program, :referred_to_clinic_plan, :referred_to_nutrition_plan, :referred_to_dental_plan,
		:referred_to_social_services, :recorded_in_chart, :next_assessment_date)
	RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		return 0, apperr.Unavailable("insert assessment", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, apperr.Unavailable("insert assessment", err)
		}
		return 0, apperr.Unavailable("insert assessment", errors.New("no id returned"))
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, apperr.Unavailable("insert assessment", err)
	}
	a.ID = id
	return id, nil
}

// Update replaces every column of an existing row in a single statement.
func (r *PostgresRepo) Update(ctx context.Context, a *entity.Assessment) error {
	const q = `UPDATE assessments SET created_date=:created_date, city=:city, state=:state,
		responsible_professional=:responsible_professional, patient_name=:patient_name,
		child_identified=:child_identified, guardian_present=:guardian_present, guardian_name=:guardian_name,
		visit_reason=:visit_reason, referral_source=:referral_source, behavior_note=:behavior_note,
		card_presented=:card_presented, vaccines_checked=:vaccines_checked, schedule_complete=:schedule_complete,
		vaccines_overdue=:vaccines_overdue, guardian_guided=:guardian_guided, referred_to_clinic=:referred_to_clinic,
		weight_kg=:weight_kg, height_m=:height_m, bmi=:bmi, nutrition_class=:nutrition_class,
		dietary_complaint=:dietary_complaint, nutrition_guided=:nutrition_guided, nutrition_referred=:nutrition_referred,
		oral_hygiene_ok=:oral_hygiene_ok, visible_caries=:visible_caries, pain_reported=:pain_reported,
		hygiene_guided=:hygiene_guided, dental_referred=:dental_referred, dental_class=:dental_class,
		enrolled_in_program=:enrolled_in_program, referred_to_clinic_plan=:referred_to_clinic_plan,
		referred_to_nutrition_plan=:referred_to_nutrition_plan, referred_to_dental_plan=:referred_to_dental_plan,
		referred_to_social_services=:referred_to_social_services, recorded_in_chart=:recorded_in_chart,
		next_assessment_date=:next_assessment_date
	WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, a)
	if err != nil {
		return apperr.Unavailable("update assessment", err)
	}
	return affectedOne(res, "update assessment")
}

// Delete removes a row by id.
func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id=$1`, id)
	if err != nil {
		return apperr.Unavailable("delete assessment", err)
	}
	return affectedOne(res, "delete assessment")
}

// GetByID fetches a full row.
func (r *PostgresRepo) GetByID(ctx context.Context, id int64) (*entity.Assessment, error) {
	var row entity.Assessment
	err := r.db.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM assessments WHERE id=$1`, id)
	if err != nil {
		return nil, mapGetErr("get assessment", err)
	}
	return &row, nil
}

// List returns all rows ordered by id.
func (r *PostgresRepo) List(ctx context.Context) ([]*entity.Assessment, error) {
	var rows []*entity.Assessment
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+selectColumns+` FROM assessments ORDER BY id`); err != nil {
		return nil, apperr.Unavailable("list assessments", err)
	}
	return rows, nil
}

// FindByNameAndDate returns the lowest id matching both patient name and creation date.
func (r *PostgresRepo) FindByNameAndDate(ctx context.Context, name string, date entity.Date) (*entity.Assessment, error) {
	var row entity.Assessment
	err := r.db.GetContext(ctx, &row,
		`SELECT `+selectColumns+` FROM assessments WHERE patient_name=$1 AND created_date=$2 ORDER BY id LIMIT 1`,
		name, date)
	if err != nil {
		return nil, mapGetErr("find assessment", err)
	}
	return &row, nil
}

func mapGetErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return apperr.Unavailable(op, err)
}

func affectedOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable(op, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

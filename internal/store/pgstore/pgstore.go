// Package pgstore implements appointment.Store over the clinic Postgres
// database.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema files for db.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	localDateTime = "2006-01-02T15:04:05"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ appointment.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectAppointments = `
	SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.type, a.status, a.notes, a.version,
	       p.first_name, p.last_name, p.email, p.phone_number,
	       d.first_name, d.last_name, d.email, d.phone_number, d.specialization
	FROM appointments a
	LEFT JOIN users p ON p.id = a.patient_id
	LEFT JOIN users d ON d.id = a.doctor_id`

// Helpers

type personCols struct {
	first, last, email, phone, specialization *string
}

func (c personCols) raw(id int64) map[string]any {
	m := map[string]any{"id": id}
	for k, v := range map[string]*string{
		"firstName":      c.first,
		"lastName":       c.last,
		"email":          c.email,
		"phoneNumber":    c.phone,
		"specialization": c.specialization,
	} {
		if v != nil {
			m[k] = *v
		}
	}
	return m
}

// scanAppointment emits a row the way the clinic backend serializes it:
// numeric ids, a LocalDateTime string and embedded people when joined.
func scanAppointment(row pgx.Row) (appointment.RawAppointment, error) {
	var (
		id                  int64
		patientID, doctorID *int64
		date                time.Time
		typ, status         string
		notes               *string
		version             int64
		p, d                personCols
	)
	err := row.Scan(
		&id, &patientID, &doctorID, &date, &typ, &status, &notes, &version,
		&p.first, &p.last, &p.email, &p.phone,
		&d.first, &d.last, &d.email, &d.phone, &d.specialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrNotFound
		}
		return nil, err
	}

	raw := appointment.RawAppointment{
		"id":              id,
		"appointmentDate": date.Format(localDateTime),
		"type":            typ,
		"status":          status,
		"version":         version,
	}
	if notes != nil {
		raw["notes"] = *notes
	}
	if patientID != nil {
		raw["patientId"] = *patientID
		raw["patient"] = p.raw(*patientID)
	}
	if doctorID != nil {
		raw["doctorId"] = *doctorID
		raw["doctor"] = d.raw(*doctorID)
	}
	return raw, nil
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	return n, err == nil && n > 0
}

// mapError translates constraint violations into store sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return appointment.ErrSlotTaken
		case pgForeignKeyViolation:
			return fmt.Errorf("unknown patient or doctor: %w", appointment.ErrNotFound)
		}
	}
	return err
}

// Interface methods

func (s *Store) ListAppointments(ctx context.Context, filter appointment.AppointmentFilter) ([]appointment.RawAppointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.PatientID != "" {
		id, ok := parseID(filter.PatientID)
		if !ok {
			return []appointment.RawAppointment{}, nil
		}
		add("a.patient_id = $%d", id)
	}
	if filter.DoctorID != "" {
		id, ok := parseID(filter.DoctorID)
		if !ok {
			return []appointment.RawAppointment{}, nil
		}
		add("a.doctor_id = $%d", id)
	}
	if filter.From != nil {
		add("a.appointment_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("a.appointment_date < $%d", *filter.To)
	}

	q := selectAppointments
	if len(where) > 0 {
		q += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	q += "\n\tORDER BY a.appointment_date, a.id"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	result := []appointment.RawAppointment{}
	for rows.Next() {
		raw, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.listUsers(ctx, appointment.RolePatient)
}

func (s *Store) ListDoctors(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.listUsers(ctx, appointment.RoleDoctor)
}

func (s *Store) listUsers(ctx context.Context, role string) ([]appointment.RawPerson, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, email, phone_number, specialization
		FROM users
		WHERE role = $1
		ORDER BY id
	`, role)
	if err != nil {
		return nil, fmt.Errorf("query %s users: %w", role, err)
	}
	defer rows.Close()

	result := []appointment.RawPerson{}
	for rows.Next() {
		var (
			id int64
			c  personCols
		)
		if err := rows.Scan(&id, &c.first, &c.last, &c.email, &c.phone, &c.specialization); err != nil {
			return nil, err
		}
		result = append(result, c.raw(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateAppointment(ctx context.Context, payload appointment.AppointmentPayload) (appointment.RawAppointment, error) {
	patientID, ok := parseID(payload.PatientID)
	if !ok {
		return nil, fmt.Errorf("patient %q: %w", payload.PatientID, appointment.ErrNotFound)
	}
	doctorID, ok := parseID(payload.DoctorID)
	if !ok {
		return nil, fmt.Errorf("doctor %q: %w", payload.DoctorID, appointment.ErrNotFound)
	}

	var raw appointment.RawAppointment
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments (patient_id, doctor_id, appointment_date, type, status, notes)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
			RETURNING id
		`, patientID, doctorID, payload.AppointmentDate, payload.Type, string(payload.Status), payload.Notes).Scan(&id)
		if err != nil {
			return mapError(err)
		}
		raw, err = scanAppointment(tx.QueryRow(ctx, selectAppointments+"\n\tWHERE a.id = $1", id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// updatable maps payload keys to columns.
var updatable = map[string]string{
	"status":          "status",
	"type":            "type",
	"notes":           "notes",
	"appointmentDate": "appointment_date",
	"patientId":       "patient_id",
	"doctorId":        "doctor_id",
}

func columnValue(key string, v any) (any, error) {
	switch key {
	case "appointmentDate":
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(localDateTime, t)
			if err != nil {
				return nil, fmt.Errorf("appointmentDate: %w", err)
			}
			return parsed, nil
		}
	case "patientId", "doctorId":
		if s, ok := v.(string); ok {
			if id, ok := parseID(s); ok {
				return id, nil
			}
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unsupported value %v for %s", v, key)
}

func (s *Store) UpdateAppointment(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (appointment.RawAppointment, error) {
	apptID, ok := parseID(id)
	if !ok {
		return nil, appointment.ErrNotFound
	}

	sets := []string{"version = version + 1", "updated_at = now()"}
	args := []any{apptID}
	for key, v := range fields {
		col, ok := updatable[key]
		if !ok {
			return nil, fmt.Errorf("field %s cannot be updated", key)
		}
		val, err := columnValue(key, v)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	q := "UPDATE appointments SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
		q += fmt.Sprintf(" AND version = $%d", len(args))
	}

	var raw appointment.RawAppointment
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)", apptID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return appointment.ErrVersionConflict
			}
			return appointment.ErrNotFound
		}
		raw, err = scanAppointment(tx.QueryRow(ctx, selectAppointments+"\n\tWHERE a.id = $1", apptID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	apptID, ok := parseID(id)
	if !ok {
		return appointment.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM appointments WHERE id = $1", apptID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return appointment.ErrNotFound
	}
	return nil
}

// Ping is used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

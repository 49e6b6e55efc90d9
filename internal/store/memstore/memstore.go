// Package memstore is an in-memory appointment.Store for development and
// tests. Records are kept in whatever shape they were seeded with.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const localDateTime = "2006-01-02T15:04:05"

type Store struct {
	mu       sync.RWMutex
	loc      *time.Location
	order    []string
	appts    map[string]appointment.RawAppointment
	versions map[string]int64
	patients []appointment.RawPerson
	doctors  []appointment.RawPerson
}

var _ appointment.Store = (*Store)(nil)

// New returns an empty store. loc is used to compare booking instants and
// defaults to time.Local.
func New(loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		loc:      loc,
		appts:    make(map[string]appointment.RawAppointment),
		versions: make(map[string]int64),
	}
}

func (s *Store) AddPatient(p appointment.RawPerson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = append(s.patients, appointment.RawPerson(cloneMap(p)))
}

func (s *Store) AddDoctor(d appointment.RawPerson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors = append(s.doctors, appointment.RawPerson(cloneMap(d)))
}

// AddAppointment seeds a raw record as is. A record without an id gets a
// generated one, which is returned.
func (s *Store) AddAppointment(raw appointment.RawAppointment) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := appointment.RawAppointment(cloneMap(raw))
	id, ok := recordID(rec)
	if !ok {
		id = uuid.NewString()
		rec["id"] = id
	}
	var version int64
	if n, ok := appointment.CoerceInt(rec["version"]); ok {
		version = n
	}
	s.put(id, rec, version)
	return id
}

func (s *Store) put(id string, rec appointment.RawAppointment, version int64) {
	if _, exists := s.appts[id]; !exists {
		s.order = append(s.order, id)
	}
	s.appts[id] = rec
	s.versions[id] = version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.appts)
}

func (s *Store) ListAppointments(ctx context.Context, filter appointment.AppointmentFilter) ([]appointment.RawAppointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := filter != (appointment.AppointmentFilter{})
	out := make([]appointment.RawAppointment, 0, len(s.order))
	for _, id := range s.order {
		rec := s.appts[id]
		if filtered && !s.matches(rec, filter) {
			continue
		}
		out = append(out, appointment.RawAppointment(cloneMap(rec)))
	}
	return out, nil
}

func (s *Store) matches(rec appointment.RawAppointment, f appointment.AppointmentFilter) bool {
	a, err := appointment.Resolve(rec, nil, nil, s.loc)
	if err != nil {
		return false
	}
	if f.PatientID != "" && a.Patient.ID != f.PatientID {
		return false
	}
	if f.DoctorID != "" && a.Doctor.ID != f.DoctorID {
		return false
	}
	if f.From != nil && a.ScheduledAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !a.ScheduledAt.Before(*f.To) {
		return false
	}
	return true
}

func (s *Store) ListPatients(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.people(ctx, func() []appointment.RawPerson { return s.patients })
}

func (s *Store) ListDoctors(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.people(ctx, func() []appointment.RawPerson { return s.doctors })
}

func (s *Store) people(ctx context.Context, src func() []appointment.RawPerson) ([]appointment.RawPerson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := src()
	out := make([]appointment.RawPerson, 0, len(list))
	for _, p := range list {
		out = append(out, appointment.RawPerson(cloneMap(p)))
	}
	return out, nil
}

func (s *Store) CreateAppointment(ctx context.Context, payload appointment.AppointmentPayload) (appointment.RawAppointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	rec := appointment.RawAppointment(payload.Fields())
	rec["id"] = id
	rec["appointmentDate"] = payload.AppointmentDate.In(s.loc).Format(localDateTime)
	rec["version"] = int64(1)
	if s.taken(rec, "") {
		return nil, appointment.ErrSlotTaken
	}
	s.put(id, rec, 1)
	return appointment.RawAppointment(cloneMap(rec)), nil
}

// taken reports whether another live record already holds rec's doctor and
// instant.
func (s *Store) taken(rec appointment.RawAppointment, self string) bool {
	a, err := appointment.Resolve(rec, nil, nil, s.loc)
	if err != nil || a.Doctor.ID == "" || a.Status == appointment.StatusCancelled {
		return false
	}
	for _, id := range s.order {
		if id == self {
			continue
		}
		b, err := appointment.Resolve(s.appts[id], nil, nil, s.loc)
		if err != nil || b.Status == appointment.StatusCancelled {
			continue
		}
		if b.Doctor.ID == a.Doctor.ID && b.ScheduledAt.Equal(a.ScheduledAt) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateAppointment(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (appointment.RawAppointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.appts[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	version := s.versions[id]
	if expectedVersion > 0 && expectedVersion != version {
		return nil, appointment.ErrVersionConflict
	}

	next := appointment.RawAppointment(cloneMap(cur))
	for k, v := range fields {
		next[k] = v
	}
	version++
	next["version"] = version
	if s.taken(next, id) {
		return nil, appointment.ErrSlotTaken
	}
	s.put(id, next, version)
	return appointment.RawAppointment(cloneMap(next)), nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appts[id]; !ok {
		return appointment.ErrNotFound
	}
	delete(s.appts, id)
	delete(s.versions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ping always succeeds; it lets the readiness check treat every store alike.
func (s *Store) Ping(context.Context) error { return nil }

func recordID(m map[string]any) (string, bool) {
	for _, k := range []string{"id", "_id"} {
		if id, ok := appointment.CoerceID(m[k]); ok {
			return id, true
		}
	}
	return "", false
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case appointment.RawPerson:
		return appointment.RawPerson(cloneMap(x))
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

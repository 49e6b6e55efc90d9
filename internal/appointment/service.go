package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentTransition  = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventAppointmentExpired     = "APPOINTMENT_EXPIRED"
)

type Options struct {
	Hours    WorkingHours
	Location *time.Location
	Now      func() time.Time
}

// BookingRequest is a new appointment at a generated slot. A zero Status
// books as scheduled.
type BookingRequest struct {
	PatientID string
	DoctorID  string
	At        time.Time
	Type      string
	Notes     string
	Status    Status
}

// Service is the one scheduling module shared by every screen. It holds the
// canonical collection and applies writes to it only after the store
// confirms them.
type Service struct {
	store  Store
	locker redisclient.Locker
	opts   Options
	log    *zap.Logger

	mu       sync.RWMutex
	book     *Book
	patients *Directory
	doctors  *Directory
}

func NewService(store Store, locker redisclient.Locker, opts Options, logger *zap.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hours.SlotMinutes == 0 && opts.Hours.EndHour == 0 {
		opts.Hours = DefaultWorkingHours()
	}
	if locker == nil {
		locker = redisclient.NewLocalSlotLocker(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		locker:   locker,
		opts:     opts,
		log:      logger.Named("appointments"),
		book:     NewBook(nil),
		patients: NewDirectory(RolePatient, nil),
		doctors:  NewDirectory(RoleDoctor, nil),
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// Location is the zone every appointment instant is expressed in.
func (s *Service) Location() *time.Location { return s.opts.Location }

// Hours returns the default working hours.
func (s *Service) Hours() WorkingHours { return s.opts.Hours }

// Refresh rebuilds the collection from the store. On error the current
// collection is kept.
func (s *Service) Refresh(ctx context.Context) (Report, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list patients: %w", err)
	}
	doctors, err := s.store.ListDoctors(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list doctors: %w", err)
	}
	raws, err := s.store.ListAppointments(ctx, AppointmentFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list appointments: %w", err)
	}

	pdir := NewDirectory(RolePatient, patients)
	ddir := NewDirectory(RoleDoctor, doctors)
	appts, report := ResolveAll(raws, pdir, ddir, s.opts.Location)

	for _, d := range report.Dropped {
		s.log.Warn("dropped appointment record",
			zap.Int("index", d.Index),
			zap.String("appointment_id", d.ID),
			zap.Error(d.Err),
		)
	}
	for _, f := range report.Fallbacks {
		s.log.Debug("identity resolution fell back to placeholder",
			zap.String("appointment_id", f.AppointmentID),
			zap.String("role", f.Role),
			zap.String("candidate_id", f.CandidateID),
		)
	}
	for _, db := range DoubleBookings(appts) {
		s.log.Warn("doctor double booked",
			zap.String("doctor_id", db.DoctorID),
			zap.Time("at", db.At),
			zap.Strings("appointment_ids", db.AppointmentIDs),
		)
	}

	s.mu.Lock()
	s.book = NewBook(appts)
	s.patients = pdir
	s.doctors = ddir
	s.mu.Unlock()

	s.log.Info("appointments refreshed",
		zap.Int("appointments", len(appts)),
		zap.Int("patients", pdir.Len()),
		zap.Int("doctors", ddir.Len()),
		zap.Int("dropped", len(report.Dropped)),
		zap.Int("fallbacks", len(report.Fallbacks)),
	)
	return report, nil
}

// Appointments returns a snapshot of the collection in store order.
func (s *Service) Appointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.All()
}

func (s *Service) Get(id string) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.book.Get(id)
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return a, nil
}

func (s *Service) Query(opts QueryOptions) []Appointment {
	return Query(s.Appointments(), opts, s.now())
}

func (s *Service) Stats() Stats {
	return Summarize(s.Appointments(), s.now())
}

// AvailableSlots generates the slots of date's calendar day for doctorID
// and marks the ones already taken. A nil hours uses the defaults.
func (s *Service) AvailableSlots(date time.Time, doctorID string, hours *WorkingHours) []TimeSlot {
	h := s.opts.Hours
	if hours != nil {
		h = *hours
	}
	return s.slotsFor(s.day(date), strings.TrimSpace(doctorID), h, "")
}

// Schedule reads doctorID's appointments on date's calendar day straight
// from the store, resolved against the directories of the last refresh and
// ordered by time. Records that cannot be resolved are skipped.
func (s *Service) Schedule(ctx context.Context, doctorID string, date time.Time) ([]Appointment, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrMissingDoctor
	}
	from := s.day(date)
	to := from.AddDate(0, 0, 1)
	raws, err := s.store.ListAppointments(ctx, AppointmentFilter{DoctorID: doctorID, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("list schedule of doctor %s: %w", doctorID, err)
	}

	s.mu.RLock()
	patients, doctors := s.patients, s.doctors
	s.mu.RUnlock()

	appts, report := ResolveAll(raws, patients, doctors, s.opts.Location)
	if len(report.Dropped) > 0 {
		s.log.Warn("schedule skipped unreadable records",
			zap.String("doctor_id", doctorID),
			zap.Int("dropped", len(report.Dropped)),
		)
	}
	return Query(appts, QueryOptions{DoctorID: doctorID}, s.now()), nil
}

// day puts date's calendar day at midnight in the service zone.
func (s *Service) day(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)
}

// slotsFor generates and marks slots, ignoring the appointment except.
func (s *Service) slotsFor(day time.Time, doctorID string, hours WorkingHours, except string) []TimeSlot {
	slots := GenerateSlots(day, hours, s.now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if except == "" {
		return MarkConflicts(slots, s.book.items, day, doctorID)
	}
	return MarkConflicts(slots, s.book.Without(except), day, doctorID)
}

func (s *Service) checkSlot(at time.Time, doctorID, except string) error {
	slots := s.slotsFor(s.day(at.In(s.opts.Location)), doctorID, s.opts.Hours, except)
	slot, ok := FindSlot(slots, ClockOf(at, s.opts.Location))
	if !ok || !slot.IsAvailable {
		return ErrSlotUnavailable
	}
	return nil
}

// Book creates an appointment at a free generated slot. The slot is
// re-checked under the per-slot lock before the store is called.
func (s *Service) Book(ctx context.Context, req BookingRequest) (Appointment, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.PatientID == "" {
		return Appointment{}, ErrMissingPatient
	}
	if req.DoctorID == "" {
		return Appointment{}, ErrMissingDoctor
	}
	if req.Status == "" {
		req.Status = StatusScheduled
	}
	if req.Status != StatusScheduled && req.Status != StatusPending {
		return Appointment{}, ErrInvalidInitialStatus
	}
	if strings.TrimSpace(req.Type) == "" {
		req.Type = DefaultType
	}
	at := truncateMinute(req.At, s.opts.Location)

	if err := s.checkSlot(at, req.DoctorID, ""); err != nil {
		return Appointment{}, err
	}

	var created Appointment
	err := s.locker.WithSlotLock(ctx, redisclient.SlotKey(req.DoctorID, at), func(lockCtx context.Context) error {
		// Inside the critical section re-check against the collection
		if err := s.checkSlot(at, req.DoctorID, ""); err != nil {
			return err
		}

		raw, err := s.store.CreateAppointment(lockCtx, AppointmentPayload{
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			AppointmentDate: at,
			Type:            strings.TrimSpace(req.Type),
			Status:          req.Status,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		a, _, err := resolve(raw, s.patients, s.doctors, s.opts.Location)
		if err != nil {
			return fmt.Errorf("resolve created appointment: %w", err)
		}
		s.book.Put(a)
		created = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return Appointment{}, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotTaken) {
			return Appointment{}, ErrSlotUnavailable
		}
		return Appointment{}, err
	}

	s.logEvent(EventAppointmentBooked, created,
		zap.String("patient_id", req.PatientID),
		zap.String("doctor_id", req.DoctorID),
	)
	return created, nil
}

// Transition moves appointment id to status to. The store is only called
// for legal transitions and the collection is only updated after it
// confirms.
func (s *Service) Transition(ctx context.Context, id string, to Status) (Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, &MissingIdentifierError{Op: "transition"}
	}
	cur, err := s.Get(id)
	if err != nil {
		return Appointment{}, err
	}
	next, err := ApplyTransition(cur, to)
	if err != nil {
		return Appointment{}, err
	}

	raw, err := s.store.UpdateAppointment(ctx, id, map[string]any{"status": string(to)}, cur.Version)
	if err != nil {
		return Appointment{}, err
	}
	next = mergeConfirmed(next, raw)

	s.mu.Lock()
	s.book.Put(next)
	s.mu.Unlock()

	s.logEvent(EventAppointmentTransition, next,
		zap.String("from", string(cur.Status)),
		zap.String("to", string(next.Status)),
	)
	return next, nil
}

// mergeConfirmed applies the fields the store echoed back for a status
// update. A store may answer with a full record or a bare acknowledgement.
func mergeConfirmed(next Appointment, raw RawAppointment) Appointment {
	if raw == nil {
		return next
	}
	if v, ok := field(raw, "status"); ok {
		if s, isStr := v.(string); isStr && s != "" {
			next.Status = ParseStatus(s)
		}
	}
	if v, ok := field(raw, "version"); ok {
		if n, ok := CoerceInt(v); ok && n > 0 {
			next.Version = n
		}
	}
	return next
}

func (s *Service) Accept(ctx context.Context, id string) (Appointment, error) {
	return s.Transition(ctx, id, StatusAccepted)
}

func (s *Service) Cancel(ctx context.Context, id string) (Appointment, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

// Reschedule cancels id and books the same patient and doctor at newAt.
// The new slot is validated with the old booking treated as freed. If the
// booking fails after the cancel succeeded, the cancelled appointment is
// returned with the error.
func (s *Service) Reschedule(ctx context.Context, id string, newAt time.Time) (cancelled, booked Appointment, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Appointment{}, Appointment{}, &MissingIdentifierError{Op: "reschedule"}
	}
	cur, err := s.Get(id)
	if err != nil {
		return Appointment{}, Appointment{}, err
	}
	if !CanTransition(cur.Status, StatusCancelled) {
		return Appointment{}, Appointment{}, &InvalidTransitionError{From: cur.Status, To: StatusCancelled}
	}
	if cur.Patient.ID == "" {
		return Appointment{}, Appointment{}, ErrMissingPatient
	}
	if cur.Doctor.ID == "" {
		return Appointment{}, Appointment{}, ErrMissingDoctor
	}
	at := truncateMinute(newAt, s.opts.Location)
	if err := s.checkSlot(at, cur.Doctor.ID, cur.ID); err != nil {
		return Appointment{}, Appointment{}, err
	}

	cancelled, err = s.Cancel(ctx, id)
	if err != nil {
		return Appointment{}, Appointment{}, err
	}

	initial := StatusScheduled
	if cur.Status == StatusPending {
		initial = StatusPending
	}
	booked, err = s.Book(ctx, BookingRequest{
		PatientID: cur.Patient.ID,
		DoctorID:  cur.Doctor.ID,
		At:        at,
		Type:      cur.Type,
		Notes:     cur.Notes,
		Status:    initial,
	})
	if err != nil {
		s.log.Warn("reschedule left appointment cancelled without a replacement",
			zap.String("appointment_id", id),
			zap.String("doctor_id", cur.Doctor.ID),
			zap.Time("requested_at", at),
			zap.Error(err),
		)
		return cancelled, Appointment{}, fmt.Errorf("book new slot after cancelling %s: %w", id, err)
	}

	s.logEvent(EventAppointmentRescheduled, booked, zap.String("previous_id", id))
	return cancelled, booked, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &MissingIdentifierError{Op: "delete"}
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.book.Remove(id)
	s.mu.Unlock()

	s.log.Info(EventAppointmentDeleted, zap.String("appointment_id", id))
	return nil
}

// ExpireStalePending is intended to be called by the worker periodically.
// It cancels pending requests whose time has passed and returns how many
// it cancelled.
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	now := s.now()
	var stale []string
	for _, a := range s.Appointments() {
		if a.Status == StatusPending && !a.ScheduledAt.After(now) {
			stale = append(stale, a.ID)
		}
	}

	var (
		expired int
		errs    []error
	)
	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		a, err := s.Cancel(ctx, id)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) || IsNotFound(err) {
				s.log.Warn("skip expiring appointment", zap.String("appointment_id", id), zap.Error(err))
				continue
			}
			errs = append(errs, fmt.Errorf("expire %s: %w", id, err))
			continue
		}
		expired++
		s.logEvent(EventAppointmentExpired, a, zap.String("reason", "worker"))
	}
	return expired, errors.Join(errs...)
}

func (s *Service) logEvent(event string, a Appointment, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("appointment_id", a.ID),
		zap.String("status", string(a.Status)),
		zap.Time("scheduled_at", a.ScheduledAt),
	}, fields...)
	s.log.Info(event, fields...)
}

package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("appointment was modified by someone else")
	ErrSlotTaken       = errors.New("doctor already has an appointment at this time")
)

// AppointmentFilter narrows ListAppointments. Empty fields do not filter.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	From      *time.Time
	To        *time.Time
}

// AppointmentPayload is the body of a create call.
type AppointmentPayload struct {
	PatientID       string
	DoctorID        string
	AppointmentDate time.Time
	Type            string
	Status          Status
	Notes           string
}

// Fields renders the payload the way the clinic backend expects it.
func (p AppointmentPayload) Fields() map[string]any {
	return map[string]any{
		"patientId":       p.PatientID,
		"doctorId":        p.DoctorID,
		"appointmentDate": p.AppointmentDate.Format("2006-01-02T15:04:05"),
		"type":            p.Type,
		"status":          string(p.Status),
		"notes":           p.Notes,
	}
}

// Store is the data-access boundary to the external appointment backend.
// Records come back loosely typed; callers must run them through Resolve.
type Store interface {
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]RawAppointment, error)
	ListPatients(ctx context.Context) ([]RawPerson, error)
	ListDoctors(ctx context.Context) ([]RawPerson, error)

	CreateAppointment(ctx context.Context, payload AppointmentPayload) (RawAppointment, error)
	// UpdateAppointment applies a partial update. A non-zero expectedVersion
	// must match the stored version or ErrVersionConflict is returned.
	UpdateAppointment(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (RawAppointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

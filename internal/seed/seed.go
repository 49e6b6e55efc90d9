// Package seed generates fake clinic data for development databases and the
// in-memory store.
package seed

import (
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var types = []string{appointment.DefaultType, "consultation", "follow-up", "vaccination", "lab review"}

var notes = []string{
	"",
	"",
	"bring previous lab results",
	"first visit",
	"requested morning slot",
	"referral from GP",
	"annual review",
}

type Person struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Specialization string
}

// Appointment refers to people by their index in Dataset.
type Appointment struct {
	Patient int
	Doctor  int
	At      time.Time
	Type    string
	Status  appointment.Status
	Notes   string
}

type Dataset struct {
	Patients     []Person
	Doctors      []Person
	Appointments []Appointment
}

type Options struct {
	Patients int
	Doctors  int
	// Days around Start to fill, half before and half after.
	Days int
	// Fill is the share of generated slots that get booked, 0 to 1.
	Fill  float64
	Start time.Time
	Hours appointment.WorkingHours
	// Seed makes generation reproducible; 0 picks a random one.
	Seed uint64
}

// Generate builds a dataset whose appointments sit on generated slots and
// never double book a doctor. Past appointments get terminal statuses.
func Generate(opts Options) Dataset {
	if opts.Days <= 0 {
		opts.Days = 14
	}
	if opts.Fill <= 0 || opts.Fill > 1 {
		opts.Fill = 0.3
	}
	if opts.Hours.SlotMinutes == 0 {
		opts.Hours = appointment.DefaultWorkingHours()
	}
	f := gofakeit.New(opts.Seed)

	var ds Dataset
	for i := 0; i < opts.Patients; i++ {
		ds.Patients = append(ds.Patients, Person{
			FirstName: f.FirstName(),
			LastName:  f.LastName(),
			Email:     strconv.Itoa(i) + "." + f.Email(),
			Phone:     f.Phone(),
		})
	}
	for i := 0; i < opts.Doctors; i++ {
		ds.Doctors = append(ds.Doctors, Person{
			FirstName:      f.FirstName(),
			LastName:       f.LastName(),
			Email:          "dr" + strconv.Itoa(i) + "." + f.Email(),
			Phone:          f.Phone(),
			Specialization: f.RandomString(specializations),
		})
	}
	if len(ds.Patients) == 0 || len(ds.Doctors) == 0 {
		return ds
	}

	y, m, d := opts.Start.Date()
	first := time.Date(y, m, d-opts.Days/2, 0, 0, 0, 0, opts.Start.Location())
	for day := 0; day < opts.Days; day++ {
		date := first.AddDate(0, 0, day)
		// a zero now keeps past slots in the grid
		slots := appointment.GenerateSlots(date, opts.Hours, time.Time{})
		for doc := range ds.Doctors {
			for _, slot := range slots {
				if f.Float64() >= opts.Fill {
					continue
				}
				at := slot.StartTime.On(date)
				ds.Appointments = append(ds.Appointments, Appointment{
					Patient: f.Number(0, len(ds.Patients)-1),
					Doctor:  doc,
					At:      at,
					Type:    f.RandomString(types),
					Status:  pickStatus(f, at, opts.Start),
					Notes:   f.RandomString(notes),
				})
			}
		}
	}
	return ds
}

func pickStatus(f *gofakeit.Faker, at, now time.Time) appointment.Status {
	n := f.Number(1, 100)
	if at.Before(now) {
		switch {
		case n <= 75:
			return appointment.StatusCompleted
		case n <= 90:
			return appointment.StatusNoShow
		default:
			return appointment.StatusCancelled
		}
	}
	switch {
	case n <= 60:
		return appointment.StatusScheduled
	case n <= 80:
		return appointment.StatusPending
	case n <= 92:
		return appointment.StatusAccepted
	default:
		return appointment.StatusCancelled
	}
}

// Into loads ds into a memory-store shaped sink. People get sequential
// numeric ids starting at 1, doctors after patients. Appointments rotate
// through the record shapes the different backends produce.
func Into(ds Dataset, addPatient, addDoctor func(appointment.RawPerson), addAppointment func(appointment.RawAppointment) string) {
	for i, p := range ds.Patients {
		addPatient(p.raw(i+1, appointment.RolePatient))
	}
	offset := len(ds.Patients)
	for i, p := range ds.Doctors {
		addDoctor(p.raw(offset+i+1, appointment.RoleDoctor))
	}
	for i, a := range ds.Appointments {
		addAppointment(a.raw(i, a.Patient+1, offset+a.Doctor+1, ds))
	}
}

func (a Appointment) raw(i, patientID, doctorID int, ds Dataset) appointment.RawAppointment {
	switch i % 3 {
	case 1:
		// embedded people, split date and clock, upper-case status
		return appointment.RawAppointment{
			"patient": map[string]any{
				"id":        patientID,
				"firstName": ds.Patients[a.Patient].FirstName,
				"lastName":  ds.Patients[a.Patient].LastName,
			},
			"doctor": map[string]any{
				"_id":            doctorID,
				"name":           "Dr. " + ds.Doctors[a.Doctor].LastName,
				"specialization": ds.Doctors[a.Doctor].Specialization,
			},
			"date":   a.At.Format(appointment.DateLayout),
			"time":   a.At.Format("3:04 PM"),
			"type":   a.Type,
			"status": strings.ToUpper(strings.ReplaceAll(string(a.Status), "-", "_")),
			"notes":  a.Notes,
		}
	case 2:
		// string ids, scalar doctor reference, zoned timestamp
		return appointment.RawAppointment{
			"patientId":       strconv.Itoa(patientID),
			"doctor":          doctorID,
			"dateTime":        a.At.Format(time.RFC3339),
			"appointmentType": a.Type,
			"status":          string(a.Status),
			"description":     a.Notes,
		}
	default:
		return appointment.RawAppointment{
			"patientId":       patientID,
			"doctorId":        doctorID,
			"appointmentDate": a.At.Format("2006-01-02T15:04:05"),
			"type":            a.Type,
			"status":          string(a.Status),
			"notes":           a.Notes,
		}
	}
}

func (p Person) raw(id int, role string) appointment.RawPerson {
	r := appointment.RawPerson{
		"id":          id,
		"role":        role,
		"firstName":   p.FirstName,
		"lastName":    p.LastName,
		"email":       p.Email,
		"phoneNumber": p.Phone,
	}
	if p.Specialization != "" {
		r["specialization"] = p.Specialization
	}
	return r
}

package appointment

import (
	"sort"
	"time"
)

func minuteOf(t time.Time) int64 {
	return t.Unix() / 60
}

// MarkConflicts flags every slot of date that an existing non-cancelled
// appointment of doctorID occupies, to the minute. slots is modified in
// place and returned. An empty doctorID matches nothing.
func MarkConflicts(slots []TimeSlot, existing []Appointment, date time.Time, doctorID string) []TimeSlot {
	if doctorID == "" || len(slots) == 0 {
		return slots
	}
	taken := make(map[int64]struct{})
	for _, a := range existing {
		if a.Doctor.ID == doctorID && a.Status != StatusCancelled {
			taken[minuteOf(a.ScheduledAt)] = struct{}{}
		}
	}
	for i := range slots {
		if _, ok := taken[minuteOf(slots[i].StartTime.On(date))]; ok {
			slots[i].IsAvailable = false
		}
	}
	return slots
}

// DoubleBooking is a (doctor, instant) pair held by more than one
// non-cancelled appointment.
type DoubleBooking struct {
	DoctorID       string    `json:"doctorId"`
	At             time.Time `json:"at"`
	AppointmentIDs []string  `json:"appointmentIds"`
}

// DoubleBookings audits appts for violations of the one-booking-per-slot
// rule. Appointments without a doctor id are ignored.
func DoubleBookings(appts []Appointment) []DoubleBooking {
	type key struct {
		doctor string
		minute int64
	}
	groups := make(map[key]*DoubleBooking)
	var order []key
	for _, a := range appts {
		if a.Doctor.ID == "" || a.Status == StatusCancelled {
			continue
		}
		k := key{a.Doctor.ID, minuteOf(a.ScheduledAt)}
		g, ok := groups[k]
		if !ok {
			g = &DoubleBooking{DoctorID: a.Doctor.ID, At: a.ScheduledAt}
			groups[k] = g
			order = append(order, k)
		}
		g.AppointmentIDs = append(g.AppointmentIDs, a.ID)
	}

	var out []DoubleBooking
	for _, k := range order {
		if g := groups[k]; len(g.AppointmentIDs) > 1 {
			out = append(out, *g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].DoctorID < out[j].DoctorID
	})
	return out
}

package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking(id, doctor string, at time.Time, status Status) Appointment {
	return Appointment{ID: id, Doctor: PersonStub{ID: doctor}, ScheduledAt: at, Status: status}
}

func TestMarkConflicts(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	at9 := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	existing := []Appointment{
		booking("a", "3", at9, StatusScheduled),
		booking("b", "3", at9.Add(30*time.Minute), StatusCancelled),
		booking("c", "4", at9.Add(time.Hour), StatusScheduled),
		booking("d", "3", at9.Add(2*time.Hour).In(time.FixedZone("x", 3600)), StatusCompleted),
	}

	slots := MarkConflicts(GenerateSlots(day, DefaultWorkingHours(), day), existing, day, "3")
	byLabel := map[string]bool{}
	for _, s := range slots {
		byLabel[s.Label] = s.IsAvailable
	}
	assert.False(t, byLabel["9:00 AM"])
	assert.True(t, byLabel["9:30 AM"], "cancelled frees the slot")
	assert.True(t, byLabel["10:00 AM"], "other doctor")
	assert.False(t, byLabel["11:00 AM"], "same instant in another zone")

	for _, s := range MarkConflicts(GenerateSlots(day, DefaultWorkingHours(), day), existing, day, "") {
		assert.True(t, s.IsAvailable)
	}
}

func TestMarkConflictsMutatesInPlace(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(day, DefaultWorkingHours(), day)
	out := MarkConflicts(slots, []Appointment{booking("a", "3", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), StatusPending)}, day, "3")
	assert.False(t, slots[0].IsAvailable)
	assert.Equal(t, &slots[0], &out[0])
}

// Every generated slot is unavailable exactly when a live booking holds it.
func TestSlotConflictConsistency(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	var existing []Appointment
	statuses := []Status{StatusScheduled, StatusCancelled, StatusPending, StatusAccepted, StatusNoShow}
	for i, s := range GenerateSlots(day, DefaultWorkingHours(), day) {
		if i%2 == 0 {
			existing = append(existing, booking(s.Label, "3", s.StartTime.On(day), statuses[i%len(statuses)]))
		}
	}

	for _, s := range MarkConflicts(GenerateSlots(day, DefaultWorkingHours(), day), existing, day, "3") {
		live := false
		for _, a := range existing {
			if a.ScheduledAt.Equal(s.StartTime.On(day)) && a.Status != StatusCancelled {
				live = true
			}
		}
		assert.Equal(t, !live, s.IsAvailable, s.Label)
	}
}

func TestDoubleBookings(t *testing.T) {
	at := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	appts := []Appointment{
		booking("a", "3", at, StatusScheduled),
		booking("b", "3", at.Add(20*time.Second), StatusPending),
		booking("c", "3", at, StatusCancelled),
		booking("d", "4", at, StatusScheduled),
		booking("e", "", at, StatusScheduled),
		booking("f", "", at, StatusScheduled),
	}
	got := DoubleBookings(appts)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].DoctorID)
	assert.Equal(t, []string{"a", "b"}, got[0].AppointmentIDs)

	assert.Empty(t, DoubleBookings(appts[2:]))
}

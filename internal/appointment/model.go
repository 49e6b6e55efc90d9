package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Statuses lists every canonical status in display order.
var Statuses = []Status{
	StatusScheduled,
	StatusPending,
	StatusAccepted,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

var statusAliases = map[string]Status{
	"scheduled": StatusScheduled,
	"pending":   StatusPending,
	"accepted":  StatusAccepted,
	"confirmed": StatusAccepted,
	"completed": StatusCompleted,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"no-show":   StatusNoShow,
	"noshow":    StatusNoShow,
}

// LookupStatus normalizes raw and reports whether it names a known status.
func LookupStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	st, ok := statusAliases[s]
	return st, ok
}

// ParseStatus normalizes a raw backend status. Unknown and empty values
// become StatusPending.
func ParseStatus(raw string) Status {
	if st, ok := LookupStatus(raw); ok {
		return st
	}
	return StatusPending
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"

	UnknownPatient = "Unknown Patient"
	UnknownDoctor  = "Unknown Doctor"

	DefaultType = "checkup"
)

// PersonStub is the minimal resolved identity of a patient or doctor.
type PersonStub struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Placeholder    bool   `json:"placeholder,omitempty"`
}

// Appointment is the canonical in-memory booking, independent of the shape
// the backend delivered it in.
type Appointment struct {
	ID          string     `json:"id"`
	Patient     PersonStub `json:"patient"`
	Doctor      PersonStub `json:"doctor"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	Type        string     `json:"type"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes"`
	Version     int64      `json:"version,omitempty"`
}

// LocalTime is a wall-clock time of day without a date.
type LocalTime struct {
	Hour   int
	Minute int
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Label renders the 12-hour form used by the booking screens, e.g. "9:00 AM".
func (t LocalTime) Label() string {
	return time.Date(2000, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("3:04 PM")
}

// On combines t with the calendar day of date, in date's location.
func (t LocalTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, date.Location())
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LocalTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeSlot is a bookable window on a given date. It is regenerated per
// (date, doctor) query and never persisted.
type TimeSlot struct {
	StartTime   LocalTime `json:"startTime"`
	Label       string    `json:"label"`
	IsAvailable bool      `json:"isAvailable"`
	IsBreak     bool      `json:"isBreak"`
}

// WorkingHours configures slot generation. Hours are whole hours of the day.
type WorkingHours struct {
	StartHour   int            `json:"startHour"`
	EndHour     int            `json:"endHour"`
	BreakStart  int            `json:"breakStart"`
	BreakEnd    int            `json:"breakEnd"`
	SlotMinutes int            `json:"slotMinutes"`
	ClosedDays  []time.Weekday `json:"closedDays,omitempty"`
}

func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		StartHour:   9,
		EndHour:     17,
		BreakStart:  12,
		BreakEnd:    13,
		SlotMinutes: 30,
	}
}

func (h WorkingHours) Validate() error {
	for name, v := range map[string]int{
		"start hour":  h.StartHour,
		"end hour":    h.EndHour,
		"break start": h.BreakStart,
		"break end":   h.BreakEnd,
	} {
		if v < 0 || v > 24 {
			return fmt.Errorf("%s %d out of range 0-24", name, v)
		}
	}
	if h.SlotMinutes <= 0 {
		return fmt.Errorf("slot minutes must be positive, got %d", h.SlotMinutes)
	}
	if h.BreakEnd < h.BreakStart {
		return fmt.Errorf("break ends (%d) before it starts (%d)", h.BreakEnd, h.BreakStart)
	}
	return nil
}

func (h WorkingHours) closedOn(day time.Weekday) bool {
	for _, d := range h.ClosedDays {
		if d == day {
			return true
		}
	}
	return false
}

// RawAppointment is a backend appointment record in whatever shape it
// arrived. No field is guaranteed to be present.
type RawAppointment map[string]any

// RawPerson is a backend user record (patient or doctor).
type RawPerson map[string]any

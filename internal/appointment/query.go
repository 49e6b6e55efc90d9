package appointment

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type DateFilter string

const (
	DateAll       DateFilter = "all"
	DateToday     DateFilter = "today"
	DateThisWeek  DateFilter = "thisWeek"
	DateThisMonth DateFilter = "thisMonth"
	DatePast      DateFilter = "past"
	DateUpcoming  DateFilter = "upcoming"
)

var dateFilters = map[string]DateFilter{
	"":          DateAll,
	"all":       DateAll,
	"today":     DateToday,
	"thisweek":  DateThisWeek,
	"week":      DateThisWeek,
	"thismonth": DateThisMonth,
	"month":     DateThisMonth,
	"past":      DatePast,
	"upcoming":  DateUpcoming,
}

// ParseDateFilter accepts the filter names case-insensitively, plus the
// short "week" and "month" forms.
func ParseDateFilter(s string) (DateFilter, error) {
	if f, ok := dateFilters[normKey(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown date filter %q", s)
}

type SortField string

const (
	SortScheduledAt SortField = "scheduledAt"
	SortPatient     SortField = "patient"
	SortDoctor      SortField = "doctor"
	SortStatus      SortField = "status"
	SortType        SortField = "type"
)

var sortFields = map[string]SortField{
	"":            SortScheduledAt,
	"scheduledat": SortScheduledAt,
	"date":        SortScheduledAt,
	"patient":     SortPatient,
	"doctor":      SortDoctor,
	"status":      SortStatus,
	"type":        SortType,
}

func ParseSortField(s string) (SortField, error) {
	if f, ok := sortFields[normKey(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// QueryOptions selects and orders a view of the collection. Zero values
// mean no filtering, scheduledAt ascending, no pagination.
type QueryOptions struct {
	Search     string
	DoctorID   string
	PatientID  string
	Status     Status
	Type       string
	Date       DateFilter
	Sort       SortField
	Descending bool
	Limit      int
	Offset     int
}

// Query filters appts by search, doctor, patient, status, type and date in
// that order, sorts the result stably and paginates it. appts is not
// modified.
func Query(appts []Appointment, opts QueryOptions, now time.Time) []Appointment {
	term := strings.ToLower(strings.TrimSpace(opts.Search))
	status := Status(strings.TrimSpace(string(opts.Status)))
	typ := strings.TrimSpace(opts.Type)
	doctorID := strings.TrimSpace(opts.DoctorID)
	patientID := strings.TrimSpace(opts.PatientID)

	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if term != "" && !matchesSearch(a, term) {
			continue
		}
		if doctorID != "" && a.Doctor.ID != doctorID {
			continue
		}
		if patientID != "" && a.Patient.ID != patientID {
			continue
		}
		if status != "" && status != "all" && a.Status != status {
			continue
		}
		if typ != "" && typ != "all" && a.Type != typ {
			continue
		}
		if !matchesDate(a.ScheduledAt, opts.Date, now) {
			continue
		}
		out = append(out, a)
	}

	less := lessFunc(opts.Sort)
	sort.SliceStable(out, func(i, j int) bool {
		if opts.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Appointment{}
	}
	out = out[offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

func matchesSearch(a Appointment, term string) bool {
	for _, s := range []string{a.Patient.DisplayName, a.Doctor.DisplayName, a.Notes, a.Type} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func matchesDate(at time.Time, f DateFilter, now time.Time) bool {
	loc := now.Location()
	at = at.In(loc)
	today := sameDay(at, now)

	switch f {
	case DateToday:
		return today
	case DateThisWeek:
		y, m, d := now.Date()
		start := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
		end := time.Date(y, m, d-int(now.Weekday())+7, 0, 0, 0, 0, loc)
		return !at.Before(start) && at.Before(end) && at.After(now)
	case DateThisMonth:
		return at.Year() == now.Year() && at.Month() == now.Month()
	case DatePast:
		return at.Before(now) && !today
	case DateUpcoming:
		return at.After(now) || today
	default:
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func lessFunc(f SortField) func(a, b Appointment) bool {
	switch f {
	case SortPatient:
		return func(a, b Appointment) bool {
			return strings.ToLower(a.Patient.DisplayName) < strings.ToLower(b.Patient.DisplayName)
		}
	case SortDoctor:
		return func(a, b Appointment) bool {
			return strings.ToLower(a.Doctor.DisplayName) < strings.ToLower(b.Doctor.DisplayName)
		}
	case SortStatus:
		return func(a, b Appointment) bool { return a.Status < b.Status }
	case SortType:
		return func(a, b Appointment) bool {
			return strings.ToLower(a.Type) < strings.ToLower(b.Type)
		}
	default:
		return func(a, b Appointment) bool { return a.ScheduledAt.Before(b.ScheduledAt) }
	}
}

package appointment

import "time"

// Stats is the dashboard summary of a collection.
type Stats struct {
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	Upcoming int            `json:"upcoming"`
	ByStatus map[Status]int `json:"byStatus"`
}

// Summarize counts appts relative to now. Upcoming covers non-terminal
// appointments within the next seven days.
func Summarize(appts []Appointment, now time.Time) Stats {
	st := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}
	horizon := now.Add(7 * 24 * time.Hour)
	for _, a := range appts {
		st.Total++
		st.ByStatus[a.Status]++
		if sameDay(a.ScheduledAt.In(now.Location()), now) {
			st.Today++
		}
		if !a.Status.IsTerminal() && a.ScheduledAt.After(now) && !a.ScheduledAt.After(horizon) {
			st.Upcoming++
		}
	}
	return st
}

package appointment

import "time"

// GenerateSlots returns the bookable slots of date's calendar day (in
// date's location) for hours. Slots starting inside the break, and slots
// whose instant is at or before now, are left out. An invalid or closed day
// yields no slots; callers treat that as "no availability".
func GenerateSlots(date time.Time, hours WorkingHours, now time.Time) []TimeSlot {
	if hours.Validate() != nil || hours.StartHour >= hours.EndHour {
		return []TimeSlot{}
	}
	if hours.closedOn(date.Weekday()) {
		return []TimeSlot{}
	}

	start, end := hours.StartHour*60, hours.EndHour*60
	breakStart, breakEnd := hours.BreakStart*60, hours.BreakEnd*60

	slots := make([]TimeSlot, 0, (end-start)/hours.SlotMinutes+1)
	for m := start; m < end; m += hours.SlotMinutes {
		if m >= breakStart && m < breakEnd {
			continue
		}
		lt := LocalTime{Hour: m / 60, Minute: m % 60}
		if !lt.On(date).After(now) {
			continue
		}
		slots = append(slots, TimeSlot{
			StartTime:   lt,
			Label:       lt.Label(),
			IsAvailable: true,
		})
	}
	return slots
}

// FirstAvailable returns the earliest available slot. slots must be in the
// order GenerateSlots returns them.
func FirstAvailable(slots []TimeSlot) (TimeSlot, bool) {
	for _, s := range slots {
		if s.IsAvailable && !s.IsBreak {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// FindSlot returns the slot starting at t.
func FindSlot(slots []TimeSlot, t LocalTime) (TimeSlot, bool) {
	for _, s := range slots {
		if s.StartTime == t {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// ClockOf returns the wall-clock time of t in loc.
func ClockOf(t time.Time, loc *time.Location) LocalTime {
	t = t.In(loc)
	return LocalTime{Hour: t.Hour(), Minute: t.Minute()}
}

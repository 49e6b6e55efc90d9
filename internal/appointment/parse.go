package appointment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
}

var (
	errUnsupportedDate = errors.New("unsupported date value")
	errDateOutOfRange  = errors.New("date component out of range")
)

// normKey folds the spellings the backend uses for one field:
// patientId, PatientID and patient_id all become "patientid".
func normKey(k string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(k))
}

// field returns the first non-nil value among names. Exact keys win over
// case/underscore-insensitive matches; ties among the latter are broken by
// key order so lookups stay deterministic.
func field(m map[string]any, names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := m[n]; ok && v != nil {
			return v, true
		}
	}
	for _, n := range names {
		want := normKey(n)
		var keys []string
		for k, v := range m {
			if v != nil && normKey(k) == want {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			return m[keys[0]], true
		}
	}
	return nil, false
}

func stringField(m map[string]any, names ...string) string {
	v, ok := field(m, names...)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case RawPerson:
		return m, true
	case RawAppointment:
		return m, true
	default:
		return nil, false
	}
}

// CoerceID turns a backend identifier into the string used as a map key.
// Integral numbers lose any fractional formatting, so 7, 7.0 and "7" agree.
func CoerceID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if f, err := id.Float64(); err == nil {
			return CoerceID(f)
		}
		return CoerceID(id.String())
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", false
		}
		if id == math.Trunc(id) && math.Abs(id) < 1<<53 {
			return strconv.FormatInt(int64(id), 10), true
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case float32:
		return CoerceID(float64(id))
	case int:
		return strconv.Itoa(id), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case fmt.Stringer:
		s := strings.TrimSpace(id.String())
		return s, s != ""
	default:
		return "", false
	}
}

// CoerceInt reads an integral backend number: Go ints, whole float64s
// (encoding/json), json.Number and numeric strings.
func CoerceInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// parseInstant accepts every timestamp encoding seen from the backends.
// dateOnly is set when the value carried a calendar day but no clock.
func parseInstant(v any, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false, errUnsupportedDate
		}
		return x.In(loc), false, nil
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false, errUnsupportedDate
		}
		return x.In(loc), false, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false, errUnsupportedDate
		}
		for _, layout := range dateTimeLayouts {
			if parsed, perr := time.ParseInLocation(layout, s, loc); perr == nil {
				return parsed.In(loc), false, nil
			}
		}
		parsed, perr := time.ParseInLocation(DateLayout, s, loc)
		if perr != nil {
			return time.Time{}, false, perr
		}
		return parsed, true, nil
	case json.Number, float64, int64, int:
		ms, ok := CoerceInt(x)
		if !ok {
			return time.Time{}, false, errUnsupportedDate
		}
		return time.UnixMilli(ms).In(loc), false, nil
	case []any:
		return parseDateArray(x, loc)
	default:
		return time.Time{}, false, errUnsupportedDate
	}
}

// parseDateArray handles Jackson's default LocalDateTime encoding,
// [year, month, day, hour, minute, second?, nanos?].
func parseDateArray(parts []any, loc *time.Location) (time.Time, bool, error) {
	if len(parts) < 3 {
		return time.Time{}, false, errUnsupportedDate
	}
	vals := make([]int, 6)
	for i := 0; i < len(parts) && i < 6; i++ {
		n, ok := CoerceInt(parts[i])
		if !ok {
			return time.Time{}, false, errUnsupportedDate
		}
		vals[i] = int(n)
	}
	year, month, day := vals[0], vals[1], vals[2]
	hour, minute, second := vals[3], vals[4], vals[5]
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false, errDateOutOfRange
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	// time.Date normalizes Feb 31 into March; that is a different day.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false, errDateOutOfRange
	}
	return t, len(parts) == 3, nil
}

// ParseLocalTime parses a wall-clock time such as "09:30", "9:30 AM",
// "09:30 AM" or "09:30:00".
func ParseLocalTime(s string) (LocalTime, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return LocalTime{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("invalid time of day %q", s)
}

// ParseDate parses a calendar day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

// truncateMinute zeroes seconds and below in loc.
func truncateMinute(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

var scheduledAtFields = []string{"scheduledAt", "appointmentDate", "dateTime", "date"}

// scheduledAt collapses every supported date encoding of raw into one
// minute-precision instant in loc.
func scheduledAt(raw map[string]any, loc *time.Location) (time.Time, error) {
	var (
		day     time.Time
		matched bool
	)
	for _, name := range scheduledAtFields {
		v, ok := field(raw, name)
		if !ok || isBlank(v) {
			continue
		}
		t, _, err := parseInstant(v, loc)
		if err != nil {
			return time.Time{}, &DateParseError{Field: name, Value: v, Err: err}
		}
		day, matched = t, true
		break
	}
	if !matched {
		return time.Time{}, &DateParseError{}
	}

	if v, ok := field(raw, "time"); ok && !isBlank(v) {
		s, isStr := v.(string)
		if !isStr {
			return time.Time{}, &DateParseError{Field: "time", Value: v, Err: errUnsupportedDate}
		}
		clock, err := ParseLocalTime(s)
		if err != nil {
			return time.Time{}, &DateParseError{Field: "time", Value: v, Err: err}
		}
		day = clock.On(day)
	}
	return truncateMinute(day, loc), nil
}

// isBlank reports an empty string value; the backend sends "" for fields it
// did not fill in.
func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

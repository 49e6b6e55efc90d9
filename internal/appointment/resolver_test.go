package appointment

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLookupTableWins(t *testing.T) {
	doctors := NewDirectory(RoleDoctor, []RawPerson{{"id": "3", "fullName": "Dr. Lee"}})
	patients := NewDirectory(RolePatient, nil)

	raw := RawAppointment{
		"id":              1,
		"patientId":       7,
		"doctorId":        "3",
		"appointmentDate": "2025-06-10T09:00:00",
	}
	a, err := Resolve(raw, patients, doctors, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "1", a.ID)
	assert.Equal(t, "Dr. Lee", a.Doctor.DisplayName)
	assert.Equal(t, "3", a.Doctor.ID)
	assert.Equal(t, UnknownPatient, a.Patient.DisplayName)
	assert.Equal(t, "7", a.Patient.ID)
	assert.True(t, a.Patient.Placeholder)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), a.ScheduledAt)
	assert.Equal(t, DefaultType, a.Type)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "", a.Notes)
}

func TestResolveDirectoryOverridesEmbeddedName(t *testing.T) {
	doctors := NewDirectory(RoleDoctor, []RawPerson{{"_id": "d1", "firstName": "Mina", "lastName": "Lee", "phoneNumber": "555"}})
	raw := RawAppointment{
		"_id":      "a1",
		"doctor":   map[string]any{"_id": "d1", "fullName": "Old Name"},
		"dateTime": "2025-06-10T09:00:00Z",
	}
	a, err := Resolve(raw, nil, doctors, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Mina Lee", a.Doctor.DisplayName)
	assert.Equal(t, "555", a.Doctor.Phone)
	assert.Equal(t, "a1", a.ID)
}

func TestResolveCandidateIDOrder(t *testing.T) {
	patients := NewDirectory(RolePatient, []RawPerson{
		{"id": "p-explicit", "name": "Explicit"},
		{"id": "p-nested", "name": "Nested"},
		{"id": "p-alt", "name": "Alt"},
	})
	base := func(extra map[string]any) RawAppointment {
		raw := RawAppointment{"id": "a", "date": "2025-06-10"}
		for k, v := range extra {
			raw[k] = v
		}
		return raw
	}

	tests := []struct {
		name string
		raw  RawAppointment
		want string
	}{
		{"explicit field first", base(map[string]any{"patientId": "p-explicit", "patient": map[string]any{"id": "p-nested"}}), "Explicit"},
		{"nested id", base(map[string]any{"patient": map[string]any{"id": "p-nested"}}), "Nested"},
		{"nested _id", base(map[string]any{"patient": map[string]any{"_id": "p-alt"}}), "Alt"},
		{"nested role id", base(map[string]any{"patient": map[string]any{"patientId": "p-alt"}}), "Alt"},
		{"snake case key", base(map[string]any{"patient_id": "p-explicit"}), "Explicit"},
		{"scalar id known to directory", base(map[string]any{"patient": "p-nested"}), "Nested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Resolve(tt.raw, patients, nil, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Patient.DisplayName)
			assert.False(t, a.Patient.Placeholder)
		})
	}
}

func TestResolveEmbeddedObjectNames(t *testing.T) {
	tests := []struct {
		name    string
		patient any
		want    string
		ph      bool
	}{
		{"full name", map[string]any{"fullName": "Ana Ruiz"}, "Ana Ruiz", false},
		{"first and last", map[string]any{"firstName": "Ana", "lastName": "Ruiz"}, "Ana Ruiz", false},
		{"first only", map[string]any{"firstName": "Ana"}, "Ana", false},
		{"email", map[string]any{"email": "ana@example.com"}, "ana@example.com", false},
		{"nothing usable", map[string]any{"age": 40}, UnknownPatient, true},
		{"scalar string", "Walk-in Ana", "Walk-in Ana", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := RawAppointment{"id": "a", "date": "2025-06-10", "patient": tt.patient}
			a, err := Resolve(raw, nil, nil, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Patient.DisplayName)
			assert.Equal(t, tt.ph, a.Patient.Placeholder)
		})
	}
}

func TestResolveDateShapes(t *testing.T) {
	loc := time.FixedZone("clinic", 2*3600)
	want := time.Date(2025, 6, 10, 9, 30, 0, 0, loc)

	tests := []struct {
		name string
		raw  RawAppointment
	}{
		{"local date time", RawAppointment{"appointmentDate": "2025-06-10T09:30:00"}},
		{"seconds dropped", RawAppointment{"appointmentDate": "2025-06-10T09:30:45.123"}},
		{"rfc3339 converted", RawAppointment{"scheduledAt": "2025-06-10T07:30:00Z"}},
		{"space separated", RawAppointment{"dateTime": "2025-06-10 09:30"}},
		{"date plus time", RawAppointment{"date": "2025-06-10", "time": "09:30"}},
		{"date plus 12h time", RawAppointment{"date": "2025-06-10", "time": "9:30 AM"}},
		{"padded 12h time", RawAppointment{"date": "2025-06-10", "time": "09:30 am"}},
		{"jackson array", RawAppointment{"appointmentDate": []any{2025.0, 6.0, 10.0, 9.0, 30.0}}},
		{"epoch millis", RawAppointment{"appointmentDate": float64(want.UnixMilli())}},
		{"time value", RawAppointment{"scheduledAt": want.UTC()}},
		{"blank field falls through", RawAppointment{"appointmentDate": "", "date": "2025-06-10T09:30:00"}},
		{"blank time ignored", RawAppointment{"dateTime": "2025-06-10T09:30:00", "time": " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw["id"] = "a"
			a, err := Resolve(tt.raw, nil, nil, loc)
			require.NoError(t, err)
			assert.True(t, want.Equal(a.ScheduledAt), "got %s", a.ScheduledAt)
			assert.Equal(t, loc, a.ScheduledAt.Location())
		})
	}
}

func TestResolveFailures(t *testing.T) {
	_, err := Resolve(RawAppointment{"date": "2025-06-10"}, nil, nil, time.UTC)
	var missing *MissingIdentifierError
	assert.ErrorAs(t, err, &missing)

	_, err = Resolve(RawAppointment{"id": "a"}, nil, nil, time.UTC)
	var dateErr *DateParseError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "", dateErr.Field)

	_, err = Resolve(RawAppointment{"id": "a", "appointmentDate": "next tuesday"}, nil, nil, time.UTC)
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "appointmentDate", dateErr.Field)

	_, err = Resolve(RawAppointment{"id": "a", "date": "2025-06-10", "time": "25:99"}, nil, nil, time.UTC)
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "time", dateErr.Field)

	_, err = Resolve(RawAppointment{"id": "a", "appointmentDate": []any{2025, 13, 1}}, nil, nil, time.UTC)
	assert.True(t, errors.As(err, &dateErr))
}

func TestResolveRejectsOutOfRangeDateArrays(t *testing.T) {
	tests := []struct {
		name  string
		parts []any
	}{
		{"feb 31", []any{2025.0, 2.0, 31.0, 9.0, 0.0}},
		{"apr 31 date only", []any{2025.0, 4.0, 31.0}},
		{"hour 25", []any{2025.0, 6.0, 10.0, 25.0, 0.0}},
		{"negative hour", []any{2025.0, 6.0, 10.0, -1.0, 0.0}},
		{"minute 60", []any{2025.0, 6.0, 10.0, 9.0, 60.0}},
		{"second 61", []any{2025.0, 6.0, 10.0, 9.0, 0.0, 61.0}},
		{"month 0", []any{2025.0, 0.0, 10.0, 9.0, 0.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(RawAppointment{"id": "a", "appointmentDate": tt.parts}, nil, nil, time.UTC)
			var dateErr *DateParseError
			require.ErrorAs(t, err, &dateErr)
			assert.Equal(t, "appointmentDate", dateErr.Field)
		})
	}

	a, err := Resolve(RawAppointment{"id": "a", "appointmentDate": []any{2024.0, 2.0, 29.0, 23.0, 59.0}}, nil, nil, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), a.ScheduledAt)
}

func TestResolveAllBlankDatesAreDropped(t *testing.T) {
	_, report := ResolveAll([]RawAppointment{{"id": "a", "appointmentDate": "", "date": "  "}}, nil, nil, time.UTC)
	require.Len(t, report.Dropped, 1)
	var dateErr *DateParseError
	assert.ErrorAs(t, report.Dropped[0].Err, &dateErr)
}

func TestResolveAllDropsAndReports(t *testing.T) {
	raws := []RawAppointment{
		{"id": "ok", "patientId": "p1", "doctorId": "d1", "date": "2025-06-10", "time": "09:00"},
		{"id": "bad-date", "date": "soon"},
		{"doctorId": "d1", "date": "2025-06-10"},
		nil,
		{"id": "ok2", "date": "2025-06-10", "status": "CONFIRMED", "description": "bring scans"},
	}
	patients := NewDirectory(RolePatient, []RawPerson{{"id": "p1", "name": "Ana"}})
	doctors := NewDirectory(RoleDoctor, []RawPerson{{"id": "d1", "name": "Dr. Lee"}})

	appts, report := ResolveAll(raws, patients, doctors, time.UTC)
	require.Len(t, appts, 2)
	assert.Equal(t, "ok", appts[0].ID)
	assert.Equal(t, "ok2", appts[1].ID)
	assert.Equal(t, StatusAccepted, appts[1].Status)
	assert.Equal(t, "bring scans", appts[1].Notes)

	require.Len(t, report.Dropped, 3)
	assert.Equal(t, 1, report.Dropped[0].Index)
	assert.Equal(t, "bad-date", report.Dropped[0].ID)
	assert.Equal(t, 2, report.Dropped[1].Index)
	assert.NotEmpty(t, report.Dropped[1].Reason())

	require.Len(t, report.Fallbacks, 2)
	assert.Equal(t, ResolutionFallback{AppointmentID: "ok2", Role: RolePatient}, report.Fallbacks[0])
	assert.Equal(t, RoleDoctor, report.Fallbacks[1].Role)
}

func TestResolveIsIdempotent(t *testing.T) {
	raw := RawAppointment{
		"id":      json.Number("12"),
		"patient": map[string]any{"id": 7.0, "firstName": "Ana"},
		"doctor":  map[string]any{"id": "3"},
		"date":    "2025-06-10",
		"time":    "10:00",
	}
	doctors := NewDirectory(RoleDoctor, []RawPerson{{"id": 3, "fullName": "Dr. Lee"}})

	first, err := Resolve(raw, nil, doctors, time.UTC)
	require.NoError(t, err)
	second, err := Resolve(raw, nil, doctors, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "12", first.ID)
	assert.Equal(t, "7", first.Patient.ID)
	assert.Equal(t, "Dr. Lee", first.Doctor.DisplayName)
}

func TestResolveRoundTrip(t *testing.T) {
	loc := time.FixedZone("clinic", -5*3600)
	in := Appointment{
		ID:          "a-1",
		Patient:     PersonStub{ID: "7", DisplayName: "Ana Ruiz", Phone: "555-0101", Email: "ana@example.com"},
		Doctor:      PersonStub{ID: "3", DisplayName: "Dr. Lee", Specialization: "Cardiology"},
		ScheduledAt: time.Date(2025, 6, 10, 9, 0, 0, 0, loc),
		Type:        "follow-up",
		Status:      StatusScheduled,
		Notes:       "bring scans",
		Version:     3,
	}
	for _, a := range []Appointment{in, func() Appointment {
		ph := in
		ph.Patient = PersonStub{ID: "9", DisplayName: UnknownPatient, Placeholder: true}
		return ph
	}()} {
		data, err := json.Marshal(a)
		require.NoError(t, err)
		var raw RawAppointment
		require.NoError(t, json.Unmarshal(data, &raw))

		out, err := Resolve(raw, nil, nil, loc)
		require.NoError(t, err)
		assert.Equal(t, a, out)
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(RoleDoctor, []RawPerson{
		{"id": 2, "name": "Dr. Kim"},
		{"name": "no id"},
		{"_id": "x", "email": "lee@example.com", "specialization": "ENT"},
	})
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, RoleDoctor, d.Role())

	p, ok := d.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "Dr. Kim", p.DisplayName)

	p, ok = d.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "lee@example.com", p.DisplayName)
	assert.Equal(t, "ENT", p.Specialization)

	people := d.People()
	require.Len(t, people, 2)
	assert.Equal(t, "Dr. Kim", people[0].DisplayName)

	var nilDir *Directory
	_, ok = nilDir.Lookup("2")
	assert.False(t, ok)
}

func TestCoerceID(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{7, "7", true},
		{7.0, "7", true},
		{json.Number("7"), "7", true},
		{" 7 ", "7", true},
		{int64(42), "42", true},
		{1.5, "1.5", true},
		{"", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tt := range tests {
		got, ok := CoerceID(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestCoerceInt(t *testing.T) {
	for _, v := range []any{3, int64(3), 3.0, json.Number("3"), " 3 "} {
		n, ok := CoerceInt(v)
		assert.True(t, ok, "%v", v)
		assert.Equal(t, int64(3), n, "%v", v)
	}
	for _, v := range []any{3.5, "three", nil, true} {
		_, ok := CoerceInt(v)
		assert.False(t, ok, "%v", v)
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusScheduled, ParseStatus("SCHEDULED"))
	assert.Equal(t, StatusAccepted, ParseStatus("confirmed"))
	assert.Equal(t, StatusNoShow, ParseStatus("NO_SHOW"))
	assert.Equal(t, StatusNoShow, ParseStatus("no show"))
	assert.Equal(t, StatusCancelled, ParseStatus("Canceled"))
	assert.Equal(t, StatusPending, ParseStatus(""))
	assert.Equal(t, StatusPending, ParseStatus("rescheduled"))

	_, ok := LookupStatus("rescheduled")
	assert.False(t, ok)
}

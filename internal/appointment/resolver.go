package appointment

import (
	"sort"
	"strings"
	"time"
)

// Directory is a lookup table of known people for one role, keyed by the
// string-coerced backend id.
type Directory struct {
	role   string
	people map[string]PersonStub
}

// NewDirectory indexes people by id (or _id). Records without an id are
// skipped; a later duplicate replaces an earlier one.
func NewDirectory(role string, people []RawPerson) *Directory {
	d := &Directory{role: role, people: make(map[string]PersonStub, len(people))}
	for _, p := range people {
		if p == nil {
			continue
		}
		id, ok := recordID(p)
		if !ok {
			continue
		}
		stub := personFrom(p, role)
		stub.ID = id
		d.people[id] = stub
	}
	return d
}

func (d *Directory) Role() string {
	if d == nil {
		return ""
	}
	return d.role
}

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.people)
}

// Lookup returns the stub for id. A nil directory knows nobody.
func (d *Directory) Lookup(id string) (PersonStub, bool) {
	if d == nil || id == "" {
		return PersonStub{}, false
	}
	p, ok := d.people[id]
	return p, ok
}

// People returns every entry ordered by display name, then id.
func (d *Directory) People() []PersonStub {
	if d == nil {
		return nil
	}
	out := make([]PersonStub, 0, len(d.people))
	for _, p := range d.people {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DroppedRecord is a raw appointment that could not be turned into a
// canonical Appointment.
type DroppedRecord struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   error  `json:"-"`
}

func (d DroppedRecord) Reason() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// Report collects what ResolveAll recovered from.
type Report struct {
	Dropped   []DroppedRecord      `json:"dropped"`
	Fallbacks []ResolutionFallback `json:"fallbacks"`
}

// Resolve turns one raw record into a canonical Appointment. Identity
// resolution never fails; only a missing id or an unusable timestamp does.
func Resolve(raw RawAppointment, patients, doctors *Directory, loc *time.Location) (Appointment, error) {
	a, _, err := resolve(raw, patients, doctors, loc)
	return a, err
}

// ResolveAll resolves every record, dropping the ones that cannot be built
// and recording each placeholder fallback. Input order is preserved.
func ResolveAll(raws []RawAppointment, patients, doctors *Directory, loc *time.Location) ([]Appointment, Report) {
	out := make([]Appointment, 0, len(raws))
	report := Report{}
	for i, raw := range raws {
		a, fallbacks, err := resolve(raw, patients, doctors, loc)
		if err != nil {
			id, _ := recordID(raw)
			report.Dropped = append(report.Dropped, DroppedRecord{Index: i, ID: id, Err: err})
			continue
		}
		report.Fallbacks = append(report.Fallbacks, fallbacks...)
		out = append(out, a)
	}
	return out, report
}

func resolve(raw RawAppointment, patients, doctors *Directory, loc *time.Location) (Appointment, []ResolutionFallback, error) {
	if loc == nil {
		loc = time.Local
	}
	if raw == nil {
		return Appointment{}, nil, &MissingIdentifierError{Op: "resolve"}
	}
	id, ok := recordID(raw)
	if !ok {
		return Appointment{}, nil, &MissingIdentifierError{Op: "resolve"}
	}
	at, err := scheduledAt(raw, loc)
	if err != nil {
		return Appointment{}, nil, err
	}

	a := Appointment{
		ID:          id,
		ScheduledAt: at,
		Type:        stringField(raw, "type", "appointmentType"),
		Status:      ParseStatus(stringField(raw, "status")),
		Notes:       stringField(raw, "notes", "description"),
	}
	if a.Type == "" {
		a.Type = DefaultType
	}
	if v, ok := field(raw, "version"); ok {
		if n, ok := CoerceInt(v); ok && n > 0 {
			a.Version = n
		}
	}

	var fallbacks []ResolutionFallback
	var fb *ResolutionFallback
	a.Patient, fb = resolvePerson(raw, RolePatient, patients)
	if fb != nil {
		fb.AppointmentID = id
		fallbacks = append(fallbacks, *fb)
	}
	a.Doctor, fb = resolvePerson(raw, RoleDoctor, doctors)
	if fb != nil {
		fb.AppointmentID = id
		fallbacks = append(fallbacks, *fb)
	}
	return a, fallbacks, nil
}

// resolvePerson applies the lookup order for one role: candidate id in the
// directory, then the embedded object, then a placeholder.
func resolvePerson(raw RawAppointment, role string, dir *Directory) (PersonStub, *ResolutionFallback) {
	candidate, embedded, scalarName := personRef(raw, role, dir)

	if stub, ok := dir.Lookup(candidate); ok {
		return stub, nil
	}

	if embedded != nil {
		stub := personFrom(embedded, role)
		stub.ID = candidate
		if !stub.Placeholder {
			return stub, nil
		}
		return stub, &ResolutionFallback{Role: role, CandidateID: candidate}
	}

	if scalarName != "" {
		return PersonStub{ID: candidate, DisplayName: scalarName}, nil
	}

	return PersonStub{ID: candidate, DisplayName: unknownName(role), Placeholder: true},
		&ResolutionFallback{Role: role, CandidateID: candidate}
}

// personRef extracts the candidate id, the embedded object and a bare
// display name from raw for role. A scalar string under <role> is an id
// when dir knows it and a display name otherwise.
func personRef(raw RawAppointment, role string, dir *Directory) (candidate string, embedded map[string]any, scalarName string) {
	if v, ok := field(raw, role+"Id"); ok {
		candidate, _ = CoerceID(v)
	}

	v, ok := field(raw, role)
	if !ok {
		return candidate, nil, ""
	}
	if m, isMap := asMap(v); isMap {
		embedded = m
		if candidate == "" {
			for _, k := range []string{"id", "_id", role + "Id"} {
				if idv, ok := field(m, k); ok {
					if id, ok := CoerceID(idv); ok {
						candidate = id
						break
					}
				}
			}
		}
		return candidate, embedded, ""
	}
	if s, isStr := v.(string); isStr {
		s = strings.TrimSpace(s)
		if _, known := dir.Lookup(s); known && candidate == "" {
			return s, nil, ""
		}
		return candidate, nil, s
	}
	if candidate == "" {
		candidate, _ = CoerceID(v)
	}
	return candidate, nil, ""
}

// personFrom builds a stub from a user-shaped map. The id is left to the
// caller.
func personFrom(m map[string]any, role string) PersonStub {
	stub := PersonStub{
		DisplayName:    displayName(m),
		Phone:          stringField(m, "phone", "phoneNumber"),
		Email:          stringField(m, "email"),
		Specialization: stringField(m, "specialization"),
	}
	if v, ok := field(m, "placeholder"); ok {
		if b, isBool := v.(bool); isBool && b {
			stub.Placeholder = true
		}
	}
	if stub.DisplayName == "" {
		stub.DisplayName = unknownName(role)
		stub.Placeholder = true
	}
	return stub
}

func displayName(m map[string]any) string {
	if s := stringField(m, "displayName", "fullName", "name"); s != "" {
		return s
	}
	first := stringField(m, "firstName")
	last := stringField(m, "lastName")
	if s := strings.TrimSpace(first + " " + last); s != "" {
		return s
	}
	return stringField(m, "email")
}

func unknownName(role string) string {
	switch role {
	case RolePatient:
		return UnknownPatient
	case RoleDoctor:
		return UnknownDoctor
	}
	if role == "" {
		return "Unknown"
	}
	return "Unknown " + strings.ToUpper(role[:1]) + role[1:]
}

func recordID(m map[string]any) (string, bool) {
	for _, k := range []string{"id", "_id"} {
		if v, ok := m[k]; ok {
			if id, ok := CoerceID(v); ok {
				return id, true
			}
		}
	}
	if v, ok := field(m, "id"); ok {
		return CoerceID(v)
	}
	return "", false
}

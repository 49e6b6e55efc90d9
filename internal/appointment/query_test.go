package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(appts []Appointment) []string {
	out := make([]string, len(appts))
	for i, a := range appts {
		out[i] = a.ID
	}
	return out
}

func sample(now time.Time) []Appointment {
	return []Appointment{
		{ID: "lee-today", Patient: PersonStub{DisplayName: "Ana Ruiz"}, Doctor: PersonStub{ID: "3", DisplayName: "Dr. Lee"},
			ScheduledAt: now.Add(2 * time.Hour), Type: "checkup", Status: StatusScheduled},
		{ID: "kim-past", Patient: PersonStub{DisplayName: "bo Chen"}, Doctor: PersonStub{ID: "4", DisplayName: "Dr. Kim"},
			ScheduledAt: now.AddDate(0, 0, -3), Type: "follow-up", Status: StatusCompleted, Notes: "Lab results"},
		{ID: "kim-week", Patient: PersonStub{DisplayName: "Cy Diaz"}, Doctor: PersonStub{ID: "4", DisplayName: "Dr. Kim"},
			ScheduledAt: now.AddDate(0, 0, 2), Type: "general", Status: StatusPending},
		{ID: "lee-month", Patient: PersonStub{DisplayName: "Ana Ruiz"}, Doctor: PersonStub{ID: "3", DisplayName: "Dr. Lee"},
			ScheduledAt: now.AddDate(0, 0, 10), Type: "checkup", Status: StatusCancelled},
		{ID: "lee-early-today", Patient: PersonStub{DisplayName: "Dee Fox"}, Doctor: PersonStub{ID: "3", DisplayName: "Dr. Lee"},
			ScheduledAt: now.Add(-time.Hour), Type: "checkup", Status: StatusNoShow},
	}
}

// Tuesday 2025-06-10 10:00; the week runs Sunday 8th to Saturday 14th.
var queryNow = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

func TestQuerySearch(t *testing.T) {
	appts := sample(queryNow)

	got := Query(appts, QueryOptions{Search: "lee", Status: "all"}, queryNow)
	assert.Equal(t, []string{"lee-early-today", "lee-today", "lee-month"}, ids(got))

	got = Query(appts, QueryOptions{Search: "LAB"}, queryNow)
	assert.Equal(t, []string{"kim-past"}, ids(got))

	got = Query(appts, QueryOptions{Search: "follow"}, queryNow)
	assert.Equal(t, []string{"kim-past"}, ids(got))

	got = Query(appts, QueryOptions{Search: "  BO  "}, queryNow)
	assert.Equal(t, []string{"kim-past"}, ids(got))
}

func TestQueryLeeNotKim(t *testing.T) {
	appts := []Appointment{
		{ID: "1", Doctor: PersonStub{DisplayName: "Dr. Lee"}, ScheduledAt: queryNow},
		{ID: "2", Doctor: PersonStub{DisplayName: "Dr. Kim"}, ScheduledAt: queryNow},
	}
	got := Query(appts, QueryOptions{Search: "lee", Status: "all"}, queryNow)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestQueryFilters(t *testing.T) {
	appts := sample(queryNow)

	assert.Equal(t, []string{"kim-week"}, ids(Query(appts, QueryOptions{Status: StatusPending}, queryNow)))
	assert.Equal(t, []string{"kim-week"}, ids(Query(appts, QueryOptions{Type: "general"}, queryNow)))
	assert.Len(t, Query(appts, QueryOptions{Type: "all"}, queryNow), 5)

	tests := []struct {
		filter DateFilter
		want   []string
	}{
		{DateToday, []string{"lee-early-today", "lee-today"}},
		{DateThisWeek, []string{"lee-today", "kim-week"}},
		{DateThisMonth, []string{"kim-past", "lee-early-today", "lee-today", "kim-week", "lee-month"}},
		{DatePast, []string{"kim-past"}},
		{DateUpcoming, []string{"lee-early-today", "lee-today", "kim-week", "lee-month"}},
		{DateAll, []string{"kim-past", "lee-early-today", "lee-today", "kim-week", "lee-month"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Query(appts, QueryOptions{Date: tt.filter}, queryNow)))
		})
	}
}

func TestQueryByPerson(t *testing.T) {
	appts := sample(queryNow)
	for i := range appts {
		if appts[i].Patient.DisplayName == "Ana Ruiz" {
			appts[i].Patient.ID = "7"
		}
	}

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"doctor", QueryOptions{DoctorID: "4"}, []string{"kim-past", "kim-week"}},
		{"doctor trimmed", QueryOptions{DoctorID: " 3 ", Status: StatusScheduled}, []string{"lee-today"}},
		{"patient", QueryOptions{PatientID: "7"}, []string{"lee-today", "lee-month"}},
		{"patient and doctor", QueryOptions{PatientID: "7", DoctorID: "4"}, []string{}},
		{"unknown doctor", QueryOptions{DoctorID: "99"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Query(appts, tt.opts, queryNow)))
		})
	}
}

func TestQuerySortIsStableAndChronological(t *testing.T) {
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	appts := []Appointment{
		{ID: "late", ScheduledAt: base.Add(time.Hour), Patient: PersonStub{DisplayName: "b"}},
		{ID: "early", ScheduledAt: base, Patient: PersonStub{DisplayName: "B"}},
		{ID: "zone", ScheduledAt: base.Add(30 * time.Minute).In(time.FixedZone("x", -8*3600)), Patient: PersonStub{DisplayName: "a"}},
	}

	assert.Equal(t, []string{"early", "zone", "late"}, ids(Query(appts, QueryOptions{}, queryNow)))
	assert.Equal(t, []string{"late", "zone", "early"}, ids(Query(appts, QueryOptions{Descending: true}, queryNow)))
	// "b" and "B" tie case-insensitively and keep input order
	assert.Equal(t, []string{"zone", "late", "early"}, ids(Query(appts, QueryOptions{Sort: SortPatient}, queryNow)))
	assert.Equal(t, []string{"late", "early", "zone"}, ids(Query(appts, QueryOptions{Sort: SortPatient, Descending: true}, queryNow)))

	assert.Equal(t, "late", appts[0].ID, "input untouched")
}

func TestQueryPagination(t *testing.T) {
	appts := sample(queryNow)
	assert.Equal(t, []string{"lee-early-today", "lee-today"}, ids(Query(appts, QueryOptions{Offset: 1, Limit: 2}, queryNow)))
	assert.Len(t, Query(appts, QueryOptions{Offset: -4}, queryNow), 5)
	assert.Empty(t, Query(appts, QueryOptions{Offset: 9}, queryNow))
	assert.NotNil(t, Query(nil, QueryOptions{}, queryNow))
}

func TestParseFilterValues(t *testing.T) {
	f, err := ParseDateFilter("ThisWeek")
	require.NoError(t, err)
	assert.Equal(t, DateThisWeek, f)
	f, err = ParseDateFilter("month")
	require.NoError(t, err)
	assert.Equal(t, DateThisMonth, f)
	f, err = ParseDateFilter("")
	require.NoError(t, err)
	assert.Equal(t, DateAll, f)
	_, err = ParseDateFilter("yesterday")
	assert.Error(t, err)

	s, err := ParseSortField("scheduled_at")
	require.NoError(t, err)
	assert.Equal(t, SortScheduledAt, s)
	_, err = ParseSortField("age")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	st := Summarize(sample(queryNow), queryNow)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 2, st.Today)
	// lee-today and kim-week; lee-month is cancelled and outside the window
	assert.Equal(t, 2, st.Upcoming)
	assert.Equal(t, 1, st.ByStatus[StatusScheduled])
	assert.Equal(t, 1, st.ByStatus[StatusNoShow])
	assert.Equal(t, 0, st.ByStatus[StatusAccepted])
	assert.Len(t, st.ByStatus, len(Statuses))
}

package httpstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := New(Options{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second})
	require.NoError(t, err)
	return s
}

func TestListAppointmentsAcceptsEnvelopeAndNumbers(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("doctorId"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"appointments":[{"id":12,"patientId":7,"appointmentDate":[2025,6,10,9,0]}]}`)
	})

	list, err := s.ListAppointments(context.Background(), appointment.AppointmentFilter{DoctorID: "3"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, json.Number("12"), list[0]["id"])

	a, err := appointment.Resolve(list[0], nil, nil, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "12", a.ID)
	assert.Equal(t, "7", a.Patient.ID)
	assert.Equal(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), a.ScheduledAt)
}

func TestListUsersBareArray(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DOCTOR", r.URL.Query().Get("role"))
		_, _ = io.WriteString(w, `[{"id":"3","fullName":"Dr. Lee"},"junk"]`)
	})

	docs, err := s.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Dr. Lee", docs[0]["fullName"])
}

func TestCreateSendsPayload(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2025-06-10T09:00:00", body["appointmentDate"])
		assert.Equal(t, "SCHEDULED", body["status"])
		body["id"] = 99
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": body})
	})

	raw, err := s.CreateAppointment(context.Background(), appointment.AppointmentPayload{
		PatientID:       "7",
		DoctorID:        "3",
		AppointmentDate: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Type:            "checkup",
		Status:          appointment.StatusScheduled,
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("99"), raw["id"])
}

func TestUpdateSendsIfMatch(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/appointments/12", r.URL.Path)
		if r.Header.Get("If-Match") != `"4"` {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	raw, err := s.UpdateAppointment(context.Background(), "12", map[string]any{"status": "cancelled"}, 4)
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = s.UpdateAppointment(context.Background(), "12", map[string]any{"status": "cancelled"}, 3)
	assert.ErrorIs(t, err, appointment.ErrVersionConflict)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, appointment.ErrNotFound},
		{http.StatusConflict, appointment.ErrSlotTaken},
		{http.StatusPreconditionFailed, appointment.ErrVersionConflict},
	}
	for _, tt := range tests {
		s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		})
		err := s.DeleteAppointment(context.Background(), "1")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.code)
	}

	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	err := s.DeleteAppointment(context.Background(), "1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Body)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// ID accepts a JSON string or number, so {"doctorId": 3} and
// {"doctorId": "3"} bind the same way.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*id = ""
		return nil
	}
	s, ok := appointment.CoerceID(v)
	if !ok {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ID(s)
	return nil
}

type CreateAppointmentRequest struct {
	PatientID ID     `json:"patientId"`
	DoctorID  ID     `json:"doctorId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Type      string `json:"type"`
	Notes     string `json:"notes"`
	Status    string `json:"status"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentListResponse struct {
	Appointments []appointment.Appointment `json:"appointments"`
	Count        int                       `json:"count"`
}

type RescheduleResponse struct {
	Cancelled appointment.Appointment `json:"cancelled"`
	Booked    appointment.Appointment `json:"booked"`
}

type SlotsResponse struct {
	Date           string                 `json:"date"`
	DoctorID       string                 `json:"doctorId"`
	Slots          []appointment.TimeSlot `json:"slots"`
	FirstAvailable *appointment.TimeSlot  `json:"firstAvailable,omitempty"`
}

type ScheduleResponse struct {
	Date         string                    `json:"date"`
	DoctorID     string                    `json:"doctorId"`
	Appointments []appointment.Appointment `json:"appointments"`
}

type DroppedRecordResponse struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

type RefreshResponse struct {
	Appointments int                              `json:"appointments"`
	Dropped      []DroppedRecordResponse          `json:"dropped"`
	Fallbacks    []appointment.ResolutionFallback `json:"fallbacks"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

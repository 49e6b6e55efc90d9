package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

type handlers struct {
	svc Scheduler
	log *zap.Logger
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Refresh(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := RefreshResponse{
		Appointments: len(h.svc.Appointments()),
		Dropped:      make([]DroppedRecordResponse, 0, len(report.Dropped)),
		Fallbacks:    report.Fallbacks,
	}
	if resp.Fallbacks == nil {
		resp.Fallbacks = []appointment.ResolutionFallback{}
	}
	for _, d := range report.Dropped {
		resp.Dropped = append(resp.Dropped, DroppedRecordResponse{Index: d.Index, ID: d.ID, Reason: d.Reason()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	appts := h.svc.Query(opts)
	writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: appts, Count: len(appts)})
}

func parseQueryOptions(r *http.Request) (appointment.QueryOptions, error) {
	q := r.URL.Query()
	opts := appointment.QueryOptions{
		Search:    q.Get("search"),
		Type:      q.Get("type"),
		DoctorID:  q.Get("doctorId"),
		PatientID: q.Get("patientId"),
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" && !strings.EqualFold(raw, "all") {
		st, ok := appointment.LookupStatus(raw)
		if !ok {
			return opts, errors.New("unknown status " + strconv.Quote(raw))
		}
		opts.Status = st
	}

	var err error
	if opts.Date, err = appointment.ParseDateFilter(q.Get("date")); err != nil {
		return opts, err
	}
	if opts.Sort, err = appointment.ParseSortField(q.Get("sort")); err != nil {
		return opts, err
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		opts.Descending = true
	default:
		return opts, errors.New("order must be asc or desc")
	}
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		return opts, errors.New("limit must be an integer")
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		return opts, errors.New("offset must be an integer")
	}
	return opts, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	at, err := h.instant(req.Date, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	var status appointment.Status
	if strings.TrimSpace(req.Status) != "" {
		st, ok := appointment.LookupStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+strconv.Quote(req.Status))
			return
		}
		status = st
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookingRequest{
		PatientID: string(req.PatientID),
		DoctorID:  string(req.DoctorID),
		At:        at,
		Type:      req.Type,
		Notes:     req.Notes,
		Status:    status,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// instant combines a YYYY-MM-DD date and a time of day in the service zone.
func (h *handlers) instant(date, clock string) (time.Time, error) {
	day, err := appointment.ParseDate(date, h.svc.Location())
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	t, err := appointment.ParseLocalTime(clock)
	if err != nil {
		return time.Time{}, err
	}
	return t.On(day), nil
}

func (h *handlers) transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	to, ok := appointment.LookupStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+strconv.Quote(req.Status))
		return
	}
	appt, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) accept(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Accept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	at, err := h.instant(req.Date, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	cancelled, booked, err := h.svc.Reschedule(r.Context(), chi.URLParam(r, "id"), at)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RescheduleResponse{Cancelled: cancelled, Booked: booked})
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) slots(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorId")
	q := r.URL.Query()

	day, err := appointment.ParseDate(q.Get("date"), h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	hours, err := hoursOverride(q, h.svc.Hours())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_working_hours", err.Error())
		return
	}

	slots := h.svc.AvailableSlots(day, doctorID, hours)
	resp := SlotsResponse{
		Date:     day.Format(appointment.DateLayout),
		DoctorID: doctorID,
		Slots:    slots,
	}
	if first, ok := appointment.FirstAvailable(slots); ok {
		resp.FirstAvailable = &first
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) schedule(w http.ResponseWriter, r *http.Request) {
	doctorID := chi.URLParam(r, "doctorId")
	day, err := appointment.ParseDate(r.URL.Query().Get("date"), h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appts, err := h.svc.Schedule(r.Context(), doctorID, day)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{
		Date:         day.Format(appointment.DateLayout),
		DoctorID:     doctorID,
		Appointments: appts,
	})
}

// hoursOverride applies startHour, endHour, breakStart, breakEnd and
// slotMinutes query parameters over def. It returns nil when none is set.
func hoursOverride(q map[string][]string, def appointment.WorkingHours) (*appointment.WorkingHours, error) {
	hours := def
	fields := []struct {
		key string
		dst *int
	}{
		{"startHour", &hours.StartHour},
		{"endHour", &hours.EndHour},
		{"breakStart", &hours.BreakStart},
		{"breakEnd", &hours.BreakEnd},
		{"slotMinutes", &hours.SlotMinutes},
	}
	var set bool
	for _, f := range fields {
		vals := q[f.key]
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			return nil, errors.New(f.key + " must be an integer")
		}
		*f.dst = n
		set = true
	}
	if !set {
		return nil, nil
	}
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	return &hours, nil
}

func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		transitionErr *appointment.InvalidTransitionError
		missingErr    *appointment.MissingIdentifierError
	)
	switch {
	case appointment.IsNotFound(err):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable),
		errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.As(err, &missingErr),
		errors.Is(err, appointment.ErrMissingPatient),
		errors.Is(err, appointment.ErrMissingDoctor),
		errors.Is(err, appointment.ErrInvalidInitialStatus):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

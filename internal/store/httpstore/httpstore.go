// Package httpstore implements appointment.Store over the clinic JSON REST
// API.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const localDateTime = "2006-01-02T15:04:05"

// StatusError is an unexpected HTTP response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

type Store struct {
	base   *url.URL
	token  string
	client *http.Client
}

var _ appointment.Store = (*Store)(nil)

func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Store{base: base, token: opts.Token, client: client}, nil
}

func (s *Store) ListAppointments(ctx context.Context, filter appointment.AppointmentFilter) ([]appointment.RawAppointment, error) {
	q := url.Values{}
	if filter.PatientID != "" {
		q.Set("patientId", filter.PatientID)
	}
	if filter.DoctorID != "" {
		q.Set("doctorId", filter.DoctorID)
	}
	if filter.From != nil {
		q.Set("from", filter.From.Format(localDateTime))
	}
	if filter.To != nil {
		q.Set("to", filter.To.Format(localDateTime))
	}

	body, err := s.do(ctx, http.MethodGet, "/api/appointments", q, nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapList(body, "appointments")
	if err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	out := make([]appointment.RawAppointment, 0, len(items))
	for _, m := range items {
		out = append(out, appointment.RawAppointment(m))
	}
	return out, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.listUsers(ctx, appointment.RolePatient)
}

func (s *Store) ListDoctors(ctx context.Context) ([]appointment.RawPerson, error) {
	return s.listUsers(ctx, appointment.RoleDoctor)
}

func (s *Store) listUsers(ctx context.Context, role string) ([]appointment.RawPerson, error) {
	// the backend keeps roles upper-case
	q := url.Values{"role": {strings.ToUpper(role)}}
	body, err := s.do(ctx, http.MethodGet, "/api/users", q, nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapList(body, "users", role+"s")
	if err != nil {
		return nil, fmt.Errorf("decode %s users: %w", role, err)
	}
	out := make([]appointment.RawPerson, 0, len(items))
	for _, m := range items {
		out = append(out, appointment.RawPerson(m))
	}
	return out, nil
}

func (s *Store) CreateAppointment(ctx context.Context, payload appointment.AppointmentPayload) (appointment.RawAppointment, error) {
	fields := payload.Fields()
	fields["status"] = strings.ToUpper(string(payload.Status))
	body, err := s.do(ctx, http.MethodPost, "/api/appointments", nil, fields, nil)
	if err != nil {
		return nil, err
	}
	m, err := unwrapOne(body)
	if err != nil {
		return nil, fmt.Errorf("decode created appointment: %w", err)
	}
	return appointment.RawAppointment(m), nil
}

func (s *Store) UpdateAppointment(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (appointment.RawAppointment, error) {
	var header http.Header
	if expectedVersion > 0 {
		header = http.Header{"If-Match": {strconv.Quote(strconv.FormatInt(expectedVersion, 10))}}
	}
	body, err := s.do(ctx, http.MethodPut, "/api/appointments/"+url.PathEscape(id), nil, fields, header)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	m, err := unwrapOne(body)
	if err != nil {
		return nil, fmt.Errorf("decode updated appointment: %w", err)
	}
	return appointment.RawAppointment(m), nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodDelete, "/api/appointments/"+url.PathEscape(id), nil, nil, nil)
	return err
}

// Ping checks that the backend answers at all.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/api/users", url.Values{"role": {"DOCTOR"}}, nil, nil)
	return err
}

func (s *Store) do(ctx context.Context, method, path string, query url.Values, in any, header http.Header) ([]byte, error) {
	u := *s.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, appointment.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, appointment.ErrSlotTaken
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, appointment.ErrVersionConflict
	default:
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
}

func decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrapList accepts a bare array or an object holding one under one of
// keys, "data" or "content".
func unwrapList(body []byte, keys ...string) ([]map[string]any, error) {
	v, err := decode(body)
	if err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		var found bool
		for _, k := range append(keys, "data", "content") {
			if inner, ok := obj[k]; ok {
				v, found = inner, true
				break
			}
		}
		if !found {
			return nil, errors.New("no list in response")
		}
	}
	if v == nil {
		return []map[string]any{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// unwrapOne accepts a bare object or one wrapped as appointment or data.
func unwrapOne(body []byte) (map[string]any, error) {
	v, err := decode(body)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	for _, k := range []string{"appointment", "data"} {
		if inner, ok := m[k].(map[string]any); ok {
			return inner, nil
		}
	}
	return m, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/logger"
)

// The simulator fires concurrent bookings at the same doctor and slot and
// checks that exactly one wins each round. It then cancels the winner and
// checks that the slot is offered again.

type SimConfig struct {
	APIBaseURL string
	DoctorID   string
	PatientIDs []string
	Date       string
	Rounds     int
	Workers    int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

// Percentiles returns the average, p50 and p95 latency.
func (om *OperationMetrics) Percentiles() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		latencies[len(latencies)*50/100],
		latencies[min(len(latencies)*95/100, len(latencies)-1)]
}

type slot struct {
	StartTime   string `json:"startTime"`
	Label       string `json:"label"`
	IsAvailable bool   `json:"isAvailable"`
}

type slotsResponse struct {
	Slots          []slot `json:"slots"`
	FirstAvailable *slot  `json:"firstAvailable"`
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      *zap.Logger
	booking  OperationMetrics
	cancel   OperationMetrics
	failures []string
}

func main() {
	log, err := logger.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.String("doctor_id", cfg.DoctorID),
		zap.String("date", cfg.Date),
		zap.Int("rounds", cfg.Rounds),
		zap.Int("workers", cfg.Workers),
	)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Minute)
	defer stop()

	for round := 1; round <= cfg.Rounds; round++ {
		if err := sim.runRound(ctx, round); err != nil {
			log.Error("round aborted", zap.Int("round", round), zap.Error(err))
			break
		}
	}

	sim.PrintReport()
	if len(sim.failures) > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL: strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		DoctorID:   getEnv("SIM_DOCTOR_ID", "1"),
		Date:       getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")),
		Rounds:     getInt("SIM_ROUNDS", 5),
		Workers:    getInt("SIM_WORKERS", 20),
	}
	for _, id := range strings.Split(getEnv("SIM_PATIENT_IDS", "1,2,3,4,5"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.PatientIDs = append(cfg.PatientIDs, id)
		}
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 1 {
		return errors.New("SIM_WORKERS must be > 1")
	}
	if cfg.Rounds <= 0 {
		return errors.New("SIM_ROUNDS must be > 0")
	}
	if len(cfg.PatientIDs) == 0 {
		return errors.New("SIM_PATIENT_IDS must list at least one patient")
	}
	if _, err := time.Parse("2006-01-02", cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE: %w", err)
	}
	return nil
}

func (s *Simulator) runRound(ctx context.Context, round int) error {
	target, err := s.firstAvailable(ctx)
	if err != nil {
		return err
	}
	if target == nil {
		return errors.New("no available slot left on " + s.config.Date)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		start   = make(chan struct{})
	)
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-start
			patient := s.config.PatientIDs[worker%len(s.config.PatientIDs)]
			if id, ok := s.book(ctx, patient, target.StartTime); ok {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			}
		}(i)
	}
	close(start)
	wg.Wait()

	s.log.Info("round finished",
		zap.Int("round", round),
		zap.String("slot", target.Label),
		zap.Int("winners", len(winners)),
	)
	if len(winners) != 1 {
		s.failures = append(s.failures, fmt.Sprintf("round %d: %d bookings succeeded for %s", round, len(winners), target.Label))
		return nil
	}

	free, err := s.slotAvailable(ctx, target.StartTime)
	if err != nil {
		return err
	}
	if free {
		s.failures = append(s.failures, fmt.Sprintf("round %d: %s still offered after booking", round, target.Label))
	}

	if !s.cancelAppointment(ctx, winners[0]) {
		s.failures = append(s.failures, fmt.Sprintf("round %d: could not cancel %s", round, winners[0]))
		return nil
	}
	free, err = s.slotAvailable(ctx, target.StartTime)
	if err != nil {
		return err
	}
	if !free {
		s.failures = append(s.failures, fmt.Sprintf("round %d: %s not offered after cancel", round, target.Label))
	}

	// Rebook for good so the next round contends on a new slot.
	if _, ok := s.book(ctx, s.config.PatientIDs[0], target.StartTime); !ok {
		s.failures = append(s.failures, fmt.Sprintf("round %d: rebooking %s failed", round, target.Label))
	}
	return nil
}

func (s *Simulator) slots(ctx context.Context) (slotsResponse, error) {
	url := fmt.Sprintf("%s/doctors/%s/slots?date=%s", s.config.APIBaseURL, s.config.DoctorID, s.config.Date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return slotsResponse{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return slotsResponse{}, fmt.Errorf("get slots: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return slotsResponse{}, fmt.Errorf("get slots: status %d", resp.StatusCode)
	}
	var out slotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return slotsResponse{}, fmt.Errorf("decode slots: %w", err)
	}
	return out, nil
}

func (s *Simulator) firstAvailable(ctx context.Context) (*slot, error) {
	out, err := s.slots(ctx)
	if err != nil {
		return nil, err
	}
	return out.FirstAvailable, nil
}

func (s *Simulator) slotAvailable(ctx context.Context, startTime string) (bool, error) {
	out, err := s.slots(ctx)
	if err != nil {
		return false, err
	}
	for _, sl := range out.Slots {
		if sl.StartTime == startTime {
			return sl.IsAvailable, nil
		}
	}
	return false, nil
}

func (s *Simulator) book(ctx context.Context, patientID, startTime string) (string, bool) {
	body, _ := json.Marshal(map[string]string{
		"patientId": patientID,
		"doctorId":  s.config.DoctorID,
		"date":      s.config.Date,
		"time":      startTime,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		s.booking.Record(latency, false, false)
		return "", false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var appt struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&appt)
		s.booking.Record(latency, true, false)
		return appt.ID, true
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
	return "", false
}

func (s *Simulator) cancelAppointment(ctx context.Context, id string) bool {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, id), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.cancel.Record(latency, false, false)
		return false
	}
	defer resp.Body.Close()
	ok := resp.StatusCode == http.StatusOK
	s.cancel.Record(latency, ok, resp.StatusCode == http.StatusConflict)
	return ok
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("CONTENTION REPORT")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Doctor: %s  Date: %s  Rounds: %d  Workers: %d\n\n",
		s.config.DoctorID, s.config.Date, s.config.Rounds, s.config.Workers)

	printOperationReport("Booking", &s.booking)
	printOperationReport("Cancel", &s.cancel)

	if len(s.failures) == 0 {
		fmt.Println("Result: no double bookings observed")
		return
	}
	fmt.Println("Result: FAILED")
	for _, f := range s.failures {
		fmt.Println("  " + f)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

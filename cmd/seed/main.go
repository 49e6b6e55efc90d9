package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/seed"
	"github.com/hackgods/clinic-scheduling/internal/store/pgstore"
)

const batchSize = 500

func main() {
	patients := flag.Int("patients", 2000, "patients to create")
	doctors := flag.Int("doctors", 40, "doctors to create")
	days := flag.Int("days", 28, "days of appointments around today")
	fill := flag.Float64("fill", 0.35, "share of slots to book")
	seedValue := flag.Uint64("seed", 0, "random seed, 0 for a random one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal("seed only writes to postgres", zap.String("store", cfg.StoreBackend))
	}

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancel()
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, pgstore.Migrations(), log); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	ds := seed.Generate(seed.Options{
		Patients: *patients,
		Doctors:  *doctors,
		Days:     *days,
		Fill:     *fill,
		Start:    time.Now().In(cfg.Location),
		Hours:    cfg.Hours,
		Seed:     *seedValue,
	})
	log.Info("seed starting",
		zap.Int("patients", len(ds.Patients)),
		zap.Int("doctors", len(ds.Doctors)),
		zap.Int("appointments", len(ds.Appointments)),
	)

	patientIDs, err := seedUsers(ctx, pool, log, appointment.RolePatient, ds.Patients)
	if err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}
	doctorIDs, err := seedUsers(ctx, pool, log, appointment.RoleDoctor, ds.Doctors)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedAppointments(ctx, pool, log, ds.Appointments, patientIDs, doctorIDs); err != nil {
		log.Fatal("seed appointments", zap.Error(err))
	}

	log.Info("seed complete")
}

// seedUsers inserts people in batches and returns their ids in input order.
func seedUsers(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, role string, people []seed.Person) ([]int64, error) {
	ids := make([]int64, 0, len(people))
	for offset := 0; offset < len(people); offset += batchSize {
		end := min(offset+batchSize, len(people))

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, p := range people[offset:end] {
				var id int64
				err := tx.QueryRow(ctx, `
					INSERT INTO users (role, first_name, last_name, email, phone_number, specialization)
					VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
					RETURNING id
				`, role, p.FirstName, p.LastName, p.Email, p.Phone, p.Specialization).Scan(&id)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Info("users seeded", zap.String("role", role), zap.Int("done", end), zap.Int("total", len(people)))
	}
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, appts []seed.Appointment, patientIDs, doctorIDs []int64) error {
	for offset := 0; offset < len(appts); offset += batchSize {
		end := min(offset+batchSize, len(appts))

		batch := &pgx.Batch{}
		for _, a := range appts[offset:end] {
			// ON CONFLICT skips slots already held from an earlier run.
			batch.Queue(`
				INSERT INTO appointments (patient_id, doctor_id, appointment_date, type, status, notes)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
				ON CONFLICT DO NOTHING
			`, patientIDs[a.Patient], doctorIDs[a.Doctor], a.At, a.Type, string(a.Status), a.Notes)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		log.Info("appointments seeded", zap.Int("done", end), zap.Int("total", len(appts)))
	}
	return nil
}

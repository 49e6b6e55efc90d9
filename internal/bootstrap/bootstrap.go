// Package bootstrap wires the configured store, slot locker and scheduling
// service for the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/seed"
	"github.com/hackgods/clinic-scheduling/internal/store/httpstore"
	"github.com/hackgods/clinic-scheduling/internal/store/memstore"
	"github.com/hackgods/clinic-scheduling/internal/store/pgstore"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Runtime holds everything a binary needs. Close releases the connections.
type Runtime struct {
	Service      *appointment.Service
	Store        appointment.Store
	Dependencies []api.Dependency

	closers []func()
}

func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Open connects the backend selected by cfg and builds the service. It does
// not load the collection; callers Refresh when they are ready.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}

	store, err := rt.openStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Store = store
	if p, ok := store.(pinger); ok {
		rt.Dependencies = append(rt.Dependencies, api.Dependency{
			Name:     cfg.StoreBackend,
			Critical: true,
			Ping:     p.Ping,
		})
	}

	locker, err := rt.openLocker(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Service = appointment.NewService(store, locker, appointment.Options{
		Hours:    cfg.Hours,
		Location: cfg.Location,
	}, logger)
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (appointment.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		logger.Info("connected to postgres")

		if cfg.AutoMigrate {
			if err := db.RunMigrations(ctx, pool, pgstore.Migrations(), logger); err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		return pgstore.New(pool), nil

	case config.BackendHTTP:
		store, err := httpstore.New(httpstore.Options{
			BaseURL: cfg.ClinicAPIURL,
			Token:   cfg.ClinicAPIToken,
			Timeout: cfg.ClinicAPITimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("clinic api client: %w", err)
		}
		logger.Info("using clinic api", zap.String("url", cfg.ClinicAPIURL))
		return store, nil

	case config.BackendMemory:
		store := memstore.New(cfg.Location)
		if cfg.SeedMemory {
			ds := seed.Generate(seed.Options{
				Patients: 50,
				Doctors:  5,
				Start:    time.Now().In(cfg.Location),
				Hours:    cfg.Hours,
			})
			seed.Into(ds, store.AddPatient, store.AddDoctor, store.AddAppointment)
			logger.Info("memory store seeded",
				zap.Int("patients", len(ds.Patients)),
				zap.Int("doctors", len(ds.Doctors)),
				zap.Int("appointments", len(ds.Appointments)),
			)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// openLocker picks Redis when it is configured and an in-process locker
// otherwise. The in-process locker only protects a single replica.
func (rt *Runtime) openLocker(ctx context.Context, cfg config.Config, logger *zap.Logger) (redisclient.Locker, error) {
	if !cfg.UseRedis() {
		logger.Warn("REDIS_ADDR not set, slot locks are local to this process")
		return redisclient.NewLocalSlotLocker(cfg.LockTTL), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warn("error closing redis", zap.Error(err))
		}
	})
	rt.Dependencies = append(rt.Dependencies, api.Dependency{
		Name: "redis",
		Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return redisclient.NewRedisSlotLocker(rdb, redisclient.LockOptions{TTL: cfg.LockTTL}), nil
}

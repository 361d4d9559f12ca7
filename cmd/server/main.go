package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"authpool-go/internal/config"
	"authpool-go/internal/logging"
	"authpool-go/internal/monitoring"
	"authpool-go/internal/profile"
	"authpool-go/internal/server"
	"authpool-go/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *debug {
		cfg.Debug = true
	}
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	store, err := buildBackend(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open profile store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("authpool: starting (backend=%s listen=%s)", cfg.StoreBackend, cfg.Listen)

	go sweepLoop(ctx, store, cfg.SweepInterval)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.New(cfg, store).Router(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("authpool: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
}

func buildBackend(cfg *config.Config) (storage.Backend, error) {
	if cfg.StoreBackend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return storage.NewRedisStore(client, cfg.RedisPrefix), nil
	}
	return storage.NewFileStore(cfg.StorePath), nil
}

// sweepLoop periodically clears expired unavailability windows through the
// locked write path, so every worker sharing the store sees the reset. The
// timer lives here; the sweeping itself is a synchronous pass over the pool.
func sweepLoop(ctx context.Context, store storage.Backend, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, store)
		}
	}
}

func sweepOnce(ctx context.Context, store storage.Backend) {
	monitoring.SweepRunsTotal.Inc()
	blocked := 0
	err := store.WithLock(ctx, func(s *profile.AuthProfileStore) (*profile.AuthProfileStore, error) {
		changed := profile.ClearExpiredCooldowns(s)
		now := profile.NowMillis()
		for id := range s.UsageStats {
			if profile.IsProfileInCooldownAt(s, id, now) {
				blocked++
			}
		}
		if !changed {
			return nil, nil
		}
		return s, nil
	})
	if err != nil {
		log.WithError(err).Warn("authpool: sweep failed")
		return
	}
	monitoring.BlockedProfiles.Set(float64(blocked))
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bearing-fault-sim/internal/analytics"
	"bearing-fault-sim/internal/cache"
	"bearing-fault-sim/internal/config"
	"bearing-fault-sim/internal/handlers"
	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/metrics"
	"bearing-fault-sim/internal/monitor"
	"bearing-fault-sim/internal/scheduler"
	"bearing-fault-sim/internal/simulator"
	"bearing-fault-sim/internal/tracing"
)

// serve поднимает сервис и блокируется до отмены ctx
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info().Str("version", version).Msg("starting bearing fault simulation service")

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	f := gen.Frequencies()
	log.Info().
		Str("baseline", cfg.Simulation.BaselinePath).
		Float64("f_outer", f.OuterRace).
		Float64("f_inner", f.InnerRace).
		Float64("f_ball", f.Ball).
		Float64("f_cage", f.Cage).
		Msg("generator ready")

	opts := monitor.Options{Log: log}
	var health handlers.CacheHealth

	// Инициализация Redis
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Retention)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		opts.Cache = redisCache
		health = redisCache
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	}

	st, err := openArchive(cfg.Storage.Path, gen)
	if err != nil {
		return err
	}
	defer st.Close()
	opts.Archive = st

	if cfg.S3.Bucket != "" {
		exp, err := newExporter(cfg)
		if err != nil {
			return err
		}
		opts.Exporter = exp
	}

	// Инициализация анализатора
	analyzer := analytics.NewAnalyzer(cfg.Analytics.WindowSize, cfg.Analytics.AnomalyThreshold)
	analyzer.Start(cfg.Analytics.Workers)
	log.Info().
		Int("window", cfg.Analytics.WindowSize).
		Float64("threshold", cfg.Analytics.AnomalyThreshold).
		Int("workers", cfg.Analytics.Workers).
		Msg("analyzer started")

	mon := monitor.New(simulator.NewRideSimulator(gen), analyzer, opts)

	// результаты обрабатываются до закрытия канала в analyzer.Stop
	resultsDone := make(chan struct{})
	go func() {
		mon.ProcessResults(context.Background())
		close(resultsDone)
	}()
	defer func() {
		analyzer.Stop()
		<-resultsDone
	}()

	go updateMetrics(ctx, mon, redisCache)

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(log, mon, cfg.Scheduler.Spec, cfg.Scheduler.Assets)
		if err != nil {
			return err
		}
		// запущенные поездки завершаются до закрытия Redis и архива
		schedCtx, stopSched := context.WithCancel(ctx)
		schedDone := make(chan struct{})
		go func() {
			_ = sched.Run(schedCtx)
			close(schedDone)
		}()
		defer func() {
			stopSched()
			<-schedDone
		}()
		log.Info().Str("spec", cfg.Scheduler.Spec).Strs("assets", cfg.Scheduler.Assets).Msg("scheduler started")
	}

	handler := handlers.NewHandler(mon, health, log)

	// HTTP сервер
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Ожидание сигнала завершения
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}

// updateMetrics периодически обновляет метрики
func updateMetrics(ctx context.Context, mon *monitor.Monitor, redisCache *cache.RedisCache) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mon.UpdateGauges()
			if redisCache != nil {
				metrics.CacheHitRate.WithLabelValues("redis_pool").Set(redisCache.HitRate())
			}
		}
	}
}

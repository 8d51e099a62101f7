package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/monitor"
)

// RideRunner запускает поездку объекта
type RideRunner interface {
	RunRide(ctx context.Context, assetID string, force *models.FaultLabel) (monitor.RideReport, error)
}

// Scheduler периодически запускает поездки для списка объектов
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	runner RideRunner
	assets []string
	ctx    context.Context
	runs   atomic.Int64
	failed atomic.Int64
}

// New разбирает расписание (cron с необязательными секундами или @every)
func New(log *logger.Logger, runner RideRunner, spec string, assets []string) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		log:    log,
		runner: runner,
		assets: assets,
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce выполняет по одной поездке для каждого объекта
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, asset := range s.assets {
		if ctx.Err() != nil {
			return
		}
		rep, err := s.runner.RunRide(ctx, asset, nil)
		s.runs.Add(1)
		if err != nil {
			s.failed.Add(1)
			s.log.Error().Err(err).Str("asset_id", asset).Msg("scheduled ride failed")
			continue
		}
		s.log.Info().
			Str("asset_id", asset).
			Int64("ride_id", rep.RideID).
			Str("fault_type", rep.ActualFaultType.String()).
			Msg("scheduled ride")
	}
}

// Run запускает расписание и блокируется до отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduled rides still running at shutdown")
	}
	return nil
}

// Runs количество выполненных и неудачных запусков
func (s *Scheduler) Runs() (total, failed int64) {
	return s.runs.Load(), s.failed.Load()
}

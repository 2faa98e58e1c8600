package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"kvartaly_monitor/config"
)

// Runner is what the scheduler drives: the periodic scan cycle and the
// liveness heartbeat.
type Runner interface {
	RunJob(ctx context.Context)
	Heartbeat(ctx context.Context)
}

// Scheduler owns the cron entries. A random jitter is slept before each scan
// cycle so requests never land on the exact minute boundary.
type Scheduler struct {
	cfg  config.SchedulerConfig
	cron *cron.Cron
	job  Runner
}

func New(cfg config.SchedulerConfig, job Runner) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		cron: cron.New(),
		job:  job,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	intervalMin := int(s.cfg.CheckInterval.Minutes())
	if intervalMin < 1 {
		intervalMin = 1
	}
	spec := fmt.Sprintf("*/%d * * * *", intervalMin)

	if _, err := s.cron.AddFunc(spec, func() {
		if delay := s.jitter(); delay > 0 {
			log.Printf("Jitter: sleeping %.0fs before scan cycle", delay.Seconds())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		s.job.RunJob(ctx)
	}); err != nil {
		return fmt.Errorf("register scan job (%s): %w", spec, err)
	}

	if s.cfg.HeartbeatCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.HeartbeatCron, func() {
			s.job.Heartbeat(ctx)
		}); err != nil {
			return fmt.Errorf("register heartbeat job (%s): %w", s.cfg.HeartbeatCron, err)
		}
	}

	s.cron.Start()
	log.Printf("Scheduler started: scans %s, heartbeat %q", spec, s.cfg.HeartbeatCron)
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) jitter() time.Duration {
	min, max := s.cfg.JitterMin, s.cfg.JitterMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

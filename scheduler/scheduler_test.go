package scheduler

import (
	"context"
	"testing"
	"time"

	"kvartaly_monitor/config"
)

type nopRunner struct{}

func (nopRunner) RunJob(context.Context)    {}
func (nopRunner) Heartbeat(context.Context) {}

func TestJitterBounds(t *testing.T) {
	s := New(config.SchedulerConfig{
		JitterMin: 2 * time.Second,
		JitterMax: 10 * time.Second,
	}, nopRunner{})

	for i := 0; i < 100; i++ {
		d := s.jitter()
		if d < 2*time.Second || d >= 10*time.Second {
			t.Fatalf("jitter = %v, want in [2s, 10s)", d)
		}
	}
}

func TestJitterDegenerateRange(t *testing.T) {
	s := New(config.SchedulerConfig{
		JitterMin: 3 * time.Second,
		JitterMax: 3 * time.Second,
	}, nopRunner{})

	if d := s.jitter(); d != 3*time.Second {
		t.Errorf("jitter = %v, want 3s", d)
	}
}

func TestStartStop(t *testing.T) {
	s := New(config.SchedulerConfig{
		CheckInterval: 2 * time.Minute,
		HeartbeatCron: "0 0,6,12,18 * * *",
	}, nopRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

func TestStartRejectsBadHeartbeatCron(t *testing.T) {
	s := New(config.SchedulerConfig{
		CheckInterval: time.Minute,
		HeartbeatCron: "not a cron spec",
	}, nopRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err == nil {
		t.Fatal("expected an error for an invalid heartbeat cron spec")
	}
}

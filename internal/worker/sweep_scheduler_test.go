package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/support-sla/internal/service"
)

type countingSweeper struct {
	runs atomic.Int32
	err  error
}

func (c *countingSweeper) Run(context.Context) (service.SweepResult, error) {
	c.runs.Add(1)
	return service.SweepResult{}, c.err
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewSweepScheduler(&countingSweeper{}, "every now and then", nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSchedulerRunsSweep(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db unavailable")}
	s, err := NewSweepScheduler(sweeper, "@every 1s", nil)
	if err != nil {
		t.Fatalf("NewSweepScheduler: %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for sweeper.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if sweeper.runs.Load() == 0 {
		t.Fatal("sweep never ran")
	}
}

func TestRunOnceUsesSchedulerContext(t *testing.T) {
	sweeper := &countingSweeper{}
	s, err := NewSweepScheduler(sweeper, "@hourly", nil)
	if err != nil {
		t.Fatal(err)
	}
	s.runOnce()
	if sweeper.runs.Load() != 1 {
		t.Errorf("runs = %d", sweeper.runs.Load())
	}
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerSchedulerRunsJob(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	fired := make(chan struct{}, 10)
	s := NewTickerScheduler(5*time.Millisecond, true)

	if err := s.Start(context.Background(), func(time.Time) {
		calls.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("job did not fire")
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("job kept running after Stop")
	}
}

func TestTickerSchedulerNoop(t *testing.T) {
	t.Parallel()

	s := NewTickerScheduler(0, true)
	if err := s.Start(context.Background(), func(time.Time) { t.Errorf("job must not run") }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on idle scheduler returned error: %v", err)
	}
}

func TestTickerSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewTickerScheduler(time.Hour, false)
	if err := s.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}

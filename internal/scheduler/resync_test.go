package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

type fakeRunner struct {
	calls   atomic.Int32
	report  syncer.ResyncReport
	err     error
	ran     chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Resync(ctx context.Context) (syncer.ResyncReport, error) {
	f.calls.Add(1)
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return f.report, ctx.Err()
		}
	}
	return f.report, f.err
}

func TestResyncer_Run(t *testing.T) {
	runner := &fakeRunner{report: syncer.ResyncReport{Pending: 3, Synced: 2, Failed: 1}}
	r := NewResyncer(runner, logger.New("error", false), time.Hour, nil)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Synced != 2 || report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	runner.err = errors.New("store offline")
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("Run should return the runner error")
	}
}

func TestResyncer_ManualTrigger(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 4)}
	trigger := make(chan struct{})
	r := NewResyncer(runner, logger.New("error", false), time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop()
	<-runner.ran // initial run

	trigger <- struct{}{}

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not run a resync")
	}

	if got := runner.calls.Load(); got != 2 {
		t.Errorf("Expected 2 resyncs, got %d", got)
	}
}

func TestResyncer_StartSurvivesFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	r := NewResyncer(runner, logger.New("error", false), time.Hour, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start should not fail on a resync error: %v", err)
	}
	r.Stop()
}

func TestResyncer_StartDoesNotWaitForInitialRun(t *testing.T) {
	runner := &fakeRunner{ran: make(chan struct{}, 1), release: make(chan struct{})}
	r := NewResyncer(runner, logger.New("error", false), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)
	go func() { started <- r.Start(ctx) }()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked on the initial resync")
	}
	defer r.Stop()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("initial resync never ran")
	}
	close(runner.release)
}

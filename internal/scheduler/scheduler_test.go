package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"candlesig/internal/service"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (f *fakeRunner) AnalyzeBatch(ctx context.Context, p service.BatchParams, _ func(service.BatchItem)) ([]service.BatchItem, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	out := make([]service.BatchItem, len(p.Symbols))
	for i, s := range p.Symbols {
		out[i] = service.BatchItem{Symbol: s, Signals: 1}
	}
	return out, nil
}

func TestRunNowRecordsLastRun(t *testing.T) {
	var got []Run
	s := New(&fakeRunner{}, time.Second, func(r Run) { got = append(got, r) })
	task := Task{Name: "daily", Spec: "0 0 9 * * *", Params: service.BatchParams{Symbols: []string{"BTCUSDT", "ETHUSDT"}}}
	if !s.RunNow(task) {
		t.Fatalf("expected run")
	}
	run, ok := s.LastRun("daily")
	if !ok || len(run.Items) != 2 || run.Error != "" || run.Finished.Before(run.Started) {
		t.Fatalf("run = %+v", run)
	}
	if len(got) != 1 {
		t.Fatalf("callback calls = %d", len(got))
	}
}

func TestRunNowSkipsOverlap(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s := New(runner, time.Second, nil)
	task := Task{Name: "slow", Params: service.BatchParams{Symbols: []string{"X"}}}
	done := make(chan bool)
	go func() { done <- s.RunNow(task) }()
	deadline := time.Now().Add(2 * time.Second)
	for {
		runner.mu.Lock()
		n := runner.calls
		runner.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first run did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.RunNow(task) {
		t.Fatalf("overlapping run should be skipped")
	}
	close(runner.release)
	if !<-done {
		t.Fatalf("first run should complete")
	}
}

func TestRegisterValidates(t *testing.T) {
	s := New(&fakeRunner{}, 0, nil)
	if err := s.Register(Task{Name: "x", Spec: "bad spec", Params: service.BatchParams{Symbols: []string{"A"}}}); err == nil {
		t.Fatalf("expected cron parse error")
	}
	if err := s.Register(Task{Name: "x", Spec: "0 * * * * *"}); err == nil {
		t.Fatalf("expected symbols error")
	}
	if err := s.Register(Task{Name: "ok", Spec: "0 */5 * * * *", Params: service.BatchParams{Symbols: []string{"A"}}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if tasks := s.Tasks(); len(tasks) != 1 || tasks[0].Name != "ok" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	s.Start()
	s.Stop()
}

type stubUniverse struct {
	symbols []string
	err     error
}

func (u stubUniverse) Name() string { return "stub" }

func (u stubUniverse) List(context.Context) ([]string, error) { return u.symbols, u.err }

func TestRunNowResolvesUniverse(t *testing.T) {
	s := New(&fakeRunner{}, time.Second, nil)
	task := Task{Name: "dyn", Universe: stubUniverse{symbols: []string{"A", "B", "C"}}}
	if err := s.Register(Task{Name: "dyn", Spec: "0 0 * * * *", Universe: task.Universe}); err != nil {
		t.Fatalf("register without symbols but with universe: %v", err)
	}
	s.RunNow(task)
	run, _ := s.LastRun("dyn")
	if len(run.Items) != 3 || run.Items[2].Symbol != "C" {
		t.Fatalf("universe not applied: %+v", run)
	}

	runner := &fakeRunner{}
	s = New(runner, time.Second, nil)
	s.RunNow(Task{Name: "broken", Universe: stubUniverse{err: errors.New("down")}})
	run, _ = s.LastRun("broken")
	if run.Error == "" || runner.calls != 0 {
		t.Fatalf("expected universe error without batch call: %+v calls=%d", run, runner.calls)
	}
}

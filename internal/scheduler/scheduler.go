package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"candlesig/internal/coins"
	"candlesig/internal/logger"
	"candlesig/internal/service"
)

// BatchRunner 定时任务依赖的批量分析能力，由 service.Service 实现。
type BatchRunner interface {
	AnalyzeBatch(ctx context.Context, p service.BatchParams, progress func(service.BatchItem)) ([]service.BatchItem, error)
}

// Task 一个定时批量分析任务。Universe 非空时每次执行前用它刷新 Params.Symbols。
type Task struct {
	Name     string
	Spec     string
	Params   service.BatchParams
	Universe coins.SymbolProvider
}

// Run 一次执行的记录。
type Run struct {
	Task     string              `json:"task"`
	Started  time.Time           `json:"started"`
	Finished time.Time           `json:"finished"`
	Items    []service.BatchItem `json:"items"`
	Error    string              `json:"error,omitempty"`
}

// Scheduler 按 cron 表达式定期运行批量分析，同一任务不重叠执行。
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	timeout time.Duration
	onRun   func(Run)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   []Task
	running map[string]bool
	last    map[string]Run
}

// New timeout<=0 时每次执行最多 10 分钟；onRun 可为 nil。
func New(runner BatchRunner, timeout time.Duration, onRun func(Run)) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		runner:  runner,
		timeout: timeout,
		onRun:   onRun,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
		last:    make(map[string]Run),
	}
}

// Register 注册任务，cron 表达式带秒字段。
func (s *Scheduler) Register(t Task) error {
	if t.Name == "" {
		return errors.New("task name 不能为空")
	}
	if len(t.Params.Symbols) == 0 && t.Universe == nil {
		return fmt.Errorf("task %s: symbols 不能为空", t.Name)
	}
	if _, err := s.cron.AddFunc(t.Spec, func() { s.RunNow(t) }); err != nil {
		return fmt.Errorf("register task %s: %w", t.Name, err)
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	logger.Infof("[scheduler] 注册任务 %s (%s) %d 个品种", t.Name, t.Spec, len(t.Params.Symbols))
	return nil
}

// Tasks 已注册的任务，按注册顺序。
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Infof("[scheduler] started")
}

// Stop 停止调度并等待正在运行的任务结束。
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Infof("[scheduler] stopped")
}

// RunNow 立即执行一次任务；若上一次还没结束则跳过并返回 false。
func (s *Scheduler) RunNow(t Task) bool {
	s.mu.Lock()
	if s.running[t.Name] {
		s.mu.Unlock()
		logger.Warnf("[scheduler] 任务 %s 仍在运行，跳过本次", t.Name)
		return false
	}
	s.running[t.Name] = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	run := Run{Task: t.Name, Started: time.Now()}
	params := t.Params
	var (
		items []service.BatchItem
		err   error
	)
	if t.Universe != nil {
		params.Symbols, err = t.Universe.List(ctx)
		if err != nil {
			err = fmt.Errorf("获取品种列表(%s): %w", t.Universe.Name(), err)
		}
	}
	if err == nil {
		items, err = s.runner.AnalyzeBatch(ctx, params, nil)
	}
	run.Finished = time.Now()
	run.Items = items
	if err != nil {
		run.Error = err.Error()
		logger.Errorf("[scheduler] 任务 %s 失败: %v", t.Name, err)
	} else {
		logger.Infof("[scheduler] 任务 %s 完成，用时 %s", t.Name, run.Finished.Sub(run.Started).Round(time.Millisecond))
	}

	s.mu.Lock()
	s.running[t.Name] = false
	s.last[t.Name] = run
	s.mu.Unlock()
	if s.onRun != nil {
		s.onRun(run)
	}
	return true
}

// LastRun 返回任务最近一次执行记录。
func (s *Scheduler) LastRun(name string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[name]
	return r, ok
}

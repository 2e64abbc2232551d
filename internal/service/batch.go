package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"candlesig/internal/decision"
	"candlesig/internal/logger"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
	JobStatusPartial = "partial"
)

// BatchParams 一次批量分析的参数。
type BatchParams struct {
	Symbols  []string         `json:"symbols"`
	Interval string           `json:"interval"`
	Limit    int              `json:"limit"`
	Options  decision.Options `json:"options"`
}

// BatchItem 单个品种的分析摘要。
type BatchItem struct {
	Symbol    string           `json:"symbol"`
	Signals   int              `json:"signals"`
	Latest    *decision.Signal `json:"latest,omitempty"`
	TrendDays int              `json:"trend_days"`
	Error     string           `json:"error,omitempty"`
}

// BatchJob 在内存中跟踪批量任务进度。
type BatchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    BatchParams `json:"params"`
	Total     int64       `json:"total"`
	Completed int64       `json:"completed"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Message   string      `json:"message"`
	Items     []BatchItem `json:"items"`
}

func (j *BatchJob) copy() BatchJob {
	if j == nil {
		return BatchJob{}
	}
	out := *j
	out.Params.Symbols = append([]string{}, j.Params.Symbols...)
	out.Items = append([]BatchItem{}, j.Items...)
	return out
}

func cleanSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// AnalyzeBatch 并发分析多个品种。单个品种失败只记录在对应条目中，
// 只有 ctx 取消时返回错误。结果按输入顺序排列。
func (s *Service) AnalyzeBatch(ctx context.Context, p BatchParams, progress func(BatchItem)) ([]BatchItem, error) {
	symbols := cleanSymbols(p.Symbols)
	if len(symbols) == 0 {
		return nil, errors.New("symbols 不能为空")
	}
	items := make([]BatchItem, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := BatchItem{Symbol: sym}
			res, err := s.Analyze(gctx, Request{Symbol: sym, Interval: p.Interval, Limit: p.Limit}, p.Options)
			if err != nil {
				item.Error = err.Error()
				logger.Warnf("[batch] %s 分析失败: %v", sym, err)
			} else {
				item.Signals = len(res.Signals)
				item.TrendDays = res.Statistics.TrendDays
				if n := len(res.Signals); n > 0 {
					last := res.Signals[n-1]
					item.Latest = &last
				}
			}
			items[i] = item
			if progress != nil {
				progress(item)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}

// SubmitBatch 异步执行批量分析，立即返回任务快照。
func (s *Service) SubmitBatch(p BatchParams) (BatchJob, error) {
	p.Symbols = cleanSymbols(p.Symbols)
	if len(p.Symbols) == 0 {
		return BatchJob{}, errors.New("symbols 不能为空")
	}
	now := time.Now()
	job := &BatchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    p,
		Total:     int64(len(p.Symbols)),
		StartedAt: now,
		UpdatedAt: now,
	}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	snapshot := job.copy()
	s.jobsMu.Unlock()

	go s.runBatch(job.ID, p)
	return snapshot, nil
}

func (s *Service) runBatch(id string, p BatchParams) {
	s.updateJob(id, func(j *BatchJob) { j.Status = JobStatusRunning })
	items, err := s.AnalyzeBatch(context.Background(), p, func(item BatchItem) {
		s.updateJob(id, func(j *BatchJob) {
			j.Completed++
			j.Items = append(j.Items, item)
		})
	})
	s.updateJob(id, func(j *BatchJob) {
		failed := 0
		for _, it := range items {
			if it.Error != "" {
				failed++
			}
		}
		sort.SliceStable(j.Items, func(a, b int) bool { return j.Items[a].Symbol < j.Items[b].Symbol })
		switch {
		case err != nil:
			j.Status = JobStatusFailed
			j.Message = err.Error()
		case failed == len(items):
			j.Status = JobStatusFailed
			j.Message = "全部品种分析失败"
		case failed > 0:
			j.Status = JobStatusPartial
		default:
			j.Status = JobStatusDone
		}
	})
}

func (s *Service) updateJob(id string, fn func(*BatchJob)) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = time.Now()
	}
}

// JobSnapshot 返回任务的拷贝。
func (s *Service) JobSnapshot(id string) (BatchJob, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return BatchJob{}, false
	}
	return j.copy(), true
}

// JobsSnapshot 按开始时间倒序。
func (s *Service) JobsSnapshot() []BatchJob {
	s.jobsMu.RLock()
	out := make([]BatchJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	s.jobsMu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

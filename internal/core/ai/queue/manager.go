package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"recipe-bot/internal/infrastructure/config"
	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrQueueFull 隊列已滿
var ErrQueueFull = errors.New("queue is full")

// ErrClosed 隊列已關閉
var ErrClosed = errors.New("queue manager is closed")

// Job 隊列中的工作
type Job func(ctx context.Context)

// Request 隊列請求
type Request struct {
	Name string
	Job  Job
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	Busy           int64 `json:"busy"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 隊列管理器，以固定數量的 worker 處理工作
type Manager struct {
	workers   int
	maxSize   int
	queue     chan *Request
	done      chan struct{}
	closeOnce sync.Once
	processed atomic.Int64
	failed    atomic.Int64
	busy      atomic.Int64
}

// NewManager 創建新的隊列管理器
func NewManager(cfg *config.Config) *Manager {
	return newManager(cfg.Queue.Workers, cfg.Queue.MaxSize)
}

func newManager(workers, maxSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Manager{
		workers: workers,
		maxSize: maxSize,
		queue:   make(chan *Request, maxSize),
		done:    make(chan struct{}),
	}
}

// Enqueue 將工作加入隊列，不阻塞
func (m *Manager) Enqueue(ctx context.Context, name string, job Job) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}

	req := &Request{Name: name, Job: job}
	select {
	case m.queue <- req:
		common.LogDebug("Request enqueued",
			zap.String("name", name),
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.maxSize),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrClosed
	default:
		common.LogWarn("Queue is full, dropping request",
			zap.String("name", name),
			zap.Int("max_queue_size", m.maxSize),
		)
		return ErrQueueFull
	}
}

// Start 啟動 worker，ctx 結束後等待進行中的工作完成再返回
func (m *Manager) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.worker(ctx, id)
		}(i)
	}

	common.LogInfo("隊列已啟動",
		zap.Int("workers", m.workers),
		zap.Int("max_queue_size", m.maxSize),
	)

	<-ctx.Done()
	m.Close()
	wg.Wait()
	return nil
}

func (m *Manager) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.queue:
			m.run(ctx, id, req)
		}
	}
}

// run 執行單一工作，panic 不會終止 worker
func (m *Manager) run(ctx context.Context, id int, req *Request) {
	m.busy.Add(1)
	defer func() {
		m.busy.Add(-1)
		if r := recover(); r != nil {
			m.failed.Add(1)
			common.LogError("Job panicked",
				zap.String("name", req.Name),
				zap.Int("worker", id),
				zap.String("panic", fmt.Sprint(r)),
			)
			return
		}
		m.processed.Add(1)
	}()

	req.Job(ctx)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: m.processed.Load(),
		FailedCount:    m.failed.Load(),
		Busy:           m.busy.Load(),
		MaxQueueSize:   m.maxSize,
		Workers:        m.workers,
	}
}

// Close 關閉隊列管理器，之後的 Enqueue 返回 ErrClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

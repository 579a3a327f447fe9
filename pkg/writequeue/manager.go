// Package writequeue serializes database writes per key.
// Package writequeue 按 key 串行化数据库写操作
// SQLite allows a single writer; backup workers finishing at the same time would
// otherwise race into "database is locked".
// SQLite 仅允许单写者，多个备份协程同时收尾时会出现 "database is locked"
package writequeue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteQueueFull 写队列已满
	ErrWriteQueueFull = errors.New("write queue is full")
	// ErrWriteQueueClosed 写队列已关闭
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout 写操作超时
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config write queue configuration
// Config 写队列配置
type Config struct {
	// QueueCapacity 每个 key 的队列容量，默认 256
	QueueCapacity int
	// WriteTimeout 单次写操作等待上限，默认 30 秒
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueCapacity: 256,
		WriteTimeout:  30 * time.Second,
	}
}

type writeOp struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

type keyQueue struct {
	key string
	ch  chan writeOp
}

// Manager owns one FIFO worker per key.
// Manager 为每个 key 维护一个 FIFO 写协程
type Manager struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	queues map[string]*keyQueue
	closed bool
	wg     sync.WaitGroup
}

// New creates a write queue manager. A nil cfg uses DefaultConfig, a nil logger is replaced by a nop logger.
// New 创建写队列管理器
func New(cfg *Config, logger *zap.Logger) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.QueueCapacity > 0 {
			c.QueueCapacity = cfg.QueueCapacity
		}
		if cfg.WriteTimeout > 0 {
			c.WriteTimeout = cfg.WriteTimeout
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: c,
		logger: logger,
		queues: make(map[string]*keyQueue),
	}
}

// Execute runs fn on the worker for key and waits for its result.
// Execute 在 key 对应的写协程中执行 fn 并等待结果
func (m *Manager) Execute(ctx context.Context, key string, fn func() error) error {
	op := writeOp{ctx: ctx, fn: fn, result: make(chan error, 1)}
	if err := m.enqueue(key, op); err != nil {
		return err
	}

	timeout := m.config.WriteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	}
}

// enqueue holds the lock across the send so Shutdown can never close a channel mid-send.
func (m *Manager) enqueue(key string, op writeOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrWriteQueueClosed
	}
	q, ok := m.queues[key]
	if !ok {
		q = &keyQueue{key: key, ch: make(chan writeOp, m.config.QueueCapacity)}
		m.queues[key] = q
		m.wg.Add(1)
		go m.worker(q)
		m.logger.Debug("write queue created", zap.String("key", key))
	}
	select {
	case q.ch <- op:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

func (m *Manager) worker(q *keyQueue) {
	defer m.wg.Done()
	for op := range q.ch {
		if err := op.ctx.Err(); err != nil {
			op.result <- err
			continue
		}
		op.result <- op.fn()
	}
}

// Shutdown stops accepting writes, drains queued ones and waits for workers.
// Shutdown 停止接收写入，排空已排队的操作并等待协程退出
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, q := range m.queues {
		close(q.ch)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("write queue manager shutdown completed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("write queue manager shutdown timeout")
		return ctx.Err()
	}
}

// QueuedCount 返回 key 队列中等待的操作数
func (m *Manager) QueuedCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[key]; ok {
		return len(q.ch)
	}
	return 0
}

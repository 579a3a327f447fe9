// Package safe_close coordinates graceful shutdown of long-running goroutines.
// Package safe_close 协调常驻 goroutine 的优雅关闭
package safe_close

import (
	"sync"
)

// SafeClose fans a single close signal out to attached workers and waits for them to finish.
// SafeClose 将关闭信号广播给已挂载的工作协程，并等待它们全部结束
type SafeClose struct {
	once        sync.Once
	closeSignal chan struct{}
	wg          sync.WaitGroup

	mu  sync.Mutex
	err error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{
		closeSignal: make(chan struct{}),
	}
}

// Attach runs fn on its own goroutine. fn must call done when it has finished cleaning up.
// Attach 在独立协程中运行 fn，fn 清理完成后必须调用 done
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var doneOnce sync.Once
	go fn(func() { doneOnce.Do(s.wg.Done) }, s.closeSignal)
}

// SendCloseSignal broadcasts the close signal. Only the first call's error is kept.
// SendCloseSignal 广播关闭信号，仅保留第一次调用的错误
func (s *SafeClose) SendCloseSignal(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closeSignal)
	})
}

// CloseSignal exposes the broadcast channel for callers that are not attached.
func (s *SafeClose) CloseSignal() <-chan struct{} {
	return s.closeSignal
}

// WaitClosed blocks until every attached worker has called done, then returns the close error.
// WaitClosed 阻塞直到所有挂载的协程调用 done，返回关闭原因
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

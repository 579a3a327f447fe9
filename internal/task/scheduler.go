package task

import (
	"context"
	"time"

	"github.com/haierkeys/db-backup-service/pkg/safe_close"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task 维护任务接口
type Task interface {
	Name() string                  // 任务名称
	Run(ctx context.Context) error // 执行任务
	Spec() string                  // cron 表达式，空表示只在启动时执行
	IsStartupRun() bool            // 是否立即执行一次
}

// Scheduler 维护任务调度器，基于 robfig/cron
type Scheduler struct {
	logger  *zap.Logger
	tasks   []Task
	sc      *safe_close.SafeClose
	cron    *cron.Cron
	timeout time.Duration
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewScheduler 创建任务调度器
func NewScheduler(logger *zap.Logger, sc *safe_close.SafeClose) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		logger: logger,
		tasks:  make([]Task, 0),
		sc:     sc,
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		timeout: 10 * time.Minute,
	}
}

// AddTask 添加任务，cron 表达式无效时返回错误
func (s *Scheduler) AddTask(task Task) error {
	if spec := task.Spec(); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.Wrapf(err, "task %s: invalid cron spec %q", task.Name(), spec)
		}
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Tasks 已添加的任务名称
func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.Name())
	}
	return names
}

// Start 启动所有任务
func (s *Scheduler) Start() {
	if len(s.tasks) == 0 {
		s.logger.Info("no tasks to schedule")
		return
	}

	s.logger.Info("tasks starting", zap.Int("count", len(s.tasks)))

	for _, task := range s.tasks {
		s.startTask(task)
	}
	s.cron.Start()

	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		ctx := s.cron.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(30 * time.Second):
			s.logger.Warn("maintenance tasks did not finish before shutdown")
		}
		s.logger.Info("tasks stopped")
	})
}

// startTask 启动单个任务
func (s *Scheduler) startTask(task Task) {
	if task.IsStartupRun() {
		s.logger.Info("task running", zap.String("name", task.Name()), zap.Bool("startupRun", true))
		go s.runOnce(task, "startupRun")
	}

	if task.Spec() == "" {
		return
	}
	if _, err := s.cron.AddFunc(task.Spec(), func() { s.runOnce(task, "loopRun") }); err != nil {
		s.logger.Error("task not scheduled", zap.String("name", task.Name()), zap.Error(err))
	}
}

func (s *Scheduler) runOnce(task Task, mode string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panic",
				zap.String("name", task.Name()),
				zap.String("type", mode),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("task running error",
			zap.String("name", task.Name()),
			zap.String("type", mode),
			zap.Error(err))
	}
}

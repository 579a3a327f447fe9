// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haierkeys/db-backup-service/internal/backup"
	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/service"
	"github.com/haierkeys/db-backup-service/internal/task"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/safe_close"
	"github.com/haierkeys/db-backup-service/pkg/workerpool"
	"github.com/haierkeys/db-backup-service/pkg/writequeue"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB
	Dao    *dao.Dao

	// 并发控制组件
	workerPool    *workerpool.Pool
	writeQueueMgr *writequeue.Manager

	// Repository 层
	TargetRepo   domain.TargetRepository
	ScheduleRepo domain.ScheduleRepository
	RunRepo      domain.RunRepository
	SettingRepo  domain.SettingRepository

	// 备份执行与调度
	Vault    service.CredentialVault
	Metrics  *backup.Collector
	Registry *prometheus.Registry
	Runner   *backup.Runner
	Engine   *task.Engine

	// Service 层
	TargetService       service.TargetService
	ScheduleService     service.ScheduleService
	RunService          service.RunService
	SettingService      service.SettingService
	ExportService       service.ExportService
	NotificationService service.NotificationService

	StartTime time.Time

	// 关闭控制
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option 可选依赖，测试时替换外部交互
type Option func(*options)

type options struct {
	mailer   service.Mailer
	tester   service.ConnectionTester
	dumper   backup.DumpExecutor
	vaultKey []byte
}

// WithMailer 替换邮件发送实现
func WithMailer(m service.Mailer) Option { return func(o *options) { o.mailer = m } }

// WithConnectionTester 替换连接测试实现
func WithConnectionTester(t service.ConnectionTester) Option {
	return func(o *options) { o.tester = t }
}

// WithDumpExecutor 替换导出执行器
func WithDumpExecutor(d backup.DumpExecutor) Option { return func(o *options) { o.dumper = d } }

// WithVaultKey 使用给定密钥而不是密钥文件
func WithVaultKey(key []byte) Option { return func(o *options) { o.vaultKey = key } }

// NewApp 创建应用容器实例
// 初始化所有依赖并进行依赖注入
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
func NewApp(cfg *AppConfig, logger *zap.Logger, db *gorm.DB, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{
		config:    cfg,
		logger:    logger,
		DB:        db,
		StartTime: time.Now(),
	}

	// 初始化 Worker Pool
	wpConfig := cfg.GetWorkerPoolConfig()
	a.workerPool = workerpool.New(&wpConfig, logger)

	// 初始化 Write Queue Manager
	wqConfig := cfg.GetWriteQueueConfig()
	a.writeQueueMgr = writequeue.New(&wqConfig, logger)

	// 初始化 DAO 与 Repository 层
	a.Dao = dao.New(db, a.writeQueueMgr, logger)
	a.TargetRepo = dao.NewTargetRepository(a.Dao)
	a.ScheduleRepo = dao.NewScheduleRepository(a.Dao)
	a.RunRepo = dao.NewRunRepository(a.Dao)
	a.SettingRepo = dao.NewSettingRepository(a.Dao)

	// 凭据加密
	var err error
	if o.vaultKey != nil {
		a.Vault, err = service.NewCredentialVaultWithKey(o.vaultKey, logger)
	} else {
		a.Vault, err = service.NewCredentialVault(cfg.Security.KeyFile, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("credential vault: %w", err)
	}

	// 通知经 Worker Pool 异步发送，SMTP 延迟不阻塞备份收尾
	a.NotificationService = service.NewNotificationService(a.SettingRepo, a.Vault, o.mailer, logger)
	notifier := newPooledNotifier(a.NotificationService, a.workerPool, logger)

	// 指标
	a.Metrics = backup.NewMetricsCollector()
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		a.Metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	dumper := o.dumper
	if dumper == nil {
		dumper = backup.NewDumpExecutor(logger, cfg.DumpTimeout())
	}
	a.Runner = backup.NewRunner(
		a.RunRepo,
		dumper,
		backup.NewArchiveCompressor(),
		backup.NewRetentionSweeper(logger, nil),
		a.Vault,
		notifier,
		a.Metrics,
		backup.RunnerConfig{
			MaxConcurrent:   cfg.Backup.MaxConcurrent,
			MinFreeBytes:    cfg.MinFreeBytes(),
			FinalizeTimeout: cfg.FinalizeTimeout(),
		},
		logger,
	)
	a.Engine = task.NewEngine(a.ScheduleRepo, a.TargetRepo, a.Runner, logger)

	// 创建 ServiceConfig（从 AppConfig 提取 Service 层需要的配置）
	svcConfig := &service.ServiceConfig{
		Backup: service.BackupServiceConfig{
			DefaultDumpTool:   cfg.Backup.DefaultDumpTool,
			DefaultBackupPath: cfg.Backup.DefaultPath,
			ConnectTimeout:    cfg.ConnectTimeout(),
		},
	}

	// 初始化 Service 层（依赖注入）
	a.TargetService = service.NewTargetService(a.TargetRepo, a.ScheduleRepo, a.SettingRepo, a.Vault, a.Engine, a.Runner, o.tester, svcConfig, logger)
	a.ScheduleService = service.NewScheduleService(a.ScheduleRepo, a.TargetRepo, a.Engine, a.Engine, a.Runner, logger)
	a.RunService = service.NewRunService(a.RunRepo, a.SettingRepo, logger)
	a.SettingService = service.NewSettingService(a.SettingRepo, a.Vault, logger)
	a.ExportService = service.NewExportService(a.TargetRepo, a.ScheduleRepo, a.SettingRepo, a.Vault, a.Engine, logger)

	logger.Info("App container initialized successfully",
		zap.Int("workerPoolWorkers", wpConfig.Workers),
		zap.Int("writeQueueCapacity", wqConfig.QueueCapacity),
		zap.Int64("maxConcurrentRuns", cfg.Backup.MaxConcurrent))

	return a, nil
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Version 获取版本信息
func (a *App) Version() pkgapp.VersionInfo {
	return pkgapp.VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// Bootstrap ensures the settings row exists and, when the settings ask for it, starts the schedule engine.
// Bootstrap 确保设置行存在，按设置自动启动调度引擎
func (a *App) Bootstrap(ctx context.Context) error {
	setting, err := a.SettingService.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	if !setting.AutoStartScheduler {
		a.logger.Info("scheduler auto start disabled")
		return nil
	}
	if err := a.Engine.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// NewMaintenanceManager 创建维护任务管理器，生命周期挂在 sc 上
func (a *App) NewMaintenanceManager(sc *safe_close.SafeClose) *task.Manager {
	return task.NewManager(&task.Deps{
		Runs:     a.RunRepo,
		Settings: a.SettingRepo,
		Tracker:  a.Runner,
		Config: task.MaintenanceConfig{
			HistoryPurgeCron: a.config.Maintenance.HistoryPurgeCron,
			ReconcileCron:    a.config.Maintenance.ReconcileCron,
			StaleRunGrace:    a.config.StaleRunGrace(),
		},
		Logger: a.logger,
	}, sc)
}

// Close 释放应用容器持有的资源
func (a *App) Close() error {
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		if err := sqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.logger.Info("Database connection closed")
	}
	return nil
}

// WorkerPool 获取 Worker Pool（用于高级操作）
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// WriteQueueManager 获取 Write Queue Manager（用于高级操作）
func (a *App) WriteQueueManager() *writequeue.Manager {
	return a.writeQueueMgr
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：调度引擎 -> 等待运行中的备份 -> Worker Pool 与 Write Queue Manager -> Database
// ctx 用于控制关闭超时，如果为 nil 则使用默认 30 秒超时
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.shutdown(ctx)
	})
	return a.shutdownErr
}

func (a *App) shutdown(ctx context.Context) error {
	a.logger.Info("App container shutting down...")

	// 如果没有提供 context，使用默认超时
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	var errs []error

	// 1. 停止调度，不再产生新的运行
	a.Engine.Stop()

	// 2. 等待运行中的备份写完记录
	done := make(chan struct{})
	go func() {
		a.Runner.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.logger.Info("All backup runs completed")
	case <-ctx.Done():
		a.logger.Warn("Shutdown timeout waiting for backup runs", zap.Int64s("targets", a.Runner.Running()))
		errs = append(errs, fmt.Errorf("backup runs timeout: %w", ctx.Err()))
	}

	// 3. 并行关闭 Worker Pool（发送剩余通知）与 Write Queue Manager（排空所有队列）
	// 通知任务只读取设置，不经过写队列
	var g errgroup.Group
	g.Go(func() error {
		if err := a.workerPool.Shutdown(ctx); err != nil {
			a.logger.Warn("Worker pool shutdown error", zap.Error(err))
			return fmt.Errorf("worker pool shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.writeQueueMgr.Shutdown(ctx); err != nil {
			a.logger.Warn("write queue manager shutdown error", zap.Error(err))
			return fmt.Errorf("write queue manager shutdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	// 4. 关闭数据库连接
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors",
			zap.Int("errorCount", len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	a.logger.Info("App container shutdown completed successfully")
	return nil
}

package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/fileurl"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"
	"github.com/haierkeys/db-backup-service/pkg/util"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultFinalizeTimeout = 30 * time.Second

// Vault decrypts stored credentials. An empty result means no password.
// Vault 解密存储的凭据
type Vault interface {
	Decrypt(cipher string) string
}

// Notifier delivers run outcomes
// Notifier 发送运行结果通知
type Notifier interface {
	Notify(ctx context.Context, subject, body string, severity domain.Severity)
}

// RunnerConfig 执行器配置
type RunnerConfig struct {
	// MaxConcurrent 跨目标同时运行的上限，0 表示不限制
	MaxConcurrent int64
	// MinFreeBytes 导出前备份目录所在磁盘的最小剩余空间，0 表示不检查
	MinFreeBytes uint64
	// FinalizeTimeout 收尾写库的超时
	FinalizeTimeout time.Duration
}

// Runner executes backups end to end and allows at most one active run per target.
// Runner 执行完整备份流程，每个目标同一时刻最多一个运行
type Runner struct {
	runs       domain.RunRepository
	dumper     DumpExecutor
	compressor ArchiveCompressor
	sweeper    *RetentionSweeper
	vault      Vault
	notifier   Notifier
	metrics    *Collector
	logger     *zap.Logger
	cfg        RunnerConfig
	sem        *semaphore.Weighted
	now        func() time.Time

	mu     sync.Mutex
	active map[int64]struct{}
	wg     sync.WaitGroup
}

// NewRunner 创建 Runner，metrics 与 notifier 可以为 nil
func NewRunner(
	runs domain.RunRepository,
	dumper DumpExecutor,
	compressor ArchiveCompressor,
	sweeper *RetentionSweeper,
	vault Vault,
	notifier Notifier,
	metrics *Collector,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = defaultFinalizeTimeout
	}
	if sweeper == nil {
		sweeper = NewRetentionSweeper(logger, nil)
	}
	r := &Runner{
		runs:       runs,
		dumper:     dumper,
		compressor: compressor,
		sweeper:    sweeper,
		vault:      vault,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		active:     make(map[int64]struct{}),
	}
	if cfg.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return r
}

// Execute starts a backup of target on its own goroutine.
// It returns false without side effects when a run for the same target is already active.
// Execute 异步执行备份；该目标已有运行中的任务时直接返回 false
func (r *Runner) Execute(ctx context.Context, target *domain.Target, manual bool) bool {
	if target == nil {
		return false
	}

	r.mu.Lock()
	if _, running := r.active[target.ID]; running {
		r.mu.Unlock()
		r.logger.Info("backup already running for target, skipping",
			zap.Int64(pkglogger.FieldTargetID, target.ID),
			zap.String(pkglogger.FieldTargetName, target.Name),
			zap.Bool(pkglogger.FieldManual, manual))
		return false
	}
	r.active[target.ID] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	// 快照，避免调用方后续修改影响本次运行
	t := *target
	t.ExcludedTables = append([]string(nil), target.ExcludedTables...)

	go r.run(context.WithoutCancel(ctx), &t, manual)
	return true
}

// IsRunning 目标是否有运行中的备份
func (r *Runner) IsRunning(targetID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[targetID]
	return ok
}

// Running returns the ids of targets with an active run, ascending
// Running 返回正在运行的目标 ID
func (r *Runner) Running() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Wait blocks until every accepted run has finished
// Wait 等待所有已接受的运行结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) release(targetID int64) {
	r.mu.Lock()
	delete(r.active, targetID)
	r.mu.Unlock()
}

// execution 单次运行的可变状态
type execution struct {
	run      *domain.Run
	target   *domain.Target
	logger   *zap.Logger
	lines    []string
	artifact string
	size     int64
}

func (e *execution) logf(format string, args ...any) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func (e *execution) fail(message string) {
	e.run.Status = domain.RunStatusFailed
	e.run.Message = message
}

func (e *execution) succeed(message string) {
	e.run.Status = domain.RunStatusSuccess
	e.run.Message = message
}

func (r *Runner) run(ctx context.Context, t *domain.Target, manual bool) {
	defer r.wg.Done()
	defer r.release(t.ID)

	traceID := uuid.NewString()
	log := r.logger.With(
		zap.String(pkglogger.FieldTraceID, traceID),
		zap.Int64(pkglogger.FieldTargetID, t.ID),
		zap.String(pkglogger.FieldTargetName, t.Name),
		zap.Bool(pkglogger.FieldManual, manual))

	run, err := r.runs.Create(ctx, &domain.Run{
		TargetID:   t.ID,
		TargetName: t.Name,
		StartTime:  r.now(),
		Status:     domain.RunStatusRunning,
		IsManual:   manual,
	})
	if err != nil {
		// 无法记录的运行不能继续
		log.Error("create run record failed, backup aborted", zap.Error(err))
		r.notify(ctx, "Backup could not start: "+t.Name,
			fmt.Sprintf("The run record for target %q could not be created: %v", t.Name, err),
			domain.SeverityError, log)
		return
	}

	log = log.With(zap.Int64(pkglogger.FieldRunID, run.ID))
	ex := &execution{run: run, target: t, logger: log}
	// 默认视为失败，只有完整走完流程才会被改为 success
	ex.fail("backup did not complete")

	r.metrics.runStarted()
	defer r.finalize(ex)
	defer func() {
		if p := recover(); p != nil {
			log.Error("backup panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			ex.fail(fmt.Sprintf("unexpected error: %v", p))
			ex.logf("panic: %v", p)
		}
	}()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			ex.fail("waiting for a free slot: " + err.Error())
			return
		}
		defer r.sem.Release(1)
	}

	log.Info("backup started")
	r.perform(ctx, ex)
}

// perform 导出、压缩并记录文件大小
func (r *Runner) perform(ctx context.Context, ex *execution) {
	t := ex.target

	if err := fileurl.EnsureDir(t.BackupPath, 0o755); err != nil {
		ex.fail(fmt.Sprintf("create backup directory %s: %v", t.BackupPath, err))
		ex.logf("directory: %v", err)
		return
	}

	if r.cfg.MinFreeBytes > 0 {
		usage, err := disk.UsageWithContext(ctx, t.BackupPath)
		if err != nil {
			ex.logger.Warn("free space check failed, continuing", zap.Error(err))
		} else if usage.Free < r.cfg.MinFreeBytes {
			ex.fail(fmt.Sprintf("insufficient free space in %s: %s available, %s required",
				t.BackupPath, util.FormatBytes(int64(usage.Free)), util.FormatBytes(int64(r.cfg.MinFreeBytes))))
			ex.logf("disk: %s free", util.FormatBytes(int64(usage.Free)))
			return
		}
	}

	dumpPath := filepath.Join(t.BackupPath, BackupFileName(t.DatabaseName, ex.run.StartTime))
	password := ""
	if r.vault != nil {
		password = r.vault.Decrypt(t.PasswordCipher)
	}
	req := DumpRequest{
		Tool:     t.DumpToolPath,
		Host:     t.Host,
		Port:     t.Port,
		User:     t.Username,
		Password: password,
		Database: t.DatabaseName,
		Exclude:  t.ExcludedTables,
	}

	if err := r.dumper.Dump(ctx, req, dumpPath); err != nil {
		msg := describeDumpError(err)
		ex.fail(msg)
		ex.logf("dump: %s", msg)
		ex.logger.Error("dump failed", zap.Error(err))
		return
	}
	ex.logf("dump: %s", dumpPath)

	artifact, err := r.compressor.Compress(dumpPath, t.Compression)
	switch {
	case err != nil && artifact == "":
		ex.fail("compression failed: " + err.Error())
		ex.logf("compression: %s failed: %v", t.Compression, err)
		ex.logger.Error("compression failed", zap.String(pkglogger.FieldPath, dumpPath), zap.Error(err))
		return
	case err != nil:
		// 压缩文件已写入，仅源文件清理失败
		ex.logger.Warn("compressed artifact written but source cleanup failed", zap.Error(err))
		ex.logf("compression: %s -> %s (source not removed: %v)", t.Compression, artifact, err)
	case t.Compression == domain.CompressionNone:
		ex.logf("compression: none")
	default:
		ex.logf("compression: %s -> %s", t.Compression, artifact)
	}
	ex.artifact = artifact

	size, err := fileurl.FileSize(artifact)
	if err != nil {
		ex.logger.Warn("stat backup artifact failed", zap.String(pkglogger.FieldPath, artifact), zap.Error(err))
		ex.logf("file size: unknown")
		size = 0
	} else {
		ex.logf("file size: %s", util.FormatBytes(size))
	}
	ex.size = size

	ex.succeed("Backup completed successfully")
}

// finalize 有且仅有一次：写入结束时间、状态与日志，通知，成功时执行保留清理
func (r *Runner) finalize(ex *execution) {
	run := ex.run
	end := r.now()
	if !end.After(run.StartTime) {
		end = run.StartTime.Add(time.Microsecond)
	}
	run.EndTime = &end
	run.DurationSeconds = end.Sub(run.StartTime).Seconds()
	if run.Status == domain.RunStatusSuccess {
		run.FilePath = ex.artifact
		run.FileSize = ex.size
	}
	run.LogOutput = strings.Join(ex.lines, "\n")

	// 使用新的 context，调用方取消也不会丢失记录
	saveCtx, cancel := context.WithTimeout(context.Background(), r.cfg.FinalizeTimeout)
	defer cancel()

	if err := r.runs.Update(saveCtx, run); err != nil {
		ex.logger.Error("finalize run record failed", zap.String(pkglogger.FieldStatus, string(run.Status)), zap.Error(err))
	}
	r.metrics.runFinished(run)

	duration := time.Duration(run.DurationSeconds * float64(time.Second)).Round(time.Millisecond)
	t := ex.target
	if run.Status != domain.RunStatusSuccess {
		ex.logger.Error("backup failed", zap.String(pkglogger.FieldError, run.Message), zap.Duration(pkglogger.FieldDuration, duration))
		r.notify(saveCtx, "Backup failed: "+t.Name,
			fmt.Sprintf("Target: %s\nDatabase: %s\nStarted: %s\nDuration: %s\nError: %s",
				t.Name, t.DatabaseName, run.StartTime.Format(time.DateTime), duration, run.Message),
			domain.SeverityError, ex.logger)
		return
	}

	ex.logger.Info("backup finished",
		zap.String(pkglogger.FieldPath, run.FilePath),
		zap.Int64(pkglogger.FieldSize, run.FileSize),
		zap.Duration(pkglogger.FieldDuration, duration))
	r.notify(saveCtx, "Backup succeeded: "+t.Name,
		fmt.Sprintf("Target: %s\nDatabase: %s\nFile: %s\nSize: %s\nDuration: %s",
			t.Name, t.DatabaseName, run.FilePath, util.FormatBytes(run.FileSize), duration),
		domain.SeverityInfo, ex.logger)

	res := r.sweeper.Sweep(t.BackupPath, t.RetainMainDays, t.RetainArchiveDays, run.FilePath)
	r.metrics.swept(res.Deleted)
}

func (r *Runner) notify(ctx context.Context, subject, body string, severity domain.Severity, log *zap.Logger) {
	if r.notifier == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("notifier panicked", zap.Any("panic", p))
		}
	}()
	r.notifier.Notify(ctx, subject, body, severity)
}

package task

import (
	"context"

	"github.com/haierkeys/db-backup-service/internal/domain"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"go.uber.org/zap"
)

// InterruptedMessage 对账时写入的失败原因
const InterruptedMessage = "interrupted: no live worker"

// RunReconcileTask 将超过宽限期且无活动 worker 的 running 记录标记为失败
type RunReconcileTask struct {
	deps *Deps
}

// Name 返回任务名称
func (t *RunReconcileTask) Name() string {
	return "stale_run_reconcile"
}

// Spec 返回 cron 表达式
func (t *RunReconcileTask) Spec() string {
	return t.deps.Config.ReconcileCron
}

// IsStartupRun 启动时先对账一次，处理上次进程退出遗留的记录
func (t *RunReconcileTask) IsStartupRun() bool {
	return true
}

// Run 执行对账
func (t *RunReconcileTask) Run(ctx context.Context) error {
	now := t.deps.Now()
	stale, err := t.deps.Runs.ListRunning(ctx, now.Add(-t.deps.Config.StaleRunGrace))
	if err != nil {
		return err
	}

	fixed := 0
	for _, r := range stale {
		if t.deps.Tracker != nil && t.deps.Tracker.IsRunning(r.TargetID) {
			continue
		}
		end := now
		r.EndTime = &end
		r.Status = domain.RunStatusFailed
		r.Message = InterruptedMessage
		r.DurationSeconds = end.Sub(r.StartTime).Seconds()
		if err := t.deps.Runs.Update(ctx, r); err != nil {
			t.deps.Logger.Warn("reconcile run failed", zap.Int64(pkglogger.FieldRunID, r.ID), zap.Error(err))
			continue
		}
		fixed++
	}
	if fixed > 0 {
		t.deps.Logger.Warn("task log",
			zap.String("task", t.Name()),
			zap.Int("interrupted", fixed))
	}
	return nil
}

// NewRunReconcileTask 创建任务，宽限期为 0 时不启用
func NewRunReconcileTask(deps *Deps) (Task, error) {
	if deps.Config.StaleRunGrace <= 0 {
		return nil, nil
	}
	return &RunReconcileTask{deps: deps}, nil
}

func init() {
	Register(NewRunReconcileTask)
}

package task

import (
	"context"

	"github.com/haierkeys/db-backup-service/internal/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// HistoryPurgeTask 按设置中的日志保留天数删除旧记录
type HistoryPurgeTask struct {
	deps *Deps
}

// Name 返回任务名称
func (t *HistoryPurgeTask) Name() string {
	return "history_purge"
}

// Spec 返回 cron 表达式
func (t *HistoryPurgeTask) Spec() string {
	return t.deps.Config.HistoryPurgeCron
}

// IsStartupRun 是否立即执行一次
func (t *HistoryPurgeTask) IsStartupRun() bool {
	return false
}

// Run 执行清理
func (t *HistoryPurgeTask) Run(ctx context.Context) error {
	setting, err := t.deps.Settings.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	days := domain.DefaultAppSetting().LogRetentionDays
	if setting != nil {
		days = setting.LogRetentionDays
	}
	// 0 表示不保留期限，不清理
	if days <= 0 {
		return nil
	}

	n, err := t.deps.Runs.PurgeOlderThan(ctx, days, t.deps.Now())
	if err != nil {
		return err
	}
	t.deps.Logger.Info("task log",
		zap.String("task", t.Name()),
		zap.Int("days", days),
		zap.Int64("deleted", n))
	return nil
}

// NewHistoryPurgeTask 创建任务，未配置 cron 时不启用
func NewHistoryPurgeTask(deps *Deps) (Task, error) {
	if deps.Config.HistoryPurgeCron == "" {
		return nil, nil
	}
	return &HistoryPurgeTask{deps: deps}, nil
}

func init() {
	Register(NewHistoryPurgeTask)
}

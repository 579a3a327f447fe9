// Package domain 定义领域模型和接口
package domain

import (
	"context"
	"time"
)

// TargetRepository 备份目标仓储接口
type TargetRepository interface {
	// Create 创建目标，名称重复时返回 ErrTargetNameExists
	Create(ctx context.Context, t *Target) (*Target, error)

	// Update 更新目标
	Update(ctx context.Context, t *Target) (*Target, error)

	// Delete 删除目标
	Delete(ctx context.Context, id int64) error

	// GetByID 根据ID获取目标，不存在返回 nil, nil
	GetByID(ctx context.Context, id int64) (*Target, error)

	// GetByName 根据名称获取目标，不存在返回 nil, nil
	GetByName(ctx context.Context, name string) (*Target, error)

	// List 获取全部目标
	List(ctx context.Context) ([]*Target, error)

	// ListActive 获取已启用的目标
	ListActive(ctx context.Context) ([]*Target, error)
}

// ScheduleRepository 计划仓储接口
type ScheduleRepository interface {
	// Create 创建计划
	Create(ctx context.Context, s *Schedule) (*Schedule, error)

	// Update 更新计划
	Update(ctx context.Context, s *Schedule) (*Schedule, error)

	// UpdateRunTimes 仅更新上次/下次运行时间
	UpdateRunTimes(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error

	// Delete 删除计划
	Delete(ctx context.Context, id int64) error

	// DeleteByTarget 删除目标下的全部计划
	DeleteByTarget(ctx context.Context, targetID int64) error

	// GetByID 根据ID获取计划，不存在返回 nil, nil
	GetByID(ctx context.Context, id int64) (*Schedule, error)

	// List 获取全部计划
	List(ctx context.Context) ([]*Schedule, error)

	// ListActive 获取已启用的计划
	ListActive(ctx context.Context) ([]*Schedule, error)

	// ListByTarget 获取目标下的计划
	ListByTarget(ctx context.Context, targetID int64) ([]*Schedule, error)
}

// RunRepository 备份记录仓储接口（RunLedger）
type RunRepository interface {
	// Create 插入记录（通常为 running 状态）
	Create(ctx context.Context, r *Run) (*Run, error)

	// Update 更新记录（收尾）
	Update(ctx context.Context, r *Run) error

	// Delete 删除记录
	Delete(ctx context.Context, id int64) error

	// GetByID 根据ID获取记录，不存在返回 nil, nil
	GetByID(ctx context.Context, id int64) (*Run, error)

	// List 分页获取记录，按开始时间倒序
	List(ctx context.Context, filter RunFilter) ([]*Run, error)

	// Count 记录数量
	Count(ctx context.Context, filter RunFilter) (int64, error)

	// ListRunning 获取开始时间早于 before 的 running 记录
	ListRunning(ctx context.Context, before time.Time) ([]*Run, error)

	// Stats 聚合统计，targetID 为 0 时统计全部
	Stats(ctx context.Context, targetID int64) (*RunStats, error)

	// PurgeOlderThan 删除开始时间早于 now-days 的记录，返回删除数量
	PurgeOlderThan(ctx context.Context, days int, now time.Time) (int64, error)
}

// SettingRepository 应用设置仓储接口
type SettingRepository interface {
	// Get 获取设置，不存在返回 nil, nil
	Get(ctx context.Context) (*AppSetting, error)

	// Save 保存设置（upsert）
	Save(ctx context.Context, s *AppSetting) error

	// EnsureDefault 不存在时写入默认设置
	EnsureDefault(ctx context.Context) (*AppSetting, error)
}

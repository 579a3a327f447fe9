package task

import (
	"sync"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"

	"go.uber.org/zap"
)

// MaintenanceConfig 维护任务配置
type MaintenanceConfig struct {
	HistoryPurgeCron string        // 历史记录清理 cron
	ReconcileCron    string        // 僵尸记录对账 cron
	StaleRunGrace    time.Duration // running 记录超过该时长且无活动 worker 视为中断，0 关闭
}

// RunTracker 查询目标是否有活动 worker
type RunTracker interface {
	IsRunning(targetID int64) bool
}

// Deps 任务依赖
type Deps struct {
	Runs     domain.RunRepository
	Settings domain.SettingRepository
	Tracker  RunTracker
	Config   MaintenanceConfig
	Logger   *zap.Logger
	Now      func() time.Time
}

// TaskFactory 任务工厂函数类型,用于创建任务实例
// 返回 nil, nil 表示任务未启用
type TaskFactory func(deps *Deps) (Task, error)

// taskRegistry 全局任务注册表
var (
	taskRegistry  []TaskFactory
	registryMutex sync.RWMutex
)

// Register 注册任务工厂函数
// 通常在各个任务文件的 init() 函数中调用
func Register(factory TaskFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	taskRegistry = append(taskRegistry, factory)
}

// GetFactories 获取所有已注册的任务工厂
func GetFactories() []TaskFactory {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	// 返回副本,避免外部修改
	factories := make([]TaskFactory, len(taskRegistry))
	copy(factories, taskRegistry)
	return factories
}

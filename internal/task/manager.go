package task

import (
	"time"

	"github.com/haierkeys/db-backup-service/pkg/safe_close"

	"go.uber.org/zap"
)

// Manager 任务管理器,负责创建和管理所有维护任务
type Manager struct {
	scheduler *Scheduler
	deps      *Deps
	logger    *zap.Logger
}

// NewManager 创建任务管理器
func NewManager(deps *Deps, sc *safe_close.SafeClose) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{
		scheduler: NewScheduler(deps.Logger, sc),
		deps:      deps,
		logger:    deps.Logger,
	}
}

// RegisterTasks 注册所有任务
func (m *Manager) RegisterTasks() error {
	for _, factory := range GetFactories() {
		t, err := factory(m.deps)
		if err != nil {
			m.logger.Warn("failed to create task", zap.Error(err))
			return err
		}
		if t == nil {
			continue
		}
		if err := m.scheduler.AddTask(t); err != nil {
			return err
		}
		m.logger.Debug("task registered", zap.String("name", t.Name()), zap.String("spec", t.Spec()))
	}
	return nil
}

// Tasks 已注册的任务名称
func (m *Manager) Tasks() []string {
	return m.scheduler.Tasks()
}

// Start 启动所有已注册的任务
func (m *Manager) Start() {
	m.scheduler.Start()
}

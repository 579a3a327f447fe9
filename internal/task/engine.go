package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrEngineStopped 引擎未运行
var ErrEngineStopped = errors.New("schedule engine is not running")

// Runner hands a target to the backup runner
// Runner 备份执行器，Execute 返回是否接受
type Runner interface {
	Execute(ctx context.Context, target *domain.Target, manual bool) bool
}

// timer 可停止的定时器，测试时替换
type timer interface {
	Stop() bool
}

type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

// job 一个已装载的计划
type job struct {
	schedule *domain.Schedule
	next     time.Time
	timer    timer
	// gen 每次重新装载递增，旧定时器触发时据此丢弃
	gen uint64
}

// EngineStatus 引擎状态
type EngineStatus struct {
	Running    bool
	Paused     bool
	Jobs       int
	NextFireAt time.Time
	HasNext    bool
}

// Engine 备份计划引擎，每个计划一个定时器
type Engine struct {
	schedules domain.ScheduleRepository
	targets   domain.TargetRepository
	runner    Runner
	logger    *zap.Logger
	clock     clock

	mu      sync.Mutex
	jobs    map[int64]*job
	gen     uint64
	running bool
	paused  bool
}

// NewEngine 创建计划引擎
func NewEngine(schedules domain.ScheduleRepository, targets domain.TargetRepository, runner Runner, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		schedules: schedules,
		targets:   targets,
		runner:    runner,
		logger:    logger,
		clock:     realClock{},
		jobs:      make(map[int64]*job),
	}
}

// Start loads every active schedule of an active target and arms it. Calling Start twice is a no-op.
// Start 装载启用的计划，重复调用无副作用
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.paused = false
	e.mu.Unlock()

	list, err := e.schedules.ListActive(ctx)
	if err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return errors.Wrap(err, "load active schedules")
	}

	armed := 0
	for _, s := range list {
		ok, err := e.load(ctx, s)
		if err != nil {
			e.logger.Warn("schedule not loaded", zap.Int64(pkglogger.FieldScheduleID, s.ID), zap.Error(err))
			continue
		}
		if ok {
			armed++
		}
	}
	e.logger.Info("schedule engine started", zap.Int("jobs", armed), zap.Int("schedules", len(list)))
	return nil
}

// Stop cancels every timer. In-flight runs are not waited for.
// Stop 取消全部定时器，不等待正在执行的备份
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	for id, j := range e.jobs {
		if j.timer != nil {
			j.timer.Stop()
		}
		delete(e.jobs, id)
	}
	e.running = false
	e.paused = false
	e.logger.Info("schedule engine stopped")
}

// Pause 暂停触发，保留已装载的计划
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrEngineStopped
	}
	if e.paused {
		return nil
	}
	e.paused = true
	for _, j := range e.jobs {
		if j.timer != nil {
			j.timer.Stop()
			j.timer = nil
		}
	}
	e.logger.Info("schedule engine paused", zap.Int("jobs", len(e.jobs)))
	return nil
}

// Resume re-arms every job against the current clock
// Resume 按当前时间重新计算并装载
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if !e.paused {
		e.mu.Unlock()
		return nil
	}
	e.paused = false
	now := e.clock.Now()
	type pending struct {
		id   int64
		last *time.Time
		next time.Time
	}
	var toPersist []pending
	for id, j := range e.jobs {
		next, err := NextFire(j.schedule, now)
		if err != nil {
			e.logger.Warn("schedule dropped on resume", zap.Int64(pkglogger.FieldScheduleID, id), zap.Error(err))
			delete(e.jobs, id)
			continue
		}
		j.next = next
		e.armLocked(j)
		toPersist = append(toPersist, pending{id: id, last: j.schedule.LastRunAt, next: next})
	}
	e.mu.Unlock()

	for _, p := range toPersist {
		next := p.next
		if err := e.schedules.UpdateRunTimes(ctx, p.id, p.last, &next); err != nil {
			e.logger.Warn("persist next run time failed", zap.Int64(pkglogger.FieldScheduleID, p.id), zap.Error(err))
		}
	}
	e.logger.Info("schedule engine resumed", zap.Int("jobs", len(toPersist)))
	return nil
}

// load 计算下一次触发并装载，目标不存在或未启用时跳过
func (e *Engine) load(ctx context.Context, s *domain.Schedule) (bool, error) {
	if !s.IsActive {
		return false, nil
	}
	target, err := e.targets.GetByID(ctx, s.TargetID)
	if err != nil {
		return false, err
	}
	if target == nil || !target.IsActive {
		e.logger.Debug("schedule skipped: target missing or inactive",
			zap.Int64(pkglogger.FieldScheduleID, s.ID),
			zap.Int64(pkglogger.FieldTargetID, s.TargetID))
		return false, nil
	}

	next, err := NextFire(s, e.clock.Now())
	if err != nil {
		return false, err
	}
	if err := e.schedules.UpdateRunTimes(ctx, s.ID, s.LastRunAt, &next); err != nil {
		return false, errors.Wrap(err, "persist next run time")
	}
	s.NextRunAt = &next

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false, nil
	}
	e.removeLocked(s.ID)
	j := &job{schedule: s, next: next}
	e.jobs[s.ID] = j
	if !e.paused {
		e.armLocked(j)
	}
	e.logger.Debug("schedule armed",
		zap.String("job", s.JobID()),
		zap.Int64(pkglogger.FieldTargetID, s.TargetID),
		zap.Time(pkglogger.FieldNextRun, next))
	return true, nil
}

// armLocked 为 job 启动定时器，调用方持有 e.mu
func (e *Engine) armLocked(j *job) {
	if j.timer != nil {
		j.timer.Stop()
	}
	e.gen++
	j.gen = e.gen
	id, gen := j.schedule.ID, j.gen
	d := j.next.Sub(e.clock.Now())
	if d < 0 {
		d = 0
	}
	j.timer = e.clock.AfterFunc(d, func() { e.fire(id, gen) })
}

// removeLocked 移除 job，不存在时仅记录 debug
func (e *Engine) removeLocked(id int64) {
	j, ok := e.jobs[id]
	if !ok {
		e.logger.Debug("job not loaded", zap.Int64(pkglogger.FieldScheduleID, id))
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(e.jobs, id)
}

// fire 定时器回调：交给 Runner 并持久化上次/下次运行时间
func (e *Engine) fire(id int64, gen uint64) {
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok || j.gen != gen || !e.running || e.paused {
		e.mu.Unlock()
		return
	}
	s := j.schedule
	// 定时器可能晚于计划时间触发（如休眠恢复），以实际时间为准，避免补跑
	fireAt := j.next
	if now := e.clock.Now(); now.After(fireAt) {
		fireAt = now
	}
	j.timer = nil
	e.mu.Unlock()

	ctx := context.Background()
	log := e.logger.With(zap.String("job", s.JobID()), zap.Int64(pkglogger.FieldTargetID, s.TargetID))

	next, err := NextFire(s, fireAt)
	if err != nil {
		log.Error("compute next run failed, job removed", zap.Error(err))
		e.mu.Lock()
		if cur, ok := e.jobs[id]; ok && cur.gen == gen {
			delete(e.jobs, id)
		}
		e.mu.Unlock()
		return
	}

	var ran *time.Time
	target, err := e.targets.GetByID(ctx, s.TargetID)
	switch {
	case err != nil:
		log.Warn("load target failed, run skipped", zap.Error(err))
	case target == nil:
		log.Warn("target no longer exists, run skipped")
	case !target.IsActive:
		log.Warn("target is inactive, run skipped", zap.String(pkglogger.FieldTargetName, target.Name))
	default:
		// 加载目标期间计划可能已被删除或停用，持锁复查后再交给 Runner
		e.mu.Lock()
		cur, ok := e.jobs[id]
		current := ok && cur.gen == gen && e.running && !e.paused
		accepted := current && e.runner.Execute(ctx, target, false)
		e.mu.Unlock()
		if !current {
			log.Info("schedule changed before run, skipped")
			return
		}

		last := fireAt
		if err := e.schedules.UpdateRunTimes(ctx, s.ID, &last, &next); err != nil {
			log.Warn("persist run times failed", zap.Error(err))
		}
		ran = &last
		if !accepted {
			log.Info("backup already running, scheduled run skipped", zap.String(pkglogger.FieldTargetName, target.Name))
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if ran != nil {
		s.LastRunAt = ran
	}
	s.NextRunAt = &next
	if cur, ok := e.jobs[id]; ok && cur.gen == gen && e.running {
		cur.next = next
		if !e.paused {
			e.armLocked(cur)
		}
	}
}

// AddSchedule 保存计划，引擎运行中时立即装载
func (e *Engine) AddSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	created, err := e.schedules.Create(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := e.reload(ctx, created); err != nil {
		e.logger.Warn("schedule saved but not armed", zap.Int64(pkglogger.FieldScheduleID, created.ID), zap.Error(err))
	}
	return created, nil
}

// UpdateSchedule 保存计划，先移除旧定时器再按需重新装载
func (e *Engine) UpdateSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	updated, err := e.schedules.Update(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := e.reload(ctx, updated); err != nil {
		e.logger.Warn("schedule saved but not armed", zap.Int64(pkglogger.FieldScheduleID, updated.ID), zap.Error(err))
	}
	return updated, nil
}

// DeleteSchedule 移除定时器并删除计划
func (e *Engine) DeleteSchedule(ctx context.Context, id int64) error {
	e.mu.Lock()
	e.removeLocked(id)
	e.mu.Unlock()
	return e.schedules.Delete(ctx, id)
}

// RefreshTarget 重新装载目标下的全部计划，目标启用状态变化后调用
func (e *Engine) RefreshTarget(ctx context.Context, targetID int64) error {
	e.mu.Lock()
	for id, j := range e.jobs {
		if j.schedule.TargetID == targetID {
			e.removeLocked(id)
		}
	}
	running := e.running
	e.mu.Unlock()
	if !running {
		return nil
	}

	list, err := e.schedules.ListByTarget(ctx, targetID)
	if err != nil {
		return err
	}
	for _, s := range list {
		if _, err := e.load(ctx, s); err != nil {
			e.logger.Warn("schedule not reloaded", zap.Int64(pkglogger.FieldScheduleID, s.ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) reload(ctx context.Context, s *domain.Schedule) error {
	e.mu.Lock()
	e.removeLocked(s.ID)
	running := e.running
	e.mu.Unlock()
	if !running {
		return nil
	}
	_, err := e.load(ctx, s)
	return err
}

// GetNextFireTime 返回最早的下一次触发时间
func (e *Engine) GetNextFireTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var earliest time.Time
	found := false
	for _, j := range e.jobs {
		if !found || j.next.Before(earliest) {
			earliest = j.next
			found = true
		}
	}
	return earliest, found
}

// ForceRunNow 立即手动执行，不影响 nextRunAt
func (e *Engine) ForceRunNow(ctx context.Context, targetID int64) (bool, error) {
	target, err := e.targets.GetByID(ctx, targetID)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, domain.ErrTargetNotFound
	}
	return e.runner.Execute(ctx, target, true), nil
}

// IsRunning 引擎是否已启动
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status 引擎状态快照
func (e *Engine) Status() EngineStatus {
	next, ok := e.GetNextFireTime()
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		Running:    e.running,
		Paused:     e.paused,
		Jobs:       len(e.jobs),
		NextFireAt: next,
		HasNext:    ok,
	}
}

// JobIDs 已装载的任务标识，按计划 ID 排序
func (e *Engine) JobIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.jobs))
	for id := range e.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.jobs[id].schedule.JobID())
	}
	return out
}

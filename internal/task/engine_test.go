package task

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/writequeue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进时钟并同步触发到期的定时器
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, k int) bool { return c.timers[i].at.Before(c.timers[k].at) })
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = t
				break
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.fired = true
		if due.at.After(c.now) {
			c.now = due.at
		}
		c.mu.Unlock()
		due.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type runCall struct {
	targetID int64
	manual   bool
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []runCall
	reject bool
}

func (r *fakeRunner) Execute(_ context.Context, t *domain.Target, manual bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, runCall{targetID: t.ID, manual: manual})
	return !r.reject
}

func (r *fakeRunner) Calls() []runCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runCall(nil), r.calls...)
}

type engineFixture struct {
	targets   domain.TargetRepository
	schedules domain.ScheduleRepository
	runs      domain.RunRepository
	settings  domain.SettingRepository
	clock     *fakeClock
	runner    *fakeRunner
	engine    *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db, err := dao.NewDBEngineWithConfig(dao.DatabaseConfig{
		Type:        "sqlite",
		Path:        filepath.Join(t.TempDir(), "backup.db"),
		AutoMigrate: true,
	}, zap.NewNop())
	require.NoError(t, err)
	wq := writequeue.New(nil, zap.NewNop())
	t.Cleanup(func() {
		_ = wq.Shutdown(context.Background())
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	d := dao.New(db, wq, zap.NewNop())

	f := &engineFixture{
		targets:   dao.NewTargetRepository(d),
		schedules: dao.NewScheduleRepository(d),
		runs:      dao.NewRunRepository(d),
		settings:  dao.NewSettingRepository(d),
		// 2024-06-02 是周日
		clock:  &fakeClock{now: time.Date(2024, time.June, 2, 10, 0, 0, 0, time.Local)},
		runner: &fakeRunner{},
	}
	f.engine = NewEngine(f.schedules, f.targets, f.runner, zap.NewNop())
	f.engine.clock = f.clock
	return f
}

func (f *engineFixture) target(t *testing.T, name string, active bool) *domain.Target {
	t.Helper()
	tg, err := f.targets.Create(context.Background(), &domain.Target{
		Name: name, Host: "localhost", Port: 3306, DatabaseName: name,
		BackupPath: "/tmp/" + name, Compression: domain.CompressionNone, IsActive: active,
	})
	require.NoError(t, err)
	return tg
}

func (f *engineFixture) schedule(t *testing.T, targetID int64, tod string, active bool) *domain.Schedule {
	t.Helper()
	s, err := f.schedules.Create(context.Background(), &domain.Schedule{
		TargetID: targetID, Type: domain.ScheduleDaily, TimeOfDay: tod, IsActive: active,
	})
	require.NoError(t, err)
	return s
}

func local(d, hh, mm int) time.Time {
	return time.Date(2024, time.June, d, hh, mm, 0, 0, time.Local)
}

func TestEngine_StartLoadsActiveOnly(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	live := f.target(t, "live", true)
	idle := f.target(t, "idle", false)
	s1 := f.schedule(t, live.ID, "02:00", true)
	f.schedule(t, live.ID, "03:00", false)
	f.schedule(t, idle.ID, "04:00", true)

	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Start(ctx), "second start is a no-op")

	st := f.engine.Status()
	assert.True(t, st.Running)
	assert.Equal(t, 1, st.Jobs)
	assert.Equal(t, []string{s1.JobID()}, f.engine.JobIDs())
	assert.Equal(t, 1, f.clock.pending())

	next, ok := f.engine.GetNextFireTime()
	require.True(t, ok)
	assert.True(t, local(3, 2, 0).Equal(next))

	stored, err := f.schedules.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, local(3, 2, 0).Equal(*stored.NextRunAt))
}

func TestEngine_FirePersistsThenRuns(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	tg := f.target(t, "shop", true)
	s := f.schedule(t, tg.ID, "02:00", true)
	require.NoError(t, f.engine.Start(ctx))

	f.clock.Advance(16 * time.Hour)

	calls := f.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, runCall{targetID: tg.ID, manual: false}, calls[0])

	stored, err := f.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastRunAt)
	assert.True(t, local(3, 2, 0).Equal(*stored.LastRunAt))
	require.NotNil(t, stored.NextRunAt)
	assert.True(t, local(4, 2, 0).Equal(*stored.NextRunAt))

	next, ok := f.engine.GetNextFireTime()
	require.True(t, ok)
	assert.True(t, local(4, 2, 0).Equal(next))

	f.clock.Advance(24 * time.Hour)
	assert.Len(t, f.runner.Calls(), 2)
}

func TestEngine_RejectedRunStillAdvances(t *testing.T) {
	f := newEngineFixture(t)
	tg := f.target(t, "busy", true)
	f.schedule(t, tg.ID, "11:00", true)
	f.runner.reject = true
	require.NoError(t, f.engine.Start(context.Background()))

	f.clock.Advance(time.Hour)
	assert.Len(t, f.runner.Calls(), 1)
	next, ok := f.engine.GetNextFireTime()
	require.True(t, ok)
	assert.True(t, local(3, 11, 0).Equal(next))
}

func TestEngine_PauseResume(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tg := f.target(t, "shop", true)
	f.schedule(t, tg.ID, "11:00", true)

	assert.ErrorIs(t, f.engine.Pause(), ErrEngineStopped)
	require.NoError(t, f.engine.Start(ctx))
	require.NoError(t, f.engine.Pause())
	assert.True(t, f.engine.Status().Paused)
	assert.Equal(t, 1, f.engine.Status().Jobs, "pause keeps jobs")

	f.clock.Advance(2 * time.Hour)
	assert.Empty(t, f.runner.Calls())

	// 12:00 恢复，今天 11:00 已过，下一次是明天
	require.NoError(t, f.engine.Resume(ctx))
	next, ok := f.engine.GetNextFireTime()
	require.True(t, ok)
	assert.True(t, local(3, 11, 0).Equal(next))

	f.clock.Advance(23 * time.Hour)
	assert.Len(t, f.runner.Calls(), 1)
}

func TestEngine_StopCancelsTimers(t *testing.T) {
	f := newEngineFixture(t)
	tg := f.target(t, "shop", true)
	f.schedule(t, tg.ID, "11:00", true)
	require.NoError(t, f.engine.Start(context.Background()))

	f.engine.Stop()
	f.engine.Stop()
	assert.False(t, f.engine.Status().Running)
	assert.Equal(t, 0, f.clock.pending())

	f.clock.Advance(2 * time.Hour)
	assert.Empty(t, f.runner.Calls())
	_, ok := f.engine.GetNextFireTime()
	assert.False(t, ok)
}

func TestEngine_AddUpdateDelete(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tg := f.target(t, "shop", true)
	require.NoError(t, f.engine.Start(ctx))

	_, err := f.engine.AddSchedule(ctx, &domain.Schedule{TargetID: tg.ID, Type: domain.ScheduleWeekly, TimeOfDay: "02:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	s, err := f.engine.AddSchedule(ctx, &domain.Schedule{
		TargetID: tg.ID, Type: domain.ScheduleWeekly, TimeOfDay: "02:00", DaysOfWeek: []int{3}, IsActive: true,
	})
	require.NoError(t, err)
	next, ok := f.engine.GetNextFireTime()
	require.True(t, ok)
	assert.True(t, local(5, 2, 0).Equal(next))

	s.DaysOfWeek = []int{1}
	_, err = f.engine.UpdateSchedule(ctx, s)
	require.NoError(t, err)
	next, _ = f.engine.GetNextFireTime()
	assert.True(t, local(3, 2, 0).Equal(next))
	assert.Equal(t, 1, f.engine.Status().Jobs)
	assert.Equal(t, 1, f.clock.pending(), "old timer removed before re-arming")

	s.IsActive = false
	_, err = f.engine.UpdateSchedule(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, f.engine.Status().Jobs)

	require.NoError(t, f.engine.DeleteSchedule(ctx, s.ID))
	assert.ErrorIs(t, f.engine.DeleteSchedule(ctx, s.ID), domain.ErrScheduleNotFound)
}

func TestEngine_SkipsInactiveTargetOnFire(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tg := f.target(t, "shop", true)
	f.schedule(t, tg.ID, "11:00", true)
	require.NoError(t, f.engine.Start(ctx))

	tg.IsActive = false
	_, err := f.targets.Update(ctx, tg)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	assert.Empty(t, f.runner.Calls())

	require.NoError(t, f.engine.RefreshTarget(ctx, tg.ID))
	assert.Equal(t, 0, f.engine.Status().Jobs)

	tg.IsActive = true
	_, err = f.targets.Update(ctx, tg)
	require.NoError(t, err)
	require.NoError(t, f.engine.RefreshTarget(ctx, tg.ID))
	assert.Equal(t, 1, f.engine.Status().Jobs)
}

func TestEngine_ForceRunNow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	tg := f.target(t, "shop", true)
	s := f.schedule(t, tg.ID, "11:00", true)
	require.NoError(t, f.engine.Start(ctx))

	ok, err := f.engine.ForceRunNow(ctx, tg.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []runCall{{targetID: tg.ID, manual: true}}, f.runner.Calls())

	stored, err := f.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastRunAt)
	assert.True(t, local(2, 11, 0).Equal(*stored.NextRunAt))

	_, err = f.engine.ForceRunNow(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
}

// hookedTargets 在 GetByID 返回前执行 hook，模拟触发过程中的并发修改
type hookedTargets struct {
	domain.TargetRepository
	hook func()
}

func (h *hookedTargets) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	if h.hook != nil {
		hook := h.hook
		h.hook = nil
		hook()
	}
	return h.TargetRepository.GetByID(ctx, id)
}

func TestEngine_ScheduleDeletedWhileFiringDoesNotRun(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	tg := f.target(t, "shop", true)
	s := f.schedule(t, tg.ID, "11:00", true)
	require.NoError(t, f.engine.Start(ctx))

	f.engine.targets = &hookedTargets{
		TargetRepository: f.targets,
		hook:             func() { require.NoError(t, f.engine.DeleteSchedule(ctx, s.ID)) },
	}
	f.clock.Advance(time.Hour)

	assert.Empty(t, f.runner.Calls())
	assert.Equal(t, 0, f.engine.Status().Jobs)
	assert.Equal(t, 0, f.clock.pending())

	stored, err := f.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEngine_PausedWhileFiringDoesNotRun(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	tg := f.target(t, "shop", true)
	s := f.schedule(t, tg.ID, "11:00", true)
	require.NoError(t, f.engine.Start(ctx))

	f.engine.targets = &hookedTargets{
		TargetRepository: f.targets,
		hook:             func() { require.NoError(t, f.engine.Pause()) },
	}
	f.clock.Advance(time.Hour)

	assert.Empty(t, f.runner.Calls())
	stored, err := f.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastRunAt, "a skipped fire is not recorded as a run")
}

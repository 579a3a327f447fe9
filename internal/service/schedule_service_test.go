package service

import (
	"context"
	"testing"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/internal/task"
	"github.com/haierkeys/db-backup-service/pkg/code"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopRunner struct{ running []int64 }

func (noopRunner) Execute(context.Context, *domain.Target, bool) bool { return true }

func (r noopRunner) Running() []int64 { return r.running }

func newScheduleFixture(t *testing.T) (*testStore, *task.Engine, ScheduleService, *domain.Target) {
	t.Helper()
	store := newTestStore(t)
	runner := noopRunner{running: []int64{7}}
	engine := task.NewEngine(store.schedules, store.targets, runner, zap.NewNop())
	t.Cleanup(engine.Stop)

	target, err := store.targets.Create(context.Background(), &domain.Target{
		Name: "shop", Host: "localhost", Port: 3306, DatabaseName: "shop",
		BackupPath: t.TempDir(), Compression: domain.CompressionZip, IsActive: true,
	})
	require.NoError(t, err)

	svc := NewScheduleService(store.schedules, store.targets, engine, engine, runner, zap.NewNop())
	return store, engine, svc, target
}

func TestScheduleService_CreateArmsJob(t *testing.T) {
	_, engine, svc, target := newScheduleFixture(t)
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))

	got, err := svc.Create(ctx, &dto.ScheduleRequest{
		TargetID: target.ID, Type: "weekly", Time: "02:00", DaysOfWeek: []int{3, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "shop", got.TargetName)
	assert.Equal(t, []int{1, 3}, got.DaysOfWeek)
	assert.True(t, got.IsActive)
	assert.Equal(t, (&domain.Schedule{ID: got.ID}).JobID(), got.JobID)
	assert.False(t, got.NextRunAt.IsZero())
	assert.Equal(t, 1, engine.Status().Jobs)

	list, err := svc.List(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, got.ID, list[0].ID)
}

func TestScheduleService_Errors(t *testing.T) {
	_, _, svc, target := newScheduleFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &dto.ScheduleRequest{TargetID: 999, Type: "daily", Time: "02:00"})
	requireCode(t, err, code.ErrorTargetNotFound)

	_, err = svc.Create(ctx, &dto.ScheduleRequest{TargetID: target.ID, Type: "monthly", Time: "02:00"})
	requireCode(t, err, code.ErrorScheduleInvalid)

	_, err = svc.Update(ctx, 999, &dto.ScheduleRequest{TargetID: target.ID, Type: "daily", Time: "02:00"})
	requireCode(t, err, code.ErrorScheduleNotFound)

	requireCode(t, svc.Delete(ctx, 999), code.ErrorScheduleNotFound)
}

func TestScheduleService_UpdateChangesType(t *testing.T) {
	_, engine, svc, target := newScheduleFixture(t)
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx))

	created, err := svc.Create(ctx, &dto.ScheduleRequest{
		TargetID: target.ID, Type: "weekly", Time: "02:00", DaysOfWeek: []int{1},
	})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, created.ID, &dto.ScheduleRequest{
		TargetID: target.ID, Type: "monthly", Time: "04:30", DayOfMonth: 31, IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "monthly", updated.Type)
	assert.Empty(t, updated.DaysOfWeek)
	assert.Equal(t, 31, updated.DayOfMonth)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 0, engine.Status().Jobs)

	require.NoError(t, svc.Delete(ctx, created.ID))
	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduleService_Control(t *testing.T) {
	_, _, svc, _ := newScheduleFixture(t)
	ctx := context.Background()

	_, err := svc.Control(ctx, SchedulerPause)
	requireCode(t, err, code.ErrorSchedulerState)

	st, err := svc.Control(ctx, SchedulerStart)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, []int64{7}, st.ActiveTargets)

	st, err = svc.Control(ctx, SchedulerPause)
	require.NoError(t, err)
	assert.True(t, st.Paused)

	st, err = svc.Control(ctx, SchedulerResume)
	require.NoError(t, err)
	assert.False(t, st.Paused)

	st, err = svc.Control(ctx, SchedulerStop)
	require.NoError(t, err)
	assert.False(t, st.Running)

	_, err = svc.Control(ctx, "reboot")
	requireCode(t, err, code.ErrorInvalidParams)
}

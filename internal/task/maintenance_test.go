package task

import (
	"context"
	"testing"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/safe_close"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type trackerFunc func(int64) bool

func (f trackerFunc) IsRunning(id int64) bool { return f(id) }

func TestHistoryPurgeTask(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	now := time.Now()

	setting := domain.DefaultAppSetting()
	setting.LogRetentionDays = 7
	require.NoError(t, f.settings.Save(ctx, setting))

	for _, age := range []int{30, 8, 1} {
		_, err := f.runs.Create(ctx, &domain.Run{TargetID: 1, StartTime: now.AddDate(0, 0, -age), Status: domain.RunStatusSuccess})
		require.NoError(t, err)
	}

	task, err := NewHistoryPurgeTask(&Deps{
		Runs: f.runs, Settings: f.settings, Logger: zap.NewNop(), Now: func() time.Time { return now },
		Config: MaintenanceConfig{HistoryPurgeCron: "0 3 * * *"},
	})
	require.NoError(t, err)
	require.NotNil(t, task)
	require.NoError(t, task.Run(ctx))

	n, err := f.runs.Count(ctx, domain.RunFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	disabled, err := NewHistoryPurgeTask(&Deps{})
	require.NoError(t, err)
	assert.Nil(t, disabled)
}

func TestRunReconcileTask(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	now := time.Now()

	orphan, err := f.runs.Create(ctx, &domain.Run{TargetID: 1, StartTime: now.Add(-3 * time.Hour), Status: domain.RunStatusRunning})
	require.NoError(t, err)
	live, err := f.runs.Create(ctx, &domain.Run{TargetID: 2, StartTime: now.Add(-3 * time.Hour), Status: domain.RunStatusRunning})
	require.NoError(t, err)
	recent, err := f.runs.Create(ctx, &domain.Run{TargetID: 3, StartTime: now.Add(-time.Minute), Status: domain.RunStatusRunning})
	require.NoError(t, err)

	task, err := NewRunReconcileTask(&Deps{
		Runs: f.runs, Logger: zap.NewNop(), Now: func() time.Time { return now },
		Tracker: trackerFunc(func(id int64) bool { return id == 2 }),
		Config:  MaintenanceConfig{StaleRunGrace: time.Hour},
	})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, task.IsStartupRun())
	require.NoError(t, task.Run(ctx))

	got, err := f.runs.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, InterruptedMessage, got.Message)
	require.NotNil(t, got.EndTime)
	assert.InDelta(t, 3*3600, got.DurationSeconds, 2)

	for _, id := range []int64{live.ID, recent.ID} {
		r, err := f.runs.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusRunning, r.Status)
	}

	disabled, err := NewRunReconcileTask(&Deps{})
	require.NoError(t, err)
	assert.Nil(t, disabled)
}

func TestManager_RegistersConfiguredTasks(t *testing.T) {
	sc := safe_close.NewSafeClose()
	m := NewManager(&Deps{Config: MaintenanceConfig{HistoryPurgeCron: "0 3 * * *"}}, sc)
	require.NoError(t, m.RegisterTasks())
	assert.Equal(t, []string{"history_purge"}, m.Tasks())

	bad := NewManager(&Deps{Config: MaintenanceConfig{HistoryPurgeCron: "every day"}}, sc)
	assert.Error(t, bad.RegisterTasks())
}

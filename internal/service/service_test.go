package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/writequeue"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testStore 基于临时 SQLite 的仓储集合
type testStore struct {
	targets   domain.TargetRepository
	schedules domain.ScheduleRepository
	runs      domain.RunRepository
	settings  domain.SettingRepository
}

func newTestStore(t *testing.T) *testStore {
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
	return &testStore{
		targets:   dao.NewTargetRepository(d),
		schedules: dao.NewScheduleRepository(d),
		runs:      dao.NewRunRepository(d),
		settings:  dao.NewSettingRepository(d),
	}
}

func newTestVault(t *testing.T) CredentialVault {
	t.Helper()
	v, err := NewCredentialVaultWithKey(make([]byte, 32), zap.NewNop())
	require.NoError(t, err)
	return v
}

func requireCode(t *testing.T, err error, want *code.Code) {
	t.Helper()
	var got *code.Code
	require.True(t, errors.As(err, &got), "expected *code.Code, got %v", err)
	require.Equal(t, want.Code(), got.Code(), got.Error())
}

// fakeScheduleController 记录调用，AddSchedule 直接写入存储
type fakeScheduleController struct {
	mu        sync.Mutex
	repo      domain.ScheduleRepository
	added     []*domain.Schedule
	deleted   []int64
	refreshed []int64
	forced    []int64
	accept    bool
}

func (f *fakeScheduleController) AddSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created, err := f.repo.Create(ctx, s)
	if err == nil {
		f.added = append(f.added, created)
	}
	return created, err
}

func (f *fakeScheduleController) UpdateSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return f.repo.Update(ctx, s)
}

func (f *fakeScheduleController) DeleteSchedule(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.repo.Delete(ctx, id)
}

func (f *fakeScheduleController) RefreshTarget(_ context.Context, targetID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, targetID)
	return nil
}

func (f *fakeScheduleController) ForceRunNow(_ context.Context, targetID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, targetID)
	return f.accept, nil
}

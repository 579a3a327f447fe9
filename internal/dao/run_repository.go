package dao

import (
	"context"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runRepository 实现 domain.RunRepository 接口（RunLedger）
// 时间统一以 UTC 落库，保证 SQLite 文本比较的顺序正确
type runRepository struct {
	dao *Dao
}

// NewRunRepository 创建 RunRepository 实例
func NewRunRepository(dao *Dao) domain.RunRepository {
	return &runRepository{dao: dao}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func localPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	l := t.Local()
	return &l
}

func (r *runRepository) toDomain(m *model.BackupRun) *domain.Run {
	if m == nil {
		return nil
	}
	return &domain.Run{
		ID:              m.ID,
		TargetID:        m.TargetID,
		TargetName:      m.TargetName,
		StartTime:       m.StartTime.Local(),
		EndTime:         localPtr(m.EndTime),
		Status:          domain.RunStatus(m.Status),
		Message:         m.Message,
		FilePath:        m.FilePath,
		FileSize:        m.FileSize,
		DurationSeconds: m.DurationSeconds,
		LogOutput:       m.LogOutput,
		IsManual:        m.IsManual == 1,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func (r *runRepository) toModel(d *domain.Run) *model.BackupRun {
	if d == nil {
		return nil
	}
	return &model.BackupRun{
		ID:              d.ID,
		TargetID:        d.TargetID,
		TargetName:      d.TargetName,
		StartTime:       d.StartTime.UTC(),
		EndTime:         utcPtr(d.EndTime),
		Status:          string(d.Status),
		Message:         d.Message,
		FilePath:        d.FilePath,
		FileSize:        d.FileSize,
		DurationSeconds: d.DurationSeconds,
		LogOutput:       d.LogOutput,
		IsManual:        boolToInt(d.IsManual),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// Create 插入记录
func (r *runRepository) Create(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	m := r.toModel(run)
	m.ID = 0
	if err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Create(m).Error
	}); err != nil {
		return nil, errors.Wrap(err, "create run")
	}
	return r.toDomain(m), nil
}

// Update 写回全部字段
func (r *runRepository) Update(ctx context.Context, run *domain.Run) error {
	m := r.toModel(run)
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		res := db.Model(&model.BackupRun{ID: m.ID}).Select("*").Omit("id", "created_at").Updates(m)
		if res.Error != nil {
			return errors.Wrap(res.Error, "update run")
		}
		return nil
	})
}

// Delete 删除记录
func (r *runRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		res := db.Delete(&model.BackupRun{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete run")
		}
		if res.RowsAffected == 0 {
			return domain.ErrRunNotFound
		}
		return nil
	})
}

// GetByID 根据ID获取记录
func (r *runRepository) GetByID(ctx context.Context, id int64) (*domain.Run, error) {
	var m model.BackupRun
	err := r.dao.DB(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

func (r *runRepository) filtered(ctx context.Context, f domain.RunFilter) *gorm.DB {
	q := r.dao.DB(ctx).Model(&model.BackupRun{})
	if f.TargetID > 0 {
		q = q.Where("target_id = ?", f.TargetID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	return q
}

// List 分页获取记录，按开始时间倒序
func (r *runRepository) List(ctx context.Context, f domain.RunFilter) ([]*domain.Run, error) {
	q := r.filtered(ctx, f).Order("start_time DESC").Order("id DESC")
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * f.PageSize).Limit(f.PageSize)
	}
	var ms []*model.BackupRun
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Run, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

// Count 记录数量
func (r *runRepository) Count(ctx context.Context, f domain.RunFilter) (int64, error) {
	var n int64
	err := r.filtered(ctx, f).Count(&n).Error
	return n, err
}

// ListRunning 获取开始时间早于 before 的 running 记录
func (r *runRepository) ListRunning(ctx context.Context, before time.Time) ([]*domain.Run, error) {
	var ms []*model.BackupRun
	err := r.dao.DB(ctx).
		Where("status = ? AND start_time < ?", string(domain.RunStatusRunning), before.UTC()).
		Order("start_time ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	result := make([]*domain.Run, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

type statusAggregate struct {
	Status string
	N      int64
	Bytes  int64
}

// Stats 聚合统计
func (r *runRepository) Stats(ctx context.Context, targetID int64) (*domain.RunStats, error) {
	f := domain.RunFilter{TargetID: targetID}

	var rows []statusAggregate
	if err := r.filtered(ctx, f).
		Select("status, COUNT(*) AS n, COALESCE(SUM(file_size), 0) AS bytes").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "aggregate runs")
	}

	stats := &domain.RunStats{}
	for _, row := range rows {
		switch domain.RunStatus(row.Status) {
		case domain.RunStatusSuccess:
			stats.Successful = row.N
			stats.TotalBytes = row.Bytes
		case domain.RunStatusFailed:
			stats.Failed = row.N
		case domain.RunStatusRunning:
			stats.Running = row.N
		}
	}
	stats.Total = stats.Successful + stats.Failed

	var last []*model.BackupRun
	if err := r.filtered(ctx, domain.RunFilter{TargetID: targetID, Status: domain.RunStatusSuccess}).
		Order("start_time DESC").
		Limit(1).
		Find(&last).Error; err != nil {
		return nil, errors.Wrap(err, "last successful run")
	}
	if len(last) == 1 {
		t := last[0].StartTime.Local()
		stats.LastSuccessAt = &t
	}
	return stats, nil
}

// PurgeOlderThan 删除开始时间早于 now-days 的非 running 记录
func (r *runRepository) PurgeOlderThan(ctx context.Context, days int, now time.Time) (int64, error) {
	if days < 0 {
		r.dao.logger.Warn("history purge skipped: negative retention days", zap.Int("days", days))
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -days).UTC()

	var deleted int64
	err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		res := db.Where("start_time < ? AND status <> ?", cutoff, string(domain.RunStatusRunning)).
			Delete(&model.BackupRun{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "purge runs")
	}
	return deleted, nil
}

var _ domain.RunRepository = (*runRepository)(nil)

package dao

import (
	"context"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// scheduleRepository 实现 domain.ScheduleRepository 接口
type scheduleRepository struct {
	dao *Dao
}

// NewScheduleRepository 创建 ScheduleRepository 实例
func NewScheduleRepository(dao *Dao) domain.ScheduleRepository {
	return &scheduleRepository{dao: dao}
}

func (r *scheduleRepository) toDomain(m *model.BackupSchedule) *domain.Schedule {
	if m == nil {
		return nil
	}
	return &domain.Schedule{
		ID:         m.ID,
		TargetID:   m.TargetID,
		Type:       domain.ScheduleType(m.Type),
		TimeOfDay:  m.TimeOfDay,
		DaysOfWeek: splitInts(m.DaysOfWeek),
		DayOfMonth: int(m.DayOfMonth),
		IsActive:   m.IsActive == 1,
		LastRunAt:  m.LastRunAt,
		NextRunAt:  m.NextRunAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (r *scheduleRepository) toModel(d *domain.Schedule) *model.BackupSchedule {
	if d == nil {
		return nil
	}
	return &model.BackupSchedule{
		ID:         d.ID,
		TargetID:   d.TargetID,
		Type:       string(d.Type),
		TimeOfDay:  d.TimeOfDay,
		DaysOfWeek: joinInts(d.DaysOfWeek),
		DayOfMonth: int64(d.DayOfMonth),
		IsActive:   boolToInt(d.IsActive),
		LastRunAt:  d.LastRunAt,
		NextRunAt:  d.NextRunAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// Create 创建计划
func (r *scheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	m := r.toModel(s)
	m.ID = 0
	if err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Create(m).Error
	}); err != nil {
		return nil, errors.Wrap(err, "create schedule")
	}
	return r.toDomain(m), nil
}

// Update 更新计划
func (r *scheduleRepository) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	m := r.toModel(s)
	if err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Model(&model.BackupSchedule{ID: m.ID}).Select("*").Omit("id", "created_at").Updates(m).Error
	}); err != nil {
		return nil, errors.Wrap(err, "update schedule")
	}
	updated, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrScheduleNotFound
	}
	return updated, nil
}

// UpdateRunTimes 仅更新运行时间
func (r *scheduleRepository) UpdateRunTimes(ctx context.Context, id int64, lastRunAt, nextRunAt *time.Time) error {
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Model(&model.BackupSchedule{}).Where("id = ?", id).
			Updates(map[string]any{"last_run_at": lastRunAt, "next_run_at": nextRunAt}).Error
	})
}

// Delete 删除计划
func (r *scheduleRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		res := db.Delete(&model.BackupSchedule{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete schedule")
		}
		if res.RowsAffected == 0 {
			return domain.ErrScheduleNotFound
		}
		return nil
	})
}

// DeleteByTarget 删除目标下的全部计划
func (r *scheduleRepository) DeleteByTarget(ctx context.Context, targetID int64) error {
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Where("target_id = ?", targetID).Delete(&model.BackupSchedule{}).Error
	})
}

// GetByID 根据ID获取计划
func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*domain.Schedule, error) {
	var m model.BackupSchedule
	err := r.dao.DB(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

func (r *scheduleRepository) List(ctx context.Context) ([]*domain.Schedule, error) {
	return r.find(r.dao.DB(ctx))
}

func (r *scheduleRepository) ListActive(ctx context.Context) ([]*domain.Schedule, error) {
	return r.find(r.dao.DB(ctx).Where("is_active = ?", 1))
}

func (r *scheduleRepository) ListByTarget(ctx context.Context, targetID int64) ([]*domain.Schedule, error) {
	return r.find(r.dao.DB(ctx).Where("target_id = ?", targetID))
}

func (r *scheduleRepository) find(q *gorm.DB) ([]*domain.Schedule, error) {
	var ms []*model.BackupSchedule
	if err := q.Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Schedule, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

var _ domain.ScheduleRepository = (*scheduleRepository)(nil)

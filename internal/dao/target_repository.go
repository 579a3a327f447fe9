package dao

import (
	"context"
	"strings"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// targetRepository 实现 domain.TargetRepository 接口
type targetRepository struct {
	dao *Dao
}

// NewTargetRepository 创建 TargetRepository 实例
func NewTargetRepository(dao *Dao) domain.TargetRepository {
	return &targetRepository{dao: dao}
}

func (r *targetRepository) toDomain(m *model.BackupTarget) *domain.Target {
	if m == nil {
		return nil
	}
	return &domain.Target{
		ID:                m.ID,
		Name:              m.Name,
		Host:              m.Host,
		Port:              int(m.Port),
		Username:          m.Username,
		PasswordCipher:    m.PasswordCipher,
		DatabaseName:      m.DatabaseName,
		DumpToolPath:      m.DumpToolPath,
		BackupPath:        m.BackupPath,
		ExcludedTables:    splitStrings(m.ExcludedTables),
		Compression:       domain.Compression(m.Compression),
		RetainMainDays:    int(m.RetainMainDays),
		RetainArchiveDays: int(m.RetainArchiveDays),
		IsActive:          m.IsActive == 1,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func (r *targetRepository) toModel(d *domain.Target) *model.BackupTarget {
	if d == nil {
		return nil
	}
	return &model.BackupTarget{
		ID:                d.ID,
		Name:              d.Name,
		Host:              d.Host,
		Port:              int64(d.Port),
		Username:          d.Username,
		PasswordCipher:    d.PasswordCipher,
		DatabaseName:      d.DatabaseName,
		DumpToolPath:      d.DumpToolPath,
		BackupPath:        d.BackupPath,
		ExcludedTables:    joinStrings(d.ExcludedTables),
		Compression:       string(d.Compression),
		RetainMainDays:    int64(d.RetainMainDays),
		RetainArchiveDays: int64(d.RetainArchiveDays),
		IsActive:          boolToInt(d.IsActive),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// isUniqueViolation 兼容 sqlite / mysql / postgres 的唯一约束错误
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// Create 创建目标
func (r *targetRepository) Create(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	m := r.toModel(t)
	m.ID = 0
	err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Create(m).Error
	})
	if isUniqueViolation(err) {
		return nil, domain.ErrTargetNameExists
	}
	if err != nil {
		return nil, errors.Wrap(err, "create target")
	}
	return r.toDomain(m), nil
}

// Update 更新目标，全部字段写回（包含零值）
func (r *targetRepository) Update(ctx context.Context, t *domain.Target) (*domain.Target, error) {
	m := r.toModel(t)
	err := r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Model(&model.BackupTarget{ID: m.ID}).Select("*").Omit("id", "created_at").Updates(m).Error
	})
	if isUniqueViolation(err) {
		return nil, domain.ErrTargetNameExists
	}
	if err != nil {
		return nil, errors.Wrap(err, "update target")
	}
	// MySQL 对未变化的行返回 0 affected，因此以回读判断是否存在
	updated, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrTargetNotFound
	}
	return updated, nil
}

// Delete 删除目标；历史记录保留，计划由调用方删除
func (r *targetRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		res := db.Delete(&model.BackupTarget{}, id)
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete target")
		}
		if res.RowsAffected == 0 {
			return domain.ErrTargetNotFound
		}
		return nil
	})
}

// GetByID 根据ID获取目标
func (r *targetRepository) GetByID(ctx context.Context, id int64) (*domain.Target, error) {
	var m model.BackupTarget
	err := r.dao.DB(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// GetByName 根据名称获取目标
func (r *targetRepository) GetByName(ctx context.Context, name string) (*domain.Target, error) {
	var m model.BackupTarget
	err := r.dao.DB(ctx).Where("name = ?", name).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// List 获取全部目标
func (r *targetRepository) List(ctx context.Context) ([]*domain.Target, error) {
	return r.find(ctx, r.dao.DB(ctx))
}

// ListActive 获取已启用的目标
func (r *targetRepository) ListActive(ctx context.Context) ([]*domain.Target, error) {
	return r.find(ctx, r.dao.DB(ctx).Where("is_active = ?", 1))
}

func (r *targetRepository) find(_ context.Context, q *gorm.DB) ([]*domain.Target, error) {
	var ms []*model.BackupTarget
	if err := q.Order("name ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	result := make([]*domain.Target, 0, len(ms))
	for _, m := range ms {
		result = append(result, r.toDomain(m))
	}
	return result, nil
}

var _ domain.TargetRepository = (*targetRepository)(nil)

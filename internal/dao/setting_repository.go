package dao

import (
	"context"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// settingRepository 实现 domain.SettingRepository 接口
type settingRepository struct {
	dao *Dao
}

// NewSettingRepository 创建 SettingRepository 实例
func NewSettingRepository(dao *Dao) domain.SettingRepository {
	return &settingRepository{dao: dao}
}

// toDomain 将数据库模型转换为领域模型
func (r *settingRepository) toDomain(m *model.AppSetting) *domain.AppSetting {
	if m == nil {
		return nil
	}
	return &domain.AppSetting{
		ID:                  m.ID,
		WindowWidth:         int(m.WindowWidth),
		WindowHeight:        int(m.WindowHeight),
		WindowMaximized:     m.WindowMaximized == 1,
		AutoStartScheduler:  m.AutoStartScheduler == 1,
		NotificationLevel:   domain.Severity(m.NotificationLevel),
		LogRetentionDays:    int(m.LogRetentionDays),
		DefaultBackupPath:   m.DefaultBackupPath,
		DefaultDumpToolPath: m.DefaultDumpToolPath,
		Email: domain.EmailSetting{
			Enabled:        m.EmailEnabled == 1,
			SMTPServer:     m.SMTPServer,
			SMTPPort:       int(m.SMTPPort),
			Username:       m.EmailUsername,
			PasswordCipher: m.EmailPasswordCipher,
			SenderName:     m.SenderName,
			Recipients:     splitStrings(m.Recipients),
		},
		UpdatedAt: m.UpdatedAt,
	}
}

// toModel 将领域模型转换为数据库模型
func (r *settingRepository) toModel(d *domain.AppSetting) *model.AppSetting {
	return &model.AppSetting{
		ID:                  domain.AppSettingID,
		WindowWidth:         int64(d.WindowWidth),
		WindowHeight:        int64(d.WindowHeight),
		WindowMaximized:     boolToInt(d.WindowMaximized),
		AutoStartScheduler:  boolToInt(d.AutoStartScheduler),
		NotificationLevel:   string(d.NotificationLevel),
		LogRetentionDays:    int64(d.LogRetentionDays),
		DefaultBackupPath:   d.DefaultBackupPath,
		DefaultDumpToolPath: d.DefaultDumpToolPath,
		EmailEnabled:        boolToInt(d.Email.Enabled),
		SMTPServer:          d.Email.SMTPServer,
		SMTPPort:            int64(d.Email.SMTPPort),
		EmailUsername:       d.Email.Username,
		EmailPasswordCipher: d.Email.PasswordCipher,
		SenderName:          d.Email.SenderName,
		Recipients:          joinStrings(d.Email.Recipients),
		UpdatedAt:           d.UpdatedAt,
	}
}

// Get 获取设置
func (r *settingRepository) Get(ctx context.Context) (*domain.AppSetting, error) {
	var m model.AppSetting
	err := r.dao.DB(ctx).Where("id = ?", domain.AppSettingID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Save upsert 单例行
func (r *settingRepository) Save(ctx context.Context, s *domain.AppSetting) error {
	m := r.toModel(s)
	return r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(m).Error
	})
}

// EnsureDefault 不存在时写入默认设置
func (r *settingRepository) EnsureDefault(ctx context.Context) (*domain.AppSetting, error) {
	existing, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	def := domain.DefaultAppSetting()
	m := r.toModel(def)
	err = r.dao.ExecuteWrite(ctx, func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "create default settings")
	}
	r.dao.logger.Info("default application settings created")

	return r.Get(ctx)
}

var _ domain.SettingRepository = (*settingRepository)(nil)

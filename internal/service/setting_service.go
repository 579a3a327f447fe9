package service

import (
	"context"
	"strings"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/timex"

	"go.uber.org/zap"
)

// SettingService 应用设置业务服务接口
type SettingService interface {
	// Get 获取设置，不存在时返回默认值
	Get(ctx context.Context) (*dto.SettingDTO, error)

	// Update 局部更新设置，邮件密码经 CredentialVault 加密
	Update(ctx context.Context, req *dto.SettingUpdateRequest) (*dto.SettingDTO, error)

	// EnsureDefault 启动时确保设置行存在
	EnsureDefault(ctx context.Context) (*domain.AppSetting, error)
}

type settingService struct {
	settingRepo domain.SettingRepository
	vault       CredentialVault
	logger      *zap.Logger
}

// NewSettingService 创建 SettingService 实例
func NewSettingService(settingRepo domain.SettingRepository, vault CredentialVault, logger *zap.Logger) SettingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &settingService{
		settingRepo: settingRepo,
		vault:       vault,
		logger:      logger,
	}
}

// settingToDTO 将领域模型转换为 DTO，不包含密码
func settingToDTO(s *domain.AppSetting) *dto.SettingDTO {
	recipients := s.Email.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return &dto.SettingDTO{
		WindowWidth:         s.WindowWidth,
		WindowHeight:        s.WindowHeight,
		WindowMaximized:     s.WindowMaximized,
		AutoStartScheduler:  s.AutoStartScheduler,
		NotificationLevel:   string(s.NotificationLevel),
		LogRetentionDays:    s.LogRetentionDays,
		DefaultBackupPath:   s.DefaultBackupPath,
		DefaultDumpToolPath: s.DefaultDumpToolPath,
		Email: dto.EmailSetting{
			Enabled:     s.Email.Enabled,
			SMTPServer:  s.Email.SMTPServer,
			SMTPPort:    s.Email.SMTPPort,
			Username:    s.Email.Username,
			HasPassword: s.Email.PasswordCipher != "",
			SenderName:  s.Email.SenderName,
			Recipients:  recipients,
		},
		UpdatedAt: timex.Time(s.UpdatedAt),
	}
}

func (s *settingService) load(ctx context.Context) (*domain.AppSetting, error) {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if setting == nil {
		setting = domain.DefaultAppSetting()
	}
	return setting, nil
}

func (s *settingService) Get(ctx context.Context) (*dto.SettingDTO, error) {
	setting, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return settingToDTO(setting), nil
}

func (s *settingService) Update(ctx context.Context, req *dto.SettingUpdateRequest) (*dto.SettingDTO, error) {
	setting, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if req.WindowWidth != nil {
		setting.WindowWidth = *req.WindowWidth
	}
	if req.WindowHeight != nil {
		setting.WindowHeight = *req.WindowHeight
	}
	if req.WindowMaximized != nil {
		setting.WindowMaximized = *req.WindowMaximized
	}
	if req.AutoStartScheduler != nil {
		setting.AutoStartScheduler = *req.AutoStartScheduler
	}
	if req.NotificationLevel != nil {
		level := domain.Severity(strings.ToLower(*req.NotificationLevel))
		if !level.Valid() {
			return nil, code.ErrorInvalidParams.WithDetails("unknown notification level " + *req.NotificationLevel)
		}
		setting.NotificationLevel = level
	}
	if req.LogRetentionDays != nil {
		if *req.LogRetentionDays < 0 {
			return nil, code.ErrorInvalidParams.WithDetails("log retention days must be >= 0")
		}
		setting.LogRetentionDays = *req.LogRetentionDays
	}
	if req.DefaultBackupPath != nil {
		setting.DefaultBackupPath = strings.TrimSpace(*req.DefaultBackupPath)
	}
	if req.DefaultDumpToolPath != nil {
		setting.DefaultDumpToolPath = strings.TrimSpace(*req.DefaultDumpToolPath)
	}
	if req.EmailEnabled != nil {
		setting.Email.Enabled = *req.EmailEnabled
	}
	if req.SMTPServer != nil {
		setting.Email.SMTPServer = strings.TrimSpace(*req.SMTPServer)
	}
	if req.SMTPPort != nil {
		setting.Email.SMTPPort = *req.SMTPPort
	}
	if req.EmailUsername != nil {
		setting.Email.Username = strings.TrimSpace(*req.EmailUsername)
	}
	// 空字符串表示清除密码
	if req.EmailPassword != nil {
		setting.Email.PasswordCipher = s.vault.Encrypt(*req.EmailPassword)
	}
	if req.SenderName != nil {
		setting.Email.SenderName = *req.SenderName
	}
	if req.Recipients != nil {
		setting.Email.Recipients = normalizeList(req.Recipients)
	}

	if err := s.settingRepo.Save(ctx, setting); err != nil {
		s.logger.Error("save settings failed", zap.Error(err))
		return nil, code.ErrorSettingSaveFailed.WithDetails(err.Error())
	}
	return s.Get(ctx)
}

func (s *settingService) EnsureDefault(ctx context.Context) (*domain.AppSetting, error) {
	return s.settingRepo.EnsureDefault(ctx)
}

var _ SettingService = (*settingService)(nil)

package service

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/pkg/code"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExportService 配置导出导入
type ExportService interface {
	// Export 导出全部目标、计划与设置，密码一律为空
	Export(ctx context.Context) (*dto.ExportDocument, error)

	// Import 按名称 upsert 目标，追加计划，覆盖设置
	Import(ctx context.Context, doc *dto.ExportDocument) (*dto.ImportResultDTO, error)
}

type exportService struct {
	targetRepo   domain.TargetRepository
	scheduleRepo domain.ScheduleRepository
	settingRepo  domain.SettingRepository
	vault        CredentialVault
	schedules    ScheduleController
	now          func() time.Time
	logger       *zap.Logger
}

// NewExportService 创建 ExportService 实例
// schedules 为 nil 时计划直接写入存储（调度器未运行的 CLI 场景）
func NewExportService(
	targetRepo domain.TargetRepository,
	scheduleRepo domain.ScheduleRepository,
	settingRepo domain.SettingRepository,
	vault CredentialVault,
	schedules ScheduleController,
	logger *zap.Logger,
) ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &exportService{
		targetRepo:   targetRepo,
		scheduleRepo: scheduleRepo,
		settingRepo:  settingRepo,
		vault:        vault,
		schedules:    schedules,
		now:          time.Now,
		logger:       logger,
	}
}

// DecodeExportDocument 解析导出文件
func DecodeExportDocument(r io.Reader) (*dto.ExportDocument, error) {
	var doc dto.ExportDocument
	if err := sonic.ConfigStd.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode export document")
	}
	return &doc, nil
}

// EncodeExportDocument 以缩进 JSON 写出导出文件
func EncodeExportDocument(w io.Writer, doc *dto.ExportDocument) error {
	enc := sonic.ConfigStd.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(doc)
}

func (s *exportService) Export(ctx context.Context) (*dto.ExportDocument, error) {
	targets, err := s.targetRepo.List(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	schedules, err := s.scheduleRepo.List(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}

	doc := &dto.ExportDocument{
		ExportVersion:   dto.ExportVersion,
		ExportTimestamp: s.now().Format(time.RFC3339),
		Targets:         make([]dto.ExportTarget, 0, len(targets)),
		Schedules:       make([]dto.ExportSchedule, 0, len(schedules)),
	}

	names := make(map[int64]string, len(targets))
	for _, t := range targets {
		names[t.ID] = t.Name
		excluded := t.ExcludedTables
		if excluded == nil {
			excluded = []string{}
		}
		doc.Targets = append(doc.Targets, dto.ExportTarget{
			Name:              t.Name,
			Host:              t.Host,
			Port:              t.Port,
			Username:          t.Username,
			DatabaseName:      t.DatabaseName,
			DumpToolPath:      t.DumpToolPath,
			BackupPath:        t.BackupPath,
			ExcludedTables:    excluded,
			Compression:       string(t.Compression),
			RetainMainDays:    t.RetainMainDays,
			RetainArchiveDays: t.RetainArchiveDays,
			IsActive:          t.IsActive,
		})
	}

	for _, sc := range schedules {
		name, ok := names[sc.TargetID]
		if !ok {
			continue
		}
		days := sc.DaysOfWeek
		if days == nil {
			days = []int{}
		}
		doc.Schedules = append(doc.Schedules, dto.ExportSchedule{
			TargetName: name,
			Type:       string(sc.Type),
			Time:       sc.TimeOfDay,
			DaysOfWeek: days,
			DayOfMonth: sc.DayOfMonth,
			IsActive:   sc.IsActive,
		})
	}

	if setting != nil {
		doc.Settings = &dto.ExportedSettings{
			AutoStartScheduler:  setting.AutoStartScheduler,
			NotificationLevel:   string(setting.NotificationLevel),
			LogRetentionDays:    setting.LogRetentionDays,
			DefaultBackupPath:   setting.DefaultBackupPath,
			DefaultDumpToolPath: setting.DefaultDumpToolPath,
			EmailEnabled:        setting.Email.Enabled,
			SMTPServer:          setting.Email.SMTPServer,
			SMTPPort:            setting.Email.SMTPPort,
			EmailUsername:       setting.Email.Username,
			SenderName:          setting.Email.SenderName,
			Recipients:          setting.Email.Recipients,
		}
	}
	return doc, nil
}

func (s *exportService) Import(ctx context.Context, doc *dto.ExportDocument) (*dto.ImportResultDTO, error) {
	if doc == nil {
		return nil, code.ErrorImportInvalid.WithDetails("empty document")
	}
	if major, _, _ := strings.Cut(doc.ExportVersion, "."); major != "1" {
		return nil, code.ErrorImportInvalid.WithDetails("unsupported export version " + doc.ExportVersion)
	}

	result := &dto.ImportResultDTO{}
	warn := func(msg string) {
		result.Warnings = append(result.Warnings, msg)
		s.logger.Warn("import: " + msg)
	}

	for i := range doc.Targets {
		if err := s.importTarget(ctx, &doc.Targets[i], result); err != nil {
			warn(err.Error())
		}
	}

	for i := range doc.Schedules {
		if err := s.importSchedule(ctx, &doc.Schedules[i], result); err != nil {
			result.SchedulesSkipped++
			warn(err.Error())
		}
	}

	if doc.Settings != nil {
		if err := s.importSettings(ctx, doc.Settings); err != nil {
			warn(err.Error())
		} else {
			result.SettingsApplied = true
		}
	}

	s.logger.Info("configuration imported",
		zap.Int("targetsCreated", result.TargetsCreated),
		zap.Int("targetsUpdated", result.TargetsUpdated),
		zap.Int("schedulesCreated", result.SchedulesCreated),
		zap.Int("schedulesSkipped", result.SchedulesSkipped),
		zap.Bool("settingsApplied", result.SettingsApplied))
	return result, nil
}

func (s *exportService) importTarget(ctx context.Context, in *dto.ExportTarget, result *dto.ImportResultDTO) error {
	name := strings.TrimSpace(in.Name)
	existing, err := s.targetRepo.GetByName(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "target %q", name)
	}

	t := &domain.Target{}
	if existing != nil {
		*t = *existing
	}
	t.Name = name
	t.Host = strings.TrimSpace(in.Host)
	t.Port = in.Port
	t.Username = in.Username
	t.DatabaseName = in.DatabaseName
	t.DumpToolPath = in.DumpToolPath
	t.BackupPath = in.BackupPath
	t.ExcludedTables = normalizeList(in.ExcludedTables)
	t.Compression = domain.Compression(in.Compression)
	t.RetainMainDays = in.RetainMainDays
	t.RetainArchiveDays = in.RetainArchiveDays
	t.IsActive = in.IsActive
	// 空密码保留已有密码
	if in.Password != "" {
		t.PasswordCipher = s.vault.Encrypt(in.Password)
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return errors.Wrapf(err, "target %q skipped", name)
	}

	if existing != nil {
		if _, err := s.targetRepo.Update(ctx, t); err != nil {
			return errors.Wrapf(err, "update target %q", name)
		}
		result.TargetsUpdated++
		if s.schedules != nil {
			if err := s.schedules.RefreshTarget(ctx, t.ID); err != nil {
				s.logger.Debug("refresh target after import failed", zap.Int64(pkglogger.FieldTargetID, t.ID), zap.Error(err))
			}
		}
		return nil
	}
	if _, err := s.targetRepo.Create(ctx, t); err != nil {
		return errors.Wrapf(err, "create target %q", name)
	}
	result.TargetsCreated++
	return nil
}

func (s *exportService) importSchedule(ctx context.Context, in *dto.ExportSchedule, result *dto.ImportResultDTO) error {
	t, err := s.targetRepo.GetByName(ctx, in.TargetName)
	if err != nil {
		return errors.Wrapf(err, "schedule for %q", in.TargetName)
	}
	if t == nil {
		return errors.Errorf("schedule skipped: target %q does not exist", in.TargetName)
	}

	sc := &domain.Schedule{
		TargetID:   t.ID,
		Type:       domain.ScheduleType(in.Type),
		TimeOfDay:  in.Time,
		DaysOfWeek: in.DaysOfWeek,
		DayOfMonth: in.DayOfMonth,
		IsActive:   in.IsActive,
	}
	if err := sc.Validate(); err != nil {
		return errors.Wrapf(err, "schedule for %q skipped", in.TargetName)
	}

	existing, err := s.scheduleRepo.ListByTarget(ctx, t.ID)
	if err != nil {
		return errors.Wrapf(err, "schedule for %q", in.TargetName)
	}
	for _, e := range existing {
		if sameSchedule(e, sc) {
			return errors.Errorf("schedule for %q skipped: identical schedule exists", in.TargetName)
		}
	}

	if s.schedules != nil {
		_, err = s.schedules.AddSchedule(ctx, sc)
	} else {
		_, err = s.scheduleRepo.Create(ctx, sc)
	}
	if err != nil {
		return errors.Wrapf(err, "create schedule for %q", in.TargetName)
	}
	result.SchedulesCreated++
	return nil
}

func sameSchedule(a, b *domain.Schedule) bool {
	if a.Type != b.Type || a.TimeOfDay != b.TimeOfDay {
		return false
	}
	switch a.Type {
	case domain.ScheduleWeekly:
		x, y := slices.Clone(a.DaysOfWeek), slices.Clone(b.DaysOfWeek)
		slices.Sort(x)
		slices.Sort(y)
		return slices.Equal(slices.Compact(x), slices.Compact(y))
	case domain.ScheduleMonthly:
		return a.DayOfMonth == b.DayOfMonth
	}
	return true
}

func (s *exportService) importSettings(ctx context.Context, in *dto.ExportedSettings) error {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	if setting == nil {
		setting = domain.DefaultAppSetting()
	}

	level := domain.Severity(strings.ToLower(in.NotificationLevel))
	if !level.Valid() {
		level = domain.SeverityInfo
	}
	setting.AutoStartScheduler = in.AutoStartScheduler
	setting.NotificationLevel = level
	if in.LogRetentionDays >= 0 {
		setting.LogRetentionDays = in.LogRetentionDays
	}
	setting.DefaultBackupPath = in.DefaultBackupPath
	setting.DefaultDumpToolPath = in.DefaultDumpToolPath
	setting.Email.Enabled = in.EmailEnabled
	setting.Email.SMTPServer = in.SMTPServer
	setting.Email.SMTPPort = in.SMTPPort
	setting.Email.Username = in.EmailUsername
	setting.Email.SenderName = in.SenderName
	setting.Email.Recipients = normalizeList(in.Recipients)

	if err := s.settingRepo.Save(ctx, setting); err != nil {
		return errors.Wrap(err, "save settings")
	}
	return nil
}

var _ ExportService = (*exportService)(nil)

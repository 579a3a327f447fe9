package service

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/convert"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"
	"github.com/haierkeys/db-backup-service/pkg/timex"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ScheduleController 调度引擎中与目标相关的操作
type ScheduleController interface {
	AddSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	RefreshTarget(ctx context.Context, targetID int64) error
	ForceRunNow(ctx context.Context, targetID int64) (bool, error)
}

// RunTracker 查询目标是否正在备份
type RunTracker interface {
	IsRunning(targetID int64) bool
}

// ConnectionTester opens a connection and pings it
// ConnectionTester 连接测试函数，测试时替换
type ConnectionTester func(ctx context.Context, t *domain.Target, password string) error

// TargetService 备份目标业务服务接口
type TargetService interface {
	// List 获取全部目标
	List(ctx context.Context) ([]*dto.TargetDTO, error)

	// Get 根据 ID 获取目标
	Get(ctx context.Context, id int64) (*dto.TargetDTO, error)

	// Create 创建目标，密码经 CredentialVault 加密后保存
	Create(ctx context.Context, req *dto.TargetRequest) (*dto.TargetDTO, error)

	// Update 更新目标，密码为空时保留原密码
	Update(ctx context.Context, id int64, req *dto.TargetRequest) (*dto.TargetDTO, error)

	// Delete 删除目标及其计划，历史记录保留
	Delete(ctx context.Context, id int64) error

	// TestConnection 测试数据库连接
	TestConnection(ctx context.Context, id int64) (*dto.ConnectionTestDTO, error)

	// RunNow 立即执行一次手动备份
	RunNow(ctx context.Context, id int64) (*dto.RunNowDTO, error)
}

type targetService struct {
	targetRepo   domain.TargetRepository
	scheduleRepo domain.ScheduleRepository
	settingRepo  domain.SettingRepository
	vault        CredentialVault
	schedules    ScheduleController
	tracker      RunTracker
	tester       ConnectionTester
	config       *ServiceConfig
	logger       *zap.Logger
}

// NewTargetService 创建 TargetService 实例
func NewTargetService(
	targetRepo domain.TargetRepository,
	scheduleRepo domain.ScheduleRepository,
	settingRepo domain.SettingRepository,
	vault CredentialVault,
	schedules ScheduleController,
	tracker RunTracker,
	tester ConnectionTester,
	config *ServiceConfig,
	logger *zap.Logger,
) TargetService {
	if tester == nil {
		tester = MySQLConnectionTester
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &targetService{
		targetRepo:   targetRepo,
		scheduleRepo: scheduleRepo,
		settingRepo:  settingRepo,
		vault:        vault,
		schedules:    schedules,
		tracker:      tracker,
		tester:       tester,
		config:       config.withDefaults(),
		logger:       logger,
	}
}

// domainToDTO 将领域模型转换为 DTO
func (s *targetService) domainToDTO(t *domain.Target) *dto.TargetDTO {
	if t == nil {
		return nil
	}
	out := &dto.TargetDTO{}
	if err := convert.StructAssign(t, out); err != nil {
		s.logger.Warn("copy target to dto failed", zap.Error(err))
	}
	out.Compression = string(t.Compression)
	out.HasPassword = t.PasswordCipher != ""
	out.CreatedAt = timex.Time(t.CreatedAt)
	out.UpdatedAt = timex.Time(t.UpdatedAt)
	if out.ExcludedTables == nil {
		out.ExcludedTables = []string{}
	}
	if s.tracker != nil {
		out.IsRunning = s.tracker.IsRunning(t.ID)
	}
	return out
}

func (s *targetService) List(ctx context.Context) ([]*dto.TargetDTO, error) {
	targets, err := s.targetRepo.List(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	out := make([]*dto.TargetDTO, 0, len(targets))
	for _, t := range targets {
		out = append(out, s.domainToDTO(t))
	}
	return out, nil
}

func (s *targetService) Get(ctx context.Context, id int64) (*dto.TargetDTO, error) {
	t, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.domainToDTO(t), nil
}

func (s *targetService) mustGet(ctx context.Context, id int64) (*domain.Target, error) {
	t, err := s.targetRepo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if t == nil {
		return nil, code.ErrorTargetNotFound
	}
	return t, nil
}

// applyRequest 将请求字段写入目标，isCreate 时未提供的可选字段使用默认值
func (s *targetService) applyRequest(ctx context.Context, t *domain.Target, req *dto.TargetRequest, isCreate bool) {
	t.Name = strings.TrimSpace(req.Name)
	t.Host = strings.TrimSpace(req.Host)
	t.Port = req.Port
	t.Username = req.Username
	t.DatabaseName = strings.TrimSpace(req.DatabaseName)
	t.DumpToolPath = strings.TrimSpace(req.DumpToolPath)
	t.BackupPath = strings.TrimSpace(req.BackupPath)
	t.ExcludedTables = normalizeList(req.ExcludedTables)
	t.Compression = domain.Compression(req.Compression)

	switch {
	case req.Password != "":
		t.PasswordCipher = s.vault.Encrypt(req.Password)
	case req.ClearPassword:
		t.PasswordCipher = ""
	}

	if req.RetainMainDays != nil {
		t.RetainMainDays = *req.RetainMainDays
	} else if isCreate {
		t.RetainMainDays = domain.DefaultRetainMainDays
	}
	if req.RetainArchiveDays != nil {
		t.RetainArchiveDays = *req.RetainArchiveDays
	} else if isCreate {
		t.RetainArchiveDays = domain.DefaultRetainArchiveDays
	}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	} else if isCreate {
		t.IsActive = true
	}

	// 路径默认值：设置 > 配置文件
	var setting *domain.AppSetting
	if t.DumpToolPath == "" || t.BackupPath == "" {
		setting, _ = s.settingRepo.Get(ctx)
	}
	if t.DumpToolPath == "" {
		if setting != nil && setting.DefaultDumpToolPath != "" {
			t.DumpToolPath = setting.DefaultDumpToolPath
		} else {
			t.DumpToolPath = s.config.Backup.DefaultDumpTool
		}
	}
	if t.BackupPath == "" {
		root := s.config.Backup.DefaultBackupPath
		if setting != nil && setting.DefaultBackupPath != "" {
			root = setting.DefaultBackupPath
		}
		if root != "" {
			t.BackupPath = filepath.Join(root, t.Name)
		}
	}
	t.ApplyDefaults()
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, table := range in {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		if _, ok := seen[table]; ok {
			continue
		}
		seen[table] = struct{}{}
		out = append(out, table)
	}
	return out
}

func (s *targetService) Create(ctx context.Context, req *dto.TargetRequest) (*dto.TargetDTO, error) {
	t := &domain.Target{}
	s.applyRequest(ctx, t, req, true)
	if err := t.Validate(); err != nil {
		return nil, code.ErrorInvalidParams.WithDetails(err.Error())
	}

	created, err := s.targetRepo.Create(ctx, t)
	if err != nil {
		return nil, mapTargetError(err)
	}
	s.logger.Info("backup target created",
		zap.Int64(pkglogger.FieldTargetID, created.ID),
		zap.String(pkglogger.FieldTargetName, created.Name))
	return s.domainToDTO(created), nil
}

func (s *targetService) Update(ctx context.Context, id int64, req *dto.TargetRequest) (*dto.TargetDTO, error) {
	t, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	s.applyRequest(ctx, t, req, false)
	if err := t.Validate(); err != nil {
		return nil, code.ErrorInvalidParams.WithDetails(err.Error())
	}

	updated, err := s.targetRepo.Update(ctx, t)
	if err != nil {
		return nil, mapTargetError(err)
	}
	// 启用状态可能改变，重新装载该目标的计划
	if s.schedules != nil {
		if err := s.schedules.RefreshTarget(ctx, id); err != nil {
			s.logger.Warn("refresh schedules after target update failed", zap.Int64(pkglogger.FieldTargetID, id), zap.Error(err))
		}
	}
	return s.domainToDTO(updated), nil
}

func (s *targetService) Delete(ctx context.Context, id int64) error {
	if _, err := s.mustGet(ctx, id); err != nil {
		return err
	}

	schedules, err := s.scheduleRepo.ListByTarget(ctx, id)
	if err != nil {
		return code.ErrorServerInternal.WithDetails(err.Error())
	}
	for _, sc := range schedules {
		if s.schedules != nil {
			if err := s.schedules.DeleteSchedule(ctx, sc.ID); err != nil && !errors.Is(err, domain.ErrScheduleNotFound) {
				return code.ErrorServerInternal.WithDetails(err.Error())
			}
		}
	}
	if err := s.scheduleRepo.DeleteByTarget(ctx, id); err != nil {
		return code.ErrorServerInternal.WithDetails(err.Error())
	}
	if err := s.targetRepo.Delete(ctx, id); err != nil {
		return mapTargetError(err)
	}
	s.logger.Info("backup target deleted", zap.Int64(pkglogger.FieldTargetID, id), zap.Int("schedules", len(schedules)))
	return nil
}

func (s *targetService) TestConnection(ctx context.Context, id int64) (*dto.ConnectionTestDTO, error) {
	t, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Backup.ConnectTimeout)
	defer cancel()

	start := time.Now()
	err = s.tester(ctx, t, s.vault.Decrypt(t.PasswordCipher))
	result := &dto.ConnectionTestDTO{
		OK:        err == nil,
		Message:   "Connection successful",
		ElapsedMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Message = err.Error()
		s.logger.Info("connection test failed",
			zap.Int64(pkglogger.FieldTargetID, t.ID),
			zap.String(pkglogger.FieldTargetName, t.Name),
			zap.Error(err))
	}
	return result, nil
}

func (s *targetService) RunNow(ctx context.Context, id int64) (*dto.RunNowDTO, error) {
	t, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.schedules == nil {
		return nil, code.ErrorSchedulerState
	}
	accepted, err := s.schedules.ForceRunNow(ctx, t.ID)
	if err != nil {
		return nil, mapTargetError(err)
	}
	if !accepted {
		return &dto.RunNowDTO{TargetID: t.ID}, code.ErrorRunAlreadyActive
	}
	return &dto.RunNowDTO{TargetID: t.ID, Accepted: true}, nil
}

// mapTargetError 将领域错误映射为错误码
func mapTargetError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTargetNotFound):
		return code.ErrorTargetNotFound
	case errors.Is(err, domain.ErrTargetNameExists):
		return code.ErrorTargetNameExists
	case errors.Is(err, domain.ErrInvalidTarget):
		return code.ErrorInvalidParams.WithDetails(err.Error())
	}
	return code.ErrorServerInternal.WithDetails(err.Error())
}

// MySQLConnectionTester opens a short-lived gorm MySQL connection and pings it
// MySQLConnectionTester 使用 gorm MySQL 驱动建立临时连接并 ping
func MySQLConnectionTester(ctx context.Context, t *domain.Target, password string) error {
	cfg := mysqldriver.NewConfig()
	cfg.User = t.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	cfg.DBName = t.DatabaseName
	cfg.Timeout = 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		cfg.Timeout = time.Until(deadline)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{DSNConfig: cfg}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return errors.Wrap(err, "open connection")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql.DB")
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping")
	}
	return nil
}

var _ TargetService = (*targetService)(nil)

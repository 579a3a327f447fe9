package service

import (
	"context"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/timex"
	"github.com/haierkeys/db-backup-service/pkg/util"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RunService 备份记录业务服务接口
type RunService interface {
	// List 分页获取记录，返回记录与总数
	List(ctx context.Context, req *dto.RunListRequest, page, pageSize int) ([]*dto.RunDTO, int64, error)

	// Get 获取单条记录（含日志输出）
	Get(ctx context.Context, id int64) (*dto.RunDTO, error)

	// Delete 删除单条记录，备份文件不受影响
	Delete(ctx context.Context, id int64) error

	// Purge 删除早于 days 天的记录，days 为空时使用设置中的保留天数
	Purge(ctx context.Context, days *int) (*dto.RunPurgeDTO, error)

	// Stats 聚合统计
	Stats(ctx context.Context, targetID int64) (*dto.RunStatsDTO, error)
}

type runService struct {
	runRepo     domain.RunRepository
	settingRepo domain.SettingRepository
	now         func() time.Time
	logger      *zap.Logger
}

// NewRunService 创建 RunService 实例
func NewRunService(runRepo domain.RunRepository, settingRepo domain.SettingRepository, logger *zap.Logger) RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runService{
		runRepo:     runRepo,
		settingRepo: settingRepo,
		now:         time.Now,
		logger:      logger,
	}
}

func runToDTO(r *domain.Run, withLog bool) *dto.RunDTO {
	out := &dto.RunDTO{
		ID:              r.ID,
		TargetID:        r.TargetID,
		TargetName:      r.TargetName,
		StartTime:       timex.Time(r.StartTime),
		EndTime:         timex.FromPtr(r.EndTime),
		Status:          string(r.Status),
		Message:         r.Message,
		FilePath:        r.FilePath,
		FileSize:        r.FileSize,
		DurationSeconds: r.DurationSeconds,
		IsManual:        r.IsManual,
	}
	if r.FileSize > 0 {
		out.FileSizeHuman = util.FormatBytes(r.FileSize)
	}
	if withLog {
		out.LogOutput = r.LogOutput
	}
	return out
}

func (s *runService) List(ctx context.Context, req *dto.RunListRequest, page, pageSize int) ([]*dto.RunDTO, int64, error) {
	filter := domain.RunFilter{
		TargetID: req.TargetID,
		Status:   domain.RunStatus(req.Status),
		Page:     page,
		PageSize: pageSize,
	}
	runs, err := s.runRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, code.ErrorServerInternal.WithDetails(err.Error())
	}
	total, err := s.runRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, code.ErrorServerInternal.WithDetails(err.Error())
	}
	out := make([]*dto.RunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, runToDTO(r, false))
	}
	return out, total, nil
}

func (s *runService) Get(ctx context.Context, id int64) (*dto.RunDTO, error) {
	r, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if r == nil {
		return nil, code.ErrorRunNotFound
	}
	return runToDTO(r, true), nil
}

func (s *runService) Delete(ctx context.Context, id int64) error {
	if err := s.runRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return code.ErrorRunNotFound
		}
		return code.ErrorServerInternal.WithDetails(err.Error())
	}
	return nil
}

func (s *runService) Purge(ctx context.Context, days *int) (*dto.RunPurgeDTO, error) {
	d, err := s.retentionDays(ctx, days)
	if err != nil {
		return nil, err
	}
	n, err := s.runRepo.PurgeOlderThan(ctx, d, s.now())
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if n > 0 {
		s.logger.Info("backup history purged", zap.Int("days", d), zap.Int64("deleted", n))
	}
	return &dto.RunPurgeDTO{Days: d, Deleted: n}, nil
}

func (s *runService) retentionDays(ctx context.Context, days *int) (int, error) {
	if days != nil {
		return *days, nil
	}
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return 0, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if setting == nil {
		return domain.DefaultAppSetting().LogRetentionDays, nil
	}
	return setting.LogRetentionDays, nil
}

func (s *runService) Stats(ctx context.Context, targetID int64) (*dto.RunStatsDTO, error) {
	st, err := s.runRepo.Stats(ctx, targetID)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	out := &dto.RunStatsDTO{
		Total:          st.Total,
		Successful:     st.Successful,
		Failed:         st.Failed,
		Running:        st.Running,
		LastSuccessAt:  timex.FromPtr(st.LastSuccessAt),
		TotalBytes:     st.TotalBytes,
		TotalSizeHuman: util.FormatBytes(st.TotalBytes),
	}
	if st.Total > 0 {
		out.SuccessRate = float64(st.Successful) / float64(st.Total) * 100
	}
	return out, nil
}

var _ RunService = (*runService)(nil)

package service

import (
	"context"
	"sort"

	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/internal/task"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/timex"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SchedulerAction 调度器控制命令
type SchedulerAction string

const (
	SchedulerStart  SchedulerAction = "start"
	SchedulerStop   SchedulerAction = "stop"
	SchedulerPause  SchedulerAction = "pause"
	SchedulerResume SchedulerAction = "resume"
)

// EngineControl 调度引擎生命周期控制
type EngineControl interface {
	Start(ctx context.Context) error
	Stop()
	Pause() error
	Resume(ctx context.Context) error
	Status() task.EngineStatus
}

// ActiveRuns 正在执行的目标
type ActiveRuns interface {
	Running() []int64
}

// ScheduleService 计划业务服务接口
type ScheduleService interface {
	// List 获取计划，targetID 为 0 时返回全部
	List(ctx context.Context, targetID int64) ([]*dto.ScheduleDTO, error)

	// Create 创建计划并交给调度引擎
	Create(ctx context.Context, req *dto.ScheduleRequest) (*dto.ScheduleDTO, error)

	// Update 更新计划
	Update(ctx context.Context, id int64, req *dto.ScheduleRequest) (*dto.ScheduleDTO, error)

	// Delete 删除计划
	Delete(ctx context.Context, id int64) error

	// Status 调度器状态
	Status(ctx context.Context) *dto.SchedulerStatusDTO

	// Control 启动、停止、暂停或恢复调度器
	Control(ctx context.Context, action SchedulerAction) (*dto.SchedulerStatusDTO, error)
}

type scheduleService struct {
	scheduleRepo domain.ScheduleRepository
	targetRepo   domain.TargetRepository
	schedules    ScheduleController
	engine       EngineControl
	runs         ActiveRuns
	logger       *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(
	scheduleRepo domain.ScheduleRepository,
	targetRepo domain.TargetRepository,
	schedules ScheduleController,
	engine EngineControl,
	runs ActiveRuns,
	logger *zap.Logger,
) ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &scheduleService{
		scheduleRepo: scheduleRepo,
		targetRepo:   targetRepo,
		schedules:    schedules,
		engine:       engine,
		runs:         runs,
		logger:       logger,
	}
}

func scheduleToDTO(s *domain.Schedule, targetName string) *dto.ScheduleDTO {
	days := s.DaysOfWeek
	if days == nil {
		days = []int{}
	}
	return &dto.ScheduleDTO{
		ID:         s.ID,
		TargetID:   s.TargetID,
		TargetName: targetName,
		JobID:      s.JobID(),
		Type:       string(s.Type),
		Time:       s.TimeOfDay,
		DaysOfWeek: days,
		DayOfMonth: s.DayOfMonth,
		IsActive:   s.IsActive,
		LastRunAt:  timex.FromPtr(s.LastRunAt),
		NextRunAt:  timex.FromPtr(s.NextRunAt),
		CreatedAt:  timex.Time(s.CreatedAt),
		UpdatedAt:  timex.Time(s.UpdatedAt),
	}
}

func (s *scheduleService) List(ctx context.Context, targetID int64) ([]*dto.ScheduleDTO, error) {
	var (
		list []*domain.Schedule
		err  error
	)
	if targetID > 0 {
		list, err = s.scheduleRepo.ListByTarget(ctx, targetID)
	} else {
		list, err = s.scheduleRepo.List(ctx)
	}
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}

	targets, err := s.targetRepo.List(ctx)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	names := make(map[int64]string, len(targets))
	for _, t := range targets {
		names[t.ID] = t.Name
	}

	out := make([]*dto.ScheduleDTO, 0, len(list))
	for _, sc := range list {
		out = append(out, scheduleToDTO(sc, names[sc.TargetID]))
	}
	return out, nil
}

func (s *scheduleService) fromRequest(ctx context.Context, sc *domain.Schedule, req *dto.ScheduleRequest) (string, error) {
	t, err := s.targetRepo.GetByID(ctx, req.TargetID)
	if err != nil {
		return "", code.ErrorServerInternal.WithDetails(err.Error())
	}
	if t == nil {
		return "", code.ErrorTargetNotFound
	}

	sc.TargetID = req.TargetID
	sc.Type = domain.ScheduleType(req.Type)
	sc.TimeOfDay = req.Time
	sc.DaysOfWeek = nil
	sc.DayOfMonth = 0
	switch sc.Type {
	case domain.ScheduleWeekly:
		days := append([]int(nil), req.DaysOfWeek...)
		sort.Ints(days)
		sc.DaysOfWeek = days
	case domain.ScheduleMonthly:
		sc.DayOfMonth = req.DayOfMonth
	}
	if req.IsActive != nil {
		sc.IsActive = *req.IsActive
	} else if sc.ID == 0 {
		sc.IsActive = true
	}
	if err := sc.Validate(); err != nil {
		return "", code.ErrorScheduleInvalid.WithDetails(err.Error())
	}
	return t.Name, nil
}

func (s *scheduleService) Create(ctx context.Context, req *dto.ScheduleRequest) (*dto.ScheduleDTO, error) {
	sc := &domain.Schedule{}
	name, err := s.fromRequest(ctx, sc, req)
	if err != nil {
		return nil, err
	}
	created, err := s.schedules.AddSchedule(ctx, sc)
	if err != nil {
		return nil, mapScheduleError(err)
	}
	return s.reread(ctx, created, name), nil
}

func (s *scheduleService) Update(ctx context.Context, id int64, req *dto.ScheduleRequest) (*dto.ScheduleDTO, error) {
	sc, err := s.scheduleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, code.ErrorServerInternal.WithDetails(err.Error())
	}
	if sc == nil {
		return nil, code.ErrorScheduleNotFound
	}
	name, err := s.fromRequest(ctx, sc, req)
	if err != nil {
		return nil, err
	}
	updated, err := s.schedules.UpdateSchedule(ctx, sc)
	if err != nil {
		return nil, mapScheduleError(err)
	}
	return s.reread(ctx, updated, name), nil
}

// reread 重新读取以带上引擎写入的 nextRunAt
func (s *scheduleService) reread(ctx context.Context, sc *domain.Schedule, name string) *dto.ScheduleDTO {
	if fresh, err := s.scheduleRepo.GetByID(ctx, sc.ID); err == nil && fresh != nil {
		sc = fresh
	}
	return scheduleToDTO(sc, name)
}

func (s *scheduleService) Delete(ctx context.Context, id int64) error {
	if err := s.schedules.DeleteSchedule(ctx, id); err != nil {
		return mapScheduleError(err)
	}
	return nil
}

func (s *scheduleService) Status(_ context.Context) *dto.SchedulerStatusDTO {
	out := &dto.SchedulerStatusDTO{ActiveTargets: []int64{}}
	if s.engine != nil {
		st := s.engine.Status()
		out.Running = st.Running
		out.Paused = st.Paused
		out.Jobs = st.Jobs
		if st.HasNext {
			out.NextFireAt = timex.Time(st.NextFireAt)
		}
	}
	if s.runs != nil {
		if ids := s.runs.Running(); len(ids) > 0 {
			out.ActiveTargets = ids
		}
	}
	return out
}

func (s *scheduleService) Control(ctx context.Context, action SchedulerAction) (*dto.SchedulerStatusDTO, error) {
	if s.engine == nil {
		return nil, code.ErrorSchedulerState.WithDetails("scheduler is not configured")
	}
	var err error
	switch action {
	case SchedulerStart:
		err = s.engine.Start(ctx)
	case SchedulerStop:
		s.engine.Stop()
	case SchedulerPause:
		err = s.engine.Pause()
	case SchedulerResume:
		err = s.engine.Resume(ctx)
	default:
		return nil, code.ErrorInvalidParams.WithDetails("unknown scheduler action " + string(action))
	}
	if err != nil {
		return nil, code.ErrorSchedulerState.WithDetails(err.Error())
	}
	s.logger.Info("scheduler command", zap.String("action", string(action)))
	return s.Status(ctx), nil
}

func mapScheduleError(err error) error {
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		return code.ErrorScheduleNotFound
	case errors.Is(err, domain.ErrInvalidSchedule):
		return code.ErrorScheduleInvalid.WithDetails(err.Error())
	}
	return code.ErrorServerInternal.WithDetails(err.Error())
}

var _ ScheduleService = (*scheduleService)(nil)

package api_router

import (
	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/internal/service"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"
	"github.com/haierkeys/db-backup-service/pkg/convert"
	apperrors "github.com/haierkeys/db-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler schedule and scheduler API router handler
// ScheduleHandler 备份计划与调度器 API 路由处理器
type ScheduleHandler struct {
	*Handler
}

// NewScheduleHandler creates ScheduleHandler instance
func NewScheduleHandler(a *app.App) *ScheduleHandler {
	return &ScheduleHandler{
		Handler: NewHandler(a),
	}
}

// List gets schedules, optionally filtered by targetId
// @Summary List schedules
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param targetId query int false "Target ID"
// @Success 200 {object} pkgapp.Res{data=[]dto.ScheduleDTO} "Success"
// @Router /api/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	targetID := convert.StrTo(c.Query("targetId")).MustInt64()
	list, err := h.App.ScheduleService.List(c.Request.Context(), targetID)
	if err != nil {
		h.logError(c.Request.Context(), "ScheduleHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(list))
}

// Create creates a schedule and arms it when the scheduler is running
// @Summary Create schedule
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param params body dto.ScheduleRequest true "Schedule"
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "Success"
// @Failure 400 {object} pkgapp.Res "Invalid Params"
// @Router /api/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ScheduleRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	s, err := h.App.ScheduleService.Create(c.Request.Context(), params)
	if err != nil {
		h.logError(c.Request.Context(), "ScheduleHandler.Create", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessCreate.WithData(s))
}

// Update updates a schedule
// @Summary Update schedule
// @Tags Schedule
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Schedule ID"
// @Param params body dto.ScheduleRequest true "Schedule"
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "Success"
// @Router /api/schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ScheduleRequest{}

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	s, err := h.App.ScheduleService.Update(c.Request.Context(), id, params)
	if err != nil {
		h.logError(c.Request.Context(), "ScheduleHandler.Update", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(s))
}

// Delete deletes a schedule
// @Summary Delete schedule
// @Tags Schedule
// @Security BearerAuth
// @Produce json
// @Param id path int true "Schedule ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	if err := h.App.ScheduleService.Delete(c.Request.Context(), id); err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessDelete)
}

// Status gets the scheduler state
// @Summary Scheduler status
// @Tags Scheduler
// @Security BearerAuth
// @Produce json
// @Success 200 {object} pkgapp.Res{data=dto.SchedulerStatusDTO} "Success"
// @Router /api/scheduler [get]
func (h *ScheduleHandler) Status(c *gin.Context) {
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(h.App.ScheduleService.Status(c.Request.Context())))
}

// Control starts, stops, pauses or resumes the scheduler
// @Summary Control scheduler
// @Tags Scheduler
// @Security BearerAuth
// @Produce json
// @Param action path string true "start, stop, pause or resume"
// @Success 200 {object} pkgapp.Res{data=dto.SchedulerStatusDTO} "Success"
// @Failure 409 {object} pkgapp.Res "Rejected"
// @Router /api/scheduler/{action} [post]
func (h *ScheduleHandler) Control(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	st, err := h.App.ScheduleService.Control(c.Request.Context(), service.SchedulerAction(c.Param("action")))
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(st))
}

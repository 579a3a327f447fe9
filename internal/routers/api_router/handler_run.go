package api_router

import (
	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dto"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"
	apperrors "github.com/haierkeys/db-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// RunHandler backup history API router handler
// RunHandler 备份记录 API 路由处理器
type RunHandler struct {
	*Handler
}

// NewRunHandler creates RunHandler instance
func NewRunHandler(a *app.App) *RunHandler {
	return &RunHandler{
		Handler: NewHandler(a),
	}
}

// List gets backup history, newest first
// @Summary List backup runs
// @Tags Run
// @Security BearerAuth
// @Produce json
// @Param params query dto.RunListRequest true "Filter"
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes{list=[]dto.RunDTO}} "Success"
// @Router /api/runs [get]
func (h *RunHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.RunListRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	cfg := pkgapp.PaginationConfig{
		DefaultPageSize: h.App.Config().App.DefaultPageSize,
		MaxPageSize:     h.App.Config().App.MaxPageSize,
	}
	page := pkgapp.GetPage(c)
	pageSize := pkgapp.GetPageSizeWithConfig(c, cfg)

	list, total, err := h.App.RunService.List(c.Request.Context(), params, page, pageSize)
	if err != nil {
		h.logError(c.Request.Context(), "RunHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponseList(code.Success, list, int(total))
}

// Get gets one run including its log output
// @Summary Get backup run
// @Tags Run
// @Security BearerAuth
// @Produce json
// @Param id path int true "Run ID"
// @Success 200 {object} pkgapp.Res{data=dto.RunDTO} "Success"
// @Router /api/runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	run, err := h.App.RunService.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(run))
}

// Delete deletes one run record; the backup file stays on disk
// @Summary Delete backup run
// @Tags Run
// @Security BearerAuth
// @Produce json
// @Param id path int true "Run ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/runs/{id} [delete]
func (h *RunHandler) Delete(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	if err := h.App.RunService.Delete(c.Request.Context(), id); err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessDelete)
}

// Purge deletes runs older than the given number of days
// @Summary Purge backup history
// @Tags Run
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param params body dto.RunPurgeRequest false "Days"
// @Success 200 {object} pkgapp.Res{data=dto.RunPurgeDTO} "Success"
// @Router /api/runs/purge [post]
func (h *RunHandler) Purge(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.RunPurgeRequest{}

	if c.Request.ContentLength != 0 {
		if valid, errs := pkgapp.BindAndValid(c, params); !valid {
			response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
			return
		}
	}

	result, err := h.App.RunService.Purge(c.Request.Context(), params.Days)
	if err != nil {
		h.logError(c.Request.Context(), "RunHandler.Purge", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessDelete.WithData(result))
}

// Stats gets aggregate counters
// @Summary Backup statistics
// @Tags Run
// @Security BearerAuth
// @Produce json
// @Param params query dto.RunStatsRequest false "Filter"
// @Success 200 {object} pkgapp.Res{data=dto.RunStatsDTO} "Success"
// @Router /api/runs/stats [get]
func (h *RunHandler) Stats(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.RunStatsRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	stats, err := h.App.RunService.Stats(c.Request.Context(), params.TargetID)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(stats))
}

package api_router

import (
	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dto"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"
	apperrors "github.com/haierkeys/db-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// TargetHandler backup target API router handler
// TargetHandler 备份目标 API 路由处理器
type TargetHandler struct {
	*Handler
}

// NewTargetHandler creates TargetHandler instance
func NewTargetHandler(a *app.App) *TargetHandler {
	return &TargetHandler{
		Handler: NewHandler(a),
	}
}

// List gets all backup targets
// @Summary List backup targets
// @Tags Target
// @Security BearerAuth
// @Produce json
// @Success 200 {object} pkgapp.Res{data=[]dto.TargetDTO} "Success"
// @Router /api/targets [get]
func (h *TargetHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	list, err := h.App.TargetService.List(c.Request.Context())
	if err != nil {
		h.logError(c.Request.Context(), "TargetHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(list))
}

// Get gets one backup target
// @Summary Get backup target
// @Tags Target
// @Security BearerAuth
// @Produce json
// @Param id path int true "Target ID"
// @Success 200 {object} pkgapp.Res{data=dto.TargetDTO} "Success"
// @Failure 404 {object} pkgapp.Res "Not Found"
// @Router /api/targets/{id} [get]
func (h *TargetHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	t, err := h.App.TargetService.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(t))
}

// Create creates a backup target
// @Summary Create backup target
// @Tags Target
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param params body dto.TargetRequest true "Target"
// @Success 200 {object} pkgapp.Res{data=dto.TargetDTO} "Success"
// @Failure 400 {object} pkgapp.Res "Invalid Params"
// @Failure 409 {object} pkgapp.Res "Name Exists"
// @Router /api/targets [post]
func (h *TargetHandler) Create(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.TargetRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	t, err := h.App.TargetService.Create(c.Request.Context(), params)
	if err != nil {
		h.logError(c.Request.Context(), "TargetHandler.Create", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessCreate.WithData(t))
}

// Update updates a backup target; an empty password keeps the stored one
// @Summary Update backup target
// @Tags Target
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Target ID"
// @Param params body dto.TargetRequest true "Target"
// @Success 200 {object} pkgapp.Res{data=dto.TargetDTO} "Success"
// @Router /api/targets/{id} [put]
func (h *TargetHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.TargetRequest{}

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}
	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	t, err := h.App.TargetService.Update(c.Request.Context(), id, params)
	if err != nil {
		h.logError(c.Request.Context(), "TargetHandler.Update", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(t))
}

// Delete deletes a backup target and its schedules
// @Summary Delete backup target
// @Tags Target
// @Security BearerAuth
// @Produce json
// @Param id path int true "Target ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/targets/{id} [delete]
func (h *TargetHandler) Delete(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	if err := h.App.TargetService.Delete(c.Request.Context(), id); err != nil {
		h.logError(c.Request.Context(), "TargetHandler.Delete", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessDelete)
}

// TestConnection tests the database connection of a target
// @Summary Test target connection
// @Tags Target
// @Security BearerAuth
// @Produce json
// @Param id path int true "Target ID"
// @Success 200 {object} pkgapp.Res{data=dto.ConnectionTestDTO} "Success"
// @Router /api/targets/{id}/test [post]
func (h *TargetHandler) TestConnection(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	result, err := h.App.TargetService.TestConnection(c.Request.Context(), id)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}
	if !result.OK {
		response.ToResponse(code.ErrorConnectionFailed.WithData(result).WithDetails(result.Message))
		return
	}

	response.ToResponse(code.Success.WithData(result))
}

// RunNow starts a manual backup in the background
// @Summary Run backup now
// @Tags Target
// @Security BearerAuth
// @Produce json
// @Param id path int true "Target ID"
// @Success 200 {object} pkgapp.Res{data=dto.RunNowDTO} "Success"
// @Failure 409 {object} pkgapp.Res "Already Running"
// @Router /api/targets/{id}/run [post]
func (h *TargetHandler) RunNow(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	id := pkgapp.ParamID(c)
	if id == 0 {
		response.ToResponse(code.ErrorInvalidParams.WithDetails("id"))
		return
	}

	result, err := h.App.TargetService.RunNow(c.Request.Context(), id)
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessRunQueued.WithData(result))
}

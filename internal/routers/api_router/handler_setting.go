package api_router

import (
	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dto"
	"github.com/haierkeys/db-backup-service/internal/service"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"
	apperrors "github.com/haierkeys/db-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// SettingHandler settings, export and import API router handler
// SettingHandler 设置与导入导出 API 路由处理器
type SettingHandler struct {
	*Handler
}

// NewSettingHandler creates SettingHandler instance
func NewSettingHandler(a *app.App) *SettingHandler {
	return &SettingHandler{
		Handler: NewHandler(a),
	}
}

// Get gets application settings without the email password
// @Summary Get settings
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Success 200 {object} pkgapp.Res{data=dto.SettingDTO} "Success"
// @Router /api/settings [get]
func (h *SettingHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	s, err := h.App.SettingService.Get(c.Request.Context())
	if err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(s))
}

// Update updates the fields present in the request
// @Summary Update settings
// @Tags Setting
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param params body dto.SettingUpdateRequest true "Settings"
// @Success 200 {object} pkgapp.Res{data=dto.SettingDTO} "Success"
// @Router /api/settings [put]
func (h *SettingHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.SettingUpdateRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	s, err := h.App.SettingService.Update(c.Request.Context(), params)
	if err != nil {
		h.logError(c.Request.Context(), "SettingHandler.Update", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(s))
}

// TestEmail sends a test notification with the stored SMTP settings
// @Summary Send test email
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/settings/test-email [post]
func (h *SettingHandler) TestEmail(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	if err := h.App.NotificationService.SendTest(c.Request.Context()); err != nil {
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success)
}

// Export downloads targets, schedules and settings as JSON; passwords are blank
// @Summary Export configuration
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ExportDocument "Export document"
// @Router /api/export [get]
func (h *SettingHandler) Export(c *gin.Context) {
	doc, err := h.App.ExportService.Export(c.Request.Context())
	if err != nil {
		h.logError(c.Request.Context(), "SettingHandler.Export", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="db-backup-export.json"`)
	c.Header("Content-Type", "application/json; charset=utf-8")
	if err := service.EncodeExportDocument(c.Writer, doc); err != nil {
		h.logError(c.Request.Context(), "SettingHandler.Export", err)
	}
}

// Import reads an export document from the request body
// @Summary Import configuration
// @Tags Setting
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param params body dto.ExportDocument true "Export document"
// @Success 200 {object} pkgapp.Res{data=dto.ImportResultDTO} "Success"
// @Router /api/import [post]
func (h *SettingHandler) Import(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	doc, err := service.DecodeExportDocument(c.Request.Body)
	if err != nil {
		response.ToResponse(code.ErrorImportInvalid.WithDetails(err.Error()))
		return
	}

	result, err := h.App.ExportService.Import(c.Request.Context(), doc)
	if err != nil {
		h.logError(c.Request.Context(), "SettingHandler.Import", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(result))
}

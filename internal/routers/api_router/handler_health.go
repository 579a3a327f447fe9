package api_router

import (
	"os"
	"time"

	"github.com/haierkeys/db-backup-service/internal/app"
	"github.com/haierkeys/db-backup-service/internal/dto"
	pkgapp "github.com/haierkeys/db-backup-service/pkg/app"
	"github.com/haierkeys/db-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"
)

// HealthHandler health and version API router handler
// HealthHandler 健康检查与版本 API 路由处理器
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates HealthHandler instance
func NewHealthHandler(a *app.App) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(a),
	}
}

// HealthDTO 健康检查结果
type HealthDTO struct {
	Status    string                  `json:"status"`
	Database  string                  `json:"database"`
	Version   pkgapp.VersionInfo      `json:"version"`
	Uptime    string                  `json:"uptime"`
	Scheduler *dto.SchedulerStatusDTO `json:"scheduler"`
	Disk      *DiskDTO                `json:"disk,omitempty"`
}

// DiskDTO 备份根目录所在磁盘的用量
type DiskDTO struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// Health reports database reachability, scheduler state and disk usage
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} pkgapp.Res{data=HealthDTO} "Success"
// @Failure 500 {object} pkgapp.Res{data=HealthDTO} "Database unreachable"
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	ctx := c.Request.Context()

	out := &HealthDTO{
		Status:    "ok",
		Database:  "ok",
		Version:   h.App.Version(),
		Uptime:    time.Since(h.App.StartTime).Truncate(time.Second).String(),
		Scheduler: h.App.ScheduleService.Status(ctx),
	}

	healthy := true
	if sqlDB, err := h.App.DB.DB(); err != nil {
		out.Database = err.Error()
		healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		out.Database = err.Error()
		healthy = false
	}

	root := h.App.Config().Backup.DefaultPath
	if _, err := os.Stat(root); err == nil {
		if usage, err := disk.UsageWithContext(ctx, root); err == nil {
			out.Disk = &DiskDTO{
				Path:        root,
				Total:       usage.Total,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			}
		} else {
			h.App.Logger().Warn("health disk usage", zap.String("path", root), zap.Error(err))
		}
	}

	if !healthy {
		out.Status = "degraded"
		response.ToResponse(code.ErrorServerInternal.WithData(out))
		return
	}
	response.ToResponse(code.Success.WithData(out))
}

// ServerVersion gets server version information
// @Summary Get server version
// @Tags System
// @Produce json
// @Success 200 {object} pkgapp.Res{data=pkgapp.VersionInfo} "Success"
// @Router /api/version [get]
func (h *HealthHandler) ServerVersion(c *gin.Context) {
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(h.App.Version()))
}

package dto

import "github.com/haierkeys/db-backup-service/pkg/timex"

// RunListRequest 备份记录列表请求
type RunListRequest struct {
	TargetID int64  `json:"targetId" form:"targetId" binding:"omitempty,min=1" example:"1"`
	Status   string `json:"status" form:"status" binding:"omitempty,oneof=running success failed cancelled" example:"failed"`
	Page     int    `json:"page" form:"page" example:"1"`
	PageSize int    `json:"pageSize" form:"pageSize" example:"10"`
}

// RunPurgeRequest 清理历史记录请求，Days 为空时使用设置中的日志保留天数
type RunPurgeRequest struct {
	Days *int `json:"days" form:"days" binding:"omitempty,min=0" example:"30"`
}

// RunStatsRequest 统计请求
type RunStatsRequest struct {
	TargetID int64 `json:"targetId" form:"targetId" binding:"omitempty,min=1" example:"1"`
}

// RunDTO 备份记录 DTO
type RunDTO struct {
	ID              int64      `json:"id"`
	TargetID        int64      `json:"targetId"`
	TargetName      string     `json:"targetName"`
	StartTime       timex.Time `json:"startTime"`
	EndTime         timex.Time `json:"endTime"`
	Status          string     `json:"status"`
	Message         string     `json:"message"`
	FilePath        string     `json:"filePath"`
	FileSize        int64      `json:"fileSize"`
	FileSizeHuman   string     `json:"fileSizeHuman"`
	DurationSeconds float64    `json:"durationSeconds"`
	LogOutput       string     `json:"logOutput,omitempty"`
	IsManual        bool       `json:"isManual"`
}

// RunStatsDTO 聚合统计 DTO
type RunStatsDTO struct {
	Total          int64      `json:"total"`
	Successful     int64      `json:"successful"`
	Failed         int64      `json:"failed"`
	Running        int64      `json:"running"`
	SuccessRate    float64    `json:"successRate"`
	LastSuccessAt  timex.Time `json:"lastSuccessAt"`
	TotalBytes     int64      `json:"totalBytes"`
	TotalSizeHuman string     `json:"totalSizeHuman"`
}

// RunPurgeDTO 清理结果
type RunPurgeDTO struct {
	Days    int   `json:"days"`
	Deleted int64 `json:"deleted"`
}

package dto

import "github.com/haierkeys/db-backup-service/pkg/timex"

// ScheduleRequest 创建或更新计划参数
type ScheduleRequest struct {
	TargetID   int64  `json:"targetId" form:"targetId" binding:"required,min=1" example:"1"`
	Type       string `json:"type" form:"type" binding:"required,oneof=daily weekly monthly" example:"weekly"`
	Time       string `json:"time" form:"time" binding:"required,hhmm" example:"02:00"`
	DaysOfWeek []int  `json:"daysOfWeek" form:"daysOfWeek" binding:"required_if=Type weekly,dive,min=0,max=6" example:"1,3"`
	DayOfMonth int    `json:"dayOfMonth" form:"dayOfMonth" binding:"required_if=Type monthly,min=0,max=31" example:"1"`
	IsActive   *bool  `json:"isActive" form:"isActive" example:"true"`
}

// ScheduleDTO 计划 DTO
type ScheduleDTO struct {
	ID         int64      `json:"id"`
	TargetID   int64      `json:"targetId"`
	TargetName string     `json:"targetName"`
	JobID      string     `json:"jobId"`
	Type       string     `json:"type"`
	Time       string     `json:"time"`
	DaysOfWeek []int      `json:"daysOfWeek"`
	DayOfMonth int        `json:"dayOfMonth"`
	IsActive   bool       `json:"isActive"`
	LastRunAt  timex.Time `json:"lastRunAt"`
	NextRunAt  timex.Time `json:"nextRunAt"`
	CreatedAt  timex.Time `json:"createdAt"`
	UpdatedAt  timex.Time `json:"updatedAt"`
}

// SchedulerStatusDTO 调度器状态
type SchedulerStatusDTO struct {
	Running    bool       `json:"running"`
	Paused     bool       `json:"paused"`
	Jobs       int        `json:"jobs"`
	NextFireAt timex.Time `json:"nextFireAt"`
	// ActiveTargets 正在备份的目标 ID
	ActiveTargets []int64 `json:"activeTargets"`
}

package model

import "time"

const TableNameBackupSchedule = "backup_schedule"

// BackupSchedule mapped from table <backup_schedule>
type BackupSchedule struct {
	ID         int64      `gorm:"column:id;primaryKey" json:"id" form:"id"`
	TargetID   int64      `gorm:"column:target_id;not null;index:idx_schedule_target" json:"targetId" form:"targetId"`
	Type       string     `gorm:"column:type;size:16;not null" json:"type" form:"type"`
	TimeOfDay  string     `gorm:"column:time_of_day;size:5;not null" json:"timeOfDay" form:"timeOfDay"`
	DaysOfWeek string     `gorm:"column:days_of_week;size:32" json:"daysOfWeek" form:"daysOfWeek"`
	DayOfMonth int64      `gorm:"column:day_of_month" json:"dayOfMonth" form:"dayOfMonth"`
	IsActive   int64      `gorm:"column:is_active;not null;index:idx_schedule_active" json:"isActive" form:"isActive"`
	LastRunAt  *time.Time `gorm:"column:last_run_at" json:"lastRunAt" form:"lastRunAt"`
	NextRunAt  *time.Time `gorm:"column:next_run_at" json:"nextRunAt" form:"nextRunAt"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt" form:"createdAt"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" form:"updatedAt"`
}

// TableName BackupSchedule's table name
func (*BackupSchedule) TableName() string {
	return TableNameBackupSchedule
}

package model

import "time"

const TableNameBackupRun = "backup_run"

// BackupRun mapped from table <backup_run>
// No foreign key to backup_target: history outlives its target.
type BackupRun struct {
	ID              int64      `gorm:"column:id;primaryKey" json:"id" form:"id"`
	TargetID        int64      `gorm:"column:target_id;not null;index:idx_run_target_start,priority:1" json:"targetId" form:"targetId"`
	TargetName      string     `gorm:"column:target_name;size:191;not null" json:"targetName" form:"targetName"`
	StartTime       time.Time  `gorm:"column:start_time;not null;index:idx_run_target_start,priority:2;index:idx_run_start" json:"startTime" form:"startTime"`
	EndTime         *time.Time `gorm:"column:end_time" json:"endTime" form:"endTime"`
	Status          string     `gorm:"column:status;size:16;not null;index:idx_run_status" json:"status" form:"status"`
	Message         string     `gorm:"column:message;type:text" json:"message" form:"message"`
	FilePath        string     `gorm:"column:file_path;size:1024" json:"filePath" form:"filePath"`
	FileSize        int64      `gorm:"column:file_size;not null;default:0" json:"fileSize" form:"fileSize"`
	DurationSeconds float64    `gorm:"column:duration_seconds;not null;default:0" json:"durationSeconds" form:"durationSeconds"`
	LogOutput       string     `gorm:"column:log_output;type:text" json:"logOutput" form:"logOutput"`
	IsManual        int64      `gorm:"column:is_manual;not null;default:0" json:"isManual" form:"isManual"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt" form:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" form:"updatedAt"`
}

// TableName BackupRun's table name
func (*BackupRun) TableName() string {
	return TableNameBackupRun
}

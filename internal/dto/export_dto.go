package dto

// ExportVersion 当前导出格式版本
const ExportVersion = "1.0"

// ExportDocument 配置导出文件
type ExportDocument struct {
	ExportVersion   string            `json:"export_version"`
	ExportTimestamp string            `json:"export_timestamp"`
	Targets         []ExportTarget    `json:"targets"`
	Schedules       []ExportSchedule  `json:"schedules"`
	Settings        *ExportedSettings `json:"settings,omitempty"`
}

// ExportTarget 导出的备份目标，密码为空
type ExportTarget struct {
	Name              string   `json:"name"`
	Host              string   `json:"host"`
	Port              int      `json:"port"`
	Username          string   `json:"username"`
	Password          string   `json:"password"`
	DatabaseName      string   `json:"database_name"`
	DumpToolPath      string   `json:"mysqldump_path"`
	BackupPath        string   `json:"backup_path"`
	ExcludedTables    []string `json:"excluded_tables"`
	Compression       string   `json:"compression"`
	RetainMainDays    int      `json:"retain_main_days"`
	RetainArchiveDays int      `json:"retain_archive_days"`
	IsActive          bool     `json:"is_active"`
}

// ExportSchedule 导出的计划，按目标名称关联
type ExportSchedule struct {
	TargetName string `json:"target_name"`
	Type       string `json:"schedule_type"`
	Time       string `json:"time"`
	DaysOfWeek []int  `json:"days_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	IsActive   bool   `json:"is_active"`
}

// ExportedSettings 导出的设置，邮件密码不导出
type ExportedSettings struct {
	AutoStartScheduler  bool     `json:"auto_start_scheduler"`
	NotificationLevel   string   `json:"notification_level"`
	LogRetentionDays    int      `json:"log_retention_days"`
	DefaultBackupPath   string   `json:"default_backup_path"`
	DefaultDumpToolPath string   `json:"default_mysqldump_path"`
	EmailEnabled        bool     `json:"email_enabled"`
	SMTPServer          string   `json:"smtp_server"`
	SMTPPort            int      `json:"smtp_port"`
	EmailUsername       string   `json:"email_username"`
	SenderName          string   `json:"sender_name"`
	Recipients          []string `json:"recipients"`
}

// ImportResultDTO 导入结果
type ImportResultDTO struct {
	TargetsCreated   int      `json:"targetsCreated"`
	TargetsUpdated   int      `json:"targetsUpdated"`
	SchedulesCreated int      `json:"schedulesCreated"`
	SchedulesSkipped int      `json:"schedulesSkipped"`
	SettingsApplied  bool     `json:"settingsApplied"`
	Warnings         []string `json:"warnings,omitempty"`
}

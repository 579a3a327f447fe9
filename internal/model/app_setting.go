package model

import "time"

const TableNameAppSetting = "app_setting"

// AppSetting mapped from table <app_setting>
type AppSetting struct {
	ID                  int64     `gorm:"column:id;primaryKey;autoIncrement:false" json:"id" form:"id"`
	WindowWidth         int64     `gorm:"column:window_width;not null;default:1024" json:"windowWidth" form:"windowWidth"`
	WindowHeight        int64     `gorm:"column:window_height;not null;default:768" json:"windowHeight" form:"windowHeight"`
	WindowMaximized     int64     `gorm:"column:window_maximized;not null;default:0" json:"windowMaximized" form:"windowMaximized"`
	AutoStartScheduler  int64     `gorm:"column:auto_start_scheduler;not null" json:"autoStartScheduler" form:"autoStartScheduler"`
	NotificationLevel   string    `gorm:"column:notification_level;size:16;not null;default:info" json:"notificationLevel" form:"notificationLevel"`
	LogRetentionDays    int64     `gorm:"column:log_retention_days;not null" json:"logRetentionDays" form:"logRetentionDays"`
	DefaultBackupPath   string    `gorm:"column:default_backup_path;size:1024" json:"defaultBackupPath" form:"defaultBackupPath"`
	DefaultDumpToolPath string    `gorm:"column:default_dump_tool_path;size:1024" json:"defaultDumpToolPath" form:"defaultDumpToolPath"`
	EmailEnabled        int64     `gorm:"column:email_enabled;not null;default:0" json:"emailEnabled" form:"emailEnabled"`
	SMTPServer          string    `gorm:"column:smtp_server;size:255" json:"smtpServer" form:"smtpServer"`
	SMTPPort            int64     `gorm:"column:smtp_port;not null;default:587" json:"smtpPort" form:"smtpPort"`
	EmailUsername       string    `gorm:"column:email_username;size:255" json:"emailUsername" form:"emailUsername"`
	EmailPasswordCipher string    `gorm:"column:email_password_cipher;type:text" json:"-" form:"-"`
	SenderName          string    `gorm:"column:sender_name;size:255" json:"senderName" form:"senderName"`
	Recipients          string    `gorm:"column:recipients;type:text" json:"recipients" form:"recipients"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" form:"updatedAt"`
}

// TableName AppSetting's table name
func (*AppSetting) TableName() string {
	return TableNameAppSetting
}

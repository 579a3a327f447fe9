package dto

import "github.com/haierkeys/db-backup-service/pkg/timex"

// SettingDTO 应用设置，邮件密码不返回
type SettingDTO struct {
	WindowWidth         int          `json:"windowWidth"`
	WindowHeight        int          `json:"windowHeight"`
	WindowMaximized     bool         `json:"windowMaximized"`
	AutoStartScheduler  bool         `json:"autoStartScheduler"`
	NotificationLevel   string       `json:"notificationLevel"`
	LogRetentionDays    int          `json:"logRetentionDays"`
	DefaultBackupPath   string       `json:"defaultBackupPath"`
	DefaultDumpToolPath string       `json:"defaultDumpToolPath"`
	Email               EmailSetting `json:"email"`
	UpdatedAt           timex.Time   `json:"updatedAt"`
}

// EmailSetting 邮件配置 DTO
type EmailSetting struct {
	Enabled     bool     `json:"enabled"`
	SMTPServer  string   `json:"smtpServer"`
	SMTPPort    int      `json:"smtpPort"`
	Username    string   `json:"username"`
	HasPassword bool     `json:"hasPassword"`
	SenderName  string   `json:"senderName"`
	Recipients  []string `json:"recipients"`
}

// SettingUpdateRequest 更新设置参数，未提供的字段保持不变
type SettingUpdateRequest struct {
	WindowWidth         *int     `json:"windowWidth" binding:"omitempty,min=200"`
	WindowHeight        *int     `json:"windowHeight" binding:"omitempty,min=200"`
	WindowMaximized     *bool    `json:"windowMaximized"`
	AutoStartScheduler  *bool    `json:"autoStartScheduler"`
	NotificationLevel   *string  `json:"notificationLevel" binding:"omitempty,oneof=info warning error"`
	LogRetentionDays    *int     `json:"logRetentionDays" binding:"omitempty,min=0"`
	DefaultBackupPath   *string  `json:"defaultBackupPath"`
	DefaultDumpToolPath *string  `json:"defaultDumpToolPath"`
	EmailEnabled        *bool    `json:"emailEnabled"`
	SMTPServer          *string  `json:"smtpServer"`
	SMTPPort            *int     `json:"smtpPort" binding:"omitempty,min=1,max=65535"`
	EmailUsername       *string  `json:"emailUsername"`
	EmailPassword       *string  `json:"emailPassword"`
	SenderName          *string  `json:"senderName"`
	Recipients          []string `json:"recipients" binding:"omitempty,dive,email"`
}

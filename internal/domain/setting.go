package domain

import (
	"strings"
	"time"
)

// Severity 通知级别，info < warning < error
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank returns the ordinal of s; unknown values rank as info
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	}
	return 0
}

// Valid 是否为已知级别
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// AtLeast reports whether s is at or above threshold
// AtLeast 判断 s 是否达到阈值
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// AppSettingID 单例设置的主键
const AppSettingID int64 = 1

// AppSetting 应用设置，全局仅一行
type AppSetting struct {
	ID                  int64
	WindowWidth         int
	WindowHeight        int
	WindowMaximized     bool
	AutoStartScheduler  bool
	NotificationLevel   Severity
	LogRetentionDays    int
	DefaultBackupPath   string
	DefaultDumpToolPath string
	Email               EmailSetting
	UpdatedAt           time.Time
}

// EmailSetting 邮件通知配置
type EmailSetting struct {
	Enabled    bool
	SMTPServer string
	SMTPPort   int
	Username   string
	// PasswordCipher 经 CredentialVault 加密
	PasswordCipher string
	SenderName     string
	Recipients     []string
}

// Complete reports whether enough SMTP fields are set to attempt delivery
// Complete 判断 SMTP 配置是否齐全
func (e EmailSetting) Complete() bool {
	return e.SMTPServer != "" && e.SMTPPort > 0 && e.Username != "" && len(e.Recipients) > 0
}

// DefaultAppSetting 首次启动写入的默认设置
func DefaultAppSetting() *AppSetting {
	return &AppSetting{
		ID:                 AppSettingID,
		WindowWidth:        1024,
		WindowHeight:       768,
		AutoStartScheduler: true,
		NotificationLevel:  SeverityInfo,
		LogRetentionDays:   30,
		Email: EmailSetting{
			SMTPPort: 587,
		},
	}
}

// SplitRecipients 解析逗号或分号分隔的收件人列表
func SplitRecipients(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

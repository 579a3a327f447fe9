package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/haierkeys/db-backup-service/internal/domain"
	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrEmailNotConfigured SMTP 配置不完整
var ErrEmailNotConfigured = errors.New("email notification is not fully configured")

// Mailer sends one prepared message
// Mailer 邮件发送接口，测试时替换
type Mailer interface {
	Send(ctx context.Context, email domain.EmailSetting, password string, msg *gomail.Message) error
}

type smtpMailer struct{}

// NewSMTPMailer 使用 gomail 通过 SMTP 发送，端口 465 走 SSL，其余端口在服务器支持时升级 STARTTLS
func NewSMTPMailer() Mailer {
	return smtpMailer{}
}

func (smtpMailer) Send(ctx context.Context, email domain.EmailSetting, password string, msg *gomail.Message) error {
	d := gomail.NewDialer(email.SMTPServer, email.SMTPPort, email.Username, password)
	d.TLSConfig = &tls.Config{ServerName: email.SMTPServer, MinVersion: tls.VersionTLS12}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotificationService 通知网关
type NotificationService interface {
	// Notify 记录日志，并在启用且达到阈值时发送邮件
	Notify(ctx context.Context, subject, body string, severity domain.Severity)

	// SendTest 忽略阈值发送测试邮件
	SendTest(ctx context.Context) error
}

type notificationService struct {
	settingRepo domain.SettingRepository
	vault       CredentialVault
	mailer      Mailer
	logger      *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(settingRepo domain.SettingRepository, vault CredentialVault, mailer Mailer, logger *zap.Logger) NotificationService {
	if mailer == nil {
		mailer = NewSMTPMailer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &notificationService{
		settingRepo: settingRepo,
		vault:       vault,
		mailer:      mailer,
		logger:      logger,
	}
}

func (s *notificationService) Notify(ctx context.Context, subject, body string, severity domain.Severity) {
	log := s.logger.With(zap.String(pkglogger.FieldSeverity, string(severity)))
	switch severity {
	case domain.SeverityError:
		log.Error("notification: " + subject)
	case domain.SeverityWarning:
		log.Warn("notification: " + subject)
	default:
		log.Info("notification: " + subject)
	}

	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		log.Warn("load notification settings failed", zap.Error(err))
		return
	}
	if setting == nil || !setting.Email.Enabled {
		return
	}
	if !severity.AtLeast(setting.NotificationLevel) {
		log.Debug("notification below threshold, email skipped", zap.String("threshold", string(setting.NotificationLevel)))
		return
	}
	if !setting.Email.Complete() {
		log.Warn("email enabled but SMTP settings are incomplete, email skipped")
		return
	}

	if err := s.send(ctx, setting.Email, subject, body, severity); err != nil {
		log.Error("send notification email failed", zap.Error(err))
	}
}

func (s *notificationService) SendTest(ctx context.Context) error {
	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "load notification settings")
	}
	if setting == nil || !setting.Email.Complete() {
		return ErrEmailNotConfigured
	}
	return s.send(ctx, setting.Email, "Test notification",
		"This is a test message from db-backup-service.", domain.SeverityInfo)
}

// BuildMessage 构建邮件：主题为 "[LEVEL] subject"，发件人为 "Sender Name <username>"
func BuildMessage(email domain.EmailSetting, subject, body string, severity domain.Severity) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", email.Username, email.SenderName)
	m.SetHeader("To", email.Recipients...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(string(severity)), subject))
	m.SetBody("text/plain", body)
	return m
}

func (s *notificationService) send(ctx context.Context, email domain.EmailSetting, subject, body string, severity domain.Severity) error {
	password := ""
	if s.vault != nil {
		password = s.vault.Decrypt(email.PasswordCipher)
	}
	msg := BuildMessage(email, subject, body, severity)
	if err := s.mailer.Send(ctx, email, password, msg); err != nil {
		return errors.Wrapf(err, "smtp %s:%d", email.SMTPServer, email.SMTPPort)
	}
	s.logger.Debug("notification email sent", zap.Int("recipients", len(email.Recipients)))
	return nil
}

var _ NotificationService = (*notificationService)(nil)

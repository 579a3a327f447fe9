package domain

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Compression 压缩方式
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZip  Compression = "zip"
	CompressionGzip Compression = "gzip"
)

// Valid reports whether c is one of the supported methods
func (c Compression) Valid() bool {
	switch c {
	case CompressionNone, CompressionZip, CompressionGzip:
		return true
	}
	return false
}

const (
	DefaultPort              = 3306
	DefaultRetainMainDays    = 7
	DefaultRetainArchiveDays = 30
)

// Target 备份目标领域模型
type Target struct {
	ID       int64
	Name     string // 唯一
	Host     string
	Port     int
	Username string
	// PasswordCipher 经 CredentialVault 加密后的密码，明文不落库
	PasswordCipher    string
	DatabaseName      string
	DumpToolPath      string   // mysqldump 可执行文件路径
	BackupPath        string   // 备份输出目录
	ExcludedTables    []string // 排除的表
	Compression       Compression
	RetainMainDays    int
	RetainArchiveDays int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

var hostnameRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidHost accepts an IPv4 address, a hostname or "localhost"
// ValidHost 校验主机：IPv4、主机名或 localhost
func ValidHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4() != nil
	}
	return len(host) <= 253 && hostnameRe.MatchString(host)
}

// Validate checks the field invariants of a target
// Validate 校验备份目标字段
func (t *Target) Validate() error {
	var problems []string
	if strings.TrimSpace(t.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !ValidHost(t.Host) {
		problems = append(problems, fmt.Sprintf("host %q is not a valid IPv4 address or hostname", t.Host))
	}
	if t.Port < 1 || t.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range 1-65535", t.Port))
	}
	if strings.TrimSpace(t.DatabaseName) == "" {
		problems = append(problems, "database name is required")
	}
	if strings.TrimSpace(t.BackupPath) == "" {
		problems = append(problems, "backup path is required")
	}
	if !t.Compression.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported compression %q", t.Compression))
	}
	if t.RetainMainDays < 0 || t.RetainArchiveDays < 0 {
		problems = append(problems, "retention days must be >= 0")
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidTarget, strings.Join(problems, "; "))
	}
	return nil
}

// ApplyDefaults fills zero values the way a new target is created
// ApplyDefaults 为新建目标填充默认值
func (t *Target) ApplyDefaults() {
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.Compression == "" {
		t.Compression = CompressionZip
	}
	if t.DumpToolPath == "" {
		t.DumpToolPath = "mysqldump"
	}
}

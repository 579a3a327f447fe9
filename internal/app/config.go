// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/haierkeys/db-backup-service/internal/dao"
	"github.com/haierkeys/db-backup-service/pkg/util"
	"github.com/haierkeys/db-backup-service/pkg/workerpool"
	"github.com/haierkeys/db-backup-service/pkg/writequeue"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置
type AppConfig struct {
	File        string            `yaml:"-"` // 配置文件路径，不序列化
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	App         AppSettings       `yaml:"app"`
	Backup      BackupConfig      `yaml:"backup"`
	Security    SecurityConfig    `yaml:"security"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Tracer      TracerConfig      `yaml:"tracer"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，为空时只输出到控制台
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort HTTP 端口
	HttpPort string `yaml:"http-port" default:":9100"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
	// PrivateHttpListen 私有 HTTP 监听地址（metrics、pprof），为空不启动
	PrivateHttpListen string `yaml:"private-http-listen"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	// AuthToken API Bearer Token，为空时不校验
	AuthToken string `yaml:"auth-token"`
	// KeyFile 凭据加密密钥文件，首次使用时生成
	KeyFile string `yaml:"key-file" default:"storage/secret.key"`
	// ActionRateLimit 手动备份与连接测试每分钟允许的次数，0 关闭限流
	ActionRateLimit int64 `yaml:"action-rate-limit" default:"10"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type 数据库类型 sqlite, mysql, postgres
	Type string `yaml:"type" default:"sqlite"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/backup.sqlite3"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Host 主机
	Host string `yaml:"host"`
	// Name 数据库名
	Name string `yaml:"name"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate 是否启用自动迁移
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
	// Charset 字符集
	Charset string `yaml:"charset"`
	// ParseTime 是否解析时间
	ParseTime bool `yaml:"parse-time"`
	// SSLMode postgres sslmode
	SSLMode string `yaml:"ssl-mode"`
	// MaxIdleConns 最大闲置连接数，默认 10
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数，默认 100
	MaxOpenConns int `yaml:"max-open-conns" default:"100"`
	// ConnMaxLifetime 连接最大生命周期，支持格式：30m（分钟）、1h（小时），默认 30m
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期，默认 10m
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
}

// AppSettings 应用设置
type AppSettings struct {
	// DefaultPageSize 默认页面大小
	DefaultPageSize int `yaml:"default-page-size" default:"10"`
	// MaxPageSize 最大页面大小
	MaxPageSize int `yaml:"max-page-size" default:"100"`
	// DefaultContextTimeout 默认请求上下文超时（秒）
	DefaultContextTimeout int `yaml:"default-context-timeout" default:"60"`

	// Worker Pool 配置，用于异步发送通知
	WorkerPoolWorkers   int `yaml:"worker-pool-workers" default:"2"`
	WorkerPoolQueueSize int `yaml:"worker-pool-queue-size" default:"64"`

	// Write Queue 配置
	WriteQueueCapacity int    `yaml:"write-queue-capacity" default:"256"`
	WriteQueueTimeout  string `yaml:"write-queue-timeout" default:"30s"`
}

// BackupConfig 备份执行配置
type BackupConfig struct {
	// DefaultDumpTool 目标和设置都未指定时使用的导出工具
	DefaultDumpTool string `yaml:"default-dump-tool" default:"mysqldump"`
	// DefaultPath 目标未指定备份目录时的根目录，会追加目标名称
	DefaultPath string `yaml:"default-path" default:"storage/backups"`
	// MaxConcurrent 跨目标同时运行的上限，0 不限制
	MaxConcurrent int64 `yaml:"max-concurrent" default:"0"`
	// DumpTimeout 导出超时，0 不限制
	DumpTimeout string `yaml:"dump-timeout" default:"0"`
	// MinFreeBytes 备份目录最小剩余空间，如 1GB，为空不检查
	MinFreeBytes string `yaml:"min-free-bytes"`
	// StaleRunGrace running 记录超过该时长且无活动 worker 时标记为失败，0 关闭
	StaleRunGrace string `yaml:"stale-run-grace" default:"0"`
	// FinalizeTimeout 收尾写库超时
	FinalizeTimeout string `yaml:"finalize-timeout" default:"30s"`
	// ConnectTimeout 连接测试超时
	ConnectTimeout string `yaml:"connect-timeout" default:"5s"`
}

// MaintenanceConfig 维护任务配置
type MaintenanceConfig struct {
	// HistoryPurgeCron 历史记录清理，为空不启用
	HistoryPurgeCron string `yaml:"history-purge-cron" default:"30 3 * * *"`
	// ReconcileCron 僵尸记录对账
	ReconcileCron string `yaml:"reconcile-cron" default:"*/10 * * * *"`
}

// TracerConfig 请求追踪配置
type TracerConfig struct {
	// Enabled 是否启用追踪
	Enabled bool `yaml:"enabled" default:"true"`
	// Header 追踪 ID 请求头名称，默认 X-Trace-ID
	Header string `yaml:"header" default:"X-Trace-ID"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig 解析 YAML 配置并填充默认值
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}

	// YAML 中的空值保留默认值，显式的 false 保持为 false
	if _, err := c.durations(); err != nil {
		return nil, err
	}
	if c.Backup.MinFreeBytes != "" {
		if _, err := util.ParseBytes(c.Backup.MinFreeBytes); err != nil {
			return nil, errors.Wrap(err, "backup.min-free-bytes")
		}
	}
	return c, nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	err = os.WriteFile(c.File, data, 0644)
	if err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

type backupDurations struct {
	dump, staleGrace, finalize, connect time.Duration
}

func (c *AppConfig) durations() (backupDurations, error) {
	var (
		d   backupDurations
		err error
	)
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"backup.dump-timeout", c.Backup.DumpTimeout, &d.dump},
		{"backup.stale-run-grace", c.Backup.StaleRunGrace, &d.staleGrace},
		{"backup.finalize-timeout", c.Backup.FinalizeTimeout, &d.finalize},
		{"backup.connect-timeout", c.Backup.ConnectTimeout, &d.connect},
	}
	for _, f := range fields {
		if f.value == "" || f.value == "0" {
			continue
		}
		if *f.dst, err = util.ParseDuration(f.value); err != nil {
			return d, errors.Wrap(err, f.name)
		}
	}
	return d, nil
}

// DumpTimeout 导出超时，0 不限制
func (c *AppConfig) DumpTimeout() time.Duration {
	d, _ := c.durations()
	return d.dump
}

// StaleRunGrace 僵尸记录判定时长，0 关闭
func (c *AppConfig) StaleRunGrace() time.Duration {
	d, _ := c.durations()
	return d.staleGrace
}

// FinalizeTimeout 收尾写库超时
func (c *AppConfig) FinalizeTimeout() time.Duration {
	d, _ := c.durations()
	return d.finalize
}

// ConnectTimeout 连接测试超时
func (c *AppConfig) ConnectTimeout() time.Duration {
	d, _ := c.durations()
	return d.connect
}

// MinFreeBytes 最小剩余空间，0 不检查
func (c *AppConfig) MinFreeBytes() uint64 {
	if c.Backup.MinFreeBytes == "" {
		return 0
	}
	n, err := util.ParseBytes(c.Backup.MinFreeBytes)
	if err != nil {
		return 0
	}
	return n
}

// GetDatabaseConfig 转换为 dao.DatabaseConfig
func (c *AppConfig) GetDatabaseConfig() dao.DatabaseConfig {
	return dao.DatabaseConfig{
		Type:            c.Database.Type,
		Path:            c.Database.Path,
		UserName:        c.Database.UserName,
		Password:        c.Database.Password,
		Host:            c.Database.Host,
		Name:            c.Database.Name,
		TablePrefix:     c.Database.TablePrefix,
		AutoMigrate:     c.Database.AutoMigrate,
		Charset:         c.Database.Charset,
		ParseTime:       c.Database.ParseTime,
		SSLMode:         c.Database.SSLMode,
		MaxIdleConns:    c.Database.MaxIdleConns,
		MaxOpenConns:    c.Database.MaxOpenConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		RunMode:         c.Server.RunMode,
	}
}

// GetWorkerPoolConfig 获取 Worker Pool 配置
func (c *AppConfig) GetWorkerPoolConfig() workerpool.Config {
	cfg := workerpool.DefaultConfig()

	if c.App.WorkerPoolWorkers > 0 {
		cfg.Workers = c.App.WorkerPoolWorkers
	}
	if c.App.WorkerPoolQueueSize > 0 {
		cfg.QueueSize = c.App.WorkerPoolQueueSize
	}

	return cfg
}

// GetWriteQueueConfig 获取 Write Queue 配置
func (c *AppConfig) GetWriteQueueConfig() writequeue.Config {
	cfg := writequeue.DefaultConfig()

	if c.App.WriteQueueCapacity > 0 {
		cfg.QueueCapacity = c.App.WriteQueueCapacity
	}
	if c.App.WriteQueueTimeout != "" {
		if timeout, err := util.ParseDuration(c.App.WriteQueueTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	return cfg
}

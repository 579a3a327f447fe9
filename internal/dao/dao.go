// Package dao 实现数据访问层
package dao

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/haierkeys/db-backup-service/internal/model"
	"github.com/haierkeys/db-backup-service/pkg/writequeue"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// writeKey 所有写操作共用一个队列 key，SQLite 只允许单写者
const writeKey = "store"

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string // sqlite, mysql, postgres
	Path            string // sqlite 文件路径
	UserName        string
	Password        string
	Host            string // host:port
	Name            string
	TablePrefix     string
	AutoMigrate     bool
	Charset         string
	ParseTime       bool
	SSLMode         string // postgres
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime string
	ConnMaxIdleTime string
	RunMode         string
}

// Dao 数据访问对象，持有数据库连接与写队列
type Dao struct {
	db     *gorm.DB
	wq     *writequeue.Manager
	logger *zap.Logger
	// serialize 为 true 时写操作经写队列串行执行
	serialize bool
}

// New 创建 Dao。wq 为 nil 时写操作直接执行
func New(db *gorm.DB, wq *writequeue.Manager, lg *zap.Logger) *Dao {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Dao{
		db:        db,
		wq:        wq,
		logger:    lg,
		serialize: wq != nil && db != nil && db.Dialector.Name() == "sqlite",
	}
}

// DB 返回带 context 的会话
func (d *Dao) DB(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// ExecuteWrite runs fn on the write queue when writes must be serialized.
// ExecuteWrite 在需要串行化时通过写队列执行写操作
func (d *Dao) ExecuteWrite(ctx context.Context, fn func(db *gorm.DB) error) error {
	if !d.serialize {
		return fn(d.db.WithContext(ctx))
	}
	return d.wq.Execute(ctx, writeKey, func() error {
		return fn(d.db.WithContext(ctx))
	})
}

// NewDBEngineWithConfig opens the configured database and applies pool settings.
// NewDBEngineWithConfig 打开数据库并设置连接池
func NewDBEngineWithConfig(c DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {
	dialector, err := userDialector(c)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix, // 表名前缀
			SingularTable: true,          // 使用单数表名
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", c.Type)
	}
	if c.RunMode == "debug" {
		db.Config.Logger = logger.Default.LogMode(logger.Info)
	}

	// 获取通用数据库对象 sql.DB ，然后使用其提供的功能
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if c.Type == "sqlite" {
		// SQLite 单写者，多个连接只会互相等待锁
		sqlDB.SetMaxOpenConns(1)
	} else {
		if c.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(c.MaxIdleConns)
		}
		if c.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(c.MaxOpenConns)
		}
	}
	if d := parseDurationOr(c.ConnMaxLifetime, 10*time.Minute); d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := parseDurationOr(c.ConnMaxIdleTime, 0); d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}

	if c.AutoMigrate {
		if err := model.AutoMigrate(db, ""); err != nil {
			return nil, errors.Wrap(err, "auto migrate")
		}
	}

	if lg != nil {
		lg.Info("database connected", zap.String("type", c.Type), zap.Bool("autoMigrate", c.AutoMigrate))
	}
	return db, nil
}

func userDialector(c DatabaseConfig) (gorm.Dialector, error) {
	switch c.Type {
	case "mysql":
		charset := c.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=Local",
			c.UserName,
			c.Password,
			c.Host,
			c.Name,
			charset,
			c.ParseTime,
		)), nil
	case "postgres":
		host, port := splitHostPort(c.Host, "5432")
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return postgres.Open(fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, c.UserName, c.Password, c.Name, sslMode)), nil
	case "sqlite", "":
		if c.Path != ":memory:" && !strings.HasPrefix(c.Path, "file:") {
			if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
				return nil, errors.Wrap(err, "create sqlite directory")
			}
		}
		return sqlite.Open(c.Path), nil
	}
	return nil, errors.Errorf("unsupported database type %q", c.Type)
}

func splitHostPort(hostport, defPort string) (string, string) {
	if i := strings.LastIndex(hostport, ":"); i > 0 {
		if _, err := strconv.Atoi(hostport[i+1:]); err == nil {
			return hostport[:i], hostport[i+1:]
		}
	}
	return hostport, defPort
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// joinInts / splitInts 用于在单列中存储整数列表
func joinInts(v []int) string {
	parts := make([]string, 0, len(v))
	for _, n := range v {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func joinStrings(v []string) string {
	return strings.Join(v, ",")
}

func splitStrings(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

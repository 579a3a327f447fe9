package backup

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"go.uber.org/zap"
)

// backupNameRe matches {name}_{YYYYMMDD}_{HHMMSS}[.ext...]
var backupNameRe = regexp.MustCompile(`_(\d{8})_(\d{6})(\.[^_]*)?$`)

// ParseBackupTimestamp extracts the local timestamp embedded in a backup file name
// ParseBackupTimestamp 从备份文件名解析时间戳
func ParseBackupTimestamp(name string) (time.Time, bool) {
	m := backupNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("20060102150405", m[1]+m[2], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// BackupFileName 生成备份文件名 {db}_{YYYYMMDD}_{HHMMSS}.sql
func BackupFileName(database string, t time.Time) string {
	return database + "_" + t.Format("20060102_150405") + ".sql"
}

// SweepResult 一次清理的统计
type SweepResult struct {
	Scanned int
	Deleted int
	Kept    int
	Errors  int
}

// RetentionSweeper enforces file retention in a target's backup directory.
// Files older than the archive window are deleted. Files between the main and
// archive windows are left in place.
// RetentionSweeper 清理过期备份文件：超过归档期限的删除，主保留期与归档期之间的保持不动
type RetentionSweeper struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewRetentionSweeper 创建清理器，now 为 nil 时使用 time.Now
func NewRetentionSweeper(logger *zap.Logger, now func() time.Time) *RetentionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &RetentionSweeper{logger: logger, now: now}
}

// Sweep scans dir non-recursively. keep, when non-empty, is never deleted.
// Sweep 非递归扫描 dir，keep 指定的文件永不删除
func (s *RetentionSweeper) Sweep(dir string, mainDays, archiveDays int, keep string) SweepResult {
	var res SweepResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("backup directory does not exist, retention skipped", zap.String(pkglogger.FieldPath, dir))
		} else {
			s.logger.Warn("read backup directory failed, retention skipped", zap.String(pkglogger.FieldPath, dir), zap.Error(err))
		}
		return res
	}

	now := s.now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		res.Scanned++
		path := filepath.Join(dir, entry.Name())
		if keep != "" && filepath.Clean(path) == filepath.Clean(keep) {
			res.Kept++
			continue
		}

		ts, ok := ParseBackupTimestamp(entry.Name())
		if !ok {
			info, err := entry.Info()
			if err != nil {
				res.Errors++
				s.logger.Warn("stat backup file failed", zap.String(pkglogger.FieldPath, path), zap.Error(err))
				continue
			}
			ts = info.ModTime()
		}

		ageDays := int(now.Sub(ts).Hours() / 24)
		if ageDays >= archiveDays {
			if err := os.Remove(path); err != nil {
				res.Errors++
				s.logger.Warn("delete expired backup failed", zap.String(pkglogger.FieldPath, path), zap.Error(err))
				continue
			}
			res.Deleted++
			s.logger.Info("deleted expired backup", zap.String(pkglogger.FieldPath, path), zap.Int("ageDays", ageDays))
			continue
		}
		if ageDays >= mainDays {
			s.logger.Debug("backup past main retention, kept until archive window", zap.String(pkglogger.FieldPath, path), zap.Int("ageDays", ageDays))
		}
		res.Kept++
	}

	s.logger.Info("retention sweep finished",
		zap.String(pkglogger.FieldPath, dir),
		zap.Int("scanned", res.Scanned),
		zap.Int("deleted", res.Deleted),
		zap.Int("errors", res.Errors))
	return res
}

// Package backup runs database backups end to end: dump, compress, record, sweep.
// Package backup 负责一次备份的完整流程：导出、压缩、记录、清理
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	pkglogger "github.com/haierkeys/db-backup-service/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maskedPassword = "********"

// ErrDumpToolNotFound 导出工具不存在
var ErrDumpToolNotFound = errors.New("dump tool not found")

// DumpRequest describes one dump invocation
// DumpRequest 一次导出的参数
type DumpRequest struct {
	Tool     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Exclude  []string
}

// DumpError carries the tool's stderr when it exits non-zero
// DumpError 导出工具非零退出时携带 stderr
type DumpError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *DumpError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Err.Error()
}

func (e *DumpError) Unwrap() error {
	return e.Err
}

// DumpExecutor produces a textual dump of a database into dest
// DumpExecutor 将数据库导出到 dest 文件
type DumpExecutor interface {
	Dump(ctx context.Context, req DumpRequest, dest string) error
}

type mysqlDumper struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewDumpExecutor 创建 mysqldump 执行器，timeout 为 0 表示不限时
func NewDumpExecutor(logger *zap.Logger, timeout time.Duration) DumpExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mysqlDumper{logger: logger, timeout: timeout}
}

// BuildDumpArgs returns the mysqldump argument list for req
// BuildDumpArgs 构建 mysqldump 参数
func BuildDumpArgs(req DumpRequest) []string {
	args := []string{
		"--host=" + req.Host,
		"--port=" + strconv.Itoa(req.Port),
		"--user=" + req.User,
		req.Database,
	}
	if req.Password != "" {
		args = append(args, "--password="+req.Password)
	}
	for _, table := range req.Exclude {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		if !strings.Contains(table, ".") {
			table = req.Database + "." + table
		}
		args = append(args, "--ignore-table="+table)
	}
	return args
}

// MaskArgs replaces the password value so the argument list can be logged
// MaskArgs 屏蔽密码参数，用于日志输出
func MaskArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "--password=") {
			a = "--password=" + maskedPassword
		}
		out[i] = a
	}
	return out
}

// Dump runs the tool with stdout streamed into dest and stderr captured.
// On any failure dest is removed so no partial artifact is left behind.
// Dump 执行导出，stdout 写入 dest，失败时删除 dest
func (d *mysqlDumper) Dump(ctx context.Context, req DumpRequest, dest string) error {
	toolPath, err := exec.LookPath(req.Tool)
	if err != nil {
		return fmt.Errorf("%w at path %s", ErrDumpToolNotFound, req.Tool)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := BuildDumpArgs(req)
	d.logger.Info("running dump",
		zap.String(pkglogger.FieldCommand, toolPath+" "+strings.Join(MaskArgs(args), " ")),
		zap.String(pkglogger.FieldPath, dest))

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return errors.Wrap(err, "create dump file")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, toolPath, args...)
	cmd.Stdout = out
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	runErr := cmd.Run()
	closeErr := out.Close()

	if runErr != nil {
		_ = os.Remove(dest)
		de := &DumpError{ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			de.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() == context.DeadlineExceeded {
			de.Err = errors.Errorf("dump timed out after %s", d.timeout)
			if de.Stderr == "" {
				de.Stderr = de.Err.Error()
			}
		}
		return de
	}
	if closeErr != nil {
		_ = os.Remove(dest)
		return errors.Wrap(closeErr, "close dump file")
	}
	return nil
}

// describeDumpError 生成写入记录的消息
func describeDumpError(err error) string {
	var de *DumpError
	if errors.As(err, &de) {
		if de.ExitCode >= 0 {
			return fmt.Sprintf("dump failed (exit %d): %s", de.ExitCode, de.Error())
		}
		return "dump failed: " + de.Error()
	}
	return err.Error()
}

var _ DumpExecutor = (*mysqlDumper)(nil)

package backup

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeTool 写一个模拟 mysqldump 的 shell 脚本
func writeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script dump tool requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-mysqldump")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestBuildDumpArgs(t *testing.T) {
	args := BuildDumpArgs(DumpRequest{
		Host:     "db.internal",
		Port:     3307,
		User:     "backup",
		Database: "shop",
		Exclude:  []string{"audit_log", " ", "other.sessions"},
	})

	assert.Equal(t, []string{
		"--host=db.internal",
		"--port=3307",
		"--user=backup",
		"shop",
		"--ignore-table=shop.audit_log",
		"--ignore-table=other.sessions",
	}, args)

	withPassword := BuildDumpArgs(DumpRequest{Host: "h", Port: 1, User: "u", Password: "s3cret", Database: "d"})
	assert.Contains(t, withPassword, "--password=s3cret")
}

func TestMaskArgs(t *testing.T) {
	args := []string{"--host=h", "--password=s3cret", "d"}
	masked := MaskArgs(args)

	assert.Equal(t, []string{"--host=h", "--password=********", "d"}, masked)
	assert.Equal(t, "--password=s3cret", args[1], "input slice must not be modified")
	assert.NotContains(t, strings.Join(masked, " "), "s3cret")
}

func TestDump_WritesStdout(t *testing.T) {
	tool := writeTool(t, `echo "-- dump of $4"; echo "CREATE TABLE t (id int);"`)
	dest := filepath.Join(t.TempDir(), "shop_20240101_020000.sql")

	err := NewDumpExecutor(zap.NewNop(), 0).Dump(context.Background(), DumpRequest{
		Tool: tool, Host: "127.0.0.1", Port: 3306, User: "root", Database: "shop",
	}, dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "-- dump of shop\nCREATE TABLE t (id int);\n", string(data))
}

func TestDump_NonZeroExitCapturesStderr(t *testing.T) {
	tool := writeTool(t, `echo "partial"; echo "Access denied for user 'root'" >&2; exit 2`)
	dest := filepath.Join(t.TempDir(), "shop_20240101_020000.sql")

	err := NewDumpExecutor(zap.NewNop(), 0).Dump(context.Background(), DumpRequest{
		Tool: tool, Host: "127.0.0.1", Port: 3306, User: "root", Password: "pw", Database: "shop",
	}, dest)
	require.Error(t, err)

	var de *DumpError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.ExitCode)
	assert.Equal(t, "Access denied for user 'root'", de.Stderr)
	assert.Contains(t, describeDumpError(err), "exit 2")
	assert.NoFileExists(t, dest)
}

func TestDump_ToolNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-tool")
	dest := filepath.Join(t.TempDir(), "x.sql")

	err := NewDumpExecutor(nil, 0).Dump(context.Background(), DumpRequest{Tool: missing, Database: "x"}, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDumpToolNotFound)
	assert.Contains(t, err.Error(), "dump tool not found at path "+missing)
	assert.NoFileExists(t, dest)
}

func TestDump_Timeout(t *testing.T) {
	tool := writeTool(t, `exec sleep 5`)
	dest := filepath.Join(t.TempDir(), "slow.sql")

	start := time.Now()
	err := NewDumpExecutor(zap.NewNop(), 200*time.Millisecond).Dump(context.Background(), DumpRequest{
		Tool: tool, Host: "h", Port: 1, User: "u", Database: "slow",
	}, dest)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Contains(t, err.Error(), "timed out")
	assert.NoFileExists(t, dest)
}

package backup

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/haierkeys/db-backup-service/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mocks ---

type runnerMockRunRepo struct {
	domain.RunRepository
	mu        sync.Mutex
	runs      map[int64]*domain.Run
	nextID    int64
	created   int
	createErr error
}

func newRunnerMockRunRepo() *runnerMockRunRepo {
	return &runnerMockRunRepo{runs: make(map[int64]*domain.Run)}
}

func (m *runnerMockRunRepo) Create(ctx context.Context, r *domain.Run) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	m.created++
	cp := *r
	cp.ID = m.nextID
	m.runs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *runnerMockRunRepo) Update(ctx context.Context, r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return domain.ErrRunNotFound
	}
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *runnerMockRunRepo) only(t *testing.T) *domain.Run {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.runs, 1)
	for _, r := range m.runs {
		cp := *r
		return &cp
	}
	return nil
}

type runnerMockDumper struct {
	mu      sync.Mutex
	calls   []DumpRequest
	release chan struct{}
	err     error
	panicV  any
}

func (m *runnerMockDumper) Dump(ctx context.Context, req DumpRequest, dest string) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.release != nil {
		<-m.release
	}
	if m.panicV != nil {
		panic(m.panicV)
	}
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(dest, []byte("CREATE TABLE t (id int);\n"), 0o644)
}

func (m *runnerMockDumper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type notice struct {
	subject  string
	body     string
	severity domain.Severity
}

type runnerMockNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (m *runnerMockNotifier) Notify(ctx context.Context, subject, body string, severity domain.Severity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, notice{subject, body, severity})
}

func (m *runnerMockNotifier) all() []notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notice(nil), m.notices...)
}

type runnerMockVault struct{}

func (runnerMockVault) Decrypt(cipher string) string {
	if cipher == "" {
		return ""
	}
	return "plain:" + cipher
}

// runnerMockCompressor 返回预设结果；artifact 非空时写出该文件
type runnerMockCompressor struct {
	suffix string
	err    error
	calls  int
}

func (m *runnerMockCompressor) Compress(path string, method domain.Compression) (string, error) {
	m.calls++
	if m.suffix == "" {
		return "", m.err
	}
	artifact := path + m.suffix
	if err := os.WriteFile(artifact, []byte("compressed"), 0o644); err != nil {
		return "", err
	}
	return artifact, m.err
}

// --- Helpers ---

func testTarget(dir string) *domain.Target {
	return &domain.Target{
		ID:                42,
		Name:              "shop-primary",
		Host:              "127.0.0.1",
		Port:              3306,
		Username:          "backup",
		PasswordCipher:    "c1",
		DatabaseName:      "shop",
		DumpToolPath:      "mysqldump",
		BackupPath:        dir,
		ExcludedTables:    []string{"sessions"},
		Compression:       domain.CompressionGzip,
		RetainMainDays:    7,
		RetainArchiveDays: 30,
		IsActive:          true,
	}
}

func newTestRunner(repo domain.RunRepository, dumper DumpExecutor, notifier Notifier) *Runner {
	return NewRunner(repo, dumper, NewArchiveCompressor(), NewRetentionSweeper(zap.NewNop(), nil),
		runnerMockVault{}, notifier, NewMetricsCollector(), RunnerConfig{}, zap.NewNop())
}

// --- Tests ---

func TestRunner_SecondExecuteRejectedWhileActive(t *testing.T) {
	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{release: make(chan struct{})}
	r := newTestRunner(repo, dumper, nil)
	target := testTarget(t.TempDir())

	assert.True(t, r.Execute(context.Background(), target, false))
	assert.False(t, r.Execute(context.Background(), target, true))
	assert.True(t, r.IsRunning(target.ID))
	assert.Equal(t, []int64{target.ID}, r.Running())

	close(dumper.release)
	r.Wait()

	assert.False(t, r.IsRunning(target.ID))
	assert.Equal(t, 1, repo.created)

	// 上一次结束后可以再次执行
	dumper.release = nil
	assert.True(t, r.Execute(context.Background(), target, true))
	r.Wait()
	assert.Equal(t, 2, repo.created)
}

func TestRunner_ConcurrentExecuteAcceptsOne(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("N simultaneous calls for one target accept exactly one", prop.ForAll(
		func(n int) bool {
			repo := newRunnerMockRunRepo()
			dumper := &runnerMockDumper{release: make(chan struct{})}
			r := newTestRunner(repo, dumper, nil)
			target := testTarget(t.TempDir())

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if r.Execute(context.Background(), target, false) {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
				}()
			}
			close(start)
			wg.Wait()
			close(dumper.release)
			r.Wait()

			return accepted == 1 && repo.created == 1
		},
		gen.IntRange(2, 32),
	))

	properties.TestingRun(t)
}

func TestRunner_SuccessFinalizesRun(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "shop_20000101_000000.sql.gz")

	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{}
	notifier := &runnerMockNotifier{}
	r := newTestRunner(repo, dumper, notifier)

	require.True(t, r.Execute(context.Background(), testTarget(dir), false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, "shop-primary", run.TargetName)
	assert.False(t, run.IsManual)
	require.NotNil(t, run.EndTime)
	assert.True(t, run.EndTime.After(run.StartTime))
	assert.InDelta(t, run.EndTime.Sub(run.StartTime).Seconds(), run.DurationSeconds, 0.001)

	assert.Equal(t, filepath.Join(dir, BackupFileName("shop", run.StartTime)+".gz"), run.FilePath)
	assert.FileExists(t, run.FilePath)
	assert.NoFileExists(t, filepath.Join(dir, BackupFileName("shop", run.StartTime)))
	assert.Positive(t, run.FileSize)
	assert.Contains(t, run.LogOutput, "dump: ")
	assert.Contains(t, run.LogOutput, "compression: gzip")
	assert.Contains(t, run.LogOutput, "file size: ")

	require.Len(t, dumper.calls, 1)
	req := dumper.calls[0]
	assert.Equal(t, "plain:c1", req.Password)
	assert.Equal(t, []string{"sessions"}, req.Exclude)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityInfo, notices[0].severity)
	assert.Contains(t, notices[0].subject, "shop-primary")

	assert.NoFileExists(t, old, "retention runs after a successful backup")
}

func TestRunner_DumpFailureRecordsStderr(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "shop_20000101_000000.sql.gz")
	tool := writeTool(t, `echo "mysqldump: Got error: 1045: Access denied" >&2; exit 2`)

	repo := newRunnerMockRunRepo()
	notifier := &runnerMockNotifier{}
	r := NewRunner(repo, NewDumpExecutor(zap.NewNop(), 0), NewArchiveCompressor(), nil,
		runnerMockVault{}, notifier, nil, RunnerConfig{}, zap.NewNop())

	target := testTarget(dir)
	target.DumpToolPath = tool
	require.True(t, r.Execute(context.Background(), target, true))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.True(t, run.IsManual)
	assert.Contains(t, run.Message, "Access denied")
	assert.Empty(t, run.FilePath)
	require.NotNil(t, run.EndTime)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the pre-existing file remains")
	assert.FileExists(t, old, "retention is skipped after a failure")

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityError, notices[0].severity)
	assert.Contains(t, notices[0].body, "Access denied")
}

func TestRunner_CreateFailureAborts(t *testing.T) {
	repo := newRunnerMockRunRepo()
	repo.createErr = errors.New("database is locked")
	dumper := &runnerMockDumper{}
	notifier := &runnerMockNotifier{}
	r := newTestRunner(repo, dumper, notifier)
	target := testTarget(t.TempDir())

	require.True(t, r.Execute(context.Background(), target, false))
	r.Wait()

	assert.Zero(t, dumper.callCount())
	assert.False(t, r.IsRunning(target.ID))

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityError, notices[0].severity)
	assert.Contains(t, notices[0].body, "database is locked")
}

func TestRunner_PanicFinalizesAsFailed(t *testing.T) {
	repo := newRunnerMockRunRepo()
	r := newTestRunner(repo, &runnerMockDumper{panicV: "boom"}, nil)
	target := testTarget(t.TempDir())

	require.True(t, r.Execute(context.Background(), target, false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Message, "boom")
	require.NotNil(t, run.EndTime)
	assert.False(t, r.IsRunning(target.ID))
}

func TestRunner_CancelledCallerStillFinalizes(t *testing.T) {
	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{release: make(chan struct{})}
	r := newTestRunner(repo, dumper, nil)

	ctx, cancel := context.WithCancel(context.Background())
	target := testTarget(t.TempDir())
	target.Compression = domain.CompressionNone
	require.True(t, r.Execute(ctx, target, false))
	cancel()
	close(dumper.release)
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Contains(t, run.LogOutput, "compression: none")
	assert.Equal(t, filepath.Join(target.BackupPath, BackupFileName("shop", run.StartTime)), run.FilePath)
}

func TestRunner_MaxConcurrentDelaysButNeverRejects(t *testing.T) {
	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{release: make(chan struct{})}
	r := NewRunner(repo, dumper, NewArchiveCompressor(), nil, runnerMockVault{}, nil, nil,
		RunnerConfig{MaxConcurrent: 1}, zap.NewNop())

	a := testTarget(t.TempDir())
	b := testTarget(t.TempDir())
	b.ID, b.Name = 43, "shop-replica"

	assert.True(t, r.Execute(context.Background(), a, false))
	assert.True(t, r.Execute(context.Background(), b, false))

	require.Eventually(t, func() bool { return dumper.callCount() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dumper.callCount(), "second target waits for a free slot")

	close(dumper.release)
	r.Wait()
	assert.Equal(t, 2, dumper.callCount())
	assert.Equal(t, 2, repo.created)
}

func TestRunner_CompressionFailureRecordsFailedRun(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "shop_20000101_000000.sql.gz")

	repo := newRunnerMockRunRepo()
	notifier := &runnerMockNotifier{}
	compressor := &runnerMockCompressor{err: errors.New("disk full")}
	r := NewRunner(repo, &runnerMockDumper{}, compressor, nil, runnerMockVault{}, notifier, nil,
		RunnerConfig{}, zap.NewNop())

	require.True(t, r.Execute(context.Background(), testTarget(dir), false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "compression failed: disk full", run.Message)
	assert.Empty(t, run.FilePath)
	assert.Zero(t, run.FileSize)
	assert.Contains(t, run.LogOutput, "compression: gzip failed: disk full")
	assert.Equal(t, 1, compressor.calls)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityError, notices[0].severity)
	assert.Contains(t, notices[0].body, "disk full")

	assert.FileExists(t, old, "retention is skipped after a failure")
}

func TestRunner_SourceCleanupFailureStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "shop_20000101_000000.sql.gz")

	repo := newRunnerMockRunRepo()
	notifier := &runnerMockNotifier{}
	compressor := &runnerMockCompressor{suffix: ".gz", err: errors.New("remove dump file: permission denied")}
	r := NewRunner(repo, &runnerMockDumper{}, compressor, nil, runnerMockVault{}, notifier, nil,
		RunnerConfig{}, zap.NewNop())

	require.True(t, r.Execute(context.Background(), testTarget(dir), false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, filepath.Join(dir, BackupFileName("shop", run.StartTime)+".gz"), run.FilePath)
	assert.Equal(t, int64(len("compressed")), run.FileSize)
	assert.Contains(t, run.LogOutput, "source not removed: remove dump file: permission denied")

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityInfo, notices[0].severity)

	assert.NoFileExists(t, old, "retention runs after a successful backup")
	assert.FileExists(t, run.FilePath)
}

func TestRunner_DirectoryCreationFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := touch(t, parent, "not-a-dir")

	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{}
	notifier := &runnerMockNotifier{}
	compressor := &runnerMockCompressor{}
	r := NewRunner(repo, dumper, compressor, nil, runnerMockVault{}, notifier, nil,
		RunnerConfig{}, zap.NewNop())

	target := testTarget(filepath.Join(blocker, "backups"))
	require.True(t, r.Execute(context.Background(), target, false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Message, "create backup directory "+target.BackupPath)
	assert.Empty(t, run.FilePath)
	assert.Contains(t, run.LogOutput, "directory: ")
	assert.Zero(t, dumper.callCount())
	assert.Zero(t, compressor.calls)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityError, notices[0].severity)
}

func TestRunner_InsufficientFreeSpace(t *testing.T) {
	dir := t.TempDir()
	old := touch(t, dir, "shop_20000101_000000.sql.gz")

	repo := newRunnerMockRunRepo()
	dumper := &runnerMockDumper{}
	notifier := &runnerMockNotifier{}
	r := NewRunner(repo, dumper, NewArchiveCompressor(), nil, runnerMockVault{}, notifier, nil,
		RunnerConfig{MinFreeBytes: math.MaxInt64}, zap.NewNop())

	require.True(t, r.Execute(context.Background(), testTarget(dir), false))
	r.Wait()

	run := repo.only(t)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Message, "insufficient free space in "+dir)
	assert.Empty(t, run.FilePath)
	assert.Contains(t, run.LogOutput, "disk: ")
	assert.Zero(t, dumper.callCount())

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.SeverityError, notices[0].severity)
	assert.FileExists(t, old, "retention is skipped after a failure")
}

package domain

import "time"

// RunStatus 备份记录状态
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run 一次备份执行的记录
type Run struct {
	ID       int64
	TargetID int64
	// TargetName 冗余快照，目标删除或改名后历史仍可读
	TargetName      string
	StartTime       time.Time
	EndTime         *time.Time // 运行中为 nil
	Status          RunStatus
	Message         string
	FilePath        string
	FileSize        int64
	DurationSeconds float64
	LogOutput       string
	IsManual        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsFinished reports whether the run left the running state
func (r *Run) IsFinished() bool {
	return r.Status != RunStatusRunning
}

// RunFilter 备份记录查询条件
type RunFilter struct {
	TargetID int64
	Status   RunStatus
	Page     int
	PageSize int
}

// RunStats 备份记录聚合统计
type RunStats struct {
	// Total 仅统计 success 与 failed
	Total         int64
	Successful    int64
	Failed        int64
	Running       int64
	LastSuccessAt *time.Time
	// TotalBytes 成功记录的文件大小之和
	TotalBytes int64
}

package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTraceID 追踪 ID 字段
	FieldTraceID = "traceId"

	// FieldTargetID 备份目标 ID 字段
	FieldTargetID = "targetId"

	// FieldTargetName 备份目标名称字段
	FieldTargetName = "targetName"

	// FieldScheduleID 计划 ID 字段
	FieldScheduleID = "scheduleId"

	// FieldRunID 备份记录 ID 字段
	FieldRunID = "runId"

	// FieldJobID 定时任务 ID 字段
	FieldJobID = "jobId"

	// FieldManual 是否手动触发
	FieldManual = "manual"

	// FieldStatus 状态字段
	FieldStatus = "status"

	// FieldAction 操作类型字段
	FieldAction = "action"

	// FieldPath 文件路径字段
	FieldPath = "path"

	// FieldCommand 外部命令字段（已脱敏）
	FieldCommand = "command"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldError 错误信息字段
	FieldError = "error"

	// FieldSize 文件大小字段
	FieldSize = "size"

	// FieldNextRun 下次运行时间
	FieldNextRun = "nextRun"

	// FieldSeverity 通知级别
	FieldSeverity = "severity"
)

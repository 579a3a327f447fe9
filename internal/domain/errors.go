package domain

import "errors"

var (
	// ErrTargetNotFound 备份目标不存在
	ErrTargetNotFound = errors.New("backup target not found")
	// ErrTargetNameExists 备份目标名称重复
	ErrTargetNameExists = errors.New("backup target name already exists")
	// ErrInvalidTarget 备份目标字段无效
	ErrInvalidTarget = errors.New("invalid backup target")
	// ErrScheduleNotFound 计划不存在
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrInvalidSchedule 计划字段无效
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrRunNotFound 备份记录不存在
	ErrRunNotFound = errors.New("backup run not found")
)

// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import "time"

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	Backup BackupServiceConfig // Backup target defaults // 备份目标默认值
}

// BackupServiceConfig backup defaults applied when a target leaves a field empty
// BackupServiceConfig 目标字段为空时使用的默认值
type BackupServiceConfig struct {
	DefaultDumpTool   string        // Fallback dump tool path // 默认导出工具路径
	DefaultBackupPath string        // Fallback backup root, target name is appended // 默认备份根目录，会追加目标名称
	ConnectTimeout    time.Duration // Connection test timeout // 连接测试超时
}

// withDefaults 填充零值
func (c *ServiceConfig) withDefaults() *ServiceConfig {
	out := ServiceConfig{}
	if c != nil {
		out = *c
	}
	if out.Backup.DefaultDumpTool == "" {
		out.Backup.DefaultDumpTool = "mysqldump"
	}
	if out.Backup.ConnectTimeout <= 0 {
		out.Backup.ConnectTimeout = 5 * time.Second
	}
	return &out
}

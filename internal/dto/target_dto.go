// Package dto Defines data transfer objects (request parameters and response structs)
// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

import "github.com/haierkeys/db-backup-service/pkg/timex"

// TargetRequest Parameters for creating or updating a backup target
// 创建或更新备份目标参数
type TargetRequest struct {
	Name              string   `json:"name" form:"name" binding:"required,max=128" example:"shop-primary"`
	Host              string   `json:"host" form:"host" binding:"required,dbhost" example:"127.0.0.1"`
	Port              int      `json:"port" form:"port" binding:"omitempty,min=1,max=65535" example:"3306"`
	Username          string   `json:"username" form:"username" binding:"required" example:"backup"`
	Password          string   `json:"password" form:"password" example:"secret"`
	// ClearPassword 更新时清除已保存的密码
	ClearPassword     bool     `json:"clearPassword" form:"clearPassword"`
	DatabaseName      string   `json:"databaseName" form:"databaseName" binding:"required" example:"shop"`
	DumpToolPath      string   `json:"dumpToolPath" form:"dumpToolPath" example:"/usr/bin/mysqldump"`
	BackupPath        string   `json:"backupPath" form:"backupPath" example:"/var/backups/shop"`
	ExcludedTables    []string `json:"excludedTables" form:"excludedTables"`
	Compression       string   `json:"compression" form:"compression" binding:"omitempty,oneof=none zip gzip" example:"zip"`
	RetainMainDays    *int     `json:"retainMainDays" form:"retainMainDays" binding:"omitempty,min=0" example:"7"`
	RetainArchiveDays *int     `json:"retainArchiveDays" form:"retainArchiveDays" binding:"omitempty,min=0" example:"30"`
	IsActive          *bool    `json:"isActive" form:"isActive" example:"true"`
}

// TargetDTO Backup target returned to clients; the password is never included
// 备份目标 DTO，不包含密码
type TargetDTO struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Host              string     `json:"host"`
	Port              int        `json:"port"`
	Username          string     `json:"username"`
	HasPassword       bool       `json:"hasPassword"`
	DatabaseName      string     `json:"databaseName"`
	DumpToolPath      string     `json:"dumpToolPath"`
	BackupPath        string     `json:"backupPath"`
	ExcludedTables    []string   `json:"excludedTables"`
	Compression       string     `json:"compression"`
	RetainMainDays    int        `json:"retainMainDays"`
	RetainArchiveDays int        `json:"retainArchiveDays"`
	IsActive          bool       `json:"isActive"`
	IsRunning         bool       `json:"isRunning"`
	CreatedAt         timex.Time `json:"createdAt"`
	UpdatedAt         timex.Time `json:"updatedAt"`
}

// ConnectionTestDTO 连接测试结果
type ConnectionTestDTO struct {
	OK        bool    `json:"ok"`
	Message   string  `json:"message"`
	ElapsedMs float64 `json:"elapsedMs"`
}

// RunNowDTO 立即执行结果
type RunNowDTO struct {
	TargetID int64 `json:"targetId"`
	Accepted bool  `json:"accepted"`
}

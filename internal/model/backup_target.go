package model

import "time"

const TableNameBackupTarget = "backup_target"

// BackupTarget mapped from table <backup_target>
type BackupTarget struct {
	ID                int64     `gorm:"column:id;primaryKey" json:"id" form:"id"`
	Name              string    `gorm:"column:name;size:191;not null;uniqueIndex:idx_target_name" json:"name" form:"name"`
	Host              string    `gorm:"column:host;size:255;not null" json:"host" form:"host"`
	Port              int64     `gorm:"column:port;not null;default:3306" json:"port" form:"port"`
	Username          string    `gorm:"column:username;size:255" json:"username" form:"username"`
	PasswordCipher    string    `gorm:"column:password_cipher;type:text" json:"-" form:"-"`
	DatabaseName      string    `gorm:"column:database_name;size:255;not null" json:"databaseName" form:"databaseName"`
	DumpToolPath      string    `gorm:"column:dump_tool_path;size:1024" json:"dumpToolPath" form:"dumpToolPath"`
	BackupPath        string    `gorm:"column:backup_path;size:1024;not null" json:"backupPath" form:"backupPath"`
	ExcludedTables    string    `gorm:"column:excluded_tables;type:text" json:"excludedTables" form:"excludedTables"`
	Compression       string    `gorm:"column:compression;size:16;not null;default:zip" json:"compression" form:"compression"`
	RetainMainDays    int64     `gorm:"column:retain_main_days;not null" json:"retainMainDays" form:"retainMainDays"`
	RetainArchiveDays int64     `gorm:"column:retain_archive_days;not null" json:"retainArchiveDays" form:"retainArchiveDays"`
	IsActive          int64     `gorm:"column:is_active;not null;index:idx_target_active" json:"isActive" form:"isActive"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt" form:"createdAt"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" form:"updatedAt"`
}

// TableName BackupTarget's table name
func (*BackupTarget) TableName() string {
	return TableNameBackupTarget
}

package model

import (
	"gorm.io/gorm"
)

// Models 全部需要迁移的表
func Models() []any {
	return []any{
		&BackupTarget{},
		&BackupSchedule{},
		&BackupRun{},
		&AppSetting{},
	}
}

// AutoMigrate 迁移指定表，key 为空时迁移全部
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {
	case "":
		return db.AutoMigrate(Models()...)
	case "BackupTarget":
		return db.AutoMigrate(&BackupTarget{})
	case "BackupSchedule":
		return db.AutoMigrate(&BackupSchedule{})
	case "BackupRun":
		return db.AutoMigrate(&BackupRun{})
	case "AppSetting":
		return db.AutoMigrate(&AppSetting{})
	}
	return nil
}

// Package database 提供数据库迁移功能
package database

import (
	"github.com/weiwangfds/ditdrive/internal/logger"
	"gorm.io/gorm"
)

// driveModels 需要迁移的全部模型
var driveModels = []interface{}{
	&User{},
	&Folder{},
	&File{},
	&ShareLink{},
	&ActivityLog{},
}

// Migrate 执行网盘相关表的数据库迁移
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 迁移失败时返回错误信息
func Migrate(db *gorm.DB) error {
	logger.Debugf("开始执行数据库迁移...")

	if err := db.AutoMigrate(driveModels...); err != nil {
		return err
	}

	// 早期版本的文件记录没有物理目录字段，按逻辑文件夹回填
	res := db.Model(&File{}).
		Where("storage_folder_id IS NULL AND folder_id IS NOT NULL").
		Update("storage_folder_id", gorm.Expr("folder_id"))
	if res.Error != nil {
		logger.Errorf("回填文件物理目录失败: %v", res.Error)
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warnf("已回填 %d 条文件记录的物理目录", res.RowsAffected)
	}

	logger.Debugf("数据库迁移完成")
	return nil
}

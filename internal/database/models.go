// Package database 定义了数据库相关的模型和结构体
package database

// 此文件保留作为数据库模型包的入口文件
// 具体的模型定义见：
// - drive_models.go: 网盘模型（User, Folder, File, ShareLink, ActivityLog）
// - migrations.go: 表结构迁移
// - database.go: 连接初始化

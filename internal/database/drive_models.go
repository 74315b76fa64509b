// Package database 定义了网盘相关的数据库模型
// 包含用户、文件夹、文件、分享链接和操作日志
package database

import (
	"fmt"
	"strings"
	"time"
)

// Role 用户角色，数值越小权限越高
type Role int

const (
	RoleMasterAdmin Role = iota // 超级管理员，全局唯一
	RoleAdmin                   // 管理员
	RoleUser                    // 普通用户
)

// String 返回角色名称
func (r Role) String() string {
	switch r {
	case RoleMasterAdmin:
		return "MasterAdmin"
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// AtLeast 判断当前角色是否不低于指定角色
func (r Role) AtLeast(other Role) bool {
	return r <= other
}

// ParseRole 解析角色名称（大小写不敏感）
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "masteradmin":
		return RoleMasterAdmin, nil
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	default:
		return RoleUser, fmt.Errorf("unknown role %q", s)
	}
}

// User 用户模型
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null;size:255" json:"-"`
	Role         Role      `gorm:"not null;default:2" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定User模型对应的数据库表名
func (User) TableName() string {
	return "users"
}

// Folder 文件夹模型
// ParentID 为空表示顶层文件夹；DeletedAt 非空表示位于回收站
// 内部ID不对外暴露，外部只使用 PublicID
type Folder struct {
	ID        uint       `gorm:"primarykey" json:"-"`
	PublicID  string     `gorm:"uniqueIndex;not null;size:32" json:"public_id"`
	UserID    uint       `gorm:"not null;index:idx_folders_user_parent,priority:1" json:"-"`
	ParentID  *uint      `gorm:"index:idx_folders_user_parent,priority:2" json:"-"`
	Name      string     `gorm:"not null;size:255" json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定Folder模型对应的数据库表名
func (Folder) TableName() string {
	return "folders"
}

// IsLive 是否未被删除
func (f *Folder) IsLive() bool {
	return f.DeletedAt == nil
}

// File 文件模型
// FolderID 是逻辑所在文件夹，StorageFolderID 是上传时确定的物理目录，之后不再改变
type File struct {
	ID              uint       `gorm:"primarykey" json:"-"`
	PublicID        string     `gorm:"uniqueIndex;not null;size:32" json:"public_id"`
	UserID          uint       `gorm:"not null;index:idx_files_user_folder,priority:1" json:"-"`
	FolderID        *uint      `gorm:"index:idx_files_user_folder,priority:2" json:"-"`
	StorageFolderID *uint      `json:"-"`
	FileName        string     `gorm:"not null;size:255" json:"file_name"`
	StoredName      string     `gorm:"not null;size:80" json:"-"`
	ContentType     string     `gorm:"size:255" json:"content_type"`
	Size            int64      `gorm:"not null" json:"size"`
	UploadedAt      time.Time  `gorm:"autoCreateTime" json:"uploaded_at"`
	DeletedAt       *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName 指定File模型对应的数据库表名
func (File) TableName() string {
	return "files"
}

// IsLive 是否未被删除
func (f *File) IsLive() bool {
	return f.DeletedAt == nil
}

// ShareLink 分享链接，FileID 与 FolderID 有且只有一个非空
type ShareLink struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	Token     string    `gorm:"uniqueIndex;not null;size:64" json:"token"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	FileID    *uint     `gorm:"index" json:"-"`
	FolderID  *uint     `gorm:"index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定ShareLink模型对应的数据库表名
func (ShareLink) TableName() string {
	return "shares"
}

// Kind 返回分享类型 file 或 folder
func (s *ShareLink) Kind() string {
	if s.FolderID != nil {
		return "folder"
	}
	return "file"
}

// ActivityLog 用户操作日志
type ActivityLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	Action    string    `gorm:"not null;size:64" json:"action"`
	Status    string    `gorm:"not null;size:32" json:"status"`
	Message   string    `gorm:"size:1000" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定ActivityLog模型对应的数据库表名
func (ActivityLog) TableName() string {
	return "activity_logs"
}

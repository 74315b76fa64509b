package service

import (
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	"gorm.io/gorm"
)

// 操作类型
const (
	ActionLogin          = "Login"
	ActionCreateFolder   = "CreateFolder"
	ActionRenameFolder   = "RenameFolder"
	ActionDeleteFolder   = "DeleteFolder"
	ActionUpload         = "Upload"
	ActionDeleteFile     = "DeleteFile"
	ActionRestoreFolder  = "RestoreFolder"
	ActionRestoreFile    = "RestoreFile"
	ActionPurgeFolder    = "PurgeFolder"
	ActionPurgeFile      = "PurgeFile"
	ActionCleanTrash     = "CleanTrash"
	ActionCreateShare    = "CreateShare"
	ActionCreateUser     = "CreateUser"
	ActionResetPassword  = "ResetPassword"
	ActionDeleteUser     = "DeleteUser"
	ActionRetentionSweep = "RetentionSweep"
)

// 操作结果
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// 查询条数限制
const (
	DefaultTake = 200
	MaxTake     = 1000
)

// ActivityService 操作日志服务接口
type ActivityService interface {
	// Record 追加一条操作日志，写入失败只记录到应用日志，不影响调用方
	// 参数:
	//   - userID: 操作用户，系统任务为 nil
	//   - action: 操作类型
	//   - status: 操作结果
	//   - message: 描述信息
	Record(userID *uint, action, status, message string)

	// List 按时间倒序返回最近的操作日志
	// take 小于等于0时取默认值200，超过1000时取1000
	List(take int) ([]LogView, error)
}

// LogView 操作日志及操作用户邮箱
type LogView struct {
	ID        uint      `json:"id"`
	UserID    *uint     `json:"userId"`
	UserEmail *string   `json:"userEmail"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// activityService 操作日志服务实现
type activityService struct {
	db *gorm.DB
}

// NewActivityService 创建操作日志服务
func NewActivityService(db *gorm.DB) ActivityService {
	return &activityService{db: db}
}

func (s *activityService) Record(userID *uint, action, status, message string) {
	if len(message) > 1000 {
		message = message[:1000]
	}
	entry := &database.ActivityLog{
		UserID:  userID,
		Action:  action,
		Status:  status,
		Message: message,
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Errorf("[操作日志] 写入失败: action=%s, err=%v", action, err)
	}
}

func (s *activityService) List(take int) ([]LogView, error) {
	take = ClampTake(take)

	var views []LogView
	err := s.db.Table("activity_logs").
		Select("activity_logs.id, activity_logs.user_id, users.email AS user_email, activity_logs.action, " +
			"activity_logs.status, activity_logs.message, activity_logs.created_at").
		Joins("LEFT JOIN users ON users.id = activity_logs.user_id").
		Order("activity_logs.created_at DESC").
		Order("activity_logs.id DESC").
		Limit(take).
		Scan(&views).Error
	if err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return views, nil
}

// ClampTake 规范化查询条数
func ClampTake(take int) int {
	switch {
	case take <= 0:
		return DefaultTake
	case take > MaxTake:
		return MaxTake
	default:
		return take
	}
}

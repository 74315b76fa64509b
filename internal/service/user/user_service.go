// Package service 提供管理后台的用户管理
// 角色按 MasterAdmin > Admin > User 排序，操作者只能管理严格低于自己的账号
package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	authservice "github.com/weiwangfds/ditdrive/internal/service/auth"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	"gorm.io/gorm"
)

// Actor 发起操作的用户
type Actor struct {
	ID   uint
	Role database.Role
}

// UserService 用户管理服务接口
type UserService interface {
	// CreateUser 创建指定角色的账号
	// 创建普通用户需要 Admin 及以上，创建管理员只允许 MasterAdmin，超级管理员不能通过此接口创建
	// 邮箱已存在返回 ErrRecordAlreadyExists
	CreateUser(actor Actor, email, password string, role database.Role) (*authservice.UserView, error)

	// ListUsers 按ID升序列出全部用户
	ListUsers() ([]authservice.UserView, error)

	// ResetPassword 重置目标用户密码
	ResetPassword(actor Actor, userID uint, password string) error

	// DeleteUser 删除用户及其全部分享、文件、文件夹和物理目录
	DeleteUser(actor Actor, userID uint) error
}

// userService 用户管理服务实现
type userService struct {
	db       *gorm.DB
	engine   folderservice.Engine
	activity activityservice.ActivityService
}

// NewUserService 创建用户管理服务
func NewUserService(db *gorm.DB, engine folderservice.Engine, activity activityservice.ActivityService) UserService {
	return &userService{db: db, engine: engine, activity: activity}
}

func (s *userService) CreateUser(actor Actor, email, password string, role database.Role) (*authservice.UserView, error) {
	if err := canCreate(actor.Role, role); err != nil {
		return nil, err
	}

	email = authservice.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, apperrors.NewWithDetails(apperrors.ErrInvalidParams,
			apperrors.GetErrorMessage(apperrors.ErrInvalidParams), "invalid email")
	}
	hash, err := authservice.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	if count > 0 {
		s.record(actor, activityservice.ActionCreateUser, activityservice.StatusFailed, email)
		return nil, apperrors.NewWithDetails(apperrors.ErrRecordAlreadyExists,
			apperrors.GetErrorMessage(apperrors.ErrRecordAlreadyExists), "email already registered")
	}

	user := &database.User{Email: email, PasswordHash: hash, Role: role}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.WrapCode(apperrors.ErrRecordAlreadyExists, err)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseInsert, err)
	}

	s.record(actor, activityservice.ActionCreateUser, activityservice.StatusSuccess, fmt.Sprintf("%s (%s)", email, role))
	logger.Infof("[用户管理] 已创建用户 %s，角色 %s", email, role)
	view := authservice.NewUserView(user)
	return &view, nil
}

func (s *userService) ListUsers() ([]authservice.UserView, error) {
	var users []database.User
	if err := s.db.Order("id ASC").Find(&users).Error; err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	views := make([]authservice.UserView, 0, len(users))
	for i := range users {
		views = append(views, authservice.NewUserView(&users[i]))
	}
	return views, nil
}

func (s *userService) ResetPassword(actor Actor, userID uint, password string) error {
	target, err := s.manageable(actor, userID)
	if err != nil {
		return err
	}
	hash, err := authservice.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.Model(target).Update("password_hash", hash).Error; err != nil {
		s.record(actor, activityservice.ActionResetPassword, activityservice.StatusFailed, target.Email)
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	s.record(actor, activityservice.ActionResetPassword, activityservice.StatusSuccess, target.Email)
	return nil
}

func (s *userService) DeleteUser(actor Actor, userID uint) error {
	target, err := s.manageable(actor, userID)
	if err != nil {
		return err
	}

	if err := s.engine.PurgeUser(target.ID); err != nil {
		s.record(actor, activityservice.ActionDeleteUser, activityservice.StatusFailed, target.Email)
		return err
	}
	if err := s.db.Delete(target).Error; err != nil {
		s.record(actor, activityservice.ActionDeleteUser, activityservice.StatusFailed, target.Email)
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}

	s.record(actor, activityservice.ActionDeleteUser, activityservice.StatusSuccess, target.Email)
	logger.Infof("[用户管理] 已删除用户 %s", target.Email)
	return nil
}

// manageable 加载目标用户并检查操作者是否有权管理
func (s *userService) manageable(actor Actor, userID uint) (*database.User, error) {
	if actor.ID == userID {
		return nil, apperrors.NewWithDetails(apperrors.ErrForbidden,
			apperrors.GetErrorMessage(apperrors.ErrForbidden), "cannot manage your own account here")
	}

	var target database.User
	if err := s.db.First(&target, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.FromCode(apperrors.ErrUserNotFound)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	if !outranks(actor.Role, target.Role) {
		return nil, apperrors.NewWithDetails(apperrors.ErrForbidden,
			apperrors.GetErrorMessage(apperrors.ErrForbidden), fmt.Sprintf("%s cannot manage %s", actor.Role, target.Role))
	}
	return &target, nil
}

func (s *userService) record(actor Actor, action, status, message string) {
	s.activity.Record(&actor.ID, action, status, message)
}

// canCreate 检查操作者能否创建指定角色
func canCreate(actor, role database.Role) error {
	switch {
	case role == database.RoleMasterAdmin:
	case role == database.RoleAdmin && actor == database.RoleMasterAdmin:
		return nil
	case role == database.RoleUser && actor.AtLeast(database.RoleAdmin):
		return nil
	}
	return apperrors.NewWithDetails(apperrors.ErrForbidden,
		apperrors.GetErrorMessage(apperrors.ErrForbidden), fmt.Sprintf("%s cannot create %s", actor, role))
}

// outranks 操作者角色严格高于目标
func outranks(actor, target database.Role) bool {
	return actor.AtLeast(database.RoleAdmin) && actor < target
}

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email,max=255") == nil
}

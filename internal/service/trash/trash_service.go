package service

import (
	"fmt"
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// MaxRetentionDays 手动清理时允许指定的最大保留天数
const MaxRetentionDays = 36500

// TrashListing 回收站内容，只包含被删除子树的根
type TrashListing struct {
	Folders []treeservice.FolderView `json:"folders"`
	Files   []treeservice.FileView   `json:"files"`
}

// TrashService 回收站服务接口
type TrashService interface {
	// ListTrash 列出用户回收站中的顶层条目
	// 父文件夹同样在回收站中的条目不单独列出
	ListTrash(userID uint) (*TrashListing, error)

	// RestoreFolder 恢复回收站中的文件夹，不在回收站时返回 ErrFolderNotFound
	RestoreFolder(userID uint, publicID string) error

	// RestoreFile 恢复回收站中的文件，不在回收站时返回 ErrFileNotFound
	RestoreFile(userID uint, publicID string) error

	// DeleteFolderPermanently 永久删除回收站中的文件夹子树
	DeleteFolderPermanently(userID uint, publicID string) error

	// DeleteFilePermanently 永久删除回收站中的文件
	DeleteFilePermanently(userID uint, publicID string) error

	// Clean 清理当前用户过期的回收站条目
	// 参数:
	//   - userID: 当前用户
	//   - role: 当前用户角色，指定 retentionDays 需要 Admin 及以上权限
	//   - retentionDays: 覆盖默认保留天数，nil 表示使用配置值
	Clean(userID uint, role database.Role, retentionDays *int) (*SweepResult, error)

	// SweepAll 立即清理所有用户过期的回收站条目
	SweepAll(retentionDays *int) (*SweepResult, error)
}

// trashService 回收站服务实现
type trashService struct {
	store     treeservice.Store
	engine    folderservice.Engine
	sweeper   Sweeper
	activity  activityservice.ActivityService
	retention time.Duration
	now       func() time.Time
}

// NewTrashService 创建回收站服务
func NewTrashService(store treeservice.Store, engine folderservice.Engine, sweeper Sweeper,
	activity activityservice.ActivityService, retention time.Duration) TrashService {
	return &trashService{
		store:     store,
		engine:    engine,
		sweeper:   sweeper,
		activity:  activity,
		retention: retention,
		now:       time.Now,
	}
}

func (s *trashService) ListTrash(userID uint) (*TrashListing, error) {
	folders, err := s.store.TrashRootFolders(&userID, nil)
	if err != nil {
		return nil, err
	}
	files, err := s.store.TrashRootFiles(&userID, nil)
	if err != nil {
		return nil, err
	}

	folderViews, err := treeservice.FolderViews(s.store, folders)
	if err != nil {
		return nil, err
	}
	fileViews, err := treeservice.FileViews(s.store, files)
	if err != nil {
		return nil, err
	}
	return &TrashListing{Folders: folderViews, Files: fileViews}, nil
}

func (s *trashService) RestoreFolder(userID uint, publicID string) error {
	folder, err := s.store.GetTrashedFolder(publicID, userID)
	if err != nil {
		return err
	}
	err = s.engine.Restore(folder)
	s.record(userID, activityservice.ActionRestoreFolder, folder.Name, err)
	return err
}

func (s *trashService) RestoreFile(userID uint, publicID string) error {
	file, err := s.store.GetTrashedFile(publicID, userID)
	if err != nil {
		return err
	}
	err = s.engine.RestoreFile(file)
	s.record(userID, activityservice.ActionRestoreFile, file.FileName, err)
	return err
}

func (s *trashService) DeleteFolderPermanently(userID uint, publicID string) error {
	folder, err := s.store.GetTrashedFolder(publicID, userID)
	if err != nil {
		return err
	}
	err = s.engine.PermanentDelete(folder)
	s.record(userID, activityservice.ActionPurgeFolder, folder.Name, err)
	return err
}

func (s *trashService) DeleteFilePermanently(userID uint, publicID string) error {
	file, err := s.store.GetTrashedFile(publicID, userID)
	if err != nil {
		return err
	}
	err = s.engine.PurgeFile(file)
	s.record(userID, activityservice.ActionPurgeFile, file.FileName, err)
	return err
}

func (s *trashService) Clean(userID uint, role database.Role, retentionDays *int) (*SweepResult, error) {
	if retentionDays != nil && !role.AtLeast(database.RoleAdmin) {
		return nil, apperrors.NewWithDetails(apperrors.ErrForbidden,
			apperrors.GetErrorMessage(apperrors.ErrForbidden), "retentionDays override requires admin")
	}
	cutoff, err := s.cutoff(retentionDays)
	if err != nil {
		return nil, err
	}

	result := s.sweeper.SweepForUser(userID, cutoff)
	s.record(userID, activityservice.ActionCleanTrash,
		fmt.Sprintf("folders=%d files=%d failed=%d", result.Folders, result.Files, result.Failed), nil)
	return &result, nil
}

func (s *trashService) SweepAll(retentionDays *int) (*SweepResult, error) {
	cutoff, err := s.cutoff(retentionDays)
	if err != nil {
		return nil, err
	}
	result := s.sweeper.Sweep(cutoff)
	logger.Infof("[回收站] 手动全局清理完成: %+v", result)
	return &result, nil
}

// cutoff 计算截止时间，retentionDays 为 nil 时使用配置的保留时长
func (s *trashService) cutoff(retentionDays *int) (time.Time, error) {
	if retentionDays == nil {
		return s.now().UTC().Add(-s.retention), nil
	}
	if *retentionDays < 0 {
		return time.Time{}, apperrors.NewWithDetails(apperrors.ErrInvalidParams,
			apperrors.GetErrorMessage(apperrors.ErrInvalidParams), "retentionDays must not be negative")
	}
	if *retentionDays > MaxRetentionDays {
		return time.Time{}, apperrors.NewWithDetails(apperrors.ErrInvalidParams,
			apperrors.GetErrorMessage(apperrors.ErrInvalidParams), fmt.Sprintf("retentionDays must not exceed %d", MaxRetentionDays))
	}
	return expiredBefore(s.now(), *retentionDays), nil
}

func (s *trashService) record(userID uint, action, message string, err error) {
	status := activityservice.StatusSuccess
	if err != nil {
		status = activityservice.StatusFailed
	}
	s.activity.Record(&userID, action, status, message)
}

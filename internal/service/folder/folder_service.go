package service

import (
	"strings"
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// RootID 表示顶层目录的路径参数
const RootID = "root"

// FolderService 文件夹服务接口
// 面向HTTP层的文件夹操作，级联部分委托给 Engine
type FolderService interface {
	// CreateFolder 创建文件夹
	// 参数:
	//   - userID: 当前用户
	//   - name: 文件夹名称，经过规范化后不能为空
	//   - parentPublicID: 父文件夹公开ID，为空或 "root" 时创建在顶层
	//
	// 返回值:
	//   - 父文件夹不存在、已删除或不属于当前用户时返回 ErrFolderNotFound
	CreateFolder(userID uint, name, parentPublicID string) (*treeservice.FolderView, error)

	// RenameFolder 重命名有效文件夹
	RenameFolder(userID uint, publicID, name string) (*treeservice.FolderView, error)

	// GetListing 获取文件夹内容，publicID 为空或 "root" 时返回顶层内容
	GetListing(userID uint, publicID string) (*treeservice.Listing, error)

	// FolderExists 判断父目录下是否已有同名有效文件夹，仅供客户端提示
	FolderExists(userID uint, name, parentPublicID string) (bool, error)

	// MoveFolderToTrash 将有效文件夹移入回收站
	MoveFolderToTrash(userID uint, publicID string) error

	// ExportFolder 将有效文件夹打包下载，调用方负责关闭返回的 Archive
	ExportFolder(userID uint, publicID string) (*Archive, error)
}

// folderService 文件夹服务实现
type folderService struct {
	store    treeservice.Store
	engine   Engine
	activity activityservice.ActivityService
	now      func() time.Time
}

// NewFolderService 创建文件夹服务
func NewFolderService(store treeservice.Store, engine Engine, activity activityservice.ActivityService) FolderService {
	return &folderService{
		store:    store,
		engine:   engine,
		activity: activity,
		now:      time.Now,
	}
}

func (s *folderService) CreateFolder(userID uint, name, parentPublicID string) (*treeservice.FolderView, error) {
	name, err := treeservice.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	parent, err := s.lookupParent(userID, parentPublicID)
	if err != nil {
		return nil, err
	}

	folder := &database.Folder{
		PublicID: treeservice.NewPublicID(),
		UserID:   userID,
		Name:     name,
	}
	parentPublic := ""
	if parent != nil {
		folder.ParentID = &parent.ID
		parentPublic = parent.PublicID
	}
	if err := s.store.CreateFolder(folder); err != nil {
		logger.Errorf("[文件夹] 创建失败: user=%d, name=%s, err=%v", userID, name, err)
		s.activity.Record(&userID, activityservice.ActionCreateFolder, activityservice.StatusFailed, name)
		return nil, err
	}

	s.activity.Record(&userID, activityservice.ActionCreateFolder, activityservice.StatusSuccess, name)
	logger.Infof("[文件夹] 创建成功: %s (%s)", folder.Name, folder.PublicID)
	view := treeservice.NewFolderView(folder, parentPublic)
	return &view, nil
}

func (s *folderService) RenameFolder(userID uint, publicID, name string) (*treeservice.FolderView, error) {
	name, err := treeservice.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	folder, err := s.store.GetFolder(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.RenameFolder(folder, name); err != nil {
		return nil, err
	}
	folder.Name = name

	s.activity.Record(&userID, activityservice.ActionRenameFolder, activityservice.StatusSuccess, name)
	views, err := treeservice.FolderViews(s.store, []database.Folder{*folder})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *folderService) GetListing(userID uint, publicID string) (*treeservice.Listing, error) {
	listing := &treeservice.Listing{
		Folders: []treeservice.FolderView{},
		Files:   []treeservice.FileView{},
	}

	var folderID *uint
	if !isRoot(publicID) {
		folder, err := s.store.GetFolder(publicID, userID, false)
		if err != nil {
			return nil, err
		}
		header, err := treeservice.FolderViews(s.store, []database.Folder{*folder})
		if err != nil {
			return nil, err
		}
		listing.Folder = &header[0]
		folderID = &folder.ID
	}

	folders, files, err := s.store.ListChildren(folderID, userID, false)
	if err != nil {
		return nil, err
	}
	parentPublic := ""
	if listing.Folder != nil {
		parentPublic = listing.Folder.PublicID
	}
	for i := range folders {
		listing.Folders = append(listing.Folders, treeservice.NewFolderView(&folders[i], parentPublic))
	}
	for i := range files {
		listing.Files = append(listing.Files, treeservice.NewFileView(&files[i], parentPublic))
	}
	return listing, nil
}

func (s *folderService) FolderExists(userID uint, name, parentPublicID string) (bool, error) {
	name, err := treeservice.NormalizeName(name)
	if err != nil {
		return false, err
	}
	parent, err := s.lookupParent(userID, parentPublicID)
	if err != nil {
		return false, err
	}
	var parentID *uint
	if parent != nil {
		parentID = &parent.ID
	}
	return s.store.ExistsByName(name, parentID, userID)
}

func (s *folderService) MoveFolderToTrash(userID uint, publicID string) error {
	folder, err := s.store.GetFolder(publicID, userID, false)
	if err != nil {
		return err
	}
	if err := s.engine.MoveToTrash(folder, s.now()); err != nil {
		s.activity.Record(&userID, activityservice.ActionDeleteFolder, activityservice.StatusFailed, folder.Name)
		return err
	}
	s.activity.Record(&userID, activityservice.ActionDeleteFolder, activityservice.StatusSuccess, folder.Name)
	return nil
}

func (s *folderService) ExportFolder(userID uint, publicID string) (*Archive, error) {
	folder, err := s.store.GetFolder(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	return s.engine.ExportArchive(folder)
}

// lookupParent 解析父文件夹参数，顶层返回 nil
func (s *folderService) lookupParent(userID uint, parentPublicID string) (*database.Folder, error) {
	if isRoot(parentPublicID) {
		return nil, nil
	}
	parent, err := s.store.GetFolder(parentPublicID, userID, false)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewWithDetails(apperrors.ErrFolderNotFound,
				apperrors.GetErrorMessage(apperrors.ErrFolderNotFound), "parent folder not found")
		}
		return nil, err
	}
	return parent, nil
}

func isRoot(publicID string) bool {
	publicID = strings.TrimSpace(publicID)
	return publicID == "" || strings.EqualFold(publicID, RootID)
}

package service

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// Engine 目录树级联操作接口
// 每个操作都持有所属用户的锁，并在单个事务内完成数据库变更
type Engine interface {
	// MoveToTrash 将文件夹及其所有有效后代标记为已删除
	// 已删除的后代保留原删除时间；文件夹本身已在回收站时沿用其删除时间，只补齐遗漏的有效后代
	// 不涉及物理文件
	MoveToTrash(folder *database.Folder, at time.Time) error

	// Restore 恢复文件夹及其全部后代
	// 文件夹在加锁后已被恢复或删除时返回 ErrFolderNotFound；
	// 父文件夹不再有效时（已删除或不存在），文件夹被移到顶层
	Restore(folder *database.Folder) error

	// PermanentDelete 永久删除回收站中的文件夹子树
	// 文件夹在加锁后已被恢复或删除时返回 ErrFolderNotFound；
	// 先解析所有物理路径，任何越界路径都会在修改前终止操作；
	// 之后按先子后父删除数据库记录和分享链接；物理文件先在事务内改名，
	// 提交后才真正删除（已不存在的文件忽略），改名失败或提交失败时事务回滚并还原文件
	PermanentDelete(folder *database.Folder) error

	// RestoreFile 恢复单个文件，所在文件夹不再有效时移到顶层
	// 文件在加锁后已被恢复或删除时返回 ErrFileNotFound
	RestoreFile(file *database.File) error

	// PurgeFile 永久删除回收站中的单个文件及其分享链接
	PurgeFile(file *database.File) error

	// PurgeUser 删除用户的全部分享、文件、文件夹记录和物理目录
	PurgeUser(userID uint) error

	// ExportArchive 将文件夹下的有效内容打包为zip临时文件
	// 条目以文件夹名为根，使用 "/" 分隔；物理文件缺失时跳过
	ExportArchive(folder *database.Folder) (*Archive, error)
}

// engine 级联操作实现
type engine struct {
	store    treeservice.Store
	resolver storageservice.PathResolver
	locker   *UserLocker
	tempDir  string
}

// NewEngine 创建级联操作引擎
// 参数:
//   - store: 目录树存储
//   - resolver: 物理路径解析器
//   - locker: 用户锁，同一进程内的所有级联操作必须共享同一个实例
//   - tempDir: 打包导出使用的临时目录，为空时使用系统临时目录
func NewEngine(store treeservice.Store, resolver storageservice.PathResolver, locker *UserLocker, tempDir string) Engine {
	return &engine{
		store:    store,
		resolver: resolver,
		locker:   locker,
		tempDir:  tempDir,
	}
}

func (e *engine) MoveToTrash(folder *database.Folder, at time.Time) error {
	defer e.locker.Lock(folder.UserID)()

	stamp := at.UTC()
	if folder.DeletedAt != nil {
		stamp = *folder.DeletedAt
	}

	var folderIDs, fileIDs []uint
	err := e.store.Transaction(func(tx treeservice.Store) error {
		tree, err := tx.CollectSubtree(folder)
		if err != nil {
			return err
		}
		for _, f := range tree.Folders {
			if f.IsLive() {
				folderIDs = append(folderIDs, f.ID)
			}
		}
		for _, f := range tree.Files {
			if f.IsLive() {
				fileIDs = append(fileIDs, f.ID)
			}
		}
		if err := tx.MarkFoldersDeleted(folderIDs, &stamp); err != nil {
			return err
		}
		return tx.MarkFilesDeleted(fileIDs, &stamp)
	})
	if err != nil {
		logger.Errorf("[目录树] 移入回收站失败: folder=%s, err=%v", folder.PublicID, err)
		return err
	}

	folder.DeletedAt = &stamp
	logger.WithFields(map[string]interface{}{
		"folder":  folder.PublicID,
		"user_id": folder.UserID,
		"folders": len(folderIDs),
		"files":   len(fileIDs),
	}).Info("[目录树] 已移入回收站")
	return nil
}

func (e *engine) Restore(folder *database.Folder) error {
	defer e.locker.Lock(folder.UserID)()

	var parentID *uint
	err := e.store.Transaction(func(tx treeservice.Store) error {
		current, err := tx.GetFolderByID(folder.ID)
		if err != nil {
			return err
		}
		if current.IsLive() {
			return apperrors.FromCode(apperrors.ErrFolderNotFound)
		}
		parentID = current.ParentID
		if parentID != nil {
			live, err := tx.IsFolderLive(*parentID)
			if err != nil {
				return err
			}
			if !live {
				if err := tx.SetFolderParent(current, nil); err != nil {
					return err
				}
				parentID = nil
			}
		}

		tree, err := tx.CollectSubtree(current)
		if err != nil {
			return err
		}
		var folderIDs, fileIDs []uint
		for _, f := range tree.Folders {
			if !f.IsLive() {
				folderIDs = append(folderIDs, f.ID)
			}
		}
		for _, f := range tree.Files {
			if !f.IsLive() {
				fileIDs = append(fileIDs, f.ID)
			}
		}
		if err := tx.MarkFoldersDeleted(folderIDs, nil); err != nil {
			return err
		}
		return tx.MarkFilesDeleted(fileIDs, nil)
	})
	if err != nil {
		logger.Errorf("[目录树] 恢复失败: folder=%s, err=%v", folder.PublicID, err)
		return err
	}

	folder.ParentID = parentID
	folder.DeletedAt = nil
	logger.Infof("[目录树] 已恢复文件夹: %s (顶层: %t)", folder.PublicID, parentID == nil)
	return nil
}

func (e *engine) PermanentDelete(folder *database.Folder) error {
	defer e.locker.Lock(folder.UserID)()

	var tree *treeservice.Subtree
	var staged []stagedRemoval
	err := e.store.Transaction(func(tx treeservice.Store) error {
		current, err := tx.GetFolderByID(folder.ID)
		if err != nil {
			return err
		}
		if current.IsLive() {
			return apperrors.FromCode(apperrors.ErrFolderNotFound)
		}
		tree, err = tx.CollectSubtree(current)
		if err != nil {
			return err
		}

		paths, err := e.resolveAll(tree.Files)
		if err != nil {
			return err
		}

		folderIDs := tree.FolderIDs()
		fileIDs := tree.FileIDs()
		if err := tx.DeleteSharesFor(fileIDs, folderIDs); err != nil {
			return err
		}
		if err := tx.DeleteFiles(fileIDs); err != nil {
			return err
		}
		// 先子后父
		for i, j := 0, len(folderIDs)-1; i < j; i, j = i+1, j-1 {
			folderIDs[i], folderIDs[j] = folderIDs[j], folderIDs[i]
		}
		if err := tx.DeleteFolders(folderIDs); err != nil {
			return err
		}

		staged, err = stageRemovals(paths)
		return err
	})
	if err != nil {
		restoreStaged(staged)
		logger.Errorf("[目录树] 永久删除失败: folder=%s, err=%v", folder.PublicID, err)
		return err
	}

	finishRemovals(staged)
	e.removeFolderDirs(folder.UserID, tree.Folders)
	logger.WithFields(map[string]interface{}{
		"folder":  folder.PublicID,
		"user_id": folder.UserID,
		"folders": len(tree.Folders),
		"files":   len(tree.Files),
	}).Info("[目录树] 已永久删除")
	return nil
}

func (e *engine) RestoreFile(file *database.File) error {
	defer e.locker.Lock(file.UserID)()

	var folderID *uint
	err := e.store.Transaction(func(tx treeservice.Store) error {
		current, err := tx.GetFileByID(file.ID)
		if err != nil {
			return err
		}
		if current.IsLive() {
			return apperrors.FromCode(apperrors.ErrFileNotFound)
		}
		folderID = current.FolderID
		if folderID != nil {
			live, err := tx.IsFolderLive(*folderID)
			if err != nil {
				return err
			}
			if !live {
				if err := tx.SetFileFolder(current, nil); err != nil {
					return err
				}
				folderID = nil
			}
		}
		return tx.MarkFilesDeleted([]uint{file.ID}, nil)
	})
	if err != nil {
		return err
	}

	file.FolderID = folderID
	file.DeletedAt = nil
	logger.Infof("[目录树] 已恢复文件: %s", file.PublicID)
	return nil
}

func (e *engine) PurgeFile(file *database.File) error {
	defer e.locker.Lock(file.UserID)()

	paths, err := e.resolveAll([]database.File{*file})
	if err != nil {
		return err
	}

	var staged []stagedRemoval
	err = e.store.Transaction(func(tx treeservice.Store) error {
		current, err := tx.GetFileByID(file.ID)
		if err != nil {
			return err
		}
		if current.IsLive() {
			return apperrors.FromCode(apperrors.ErrFileNotFound)
		}
		if err := tx.DeleteSharesFor([]uint{file.ID}, nil); err != nil {
			return err
		}
		if err := tx.DeleteFiles([]uint{file.ID}); err != nil {
			return err
		}
		staged, err = stageRemovals(paths)
		return err
	})
	if err != nil {
		restoreStaged(staged)
		logger.Errorf("[目录树] 永久删除文件失败: file=%s, err=%v", file.PublicID, err)
		return err
	}
	finishRemovals(staged)
	logger.Infof("[目录树] 已永久删除文件: %s", file.PublicID)
	return nil
}

func (e *engine) PurgeUser(userID uint) error {
	defer e.locker.Lock(userID)()

	dir, err := e.resolver.UserDir(userID)
	if err != nil {
		return err
	}

	err = e.store.Transaction(func(tx treeservice.Store) error {
		return tx.DeleteUserContent(userID)
	})
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		logger.Errorf("[目录树] 删除用户目录失败: %s: %v", dir, err)
		return apperrors.WrapCode(apperrors.ErrStorageIO, err)
	}
	logger.Infof("[目录树] 已删除用户 %d 的全部内容", userID)
	return nil
}

func (e *engine) ExportArchive(folder *database.Folder) (*Archive, error) {
	tree, err := e.store.CollectSubtree(folder)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(e.tempDir, "ditdrive-export-*.zip")
	if err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrArchiveFailed, err)
	}
	archive := &Archive{file: tmp, Name: entryName(folder.Name) + ".zip"}

	zw := zip.NewWriter(tmp)
	if err := newArchiveBuilder(e, zw, tree).addFolder(folder, entryName(folder.Name)); err != nil {
		zw.Close()
		archive.Close()
		logger.Errorf("[打包] 导出失败: folder=%s, err=%v", folder.PublicID, err)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.WrapCode(apperrors.ErrArchiveFailed, err)
	}
	if err := zw.Close(); err != nil {
		archive.Close()
		return nil, apperrors.WrapCode(apperrors.ErrArchiveFailed, err)
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		archive.Close()
		return nil, apperrors.WrapCode(apperrors.ErrArchiveFailed, err)
	}
	archive.Size = size
	return archive, nil
}

// resolveAll 解析所有文件的物理路径，任何一个越界即返回错误
func (e *engine) resolveAll(files []database.File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p, err := e.resolver.Resolve(f.UserID, f.StorageFolderID, f.StoredName)
		if err != nil {
			logger.Errorf("[目录树] 文件路径无效: file=%s, stored=%s, err=%v", f.PublicID, f.StoredName, err)
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// removeFolderDirs 清理已删除文件夹对应的空物理目录
func (e *engine) removeFolderDirs(userID uint, folders []database.Folder) {
	for _, f := range folders {
		id := f.ID
		dir, err := e.resolver.FolderDir(userID, &id)
		if err != nil {
			continue
		}
		// 目录非空时 Remove 会失败，仍被其他文件使用的目录因此得以保留
		_ = os.Remove(dir)
	}
}

// tombstoneSuffix 待删除物理文件的临时后缀
const tombstoneSuffix = ".purging"

// stagedRemoval 已改名、等待事务提交后删除的物理文件
type stagedRemoval struct {
	path string
	tomb string
}

// stageRemovals 在事务内将物理文件改名为墓碑文件，已不存在的文件忽略
// 任一文件改名失败时撤销已改名的文件并返回 ErrStorageIO；
// 事务提交后由 finishRemovals 删除，回滚时由 restoreStaged 还原
func stageRemovals(paths []string) ([]stagedRemoval, error) {
	staged := make([]stagedRemoval, 0, len(paths))
	for _, p := range paths {
		tomb := p + tombstoneSuffix
		if err := os.Rename(p, tomb); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			restoreStaged(staged)
			return nil, apperrors.WrapCode(apperrors.ErrStorageIO, fmt.Errorf("remove %s: %w", p, err))
		}
		staged = append(staged, stagedRemoval{path: p, tomb: tomb})
	}
	return staged, nil
}

// restoreStaged 将墓碑文件改回原名
func restoreStaged(staged []stagedRemoval) {
	for _, r := range staged {
		if err := os.Rename(r.tomb, r.path); err != nil {
			logger.Errorf("[目录树] 还原物理文件失败: %s: %v", r.path, err)
		}
	}
}

// finishRemovals 删除墓碑文件，记录已提交，失败只记录日志
func finishRemovals(staged []stagedRemoval) {
	for _, r := range staged {
		if err := os.Remove(r.tomb); err != nil && !os.IsNotExist(err) {
			logger.Errorf("[目录树] 删除物理文件失败: %s: %v", r.tomb, err)
		}
	}
}

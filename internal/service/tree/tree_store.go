package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"gorm.io/gorm"
)

// trashRootCondition 父文件夹为空、已不存在或仍然有效的已删除文件夹，即回收站中子树的根
const trashRootCondition = "(folders.parent_id IS NULL OR NOT EXISTS " +
	"(SELECT 1 FROM folders p WHERE p.id = folders.parent_id AND p.deleted_at IS NOT NULL))"

// trashRootFileCondition 所在文件夹为空、已不存在或仍然有效的已删除文件
const trashRootFileCondition = "(files.folder_id IS NULL OR NOT EXISTS " +
	"(SELECT 1 FROM folders p WHERE p.id = files.folder_id AND p.deleted_at IS NOT NULL))"

// Store 目录树存储接口
// 所有查询都按用户隔离；"有效"视图只包含 deleted_at 为空的记录
type Store interface {
	// Transaction 在单个数据库事务中执行 fn，fn 返回错误或发生panic时回滚
	// fn 内只能使用传入的 Store，不能再使用外层实例
	Transaction(fn func(Store) error) error

	// GetFolder 按公开ID获取用户的文件夹
	// 参数:
	//   - publicID: 文件夹公开ID
	//   - userID: 所属用户
	//   - includeDeleted: 是否包含回收站中的文件夹
	//
	// 返回值:
	//   - 不存在时返回 ErrFolderNotFound
	GetFolder(publicID string, userID uint, includeDeleted bool) (*database.Folder, error)

	// GetTrashedFolder 获取回收站中的文件夹，未删除的文件夹视为不存在
	GetTrashedFolder(publicID string, userID uint) (*database.Folder, error)

	// GetFolderByID 按内部ID获取文件夹，不做用户隔离，仅供分享解析等内部流程使用
	GetFolderByID(id uint) (*database.Folder, error)

	// FindFoldersByIDs 按内部ID批量获取文件夹
	FindFoldersByIDs(ids []uint) ([]database.Folder, error)

	// IsFolderLive 判断文件夹是否存在且未删除
	IsFolderLive(id uint) (bool, error)

	// ListChildren 列出文件夹下的子文件夹和文件，folderID 为 nil 表示顶层
	// 文件夹按名称、文件按文件名升序排列，大小写不敏感
	ListChildren(folderID *uint, userID uint, includeDeleted bool) ([]database.Folder, []database.File, error)

	// ExistsByName 判断同一父目录下是否已有同名有效文件夹（大小写不敏感）
	// 仅用于提示客户端，不构成唯一约束
	ExistsByName(name string, parentID *uint, userID uint) (bool, error)

	// FileExistsByName 判断同一文件夹下是否已有同名有效文件（大小写不敏感）
	FileExistsByName(name string, folderID *uint, userID uint) (bool, error)

	CreateFolder(folder *database.Folder) error
	RenameFolder(folder *database.Folder, name string) error
	SetFolderParent(folder *database.Folder, parentID *uint) error
	// MarkFoldersDeleted 设置文件夹的删除时间，at 为 nil 表示恢复
	MarkFoldersDeleted(ids []uint, at *time.Time) error
	// DeleteFolders 物理删除文件夹记录
	DeleteFolders(ids []uint) error

	// GetFile 按公开ID获取用户的文件
	GetFile(publicID string, userID uint, includeDeleted bool) (*database.File, error)
	// GetTrashedFile 获取回收站中的文件
	GetTrashedFile(publicID string, userID uint) (*database.File, error)
	// GetFileByID 按内部ID获取文件，不做用户隔离
	GetFileByID(id uint) (*database.File, error)

	CreateFile(file *database.File) error
	SetFileFolder(file *database.File, folderID *uint) error
	MarkFilesDeleted(ids []uint, at *time.Time) error
	DeleteFiles(ids []uint) error

	// SumLiveSize 统计用户所有有效文件的总字节数
	SumLiveSize(userID uint) (int64, error)

	// CreateShare 保存分享链接
	CreateShare(share *database.ShareLink) error

	// GetShareByToken 按令牌查找分享链接，不存在返回 ErrShareNotFound
	GetShareByToken(token string) (*database.ShareLink, error)

	// DeleteSharesFor 删除指向给定文件或文件夹的分享链接
	DeleteSharesFor(fileIDs, folderIDs []uint) error

	// DeleteUserContent 删除用户的全部分享链接、文件和文件夹记录
	DeleteUserContent(userID uint) error

	// CollectSubtree 收集以 root 为根的整棵子树（包含已删除的后代）
	CollectSubtree(root *database.Folder) (*Subtree, error)

	// TrashRootFolders 查询回收站中作为子树根的文件夹
	// 参数:
	//   - userID: 为 nil 时查询全部用户
	//   - cutoff: 为 nil 时不限制删除时间，否则只返回 deleted_at < cutoff 的记录
	TrashRootFolders(userID *uint, cutoff *time.Time) ([]database.Folder, error)

	// TrashRootFiles 查询回收站中所在文件夹未被删除的文件，参数同 TrashRootFolders
	TrashRootFiles(userID *uint, cutoff *time.Time) ([]database.File, error)
}

// Subtree 文件夹子树，Folders 按先序排列，第一个元素为根
type Subtree struct {
	Folders []database.Folder
	Files   []database.File
}

// FolderIDs 返回子树中所有文件夹ID（先序）
func (t *Subtree) FolderIDs() []uint {
	ids := make([]uint, 0, len(t.Folders))
	for _, f := range t.Folders {
		ids = append(ids, f.ID)
	}
	return ids
}

// FileIDs 返回子树中所有文件ID
func (t *Subtree) FileIDs() []uint {
	ids := make([]uint, 0, len(t.Files))
	for _, f := range t.Files {
		ids = append(ids, f.ID)
	}
	return ids
}

// store 目录树存储实现
type store struct {
	db *gorm.DB
}

// NewStore 创建目录树存储
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Transaction(fn func(Store) error) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseTransaction, tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&store{db: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseTransaction, err)
	}
	return nil
}

func (s *store) GetFolder(publicID string, userID uint, includeDeleted bool) (*database.Folder, error) {
	q := s.db.Where("public_id = ? AND user_id = ?", publicID, userID)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	return firstFolder(q)
}

func (s *store) GetTrashedFolder(publicID string, userID uint) (*database.Folder, error) {
	return firstFolder(s.db.Where("public_id = ? AND user_id = ? AND deleted_at IS NOT NULL", publicID, userID))
}

func (s *store) GetFolderByID(id uint) (*database.Folder, error) {
	return firstFolder(s.db.Where("id = ?", id))
}

func (s *store) FindFoldersByIDs(ids []uint) ([]database.Folder, error) {
	var folders []database.Folder
	if len(ids) == 0 {
		return folders, nil
	}
	if err := s.db.Where("id IN ?", ids).Find(&folders).Error; err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return folders, nil
}

func (s *store) IsFolderLive(id uint) (bool, error) {
	var count int64
	err := s.db.Model(&database.Folder{}).Where("id = ? AND deleted_at IS NULL", id).Count(&count).Error
	if err != nil {
		return false, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return count > 0, nil
}

func (s *store) ListChildren(folderID *uint, userID uint, includeDeleted bool) ([]database.Folder, []database.File, error) {
	fq := s.db.Where("user_id = ?", userID)
	gq := s.db.Where("user_id = ?", userID)
	if folderID == nil {
		fq = fq.Where("parent_id IS NULL")
		gq = gq.Where("folder_id IS NULL")
	} else {
		fq = fq.Where("parent_id = ?", *folderID)
		gq = gq.Where("folder_id = ?", *folderID)
	}
	if !includeDeleted {
		fq = fq.Where("deleted_at IS NULL")
		gq = gq.Where("deleted_at IS NULL")
	}

	var folders []database.Folder
	if err := fq.Order("LOWER(name) ASC").Order("id ASC").Find(&folders).Error; err != nil {
		return nil, nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	var files []database.File
	if err := gq.Order("LOWER(file_name) ASC").Order("id ASC").Find(&files).Error; err != nil {
		return nil, nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return folders, files, nil
}

func (s *store) ExistsByName(name string, parentID *uint, userID uint) (bool, error) {
	q := s.db.Model(&database.Folder{}).
		Where("user_id = ? AND deleted_at IS NULL AND LOWER(name) = ?", userID, strings.ToLower(name))
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	return exists(q)
}

func (s *store) FileExistsByName(name string, folderID *uint, userID uint) (bool, error) {
	q := s.db.Model(&database.File{}).
		Where("user_id = ? AND deleted_at IS NULL AND LOWER(file_name) = ?", userID, strings.ToLower(name))
	if folderID == nil {
		q = q.Where("folder_id IS NULL")
	} else {
		q = q.Where("folder_id = ?", *folderID)
	}
	return exists(q)
}

func (s *store) CreateFolder(folder *database.Folder) error {
	if err := s.db.Create(folder).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseInsert, err)
	}
	return nil
}

func (s *store) RenameFolder(folder *database.Folder, name string) error {
	if err := s.db.Model(folder).Update("name", name).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	return nil
}

func (s *store) SetFolderParent(folder *database.Folder, parentID *uint) error {
	if err := s.db.Model(folder).Update("parent_id", parentID).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	folder.ParentID = parentID
	return nil
}

func (s *store) MarkFoldersDeleted(ids []uint, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Model(&database.Folder{}).Where("id IN ?", ids).Update("deleted_at", at).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	return nil
}

func (s *store) DeleteFolders(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Where("id IN ?", ids).Delete(&database.Folder{}).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}
	return nil
}

func (s *store) GetFile(publicID string, userID uint, includeDeleted bool) (*database.File, error) {
	q := s.db.Where("public_id = ? AND user_id = ?", publicID, userID)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	return firstFile(q)
}

func (s *store) GetTrashedFile(publicID string, userID uint) (*database.File, error) {
	return firstFile(s.db.Where("public_id = ? AND user_id = ? AND deleted_at IS NOT NULL", publicID, userID))
}

func (s *store) GetFileByID(id uint) (*database.File, error) {
	return firstFile(s.db.Where("id = ?", id))
}

func (s *store) CreateFile(file *database.File) error {
	if err := s.db.Create(file).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseInsert, err)
	}
	return nil
}

func (s *store) SetFileFolder(file *database.File, folderID *uint) error {
	if err := s.db.Model(file).Update("folder_id", folderID).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	file.FolderID = folderID
	return nil
}

func (s *store) MarkFilesDeleted(ids []uint, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Model(&database.File{}).Where("id IN ?", ids).Update("deleted_at", at).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseUpdate, err)
	}
	return nil
}

func (s *store) DeleteFiles(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Where("id IN ?", ids).Delete(&database.File{}).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}
	return nil
}

func (s *store) SumLiveSize(userID uint) (int64, error) {
	var total int64
	err := s.db.Model(&database.File{}).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return total, nil
}

func (s *store) CreateShare(share *database.ShareLink) error {
	if err := s.db.Create(share).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseInsert, err)
	}
	return nil
}

func (s *store) GetShareByToken(token string) (*database.ShareLink, error) {
	var share database.ShareLink
	if err := s.db.Where("token = ?", token).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.FromCode(apperrors.ErrShareNotFound)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return &share, nil
}

func (s *store) DeleteSharesFor(fileIDs, folderIDs []uint) error {
	if len(fileIDs) > 0 {
		if err := s.db.Where("file_id IN ?", fileIDs).Delete(&database.ShareLink{}).Error; err != nil {
			return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
		}
	}
	if len(folderIDs) > 0 {
		if err := s.db.Where("folder_id IN ?", folderIDs).Delete(&database.ShareLink{}).Error; err != nil {
			return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
		}
	}
	return nil
}

func (s *store) DeleteUserContent(userID uint) error {
	fileIDs := s.db.Model(&database.File{}).Select("id").Where("user_id = ?", userID)
	folderIDs := s.db.Model(&database.Folder{}).Select("id").Where("user_id = ?", userID)
	if err := s.db.Where("(user_id = ? OR file_id IN (?) OR folder_id IN (?))", userID, fileIDs, folderIDs).
		Delete(&database.ShareLink{}).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}
	if err := s.db.Where("user_id = ?", userID).Delete(&database.File{}).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}
	if err := s.db.Where("user_id = ?", userID).Delete(&database.Folder{}).Error; err != nil {
		return apperrors.WrapCode(apperrors.ErrDatabaseDelete, err)
	}
	return nil
}

func (s *store) CollectSubtree(root *database.Folder) (*Subtree, error) {
	tree := &Subtree{Folders: []database.Folder{*root}}
	level := []uint{root.ID}

	// 逐层展开，目录树无环，层数有限
	for len(level) > 0 {
		var files []database.File
		if err := s.db.Where("user_id = ? AND folder_id IN ?", root.UserID, level).
			Order("id ASC").Find(&files).Error; err != nil {
			return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
		}
		tree.Files = append(tree.Files, files...)

		var children []database.Folder
		if err := s.db.Where("user_id = ? AND parent_id IN ?", root.UserID, level).
			Order("id ASC").Find(&children).Error; err != nil {
			return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
		}
		level = level[:0]
		for _, child := range children {
			tree.Folders = append(tree.Folders, child)
			level = append(level, child.ID)
		}
	}
	return tree, nil
}

func (s *store) TrashRootFolders(userID *uint, cutoff *time.Time) ([]database.Folder, error) {
	q := s.db.Where("folders.deleted_at IS NOT NULL").Where(trashRootCondition)
	if userID != nil {
		q = q.Where("folders.user_id = ?", *userID)
	}
	if cutoff != nil {
		q = q.Where("folders.deleted_at < ?", cutoff.UTC())
	}
	var folders []database.Folder
	if err := q.Order("folders.deleted_at DESC").Order("folders.id ASC").Find(&folders).Error; err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return folders, nil
}

func (s *store) TrashRootFiles(userID *uint, cutoff *time.Time) ([]database.File, error) {
	q := s.db.Where("files.deleted_at IS NOT NULL").Where(trashRootFileCondition)
	if userID != nil {
		q = q.Where("files.user_id = ?", *userID)
	}
	if cutoff != nil {
		q = q.Where("files.deleted_at < ?", cutoff.UTC())
	}
	var files []database.File
	if err := q.Order("files.deleted_at DESC").Order("files.id ASC").Find(&files).Error; err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return files, nil
}

func firstFolder(q *gorm.DB) (*database.Folder, error) {
	var folder database.Folder
	if err := q.First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.FromCode(apperrors.ErrFolderNotFound)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return &folder, nil
}

func firstFile(q *gorm.DB) (*database.File, error) {
	var file database.File
	if err := q.First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.FromCode(apperrors.ErrFileNotFound)
		}
		return nil, apperrors.WrapCode(apperrors.ErrDatabaseQuery, err)
	}
	return &file, nil
}

func exists(q *gorm.DB) (bool, error) {
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.WrapCode(apperrors.ErrDatabaseQuery, fmt.Errorf("count: %w", err))
	}
	return count > 0, nil
}

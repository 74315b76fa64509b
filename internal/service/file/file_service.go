// Package service 提供文件传输相关的业务逻辑服务
// 包含上传、查看/下载、软删除和空间统计，这些都是不涉及级联的单条记录操作
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// sniffLen 内容类型探测读取的字节数
const sniffLen = 3072

// defaultContentType 无法识别时使用的内容类型
const defaultContentType = "application/octet-stream"

// UploadRequest 上传请求
type UploadRequest struct {
	UserID uint
	// FolderPublicID 目标文件夹公开ID，为空或 "root" 表示顶层
	FolderPublicID string
	// FileName 客户端提供的原始文件名
	FileName string
	// ContentType 客户端声明的内容类型，可为空
	ContentType string
	// Content 文件数据流
	Content io.Reader
}

// Content 打开的文件内容，支持 Seek 以便处理 Range 请求
// 使用完毕后必须调用 Close
type Content struct {
	*os.File
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// FileService 文件服务接口
type FileService interface {
	// Upload 上传文件
	// 参数:
	//   - ctx: 请求上下文，取消时中止写入
	//   - req: 上传请求
	//
	// 返回值:
	//   - *treeservice.FileView: 新建的文件信息
	//   - error: 目标文件夹不可用返回 ErrFolderNotFound，超过大小限制返回 ErrFileSizeTooLarge，
	//     写入失败返回 ErrFileWriteFailed；任何失败都不会留下记录或残留文件
	// 功能:
	//   - 生成不可猜测的存储名并保留原始扩展名
	//   - 先写入同目录下的临时文件，完成后重命名
	//   - 客户端未提供可用的内容类型时根据内容探测
	Upload(ctx context.Context, req *UploadRequest) (*treeservice.FileView, error)

	// GetFile 获取用户的有效文件信息
	GetFile(userID uint, publicID string) (*treeservice.FileView, error)

	// Open 打开用户的有效文件，物理文件缺失时返回 ErrFileNotFound
	Open(userID uint, publicID string) (*Content, error)

	// OpenRecord 打开指定文件记录的内容，不做归属检查，供分享链接使用
	OpenRecord(file *database.File) (*Content, error)

	// SoftDelete 将文件移入回收站，不影响物理文件
	SoftDelete(userID uint, publicID string) error

	// Usage 统计用户有效文件的总字节数
	Usage(userID uint) (int64, error)
}

// fileService 文件服务实现
type fileService struct {
	store         treeservice.Store
	resolver      storageservice.PathResolver
	locker        *folderservice.UserLocker
	activity      activityservice.ActivityService
	maxUploadSize int64
	now           func() time.Time
}

// NewFileService 创建文件服务实例
// 参数:
//   - maxUploadSize: 单个文件最大字节数，0 表示不限制
func NewFileService(store treeservice.Store, resolver storageservice.PathResolver, locker *folderservice.UserLocker,
	activity activityservice.ActivityService, maxUploadSize int64) FileService {
	logger.Infof("[文件服务] 初始化完成，最大上传大小: %d 字节", maxUploadSize)
	return &fileService{
		store:         store,
		resolver:      resolver,
		locker:        locker,
		activity:      activity,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
	}
}

func (s *fileService) Upload(ctx context.Context, req *UploadRequest) (*treeservice.FileView, error) {
	fileName, err := treeservice.NormalizeFileName(req.FileName)
	if err != nil {
		return nil, err
	}

	folder, err := s.targetFolder(req.UserID, req.FolderPublicID)
	if err != nil {
		return nil, err
	}
	var folderID *uint
	folderPublic := ""
	if folder != nil {
		folderID = &folder.ID
		folderPublic = folder.PublicID
	}

	record := &database.File{
		PublicID:        treeservice.NewPublicID(),
		UserID:          req.UserID,
		FolderID:        folderID,
		StorageFolderID: folderID,
		FileName:        fileName,
		StoredName:      treeservice.NewStoredName(fileName),
	}

	path, err := s.resolver.Resolve(record.UserID, record.StorageFolderID, record.StoredName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.WrapCode(apperrors.ErrStorageIO, err)
	}

	contentType, body, err := detectContentType(req.ContentType, &contextReader{ctx: ctx, r: req.Content})
	if err != nil {
		s.uploadFailed(record, err)
		return nil, apperrors.WrapCode(apperrors.ErrFileUploadFailed, err)
	}
	record.ContentType = contentType

	size, err := s.writeFile(path, body)
	if err != nil {
		s.uploadFailed(record, err)
		return nil, err
	}
	record.Size = size

	if err := s.createRecord(record); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Errorf("[文件服务] 清理已写入的文件失败: %s: %v", path, rmErr)
		}
		s.uploadFailed(record, err)
		return nil, err
	}

	s.activity.Record(&record.UserID, activityservice.ActionUpload, activityservice.StatusSuccess, record.FileName)
	logger.Infof("[文件服务] 上传完成: %s (%s, %d 字节)", record.FileName, record.PublicID, record.Size)
	view := treeservice.NewFileView(record, folderPublic)
	return &view, nil
}

// writeFile 写入临时文件后重命名为最终路径，失败时删除临时文件
func (s *fileService) writeFile(path string, body io.Reader) (int64, error) {
	partial := path + ".part"
	out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, apperrors.WrapCode(apperrors.ErrFileWriteFailed, err)
	}

	src := body
	if s.maxUploadSize > 0 {
		src = io.LimitReader(body, s.maxUploadSize+1)
	}
	written, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	fail := func(err error) (int64, error) {
		if rmErr := os.Remove(partial); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Errorf("[文件服务] 清理临时文件失败: %s: %v", partial, rmErr)
		}
		return 0, err
	}

	switch {
	case copyErr != nil:
		return fail(apperrors.WrapCode(apperrors.ErrFileWriteFailed, copyErr))
	case closeErr != nil:
		return fail(apperrors.WrapCode(apperrors.ErrFileWriteFailed, closeErr))
	case s.maxUploadSize > 0 && written > s.maxUploadSize:
		return fail(apperrors.NewWithDetails(apperrors.ErrFileSizeTooLarge, apperrors.GetErrorMessage(apperrors.ErrFileSizeTooLarge),
			fmt.Sprintf("limit is %d bytes", s.maxUploadSize)))
	}

	if err := os.Rename(partial, path); err != nil {
		return fail(apperrors.WrapCode(apperrors.ErrFileWriteFailed, err))
	}
	return written, nil
}

// createRecord 在用户锁内确认目标文件夹仍然有效后创建记录
func (s *fileService) createRecord(record *database.File) error {
	defer s.locker.Lock(record.UserID)()

	if record.FolderID != nil {
		live, err := s.store.IsFolderLive(*record.FolderID)
		if err != nil {
			return err
		}
		if !live {
			return apperrors.FromCode(apperrors.ErrFolderNotFound)
		}
	}
	return s.store.CreateFile(record)
}

func (s *fileService) uploadFailed(record *database.File, err error) {
	logger.Warnf("[文件服务] 上传失败: %s: %v", record.FileName, err)
	s.activity.Record(&record.UserID, activityservice.ActionUpload, activityservice.StatusFailed, record.FileName)
}

func (s *fileService) GetFile(userID uint, publicID string) (*treeservice.FileView, error) {
	file, err := s.store.GetFile(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	views, err := treeservice.FileViews(s.store, []database.File{*file})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *fileService) Open(userID uint, publicID string) (*Content, error) {
	file, err := s.store.GetFile(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	return s.OpenRecord(file)
}

func (s *fileService) OpenRecord(file *database.File) (*Content, error) {
	path, err := s.resolver.Resolve(file.UserID, file.StorageFolderID, file.StoredName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("[文件服务] 物理文件缺失: %s (%s)", file.PublicID, path)
			return nil, apperrors.NewWithDetails(apperrors.ErrFileNotFound,
				apperrors.GetErrorMessage(apperrors.ErrFileNotFound), "file missing on disk")
		}
		return nil, apperrors.WrapCode(apperrors.ErrFileReadFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.WrapCode(apperrors.ErrFileReadFailed, err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Content{
		File:        f,
		Name:        file.FileName,
		ContentType: contentType,
		Size:        info.Size(),
		ModTime:     file.UploadedAt,
	}, nil
}

func (s *fileService) SoftDelete(userID uint, publicID string) error {
	file, err := s.store.GetFile(publicID, userID, false)
	if err != nil {
		return err
	}
	at := s.now().UTC()
	if err := s.store.MarkFilesDeleted([]uint{file.ID}, &at); err != nil {
		s.activity.Record(&userID, activityservice.ActionDeleteFile, activityservice.StatusFailed, file.FileName)
		return err
	}
	s.activity.Record(&userID, activityservice.ActionDeleteFile, activityservice.StatusSuccess, file.FileName)
	return nil
}

func (s *fileService) Usage(userID uint) (int64, error) {
	return s.store.SumLiveSize(userID)
}

// targetFolder 解析上传目标文件夹，顶层返回 nil
func (s *fileService) targetFolder(userID uint, publicID string) (*database.Folder, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" || strings.EqualFold(publicID, folderservice.RootID) {
		return nil, nil
	}
	return s.store.GetFolder(publicID, userID, false)
}

// detectContentType 确定内容类型
// 客户端声明了具体类型时直接使用，否则读取开头部分进行探测；返回的 Reader 包含已读取的字节
func detectContentType(declared string, r io.Reader) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, defaultContentType) {
		return declared, r, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]

	contentType := defaultContentType
	if n > 0 {
		contentType = mimetype.Detect(head).String()
	}
	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}

// contextReader 上下文取消后读取立即失败
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Package service 提供分享链接的创建与匿名解析
// 令牌即授权，解析时不检查访问者身份，但物理路径仍经过存储根目录约束
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	fileservice "github.com/weiwangfds/ditdrive/internal/service/file"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// 分享类型
const (
	KindFile   = "file"
	KindFolder = "folder"
)

// ShareResult 创建分享的返回结果
type ShareResult struct {
	Token string `json:"token"`
	URL   string `json:"url"`
	Kind  string `json:"kind"`
}

// ShareService 分享服务接口
type ShareService interface {
	// CreateFileShare 为用户拥有的有效文件创建分享链接
	// 每次调用都生成新的令牌
	CreateFileShare(ctx context.Context, userID uint, publicID string) (*ShareResult, error)

	// CreateFolderShare 为用户拥有的有效文件夹创建分享链接
	CreateFolderShare(ctx context.Context, userID uint, publicID string) (*ShareResult, error)

	// ResolveFileShare 通过令牌打开被分享的文件
	// 令牌不存在、类型不符或文件已不可用时返回 ErrShareNotFound
	ResolveFileShare(ctx context.Context, token string) (*fileservice.Content, error)

	// ResolveFolderShare 通过令牌导出被分享文件夹的zip，调用方负责关闭
	ResolveFolderShare(ctx context.Context, token string) (*folderservice.Archive, error)

	// BuildURL 根据基础地址拼接分享链接
	BuildURL(kind, token string) string
}

// shareService 分享服务实现
type shareService struct {
	store    treeservice.Store
	files    fileservice.FileService
	engine   folderservice.Engine
	cache    ShareCache
	activity activityservice.ActivityService
	baseURL  string
}

// NewShareService 创建分享服务
// 参数:
//   - cache: 令牌缓存，为 nil 时不缓存
//   - baseURL: 分享链接的基础地址
func NewShareService(store treeservice.Store, files fileservice.FileService, engine folderservice.Engine,
	cache ShareCache, activity activityservice.ActivityService, baseURL string) ShareService {
	if cache == nil {
		cache = NewNoopCache()
	}
	return &shareService{
		store:    store,
		files:    files,
		engine:   engine,
		cache:    cache,
		activity: activity,
		baseURL:  baseURL,
	}
}

func (s *shareService) CreateFileShare(ctx context.Context, userID uint, publicID string) (*ShareResult, error) {
	file, err := s.store.GetFile(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, &database.ShareLink{UserID: userID, FileID: &file.ID}, file.FileName)
}

func (s *shareService) CreateFolderShare(ctx context.Context, userID uint, publicID string) (*ShareResult, error) {
	folder, err := s.store.GetFolder(publicID, userID, false)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, &database.ShareLink{UserID: userID, FolderID: &folder.ID}, folder.Name)
}

func (s *shareService) create(ctx context.Context, share *database.ShareLink, name string) (*ShareResult, error) {
	share.Token = NewToken()
	if err := s.store.CreateShare(share); err != nil {
		s.activity.Record(&share.UserID, activityservice.ActionCreateShare, activityservice.StatusFailed, name)
		return nil, err
	}
	s.cache.Set(ctx, share)
	s.activity.Record(&share.UserID, activityservice.ActionCreateShare, activityservice.StatusSuccess, name)

	kind := share.Kind()
	logger.WithFields(map[string]interface{}{
		"user_id": share.UserID,
		"kind":    kind,
	}).Info("[分享] 已创建分享链接")
	return &ShareResult{Token: share.Token, URL: s.BuildURL(kind, share.Token), Kind: kind}, nil
}

func (s *shareService) ResolveFileShare(ctx context.Context, token string) (*fileservice.Content, error) {
	share, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.FileID == nil {
		return nil, apperrors.FromCode(apperrors.ErrShareNotFound)
	}

	file, err := s.store.GetFileByID(*share.FileID)
	if err != nil || !file.IsLive() {
		return nil, s.stale(ctx, token, err)
	}
	return s.files.OpenRecord(file)
}

func (s *shareService) ResolveFolderShare(ctx context.Context, token string) (*folderservice.Archive, error) {
	share, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if share.FolderID == nil {
		return nil, apperrors.FromCode(apperrors.ErrShareNotFound)
	}

	folder, err := s.store.GetFolderByID(*share.FolderID)
	if err != nil || !folder.IsLive() {
		return nil, s.stale(ctx, token, err)
	}
	return s.engine.ExportArchive(folder)
}

// lookup 先查缓存，未命中时查数据库并回填
func (s *shareService) lookup(ctx context.Context, token string) (*database.ShareLink, error) {
	token = strings.TrimSpace(token)
	if !validToken(token) {
		return nil, apperrors.FromCode(apperrors.ErrShareNotFound)
	}
	if share, ok := s.cache.Get(ctx, token); ok {
		return share, nil
	}
	share, err := s.store.GetShareByToken(token)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, share)
	return share, nil
}

// stale 目标已删除或进入回收站，清理缓存并统一返回 ErrShareNotFound
func (s *shareService) stale(ctx context.Context, token string, err error) error {
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	s.cache.Delete(ctx, token)
	return apperrors.FromCode(apperrors.ErrShareNotFound)
}

func (s *shareService) BuildURL(kind, token string) string {
	base := strings.TrimRight(strings.TrimSpace(s.baseURL), "/")
	if strings.HasSuffix(base, "/s") {
		return base + "/" + kind + "/" + token
	}
	return base + "/s/" + kind + "/" + token
}

// NewToken 生成32位十六进制分享令牌
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validToken 过滤明显无效的令牌，避免无意义的查询
func validToken(token string) bool {
	if token == "" || len(token) > 64 {
		return false
	}
	for _, r := range token {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
)

// PathResolver 物理路径解析器接口
// 所有对存储根目录的读写删除都必须先经过解析器，保证路径不会越出根目录
type PathResolver interface {
	// Root 返回规范化后的存储根目录
	Root() string

	// UserDir 返回用户的物理目录 root/user_<id>
	UserDir(userID uint) (string, error)

	// FolderDir 返回文件夹的物理目录 root/user_<id>/folder_<id|root>
	// 参数:
	//   - userID: 用户ID
	//   - folderID: 文件夹内部ID，nil 表示顶层目录 folder_root
	FolderDir(userID uint, folderID *uint) (string, error)

	// Resolve 返回文件的物理路径 root/user_<id>/folder_<id|root>/<storedName>
	// 路径经过规范化（清理 ".." 并解析已存在部分的符号链接），
	// 结果不在根目录之内时返回 ErrPathViolation
	Resolve(userID uint, folderID *uint, storedName string) (string, error)
}

// pathResolver 路径解析器实现
type pathResolver struct {
	root string
}

// NewPathResolver 创建路径解析器，根目录不存在时自动创建
func NewPathResolver(root string) (PathResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %q: %w", abs, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize storage root %q: %w", abs, err)
	}
	logger.Infof("[存储] 存储根目录: %s", canonical)
	return &pathResolver{root: canonical}, nil
}

func (r *pathResolver) Root() string {
	return r.root
}

func (r *pathResolver) UserDir(userID uint) (string, error) {
	return r.confine(filepath.Join(r.root, userSegment(userID)))
}

func (r *pathResolver) FolderDir(userID uint, folderID *uint) (string, error) {
	return r.confine(filepath.Join(r.root, userSegment(userID), folderSegment(folderID)))
}

func (r *pathResolver) Resolve(userID uint, folderID *uint, storedName string) (string, error) {
	// 存储名必须是单个路径分量
	if storedName == "" || storedName == "." || storedName == ".." ||
		strings.ContainsAny(storedName, `/\`) || strings.ContainsRune(storedName, 0) {
		return "", violation(storedName)
	}
	return r.confine(filepath.Join(r.root, userSegment(userID), folderSegment(folderID), storedName))
}

// confine 规范化路径并确认其严格位于根目录之内
func (r *pathResolver) confine(path string) (string, error) {
	canonical, err := canonicalize(path)
	if err != nil {
		return "", apperrors.WrapCode(apperrors.ErrStorageIO, err)
	}
	if !within(r.root, canonical) {
		logger.Warnf("[存储] 拒绝越界路径: %s -> %s", path, canonical)
		return "", violation(path)
	}
	return canonical, nil
}

// canonicalize 解析路径中已存在部分的符号链接，不存在的尾部原样拼接
func canonicalize(path string) (string, error) {
	path = filepath.Clean(path)
	existing := path
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

// within 判断 path 是否严格位于 root 之下
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func violation(path string) error {
	return apperrors.NewWithDetails(apperrors.ErrPathViolation, apperrors.GetErrorMessage(apperrors.ErrPathViolation), path)
}

func userSegment(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

func folderSegment(folderID *uint) string {
	if folderID == nil {
		return "folder_root"
	}
	return fmt.Sprintf("folder_%d", *folderID)
}

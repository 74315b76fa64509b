package service

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/logger"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// Archive 导出的zip临时文件
// 读取完成或中途放弃后必须调用 Close，Close 会删除临时文件
type Archive struct {
	file *os.File
	// Name 建议的下载文件名
	Name string
	// Size 字节数
	Size int64
}

// Read 实现 io.Reader
func (a *Archive) Read(p []byte) (int, error) {
	return a.file.Read(p)
}

// Seek 实现 io.Seeker
func (a *Archive) Seek(offset int64, whence int) (int64, error) {
	return a.file.Seek(offset, whence)
}

// Close 关闭并删除临时文件，可重复调用
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	name := a.file.Name()
	closeErr := a.file.Close()
	a.file = nil
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return closeErr
}

// archiveBuilder 递归写入zip条目
type archiveBuilder struct {
	engine   *engine
	zw       *zip.Writer
	children map[uint][]database.Folder
	files    map[uint][]database.File
}

// newArchiveBuilder 按父目录整理子树中的有效文件夹和文件
func newArchiveBuilder(e *engine, zw *zip.Writer, tree *treeservice.Subtree) *archiveBuilder {
	b := &archiveBuilder{
		engine:   e,
		zw:       zw,
		children: make(map[uint][]database.Folder),
		files:    make(map[uint][]database.File),
	}
	for _, f := range tree.Folders[1:] {
		if f.IsLive() && f.ParentID != nil {
			b.children[*f.ParentID] = append(b.children[*f.ParentID], f)
		}
	}
	for _, f := range tree.Files {
		if f.IsLive() && f.FolderID != nil {
			b.files[*f.FolderID] = append(b.files[*f.FolderID], f)
		}
	}
	for _, list := range b.children {
		sort.SliceStable(list, func(i, j int) bool { return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name) })
	}
	for _, list := range b.files {
		sort.SliceStable(list, func(i, j int) bool { return strings.ToLower(list[i].FileName) < strings.ToLower(list[j].FileName) })
	}
	return b
}

// addFolder 写入文件夹目录条目，再依次写入文件和子文件夹
func (b *archiveBuilder) addFolder(folder *database.Folder, prefix string) error {
	if _, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     prefix + "/",
		Method:   zip.Store,
		Modified: folder.CreatedAt,
	}); err != nil {
		return err
	}

	used := make(map[string]bool)
	for i := range b.files[folder.ID] {
		file := &b.files[folder.ID][i]
		if err := b.addFile(file, path.Join(prefix, uniqueEntryName(used, entryName(file.FileName)))); err != nil {
			return err
		}
	}
	for i := range b.children[folder.ID] {
		child := &b.children[folder.ID][i]
		if err := b.addFolder(child, path.Join(prefix, uniqueEntryName(used, entryName(child.Name)))); err != nil {
			return err
		}
	}
	return nil
}

// addFile 写入单个文件，物理文件缺失时跳过
func (b *archiveBuilder) addFile(file *database.File, name string) error {
	p, err := b.engine.resolver.Resolve(file.UserID, file.StorageFolderID, file.StoredName)
	if err != nil {
		return err
	}
	src, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("[打包] 物理文件缺失，跳过: %s (%s)", file.PublicID, p)
		} else {
			logger.Errorf("[打包] 无法读取文件，跳过: %s: %v", file.PublicID, err)
		}
		return nil
	}
	defer src.Close()

	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: file.UploadedAt,
	})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return apperrors.WrapCode(apperrors.ErrStorageIO, fmt.Errorf("copy %s: %w", file.PublicID, err))
	}
	return nil
}

// entryName 条目名不能包含路径分隔符
func entryName(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// uniqueEntryName 同一目录下重名时追加序号，例如 a (2).txt
func uniqueEntryName(used map[string]bool, name string) string {
	key := strings.ToLower(name)
	if !used[key] {
		used[key] = true
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if !used[strings.ToLower(candidate)] {
			used[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}

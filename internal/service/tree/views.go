package service

import (
	"time"

	"github.com/weiwangfds/ditdrive/internal/database"
)

// FolderView 对外展示的文件夹信息，不包含内部ID
type FolderView struct {
	PublicID       string     `json:"publicId"`
	Name           string     `json:"name"`
	ParentPublicID *string    `json:"parentPublicId"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// FileView 对外展示的文件信息
type FileView struct {
	PublicID       string     `json:"publicId"`
	FileName       string     `json:"fileName"`
	ContentType    string     `json:"fileType"`
	Size           int64      `json:"size"`
	FolderPublicID *string    `json:"folderPublicId"`
	UploadedAt     time.Time  `json:"uploadedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// Listing 文件夹内容，Folder 为 nil 表示顶层
type Listing struct {
	Folder  *FolderView  `json:"folder"`
	Folders []FolderView `json:"folders"`
	Files   []FileView   `json:"files"`
}

// NewFolderView 转换文件夹模型，parentPublicID 为空字符串表示没有父目录
func NewFolderView(f *database.Folder, parentPublicID string) FolderView {
	return FolderView{
		PublicID:       f.PublicID,
		Name:           f.Name,
		ParentPublicID: optional(parentPublicID),
		CreatedAt:      f.CreatedAt,
		DeletedAt:      f.DeletedAt,
	}
}

// NewFileView 转换文件模型，folderPublicID 为空字符串表示位于顶层
func NewFileView(f *database.File, folderPublicID string) FileView {
	return FileView{
		PublicID:       f.PublicID,
		FileName:       f.FileName,
		ContentType:    f.ContentType,
		Size:           f.Size,
		FolderPublicID: optional(folderPublicID),
		UploadedAt:     f.UploadedAt,
		DeletedAt:      f.DeletedAt,
	}
}

// FolderViews 批量转换文件夹并填充父目录公开ID
func FolderViews(st Store, folders []database.Folder) ([]FolderView, error) {
	parents := make([]uint, 0, len(folders))
	for _, f := range folders {
		if f.ParentID != nil {
			parents = append(parents, *f.ParentID)
		}
	}
	names, err := lookupPublicIDs(st, parents)
	if err != nil {
		return nil, err
	}
	views := make([]FolderView, 0, len(folders))
	for i := range folders {
		views = append(views, NewFolderView(&folders[i], parentKey(names, folders[i].ParentID)))
	}
	return views, nil
}

// FileViews 批量转换文件并填充所在文件夹公开ID
func FileViews(st Store, files []database.File) ([]FileView, error) {
	parents := make([]uint, 0, len(files))
	for _, f := range files {
		if f.FolderID != nil {
			parents = append(parents, *f.FolderID)
		}
	}
	names, err := lookupPublicIDs(st, parents)
	if err != nil {
		return nil, err
	}
	views := make([]FileView, 0, len(files))
	for i := range files {
		views = append(views, NewFileView(&files[i], parentKey(names, files[i].FolderID)))
	}
	return views, nil
}

// lookupPublicIDs 建立文件夹内部ID到公开ID的映射
func lookupPublicIDs(st Store, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	folders, err := st.FindFoldersByIDs(ids)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		out[f.ID] = f.PublicID
	}
	return out, nil
}

func parentKey(names map[uint]string, id *uint) string {
	if id == nil {
		return ""
	}
	return names[*id]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	root     string
	store    treeservice.Store
	resolver storageservice.PathResolver
	files    FileService
	folders  folderservice.FolderService
	engine   folderservice.Engine
	user     *database.User
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(dir, "file.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	root := filepath.Join(dir, "storage")
	resolver, err := storageservice.NewPathResolver(root)
	require.NoError(t, err)

	user := &database.User{Email: "uploader@example.com", PasswordHash: "x", Role: database.RoleUser}
	require.NoError(t, db.Create(user).Error)

	store := treeservice.NewStore(db)
	locker := folderservice.NewUserLocker()
	activity := activityservice.NewActivityService(db)
	engine := folderservice.NewEngine(store, resolver, locker, dir)

	return &fixture{
		db:       db,
		root:     resolver.Root(),
		store:    store,
		resolver: resolver,
		files:    NewFileService(store, resolver, locker, activity, maxUpload),
		folders:  folderservice.NewFolderService(store, engine, activity),
		engine:   engine,
		user:     user,
	}
}

func (fx *fixture) upload(t *testing.T, folder, name, contentType, body string) *treeservice.FileView {
	t.Helper()
	view, err := fx.files.Upload(context.Background(), &UploadRequest{
		UserID:         fx.user.ID,
		FolderPublicID: folder,
		FileName:       name,
		ContentType:    contentType,
		Content:        strings.NewReader(body),
	})
	require.NoError(t, err)
	return view
}

// countFiles 统计存储根目录下的普通文件数量
func (fx *fixture) countFiles(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.Walk(fx.root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func (fx *fixture) countRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, fx.db.Model(&database.File{}).Count(&n).Error)
	return n
}

// failingReader 读取部分数据后返回错误，模拟客户端中断
type failingReader struct {
	data []byte
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset by peer")
}

func TestUploadAndOpen(t *testing.T) {
	fx := newFixture(t, 0)
	docs, err := fx.folders.CreateFolder(fx.user.ID, "Docs", "")
	require.NoError(t, err)

	view := fx.upload(t, docs.PublicID, "Report.PDF", "application/pdf", "pdf-bytes")
	assert.Equal(t, "Report.PDF", view.FileName)
	assert.Equal(t, "application/pdf", view.ContentType)
	assert.Equal(t, int64(9), view.Size)
	require.NotNil(t, view.FolderPublicID)
	assert.Equal(t, docs.PublicID, *view.FolderPublicID)

	rec, err := fx.store.GetFile(view.PublicID, fx.user.ID, false)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rec.StoredName, ".pdf"))
	assert.NotContains(t, rec.StoredName, "Report")
	require.NotNil(t, rec.StorageFolderID)
	assert.Equal(t, *rec.FolderID, *rec.StorageFolderID)

	content, err := fx.files.Open(fx.user.ID, view.PublicID)
	require.NoError(t, err)
	defer content.Close()
	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
	assert.Equal(t, "Report.PDF", content.Name)
	assert.Equal(t, int64(9), content.Size)
}

func TestUploadToRoot(t *testing.T) {
	fx := newFixture(t, 0)
	view := fx.upload(t, "root", "a.txt", "text/plain", "hi")
	assert.Nil(t, view.FolderPublicID)

	rec, err := fx.store.GetFile(view.PublicID, fx.user.ID, false)
	require.NoError(t, err)
	assert.Nil(t, rec.FolderID)
	p, err := fx.resolver.Resolve(fx.user.ID, nil, rec.StoredName)
	require.NoError(t, err)
	assert.FileExists(t, p)
}

func TestUploadSniffsContentType(t *testing.T) {
	fx := newFixture(t, 0)
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

	view, err := fx.files.Upload(context.Background(), &UploadRequest{
		UserID:      fx.user.ID,
		FileName:    "noext",
		ContentType: "application/octet-stream",
		Content:     bytes.NewReader(png),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", view.ContentType)
	assert.Equal(t, int64(len(png)), view.Size)

	content, err := fx.files.Open(fx.user.ID, view.PublicID)
	require.NoError(t, err)
	defer content.Close()
	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestUploadEmptyFile(t *testing.T) {
	fx := newFixture(t, 0)
	view := fx.upload(t, "", "empty.bin", "", "")
	assert.Equal(t, int64(0), view.Size)
	assert.Equal(t, "application/octet-stream", view.ContentType)
}

func TestUploadAbortLeavesNothing(t *testing.T) {
	fx := newFixture(t, 0)

	_, err := fx.files.Upload(context.Background(), &UploadRequest{
		UserID:      fx.user.ID,
		FileName:    "big.iso",
		ContentType: "application/x-iso9660-image",
		Content:     &failingReader{data: []byte("partial")},
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileWriteFailed))
	assert.Equal(t, 0, fx.countFiles(t))
	assert.Equal(t, int64(0), fx.countRows(t))
}

func TestUploadCancelledContext(t *testing.T) {
	fx := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.files.Upload(ctx, &UploadRequest{
		UserID:      fx.user.ID,
		FileName:    "a.txt",
		ContentType: "text/plain",
		Content:     strings.NewReader("data"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fx.countFiles(t))
	assert.Equal(t, int64(0), fx.countRows(t))
}

func TestUploadSizeLimit(t *testing.T) {
	fx := newFixture(t, 4)

	_, err := fx.files.Upload(context.Background(), &UploadRequest{
		UserID:      fx.user.ID,
		FileName:    "a.txt",
		ContentType: "text/plain",
		Content:     strings.NewReader("12345"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileSizeTooLarge))
	assert.Equal(t, 0, fx.countFiles(t))
	assert.Equal(t, int64(0), fx.countRows(t))

	view := fx.upload(t, "", "b.txt", "text/plain", "1234")
	assert.Equal(t, int64(4), view.Size)
}

func TestUploadRejectsUnavailableFolder(t *testing.T) {
	fx := newFixture(t, 0)
	docs, err := fx.folders.CreateFolder(fx.user.ID, "Docs", "")
	require.NoError(t, err)
	require.NoError(t, fx.folders.MoveFolderToTrash(fx.user.ID, docs.PublicID))

	_, err = fx.files.Upload(context.Background(), &UploadRequest{
		UserID:         fx.user.ID,
		FolderPublicID: docs.PublicID,
		FileName:       "a.txt",
		Content:        strings.NewReader("x"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFolderNotFound))

	_, err = fx.files.Upload(context.Background(), &UploadRequest{
		UserID:         fx.user.ID,
		FolderPublicID: "ffffffffffffffffffffffffffffffff",
		FileName:       "a.txt",
		Content:        strings.NewReader("x"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFolderNotFound))
	assert.Equal(t, 0, fx.countFiles(t))
}

func TestUploadInvalidName(t *testing.T) {
	fx := newFixture(t, 0)
	_, err := fx.files.Upload(context.Background(), &UploadRequest{
		UserID:   fx.user.ID,
		FileName: "   ",
		Content:  strings.NewReader("x"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidName))
}

func TestOpenMissingPhysicalFile(t *testing.T) {
	fx := newFixture(t, 0)
	view := fx.upload(t, "", "a.txt", "text/plain", "x")
	rec, err := fx.store.GetFile(view.PublicID, fx.user.ID, false)
	require.NoError(t, err)
	p, err := fx.resolver.Resolve(rec.UserID, rec.StorageFolderID, rec.StoredName)
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	_, err = fx.files.Open(fx.user.ID, view.PublicID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileNotFound))
}

func TestSoftDeleteAndUsage(t *testing.T) {
	fx := newFixture(t, 0)
	a := fx.upload(t, "", "a.txt", "text/plain", "aaaa")
	fx.upload(t, "", "b.txt", "text/plain", "bb")

	used, err := fx.files.Usage(fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), used)

	require.NoError(t, fx.files.SoftDelete(fx.user.ID, a.PublicID))
	used, err = fx.files.Usage(fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)

	// 物理文件保留，等待恢复或彻底删除
	assert.Equal(t, 2, fx.countFiles(t))

	_, err = fx.files.Open(fx.user.ID, a.PublicID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileNotFound))
	assert.True(t, apperrors.HasCode(fx.files.SoftDelete(fx.user.ID, a.PublicID), apperrors.ErrFileNotFound))
}

func TestOtherUserCannotOpen(t *testing.T) {
	fx := newFixture(t, 0)
	view := fx.upload(t, "", "a.txt", "text/plain", "x")

	other := &database.User{Email: "other@example.com", PasswordHash: "x", Role: database.RoleUser}
	require.NoError(t, fx.db.Create(other).Error)

	_, err := fx.files.Open(other.ID, view.PublicID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileNotFound))
	_, err = fx.files.GetFile(other.ID, view.PublicID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFileNotFound))
}

func TestRestoredFileKeepsPhysicalLocation(t *testing.T) {
	fx := newFixture(t, 0)
	docs, err := fx.folders.CreateFolder(fx.user.ID, "Docs", "")
	require.NoError(t, err)
	view := fx.upload(t, docs.PublicID, "a.txt", "text/plain", "keep")

	folder, err := fx.store.GetFolder(docs.PublicID, fx.user.ID, false)
	require.NoError(t, err)
	require.NoError(t, fx.files.SoftDelete(fx.user.ID, view.PublicID))
	require.NoError(t, fx.folders.MoveFolderToTrash(fx.user.ID, docs.PublicID))

	// 文件所在文件夹仍在回收站，恢复后文件回到顶层
	rec, err := fx.store.GetTrashedFile(view.PublicID, fx.user.ID)
	require.NoError(t, err)
	require.NoError(t, fx.engine.RestoreFile(rec))

	content, err := fx.files.Open(fx.user.ID, view.PublicID)
	require.NoError(t, err)
	defer content.Close()
	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	rec, err = fx.store.GetFile(view.PublicID, fx.user.ID, false)
	require.NoError(t, err)
	assert.Nil(t, rec.FolderID)
	require.NotNil(t, rec.StorageFolderID)
	assert.Equal(t, folder.ID, *rec.StorageFolderID)
}

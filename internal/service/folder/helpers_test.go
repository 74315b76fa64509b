package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	store    treeservice.Store
	resolver storageservice.PathResolver
	engine   Engine
	folders  FolderService
	user     *database.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(dir, "folder.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	resolver, err := storageservice.NewPathResolver(filepath.Join(dir, "storage"))
	require.NoError(t, err)

	user := &database.User{Email: "owner@example.com", PasswordHash: "x", Role: database.RoleUser}
	require.NoError(t, db.Create(user).Error)

	store := treeservice.NewStore(db)
	engine := NewEngine(store, resolver, NewUserLocker(), filepath.Join(dir, "tmp"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tmp"), 0755))

	return &fixture{
		db:       db,
		store:    store,
		resolver: resolver,
		engine:   engine,
		folders:  NewFolderService(store, engine, activityservice.NewActivityService(db)),
		user:     user,
	}
}

// folder 通过服务创建文件夹并返回数据库记录
func (fx *fixture) folder(t *testing.T, name string, parent *database.Folder) *database.Folder {
	t.Helper()
	parentID := ""
	if parent != nil {
		parentID = parent.PublicID
	}
	view, err := fx.folders.CreateFolder(fx.user.ID, name, parentID)
	require.NoError(t, err)
	f, err := fx.store.GetFolder(view.PublicID, fx.user.ID, true)
	require.NoError(t, err)
	return f
}

// file 写入物理文件并创建记录
func (fx *fixture) file(t *testing.T, name string, folder *database.Folder, content string) *database.File {
	t.Helper()
	rec := &database.File{
		PublicID:    treeservice.NewPublicID(),
		UserID:      fx.user.ID,
		FileName:    name,
		StoredName:  treeservice.NewStoredName(name),
		ContentType: "text/plain",
		Size:        int64(len(content)),
	}
	if folder != nil {
		rec.FolderID = &folder.ID
		rec.StorageFolderID = &folder.ID
	}
	p, err := fx.resolver.Resolve(rec.UserID, rec.StorageFolderID, rec.StoredName)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	require.NoError(t, fx.store.CreateFile(rec))
	return rec
}

func (fx *fixture) path(t *testing.T, f *database.File) string {
	t.Helper()
	p, err := fx.resolver.Resolve(f.UserID, f.StorageFolderID, f.StoredName)
	require.NoError(t, err)
	return p
}

func (fx *fixture) reloadFolder(t *testing.T, f *database.Folder) *database.Folder {
	t.Helper()
	got, err := fx.store.GetFolder(f.PublicID, fx.user.ID, true)
	require.NoError(t, err)
	return got
}

func (fx *fixture) reloadFile(t *testing.T, f *database.File) *database.File {
	t.Helper()
	got, err := fx.store.GetFile(f.PublicID, fx.user.ID, true)
	require.NoError(t, err)
	return got
}

func (fx *fixture) countTrashed(t *testing.T) (folders, files int64) {
	t.Helper()
	require.NoError(t, fx.db.Model(&database.Folder{}).Where("deleted_at IS NOT NULL").Count(&folders).Error)
	require.NoError(t, fx.db.Model(&database.File{}).Where("deleted_at IS NOT NULL").Count(&files).Error)
	return folders, files
}

package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"gorm.io/gorm"
)

// setupTestDB 在临时目录中创建SQLite测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "tree.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *database.User {
	t.Helper()
	u := &database.User{Email: email, PasswordHash: "x", Role: database.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func mkFolder(t *testing.T, st Store, userID uint, name string, parent *database.Folder) *database.Folder {
	t.Helper()
	f := &database.Folder{PublicID: NewPublicID(), UserID: userID, Name: name}
	if parent != nil {
		f.ParentID = &parent.ID
	}
	require.NoError(t, st.CreateFolder(f))
	return f
}

func mkFile(t *testing.T, st Store, userID uint, name string, folder *database.Folder, size int64) *database.File {
	t.Helper()
	f := &database.File{PublicID: NewPublicID(), UserID: userID, FileName: name, StoredName: NewStoredName(name), Size: size}
	if folder != nil {
		f.FolderID = &folder.ID
		f.StorageFolderID = &folder.ID
	}
	require.NoError(t, st.CreateFile(f))
	return f
}

func TestListChildrenOrderingAndScope(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	mkFolder(t, st, alice.ID, "zeta", nil)
	mkFolder(t, st, alice.ID, "Alpha", nil)
	mkFolder(t, st, alice.ID, "beta", nil)
	mkFolder(t, st, bob.ID, "bobs", nil)
	mkFile(t, st, alice.ID, "b.txt", nil, 1)
	mkFile(t, st, alice.ID, "A.txt", nil, 2)

	folders, files, err := st.ListChildren(nil, alice.ID, false)
	require.NoError(t, err)

	names := make([]string, 0, len(folders))
	for _, f := range folders {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, names)
	require.Len(t, files, 2)
	assert.Equal(t, "A.txt", files[0].FileName)
	assert.Equal(t, "b.txt", files[1].FileName)
}

func TestGetFolderTrashStates(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")
	f := mkFolder(t, st, u.ID, "Docs", nil)

	_, err := st.GetTrashedFolder(f.PublicID, u.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFolderNotFound))

	now := time.Now().UTC()
	require.NoError(t, st.MarkFoldersDeleted([]uint{f.ID}, &now))

	_, err = st.GetFolder(f.PublicID, u.ID, false)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFolderNotFound))

	got, err := st.GetFolder(f.PublicID, u.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, err = st.GetFolder(f.PublicID, u.ID+100, true)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrFolderNotFound))
}

func TestExistsByNameIsCaseInsensitiveAndLiveOnly(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")
	docs := mkFolder(t, st, u.ID, "Docs", nil)
	old := mkFolder(t, st, u.ID, "Old", docs)

	ok, err := st.ExistsByName("docs", nil, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.ExistsByName("old", nil, u.ID)
	require.NoError(t, err)
	assert.False(t, ok, "name lookup is scoped to parent")

	ok, err = st.ExistsByName("OLD", &docs.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	now := time.Now().UTC()
	require.NoError(t, st.MarkFoldersDeleted([]uint{old.ID}, &now))
	ok, err = st.ExistsByName("old", &docs.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectSubtree(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")

	root := mkFolder(t, st, u.ID, "root", nil)
	a := mkFolder(t, st, u.ID, "a", root)
	b := mkFolder(t, st, u.ID, "b", a)
	outside := mkFolder(t, st, u.ID, "outside", nil)
	mkFile(t, st, u.ID, "1.txt", root, 1)
	mkFile(t, st, u.ID, "2.txt", b, 1)
	mkFile(t, st, u.ID, "3.txt", outside, 1)

	tree, err := st.CollectSubtree(root)
	require.NoError(t, err)
	assert.Equal(t, []uint{root.ID, a.ID, b.ID}, tree.FolderIDs())
	assert.Len(t, tree.Files, 2)
}

func TestTrashRoots(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")
	other := createUser(t, db, "o@example.com")

	parent := mkFolder(t, st, u.ID, "parent", nil)
	child := mkFolder(t, st, u.ID, "child", parent)
	live := mkFolder(t, st, u.ID, "live", nil)
	inLive := mkFolder(t, st, u.ID, "inLive", live)
	fileInParent := mkFile(t, st, u.ID, "p.txt", parent, 1)
	fileInLive := mkFile(t, st, u.ID, "l.txt", live, 1)
	otherFolder := mkFolder(t, st, other.ID, "x", nil)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	require.NoError(t, st.MarkFoldersDeleted([]uint{parent.ID, child.ID, otherFolder.ID}, &old))
	require.NoError(t, st.MarkFoldersDeleted([]uint{inLive.ID}, &recent))
	require.NoError(t, st.MarkFilesDeleted([]uint{fileInParent.ID}, &old))
	require.NoError(t, st.MarkFilesDeleted([]uint{fileInLive.ID}, &old))

	roots, err := st.TrashRootFolders(&u.ID, nil)
	require.NoError(t, err)
	ids := []uint{}
	for _, f := range roots {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []uint{parent.ID, inLive.ID}, ids)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	expired, err := st.TrashRootFolders(nil, &cutoff)
	require.NoError(t, err)
	ids = ids[:0]
	for _, f := range expired {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []uint{parent.ID, otherFolder.ID}, ids)

	files, err := st.TrashRootFiles(&u.ID, &cutoff)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, fileInLive.ID, files[0].ID)
}

func TestTrashRootWithMissingParent(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")

	parent := mkFolder(t, st, u.ID, "parent", nil)
	child := mkFolder(t, st, u.ID, "child", parent)
	now := time.Now().UTC()
	require.NoError(t, st.MarkFoldersDeleted([]uint{child.ID}, &now))
	require.NoError(t, st.DeleteFolders([]uint{parent.ID}))

	roots, err := st.TrashRootFolders(&u.ID, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, child.ID, roots[0].ID)
}

func TestTransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")

	err := st.Transaction(func(tx Store) error {
		mkFolder(t, tx, u.ID, "temp", nil)
		return apperrors.FromCode(apperrors.ErrStorageIO)
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrStorageIO))

	folders, _, err := st.ListChildren(nil, u.ID, true)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestSumLiveSize(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")

	total, err := st.SumLiveSize(u.ID)
	require.NoError(t, err)
	assert.Zero(t, total)

	mkFile(t, st, u.ID, "a", nil, 100)
	gone := mkFile(t, st, u.ID, "b", nil, 50)
	now := time.Now().UTC()
	require.NoError(t, st.MarkFilesDeleted([]uint{gone.ID}, &now))

	total, err = st.SumLiveSize(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestFolderViewsFillParent(t *testing.T) {
	db := setupTestDB(t)
	st := NewStore(db)
	u := createUser(t, db, "u@example.com")
	docs := mkFolder(t, st, u.ID, "Docs", nil)
	sub := mkFolder(t, st, u.ID, "2024", docs)
	file := mkFile(t, st, u.ID, "a.pdf", sub, 3)

	views, err := FolderViews(st, []database.Folder{*docs, *sub})
	require.NoError(t, err)
	assert.Nil(t, views[0].ParentPublicID)
	require.NotNil(t, views[1].ParentPublicID)
	assert.Equal(t, docs.PublicID, *views[1].ParentPublicID)

	fileViews, err := FileViews(st, []database.File{*file})
	require.NoError(t, err)
	require.NotNil(t, fileViews[0].FolderPublicID)
	assert.Equal(t, sub.PublicID, *fileViews[0].FolderPublicID)
}

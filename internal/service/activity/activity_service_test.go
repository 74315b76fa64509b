package service

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
)

func TestRecordAndList(t *testing.T) {
	db, err := database.Init(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "activity.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	user := &database.User{Email: "alice@example.com", PasswordHash: "x", Role: database.RoleUser}
	require.NoError(t, db.Create(user).Error)

	svc := NewActivityService(db)
	svc.Record(&user.ID, ActionCreateFolder, StatusSuccess, "Docs")
	svc.Record(nil, ActionRetentionSweep, StatusSuccess, strings.Repeat("x", 2000))
	svc.Record(&user.ID, ActionUpload, StatusFailed, "a.pdf")

	logs, err := svc.List(0)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	assert.Equal(t, ActionUpload, logs[0].Action)
	require.NotNil(t, logs[0].UserEmail)
	assert.Equal(t, "alice@example.com", *logs[0].UserEmail)
	assert.Nil(t, logs[1].UserEmail)
	assert.Len(t, logs[1].Message, 1000)

	logs, err = svc.List(1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestClampTake(t *testing.T) {
	assert.Equal(t, DefaultTake, ClampTake(0))
	assert.Equal(t, DefaultTake, ClampTake(-5))
	assert.Equal(t, 50, ClampTake(50))
	assert.Equal(t, MaxTake, ClampTake(5000))
}

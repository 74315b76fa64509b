package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsChain(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("upload: %w", WrapCode(ErrStorageIO, cause))

	appErr, ok := GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrStorageIO, appErr.Code)
	assert.Equal(t, "disk full", appErr.Details)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, HasCode(err, ErrPathViolation, ErrStorageIO))
	assert.False(t, HasCode(stderrors.New("plain"), ErrStorageIO))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(FromCode(ErrFolderNotFound)))
	assert.True(t, IsNotFound(FromCode(ErrShareNotFound)))
	assert.False(t, IsNotFound(FromCode(ErrForbidden)))
	assert.False(t, IsNotFound(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrInvalidName:         http.StatusBadRequest,
		ErrPathViolation:       http.StatusBadRequest,
		ErrTokenInvalid:        http.StatusUnauthorized,
		ErrForbidden:           http.StatusForbidden,
		ErrFileNotFound:        http.StatusNotFound,
		ErrRecordAlreadyExists: http.StatusConflict,
		ErrFileSizeTooLarge:    http.StatusRequestEntityTooLarge,
		ErrStorageIO:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %d", code)
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Folder Not Found", GetErrorMessageWithLang(ErrFolderNotFound, "en-US"))
	assert.Equal(t, "文件夹未找到", GetErrorMessageWithLang(ErrFolderNotFound, "zh-CN"))
	assert.Equal(t, "Unknown Error", GetErrorMessageWithLang(ErrorCode(9999), "en-US"))
}

func TestErrorString(t *testing.T) {
	err := New(ErrInvalidName, "名称无效").WithDetails("empty")
	assert.Equal(t, "[3005] 名称无效: empty", err.Error())
}

package router

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	"github.com/weiwangfds/ditdrive/internal/logger"
	"github.com/weiwangfds/ditdrive/internal/middleware"
)

const (
	masterEmail    = "root@example.com"
	masterPassword = "master-pw"
)

type testServer struct {
	t      *testing.T
	router *Router
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", MaxUploadSize: 1 << 20, EnableSwagger: true},
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			DSN:      filepath.Join(dir, "drive.db"),
			LogLevel: "silent",
		},
		Storage:   config.StorageConfig{RootPath: filepath.Join(dir, "storage"), TempDir: filepath.Join(dir, "tmp")},
		Retention: config.RetentionConfig{Enabled: true, Days: 30, SweepInterval: time.Hour},
		Auth: config.AuthConfig{
			JWTSecret:     "0123456789abcdef0123",
			Issuer:        "ditDrive",
			Audience:      "ditDriveUsers",
			ExpireMinutes: 30,
		},
		Share:     config.ShareConfig{BaseURL: "https://drive.example.com"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		CORS:      config.CORSConfig{AllowOrigins: []string{"*"}},
		Log:       *logger.DefaultConfig(),
	}

	db, err := database.Init(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	r, err := NewRouter(middleware.NewLoggerMiddleware("/health"), db, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.GetAuthService().EnsureMasterAdmin(masterEmail, masterPassword))

	return &testServer{t: t, router: r}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.GetEngine().ServeHTTP(w, req)
	return w
}

func (s *testServer) json(method, path, token string, payload interface{}, out interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(data)
	}
	w := s.do(method, path, token, body, "application/json")
	if out != nil && w.Code < 300 {
		var env envelope
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
		require.NoError(s.t, json.Unmarshal(env.Data, out))
	}
	return w
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	var res struct {
		Token string `json:"token"`
	}
	w := s.json(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, &res)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return res.Token
}

func (s *testServer) upload(token, folder, name, content string) string {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(s.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	w := s.do(http.MethodPost, "/api/files/upload?folderPublicId="+folder, token, &buf, mw.FormDataContentType())
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	var view struct {
		PublicID string `json:"publicId"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &view))
	return view.PublicID
}

// newUser 由超级管理员创建普通用户并登录
func (s *testServer) newUser(email string) string {
	s.t.Helper()
	root := s.login(masterEmail, masterPassword)
	w := s.json(http.MethodPost, "/api/admin/create-user", root, map[string]string{"email": email, "password": "user-pass"}, nil)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(email, "user-pass")
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = s.do(http.MethodGet, "/health/full", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/folders/root", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", "", map[string]string{"email": masterEmail, "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/unknown", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFolderFileTrashFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.newUser("alice@example.com")

	var docs struct {
		PublicID string `json:"publicId"`
	}
	w := s.json(http.MethodPost, "/api/folders", token, map[string]string{"name": "Docs"}, &docs)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var exists struct {
		Exists bool `json:"exists"`
	}
	s.json(http.MethodGet, "/api/folders/exists?name=docs&parentPublicId=root", token, nil, &exists)
	assert.True(t, exists.Exists)

	fileID := s.upload(token, docs.PublicID, "hello.txt", "hello world")

	// 列表
	var listing struct {
		Folder *struct{ Name string } `json:"folder"`
		Files  []struct {
			PublicID string `json:"publicId"`
			FileName string `json:"fileName"`
		} `json:"files"`
	}
	s.json(http.MethodGet, "/api/folders/"+docs.PublicID, token, nil, &listing)
	require.NotNil(t, listing.Folder)
	assert.Equal(t, "Docs", listing.Folder.Name)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "hello.txt", listing.Files[0].FileName)

	// 下载与 Range 查看
	w = s.do(http.MethodGet, "/api/files/download/"+fileID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	req := httptest.NewRequest(http.MethodGet, "/api/files/view/"+fileID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Range", "bytes=0-4")
	rw := httptest.NewRecorder()
	s.router.GetEngine().ServeHTTP(rw, req)
	assert.Equal(t, http.StatusPartialContent, rw.Code)
	assert.Equal(t, "hello", rw.Body.String())

	// 打包下载
	w = s.do(http.MethodGet, "/api/folders/download-zip/"+docs.PublicID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Docs/", "Docs/hello.txt"}, names)

	// 删除文件夹后进入回收站
	w = s.do(http.MethodDelete, "/api/folders/"+docs.PublicID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodGet, "/api/files/download/"+fileID, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var trash struct {
		Folders []struct{ PublicID string } `json:"folders"`
		Files   []struct{ PublicID string } `json:"files"`
	}
	s.json(http.MethodGet, "/api/trash", token, nil, &trash)
	require.Len(t, trash.Folders, 1)
	assert.Empty(t, trash.Files)

	// 恢复
	w = s.do(http.MethodPost, "/api/trash/restore/folder/"+docs.PublicID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/api/files/download/"+fileID, token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// 未删除的文件夹不能永久删除
	w = s.do(http.MethodDelete, "/api/trash/folder/"+docs.PublicID, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 再次删除后永久删除
	s.do(http.MethodPost, "/api/folders/delete/"+docs.PublicID, token, nil, "")
	w = s.do(http.MethodDelete, "/api/trash/folder/"+docs.PublicID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.json(http.MethodGet, "/api/trash", token, nil, &trash)
	assert.Empty(t, trash.Folders)

	var usage struct {
		UsedBytes int64 `json:"usedBytes"`
	}
	s.json(http.MethodGet, "/api/files/usage", token, nil, &usage)
	assert.Zero(t, usage.UsedBytes)
}

func TestShareFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.newUser("bob@example.com")
	fileID := s.upload(token, "root", "photo.png", "\x89PNG\r\n\x1a\n0000")

	var share struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	w := s.json(http.MethodPost, "/api/share/"+fileID, token, nil, &share)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "https://drive.example.com/s/file/"+share.Token, share.URL)

	for _, path := range []string{"/s/" + share.Token, "/s/file/" + share.Token} {
		w = s.do(http.MethodGet, path, "", nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "inline"))
	}

	w = s.do(http.MethodGet, "/s/folder/"+share.Token, "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/s/file/"+strings.Repeat("0", 32), "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	root := s.login(masterEmail, masterPassword)
	user := s.newUser("carol@example.com")

	w := s.do(http.MethodGet, "/api/admin/list-users", user, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	var users []struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
	}
	s.json(http.MethodGet, "/api/admin/list-users", root, nil, &users)
	require.Len(t, users, 2)

	w = s.json(http.MethodPost, "/api/admin/create-user", root, map[string]string{"email": "carol@example.com", "password": "user-pass"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.json(http.MethodPost, "/api/admin/create-admin", root, map[string]string{"email": "admin@example.com", "password": "admin-pass"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	admin := s.login("admin@example.com", "admin-pass")

	w = s.json(http.MethodPost, "/api/admin/create-admin", admin, map[string]string{"email": "x@example.com", "password": "admin-pass"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/admin/trash/sweep?retentionDays=0", admin, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/admin/activity-logs?take=5", admin, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	carolID := users[1].ID
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/admin/delete-user/%d", carolID), admin, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 被删除用户的令牌失效
	w = s.do(http.MethodGet, "/api/folders/root", user, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCleanOverrideRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	user := s.newUser("dave@example.com")

	w := s.do(http.MethodDelete, "/api/trash/clean", user, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/trash/clean?retentionDays=0", user, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(http.MethodDelete, "/api/trash/clean?retentionDays=abc", user, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLocalizedErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.newUser("erin@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/folders/"+strings.Repeat("a", 32), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	w := httptest.NewRecorder()
	s.router.GetEngine().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Folder Not Found", env.Message)
}

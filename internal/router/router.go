package router

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/weiwangfds/ditdrive/config"
	_ "github.com/weiwangfds/ditdrive/docs" // swagger docs
	"github.com/weiwangfds/ditdrive/internal/database"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/handler"
	"github.com/weiwangfds/ditdrive/internal/logger"
	"github.com/weiwangfds/ditdrive/internal/middleware"
	"github.com/weiwangfds/ditdrive/internal/response"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	authservice "github.com/weiwangfds/ditdrive/internal/service/auth"
	fileservice "github.com/weiwangfds/ditdrive/internal/service/file"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	healthservice "github.com/weiwangfds/ditdrive/internal/service/health"
	shareservice "github.com/weiwangfds/ditdrive/internal/service/share"
	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	trashservice "github.com/weiwangfds/ditdrive/internal/service/trash"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
	userservice "github.com/weiwangfds/ditdrive/internal/service/user"
	"gorm.io/gorm"
)

// Router 路由配置
type Router struct {
	engine      *gin.Engine
	db          *gorm.DB
	sweeper     trashservice.Sweeper
	authService authservice.AuthService
	redis       *redis.Client
}

// NewRouter 创建路由实例并装配全部服务
func NewRouter(loggerMiddleware *middleware.LoggerMiddleware, db *gorm.DB, cfg *config.Config) (*Router, error) {
	gin.SetMode(cfg.Server.Mode)

	engine := gin.New()

	// 初始化存储与目录树
	resolver, err := storageservice.NewPathResolver(cfg.Storage.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage root: %w", err)
	}
	tempDir := cfg.Storage.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	store := treeservice.NewStore(db)
	locker := folderservice.NewUserLocker()
	activityService := activityservice.NewActivityService(db)
	treeEngine := folderservice.NewEngine(store, resolver, locker, tempDir)

	// 初始化业务服务
	folderService := folderservice.NewFolderService(store, treeEngine, activityService)
	fileService := fileservice.NewFileService(store, resolver, locker, activityService, cfg.Server.MaxUploadSize)
	sweeper := trashservice.NewSweeper(store, treeEngine, activityService,
		cfg.Retention.RetentionWindow(), cfg.Retention.SweepInterval)
	trashService := trashservice.NewTrashService(store, treeEngine, sweeper, activityService, cfg.Retention.RetentionWindow())

	var redisClient *redis.Client
	shareCache := shareservice.NewNoopCache()
	if cfg.Redis.Enabled {
		redisClient = shareservice.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		shareCache = shareservice.NewRedisCache(redisClient, cfg.Redis.TTL)
	}
	shareService := shareservice.NewShareService(store, fileService, treeEngine, shareCache, activityService, cfg.Share.BaseURL)

	authService := authservice.NewAuthService(db, cfg.Auth, activityService)
	userService := userservice.NewUserService(db, treeEngine, activityService)
	healthService := healthservice.NewHealthService(db, resolver)

	// 初始化处理器
	fileHandler := handler.NewFileHandler(fileService)
	folderHandler := handler.NewFolderHandler(folderService)
	trashHandler := handler.NewTrashHandler(trashService)
	shareHandler := handler.NewShareHandler(shareService)
	authHandler := handler.NewAuthHandler(authService)
	adminHandler := handler.NewAdminHandler(userService, activityService)
	healthHandler := handler.NewHealthHandler(healthService)

	// 使用中间件
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorf("请求处理发生panic: %v", recovered)
		response.InternalServerError(c, apperrors.GetErrorMessage(apperrors.ErrInternalServer))
	}))
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.Logger())

	// 配置CORS
	engine.Use(cors.New(corsConfig(cfg.CORS)))

	engine.NoRoute(func(c *gin.Context) {
		response.NotFound(c, apperrors.GetErrorMessage(apperrors.ErrNotFound))
	})

	// Swagger文档路由
	if cfg.Server.EnableSwagger {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 健康检查
	engine.GET("/health", healthHandler.Health)
	engine.GET("/health/full", healthHandler.HealthFull)

	// 匿名接口限流
	anonymous := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		anonymous = append(anonymous, middleware.NewRateLimiter(cfg.RateLimit.PerMinute).Middleware())
	}

	// 分享链接
	shares := engine.Group("/s", anonymous...)
	{
		shares.GET("/:token", shareHandler.OpenFileShare)
		shares.GET("/file/:token", shareHandler.OpenFileShare)
		shares.GET("/folder/:token", shareHandler.OpenFolderShare)
	}

	// API路由组
	api := engine.Group("/api")
	{
		api.POST("/auth/login", append(anonymous, authHandler.Login)...)

		authed := api.Group("", middleware.AuthRequired(authService))

		// 文件夹管理接口
		folders := authed.Group("/folders")
		{
			folders.GET("/exists", folderHandler.FolderExists)
			folders.POST("", folderHandler.CreateFolder)
			folders.GET("/:publicId", folderHandler.GetFolder)
			folders.PUT("/:publicId", folderHandler.RenameFolder)
			folders.DELETE("/:publicId", folderHandler.DeleteFolder)
			folders.POST("/delete/:publicId", folderHandler.DeleteFolder)
			folders.GET("/download/:publicId", folderHandler.DownloadFolder)
			folders.GET("/download-zip/:publicId", folderHandler.DownloadFolder)
		}

		// 文件管理接口
		files := authed.Group("/files")
		{
			files.POST("/upload", fileHandler.UploadFile)
			files.GET("/usage", fileHandler.GetUsage)
			files.GET("/view/:publicId", fileHandler.ViewFile)
			files.GET("/download/:publicId", fileHandler.DownloadFile)
			files.GET("/:publicId", fileHandler.GetFile)
			files.DELETE("/:publicId", fileHandler.DeleteFile)
		}

		// 回收站接口
		trash := authed.Group("/trash")
		{
			trash.GET("", trashHandler.ListTrash)
			trash.POST("/restore/file/:publicId", trashHandler.RestoreFile)
			trash.POST("/restore/folder/:publicId", trashHandler.RestoreFolder)
			trash.DELETE("/file/:publicId", trashHandler.DeleteFile)
			trash.DELETE("/folder/:publicId", trashHandler.DeleteFolder)
			trash.DELETE("/clean", trashHandler.Clean)
		}

		// 分享接口
		share := authed.Group("/share")
		{
			share.POST("/:publicId", shareHandler.ShareFile)
			share.POST("/folder/:publicId", shareHandler.ShareFolder)
		}

		// 管理后台接口
		admin := authed.Group("/admin", middleware.RequireRole(database.RoleAdmin))
		{
			admin.POST("/create-user", adminHandler.CreateUser)
			admin.POST("/create-admin", middleware.RequireRole(database.RoleMasterAdmin), adminHandler.CreateAdmin)
			admin.GET("/list-users", adminHandler.ListUsers)
			admin.GET("/activity-logs", adminHandler.ActivityLogs)
			admin.POST("/reset-password", adminHandler.ResetPassword)
			admin.DELETE("/delete-user/:id", adminHandler.DeleteUser)
			admin.POST("/trash/sweep", trashHandler.SweepAll)
		}
	}

	return &Router{
		engine:      engine,
		db:          db,
		sweeper:     sweeper,
		authService: authService,
		redis:       redisClient,
	}, nil
}

// corsConfig 根据配置生成CORS规则
// 允许任意来源时不能同时携带凭据
func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, "Range"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "Content-Range", middleware.RequestIDHeader},
		MaxAge:        86400,
	}
	origins := cfg.AllowOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}

// GetSweeper 获取回收站清理服务
func (r *Router) GetSweeper() trashservice.Sweeper {
	return r.sweeper
}

// GetAuthService 获取认证服务，用于启动时初始化超级管理员
func (r *Router) GetAuthService() authservice.AuthService {
	return r.authService
}

// Close 释放路由持有的外部连接
func (r *Router) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

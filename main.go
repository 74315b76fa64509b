// @title ditDrive API
// @version 1.0
// @description 多用户个人网盘：目录树、回收站、分享链接

// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/weiwangfds/ditdrive/config"
	"github.com/weiwangfds/ditdrive/internal/database"
	"github.com/weiwangfds/ditdrive/internal/i18n"
	"github.com/weiwangfds/ditdrive/internal/logger"
	"github.com/weiwangfds/ditdrive/internal/middleware"
	"github.com/weiwangfds/ditdrive/internal/router"
	"golang.org/x/net/http2"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径（默认查找 ./config.yaml 或 ./config/config.yaml）")
	lang := pflag.String("lang", "zh-CN", "错误消息默认语言 (zh-CN, en-US)")
	pflag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	if i18n.GetInstance().IsSupportedLanguage(*lang) {
		i18n.GetInstance().SetDefaultLanguage(*lang)
	}

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化中间件
	loggerMiddleware := middleware.NewLoggerMiddleware("/health")

	// 初始化路由
	r, err := router.NewRouter(loggerMiddleware, db, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize router: %v", err)
	}

	// 初始化超级管理员
	if err := r.GetAuthService().EnsureMasterAdmin(cfg.Seed.MasterEmail, cfg.Seed.MasterPassword); err != nil {
		logger.Fatalf("Failed to seed master admin: %v", err)
	}

	// 启动回收站定时清理
	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	if cfg.Retention.Enabled {
		if err := r.GetSweeper().Start(sweeperCtx); err != nil {
			logger.Errorf("Failed to start retention sweeper: %v", err)
		}
	} else {
		logger.Info("回收站定时清理已关闭")
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"http/1.1"},
		}
		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.Server.EnableHTTP2 {
			srv.TLSConfig.NextProtos = []string{"h2", "http/1.1"}
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("配置HTTP/2失败: %v", err)
			}
		}
	}

	go func() {
		var err error
		if cfg.Server.EnableHTTPS {
			logger.Infof("HTTPS服务器启动在端口 %d (HTTP/2: %v)", cfg.Server.Port, cfg.Server.EnableHTTP2)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Infof("HTTP服务器启动在端口 %d", cfg.Server.Port)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("服务器强制关闭: %v", err)
	}

	// 停止回收站清理，等待正在进行的清理结束
	cancelSweeper()
	if cfg.Retention.Enabled {
		if err := r.GetSweeper().Stop(); err != nil {
			logger.Errorf("Error stopping retention sweeper: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		logger.Errorf("Error closing redis client: %v", err)
	}
	if err := database.Close(db); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	logger.Info("服务器已退出")
}

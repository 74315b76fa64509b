// Package service 提供健康检查
package service

import (
	"context"
	"os"
	"time"

	storageservice "github.com/weiwangfds/ditdrive/internal/service/storage"
	"gorm.io/gorm"
)

// 检查结果状态
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// ServiceName 服务名称
const ServiceName = "ditdrive"

// BasicReport 基础检查结果
type BasicReport struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Time    time.Time `json:"time"`
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// FullReport 完整检查结果
type FullReport struct {
	Status   string      `json:"status"`
	Service  string      `json:"service"`
	Time     time.Time   `json:"time"`
	Database CheckResult `json:"database"`
	Storage  CheckResult `json:"storage"`
}

// HealthService 健康检查服务接口
type HealthService interface {
	// Basic 只表示进程存活
	Basic() BasicReport

	// Full 检查数据库连通和存储根目录可写
	Full(ctx context.Context) FullReport
}

type healthService struct {
	db       *gorm.DB
	resolver storageservice.PathResolver
	now      func() time.Time
}

// NewHealthService 创建健康检查服务
func NewHealthService(db *gorm.DB, resolver storageservice.PathResolver) HealthService {
	return &healthService{db: db, resolver: resolver, now: time.Now}
}

func (s *healthService) Basic() BasicReport {
	return BasicReport{Status: StatusOK, Service: ServiceName, Time: s.now().UTC()}
}

func (s *healthService) Full(ctx context.Context) FullReport {
	report := FullReport{
		Service:  ServiceName,
		Time:     s.now().UTC(),
		Database: s.checkDatabase(ctx),
		Storage:  s.checkStorage(),
	}
	report.Status = StatusOK
	if report.Database.Status != StatusOK || report.Storage.Status != StatusOK {
		report.Status = StatusFail
	}
	return report
}

func (s *healthService) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()
	sqlDB, err := s.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	return result(start, err)
}

// checkStorage 在存储根目录创建并删除探测文件
func (s *healthService) checkStorage() CheckResult {
	start := time.Now()
	root := s.resolver.Root()

	info, err := os.Stat(root)
	if err == nil && !info.IsDir() {
		err = &os.PathError{Op: "stat", Path: root, Err: os.ErrInvalid}
	}
	if err == nil {
		var probe *os.File
		probe, err = os.CreateTemp(root, ".health-*")
		if err == nil {
			name := probe.Name()
			_, err = probe.WriteString("ok")
			probe.Close()
			if rmErr := os.Remove(name); err == nil {
				err = rmErr
			}
		}
	}
	return result(start, err)
}

func result(start time.Time, err error) CheckResult {
	r := CheckResult{Status: StatusOK, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		r.Status = StatusFail
		r.Error = err.Error()
	}
	return r
}

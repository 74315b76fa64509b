package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weiwangfds/ditdrive/internal/logger"
	activityservice "github.com/weiwangfds/ditdrive/internal/service/activity"
	folderservice "github.com/weiwangfds/ditdrive/internal/service/folder"
	treeservice "github.com/weiwangfds/ditdrive/internal/service/tree"
)

// SweepResult 一次清理的统计结果
type SweepResult struct {
	Folders int `json:"folders"` // 永久删除的文件夹子树数量
	Files   int `json:"files"`   // 永久删除的单个文件数量
	Failed  int `json:"failed"`  // 处理失败的条目数量
}

// Sweeper 回收站定时清理服务接口
type Sweeper interface {
	// Start 启动后台清理
	// 启动时立即执行一次，之后按固定间隔执行，ctx 取消或调用 Stop 后退出
	Start(ctx context.Context) error

	// Stop 停止后台清理并等待正在进行的清理完成，未运行时直接返回
	Stop() error

	// Sweep 永久删除所有用户在 cutoff 之前删除的回收站条目
	// 只处理回收站子树的根：父文件夹已删除的文件夹随祖先一起删除，不会被单独选中；
	// 单个条目失败只记录日志，不影响其他条目
	Sweep(cutoff time.Time) SweepResult

	// SweepForUser 与 Sweep 相同，但只处理指定用户
	SweepForUser(userID uint, cutoff time.Time) SweepResult
}

// sweeper 回收站清理服务实现
type sweeper struct {
	store     treeservice.Store
	engine    folderservice.Engine
	activity  activityservice.ActivityService
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewSweeper 创建回收站清理服务
// 参数:
//   - retention: 回收站保留时长，超过该时长的条目被永久删除
//   - interval: 后台执行间隔
func NewSweeper(store treeservice.Store, engine folderservice.Engine, activity activityservice.ActivityService,
	retention, interval time.Duration) Sweeper {
	return &sweeper{
		store:     store,
		engine:    engine,
		activity:  activity,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

func (s *sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("retention sweeper is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)

	logger.Infof("[回收站清理] 已启动，保留 %s，间隔 %s", s.retention, s.interval)
	return nil
}

func (s *sweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.isRunning = false
	stop := s.stopChan
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()

	logger.Infof("[回收站清理] 已停止")
	return nil
}

func (s *sweeper) loop(ctx context.Context, stop chan struct{}) {
	defer s.wg.Done()

	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.exited(stop)
			logger.Infof("[回收站清理] 上下文已取消，停止运行")
			return
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// exited 上下文取消时清除运行标记，之后可以重新 Start
func (s *sweeper) exited(stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning && s.stopChan == stop {
		s.isRunning = false
	}
}

func (s *sweeper) runOnce() {
	cutoff := s.now().UTC().Add(-s.retention)
	result := s.Sweep(cutoff)
	status := activityservice.StatusSuccess
	if result.Failed > 0 {
		status = activityservice.StatusFailed
	}
	s.activity.Record(nil, activityservice.ActionRetentionSweep, status,
		fmt.Sprintf("cutoff=%s folders=%d files=%d failed=%d", cutoff.Format(time.RFC3339), result.Folders, result.Files, result.Failed))
}

func (s *sweeper) Sweep(cutoff time.Time) SweepResult {
	return s.sweep(nil, cutoff)
}

func (s *sweeper) SweepForUser(userID uint, cutoff time.Time) SweepResult {
	return s.sweep(&userID, cutoff)
}

func (s *sweeper) sweep(userID *uint, cutoff time.Time) SweepResult {
	var result SweepResult
	cutoff = cutoff.UTC()

	folders, err := s.store.TrashRootFolders(userID, &cutoff)
	if err != nil {
		logger.Errorf("[回收站清理] 查询过期文件夹失败: %v", err)
		result.Failed++
	}
	for i := range folders {
		folder := &folders[i]
		if err := s.engine.PermanentDelete(folder); err != nil {
			result.Failed++
			logger.WithFields(map[string]interface{}{
				"folder":  folder.PublicID,
				"user_id": folder.UserID,
			}).Errorf("[回收站清理] 删除文件夹失败: %v", err)
			continue
		}
		result.Folders++
	}

	// 文件夹处理完之后再查询文件，随文件夹删除的文件不会重复处理
	files, err := s.store.TrashRootFiles(userID, &cutoff)
	if err != nil {
		logger.Errorf("[回收站清理] 查询过期文件失败: %v", err)
		result.Failed++
	}
	for i := range files {
		file := &files[i]
		if err := s.engine.PurgeFile(file); err != nil {
			result.Failed++
			logger.WithFields(map[string]interface{}{
				"file":    file.PublicID,
				"user_id": file.UserID,
			}).Errorf("[回收站清理] 删除文件失败: %v", err)
			continue
		}
		result.Files++
	}

	if result.Folders+result.Files+result.Failed > 0 {
		logger.Infof("[回收站清理] 完成: cutoff=%s, 文件夹=%d, 文件=%d, 失败=%d",
			cutoff.Format(time.RFC3339), result.Folders, result.Files, result.Failed)
	}
	return result
}

// expiredBefore 计算保留天数对应的截止时间
// 按日历天数回退，天数再大也不会溢出到未来
func expiredBefore(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

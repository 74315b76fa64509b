package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiwangfds/ditdrive/internal/database"
	"github.com/weiwangfds/ditdrive/internal/logger"
)

// cacheKeyPrefix redis键前缀
const cacheKeyPrefix = "ditdrive:share:"

// ShareCache 分享令牌缓存
// 缓存只保存令牌到目标的映射，失效或出错时回退到数据库
type ShareCache interface {
	Get(ctx context.Context, token string) (*database.ShareLink, bool)
	Set(ctx context.Context, share *database.ShareLink)
	Delete(ctx context.Context, tokens ...string)
}

// NewNoopCache 返回不做任何缓存的实现
func NewNoopCache() ShareCache {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*database.ShareLink, bool) { return nil, false }
func (noopCache) Set(context.Context, *database.ShareLink)                {}
func (noopCache) Delete(context.Context, ...string)                      {}

// cachedShare 缓存中的分享记录
type cachedShare struct {
	ID       uint  `json:"id"`
	UserID   uint  `json:"uid"`
	FileID   *uint `json:"fid,omitempty"`
	FolderID *uint `json:"did,omitempty"`
}

// redisCache 基于redis的缓存实现
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建redis缓存
// 参数:
//   - client: redis客户端
//   - ttl: 缓存有效期，0 表示使用一小时
func NewRedisCache(client *redis.Client, ttl time.Duration) ShareCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisCache{client: client, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, token string) (*database.ShareLink, bool) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+token).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("[分享缓存] 读取失败: %v", err)
		}
		return nil, false
	}

	var cached cachedShare
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warnf("[分享缓存] 数据损坏，忽略: %v", err)
		return nil, false
	}
	return &database.ShareLink{
		ID:       cached.ID,
		Token:    token,
		UserID:   cached.UserID,
		FileID:   cached.FileID,
		FolderID: cached.FolderID,
	}, true
}

func (c *redisCache) Set(ctx context.Context, share *database.ShareLink) {
	data, err := json.Marshal(cachedShare{
		ID:       share.ID,
		UserID:   share.UserID,
		FileID:   share.FileID,
		FolderID: share.FolderID,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+share.Token, data, c.ttl).Err(); err != nil {
		logger.Warnf("[分享缓存] 写入失败: %v", err)
	}
}

func (c *redisCache) Delete(ctx context.Context, tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = cacheKeyPrefix + token
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warnf("[分享缓存] 删除失败: %v", err)
	}
}

// NewRedisClient 创建redis客户端并尝试连通
// 连通失败只记录警告，缓存在运行期自动回退到数据库
func NewRedisClient(addr, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("[分享缓存] redis 连接失败 %s: %v", addr, err)
	} else {
		logger.Infof("[分享缓存] 已连接 redis: %s", addr)
	}
	return client
}

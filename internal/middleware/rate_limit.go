package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
	"github.com/weiwangfds/ditdrive/internal/response"
	"golang.org/x/time/rate"
)

// limiterIdle 限流器闲置多久后被清理
const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimiter 按客户端IP的令牌桶限流
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
	now      func() time.Time
}

// NewRateLimiter 创建限流器
// 参数:
//   - perMinute: 每分钟允许的请求数，突发量为其一半
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

// Middleware 返回gin中间件，超限时返回429
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			response.ErrorWithStatus(c, apperrors.ErrTooManyRequests.HTTPStatus(), int(apperrors.ErrTooManyRequests),
				apperrors.GetErrorMessage(apperrors.ErrTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow 判断该客户端本次请求是否放行
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, cl := range l.limiters {
		if now.After(cl.expires) {
			delete(l.limiters, k)
		}
	}

	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = cl
	}
	cl.expires = now.Add(limiterIdle)
	return cl.limiter.AllowN(now, 1)
}

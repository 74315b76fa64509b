package service

import "sync"

// UserLocker 按用户划分的互斥锁
// 同一用户的级联操作（删除、恢复、清理、回收站扫描）串行执行，不同用户之间互不影响
type UserLocker struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewUserLocker 创建用户锁
func NewUserLocker() *UserLocker {
	return &UserLocker{locks: make(map[uint]*userLock)}
}

// Lock 获取用户锁，返回释放函数
func (l *UserLocker) Lock(userID uint) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

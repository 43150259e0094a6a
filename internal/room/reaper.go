package room

import (
	"context"
	"log/slog"
	"time"
)

// Evicted 被清理的房间
type Evicted struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	History      []HistoryEntry
}

// EvictFunc 房间被清理后的回调，在 Store 锁外执行
type EvictFunc func(ctx context.Context, evicted []Evicted)

// Reaper 定期清理空闲的空房间
type Reaper struct {
	store    *Store
	interval time.Duration
	expiry   time.Duration
	hooks    []EvictFunc
	logger   *slog.Logger
}

// NewReaper 创建清理器
func NewReaper(store *Store, interval, expiry time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		expiry:   expiry,
		logger:   slog.Default().With("component", "Reaper"),
	}
}

// OnEvict 注册清理回调，需在 Run 之前调用
func (rp *Reaper) OnEvict(fn EvictFunc) {
	rp.hooks = append(rp.hooks, fn)
}

// Run 启动清理循环（阻塞，应在 goroutine 中调用）
func (rp *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	rp.logger.Info("Reaper started",
		"interval", rp.interval,
		"expiry", rp.expiry)

	for {
		select {
		case <-ctx.Done():
			rp.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
			rp.Sweep(ctx)
		}
	}
}

// Sweep 执行一次清理，返回被删除的房间
func (rp *Reaper) Sweep(ctx context.Context) []Evicted {
	evicted, remaining := rp.store.sweep(rp.expiry)
	if len(evicted) == 0 {
		return nil
	}

	for _, e := range evicted {
		rp.logger.Info("Evicted inactive room",
			"roomId", e.ID,
			"lastActive", e.LastActivity,
			"history", len(e.History))
	}
	rp.logger.Info("Cleaned up inactive rooms",
		"evicted", len(evicted),
		"active", remaining)

	for _, hook := range rp.hooks {
		hook(ctx, evicted)
	}
	return evicted
}

// sweep 删除成员为空且超过 expiry 未活跃的房间
// 正被其他请求持有锁的房间视为活跃，直接跳过
func (s *Store) sweep(expiry time.Duration) ([]Evicted, int) {
	now := s.now()
	var evicted []Evicted

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.rooms {
		if !r.mu.TryLock() {
			continue
		}
		if len(r.members) == 0 && now.Sub(r.lastActivity) > expiry {
			r.closed = true
			history := make([]HistoryEntry, len(r.history))
			copy(history, r.history)
			evicted = append(evicted, Evicted{
				ID:           id,
				CreatedAt:    r.createdAt,
				LastActivity: r.lastActivity,
				History:      history,
			})
			delete(s.rooms, id)
		}
		r.mu.Unlock()
	}
	return evicted, len(s.rooms)
}

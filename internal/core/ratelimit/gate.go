package ratelimit

import (
	"sync"
	"time"

	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// Window 單一身分的滑動視窗
type Window struct {
	mu     sync.Mutex
	stamps []time.Time
	// retired 已自儲存移除，持有者需重新取得
	retired bool
}

// prune 移除超出視窗的時間戳，需持有鎖
func (w *Window) prune(now time.Time, span time.Duration) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) >= span {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Store 依身分分區的視窗儲存
type Store interface {
	// Window 取得身分的視窗，不存在時建立
	Window(identity string) *Window
	// Range 逐一走訪，fn 返回 false 時停止
	Range(fn func(identity string, w *Window) bool)
	// Delete 移除身分，呼叫時持有該視窗的鎖
	Delete(identity string)
}

// MemoryStore 行程內儲存，重啟即清空
type MemoryStore struct {
	windows sync.Map
}

// NewMemoryStore 創建行程內儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Window(identity string) *Window {
	if w, ok := s.windows.Load(identity); ok {
		return w.(*Window)
	}
	w, _ := s.windows.LoadOrStore(identity, &Window{})
	return w.(*Window)
}

func (s *MemoryStore) Range(fn func(identity string, w *Window) bool) {
	s.windows.Range(func(k, v any) bool {
		return fn(k.(string), v.(*Window))
	})
}

func (s *MemoryStore) Delete(identity string) {
	s.windows.Delete(identity)
}

// Gate 每個身分的滑動視窗准入控制
type Gate struct {
	store  Store
	limit  int
	window time.Duration
}

// NewGate 創建准入控制
func NewGate(store Store, limit int, window time.Duration) *Gate {
	if store == nil {
		store = NewMemoryStore()
	}
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Gate{store: store, limit: limit, window: window}
}

// acquire 取得並鎖定身分目前的視窗，略過已被 Sweep 移除的舊視窗
func (g *Gate) acquire(identity string) *Window {
	for {
		w := g.store.Window(identity)
		w.mu.Lock()
		if !w.retired {
			return w
		}
		w.mu.Unlock()
	}
}

// Admit 視窗內未達上限時記錄 now 並放行
func (g *Gate) Admit(identity string, now time.Time) bool {
	w := g.acquire(identity)
	defer w.mu.Unlock()

	w.prune(now, g.window)
	if len(w.stamps) >= g.limit {
		common.LogDebug("Rate limit exceeded",
			zap.String("identity", identity),
			zap.Int("limit", g.limit),
		)
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Remaining 視窗內剩餘次數
func (g *Gate) Remaining(identity string, now time.Time) int {
	w := g.acquire(identity)
	defer w.mu.Unlock()

	w.prune(now, g.window)
	return g.limit - len(w.stamps)
}

// Limit 每個視窗的上限
func (g *Gate) Limit() int { return g.limit }

// Span 視窗長度
func (g *Gate) Span() time.Duration { return g.window }

// Sweep 移除視窗已清空的身分，返回移除數量。
// 移除在持有視窗鎖時進行，並標記為 retired，並行的 Admit 會改用新視窗。
func (g *Gate) Sweep(now time.Time) int {
	removed := 0
	g.store.Range(func(identity string, w *Window) bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.retired {
			return true
		}
		w.prune(now, g.window)
		if len(w.stamps) == 0 {
			w.retired = true
			g.store.Delete(identity)
			removed++
		}
		return true
	})
	return removed
}

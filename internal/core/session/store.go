package session

import (
	"context"
	"sync"
	"time"

	"recipe-bot/internal/core/recipe"
	"recipe-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// State 對話狀態
type State int

const (
	StateIdle State = iota
	StateChoosingMeal
	StateEnteringIngredients
)

func (s State) String() string {
	switch s {
	case StateChoosingMeal:
		return "choosing_meal"
	case StateEnteringIngredients:
		return "entering_ingredients"
	default:
		return "idle"
	}
}

// Conversation 單一身分的對話資料
type Conversation struct {
	State State
	Meal  recipe.MealCategory
}

// entry 儲存條目
type entry struct {
	conv       Conversation
	expiresAt  time.Time
	lastAccess time.Time
}

// stats 統計
type stats struct {
	hits      int64
	misses    int64
	evictions int64
}

// Store 行程內對話狀態儲存，閒置超過 ttl 即淘汰
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	stats   stats
	now     func() time.Time
}

// NewStore 創建對話狀態儲存
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get 取得對話，不存在或已過期時返回 idle
func (s *Store) Get(identity string) Conversation {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[identity]
	if !ok {
		s.stats.misses++
		return Conversation{}
	}
	if now.After(e.expiresAt) {
		delete(s.entries, identity)
		s.stats.evictions++
		s.stats.misses++
		return Conversation{}
	}

	e.lastAccess = now
	s.entries[identity] = e
	s.stats.hits++
	return e.conv
}

// Set 寫入對話並重設存活時間
func (s *Store) Set(identity string, conv Conversation) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.State == StateIdle && conv.Meal == "" {
		delete(s.entries, identity)
		return
	}
	s.entries[identity] = entry{
		conv:       conv,
		expiresAt:  now.Add(s.ttl),
		lastAccess: now,
	}
}

// Clear 回到 idle
func (s *Store) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identity)
}

// Start 啟動清理過期條目的協程，ctx 結束時返回
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup 清理過期的條目
func (s *Store) cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			count++
			s.stats.evictions++
		}
	}

	if count > 0 {
		common.LogDebug("Cleaned up expired sessions",
			zap.Int("count", count),
			zap.Int64("total_evictions", s.stats.evictions),
			zap.Int("remaining_size", len(s.entries)),
		)
	}
	return count
}

// GetStats 獲取統計信息
func (s *Store) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"size":      len(s.entries),
		"hits":      s.stats.hits,
		"misses":    s.stats.misses,
		"evictions": s.stats.evictions,
		"ttl":       s.ttl.String(),
	}
}

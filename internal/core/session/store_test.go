package session

import (
	"context"
	"testing"
	"time"

	"recipe-bot/internal/core/recipe"
)

func TestStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	newStore := func() *Store {
		s := NewStore(time.Hour)
		s.now = func() time.Time { return now }
		return s
	}

	t.Run("Missing identity is idle", func(t *testing.T) {
		s := newStore()
		if got := s.Get("1"); got.State != StateIdle || got.Meal != "" {
			t.Errorf("Expected idle, got %+v", got)
		}
	})

	t.Run("Set and get", func(t *testing.T) {
		s := newStore()
		s.Set("1", Conversation{State: StateEnteringIngredients, Meal: recipe.Dinner})
		got := s.Get("1")
		if got.State != StateEnteringIngredients || got.Meal != recipe.Dinner {
			t.Errorf("Unexpected conversation %+v", got)
		}
		if other := s.Get("2"); other.State != StateIdle {
			t.Error("Expected identities to be isolated")
		}
	})

	t.Run("Clear returns to idle", func(t *testing.T) {
		s := newStore()
		s.Set("1", Conversation{State: StateChoosingMeal})
		s.Clear("1")
		if got := s.Get("1"); got.State != StateIdle {
			t.Errorf("Expected idle after clear, got %s", got.State)
		}
	})

	t.Run("Entries expire after ttl", func(t *testing.T) {
		s := newStore()
		s.Set("1", Conversation{State: StateChoosingMeal})
		now = now.Add(2 * time.Hour)
		if got := s.Get("1"); got.State != StateIdle {
			t.Errorf("Expected expired entry to read as idle, got %s", got.State)
		}
	})

	t.Run("Cleanup evicts expired entries", func(t *testing.T) {
		s := newStore()
		s.Set("old", Conversation{State: StateChoosingMeal})
		now = now.Add(2 * time.Hour)
		s.Set("new", Conversation{State: StateChoosingMeal})

		if n := s.cleanup(); n != 1 {
			t.Errorf("Expected 1 eviction, got %d", n)
		}
		stats := s.GetStats()
		if stats["size"].(int) != 1 {
			t.Errorf("Expected 1 remaining entry, got %v", stats["size"])
		}
	})

	t.Run("Start stops with context", func(t *testing.T) {
		s := newStore()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Start(ctx, time.Millisecond)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Expected Start to return after cancel")
		}
	})
}

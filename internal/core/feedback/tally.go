package feedback

import (
	"fmt"
	"sync/atomic"
)

// Vote 使用者評價
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// ParseVote 解析回呼資料中的評價
func ParseVote(s string) (Vote, error) {
	switch Vote(s) {
	case VoteUp, VoteDown:
		return Vote(s), nil
	default:
		return "", fmt.Errorf("unknown vote %q", s)
	}
}

// Counts 評價快照
type Counts struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// Tally 行程內評價計數，可並發累加
type Tally struct {
	up   atomic.Int64
	down atomic.Int64
}

// NewTally 創建計數器
func NewTally() *Tally {
	return &Tally{}
}

// Record 累加一票
func (t *Tally) Record(v Vote) Counts {
	switch v {
	case VoteUp:
		t.up.Add(1)
	case VoteDown:
		t.down.Add(1)
	}
	return t.Snapshot()
}

// Snapshot 目前計數
func (t *Tally) Snapshot() Counts {
	return Counts{Up: t.up.Load(), Down: t.down.Load()}
}

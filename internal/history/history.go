// Package history keeps a log of finished rounds. It is write-mostly: the engine records every fold
// and showdown, and nothing in the round flow reads it back.
package history

import (
	"context"
	"sync"
	"time"
)

type RoundRecord struct {
	MatchID    string    `json:"matchId"`
	Match      int       `json:"match"` // 同一房间重开后的场次
	Round      int       `json:"round"`
	Outcome    string    `json:"outcome"`
	WinnerID   string    `json:"winnerId"`
	LoserID    string    `json:"loserId"`
	Loss       int       `json:"loss"`
	Stakes     int       `json:"stakes"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Recorder interface {
	RecordRound(ctx context.Context, r RoundRecord) error
	Rounds(ctx context.Context, matchID string) ([]RoundRecord, error)
}

type memRecorder struct {
	mu     sync.Mutex
	rounds map[string][]RoundRecord
}

func NewMemoryRecorder() Recorder {
	return &memRecorder{rounds: make(map[string][]RoundRecord)}
}

func (m *memRecorder) RecordRound(ctx context.Context, r RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.MatchID] = append(m.rounds[r.MatchID], r)
	return nil
}

func (m *memRecorder) Rounds(ctx context.Context, matchID string) ([]RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RoundRecord(nil), m.rounds[matchID]...), nil
}

// Package history keeps the rolling per-channel conversation window.
// Everything here is volatile; a restart forgets every conversation.
package history

import (
	"sync"

	"github.com/requiem-ai/relaybot/llm"
)

// MaxTurns bounds each channel to its most recent ten exchanges.
const MaxTurns = 20

type Store struct {
	mu    sync.Mutex
	turns map[string][]llm.Turn
}

func NewStore() *Store {
	return &Store{
		turns: make(map[string][]llm.Turn),
	}
}

// Get returns a copy of the channel's turns, oldest first. Empty if absent.
func (s *Store) Get(channel string) []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.turns[channel]
	out := make([]llm.Turn, len(stored))
	copy(out, stored)
	return out
}

// Append records one exchange: the user turn, then the assistant turn.
// The channel entry is created on first use and truncated to the most
// recent MaxTurns afterwards, oldest evicted first.
func (s *Store) Append(channel, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[channel],
		llm.Turn{Role: llm.RoleUser, Content: userText},
		llm.Turn{Role: llm.RoleAssistant, Content: assistantText},
	)
	if len(turns) > MaxTurns {
		turns = turns[len(turns)-MaxTurns:]
	}
	s.turns[channel] = turns
}

// Clear drops the channel's history. Reports whether anything was stored.
func (s *Store) Clear(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.turns[channel]
	delete(s.turns, channel)
	return ok
}

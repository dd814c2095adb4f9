package recovery

import (
	"sync"
	"time"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// historySize bounds the attempt history kept in memory.
const historySize = 50

// Attempt records one recovery attempt.
type Attempt struct {
	Time      time.Time
	Tag       flowerrors.Tag
	Operation string
	Strategy  string
	Succeeded bool
	Note      string
}

// history is a fixed-size ring of attempts; the oldest entry is
// overwritten once the ring is full.
type history struct {
	mu      sync.Mutex
	entries [historySize]Attempt
	next    int
	filled  bool
}

func (h *history) add(a Attempt) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = a
	h.next++
	if h.next == historySize {
		h.next = 0
		h.filled = true
	}
}

// all returns attempts oldest first.
func (h *history) all() []Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.filled {
		out := make([]Attempt, h.next)
		copy(out, h.entries[:h.next])
		return out
	}
	out := make([]Attempt, 0, historySize)
	out = append(out, h.entries[h.next:]...)
	out = append(out, h.entries[:h.next]...)
	return out
}

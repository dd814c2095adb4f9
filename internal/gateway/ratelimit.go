package gateway

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitState is the last-seen quota window of the remote API. It is
// owned by the gateway; other components read it only through Snapshot.
type RateLimitState struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Used      int
}

// rateLimitTracker guards the state for the dispatcher goroutine and the
// read-only status accessor.
type rateLimitTracker struct {
	mu    sync.Mutex
	state RateLimitState
}

// update parses the rate-limit headers of a response. Responses without
// the headers leave the state untouched.
func (t *rateLimitTracker) update(resp *http.Response) {
	if resp == nil {
		return
	}
	limit := headerInt(resp, "X-Ratelimit-Limit")
	remaining := headerInt(resp, "X-Ratelimit-Remaining")
	reset := headerInt(resp, "X-Ratelimit-Reset")
	used := headerInt(resp, "X-Ratelimit-Used")
	if limit < 0 && remaining < 0 && reset < 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if limit >= 0 {
		t.state.Limit = limit
	}
	if remaining >= 0 {
		t.state.Remaining = remaining
	}
	if reset >= 0 {
		t.state.ResetAt = time.Unix(int64(reset), 0)
	}
	if used >= 0 {
		t.state.Used = used
	}
}

// snapshot returns a copy of the current state.
func (t *rateLimitTracker) snapshot() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// waitDuration returns how long dispatch must sleep before the next call:
// zero when quota remains, otherwise the time until reset plus one second
// of slack.
func (t *rateLimitTracker) waitDuration(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Limit == 0 || t.state.Remaining > 0 {
		return 0
	}
	wait := t.state.ResetAt.Sub(now) + time.Second
	if wait < 0 {
		// Window already reset; assume quota is back.
		t.state.Remaining = 1
		return 0
	}
	return wait
}

// markExhausted records a rate-limited rejection so the next dispatch
// waits for the window.
func (t *rateLimitTracker) markExhausted(resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Remaining = 0
	if !resetAt.IsZero() {
		t.state.ResetAt = resetAt
	}
}

func headerInt(resp *http.Response, key string) int {
	v := resp.Header.Get(key)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// autosaver coalesces a burst of edits into one save: every change re-arms
// the timer, so the save fires only after the configured quiet period.
type autosaver struct {
	session *Session

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newAutosaver(s *Session) *autosaver {
	return &autosaver{session: s}
}

// arm schedules a save after delay, replacing any pending one.
func (a *autosaver) arm(delay time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(delay, a.fire)
}

// stop cancels any pending save permanently.
func (a *autosaver) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *autosaver) fire() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Autosave is silent: failures are logged and counted, never surfaced
	// to the user mid-edit. The dirty flag stays set so the next edit or
	// manual save retries.
	if err := a.session.save(ctx, "auto"); err != nil {
		a.session.logger.Warn("autosave failed", zap.Error(err))
	}
}

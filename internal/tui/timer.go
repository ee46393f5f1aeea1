package tui

import (
	"time"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

// timerModel tracks the running session. The database is the source of
// truth, so a restarted app picks the running row back up via sync.
type timerModel struct {
	store *store.Store

	active    bool
	sessionID int64
	startMs   int64
	label     string
	elapsed   time.Duration
}

func newTimerModel(s *store.Store) timerModel {
	t := timerModel{store: s}
	t.sync()
	return t
}

// sync reloads timer state from the store.
func (t *timerModel) sync() {
	running, err := t.store.RunningSession()
	if err != nil || running == nil {
		t.active = false
		t.sessionID = 0
		t.elapsed = 0
		return
	}
	t.active = true
	t.sessionID = running.ID
	t.startMs = running.StartMs
	t.label = timeline.JoinTitle(running.Activity, running.SubActivity)
	t.tick()
}

func (t *timerModel) start(activityID, subActivityID *int64, label string) error {
	id, err := t.store.StartSession(activityID, subActivityID, "")
	if err != nil {
		return err
	}
	t.active = true
	t.sessionID = id
	t.startMs = time.Now().UnixMilli()
	t.label = label
	t.elapsed = 0
	return nil
}

func (t *timerModel) stop() (bool, error) {
	stopped, err := t.store.StopSession()
	if err != nil {
		return false, err
	}
	t.active = false
	t.elapsed = 0
	return stopped, nil
}

func (t *timerModel) tick() {
	if t.active {
		t.elapsed = time.Duration(time.Now().UnixMilli()-t.startMs) * time.Millisecond
	}
}

func (t timerModel) running() bool { return t.active }

func (t timerModel) currentElapsed() time.Duration {
	if !t.active {
		return 0
	}
	return t.elapsed
}

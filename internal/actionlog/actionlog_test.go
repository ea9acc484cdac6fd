package actionlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/smartlamp/lampd/internal/db"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndRecent(t *testing.T) {
	l := openTestLog(t)

	uid := int64(7)
	entries := []Entry{
		{Actor: ActorManual, Action: ActionOn, OccurredAt: time.Unix(100, 0), UserID: &uid, Username: "alice", Detail: "manual_toggle"},
		{Actor: ActorMotion, Action: ActionOn, OccurredAt: time.Unix(200, 0), Detail: "motion_detected"},
		{Actor: ActorTimer, Action: ActionOff, OccurredAt: time.Unix(300, 0), Detail: "timer_expired"},
	}
	for _, e := range entries {
		if err := l.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := l.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	// Newest first
	if got[0].Actor != ActorTimer || got[1].Actor != ActorMotion || got[2].Actor != ActorManual {
		t.Errorf("wrong order: %v %v %v", got[0].Actor, got[1].Actor, got[2].Actor)
	}
	if got[0].OccurredAt.Unix() != 300 {
		t.Errorf("occurred_at = %d, want 300", got[0].OccurredAt.Unix())
	}

	// User attribution survives the round trip for manual entries only
	if got[2].UserID == nil || *got[2].UserID != 7 || got[2].Username != "alice" {
		t.Errorf("manual entry lost attribution: %+v", got[2])
	}
	if got[1].UserID != nil {
		t.Errorf("motion entry has user id: %+v", got[1])
	}
}

func TestRecentLimit(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 5; i++ {
		e := Entry{Actor: ActorManual, Action: ActionOn, OccurredAt: time.Unix(int64(i), 0)}
		if err := l.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].OccurredAt.Unix() != 4 {
		t.Errorf("newest entry at %d, want 4", got[0].OccurredAt.Unix())
	}
}

func TestByActor(t *testing.T) {
	l := openTestLog(t)

	seq := []Actor{ActorManual, ActorMotion, ActorManual, ActorTimer}
	for i, a := range seq {
		action := ActionOn
		if a == ActorTimer {
			action = ActionOff
		}
		if err := l.Append(Entry{Actor: a, Action: action, OccurredAt: time.Unix(int64(i), 0)}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.ByActor(ActorManual, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d manual entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Actor != ActorManual {
			t.Errorf("actor = %v, want MANUAL", e.Actor)
		}
	}
}

func TestAllAndCount(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 30; i++ {
		if err := l.Append(Entry{Actor: ActorManual, Action: ActionOn, OccurredAt: time.Unix(int64(i), 0)}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := l.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 30 {
		t.Errorf("count = %d, want 30", n)
	}

	// All returns past the Recent default limit, newest first
	got, err := l.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 30 {
		t.Fatalf("got %d entries, want 30", len(got))
	}
	if got[0].OccurredAt.Unix() != 29 || got[29].OccurredAt.Unix() != 0 {
		t.Errorf("wrong order: first=%d last=%d", got[0].OccurredAt.Unix(), got[29].OccurredAt.Unix())
	}
}

func TestClear(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 3; i++ {
		if err := l.Append(Entry{Actor: ActorTimer, Action: ActionOff}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := l.Clear()
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 3 {
		t.Errorf("cleared %d entries, want 3", n)
	}

	remaining, err := l.Count()
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("%d entries remain after clear", remaining)
	}
}

func TestAppendDefaultsOccurredAt(t *testing.T) {
	l := openTestLog(t)

	before := time.Now().Add(-time.Second)
	if err := l.Append(Entry{Actor: ActorManual, Action: ActionOn}); err != nil {
		t.Fatal(err)
	}

	got, err := l.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatal("entry missing")
	}
	if got[0].OccurredAt.Before(before) {
		t.Errorf("occurred_at %v not defaulted to now", got[0].OccurredAt)
	}
}

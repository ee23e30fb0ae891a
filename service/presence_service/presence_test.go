package presence_service

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"chat-sync-client/models"
)

func TestDefaultTypingExpiry(t *testing.T) {
	if DefaultTypingExpiry != 2*time.Second {
		t.Fatalf("typing expiry must be 2000ms, got %v", DefaultTypingExpiry)
	}
	if NewState(0).expiry != DefaultTypingExpiry {
		t.Fatal("zero expiry must fall back to the default")
	}
}

func TestTypingExpiresWithoutFalseFrame(t *testing.T) {
	state := NewState(50 * time.Millisecond)

	state.SetTyping("7", true)
	if !state.IsTyping("7") {
		t.Fatal("user 7 should be typing")
	}
	time.Sleep(120 * time.Millisecond)
	if state.IsTyping("7") {
		t.Fatal("typing indicator should have expired")
	}
}

func TestTypingRefreshRestartsExpiry(t *testing.T) {
	state := NewState(80 * time.Millisecond)

	state.SetTyping("7", true)
	time.Sleep(50 * time.Millisecond)
	state.SetTyping("7", true)
	time.Sleep(50 * time.Millisecond)
	if !state.IsTyping("7") {
		t.Fatal("refresh should have restarted the expiry window")
	}
	time.Sleep(80 * time.Millisecond)
	if state.IsTyping("7") {
		t.Fatal("typing indicator should have expired after the refreshed window")
	}
}

func TestTypingFalseIsImmediate(t *testing.T) {
	state := NewState(time.Second)
	state.SetTyping("7", true)
	state.SetTyping("8", true)
	state.SetTyping("7", false)

	if state.IsTyping("7") {
		t.Fatal("explicit false must clear immediately")
	}
	if got := state.TypingUsers(); !reflect.DeepEqual(got, []string{"8"}) {
		t.Fatalf("unexpected typing users %v", got)
	}
	if got := state.TypingUsers("8"); len(got) != 0 {
		t.Fatalf("excluded user still listed: %v", got)
	}
}

func TestOnlineStatusReplacesWholesale(t *testing.T) {
	state := NewState(0)
	state.SetOnlineStatus([]models.ID{"1", "2"}, map[string]bool{"5": true})
	state.SetOnlineStatus([]models.ID{"3"}, map[string]bool{"6": true, "5": false})

	if state.IsGroupUserOnline("1") || !state.IsGroupUserOnline("3") {
		t.Fatal("group online set was merged instead of replaced")
	}
	if state.IsPersonalUserOnline("5") || !state.IsPersonalUserOnline("6") {
		t.Fatal("personal online map was merged instead of replaced")
	}

	state.Reset()
	snap := state.Snapshot()
	if len(snap.OnlineGroupUsers) != 0 || len(snap.PersonalOnlineUsers) != 0 || len(snap.Typing) != 0 {
		t.Fatalf("Reset left state behind: %+v", snap)
	}
}

func TestSubscribe(t *testing.T) {
	state := NewState(time.Second)
	var mu sync.Mutex
	count := 0
	unsubscribe := state.Subscribe(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	state.SetTyping("1", true)
	state.SetOnlineStatus(nil, nil)
	unsubscribe()
	state.SetTyping("1", false)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("expected 2 notifications, got %d", count)
	}
}

type recorder struct {
	mu     sync.Mutex
	frames []bool
}

func (r *recorder) send(isTyping bool) {
	r.mu.Lock()
	r.frames = append(r.frames, isTyping)
	r.mu.Unlock()
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.frames...)
}

func TestTypingNotifierDebounce(t *testing.T) {
	rec := &recorder{}
	notifier := NewTypingNotifier(rec.send, MinTypingIdle)

	for i := 0; i < 10; i++ {
		notifier.Touch()
		time.Sleep(30 * time.Millisecond)
	}
	if got := rec.get(); !reflect.DeepEqual(got, []bool{true}) {
		t.Fatalf("burst should produce a single true, got %v", got)
	}

	time.Sleep(MinTypingIdle + 200*time.Millisecond)
	if got := rec.get(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Fatalf("silence should produce a single false, got %v", got)
	}

	notifier.Touch()
	if !notifier.Stop() {
		t.Fatal("Stop() during a burst should report outstanding typing")
	}
	notifier.Touch()
	time.Sleep(MinTypingIdle + 100*time.Millisecond)
	if got := rec.get(); !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Fatalf("unexpected frames after stop: %v", got)
	}
}

func TestTypingNotifierStopIsSilent(t *testing.T) {
	rec := &recorder{}
	notifier := NewTypingNotifier(rec.send, 0)
	if notifier.Stop() {
		t.Error("Stop() on an idle notifier reported typing")
	}
	if notifier.Stop() {
		t.Error("second Stop() reported typing")
	}
	if got := rec.get(); len(got) != 0 {
		t.Fatalf("Stop() sent frames: %v", got)
	}
}

func TestTypingNotifierClampsIdle(t *testing.T) {
	if n := NewTypingNotifier(func(bool) {}, 10*time.Millisecond); n.idle != MinTypingIdle {
		t.Fatalf("idle not clamped up: %v", n.idle)
	}
	if n := NewTypingNotifier(func(bool) {}, 5*time.Second); n.idle != MaxTypingIdle {
		t.Fatalf("idle not clamped down: %v", n.idle)
	}
}

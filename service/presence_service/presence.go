package presence_service

import (
	"log"
	"sort"
	"sync"
	"time"

	"chat-sync-client/models"
)

// DefaultTypingExpiry clears a typing indicator that was not refreshed.
const DefaultTypingExpiry = 2000 * time.Millisecond

// Snapshot is a read-only copy of the presence state handed to subscribers.
type Snapshot struct {
	Typing              map[string]bool `json:"typing"`
	OnlineGroupUsers    []string        `json:"onlineGroupUsers"`
	PersonalOnlineUsers map[string]bool `json:"personalOnlineUsers"`
}

// State holds volatile typing and online information. It is never persisted.
type State struct {
	expiry time.Duration

	mu             sync.RWMutex
	typing         map[string]bool
	timers         map[string]*time.Timer
	generation     map[string]uint64
	onlineGroup    map[string]struct{}
	personalOnline map[string]bool
	subs           map[uint64]func(Snapshot)
	nextSub        uint64
}

func NewState(expiry time.Duration) *State {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &State{
		expiry:         expiry,
		typing:         make(map[string]bool),
		timers:         make(map[string]*time.Timer),
		generation:     make(map[string]uint64),
		onlineGroup:    make(map[string]struct{}),
		personalOnline: make(map[string]bool),
		subs:           make(map[uint64]func(Snapshot)),
	}
}

// SetTyping overwrites the typing flag of userID. A true flag expires after
// the configured window unless another typing event refreshes it.
func (s *State) SetTyping(userID models.ID, isTyping bool) {
	user := userID.String()

	s.mu.Lock()
	s.typing[user] = isTyping
	if t, ok := s.timers[user]; ok {
		t.Stop()
		delete(s.timers, user)
	}
	s.generation[user]++
	if isTyping {
		gen := s.generation[user]
		s.timers[user] = time.AfterFunc(s.expiry, func() {
			s.expire(user, gen)
		})
	}
	s.mu.Unlock()

	s.notify()
}

func (s *State) expire(user string, gen uint64) {
	s.mu.Lock()
	// a later SetTyping bumped the generation; this timer is stale
	if s.generation[user] != gen || !s.typing[user] {
		s.mu.Unlock()
		return
	}
	s.typing[user] = false
	delete(s.timers, user)
	s.mu.Unlock()

	log.Printf("⌛ Typing indicator for user %s expired", user)
	s.notify()
}

func (s *State) IsTyping(userID models.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[userID.String()]
}

// TypingUsers lists the users currently typing, excluding the given ids.
func (s *State) TypingUsers(exclude ...models.ID) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id.String()] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []string
	for user, typing := range s.typing {
		if _, ok := skip[user]; ok || !typing {
			continue
		}
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

// SetOnlineStatus replaces both online sets wholesale.
func (s *State) SetOnlineStatus(groupUsers []models.ID, personalUsers map[string]bool) {
	s.mu.Lock()
	s.onlineGroup = make(map[string]struct{}, len(groupUsers))
	for _, id := range groupUsers {
		s.onlineGroup[id.String()] = struct{}{}
	}
	s.personalOnline = make(map[string]bool, len(personalUsers))
	for user, online := range personalUsers {
		s.personalOnline[user] = online
	}
	s.mu.Unlock()

	s.notify()
}

func (s *State) IsGroupUserOnline(userID models.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.onlineGroup[userID.String()]
	return ok
}

func (s *State) IsPersonalUserOnline(userID models.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personalOnline[userID.String()]
}

// Reset clears everything. Used on logout.
func (s *State) Reset() {
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.typing = make(map[string]bool)
	s.timers = make(map[string]*time.Timer)
	s.generation = make(map[string]uint64)
	s.onlineGroup = make(map[string]struct{})
	s.personalOnline = make(map[string]bool)
	s.mu.Unlock()

	s.notify()
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		Typing:              make(map[string]bool, len(s.typing)),
		OnlineGroupUsers:    make([]string, 0, len(s.onlineGroup)),
		PersonalOnlineUsers: make(map[string]bool, len(s.personalOnline)),
	}
	for user, typing := range s.typing {
		snap.Typing[user] = typing
	}
	for user := range s.onlineGroup {
		snap.OnlineGroupUsers = append(snap.OnlineGroupUsers, user)
	}
	sort.Strings(snap.OnlineGroupUsers)
	for user, online := range s.personalOnline {
		snap.PersonalOnlineUsers[user] = online
	}
	return snap
}

// Subscribe registers fn for every presence change and returns the
// unsubscribe func.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *State) notify() {
	s.mu.RLock()
	if len(s.subs) == 0 {
		s.mu.RUnlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

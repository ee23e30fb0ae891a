package message_store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/tool"

	"github.com/google/uuid"
)

const DefaultNamespace = "chat-messages"

// Config message store configuration
type Config struct {
	Namespace    string       `yaml:"namespace" json:"namespace"`         // storage key holding the whole store
	DeletePolicy DeletePolicy `yaml:"delete_policy" json:"delete_policy"` // mark or remove
	Compress     bool         `yaml:"compress" json:"compress"`           // gzip the persisted blob
}

func DefaultConfig() *Config {
	return &Config{
		Namespace:    DefaultNamespace,
		DeletePolicy: DeleteMark,
		Compress:     true,
	}
}

// Store is the per-conversation message log. Every mutation notifies the
// partition's subscribers and schedules a best-effort write of the whole
// store to Storage.
type Store struct {
	config  *Config
	storage Storage

	mu      sync.RWMutex
	data    map[string][]models.Message
	subs    map[string]map[uint64]func([]models.Message)
	nextSub uint64

	dirty     chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	started   bool
	closeOnce sync.Once
}

func NewStore(config *Config, storage Storage) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}
	if config.DeletePolicy != DeleteRemove {
		config.DeletePolicy = DeleteMark
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}

	return &Store{
		config:  config,
		storage: storage,
		data:    make(map[string][]models.Message),
		subs:    make(map[string]map[uint64]func([]models.Message)),
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Initialize rehydrates the store from Storage and starts the background
// writer. It must run before the first read.
func (s *Store) Initialize(ctx context.Context) error {
	blob, err := s.storage.Get(ctx, s.config.Namespace)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Printf("🗄️ Message store %s is empty, starting fresh", s.config.Namespace)
	case err != nil:
		return fmt.Errorf("failed to read message store: %w", err)
	default:
		data, err := decodeSnapshot(blob)
		if err != nil {
			// A corrupt snapshot is dropped; history is fetched again on open.
			log.Printf("⚠️ Discarding unreadable message store snapshot: %v", err)
		} else {
			s.mu.Lock()
			s.data = data
			s.mu.Unlock()
			log.Printf("✅ Message store rehydrated: %d conversations", len(data))
		}
	}

	s.mu.Lock()
	if !s.started {
		s.started = true
		s.wg.Add(1)
		go s.persistLoop()
	}
	s.mu.Unlock()
	return nil
}

// Close stops the background writer and flushes the latest state.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.Flush(ctx)
	})
	return err
}

// Flush writes the current state synchronously.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	raw, err := json.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode message store: %w", err)
	}

	blob := raw
	if s.config.Compress {
		if blob, err = tool.BytesToGzip(raw); err != nil {
			return fmt.Errorf("failed to compress message store: %w", err)
		}
	}
	if err := s.storage.Set(ctx, s.config.Namespace, blob); err != nil {
		return fmt.Errorf("failed to persist message store: %w", err)
	}
	return nil
}

func (s *Store) persistLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(ctx); err != nil {
				log.Printf("⚠️ %v", err)
			}
			cancel()
		}
	}
}

func (s *Store) schedulePersist() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func decodeSnapshot(blob []byte) (map[string][]models.Message, error) {
	if tool.IsGzip(blob) {
		raw, err := tool.GzipToBytes(blob)
		if err != nil {
			return nil, err
		}
		blob = raw
	}
	data := make(map[string][]models.Message)
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadMessages replaces the whole log of key with messages.
func (s *Store) LoadMessages(key models.ConversationKey, messages []models.Message) {
	list := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		list = append(list, withClientKey(m.Clone()))
	}

	s.mu.Lock()
	s.data[key.String()] = list
	s.mu.Unlock()

	s.changed(key)
}

// AddMessage appends message to the log of key. Messages without a server id
// are appended as well and get a local render key.
func (s *Store) AddMessage(key models.ConversationKey, message models.Message) {
	message = withClientKey(message.Clone())

	s.mu.Lock()
	k := key.String()
	s.data[k] = append(s.data[k], message)
	s.mu.Unlock()

	s.changed(key)
}

// EditMessage applies patch to the message with id. It reports whether a
// message was found; an unknown id leaves the log untouched.
func (s *Store) EditMessage(key models.ConversationKey, id models.ID, patch models.MessagePatch) bool {
	s.mu.Lock()
	list := s.data[key.String()]
	idx := indexOf(list, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	patch.Apply(&list[idx])
	s.mu.Unlock()

	s.changed(key)
	return true
}

// DeleteMessage removes or blanks the message with id depending on the
// configured policy. Under DeleteMark the id slot stays and nothing of the
// original content remains.
func (s *Store) DeleteMessage(key models.ConversationKey, id models.ID) bool {
	s.mu.Lock()
	k := key.String()
	list := s.data[k]
	idx := indexOf(list, id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	if s.config.DeletePolicy == DeleteRemove {
		s.data[k] = append(list[:idx:idx], list[idx+1:]...)
	} else {
		m := &list[idx]
		m.IsDeleted = true
		m.Content = ""
		m.Attachments = nil
		m.Latitude = nil
		m.Longitude = nil
	}
	s.mu.Unlock()

	s.changed(key)
	return true
}

// ClearMessages drops the partition of key entirely.
func (s *Store) ClearMessages(key models.ConversationKey) {
	s.mu.Lock()
	delete(s.data, key.String())
	s.mu.Unlock()

	s.changed(key)
}

// ClearAll drops every partition. Used on logout.
func (s *Store) ClearAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.data = make(map[string][]models.Message)
	s.mu.Unlock()

	for _, k := range keys {
		if key, err := models.ParseConversationKey(k); err == nil {
			s.notify(key)
		}
	}
	s.schedulePersist()
}

// Messages returns a copy of the log of key in insertion order.
func (s *Store) Messages(key models.ConversationKey) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneList(s.data[key.String()])
}

// Contains reports whether a message with id is in the log of key.
func (s *Store) Contains(key models.ConversationKey, id models.ID) bool {
	if id.IsZero() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.data[key.String()], id) >= 0
}

// Keys lists the stored partitions.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn for changes to the log of key. fn receives a copy of
// the log after every mutation. The returned func unsubscribes.
func (s *Store) Subscribe(key models.ConversationKey, fn func([]models.Message)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if s.subs[k] == nil {
		s.subs[k] = make(map[uint64]func([]models.Message))
	}
	s.nextSub++
	id := s.nextSub
	s.subs[k][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[k], id)
		if len(s.subs[k]) == 0 {
			delete(s.subs, k)
		}
	}
}

func (s *Store) changed(key models.ConversationKey) {
	s.notify(key)
	s.schedulePersist()
}

func (s *Store) notify(key models.ConversationKey) {
	s.mu.RLock()
	k := key.String()
	fns := make([]func([]models.Message), 0, len(s.subs[k]))
	for _, fn := range s.subs[k] {
		fns = append(fns, fn)
	}
	snapshot := cloneList(s.data[k])
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(cloneList(snapshot))
	}
}

func withClientKey(m models.Message) models.Message {
	if m.ID.IsZero() && m.ClientKey == "" {
		m.ClientKey = uuid.NewString()
	}
	return m
}

func indexOf(list []models.Message, id models.ID) int {
	if id.IsZero() {
		return -1
	}
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneList(list []models.Message) []models.Message {
	if list == nil {
		return nil
	}
	out := make([]models.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}

package pebble_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"chat-sync-client/service/message_store"

	"github.com/cockroachdb/pebble"
)

const (
	CollectionChatState = "chat_state" // 消息快照与凭证 key: namespace, value: blob
)

// PebbleService Pebble 数据库服务; implements message_store.Storage on one
// collection.
type PebbleService struct {
	collectionMgr *CollectionManager // 集合管理器
	mu            sync.RWMutex
	path          string
	collection    string
}

// Config Pebble 配置
type Config struct {
	DBPath     string `yaml:"db_path" json:"db_path"`       // 数据库文件路径
	Collection string `yaml:"collection" json:"collection"` // default chat_state
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DBPath:     "./data/chat_pebble",
		Collection: CollectionChatState,
	}
}

// CollectionManager 集合管理器
type CollectionManager struct {
	mu          sync.RWMutex
	collections map[string]*pebble.DB
	basePath    string
}

// NewCollectionManager 创建集合管理器
func NewCollectionManager(basePath string) *CollectionManager {
	return &CollectionManager{
		collections: make(map[string]*pebble.DB),
		basePath:    basePath,
	}
}

// GetCollection opens the collection's database on first use.
func (cm *CollectionManager) GetCollection(collectionName string) (*pebble.DB, error) {
	cm.mu.RLock()
	if db, exists := cm.collections[collectionName]; exists {
		cm.mu.RUnlock()
		return db, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// 双重检查
	if db, exists := cm.collections[collectionName]; exists {
		return db, nil
	}

	dbPath := filepath.Join(cm.basePath, collectionName)
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(8 << 20),
		FormatMajorVersion:          pebble.FormatNewest,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       1000,
		LBaseMaxBytes:               16 << 20,
		MaxOpenFiles:                256,
		MemTableSize:                8 << 20, // snapshots are rewritten whole
		MemTableStopWritesThreshold: 4,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", collectionName, err)
	}

	cm.collections[collectionName] = db
	log.Printf("✅ Collection %s opened: %s", collectionName, dbPath)
	return db, nil
}

// CloseAll 关闭所有集合的数据库
func (cm *CollectionManager) CloseAll() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []string
	for collectionName, db := range cm.collections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("close %s: %v", collectionName, err))
		} else {
			log.Printf("✅ Collection %s closed", collectionName)
		}
	}
	cm.collections = make(map[string]*pebble.DB)

	if len(errs) > 0 {
		return fmt.Errorf("failed to close collections: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewPebbleService 创建新的 Pebble 服务实例
func NewPebbleService(config *Config) *PebbleService {
	if config == nil {
		config = DefaultConfig()
	}
	collection := config.Collection
	if collection == "" {
		collection = CollectionChatState
	}

	return &PebbleService{
		path:          config.DBPath,
		collection:    collection,
		collectionMgr: NewCollectionManager(config.DBPath),
	}
}

// Initialize opens the backing collection so that a bad path fails at
// startup rather than on the first write.
func (ps *PebbleService) Initialize() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	log.Printf("🚀 Initializing Pebble storage: %s", ps.path)

	dbPath, err := filepath.Abs(ps.path)
	if err != nil {
		return fmt.Errorf("failed to resolve db path: %w", err)
	}
	if _, err := ps.collectionMgr.GetCollection(ps.collection); err != nil {
		return err
	}

	log.Printf("✅ Pebble storage ready: %s", dbPath)
	return nil
}

// Close 关闭数据库
func (ps *PebbleService) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.collectionMgr != nil {
		if err := ps.collectionMgr.CloseAll(); err != nil {
			log.Printf("❌ %v", err)
			return err
		}
	}

	log.Printf("✅ Pebble storage closed")
	return nil
}

func (ps *PebbleService) db() (*pebble.DB, error) {
	if ps.collectionMgr == nil {
		return nil, fmt.Errorf("collection manager not initialized")
	}
	return ps.collectionMgr.GetCollection(ps.collection)
}

func (ps *PebbleService) Get(ctx context.Context, key string) ([]byte, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.db()
	if err != nil {
		return nil, err
	}

	value, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, message_store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()

	// value is only valid until closer.Close
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (ps *PebbleService) Set(ctx context.Context, key string, value []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.db()
	if err != nil {
		return err
	}
	if err := db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	log.Printf("🗄️ Stored %s (%d bytes)", key, len(value))
	return nil
}

func (ps *PebbleService) Remove(ctx context.Context, key string) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	db, err := ps.db()
	if err != nil {
		return err
	}
	if err := db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

package redis_service

import (
	"context"
	"errors"
	"os"
	"testing"

	"chat-sync-client/service/message_store"
)

// Needs a live server: REDIS_ADDR=localhost:6379 go test ./service/redis_service/
func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	rs := NewRedisService(&Config{Addr: addr, KeyPrefix: "chat-sync-test:"})
	if err := rs.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	defer rs.Close()
	defer rs.Remove(ctx, "blob")

	if err := rs.Set(ctx, "blob", []byte("hello")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	got, err := rs.Get(ctx, "blob")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := rs.Remove(ctx, "blob"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := rs.Get(ctx, "blob"); !errors.Is(err, message_store.ErrNotFound) {
		t.Errorf("Get() after Remove() error = %v", err)
	}
}

func TestNewRedisServiceDefaults(t *testing.T) {
	rs := NewRedisService(nil)
	defer rs.Close()
	if rs.prefix != "chat-sync:" {
		t.Errorf("prefix = %q", rs.prefix)
	}
	if rs.client.Options().Addr != "localhost:6379" {
		t.Errorf("addr = %q", rs.client.Options().Addr)
	}
}

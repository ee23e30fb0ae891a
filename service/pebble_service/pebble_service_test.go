package pebble_service

import (
	"context"
	"errors"
	"testing"

	"chat-sync-client/models"
	"chat-sync-client/service/message_store"
)

func newTestService(t *testing.T, dir string) *PebbleService {
	t.Helper()
	ps := NewPebbleService(&Config{DBPath: dir})
	if err := ps.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return ps
}

func TestGetSetRemove(t *testing.T) {
	ctx := context.Background()
	ps := newTestService(t, t.TempDir())
	defer ps.Close()

	if _, err := ps.Get(ctx, "missing"); !errors.Is(err, message_store.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := ps.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := ps.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	got, err := ps.Get(ctx, "k")
	if err != nil || string(got) != "v2" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	if err := ps.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := ps.Get(ctx, "k"); !errors.Is(err, message_store.ErrNotFound) {
		t.Errorf("Get() after Remove() error = %v", err)
	}
}

func TestMessageStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := models.NewConversationKey(models.KindGroup, "3")

	ps := newTestService(t, dir)
	store := message_store.NewStore(nil, ps)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("store Initialize() failed: %v", err)
	}
	store.LoadMessages(key, []models.Message{{ID: "1", Sender: "2", Content: "persisted"}})
	if err := store.Close(); err != nil {
		t.Fatalf("store Close() failed: %v", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened := newTestService(t, dir)
	defer reopened.Close()
	restored := message_store.NewStore(nil, reopened)
	if err := restored.Initialize(ctx); err != nil {
		t.Fatalf("restored Initialize() failed: %v", err)
	}
	defer restored.Close()

	got := restored.Messages(key)
	if len(got) != 1 || got[0].Content != "persisted" {
		t.Errorf("restored messages = %+v", got)
	}
}

package auth_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/service/message_store"

	"github.com/golang-jwt/jwt/v5"
)

const CredentialKey = "auth-credential"

var ErrNoUserID = errors.New("token carries no user id")

// CredentialStore is the auth collaborator. It keeps the current bearer token
// in memory and mirrors it into durable storage so it survives restarts.
type CredentialStore struct {
	mu         sync.RWMutex
	storage    message_store.Storage
	credential string
}

func NewCredentialStore(storage message_store.Storage) *CredentialStore {
	return &CredentialStore{storage: storage}
}

// Initialize loads the persisted token. A non-empty bootstrap token replaces
// whatever was stored.
func (s *CredentialStore) Initialize(ctx context.Context, bootstrap string) error {
	if token := StripBearer(bootstrap); token != "" {
		return s.SetCredential(ctx, token)
	}

	blob, err := s.storage.Get(ctx, CredentialKey)
	if errors.Is(err, message_store.ErrNotFound) {
		log.Printf("🔑 No stored credential")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	s.mu.Lock()
	s.credential = StripBearer(string(blob))
	s.mu.Unlock()
	log.Printf("✅ Credential restored")
	return nil
}

// GetCurrentCredential returns the bare token, or "" when signed out.
func (s *CredentialStore) GetCurrentCredential(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential, nil
}

func (s *CredentialStore) SetCredential(ctx context.Context, token string) error {
	token = StripBearer(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := s.storage.Set(ctx, CredentialKey, []byte(token)); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	s.mu.Lock()
	s.credential = token
	s.mu.Unlock()
	log.Printf("✅ Credential updated")
	return nil
}

// Clear signs out.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()

	if err := s.storage.Remove(ctx, CredentialKey); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	log.Printf("🔑 Credential cleared")
	return nil
}

// CurrentUserID returns the user id carried by the current token.
func (s *CredentialStore) CurrentUserID() (models.ID, error) {
	s.mu.RLock()
	token := s.credential
	s.mu.RUnlock()
	return UserIDFromToken(token)
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) >= 7 && strings.EqualFold(credential[:7], "bearer ") {
		credential = strings.TrimSpace(credential[7:])
	}
	return credential
}

// Claims the fields of the chat server's access token this client reads.
type Claims struct {
	UserID models.ID `json:"user_id"`
	jwt.RegisteredClaims
}

// UserIDFromToken reads user_id, falling back to sub. The signature is not
// verified.
func UserIDFromToken(token string) (models.ID, error) {
	token = StripBearer(token)
	if token == "" {
		return "", ErrNoUserID
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !claims.UserID.IsZero() {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return models.ID(claims.Subject), nil
	}
	return "", ErrNoUserID
}

// TokenExpired reports whether the token's exp claim lies before now. Tokens
// without exp, and opaque tokens that are not JWTs, never expire here; the
// server has the final say on those.
func TokenExpired(token string, now time.Time) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(StripBearer(token), claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}

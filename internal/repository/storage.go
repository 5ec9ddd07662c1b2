package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"persona-chat/internal/domain"
)

const conversationsKeyPrefix = "chatConversations_"

// Backend is a string-keyed blob store. Implementations report a missing key
// with found=false and a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Storage persists a user's full conversation list as one JSON array.
type Storage struct {
	backend   Backend
	namespace string
}

// NewStorage creates a Storage. pathName namespaces deployments that share one
// backend, the way a page's URL path does for browser storage.
func NewStorage(backend Backend, pathName string) (*Storage, error) {
	if backend == nil {
		return nil, errors.New("repository: backend must not be nil")
	}
	if strings.TrimSpace(pathName) == "" {
		pathName = "/"
	}
	return &Storage{
		backend:   backend,
		namespace: strings.ReplaceAll(pathName, "/", "_"),
	}, nil
}

// Key returns the storage key for username.
func (s *Storage) Key(username string) string {
	return s.namespace + "_" + conversationsKeyPrefix + username
}

// Save overwrites the stored list for username.
func (s *Storage) Save(ctx context.Context, conversations []domain.Conversation, username string) error {
	if username == "" {
		return errors.New("repository: Save: username must not be empty")
	}
	raw, err := encode(normalize(conversations))
	if err != nil {
		return fmt.Errorf("repository: Save marshal: %w", err)
	}
	if err := s.backend.Put(ctx, s.Key(username), raw); err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

// Load returns the stored list for username. A missing entry yields an empty
// list; unreadable or malformed content yields an empty list and an error.
func (s *Storage) Load(ctx context.Context, username string) ([]domain.Conversation, error) {
	if username == "" {
		return []domain.Conversation{}, errors.New("repository: Load: username must not be empty")
	}
	raw, found, err := s.backend.Get(ctx, s.Key(username))
	if err != nil {
		return []domain.Conversation{}, fmt.Errorf("repository: Load: %w", err)
	}
	if !found || len(raw) == 0 {
		return []domain.Conversation{}, nil
	}
	var out []domain.Conversation
	if err := json.Unmarshal(raw, &out); err != nil {
		return []domain.Conversation{}, fmt.Errorf("repository: Load unmarshal: %w", err)
	}
	return assignMissingIDs(normalize(out)), nil
}

// Clear removes the stored list for username.
func (s *Storage) Clear(ctx context.Context, username string) error {
	if username == "" {
		return errors.New("repository: Clear: username must not be empty")
	}
	if err := s.backend.Delete(ctx, s.Key(username)); err != nil {
		return fmt.Errorf("repository: Clear: %w", err)
	}
	return nil
}

// normalize guarantees non-nil slices so "messages" is always written as an array.
func normalize(in []domain.Conversation) []domain.Conversation {
	out := make([]domain.Conversation, len(in))
	for i, c := range in {
		if c.Messages == nil {
			c.Messages = []domain.Message{}
		}
		out[i] = c
	}
	return out
}

// encode writes v the way JSON.stringify does: no HTML escaping and no
// trailing newline.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// assignMissingIDs gives records stored without an id a fresh one; the store
// cannot select or address a conversation with an empty id.
func assignMissingIDs(in []domain.Conversation) []domain.Conversation {
	for i := range in {
		if in[i].ID == "" {
			in[i].ID = newID()
		}
	}
	return in
}

var newID = func() string {
	return uuid.NewString()
}

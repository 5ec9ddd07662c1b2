package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"persona-chat/internal/domain"
)

const defaultAvatar = "default-avatar.svg"

// Persister is the durable side of the store. *repository.Storage satisfies it.
type Persister interface {
	Save(ctx context.Context, conversations []domain.Conversation, username string) error
	Load(ctx context.Context, username string) ([]domain.Conversation, error)
	Clear(ctx context.Context, username string) error
}

type ChangeKind string

const (
	ChangeLoaded          ChangeKind = "loaded"
	ChangeCreated         ChangeKind = "created"
	ChangeSwitched        ChangeKind = "switched"
	ChangeSettings        ChangeKind = "settings_updated"
	ChangeDetails         ChangeKind = "details_updated"
	ChangeDeleted         ChangeKind = "deleted"
	ChangeMessagesDeleted ChangeKind = "messages_deleted"
	ChangeMessagesCleared ChangeKind = "messages_cleared"
	ChangeReset           ChangeKind = "reset"
)

// Change describes a state transition for view adapters. Conversation is set
// for created and switched events and is a copy.
type Change struct {
	Kind           ChangeKind
	ConversationID string
	Conversation   *domain.Conversation
}

// MessageObserver is told about every message appended to any conversation.
type MessageObserver func(conversationID string, msg domain.Message)

// ChangeObserver is told about every other state transition.
type ChangeObserver func(Change)

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	Scene         *string `json:"scene,omitempty"`
	Behavior      *string `json:"behavior,omitempty"`
	PartnerInfo   *string `json:"partnerInfo,omitempty"`
	CustomSetting *string `json:"customSetting,omitempty"`
}

// Apply returns base with the patch's non-nil fields written over it.
func (p SettingsPatch) Apply(base domain.Settings) domain.Settings {
	if p.Scene != nil {
		base.Scene = *p.Scene
	}
	if p.Behavior != nil {
		base.Behavior = *p.Behavior
	}
	if p.PartnerInfo != nil {
		base.PartnerInfo = *p.PartnerInfo
	}
	if p.CustomSetting != nil {
		base.CustomSetting = *p.CustomSetting
	}
	return base
}

type CreateInput struct {
	Name     string
	Avatar   string
	Note     string
	Settings SettingsPatch
}

type DetailsInput struct {
	Name   string
	Avatar string
	Note   string
}

type StoreOption func(*ConversationStore)

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *ConversationStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMessageObserver(fn MessageObserver) StoreOption {
	return func(s *ConversationStore) {
		s.onMessage = fn
	}
}

func WithChangeObserver(fn ChangeObserver) StoreOption {
	return func(s *ConversationStore) {
		s.onChange = fn
	}
}

func WithDefaultAvatar(avatar string) StoreOption {
	return func(s *ConversationStore) {
		if avatar = strings.TrimSpace(avatar); avatar != "" {
			s.defaultAvatar = avatar
		}
	}
}

// ConversationStore holds one user's conversations and the current pointer.
// Every mutation rewrites the full list through the Persister. Observers run
// after the internal lock is released and may call back into the store.
type ConversationStore struct {
	persister     Persister
	logger        *slog.Logger
	defaultAvatar string
	onMessage     MessageObserver
	onChange      ChangeObserver

	mu            sync.Mutex
	conversations []domain.Conversation
	currentID     string
}

func NewConversationStore(p Persister, opts ...StoreOption) (*ConversationStore, error) {
	if p == nil {
		return nil, errors.New("usecase: persister must not be nil")
	}
	s := &ConversationStore{
		persister:     p,
		logger:        slog.Default(),
		defaultAvatar: defaultAvatar,
		conversations: []domain.Conversation{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init replaces in-memory state with the persisted list for username and
// selects the first conversation. Unreadable storage starts an empty list.
func (s *ConversationStore) Init(ctx context.Context, username string) error {
	if username == "" {
		s.logger.Error("conversation init without username")
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	loaded, err := s.persister.Load(ctx, username)
	if err != nil {
		s.logger.Warn("conversation load failed; starting empty", "username", username, "err", err)
		loaded = []domain.Conversation{}
	}

	s.mu.Lock()
	s.conversations = loaded
	s.currentID = ""
	var changes []Change
	changes = append(changes, Change{Kind: ChangeLoaded})
	if len(s.conversations) > 0 {
		changes = append(changes, s.selectLocked(0))
	}
	s.mu.Unlock()

	s.emit(changes...)
	return nil
}

// Create appends a new conversation and makes it current.
func (s *ConversationStore) Create(ctx context.Context, in CreateInput, username string) (string, error) {
	if username == "" {
		return "", newError(ErrorInvalidInput, "empty_username", nil)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", newError(ErrorInvalidInput, "empty_name", nil)
	}
	avatar := in.Avatar
	if avatar == "" {
		avatar = s.defaultAvatar
	}

	conv := domain.Conversation{
		ID:        newID(),
		Name:      name,
		Avatar:    avatar,
		Note:      in.Note,
		Settings:  in.Settings.Apply(domain.Settings{}),
		Messages:  []domain.Message{},
		CreatedAt: domain.FormatTimestamp(now()),
	}

	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	err := s.persistLocked(ctx, username)
	created := conv.Clone()
	changes := []Change{
		{Kind: ChangeCreated, ConversationID: conv.ID, Conversation: &created},
		s.selectLocked(len(s.conversations) - 1),
	}
	s.mu.Unlock()

	s.emit(changes...)
	return conv.ID, err
}

// SwitchCurrent makes id current. An unknown id leaves current unchanged.
func (s *ConversationStore) SwitchCurrent(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return domain.Conversation{}, false
	}
	change := s.selectLocked(idx)
	out := s.conversations[idx].Clone()
	s.mu.Unlock()

	s.emit(change)
	return out, true
}

// UpdateSettings merges patch into the current conversation's settings.
func (s *ConversationStore) UpdateSettings(ctx context.Context, patch SettingsPatch, username string) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	s.mu.Lock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return errNoConversation
	}
	s.conversations[idx].Settings = patch.Apply(s.conversations[idx].Settings)
	err := s.persistLocked(ctx, username)
	id := s.currentID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeSettings, ConversationID: id})
	return err
}

// SaveDetails overwrites the current conversation's name, avatar and note.
// An empty avatar keeps the existing one.
func (s *ConversationStore) SaveDetails(ctx context.Context, in DetailsInput, username string) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return newError(ErrorInvalidInput, "empty_name", nil)
	}

	s.mu.Lock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return errNoConversation
	}
	c := &s.conversations[idx]
	c.Name = name
	if in.Avatar != "" {
		c.Avatar = in.Avatar
	}
	c.Note = strings.TrimSpace(in.Note)
	err := s.persistLocked(ctx, username)
	id := s.currentID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeDetails, ConversationID: id})
	return err
}

// Delete removes the current conversation and selects the one now at index 0,
// or none when the list is empty.
func (s *ConversationStore) Delete(ctx context.Context, username string) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	s.mu.Lock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return errNoConversation
	}
	removed := s.conversations[idx].ID
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	s.currentID = ""
	changes := []Change{{Kind: ChangeDeleted, ConversationID: removed}}
	if len(s.conversations) > 0 {
		changes = append(changes, s.selectLocked(0))
	}
	err := s.persistLocked(ctx, username)
	s.mu.Unlock()

	s.emit(changes...)
	return err
}

// AppendMessage appends msg to the current conversation.
func (s *ConversationStore) AppendMessage(ctx context.Context, msg domain.Message, username string) error {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id == "" {
		return errNoConversation
	}
	return s.appendTo(ctx, id, msg, username, errNoConversation)
}

// AppendMessageTo appends msg to the conversation with conversationID,
// whether or not it is current.
func (s *ConversationStore) AppendMessageTo(ctx context.Context, conversationID string, msg domain.Message, username string) error {
	return s.appendTo(ctx, conversationID, msg, username, newError(ErrorNotFound, "conversation_not_found", nil))
}

func (s *ConversationStore) appendTo(ctx context.Context, id string, msg domain.Message, username string, missing error) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return missing
	}
	c := &s.conversations[idx]
	c.Messages = append(c.Messages, msg)
	c.LastMessage = msg.Preview()
	err := s.persistLocked(ctx, username)
	s.mu.Unlock()

	if s.onMessage != nil {
		s.onMessage(id, msg)
	}
	return err
}

// DeleteMessages removes every message of the current conversation whose id
// is in ids and returns how many were removed.
func (s *ConversationStore) DeleteMessages(ctx context.Context, ids map[string]struct{}, username string) (int, error) {
	if username == "" {
		return 0, newError(ErrorInvalidInput, "empty_username", nil)
	}
	if len(ids) == 0 {
		return 0, newError(ErrorInvalidInput, "no_messages_selected", nil)
	}
	s.mu.Lock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return 0, errNoConversation
	}
	c := &s.conversations[idx]
	kept := make([]domain.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if _, drop := ids[m.ID]; !drop {
			kept = append(kept, m)
		}
	}
	removed := len(c.Messages) - len(kept)
	c.Messages = kept
	c.LastMessage = nil
	if len(kept) > 0 {
		c.LastMessage = kept[len(kept)-1].Preview()
	}
	err := s.persistLocked(ctx, username)
	id := s.currentID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeMessagesDeleted, ConversationID: id})
	return removed, err
}

// ClearMessages empties the current conversation's history.
func (s *ConversationStore) ClearMessages(ctx context.Context, username string) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	s.mu.Lock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return errNoConversation
	}
	s.conversations[idx].Messages = []domain.Message{}
	s.conversations[idx].LastMessage = nil
	err := s.persistLocked(ctx, username)
	id := s.currentID
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeMessagesCleared, ConversationID: id})
	return err
}

// Reset drops every conversation for username, in memory and in storage.
func (s *ConversationStore) Reset(ctx context.Context, username string) error {
	if username == "" {
		return newError(ErrorInvalidInput, "empty_username", nil)
	}
	s.mu.Lock()
	s.conversations = []domain.Conversation{}
	s.currentID = ""
	s.mu.Unlock()

	var out error
	if err := s.persister.Clear(ctx, username); err != nil {
		s.logger.Warn("conversation clear failed", "username", username, "err", err)
		out = newError(ErrorPersistence, "clear_failed", err)
	}
	s.emit(Change{Kind: ChangeReset})
	return out
}

// CurrentID returns the current conversation id, or "" when none is selected.
func (s *ConversationStore) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Current returns a copy of the current conversation.
func (s *ConversationStore) Current() (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		return domain.Conversation{}, false
	}
	return s.conversations[idx].Clone(), true
}

// Get returns a copy of the conversation with id.
func (s *ConversationStore) Get(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Conversation{}, false
	}
	return s.conversations[idx].Clone(), true
}

// All returns copies of every conversation in list order.
func (s *ConversationStore) All() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Summaries returns the list-preview rows in list order.
func (s *ConversationStore) Summaries() []domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Summary, len(s.conversations))
	for i, c := range s.conversations {
		row := domain.Summary{
			ID:     c.ID,
			Name:   c.Name,
			Avatar: c.Avatar,
			Note:   c.Note,
			Active: c.ID == s.currentID,
		}
		if c.LastMessage != nil {
			lm := *c.LastMessage
			row.LastMessage = &lm
		}
		out[i] = row
	}
	return out
}

func (s *ConversationStore) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ConversationStore) selectLocked(idx int) Change {
	s.currentID = s.conversations[idx].ID
	c := s.conversations[idx].Clone()
	return Change{Kind: ChangeSwitched, ConversationID: c.ID, Conversation: &c}
}

func (s *ConversationStore) persistLocked(ctx context.Context, username string) error {
	if err := s.persister.Save(ctx, s.conversations, username); err != nil {
		s.logger.Warn("conversation save failed; keeping in-memory state", "username", username, "err", err)
		return newError(ErrorPersistence, "save_failed", err)
	}
	return nil
}

func (s *ConversationStore) emit(changes ...Change) {
	if s.onChange == nil {
		return
	}
	for _, c := range changes {
		s.onChange(c)
	}
}

var newID = func() string {
	return uuid.NewString()
}

var now = func() time.Time {
	return time.Now()
}

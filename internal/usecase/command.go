package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"persona-chat/internal/domain"
)

type Action string

const (
	ActionList           Action = "list"
	ActionCreate         Action = "create"
	ActionSwitch         Action = "switch"
	ActionUpdateSettings Action = "update_settings"
	ActionSaveDetails    Action = "save_details"
	ActionDelete         Action = "delete"
	ActionSend           Action = "send"
	ActionDeleteMessages Action = "delete_messages"
	ActionClearMessages  Action = "clear_messages"
	ActionReset          Action = "reset"
)

// CommandInput is one request against a user's conversations. ConversationID,
// when set, is switched to before the action runs.
type CommandInput struct {
	Action         Action        `json:"action"`
	Username       string        `json:"username"`
	ConversationID string        `json:"conversationId,omitempty"`
	Name           string        `json:"name,omitempty"`
	Avatar         string        `json:"avatar,omitempty"`
	Note           string        `json:"note,omitempty"`
	Settings       SettingsPatch `json:"settings"`
	Text           string        `json:"text,omitempty"`
	MessageIDs     []string      `json:"messageIds,omitempty"`
}

// CommandOutput is the state a view needs to render after the action.
type CommandOutput struct {
	CurrentID     string               `json:"currentId"`
	Conversations []domain.Summary     `json:"conversations"`
	Current       *domain.Conversation `json:"current"`
	Message       *domain.Message      `json:"message,omitempty"`
	Removed       int                  `json:"removed,omitempty"`
}

// CommandService runs one action per call against a freshly loaded store, so
// it holds no per-user state between calls. Replies are delivered before
// Execute returns.
type CommandService struct {
	persister     Persister
	replyDelay    time.Duration
	defaultAvatar string
	logger        *slog.Logger
	assistant     bool
}

type CommandOption func(*CommandService)

// WithAssistant makes every request load the assistant conversation as
// current, creating it on a user's first request.
func WithAssistant(enabled bool) CommandOption {
	return func(s *CommandService) {
		s.assistant = enabled
	}
}

func NewCommandService(p Persister, replyDelay time.Duration, defaultAvatar string, logger *slog.Logger, opts ...CommandOption) (*CommandService, error) {
	if p == nil {
		return nil, errors.New("usecase: persister must not be nil")
	}
	if replyDelay < 0 {
		replyDelay = defaultReplyDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &CommandService{
		persister:     p,
		replyDelay:    replyDelay,
		defaultAvatar: defaultAvatar,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *CommandService) Execute(ctx context.Context, in CommandInput) (CommandOutput, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return CommandOutput{}, newError(ErrorInvalidInput, "empty_username", nil)
	}

	store, err := NewConversationStore(s.persister, WithLogger(s.logger), WithDefaultAvatar(s.defaultAvatar))
	if err != nil {
		return CommandOutput{}, newError(ErrorInternal, "store_init_error", err)
	}
	if err := store.Init(ctx, username); err != nil {
		return CommandOutput{}, err
	}
	if s.assistant {
		if _, err := store.EnsureAssistant(ctx, username); err != nil {
			return CommandOutput{}, err
		}
	}
	disp, err := NewDispatcher(store, WithReplyDelay(s.replyDelay), WithDispatcherLogger(s.logger))
	if err != nil {
		return CommandOutput{}, newError(ErrorInternal, "dispatcher_init_error", err)
	}
	defer disp.Close()

	if id := strings.TrimSpace(in.ConversationID); id != "" {
		if _, ok := store.SwitchCurrent(id); !ok {
			return CommandOutput{}, newError(ErrorNotFound, "conversation_not_found", nil)
		}
	}

	var out CommandOutput
	switch in.Action {
	case ActionList, ActionSwitch:
	case ActionCreate:
		_, err = store.Create(ctx, CreateInput{Name: in.Name, Avatar: in.Avatar, Note: in.Note, Settings: in.Settings}, username)
	case ActionUpdateSettings:
		err = store.UpdateSettings(ctx, in.Settings, username)
	case ActionSaveDetails:
		err = store.SaveDetails(ctx, DetailsInput{Name: in.Name, Avatar: in.Avatar, Note: in.Note}, username)
	case ActionDelete:
		err = store.Delete(ctx, username)
	case ActionSend:
		var msg domain.Message
		msg, err = disp.Send(ctx, in.Text, username)
		if err == nil {
			out.Message = &msg
		}
		disp.Flush()
	case ActionDeleteMessages:
		ids := make(map[string]struct{}, len(in.MessageIDs))
		for _, id := range in.MessageIDs {
			ids[id] = struct{}{}
		}
		out.Removed, err = disp.DeleteSelected(ctx, ids, username)
	case ActionClearMessages:
		err = disp.ClearAll(ctx, username)
	case ActionReset:
		err = store.Reset(ctx, username)
	default:
		return CommandOutput{}, newError(ErrorInvalidInput, "unknown_action", nil)
	}
	if err != nil {
		return CommandOutput{}, err
	}

	out.CurrentID = store.CurrentID()
	out.Conversations = store.Summaries()
	if cur, ok := store.Current(); ok {
		out.Current = &cur
	}
	return out, nil
}

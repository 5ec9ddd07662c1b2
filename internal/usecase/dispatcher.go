package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"persona-chat/internal/domain"
)

const defaultReplyDelay = time.Second

// MessageStore is the subset of ConversationStore the dispatcher drives.
type MessageStore interface {
	Current() (domain.Conversation, bool)
	AppendMessage(ctx context.Context, msg domain.Message, username string) error
	AppendMessageTo(ctx context.Context, conversationID string, msg domain.Message, username string) error
	DeleteMessages(ctx context.Context, ids map[string]struct{}, username string) (int, error)
	ClearMessages(ctx context.Context, username string) error
}

type DispatcherOption func(*Dispatcher)

func WithReplyDelay(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d >= 0 {
			disp.replyDelay = d
		}
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

type pendingReply struct {
	seq     uint64
	timer   *time.Timer
	deliver func()
}

// Dispatcher turns user input into messages and schedules synthesized replies.
type Dispatcher struct {
	store      MessageStore
	replyDelay time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*pendingReply
	wg      sync.WaitGroup
}

func NewDispatcher(store MessageStore, opts ...DispatcherOption) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	d := &Dispatcher{
		store:      store,
		replyDelay: defaultReplyDelay,
		logger:     slog.Default(),
		pending:    map[uint64]*pendingReply{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Send appends text as a user message to the current conversation and
// schedules the bot reply. A persistence error is returned together with the
// message; the message is in memory and the reply is still scheduled.
func (d *Dispatcher) Send(ctx context.Context, text, username string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	conv, ok := d.store.Current()
	if !ok {
		return domain.Message{}, errNoConversation
	}

	msg := domain.Message{
		ID:        newID(),
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: domain.FormatTimestamp(now()),
	}
	err := d.store.AppendMessage(ctx, msg, username)
	if err != nil && !IsPersistence(err) {
		return domain.Message{}, err
	}

	d.scheduleReply(context.WithoutCancel(ctx), conv.ID, SynthesizeReply(conv.Settings, text), username)
	return msg, err
}

// DeleteSelected removes the messages with the given ids from the current conversation.
func (d *Dispatcher) DeleteSelected(ctx context.Context, ids map[string]struct{}, username string) (int, error) {
	return d.store.DeleteMessages(ctx, ids, username)
}

// ClearAll empties the current conversation.
func (d *Dispatcher) ClearAll(ctx context.Context, username string) error {
	return d.store.ClearMessages(ctx, username)
}

// Pending returns the number of scheduled replies not yet delivered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush delivers every scheduled reply now and waits for in-flight deliveries.
func (d *Dispatcher) Flush() {
	for _, p := range d.takePending() {
		if p.timer.Stop() {
			p.deliver()
			d.wg.Done()
		}
	}
	d.wg.Wait()
}

// Close cancels every scheduled reply and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	for _, p := range d.takePending() {
		if p.timer.Stop() {
			d.wg.Done()
		}
	}
	d.wg.Wait()
}

// takePending empties the pending set and returns it in scheduling order.
func (d *Dispatcher) takePending() []*pendingReply {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*pendingReply, 0, len(d.pending))
	for id, p := range d.pending {
		out = append(out, p)
		delete(d.pending, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (d *Dispatcher) scheduleReply(ctx context.Context, conversationID, text, username string) {
	deliver := func() {
		reply := domain.Message{
			ID:        newID(),
			Text:      text,
			Sender:    domain.SenderBot,
			Timestamp: domain.FormatTimestamp(now()),
		}
		err := d.store.AppendMessageTo(ctx, conversationID, reply, username)
		switch {
		case err == nil:
		case CodeOf(err) == ErrorNotFound:
			d.logger.Info("dropping reply for deleted conversation", "conversationId", conversationID)
		default:
			d.logger.Warn("reply append failed", "conversationId", conversationID, "err", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	id := d.seq
	d.wg.Add(1)
	p := &pendingReply{seq: id, deliver: deliver}
	p.timer = time.AfterFunc(d.replyDelay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		deliver()
	})
	d.pending[id] = p
}

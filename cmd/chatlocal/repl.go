package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"persona-chat/internal/domain"
	"persona-chat/internal/usecase"
)

const helpText = `commands:
  /new <name>             create a conversation and switch to it
  /list                   list conversations
  /switch <n|id>          switch by list number or id
  /set <field> <value>    field is scene, behavior, partner or custom
  /rename <name>          rename the current conversation
  /note <text>            set the current conversation's note
  /delete                 delete the current conversation
  /rm <n> [n...]          delete messages by number
  /clear                  delete every message in the current conversation
  /reset                  delete everything
  /quit
anything else is sent as a message`

var errNoCurrent = errors.New("no current conversation, create one with /new <name>")

// syncWriter serializes prompt output with replies printed from timer goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

type repl struct {
	store    *usecase.ConversationStore
	disp     *usecase.Dispatcher
	username string
	out      *syncWriter
}

func (r *repl) printMessage(_ string, m domain.Message) {
	who := "you"
	if m.Sender == domain.SenderBot {
		who = "bot"
	}
	r.out.printf("[%s] %s: %s\n", m.Timestamp, who, m.Text)
}

func (r *repl) printChange(c usecase.Change) {
	if c.Kind != usecase.ChangeSwitched || c.Conversation == nil {
		return
	}
	r.out.printf("== %s ==\n", c.Conversation.Name)
	for _, m := range c.Conversation.Messages {
		r.printMessage(c.ConversationID, m)
	}
}

// run reads lines until /quit or EOF, then delivers outstanding replies.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if err := r.exec(ctx, line); err != nil {
			r.out.printf("error: %s\n", describe(err))
		}
	}
	r.disp.Flush()
	return sc.Err()
}

func (r *repl) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		_, err := r.disp.Send(ctx, line, r.username)
		return err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/help":
		r.out.printf("%s\n", helpText)
	case "/new":
		_, err := r.store.Create(ctx, usecase.CreateInput{Name: arg}, r.username)
		return err
	case "/list":
		r.list()
	case "/switch":
		id := arg
		if n, err := strconv.Atoi(arg); err == nil {
			all := r.store.Summaries()
			if n < 1 || n > len(all) {
				return fmt.Errorf("no conversation number %d", n)
			}
			id = all[n-1].ID
		}
		if _, ok := r.store.SwitchCurrent(id); !ok {
			return fmt.Errorf("no conversation %q", arg)
		}
	case "/set":
		field, value, _ := strings.Cut(arg, " ")
		value = strings.TrimSpace(value)
		var patch usecase.SettingsPatch
		switch field {
		case "scene":
			patch.Scene = &value
		case "behavior":
			patch.Behavior = &value
		case "partner":
			patch.PartnerInfo = &value
		case "custom":
			patch.CustomSetting = &value
		default:
			return fmt.Errorf("unknown setting %q", field)
		}
		return r.store.UpdateSettings(ctx, patch, r.username)
	case "/rename", "/note":
		cur, ok := r.store.Current()
		if !ok {
			return errNoCurrent
		}
		in := usecase.DetailsInput{Name: cur.Name, Note: cur.Note}
		if cmd == "/rename" {
			in.Name = arg
		} else {
			in.Note = arg
		}
		return r.store.SaveDetails(ctx, in, r.username)
	case "/delete":
		return r.store.Delete(ctx, r.username)
	case "/rm":
		return r.removeMessages(ctx, strings.Fields(arg))
	case "/clear":
		return r.disp.ClearAll(ctx, r.username)
	case "/reset":
		return r.store.Reset(ctx, r.username)
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

func (r *repl) list() {
	rows := r.store.Summaries()
	if len(rows) == 0 {
		r.out.printf("no conversations, create one with /new <name>\n")
		return
	}
	for i, row := range rows {
		marker := " "
		if row.Active {
			marker = "*"
		}
		preview := ""
		if row.LastMessage != nil {
			preview = row.LastMessage.Text
			if runes := []rune(preview); len(runes) > 40 {
				preview = string(runes[:40]) + "..."
			}
		}
		r.out.printf("%s %d. %s  %s\n", marker, i+1, row.Name, preview)
	}
}

func (r *repl) removeMessages(ctx context.Context, args []string) error {
	cur, ok := r.store.Current()
	if !ok {
		return errNoCurrent
	}
	ids := make(map[string]struct{}, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 || n > len(cur.Messages) {
			return fmt.Errorf("no message number %s", a)
		}
		ids[cur.Messages[n-1].ID] = struct{}{}
	}
	removed, err := r.disp.DeleteSelected(ctx, ids, r.username)
	if err == nil {
		r.out.printf("removed %d message(s)\n", removed)
	}
	return err
}

func describe(err error) string {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		return strings.ReplaceAll(ue.Reason, "_", " ")
	}
	return err.Error()
}

package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"persona-chat/internal/domain"
)

func newTestCommandService(t *testing.T, p Persister) *CommandService {
	t.Helper()
	svc, err := NewCommandService(p, 0, "", nil)
	require.NoError(t, err)
	return svc
}

func TestNewCommandService_NilPersister(t *testing.T) {
	_, err := NewCommandService(nil, 0, "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestExecute_CreateSendAndList(t *testing.T) {
	svc := newTestCommandService(t, &mockPersister{})
	ctx := context.Background()

	out, err := svc.Execute(ctx, CommandInput{
		Action:   ActionCreate,
		Username: "alice",
		Name:     "Barista",
		Settings: SettingsPatch{Scene: strPtr("cafe")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.CurrentID)
	require.Len(t, out.Conversations, 1)
	require.True(t, out.Conversations[0].Active)
	require.Equal(t, defaultAvatar, out.Current.Avatar)
	convID := out.CurrentID

	out, err = svc.Execute(ctx, CommandInput{Action: ActionSend, Username: "alice", Text: "hi"})
	require.NoError(t, err)
	require.NotNil(t, out.Message)
	require.Equal(t, "hi", out.Message.Text)
	require.Len(t, out.Current.Messages, 2)
	require.Equal(t, domain.SenderBot, out.Current.Messages[1].Sender)
	require.Equal(t, SynthesizeReply(domain.Settings{Scene: "cafe"}, "hi"), out.Current.LastMessage.Text)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionList, Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, convID, out.CurrentID)
	require.Len(t, out.Current.Messages, 2)
	require.Nil(t, out.Message)
}

func TestExecute_SwitchAndDelete(t *testing.T) {
	svc := newTestCommandService(t, &mockPersister{})
	ctx := context.Background()

	first, err := svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: "a"})
	require.NoError(t, err)
	second, err := svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: "b"})
	require.NoError(t, err)

	out, err := svc.Execute(ctx, CommandInput{Action: ActionSwitch, Username: "alice", ConversationID: second.CurrentID})
	require.NoError(t, err)
	require.Equal(t, second.CurrentID, out.CurrentID)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionDelete, Username: "alice", ConversationID: second.CurrentID})
	require.NoError(t, err)
	require.Equal(t, first.CurrentID, out.CurrentID)
	require.Len(t, out.Conversations, 1)

	_, err = svc.Execute(ctx, CommandInput{Action: ActionSwitch, Username: "alice", ConversationID: "missing"})
	expectCode(t, err, ErrorNotFound, "conversation_not_found")
}

func TestExecute_SettingsDetailsAndMessages(t *testing.T) {
	svc := newTestCommandService(t, &mockPersister{})
	ctx := context.Background()

	_, err := svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: "a"})
	require.NoError(t, err)

	out, err := svc.Execute(ctx, CommandInput{Action: ActionUpdateSettings, Username: "alice", Settings: SettingsPatch{Behavior: strPtr("calm")}})
	require.NoError(t, err)
	require.Equal(t, "calm", out.Current.Settings.Behavior)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionSaveDetails, Username: "alice", Name: "renamed", Note: "n"})
	require.NoError(t, err)
	require.Equal(t, "renamed", out.Current.Name)
	require.Equal(t, "n", out.Conversations[0].Note)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionSend, Username: "alice", Text: "hi"})
	require.NoError(t, err)
	userMsgID := out.Message.ID

	out, err = svc.Execute(ctx, CommandInput{Action: ActionDeleteMessages, Username: "alice", MessageIDs: []string{userMsgID}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Removed)
	require.Len(t, out.Current.Messages, 1)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionClearMessages, Username: "alice"})
	require.NoError(t, err)
	require.Empty(t, out.Current.Messages)
	require.Nil(t, out.Conversations[0].LastMessage)
}

func TestExecute_Reset(t *testing.T) {
	p := &mockPersister{}
	svc := newTestCommandService(t, p)
	ctx := context.Background()

	_, err := svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: "a"})
	require.NoError(t, err)

	out, err := svc.Execute(ctx, CommandInput{Action: ActionReset, Username: "alice"})
	require.NoError(t, err)
	require.True(t, p.cleared)
	require.Empty(t, out.CurrentID)
	require.Empty(t, out.Conversations)
	require.Nil(t, out.Current)
}

func TestExecute_Errors(t *testing.T) {
	svc := newTestCommandService(t, &mockPersister{})
	ctx := context.Background()

	_, err := svc.Execute(ctx, CommandInput{Action: ActionList, Username: "   "})
	expectCode(t, err, ErrorInvalidInput, "empty_username")

	_, err = svc.Execute(ctx, CommandInput{Action: "explode", Username: "alice"})
	expectCode(t, err, ErrorInvalidInput, "unknown_action")

	_, err = svc.Execute(ctx, CommandInput{Action: ActionSend, Username: "alice", Text: "hi"})
	expectCode(t, err, ErrorNoConversation, "no_current_conversation")

	_, err = svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: " "})
	expectCode(t, err, ErrorInvalidInput, "empty_name")
}

func TestExecute_WithAssistant(t *testing.T) {
	p := &mockPersister{}
	svc, err := NewCommandService(p, 0, "", nil, WithAssistant(true))
	require.NoError(t, err)
	ctx := context.Background()

	out, err := svc.Execute(ctx, CommandInput{Action: ActionList, Username: "alice"})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 1)
	require.Equal(t, AssistantName, out.Current.Name)
	require.Len(t, out.Current.Messages, 6)
	assistantID := out.CurrentID

	created, err := svc.Execute(ctx, CommandInput{Action: ActionCreate, Username: "alice", Name: "mine"})
	require.NoError(t, err)
	require.Len(t, created.Conversations, 2)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionList, Username: "alice"})
	require.NoError(t, err)
	require.Len(t, out.Conversations, 2)
	require.Equal(t, assistantID, out.CurrentID)

	out, err = svc.Execute(ctx, CommandInput{Action: ActionSend, Username: "alice", ConversationID: created.CurrentID, Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, created.CurrentID, out.CurrentID)
	require.Len(t, out.Current.Messages, 2)
}

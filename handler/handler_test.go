package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"persona-chat/internal/domain"
	"persona-chat/internal/usecase"
)

type stubUseCase struct {
	out usecase.CommandOutput
	err error
	in  usecase.CommandInput
}

func (s *stubUseCase) Execute(_ context.Context, in usecase.CommandInput) (usecase.CommandOutput, error) {
	s.in = in
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	msg := domain.Message{ID: "m1", Text: "hi", Sender: domain.SenderUser, Timestamp: "2026-02-25T10:00:00.000Z"}
	uc := &stubUseCase{out: usecase.CommandOutput{
		CurrentID:     "conv-1",
		Conversations: []domain.Summary{{ID: "conv-1", Name: "Barista", Active: true}},
		Message:       &msg,
	}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"action":"send","username":"alice","conversationId":"conv-1","text":"hi","settings":{"scene":"cafe"}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.ActionSend, uc.in.Action)
	require.Equal(t, "alice", uc.in.Username)
	require.Equal(t, "conv-1", uc.in.ConversationID)
	require.Equal(t, "hi", uc.in.Text)
	require.Equal(t, "cafe", *uc.in.Settings.Scene)
	require.Nil(t, uc.in.Settings.Behavior)

	out := parseBody[usecase.CommandOutput](t, resp.Body)
	require.Equal(t, "conv-1", out.CurrentID)
	require.Len(t, out.Conversations, 1)
	require.Equal(t, "m1", out.Message.ID)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
	require.Equal(t, "invalid_body", out.Reason)
	require.Equal(t, resp.Headers["X-Correlation-Id"], out.CorrelationID)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_name"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "no conversation", err: &usecase.Error{Code: usecase.ErrorNoConversation, Reason: "no_current_conversation"}, status: http.StatusConflict, code: string(usecase.ErrorNoConversation)},
		{name: "not found", err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "conversation_not_found"}, status: http.StatusNotFound, code: string(usecase.ErrorNotFound)},
		{name: "persistence", err: &usecase.Error{Code: usecase.ErrorPersistence, Reason: "save_failed"}, status: http.StatusServiceUnavailable, code: string(usecase.ErrorPersistence)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "store_init_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"action":"list","username":"alice"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(`{"action":"list","username":"alice"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_NilCurrentEncodesAsNull(t *testing.T) {
	h, err := NewHandler(&stubUseCase{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"action":"list","username":"alice"}`))
	require.NoError(t, err)
	out := parseBody[map[string]json.RawMessage](t, resp.Body)
	require.JSONEq(t, `null`, string(out["current"]))
}

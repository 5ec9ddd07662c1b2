package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"persona-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// UseCase is the command surface the handler drives.
type UseCase interface {
	Execute(ctx context.Context, in usecase.CommandInput) (usecase.CommandOutput, error)
}

type Handler struct {
	uc     UseCase
	logger *slog.Logger
}

type errorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlationId"`
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlationId", correlationID)

	var in usecase.CommandInput
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		logger.Warn("invalid request body", "err", err)
		return h.jsonResponse(http.StatusBadRequest, correlationID, errorResponse{
			Error:         string(usecase.ErrorInvalidInput),
			Reason:        "invalid_body",
			CorrelationID: correlationID,
		}), nil
	}

	out, err := h.uc.Execute(ctx, in)
	if err != nil {
		status, body := mapError(err)
		body.CorrelationID = correlationID
		if status >= http.StatusInternalServerError {
			logger.Error("command failed", "action", in.Action, "code", body.Error, "err", err)
		} else {
			logger.Info("command rejected", "action", in.Action, "code", body.Error, "reason", body.Reason)
		}
		return h.jsonResponse(status, correlationID, body), nil
	}

	logger.Info("command handled", "action", in.Action, "currentId", out.CurrentID)
	return h.jsonResponse(http.StatusOK, correlationID, out), nil
}

func mapError(err error) (int, errorResponse) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := errorResponse{Error: string(ue.Code), Reason: ue.Reason}
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorNoConversation:
		return http.StatusConflict, body
	case usecase.ErrorNotFound:
		return http.StatusNotFound, body
	case usecase.ErrorPersistence:
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Reason: ue.Reason}
	}
}

func (h *Handler) jsonResponse(status int, correlationID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

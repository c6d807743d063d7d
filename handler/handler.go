package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"broker-agent/internal/domain"
	"broker-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type AnswerService interface {
	Answer(ctx context.Context, in usecase.AnswerInput) usecase.AnswerOutput
}

type historyMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

type askRequest struct {
	Message        string           `json:"message"`
	History        []historyMessage `json:"history" validate:"omitempty,dive"`
	ResponseLength string           `json:"responseLength"`
}

type askResponse struct {
	Answer   string `json:"answer"`
	Degraded bool   `json:"degraded"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handler adapts API Gateway proxy events to one chat turn.
type Handler struct {
	svc      AnswerService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc AnswerService, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: answer service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}, nil
}

// Handle never returns an error to the Lambda runtime; every outcome is an HTTP
// response. A failed completion is still a 200 carrying the fallback text.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newUUID()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if event.HTTPMethod != "" && event.HTTPMethod != http.MethodPost {
		return errorResponseFor(&usecase.Error{Code: usecase.ErrorMethodNotAllowed, Reason: "method_not_allowed"}, correlationID), nil
	}

	in, err := h.decode(event)
	if err != nil {
		logger.InfoContext(ctx, "rejected request", "err", err)
		return errorResponseFor(err, correlationID), nil
	}

	out := h.svc.Answer(ctx, in)
	logger.InfoContext(ctx, "answered turn",
		"status", out.Status,
		"context_status", out.Context,
		"max_tokens", out.MaxTokens,
	)

	return jsonResponse(http.StatusOK, correlationID, askResponse{
		Answer:   out.Answer,
		Degraded: out.Status == usecase.AnswerFallback,
	}), nil
}

func (h *Handler) decode(event events.APIGatewayProxyRequest) (usecase.AnswerInput, error) {
	body := event.Body
	if event.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return usecase.AnswerInput{}, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
		}
		body = string(raw)
	}

	var req askRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return usecase.AnswerInput{}, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_body", Err: err}
	}
	if err := h.validate.Struct(req); err != nil {
		return usecase.AnswerInput{}, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_history", Err: err}
	}

	length, err := usecase.ParseResponseLength(req.ResponseLength)
	if err != nil {
		return usecase.AnswerInput{}, err
	}

	history := make([]domain.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return usecase.AnswerInput{
		Message: req.Message,
		History: history,
		Length:  length,
	}, nil
}

func errorResponseFor(err error, correlationID string) events.APIGatewayProxyResponse {
	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) {
		status := 0
		switch usecaseErr.Code {
		case usecase.ErrorInvalidInput:
			status = http.StatusBadRequest
		case usecase.ErrorMethodNotAllowed:
			status = http.StatusMethodNotAllowed
		}
		if status != 0 {
			return jsonResponse(status, correlationID, errorResponse{
				Error:  string(usecaseErr.Code),
				Reason: usecaseErr.Reason,
			})
		}
	}
	return jsonResponse(http.StatusInternalServerError, correlationID, errorResponse{
		Error: string(usecase.ErrorInternal),
	})
}

func jsonResponse(status int, correlationID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + string(usecase.ErrorInternal) + `"}`)
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

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var newUUID = func() string {
	return uuid.NewString()
}

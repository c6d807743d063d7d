package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"broker-agent/internal/domain"
)

const (
	defaultModel          = "sonar"
	contextLimit          = 3
	maxContextRunes       = 1500
	completionTemperature = 0.2
)

type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// ContextStore returns the first limit rows of the knowledge-base table.
type ContextStore interface {
	TopChunks(ctx context.Context, limit int) ([]domain.ContextFragment, error)
}

type ContextStatus string

const (
	ContextDisabled ContextStatus = "disabled"
	ContextEmpty    ContextStatus = "empty"
	ContextFound    ContextStatus = "found"
	ContextFailed   ContextStatus = "failed"
)

// ContextResult is the outcome of a knowledge-base read. Text is empty unless
// Status is ContextFound.
type ContextResult struct {
	Text   string
	Status ContextStatus
	Err    error
}

type AnswerStatus string

const (
	AnswerOK       AnswerStatus = "ok"
	AnswerFallback AnswerStatus = "fallback"
)

type AnswerInput struct {
	Message string
	History []domain.ChatMessage
	Length  domain.ResponseLength
}

// AnswerOutput always carries displayable text. On AnswerFallback the text
// embeds the raw completion error and Err holds it.
type AnswerOutput struct {
	Answer    string
	Status    AnswerStatus
	Err       error
	MaxTokens int
	Context   ContextStatus
}

type AnswerService struct {
	llm    LLMClient
	store  ContextStore
	model  string
	logger *slog.Logger
}

// NewAnswerService wires the composer. A nil store disables context fetching.
func NewAnswerService(llm LLMClient, store ContextStore, model string, logger *slog.Logger) (*AnswerService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		llm:    llm,
		store:  store,
		model:  model,
		logger: logger,
	}, nil
}

// FetchContext reads up to limit knowledge-base rows and joins their text.
// The query does not filter rows: every call returns the same leading rows of
// the table. Failures are reported in the result, never returned as errors.
func (s *AnswerService) FetchContext(ctx context.Context, _ string, limit int) ContextResult {
	if s.store == nil {
		return ContextResult{Status: ContextDisabled}
	}
	if limit <= 0 {
		limit = contextLimit
	}

	chunks, err := s.store.TopChunks(ctx, limit)
	if err != nil {
		s.logger.WarnContext(ctx, "knowledge base read failed", "err", err)
		return ContextResult{Status: ContextFailed, Err: err}
	}

	text := joinFragments(chunks, maxContextRunes)
	if text == "" {
		return ContextResult{Status: ContextEmpty}
	}
	return ContextResult{Text: text, Status: ContextFound}
}

// Answer runs one chat turn. It never fails: a completion error becomes the
// fallback answer text.
func (s *AnswerService) Answer(ctx context.Context, in AnswerInput) AnswerOutput {
	maxTokens := in.Length.MaxTokens()
	kb := s.FetchContext(ctx, in.Message, contextLimit)

	// History is accepted from the UI but not replayed to the model.
	s.logger.DebugContext(ctx, "answering turn",
		"history_len", len(in.History),
		"context_status", kb.Status,
		"max_tokens", maxTokens,
	)

	reply, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Model:       s.model,
		Messages:    buildPromptMessages(in.Message, kb.Text),
		Temperature: completionTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "completion failed", "err", err, "model", s.model)
		return AnswerOutput{
			Answer:    fallbackAnswer(err),
			Status:    AnswerFallback,
			Err:       err,
			MaxTokens: maxTokens,
			Context:   kb.Status,
		}
	}

	return AnswerOutput{
		Answer:    reply,
		Status:    AnswerOK,
		MaxTokens: maxTokens,
		Context:   kb.Status,
	}
}

// ParseResponseLength maps the UI choice to a preference. Empty selects the UI
// default, short.
func ParseResponseLength(raw string) (domain.ResponseLength, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "scurt", "short":
		return domain.ResponseShort, nil
	case "mediu", "medium":
		return domain.ResponseMedium, nil
	}
	return "", newError(ErrorInvalidInput, "unknown_response_length", nil)
}

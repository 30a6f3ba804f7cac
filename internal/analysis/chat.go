package analysis

import (
	"context"

	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/storage"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type llmCall struct {
	op        string
	sessionID string
	provider  string
	req       providers.ChatRequest
}

// chat runs one model call, logging it and writing an audit row whatever the
// outcome.
func (s *Service) chat(ctx context.Context, c llmCall) (providers.ChatResponse, providers.ProviderInfo, error) {
	p, ref, err := s.providers.Resolve(c.provider)
	if err != nil {
		return providers.ChatResponse{}, providers.ProviderInfo{Name: c.provider}, err
	}
	reqID := uuid.NewString()
	log := s.log.With(
		zap.String("req_id", reqID),
		zap.String("op", c.op),
		zap.String("session_id", c.sessionID),
		zap.String("provider", ref.Raw),
	)
	promptChars := util.RuneCount(c.req.System)
	for _, m := range c.req.Messages {
		promptChars += util.RuneCount(m.Content)
	}
	log.Info("llm.chat.start", zap.String("model", c.req.Model), zap.Int("prompt_chars", promptChars))

	start := s.now()
	resp, info, err := p.Chat(ctx, c.req)
	elapsed := s.now().Sub(start).Milliseconds()
	if info.Name == "" {
		info.Name = ref.Name
	}

	rec := storage.LLMCallRecord{
		CallID:           uuid.NewString(),
		Operation:        c.op,
		SessionID:        c.sessionID,
		ProviderName:     info.Name,
		Model:            info.Model,
		RequestID:        reqID,
		Status:           "ok",
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		LatencyMs:        elapsed,
	}
	if err != nil {
		rec.Status = "failed"
		rec.ErrorType = string(providers.ClassifyError(err))
		log.Warn("llm.chat.failed",
			zap.String("model", info.Model),
			zap.String("error_type", rec.ErrorType),
			zap.Int64("elapsed_ms", elapsed),
			zap.Error(err),
		)
	} else {
		log.Info("llm.chat.done",
			zap.String("model", info.Model),
			zap.Int("prompt_tokens", resp.PromptTokens),
			zap.Int("completion_tokens", resp.CompletionTokens),
			zap.Int64("elapsed_ms", elapsed),
		)
	}
	if aerr := s.audit.Insert(context.WithoutCancel(ctx), rec); aerr != nil {
		log.Warn("llm.audit.failed", zap.Error(aerr))
	}
	return resp, info, err
}

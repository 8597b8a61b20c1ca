package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academybot/internal/adapter/matcher"
	"academybot/internal/domain"
	"academybot/internal/port"
)

// User-visible texts for degraded states. Kept deterministic so callers can
// rely on them.
const (
	emptyQuestionText = "Please provide a question."
	refusalText       = "I don't have an answer for that question. Please contact support@creditoracademy.com and our team will help you directly."
)

const (
	generativeConfidence = 0.55
	refusalConfidence    = 0.2
	ragConfidenceCap     = 0.95
	ragConfidenceBoost   = 0.1
)

// CompletionRouter dispatches a prompt to the configured LLM providers.
type CompletionRouter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params port.CompletionParams) (text string, providerName string, err error)
	Available() bool
}

// Engine is the answer-routing core. It arbitrates between the curated
// matcher, semantic retrieval with generation, and plain generation, always
// producing a Response. Only context cancellation is returned as an error.
type Engine struct {
	matcher   *matcher.Matcher
	retriever port.Retriever
	prompts   *PromptAssembler
	router    CompletionRouter

	curatedThreshold   float64
	retrievalThreshold float64
	retrieveK          int

	log *zap.Logger
}

// NewEngine wires the answer pipeline. retriever and router may be nil; the
// engine degrades to the layers that remain.
func NewEngine(
	m *matcher.Matcher,
	retriever port.Retriever,
	prompts *PromptAssembler,
	router CompletionRouter,
	curatedThreshold, retrievalThreshold float64,
	retrieveK int,
	log *zap.Logger,
) *Engine {
	return &Engine{
		matcher:            m,
		retriever:          retriever,
		prompts:            prompts,
		router:             router,
		curatedThreshold:   curatedThreshold,
		retrievalThreshold: retrievalThreshold,
		retrieveK:          retrieveK,
		log:                log,
	}
}

// Answer resolves a question to the best available Response. It never
// returns an error except for context cancellation.
func (e *Engine) Answer(ctx context.Context, question string, opts domain.AnswerOptions) (domain.Response, error) {
	reqID := uuid.NewString()
	log := e.log.With(
		zap.String("request_id", reqID),
		zap.String("question_hash", questionHash(question)),
	)

	question = strings.TrimSpace(question)
	if question == "" {
		log.Info("empty question")
		return domain.Response{
			Text:        emptyQuestionText,
			Confidence:  0,
			Layer:       domain.LayerFallback,
			Attribution: []string{},
		}, nil
	}

	// Curated layer.
	if e.matcher != nil {
		if match, ok := e.matcher.Match(question); ok && match.Confidence >= e.curatedThreshold {
			log.Info("answered from curated table",
				zap.String("layer", string(domain.LayerCurated)),
				zap.String("method", string(match.Method)),
				zap.Float64("confidence", match.Confidence))
			return domain.Response{
				Text:        match.Answer,
				Confidence:  match.Confidence,
				Layer:       domain.LayerCurated,
				Attribution: []string{match.RecordID},
			}, nil
		}
	}

	// Retrieval layer.
	var hits []domain.RetrievedHit
	if opts.UseKnowledgeBase && e.retriever != nil {
		var err error
		hits, err = e.retriever.Retrieve(ctx, question, e.retrieveK)
		if err != nil {
			if cancelled(ctx) {
				return domain.Response{}, ctx.Err()
			}
			log.Warn("retrieval failed, skipping knowledge base", zap.Error(err))
			hits = nil
		}
	}

	if len(hits) > 0 && hits[0].Similarity >= e.retrievalThreshold {
		if resp, ok, err := e.answerRAG(ctx, log, question, opts, hits); err != nil || ok {
			return resp, err
		}
	} else {
		if resp, ok, err := e.answerGenerative(ctx, log, question, opts); err != nil || ok {
			return resp, err
		}
	}

	return e.fallback(log, hits), nil
}

// answerRAG assembles a context prompt and asks the provider router. The
// boolean result is false when all providers are unavailable and the caller
// should fall back.
func (e *Engine) answerRAG(ctx context.Context, log *zap.Logger, question string, opts domain.AnswerOptions, hits []domain.RetrievedHit) (domain.Response, bool, error) {
	if e.router == nil || !e.router.Available() {
		return domain.Response{}, false, nil
	}

	prompt, ids := e.prompts.AssembleRAG(question, hits)
	if len(ids) == 0 {
		// No hit fit the context caps; a rag answer must cite its sources.
		return e.answerGenerative(ctx, log, question, opts)
	}

	text, providerName, err := e.router.Complete(ctx, e.systemPrompt(opts), prompt, params(opts))
	if err != nil {
		if cancelled(ctx) {
			return domain.Response{}, false, ctx.Err()
		}
		log.Warn("rag generation failed", zap.Error(err))
		return domain.Response{}, false, nil
	}

	confidence := hits[0].Similarity + ragConfidenceBoost
	if confidence > ragConfidenceCap {
		confidence = ragConfidenceCap
	}

	log.Info("answered with retrieved context",
		zap.String("layer", string(domain.LayerRAG)),
		zap.String("provider", providerName),
		zap.Float64("confidence", confidence),
		zap.Int("context_records", len(ids)))
	return domain.Response{
		Text:        text,
		Confidence:  confidence,
		Layer:       domain.LayerRAG,
		Attribution: ids,
		UsedContext: true,
	}, true, nil
}

// answerGenerative asks the provider router without retrieved context.
func (e *Engine) answerGenerative(ctx context.Context, log *zap.Logger, question string, opts domain.AnswerOptions) (domain.Response, bool, error) {
	if e.router == nil || !e.router.Available() {
		return domain.Response{}, false, nil
	}

	prompt := e.prompts.AssembleDirect(question)
	text, providerName, err := e.router.Complete(ctx, e.systemPrompt(opts), prompt, params(opts))
	if err != nil {
		if cancelled(ctx) {
			return domain.Response{}, false, ctx.Err()
		}
		log.Warn("generation failed", zap.Error(err))
		return domain.Response{}, false, nil
	}

	log.Info("answered generatively",
		zap.String("layer", string(domain.LayerGenerative)),
		zap.String("provider", providerName))
	return domain.Response{
		Text:        text,
		Confidence:  generativeConfidence,
		Layer:       domain.LayerGenerative,
		Attribution: []string{providerName},
	}, true, nil
}

// fallback returns the best retrieved answer verbatim, or the deterministic
// refusal when retrieval produced nothing.
func (e *Engine) fallback(log *zap.Logger, hits []domain.RetrievedHit) domain.Response {
	if len(hits) > 0 {
		log.Info("falling back to retrieved answer",
			zap.String("layer", string(domain.LayerFallback)),
			zap.Float64("confidence", hits[0].Similarity))
		return domain.Response{
			Text:        hits[0].Record.Answer,
			Confidence:  hits[0].Similarity,
			Layer:       domain.LayerFallback,
			Attribution: []string{hits[0].Record.ID},
			UsedContext: true,
		}
	}

	log.Info("falling back to refusal", zap.String("layer", string(domain.LayerFallback)))
	return domain.Response{
		Text:        refusalText,
		Confidence:  refusalConfidence,
		Layer:       domain.LayerFallback,
		Attribution: []string{},
	}
}

func (e *Engine) systemPrompt(opts domain.AnswerOptions) string {
	prompt := e.prompts.SystemPrompt()
	if opts.Language != "" {
		prompt += "\n\nRespond in " + opts.Language + "."
	}
	return prompt
}

func params(opts domain.AnswerOptions) port.CompletionParams {
	return port.CompletionParams{MaxTokens: opts.MaxTokens}
}

func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// questionHash identifies a question in logs without logging its content.
func questionHash(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])[:12]
}

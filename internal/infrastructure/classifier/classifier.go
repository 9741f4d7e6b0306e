package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
)

type Options struct {
	Temperature float64
	MaxTokens   int
	PromptChars int
}

func DefaultOptions() Options {
	return Options{
		Temperature: 0.3,
		MaxTokens:   500,
		PromptChars: 4000,
	}
}

// Classifier asks the completion model for a classification and degrades to a
// filename heuristic on any model or decode failure.
type Classifier struct {
	model  ports.CompletionModel
	cache  ports.ClassificationCache
	opts   Options
	logger *slog.Logger
}

func New(model ports.CompletionModel, cache ports.ClassificationCache, opts Options, logger *slog.Logger) *Classifier {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.PromptChars <= 0 {
		opts.PromptChars = def.PromptChars
	}
	if opts.Temperature < 0 {
		opts.Temperature = def.Temperature
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, cache: cache, opts: opts, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, text, filename string) domain.Classification {
	snippet := truncateRunes(text, c.opts.PromptChars)
	key := cacheKey(filename, snippet)

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("classification_cache_get_failed", "error", err)
		} else if ok {
			return cached
		}
	}

	cls, err := c.classifyWithModel(ctx, filename, snippet)
	if err != nil {
		c.logger.Warn("classifier_fallback", "filename", filename, "error", err)
		return fallbackClassification(filename)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cls); err != nil {
			c.logger.Warn("classification_cache_set_failed", "error", err)
		}
	}
	return cls
}

func (c *Classifier) classifyWithModel(ctx context.Context, filename, snippet string) (domain.Classification, error) {
	if c.model == nil {
		return domain.Classification{}, fmt.Errorf("completion model is not configured")
	}
	raw, err := c.model.Complete(ctx, ports.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildClassificationPrompt(filename, snippet),
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("complete classification: %w", err)
	}
	return decodeClassification(raw)
}

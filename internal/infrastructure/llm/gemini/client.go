package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kirillkom/intellidocs/internal/core/ports"
	"github.com/kirillkom/intellidocs/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	api      *genai.Client
	model    string
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	api, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, model: model, executor: executor}, nil
}

func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	contentCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		contentCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		contentCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		contentCfg.ResponseMIMEType = "application/json"
	}

	text, err := resilience.Do(ctx, c.executor, "gemini.generate_content", func(callCtx context.Context) (string, error) {
		resp, err := c.api.Models.GenerateContent(callCtx, c.model, genai.Text(req.Prompt), contentCfg)
		if err != nil {
			return "", err
		}
		out := resp.Text()
		if strings.TrimSpace(out) == "" {
			return "", fmt.Errorf("gemini generate content: empty response")
		}
		return out, nil
	}, classifyGeminiError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("gemini.generate_content", err)
	}
	return strings.TrimSpace(text), nil
}

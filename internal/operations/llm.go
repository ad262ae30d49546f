package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/ports"
)

// DefaultModel is used when a node does not pin one.
const DefaultModel = "gpt-4o-mini"

var _ ports.OperationRunner = (*LLMRunner)(nil)

// LLMRunner executes llm-generate operations against an OpenAI-compatible
// chat completions endpoint.
type LLMRunner struct {
	asyncRunner

	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

type LLMOptions struct {
	// APIKey authenticates against the completions endpoint.
	APIKey string

	// BaseURL overrides the endpoint, for proxies and local models.
	BaseURL string

	// Model is the fallback model for nodes that do not set one.
	Model string
}

func NewLLMRunner(opts LLMOptions, config *domain.Config, logger *slog.Logger) *LLMRunner {
	if logger == nil {
		logger = slog.Default()
	}
	config.Normalize()

	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &LLMRunner{
		asyncRunner: newAsyncRunner(),
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		timeout:     config.OperationTimeout,
		logger:      logger.With("component", "llm-runner"),
	}
}

func (r *LLMRunner) Submit(ctx context.Context, req ports.OperationRequest) (string, error) {
	if req.Kind != ports.OperationLLMGenerate {
		return "", fmt.Errorf("llm runner cannot execute %q operations", req.Kind)
	}

	handle := r.launch(ctx, r.timeout, func(opCtx context.Context) (string, error) {
		return r.generate(opCtx, req)
	})

	r.logger.Debug("llm operation submitted",
		"handle", handle,
		"model", r.resolveModel(req),
		"images", len(req.Images),
	)
	return handle, nil
}

func (r *LLMRunner) Poll(ctx context.Context, handle string) (ports.OperationUpdate, error) {
	return r.poll(handle)
}

func (r *LLMRunner) generate(ctx context.Context, req ports.OperationRequest) (string, error) {
	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	if len(req.Images) > 0 {
		parts := []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		}}
		for _, url := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url},
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		})
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.resolveModel(req),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *LLMRunner) resolveModel(req ports.OperationRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return r.model
}

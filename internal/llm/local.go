package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"observer/internal/events"
	"observer/internal/prompt"
)

const systemRolePrompt = "You are a macOS system diagnostics expert. Analyze system data and respond only with the requested JSON object."

// LocalHTTPBackend drives an OpenAI-compatible chat completions
// endpoint pointed at a local inference server (e.g. Ollama's OpenAI
// compatibility layer), the way openai_llm.go's OpenAIClient talks to
// a remote one — just aimed at a custom BaseURL instead of the public
// API.
type LocalHTTPBackend struct {
	client *openai.Client
	model  string
}

// NewLocalHTTPBackend builds a backend against endpoint (e.g.
// "http://localhost:11434/v1"), using model for every request. No
// credential is required for local inference.
func NewLocalHTTPBackend(endpoint, model string) *LocalHTTPBackend {
	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = endpoint
	return &LocalHTTPBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *LocalHTTPBackend) Analyze(ctx context.Context, trigger events.TriggerContext) (events.AIInsight, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	userPrompt := prompt.Render(trigger)

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRolePrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return events.AIInsight{}, classifyLocalError(err)
	}

	if len(resp.Choices) == 0 {
		return events.AIInsight{}, &BackendError{Kind: ErrorKindBackendRefusal, Err: errors.New("backend returned no choices")}
	}

	insight, err := prompt.ExtractInsight(resp.Choices[0].Message.Content, time.Now().UTC())
	if err != nil {
		return events.AIInsight{}, &BackendError{Kind: ErrorKindParseFailure, Err: err}
	}
	return insight, nil
}

func classifyLocalError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Kind: ErrorKindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &BackendError{Kind: ErrorKindTimeout, Err: err}
		}
		return &BackendError{Kind: ErrorKindTransport, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return &BackendError{Kind: ErrorKindAuthFailure, Err: err}
		}
		return &BackendError{Kind: ErrorKindBackendRefusal, Err: err}
	}
	return &BackendError{Kind: ErrorKindTransport, Err: err}
}

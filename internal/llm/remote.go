package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"observer/internal/events"
	"observer/internal/prompt"
)

// modelConfig mirrors the teacher's per-model generation settings
// table, trimmed to the default quality profile diagnostic analysis
// needs (low temperature, for consistent output).
type modelConfig struct {
	temperature float32
	topP        float32
	topK        int32
}

var defaultModelConfig = modelConfig{temperature: 0.1, topP: 0.9, topK: 40}

// RemoteHTTPAuthenticatedBackend drives a hosted Gemini model over
// genai's gRPC/HTTP transport, authenticated with an API key.
type RemoteHTTPAuthenticatedBackend struct {
	client    *genai.Client
	modelName string
	config    modelConfig
}

// NewRemoteHTTPAuthenticatedBackend constructs a backend authenticated
// with credential, targeting modelName (e.g. "gemini-pro-latest").
func NewRemoteHTTPAuthenticatedBackend(ctx context.Context, credential, modelName string) (*RemoteHTTPAuthenticatedBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(credential))
	if err != nil {
		return nil, &BackendError{Kind: ErrorKindAuthFailure, Err: fmt.Errorf("create genai client: %w", err)}
	}
	return &RemoteHTTPAuthenticatedBackend{
		client:    client,
		modelName: modelName,
		config:    defaultModelConfig,
	}, nil
}

// Close releases the underlying gRPC connection.
func (b *RemoteHTTPAuthenticatedBackend) Close() error {
	return b.client.Close()
}

func (b *RemoteHTTPAuthenticatedBackend) getModel() *genai.GenerativeModel {
	model := b.client.GenerativeModel(b.modelName)
	model.SetTemperature(b.config.temperature)
	model.SetTopP(b.config.topP)
	model.SetTopK(b.config.topK)
	return model
}

func (b *RemoteHTTPAuthenticatedBackend) Analyze(ctx context.Context, trigger events.TriggerContext) (events.AIInsight, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	model := b.getModel()
	userPrompt := prompt.Render(trigger)

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return events.AIInsight{}, classifyRemoteError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return events.AIInsight{}, &BackendError{Kind: ErrorKindBackendRefusal, Err: errors.New("no candidates returned")}
	}

	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	insight, err := prompt.ExtractInsight(text, time.Now().UTC())
	if err != nil {
		return events.AIInsight{}, &BackendError{Kind: ErrorKindParseFailure, Err: err}
	}
	return insight, nil
}

func classifyRemoteError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Kind: ErrorKindTimeout, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return &BackendError{Kind: ErrorKindTimeout, Err: err}
		case codes.Unauthenticated, codes.PermissionDenied:
			return &BackendError{Kind: ErrorKindAuthFailure, Err: err}
		case codes.Unavailable, codes.ResourceExhausted:
			return &BackendError{Kind: ErrorKindTransport, Err: err}
		default:
			return &BackendError{Kind: ErrorKindBackendRefusal, Err: err}
		}
	}
	return &BackendError{Kind: ErrorKindTransport, Err: err}
}

// =============================================================================
// OpenAI-Compatible Provider
// =============================================================================
// Chat Completions (sync + SSE streaming) and Embeddings over any endpoint
// that speaks the OpenAI wire format: OpenAI, DeepSeek, Qwen, Groq, Ollama...
// =============================================================================

package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/internal/tlsutil"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/providers"
	"github.com/vivekverma239/superfast-ai/types"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "deepseek").
	ProviderName string

	APIKey string

	// BaseURL is the API root without the /v1 suffix (e.g., "https://api.deepseek.com").
	BaseURL string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// EmbeddingModel is used by Embed.
	EmbeddingModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// EmbeddingsPath defaults to "/v1/embeddings".
	EmbeddingsPath string

	// BuildHeaders overrides the default bearer-token headers.
	BuildHeaders func(req *http.Request, apiKey string)
}

// knownBaseURLs 已知服务商的默认地址
var knownBaseURLs = map[string]string{
	"openai":     "https://api.openai.com",
	"deepseek":   "https://api.deepseek.com",
	"qwen":       "https://dashscope.aliyuncs.com/compatible-mode",
	"groq":       "https://api.groq.com/openai",
	"ollama":     "http://localhost:11434",
	"openrouter": "https://openrouter.ai/api",
}

// BaseURLFor returns the default base URL of a known provider name.
func BaseURLFor(name string) (string, bool) {
	u, ok := knownBaseURLs[strings.ToLower(name)]
	return u, ok
}

// Provider implements llm.Provider over the OpenAI Chat Completions API.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates a provider with defaults applied.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.EmbeddingsPath == "" {
		cfg.EmbeddingsPath = "/v1/embeddings"
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL, _ = BaseURLFor(cfg.ProviderName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.NewHTTPClient(tlsutil.ClientOptions{Timeout: cfg.Timeout}),
		Logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

func (p *Provider) buildHeaders(req *http.Request) {
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, p.Cfg.APIKey)
		return
	}
	providers.BearerTokenHeaders(req, p.Cfg.APIKey)
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.Cfg.BaseURL, "/") + path
}

func (p *Provider) buildBody(req *llm.ChatRequest, stream bool) providers.OpenAICompatRequest {
	body := providers.OpenAICompatRequest{
		Model:       providers.ChooseModel(req, p.Cfg.DefaultModel, "gpt-4o-mini"),
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		Tools:       providers.ConvertToolsToOpenAI(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = providers.ConvertToolChoice(req.ToolChoice)
	}
	if stream {
		body.Stream = true
		body.StreamOptions = &providers.StreamOptions{IncludeUsage: true}
	}
	return body
}

// post sends payload and returns the response when the status is below 400.
func (p *Provider) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "failed to marshal request").WithCause(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "failed to create request").WithCause(err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, types.ClassifyError(ctxErr)
		}
		return nil, providers.TransportError(err, p.Name())
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := providers.ReadErrorMessage(resp.Body)
		p.Logger.Warn("upstream error", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, cancel := withRequestTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := p.post(ctx, p.Cfg.EndpointPath, p.buildBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oaResp providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, providers.TransportError(fmt.Errorf("decode response: %w", err), p.Name())
	}

	result := providers.ToLLMChatResponse(oaResp, p.Name())
	if oaResp.Created != 0 {
		result.CreatedAt = time.Unix(oaResp.Created, 0)
	}
	return result, nil
}

// Stream performs a streaming chat completion via SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.post(ctx, p.Cfg.EndpointPath, p.buildBody(req, true))
	if err != nil {
		return nil, err
	}
	return StreamSSE(ctx, resp.Body, p.Name()), nil
}

// Embed returns one embedding vector per input text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := p.Cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	resp, err := p.post(ctx, p.Cfg.EmbeddingsPath, providers.EmbeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var er providers.EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, providers.TransportError(fmt.Errorf("decode embeddings: %w", err), p.Name())
	}
	out := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, types.NewError(types.ErrUnknown, fmt.Sprintf("missing embedding for input %d", i))
		}
	}
	return out, nil
}

func withRequestTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// StreamSSE parses an OpenAI-style SSE stream into StreamChunks.
// The caller must have checked the response status.
func StreamSSE(ctx context.Context, body io.ReadCloser, providerName string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)

		send := func(c llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case ch <- c:
				return true
			}
		}

		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
				if err != io.EOF {
					send(llm.StreamChunk{Err: providers.TransportError(err, providerName)})
				}
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var oaResp providers.OpenAICompatResponse
			if err := json.Unmarshal([]byte(data), &oaResp); err != nil {
				send(llm.StreamChunk{Err: providers.TransportError(fmt.Errorf("decode chunk: %w", err), providerName)})
				return
			}

			for _, choice := range oaResp.Choices {
				chunk := llm.StreamChunk{
					ID:           oaResp.ID,
					Provider:     providerName,
					Model:        oaResp.Model,
					Index:        choice.Index,
					FinishReason: choice.FinishReason,
					Delta:        llm.Message{Role: llm.RoleAssistant},
				}
				if choice.Delta != nil {
					chunk.Delta.Content = choice.Delta.Content
					for _, tc := range choice.Delta.ToolCalls {
						chunk.Delta.ToolCalls = append(chunk.Delta.ToolCalls, llm.ToolCall{
							ID:        tc.ID,
							Name:      tc.Function.Name,
							Arguments: json.RawMessage(tc.Function.Arguments),
						})
					}
				}
				if !send(chunk) {
					return
				}
			}
			if oaResp.Usage != nil {
				usage := providers.ToLLMUsage(*oaResp.Usage)
				if !send(llm.StreamChunk{ID: oaResp.ID, Provider: providerName, Model: oaResp.Model, Usage: &usage}) {
					return
				}
			}
			if err == io.EOF {
				return
			}
		}
	}()
	return ch
}

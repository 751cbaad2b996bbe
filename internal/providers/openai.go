package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"validert/internal/util"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1/"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultGroqModel   = "llama-3.3-70b-versatile"
	defaultOllamaModel = "llama3.1"
)

type ChatConfig struct {
	Name          string
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

// ChatProvider talks to any OpenAI-compatible chat completions endpoint. OpenAI,
// Groq and Ollama only differ in base URL, key and default model.
type ChatProvider struct {
	name     string
	model    string
	keyName  string
	hasKey   bool
	attempts uint
	delay    time.Duration
	client   openai.Client
}

func NewChatProvider(cfg ChatConfig) *ChatProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	key := cfg.APIKey
	if key == "" && cfg.Name == "ollama" {
		key = "ollama"
	}
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(withTrailingSlash(cfg.BaseURL)))
	}
	return &ChatProvider{
		name:     cfg.Name,
		model:    cfg.Model,
		keyName:  cfg.Name,
		hasKey:   key != "",
		attempts: cfg.RetryAttempts,
		delay:    cfg.RetryDelay,
		client:   openai.NewClient(opts...),
	}
}

func NewOpenAIProvider(apiKey, model string) *ChatProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	return NewChatProvider(ChatConfig{Name: "openai", APIKey: apiKey, Model: model})
}

func NewGroqProvider(apiKey, model string) *ChatProvider {
	if model == "" {
		model = defaultGroqModel
	}
	return NewChatProvider(ChatConfig{Name: "groq", APIKey: apiKey, Model: model, BaseURL: groqBaseURL})
}

func NewOllamaProvider(baseURL, model string) *ChatProvider {
	if model == "" {
		model = defaultOllamaModel
	}
	return NewChatProvider(ChatConfig{Name: "ollama", Model: model, BaseURL: baseURL, Timeout: 600 * time.Second})
}

func (p *ChatProvider) info() ProviderInfo {
	return ProviderInfo{Name: p.name, Model: p.model, Key: p.keyName}
}

// Generate asks for the analysis at temperature zero. Rate limits and transient
// failures are retried here; everything else is returned classified so the caller
// can fail over to another provider.
func (p *ChatProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if !p.hasKey {
		return GenerateResponse{}, p.info(), fmt.Errorf("%w: %s api key missing", util.ErrPermanent, p.name)
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(0),
	}

	var out GenerateResponse
	err := retry.Do(
		func() error {
			resp, err := p.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return Classified(err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("%w: %s returned no choices", util.ErrTransient, p.name)
			}
			out = GenerateResponse{
				Text:         resp.Choices[0].Message.Content,
				RequestID:    resp.ID,
				PromptTokens: int(resp.Usage.PromptTokens),
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.RetryIf(Retryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return GenerateResponse{}, p.info(), fmt.Errorf("%s generate: %w", p.name, err)
	}
	return out, p.info(), nil
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

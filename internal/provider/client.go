// Package provider wraps the external embedding and completion services
// behind a single OpenAI-compatible client surface. Groq-style completion
// gateways and Cohere-compatible embedding gateways are both addressed by
// base URL, so the rest of the system never sees provider specifics.
package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultDimensions is the embedding width the knowledge store is built
	// around. Every persisted vector must have exactly this length.
	DefaultDimensions = 1024

	// DefaultMaxInputChars caps text sent to the embedding endpoint.
	DefaultMaxInputChars = 8000

	// DefaultQueryPrefix and DefaultDocumentPrefix implement asymmetric
	// query/document embeddings for instruction-prefix models.
	DefaultQueryPrefix    = "query: "
	DefaultDocumentPrefix = "passage: "

	// DefaultEmbeddingTimeout and DefaultCompletionTimeout bound every
	// outbound provider call so a stalled gateway cannot hold a request
	// goroutine forever.
	DefaultEmbeddingTimeout  = 10 * time.Second
	DefaultCompletionTimeout = 30 * time.Second
)

var (
	// ErrEmptyText is returned when there is nothing to embed.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when the provider answers with a vector
	// of unexpected length.
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrEmptyCompletion is returned when the completion response carries no choices.
	ErrEmptyCompletion = errors.New("no completion choices returned")
)

// embeddingAPI is the slice of the go-openai client the embedder needs.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// completionAPI is the slice of the go-openai client the completer needs.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds provider client configuration.
type Config struct {
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string
	Dimensions       int
	MaxInputChars    int
	QueryPrefix      string
	DocumentPrefix   string
	RequestsPerSec   float64
	EmbeddingTimeout time.Duration

	CompletionAPIKey  string
	CompletionBaseURL string
	CompletionModel   string
	CompletionTimeout time.Duration
}

// Client provides embeddings and chat completions.
type Client struct {
	embedAPI    embeddingAPI
	completeAPI completionAPI
	limiter     *rate.Limiter
	cfg         Config
}

// NewClient creates a provider client from configuration.
func NewClient(cfg Config) *Client {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.QueryPrefix == "" {
		cfg.QueryPrefix = DefaultQueryPrefix
	}
	if cfg.DocumentPrefix == "" {
		cfg.DocumentPrefix = DefaultDocumentPrefix
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = DefaultEmbeddingTimeout
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}

	embedCfg := openai.DefaultConfig(cfg.EmbeddingAPIKey)
	embedCfg.HTTPClient = &http.Client{Timeout: cfg.EmbeddingTimeout}
	if cfg.EmbeddingBaseURL != "" {
		embedCfg.BaseURL = cfg.EmbeddingBaseURL
	}
	completeCfg := openai.DefaultConfig(cfg.CompletionAPIKey)
	completeCfg.HTTPClient = &http.Client{Timeout: cfg.CompletionTimeout}
	if cfg.CompletionBaseURL != "" {
		completeCfg.BaseURL = cfg.CompletionBaseURL
	}

	return &Client{
		embedAPI:    openai.NewClientWithConfig(embedCfg),
		completeAPI: openai.NewClientWithConfig(completeCfg),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		cfg:         cfg,
	}
}

// EmbedQuery embeds text in query mode.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, c.cfg.QueryPrefix)
}

// EmbedDocument embeds text in document mode, used when indexing content.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, c.cfg.DocumentPrefix)
}

func (c *Client) embed(ctx context.Context, text, prefix string) ([]float32, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil, &Error{Op: "embed", Kind: KindInvalidInput, Err: ErrEmptyText}
	}
	if len(clean) > c.cfg.MaxInputChars {
		// Back up to a rune boundary so truncation never splits a
		// multibyte sequence.
		cut := c.cfg.MaxInputChars
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = clean[:cut]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newError("embed", err)
	}

	resp, err := c.embedAPI.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{prefix + clean},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, newError("embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, &Error{Op: "embed", Kind: KindUnavailable, Err: errors.New("no embedding data returned")}
	}

	vector := resp.Data[0].Embedding
	if len(vector) != c.cfg.Dimensions {
		return nil, &Error{Op: "embed", Kind: KindInvalidInput, Err: ErrWrongDimensions}
	}

	return vector, nil
}

// Complete generates text from a system and user prompt.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	resp, err := c.completeAPI.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.CompletionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", newError("complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Op: "complete", Kind: KindUnavailable, Err: ErrEmptyCompletion}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

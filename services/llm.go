package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"google.golang.org/genai"

	"llmwars/config"
	"llmwars/models"
)

const (
	// Hard ceiling on generated output per call. Battles are rapid-fire
	// exchanges, not essays.
	maxResponseTokens = 60

	samplingTemperature = 0.8

	openaiURL    = "https://api.openai.com/v1/chat/completions"
	grokURL      = "https://api.x.ai/v1/chat/completions"
	anthropicURL = "https://api.anthropic.com/v1/messages"

	anthropicVersion = "2023-06-01"
)

// modelMap pins the backend model used for each provider.
var modelMap = map[models.Provider]string{
	models.ProviderOpenAI: "gpt-4o",
	models.ProviderClaude: "claude-sonnet-4-20250514",
	models.ProviderGrok:   "grok-3-latest",
	models.ProviderGemini: "gemini-2.5-flash",
}

// ProviderCallError wraps any failure from a backend call. The gateway does
// not retry; the orchestrator decides what a failed call means for the
// battle.
type ProviderCallError struct {
	Provider models.Provider
	Err      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider %s call failed: %v", e.Provider, e.Err)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Err
}

// TextGenerator is the gateway contract the orchestrator depends on.
type TextGenerator interface {
	GenerateResponse(ctx context.Context, provider models.Provider, systemPrompt string, turns []ChatTurn) (string, error)
}

// textGenerator is one backend branch of the gateway. Implementations only
// differ in request shaping and response unwrapping.
type textGenerator interface {
	generate(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error)
}

// LLMService dispatches generation calls over the closed set of providers.
type LLMService struct {
	clients map[models.Provider]textGenerator
}

// NewLLMService builds the provider registry from configured credentials.
// A provider with a missing key is still registered; its calls fail at call
// time rather than at startup.
func NewLLMService(cfg *config.Config) *LLMService {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	var gemini textGenerator
	if client, err := initGeminiClient(cfg.Gemini.ApiKey); err != nil {
		log.Printf("Warning: gemini client unavailable: %v", err)
		gemini = &unavailableGenerator{err: err}
	} else {
		gemini = &geminiGenerator{client: client, model: modelMap[models.ProviderGemini]}
	}

	return &LLMService{
		clients: map[models.Provider]textGenerator{
			models.ProviderOpenAI: &chatCompletionClient{
				apiKey: cfg.Openai.ApiKey,
				url:    openaiURL,
				model:  modelMap[models.ProviderOpenAI],
				http:   httpClient,
			},
			models.ProviderGrok: &chatCompletionClient{
				apiKey: cfg.Grok.ApiKey,
				url:    grokURL,
				model:  modelMap[models.ProviderGrok],
				http:   httpClient,
			},
			models.ProviderClaude: &anthropicClient{
				apiKey: cfg.Anthropic.ApiKey,
				model:  modelMap[models.ProviderClaude],
				http:   httpClient,
			},
			models.ProviderGemini: gemini,
		},
	}
}

// initGeminiClient creates the shared Gemini client. Without an explicit
// key the client library falls back to its own environment lookup.
func initGeminiClient(apiKey string) (*genai.Client, error) {
	config := &genai.ClientConfig{}
	if apiKey != "" {
		config.APIKey = apiKey
	}
	return genai.NewClient(context.Background(), config)
}

// unavailableGenerator takes a provider's slot when its client could not be
// constructed, deferring the failure to call time.
type unavailableGenerator struct {
	err error
}

func (g *unavailableGenerator) generate(context.Context, string, []ChatTurn) (string, error) {
	return "", g.err
}

// GenerateResponse calls the backend for provider with the given system
// prompt and conversation, returning the raw text. An empty response from
// the backend yields an empty string, never an error.
func (s *LLMService) GenerateResponse(ctx context.Context, provider models.Provider, systemPrompt string, turns []ChatTurn) (string, error) {
	client, ok := s.clients[provider]
	if !ok {
		return "", &ProviderCallError{Provider: provider, Err: fmt.Errorf("unsupported provider")}
	}

	text, err := client.generate(ctx, systemPrompt, turns)
	if err != nil {
		return "", &ProviderCallError{Provider: provider, Err: err}
	}
	return text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionClient speaks the OpenAI chat-completions protocol, which
// both OpenAI and x.ai expose.
type chatCompletionClient struct {
	apiKey string
	url    string
	model  string
	http   *http.Client
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

func (c *chatCompletionClient) generate(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error) {
	messages := make([]chatMessage, 0, len(turns)+1)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range turns {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxResponseTokens,
		Temperature: samplingTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	body, err := doRequest(c.http, req)
	if err != nil {
		return "", err
	}

	var responseData struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &responseData); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(responseData.Choices) == 0 {
		return "", nil
	}
	return responseData.Choices[0].Message.Content, nil
}

// anthropicClient speaks the Anthropic messages protocol.
type anthropicClient struct {
	apiKey string
	model  string
	http   *http.Client
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (c *anthropicClient) generate(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error) {
	messages := make([]chatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		MaxTokens:   maxResponseTokens,
		System:      systemPrompt,
		Messages:    messages,
		Temperature: samplingTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicURL, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	body, err := doRequest(c.http, req)
	if err != nil {
		return "", err
	}

	var responseData struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &responseData); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(responseData.Content) == 0 {
		return "", nil
	}
	return responseData.Content[0].Text, nil
}

// geminiGenerator calls Gemini through the genai client. Gemini takes a
// single text blob, so the conversation is flattened into the prompt.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) generate(ctx context.Context, systemPrompt string, turns []ChatTurn) (string, error) {
	prompt := flattenConversation(systemPrompt, turns)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: maxResponseTokens,
		Temperature:     genai.Ptr[float32](samplingTemperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

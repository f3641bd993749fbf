package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"llmwars/config"
	"llmwars/models"
)

// SurprisePersona is one generated participant setup.
type SurprisePersona struct {
	Provider string `json:"provider"`
	Persona  string `json:"persona"`
	Name     string `json:"name"`
}

// SurpriseConfig is a generated battle setup: a topic and one persona per
// battling provider.
type SurpriseConfig struct {
	Topic    string            `json:"topic"`
	Personas []SurprisePersona `json:"personas"`
}

// curatedPersonas seeds the generator prompt with the style of persona we
// want back.
var curatedPersonas = []struct {
	Label       string
	Description string
}{
	{"Angry startup founder", "Overconfident, disruptive, treats everything as a pitch"},
	{"Overly polite HR manager", "Diplomatic to a fault, de-escalates everything"},
	{"Tired Roman general", "World-weary, speaks in campaign metaphors"},
	{"Passive aggressive roommate", "Makes every point through pointed sighs"},
	{"Customer support executive", "Scripted empathy, escalates nothing"},
	{"Conspiracy theorist uncle", "Connects everything to a larger plot"},
}

// curatedBattles are approved examples of the topic/persona style, fed to
// the generator as style references.
var curatedBattles = []struct {
	Topic    string
	Personas [3]string
}{
	{"Is water wet?", [3]string{"Angry startup founder", "Overly polite HR manager", "Tired Roman general"}},
	{"WiFi is slow", [3]string{"Passive aggressive roommate", "Customer support executive", "Confused medieval knight"}},
	{"Monday is the worst day", [3]string{"Chaotic morning person", "Polite night-shift nurse", "Retired weather forecaster"}},
}

// fallbackSurprise is returned when the generator's output cannot be
// parsed.
var fallbackSurprise = SurpriseConfig{
	Topic: "Is a taco a sandwich?",
	Personas: []SurprisePersona{
		{Provider: string(models.ProviderOpenAI), Persona: "A chaotic gremlin who loves stirring up trouble", Name: "OpenAI"},
		{Provider: string(models.ProviderClaude), Persona: "An overly polite Victorian butler who apologizes for everything", Name: "Claude"},
		{Provider: string(models.ProviderGrok), Persona: "A confused time traveler from the year 1350", Name: "Grok"},
	},
}

// SurpriseService generates random battle configurations with an LLM. The
// orchestrator never depends on it; callers feed its output back through the
// normal create-battle path.
type SurpriseService struct {
	apiKey string
	http   *http.Client
	prompt string
}

func NewSurpriseService(cfg *config.Config) *SurpriseService {
	return &SurpriseService{
		apiKey: cfg.Openai.ApiKey,
		http:   &http.Client{Timeout: 60 * time.Second},
		prompt: buildSurprisePrompt(),
	}
}

func buildSurprisePrompt() string {
	var personas strings.Builder
	for _, p := range curatedPersonas {
		personas.WriteString(fmt.Sprintf(" - %s: %s\n", p.Label, p.Description))
	}

	var battles strings.Builder
	for _, b := range curatedBattles {
		battles.WriteString(fmt.Sprintf("- Topic: %q\n  - OpenAI: %s\n  - Claude: %s\n  - Grok: %s\n",
			b.Topic, b.Personas[0], b.Personas[1], b.Personas[2]))
	}

	return fmt.Sprintf(`You are the creative director for "LLM Wars", a debate show where 3 AI models argue intensely about extremely simple things.

Generate ONE battle configuration with:
1. A SHORT, SIMPLE, everyday debate topic. It must be a plain sentence people hear in daily life; the humor comes from taking a small thing too seriously. No fantasy, no abstract philosophy.
2. THREE distinct personas that will overreact to it:
   - openai: mischievous, chaotic, provocative
   - claude: extremely calm, polite, diplomatic
   - grok: a wildcard, preferably mundane or unrelated
Each persona description is 5-10 words of simple language. At least one persona should be clearly unrelated to the topic.

Respond with ONLY valid JSON in this exact format:
{"topic": "...", "personas": {"openai": "...", "claude": "...", "grok": "..."}}

Approved style examples (match the style, do not copy):
%s
Approved personas (style reference):
%s`, battles.String(), personas.String())
}

type surpriseCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// Generate asks the model for a fresh battle configuration. Parse failures
// fall back to a fixed configuration rather than erroring: a broken
// surprise should never block setting up a battle.
func (s *SurpriseService) Generate(ctx context.Context) (*SurpriseConfig, error) {
	request := surpriseCompletionRequest{
		Model: modelMap[models.ProviderOpenAI],
		Messages: []chatMessage{
			{Role: "system", Content: s.prompt},
			{Role: "user", Content: "Generate a fresh, creative battle configuration. Be inventive!"},
		},
		MaxTokens:   300,
		Temperature: 1.0,
	}
	request.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	body, err := doRequest(s.http, req)
	if err != nil {
		return nil, &ProviderCallError{Provider: models.ProviderOpenAI, Err: err}
	}

	var responseData struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &responseData); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(responseData.Choices) == 0 {
		result := fallbackSurprise
		return &result, nil
	}

	return parseSurprise(responseData.Choices[0].Message.Content), nil
}

func parseSurprise(content string) *SurpriseConfig {
	var generated struct {
		Topic    string            `json:"topic"`
		Personas map[string]string `json:"personas"`
	}
	if err := json.Unmarshal([]byte(content), &generated); err != nil || generated.Topic == "" {
		result := fallbackSurprise
		return &result
	}

	persona := func(provider models.Provider, fallback string) SurprisePersona {
		text := generated.Personas[string(provider)]
		if text == "" {
			text = fallback
		}
		return SurprisePersona{
			Provider: string(provider),
			Persona:  text,
			Name:     provider.DisplayName(),
		}
	}

	return &SurpriseConfig{
		Topic: generated.Topic,
		Personas: []SurprisePersona{
			persona(models.ProviderOpenAI, "A mischievous troublemaker"),
			persona(models.ProviderClaude, "An overly polite diplomat"),
			persona(models.ProviderGrok, "A confused time traveler"),
		},
	}
}

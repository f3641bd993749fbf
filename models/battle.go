package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies one of the supported LLM backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderClaude Provider = "claude"
	ProviderGrok   Provider = "grok"
	ProviderGemini Provider = "gemini"
)

// Providers lists every supported provider, in display order.
var Providers = []Provider{ProviderOpenAI, ProviderClaude, ProviderGrok, ProviderGemini}

func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderGrok, ProviderGemini:
		return true
	}
	return false
}

// DisplayName returns the capitalized provider name, used when a participant
// has no explicit name configured.
func (p Provider) DisplayName() string {
	s := string(p)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// BattleMode controls how participants are asked to respond.
type BattleMode string

const (
	ModeText  BattleMode = "text"
	ModeEmoji BattleMode = "emoji"
)

func (m BattleMode) Valid() bool {
	return m == ModeText || m == ModeEmoji
}

// Language selects the language participants respond in. Unknown values fall
// back to English at prompt-building time.
type Language string

const (
	LanguageEnglish  Language = "english"
	LanguageSpanish  Language = "spanish"
	LanguageFrench   Language = "french"
	LanguageGerman   Language = "german"
	LanguageHindi    Language = "hindi"
	LanguageJapanese Language = "japanese"
)

// BattleStatus tracks the lifecycle of a battle. Completed and Error are
// terminal.
type BattleStatus string

const (
	StatusPending    BattleStatus = "pending"
	StatusInProgress BattleStatus = "in_progress"
	StatusCompleted  BattleStatus = "completed"
	StatusError      BattleStatus = "error"
)

const (
	maxPersonaLength = 500
	maxNameLength    = 50
	maxTopicLength   = 1000
	MinRounds        = 1
	MaxRounds        = 10
	DefaultRounds    = 3

	// ParticipantCount is a hard requirement: every battle has exactly
	// three participants.
	ParticipantCount = 3
)

// LLMConfig configures a single battle participant.
type LLMConfig struct {
	Provider Provider `json:"provider"`
	Persona  string   `json:"persona"`
	Name     string   `json:"name"`
}

// BattleConfig is the immutable configuration of a battle.
type BattleConfig struct {
	Topic    string      `json:"topic"`
	Mode     BattleMode  `json:"mode"`
	Language Language    `json:"language"`
	Rounds   int         `json:"rounds"`
	LLMs     []LLMConfig `json:"llms"`
}

// BattleMessage is one entry in a battle transcript. Append-only.
type BattleMessage struct {
	Provider    Provider `json:"provider"`
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	RoundNumber int      `json:"round_number"`
}

// BattleState is the full state of a battle. While a run is active it is
// owned exclusively by the orchestrator.
type BattleState struct {
	ID           string          `json:"id"`
	Config       BattleConfig    `json:"config"`
	Messages     []BattleMessage `json:"messages"`
	CurrentRound int             `json:"current_round"`
	Status       BattleStatus    `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewBattleState creates a fresh pending battle with a generated identifier.
func NewBattleState(config BattleConfig) *BattleState {
	return &BattleState{
		ID:       uuid.NewString(),
		Config:   config,
		Messages: []BattleMessage{},
		Status:   StatusPending,
	}
}

// BattleRequest is the client payload for creating a battle.
type BattleRequest struct {
	Topic    string      `json:"topic" binding:"required"`
	Mode     BattleMode  `json:"mode"`
	Language Language    `json:"language"`
	Rounds   int         `json:"rounds"`
	LLMs     []LLMConfig `json:"llms" binding:"required"`
}

// BattleResponse is the client-facing projection of a battle state.
type BattleResponse struct {
	ID           string          `json:"id"`
	Status       BattleStatus    `json:"status"`
	CurrentRound int             `json:"current_round"`
	TotalRounds  int             `json:"total_rounds"`
	Messages     []BattleMessage `json:"messages"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Vote records a single vote for a provider in a finished battle.
type Vote struct {
	ID        string    `json:"id"`
	BattleID  string    `json:"battleId"`
	Provider  Provider  `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidationError reports a malformed battle request. It is returned before
// any battle state is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the request and converts it into an immutable
// BattleConfig, applying defaults for mode, language, rounds and participant
// display names.
func (r *BattleRequest) Validate() (BattleConfig, error) {
	if len(r.Topic) < 1 || len(r.Topic) > maxTopicLength {
		return BattleConfig{}, &ValidationError{
			Field:  "topic",
			Reason: fmt.Sprintf("must be 1-%d characters", maxTopicLength),
		}
	}

	mode := r.Mode
	if mode == "" {
		mode = ModeText
	}
	if !mode.Valid() {
		return BattleConfig{}, &ValidationError{Field: "mode", Reason: "must be 'text' or 'emoji'"}
	}

	language := r.Language
	if language == "" {
		language = LanguageEnglish
	}

	rounds := r.Rounds
	if rounds == 0 {
		rounds = DefaultRounds
	}
	if rounds < MinRounds || rounds > MaxRounds {
		return BattleConfig{}, &ValidationError{
			Field:  "rounds",
			Reason: fmt.Sprintf("must be between %d and %d", MinRounds, MaxRounds),
		}
	}

	if len(r.LLMs) != ParticipantCount {
		return BattleConfig{}, &ValidationError{
			Field:  "llms",
			Reason: fmt.Sprintf("exactly %d participants required, got %d", ParticipantCount, len(r.LLMs)),
		}
	}

	llms := make([]LLMConfig, len(r.LLMs))
	for i, llm := range r.LLMs {
		if !llm.Provider.Valid() {
			return BattleConfig{}, &ValidationError{
				Field:  "llms",
				Reason: fmt.Sprintf("unknown provider %q", llm.Provider),
			}
		}
		if len(llm.Persona) < 1 || len(llm.Persona) > maxPersonaLength {
			return BattleConfig{}, &ValidationError{
				Field:  "llms",
				Reason: fmt.Sprintf("persona must be 1-%d characters", maxPersonaLength),
			}
		}
		if len(llm.Name) > maxNameLength {
			return BattleConfig{}, &ValidationError{
				Field:  "llms",
				Reason: fmt.Sprintf("name must be at most %d characters", maxNameLength),
			}
		}
		if llm.Name == "" {
			llm.Name = llm.Provider.DisplayName()
		}
		llms[i] = llm
	}

	return BattleConfig{
		Topic:    r.Topic,
		Mode:     mode,
		Language: language,
		Rounds:   rounds,
		LLMs:     llms,
	}, nil
}

package services

import (
	"fmt"
	"strings"

	"llmwars/models"
)

// ChatTurn is one provider-agnostic utterance in a conversation context.
type ChatTurn struct {
	Role    string
	Content string
}

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

const emojiModeInstruction = `IMPORTANT: You must respond using ONLY emojis. No text, no punctuation, no numbers.
Express your entire response through emojis only. Be creative and expressive!`

const openingStatementPrompt = "The debate is starting. Please make your opening statement."

const yourTurnPrompt = "It's your turn. Respond to the discussion above."

// languageDirectives maps each supported language to the instruction added
// to the system prompt. Unmapped languages fall back to English.
var languageDirectives = map[models.Language]string{
	models.LanguageEnglish:  "Respond in English.",
	models.LanguageSpanish:  "Respond entirely in Spanish (Español).",
	models.LanguageFrench:   "Respond entirely in French (Français).",
	models.LanguageGerman:   "Respond entirely in German (Deutsch).",
	models.LanguageHindi:    "Respond entirely in Hindi (हिन्दी).",
	models.LanguageJapanese: "Respond entirely in Japanese (日本語).",
}

// BuildSystemPrompt assembles the system instruction for one participant.
// The mapping is deterministic: identical inputs always produce identical
// output.
func BuildSystemPrompt(persona, topic string, mode models.BattleMode, language models.Language) string {
	var sb strings.Builder
	sb.WriteString("You are participating in a debate/discussion with other AI assistants.\n\n")
	sb.WriteString(fmt.Sprintf("Your persona: %s\n\n", persona))
	sb.WriteString(fmt.Sprintf("Topic of discussion: %s\n\n", topic))
	sb.WriteString(`Rules:
- Stay in character according to your persona
- Respond to what others have said, building on the conversation
- Be engaging, witty, and make your points clearly
- CRITICAL: Keep responses VERY SHORT (1-2 sentences, max 150 characters)
- You can disagree, agree, or add new perspectives
`)

	directive, ok := languageDirectives[language]
	if !ok {
		directive = languageDirectives[models.LanguageEnglish]
	}
	sb.WriteString("\n")
	sb.WriteString(directive)
	sb.WriteString("\n")

	if mode == models.ModeEmoji {
		sb.WriteString("\n")
		sb.WriteString(emojiModeInstruction)
		sb.WriteString("\n")
	}

	return sb.String()
}

// BuildConversation converts a transcript into the turn list a provider
// consumes. Every prior message becomes an assistant turn prefixed with the
// speaker's name. An empty transcript yields the synthetic opening prompt;
// otherwise a closing prompt is appended so the model knows to take its
// turn.
func BuildConversation(history []models.BattleMessage) []ChatTurn {
	turns := make([]ChatTurn, 0, len(history)+1)
	for _, msg := range history {
		turns = append(turns, ChatTurn{
			Role:    roleAssistant,
			Content: fmt.Sprintf("[%s]: %s", msg.Name, msg.Content),
		})
	}

	if len(turns) == 0 {
		turns = append(turns, ChatTurn{Role: roleUser, Content: openingStatementPrompt})
	} else {
		turns = append(turns, ChatTurn{Role: roleUser, Content: yourTurnPrompt})
	}
	return turns
}

// flattenConversation renders a system prompt plus turns as a single prompt
// string, for backends that take one text blob instead of a message list.
func flattenConversation(systemPrompt string, turns []ChatTurn) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n")
	for _, turn := range turns {
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

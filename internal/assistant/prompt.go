package assistant

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt frames every conversation.
const SystemPrompt = `You are a helpful AI assistant integrated with a Q&A forum platform. Follow these strict rules:

1. NO HALLUCINATION: Only provide information that is explicitly stated in the conversation or available in the provided data
2. NO ASSUMPTIONS: Do not make assumptions beyond what is clearly presented
3. VALIDATION: If you don't have enough information to answer accurately, ask for clarification
4. CONTEXT AWARENESS: You have access to forum data including questions, answers, and user information
5. HELPFUL GUIDANCE: Provide clear, actionable advice based on available information
6. SAFETY: Never provide harmful, illegal, or inappropriate content

When responding:
- Be concise but thorough
- Use markdown formatting for better readability
- If referencing forum content, mention the source
- Always maintain a helpful and professional tone`

// MaxHistoryTurns bounds how much of the conversation is replayed.
const MaxHistoryTurns = 10

// MaxTitleRunes is the longest generated chat title that is kept.
const MaxTitleRunes = 50

// Turn is one prior message of a conversation.
type Turn struct {
	Role    string
	Content string
}

// BuildPrompt composes the system prompt, optional forum context, the last
// MaxHistoryTurns turns of history and the new message.
func BuildPrompt(forumContext string, history []Turn, message string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\n")
	if c := strings.TrimSpace(forumContext); c != "" {
		fmt.Fprintf(&b, "Forum Context:\n%s\n\n", c)
	}
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", message)
	return b.String()
}

// TitlePrompt asks the generator for a short conversation title.
func TitlePrompt(message string) string {
	return fmt.Sprintf("Generate a short title (max %d characters) for this conversation: %q", MaxTitleRunes, strings.TrimSpace(message))
}

// CleanTitle strips quotes and markdown emphasis from a generated title and
// reports whether the result is usable (1..MaxTitleRunes runes).
func CleanTitle(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	t = strings.NewReplacer(`"`, "", "“", "", "”", "", "*", "", "#", "").Replace(t)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(t)
	n := utf8.RuneCountInString(t)
	if n == 0 || n > MaxTitleRunes {
		return "", false
	}
	return t, true
}

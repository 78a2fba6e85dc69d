package enrich

import (
	"fmt"
	"strings"

	"ai-assistant-be/pkg/llm"
)

// Intent classifies what the user wants done with the answer.
type Intent string

const (
	IntentAnswer         Intent = "answer"
	IntentDraftEmail     Intent = "draft-email"
	IntentCreateFollowup Intent = "create-followup"
)

const (
	maxHistoryTurns  = 6
	contextCharLimit = 200
)

// Closed set of reference tokens that signal the query leans on earlier turns.
var referenceTokens = map[string]bool{
	"they":  true,
	"them":  true,
	"it":    true,
	"that":  true,
	"this":  true,
	"those": true,
	"these": true,
	"he":    true,
	"she":   true,
	"there": true,
}

// Enrich resolves pronoun-style references against the most recent assistant
// turn. Pure function: if the query carries no reference token, or no
// assistant turn exists, the query passes through unchanged.
func Enrich(query string, history []llm.Message) string {
	if !containsReferenceToken(query) {
		return query
	}

	last := lastAssistantContent(history)
	if last == "" {
		return query
	}

	if runes := []rune(last); len(runes) > contextCharLimit {
		last = string(runes[:contextCharLimit])
	}

	return fmt.Sprintf("Context: %s\nQuery: %s", last, query)
}

func containsReferenceToken(query string) bool {
	for _, token := range strings.Fields(strings.ToLower(query)) {
		token = strings.Trim(token, ".,!?;:'\"")
		if referenceTokens[token] {
			return true
		}
	}
	return false
}

func lastAssistantContent(history []llm.Message) string {
	start := 0
	if len(history) > maxHistoryTurns {
		start = len(history) - maxHistoryTurns
	}
	for i := len(history) - 1; i >= start; i-- {
		if history[i].Role == "assistant" && strings.TrimSpace(history[i].Content) != "" {
			return history[i].Content
		}
	}
	return ""
}

// DetectIntent classifies the query with keyword heuristics. Mirrors the
// strategy-detection approach used for search routing: cheap, deterministic,
// and good enough to bias filters and prompt wording.
func DetectIntent(query string) Intent {
	q := strings.ToLower(query)

	emailVerbs := []string{"draft", "write", "compose", "reply to", "respond to"}
	for _, v := range emailVerbs {
		if strings.Contains(q, v) && (strings.Contains(q, "email") || strings.Contains(q, "mail") || strings.Contains(q, "message")) {
			return IntentDraftEmail
		}
	}

	followupMarkers := []string{"remind me", "follow up", "follow-up", "create a task", "add a task", "todo"}
	for _, m := range followupMarkers {
		if strings.Contains(q, m) {
			return IntentCreateFollowup
		}
	}

	return IntentAnswer
}

package enrich

import (
	"strings"
	"testing"

	"ai-assistant-be/pkg/llm"
)

func TestEnrich(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		history    []llm.Message
		wantPrefix bool
		wantPart   string
	}{
		{
			name:       "no reference token passes through",
			query:      "board meeting action items",
			history:    []llm.Message{{Role: "assistant", Content: "Acme Corp signed the deal."}},
			wantPrefix: false,
		},
		{
			name:       "pronoun with prior assistant turn gets context",
			query:      "what did they decide?",
			history:    []llm.Message{{Role: "user", Content: "tell me about Acme Corp"}, {Role: "assistant", Content: "Acme Corp decided to expand."}},
			wantPrefix: true,
			wantPart:   "Acme Corp",
		},
		{
			name:       "pronoun without assistant turn passes through",
			query:      "what did they decide?",
			history:    []llm.Message{{Role: "user", Content: "hello"}},
			wantPrefix: false,
		},
		{
			name:       "pronoun with empty history passes through",
			query:      "summarize it",
			history:    nil,
			wantPrefix: false,
		},
		{
			name:       "punctuation around the token still matches",
			query:      "and that?",
			history:    []llm.Message{{Role: "assistant", Content: "The budget was approved."}},
			wantPrefix: true,
			wantPart:   "budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Enrich(tt.query, tt.history)

			if !tt.wantPrefix {
				if got != tt.query {
					t.Errorf("Enrich() = %q, want unchanged %q", got, tt.query)
				}
				return
			}

			if !strings.HasPrefix(got, "Context: ") {
				t.Errorf("Enrich() = %q, want Context prefix", got)
			}
			if !strings.Contains(got, "Query: "+tt.query) {
				t.Errorf("Enrich() = %q, missing original query", got)
			}
			if tt.wantPart != "" && !strings.Contains(got, tt.wantPart) {
				t.Errorf("Enrich() = %q, missing %q", got, tt.wantPart)
			}
		})
	}
}

func TestEnrichTruncatesLongContext(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := Enrich("what about that?", []llm.Message{{Role: "assistant", Content: long}})

	contextLine := strings.SplitN(got, "\n", 2)[0]
	want := "Context: " + strings.Repeat("x", 200)
	if contextLine != want {
		t.Errorf("context line length = %d, want %d", len(contextLine), len(want))
	}
}

func TestEnrichUsesMostRecentAssistantTurn(t *testing.T) {
	history := []llm.Message{
		{Role: "assistant", Content: "first answer about Globex"},
		{Role: "user", Content: "and the other one?"},
		{Role: "assistant", Content: "second answer about Initech"},
	}

	got := Enrich("when did they meet?", history)
	if !strings.Contains(got, "Initech") {
		t.Errorf("Enrich() = %q, want most recent assistant content", got)
	}
	if strings.Contains(got, "Globex") {
		t.Errorf("Enrich() = %q, used stale assistant content", got)
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"what did the board decide?", IntentAnswer},
		{"draft an email to the team about the launch", IntentDraftEmail},
		{"write a reply email to Sarah", IntentDraftEmail},
		{"remind me to call the vendor", IntentCreateFollowup},
		{"create a task for the quarterly report", IntentCreateFollowup},
		{"draft the quarterly report", IntentAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := DetectIntent(tt.query); got != tt.want {
				t.Errorf("DetectIntent(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

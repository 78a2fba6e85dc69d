package prompt

import (
	"strings"
	"testing"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/store"
)

func sampleEvidence() []store.EvidenceBlock {
	return []store.EvidenceBlock{
		{Title: "Roadmap", SourceType: store.SourceNote, Text: "Q3 launch planned.", SemanticScore: 0.91},
		{Title: "Sync", SourceType: store.SourceTranscript, Text: "Team agreed on scope.", SemanticScore: 0.72},
	}
}

func TestBuildSections(t *testing.T) {
	b := NewGroundedBuilder(
		"when is the launch?",
		[]llm.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		sampleEvidence(),
		10,
		true,
	)

	got := b.Build()

	for _, want := range []string{
		"<conversation_history>",
		"user: hi",
		"assistant: hello",
		"<evidence>",
		"[1] Roadmap (note, relevance 91%)",
		"[2] Sync (transcript, relevance 72%)",
		"Q3 launch planned.",
		"<user_question>",
		"when is the launch?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Build() missing %q", want)
		}
	}
}

func TestBuildOmitsEmptyHistory(t *testing.T) {
	b := NewGroundedBuilder("query", nil, sampleEvidence(), 10, true)

	if strings.Contains(b.Build(), "<conversation_history>") {
		t.Error("Build() emitted a history section for empty history")
	}
}

func TestBuildTrimsHistoryToLimit(t *testing.T) {
	history := []llm.Message{
		{Role: "user", Content: "oldest turn"},
		{Role: "assistant", Content: "middle turn"},
		{Role: "user", Content: "newest turn"},
	}
	b := NewGroundedBuilder("query", history, sampleEvidence(), 2, true)

	got := b.Build()

	if strings.Contains(got, "oldest turn") {
		t.Error("Build() kept a turn past the history limit")
	}
	if !strings.Contains(got, "newest turn") {
		t.Error("Build() dropped the newest turn")
	}
}

func TestInstructionsCitationToggle(t *testing.T) {
	withCite := NewGroundedBuilder("q", nil, nil, 10, true).Instructions()
	if !strings.Contains(withCite, "Cite the evidence blocks") {
		t.Error("Instructions() missing citation rule when cite is on")
	}

	withoutCite := NewGroundedBuilder("q", nil, nil, 10, false).Instructions()
	if !strings.Contains(withoutCite, "Do not include citation markers") {
		t.Error("Instructions() missing omission rule when cite is off")
	}
}

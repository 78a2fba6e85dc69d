package evidence

import (
	"strings"
	"testing"
	"unicode/utf8"

	"ai-assistant-be/pkg/store"
)

func TestAssembleBasics(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	candidates := []store.Candidate{
		{DocumentID: "d1", SourceType: store.SourceNote, SourceID: "n1", Title: "Roadmap", ChunkText: "Q3 roadmap notes.", SemanticScore: 0.9},
		{DocumentID: "d2", SourceType: store.SourceEmail, SourceID: "e1", Title: "Budget", ChunkText: "Budget approved.", SemanticScore: 0.8},
	}

	blocks, citations := a.Assemble(candidates)

	if len(blocks) != 2 {
		t.Fatalf("Assemble() blocks = %d, want 2", len(blocks))
	}
	if blocks[0].DocumentID != "d1" || blocks[1].DocumentID != "d2" {
		t.Error("Assemble() reordered candidates")
	}
	if len(citations) != 2 {
		t.Errorf("Assemble() citations = %d, want 2", len(citations))
	}
}

func TestAssembleSkipsEmptyAndFallsBackToSummary(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	candidates := []store.Candidate{
		{DocumentID: "d1", SourceID: "s1", ChunkText: "   ", SummaryText: ""},
		{DocumentID: "d2", SourceID: "s2", ChunkText: "", SummaryText: "Summary only."},
	}

	blocks, _ := a.Assemble(candidates)

	if len(blocks) != 1 {
		t.Fatalf("Assemble() blocks = %d, want 1", len(blocks))
	}
	if blocks[0].Text != "Summary only." {
		t.Errorf("Assemble() text = %q, want summary fallback", blocks[0].Text)
	}
}

func TestAssembleRespectsCharBudget(t *testing.T) {
	a := NewAssembler(Config{CharBudget: 50, MaxCitations: 8})

	candidates := []store.Candidate{
		{DocumentID: "d1", SourceID: "s1", ChunkText: strings.Repeat("word ", 40)},
	}

	blocks, _ := a.Assemble(candidates)

	if got := utf8.RuneCountInString(blocks[0].Text); got > 50 {
		t.Errorf("block text = %d runes, want at most 50", got)
	}
}

func TestAssembleTruncatesOnRuneBoundary(t *testing.T) {
	a := NewAssembler(Config{CharBudget: 10, MaxCitations: 8})

	candidates := []store.Candidate{
		{DocumentID: "d1", SourceID: "s1", ChunkText: strings.Repeat("日本語テキスト", 5)},
	}

	blocks, _ := a.Assemble(candidates)

	if !utf8.ValidString(blocks[0].Text) {
		t.Errorf("truncated text is not valid UTF-8: %q", blocks[0].Text)
	}
	if utf8.RuneCountInString(blocks[0].Text) != 10 {
		t.Errorf("rune count = %d, want 10", utf8.RuneCountInString(blocks[0].Text))
	}
}

func TestAssembleDeduplicatesAndCapsCitations(t *testing.T) {
	a := NewAssembler(Config{CharBudget: 900, MaxCitations: 2})

	candidates := []store.Candidate{
		{DocumentID: "d1", SourceType: store.SourceNote, SourceID: "n1", ChunkText: "chunk one"},
		{DocumentID: "d2", SourceType: store.SourceNote, SourceID: "n1", ChunkText: "chunk two"},
		{DocumentID: "d3", SourceType: store.SourceEmail, SourceID: "e1", ChunkText: "chunk three"},
		{DocumentID: "d4", SourceType: store.SourceCalendarEvent, SourceID: "c1", ChunkText: "chunk four"},
	}

	blocks, citations := a.Assemble(candidates)

	if len(blocks) != 4 {
		t.Fatalf("Assemble() blocks = %d, want 4", len(blocks))
	}
	if len(citations) != 2 {
		t.Fatalf("Assemble() citations = %d, want capped at 2", len(citations))
	}
	if citations[0].SourceID != "n1" || citations[1].SourceID != "e1" {
		t.Errorf("citations = %+v, want first occurrence per source", citations)
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	blocks, citations := a.Assemble(nil)

	if len(blocks) != 0 || len(citations) != 0 {
		t.Errorf("Assemble(nil) = %d blocks, %d citations, want empty", len(blocks), len(citations))
	}
}

package history

import (
	"context"
	"fmt"
	"testing"

	"ai-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(20)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-1", llm.Message{Role: "user", Content: "hi"}))
	require.NoError(t, s.Append(ctx, "sess-1", llm.Message{Role: "assistant", Content: "hello"}))

	got, err := s.Recent(ctx, "sess-1", 10)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user", got[0].Role, "turns come back oldest first")
	assert.Equal(t, "assistant", got[1].Role)
}

func TestMemoryStoreCapsLength(t *testing.T) {
	s := NewMemoryStore(4)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(ctx, "sess-1", llm.Message{Role: "user", Content: fmt.Sprintf("turn %d", i)}))
	}

	got, err := s.Recent(ctx, "sess-1", 0)

	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "turn 6", got[0].Content, "oldest turns evicted")
	assert.Equal(t, "turn 9", got[3].Content)
}

func TestMemoryStoreRecentLimit(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Append(ctx, "sess-1", llm.Message{Role: "user", Content: fmt.Sprintf("turn %d", i)}))
	}

	got, err := s.Recent(ctx, "sess-1", 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "turn 4", got[0].Content)
	assert.Equal(t, "turn 5", got[1].Content)
}

func TestMemoryStoreSessionsIsolated(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "sess-a", llm.Message{Role: "user", Content: "a"}))
	require.NoError(t, s.Append(ctx, "sess-b", llm.Message{Role: "user", Content: "b"}))

	gotA, err := s.Recent(ctx, "sess-a", 10)
	require.NoError(t, err)
	gotB, err := s.Recent(ctx, "sess-b", 10)
	require.NoError(t, err)

	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	assert.Equal(t, "a", gotA[0].Content)
	assert.Equal(t, "b", gotB[0].Content)
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	s := NewMemoryStore(10)

	got, err := s.Recent(context.Background(), "nope", 10)

	require.NoError(t, err)
	assert.Empty(t, got)
}

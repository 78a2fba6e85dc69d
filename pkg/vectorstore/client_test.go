package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridSearchParsesRows(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody HybridQuery

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		_ = json.NewEncoder(w).Encode([]row{
			{
				DocumentID:    "d1",
				SourceType:    "note",
				SourceID:      "n1",
				Title:         "Roadmap",
				ChunkText:     "Q3 goals",
				SemanticScore: 0.7,
				LexicalScore:  0.4,
				FusedScore:    0.82,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", 5*time.Second)

	candidates, err := client.HybridSearch(context.Background(), HybridQuery{
		QueryText:        "roadmap",
		QueryEmbedding:   []float64{0.1},
		MatchCount:       20,
		MinSemanticScore: 0.35,
	})

	require.NoError(t, err)
	assert.Equal(t, "/rpc/hybrid_search", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "roadmap", gotBody.QueryText)

	require.Len(t, candidates, 1)
	assert.Equal(t, "d1", candidates[0].DocumentID)
	assert.Equal(t, 0.82, candidates[0].FusedScore)
	assert.Equal(t, 0.4, candidates[0].LexicalScore)
}

func TestSemanticSearchUsesSemanticScoreAsFused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc/semantic_search", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]row{
			{DocumentID: "d1", SemanticScore: 0.66, LexicalScore: 0.9, FusedScore: 0.9},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)

	candidates, err := client.SemanticSearch(context.Background(), SemanticQuery{
		QueryEmbedding: []float64{0.1},
		MatchCount:     20,
		MinScore:       0.2,
	})

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.66, candidates[0].FusedScore)
	assert.Zero(t, candidates[0].LexicalScore)
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream degraded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.HybridSearch(context.Background(), HybridQuery{QueryText: "q"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient), "5xx should map to ErrTransient, got %v", err)
}

func TestClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad embedding dimension", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)

	_, err := client.HybridSearch(context.Background(), HybridQuery{QueryText: "q"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransient), "4xx must not map to ErrTransient")
}

func TestTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 20*time.Millisecond)

	_, err := client.HybridSearch(context.Background(), HybridQuery{QueryText: "q"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient), "timeout should map to ErrTransient, got %v", err)
}

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"ai-assistant-be/pkg/store"
)

// ErrTransient marks store failures worth retrying in a cheaper mode
// (timeouts and 5xx-class responses). Everything else is permanent.
var ErrTransient = errors.New("transient vector store error")

// Searcher is the store contract the retrieval orchestrator depends on.
type Searcher interface {
	HybridSearch(ctx context.Context, q HybridQuery) ([]store.Candidate, error)
	SemanticSearch(ctx context.Context, q SemanticQuery) ([]store.Candidate, error)
}

// HybridQuery is one hybrid (semantic + lexical) search call.
type HybridQuery struct {
	QueryText        string    `json:"query_text"`
	QueryEmbedding   []float64 `json:"query_embedding"`
	MatchCount       int       `json:"match_count"`
	SourceFilters    []string  `json:"source_filters,omitempty"`
	MinSemanticScore float64   `json:"min_semantic_score"`
}

// SemanticQuery is the embedding-only fallback call. No lexical join.
type SemanticQuery struct {
	QueryEmbedding []float64 `json:"query_embedding"`
	MatchCount     int       `json:"match_count"`
	SourceFilters  []string  `json:"source_filters,omitempty"`
	MinScore       float64   `json:"min_score"`
}

type row struct {
	DocumentID    string                 `json:"document_id"`
	SourceType    string                 `json:"source_type"`
	SourceID      string                 `json:"source_id"`
	Title         string                 `json:"title"`
	SummaryText   string                 `json:"summary_text"`
	ChunkText     string                 `json:"chunk_text"`
	Metadata      map[string]interface{} `json:"metadata"`
	SemanticScore float64                `json:"semantic_score"`
	LexicalScore  float64                `json:"lexical_score"`
	FusedScore    float64                `json:"fused_score"`
}

// Client calls the store's RPC endpoints over HTTP.
type Client struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

var _ Searcher = &Client{}

func (c *Client) HybridSearch(ctx context.Context, q HybridQuery) ([]store.Candidate, error) {
	rows, err := c.call(ctx, "/rpc/hybrid_search", q)
	if err != nil {
		return nil, err
	}
	return toCandidates(rows, false), nil
}

// SemanticSearch is the degraded mode: lexicalScore is 0 and fusedScore
// equals semanticScore on every returned candidate.
func (c *Client) SemanticSearch(ctx context.Context, q SemanticQuery) ([]store.Candidate, error) {
	rows, err := c.call(ctx, "/rpc/semantic_search", q)
	if err != nil {
		return nil, err
	}
	return toCandidates(rows, true), nil
}

func (c *Client) call(ctx context.Context, path string, payload interface{}) ([]row, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	res, err := c.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransient, path, err)
		}
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %s: status %d, body %s", ErrTransient, path, res.StatusCode, string(resBody))
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store error: %s: status %d, body %s", path, res.StatusCode, string(resBody))
	}

	var rows []row
	if err := json.Unmarshal(resBody, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return rows, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toCandidates(rows []row, semanticOnly bool) []store.Candidate {
	candidates := make([]store.Candidate, 0, len(rows))
	for _, r := range rows {
		fused := r.FusedScore
		lexical := r.LexicalScore
		if semanticOnly {
			fused = r.SemanticScore
			lexical = 0
		}
		candidates = append(candidates, store.Candidate{
			DocumentID:    r.DocumentID,
			SourceType:    r.SourceType,
			SourceID:      r.SourceID,
			Title:         r.Title,
			ChunkText:     r.ChunkText,
			SummaryText:   r.SummaryText,
			SemanticScore: r.SemanticScore,
			LexicalScore:  lexical,
			FusedScore:    fused,
			Metadata:      r.Metadata,
		})
	}
	return candidates
}

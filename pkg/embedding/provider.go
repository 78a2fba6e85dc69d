package embedding

import "context"

// Task types passed to providers that distinguish query vs document embeddings.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Result carries one embedding vector.
type Result struct {
	Values []float64 `json:"values"`
}

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*Result, error)
}

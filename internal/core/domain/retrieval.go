package domain

import (
	"fmt"
	"time"
)

// Chunk is a contiguous, possibly overlapping piece of a document's text.
type Chunk struct {
	ID         string    `json:"chunk_id"`
	ProcessID  string    `json:"process_id"`
	DocumentID string    `json:"original_doc_id"`
	FileName   string    `json:"original_file_name"`
	Index      int       `json:"chunk_number"`
	Total      int       `json:"total_chunks"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// VectorPoint pairs a chunk id with its embedding.
type VectorPoint struct {
	ID     string    `json:"datapoint_id"`
	Vector []float32 `json:"feature_vector"`
}

// Neighbor is a ranked vector-index hit.
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// GenerationRequest is one call to the language model.
type GenerationRequest struct {
	Prompt      string
	History     []ChatTurn
	Temperature float32
	JSON        bool
}

type Answer struct {
	Text     string   `json:"answer"`
	ChunkIDs []string `json:"chunk_ids,omitempty"`
	Grounded bool     `json:"grounded"`
}

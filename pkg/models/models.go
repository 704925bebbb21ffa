package models

import "time"

// ProcessingStatus tracks where a material is in the ingestion pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Material is one ingested course document.
type Material struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	CourseID   string           `json:"course_id"`
	SourceURL  string           `json:"source_url"`
	Status     ProcessingStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	Processed  bool             `json:"processed"`
	PageCount  int              `json:"page_count"`
	ChunkCount int              `json:"chunk_count"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Chunk is a contiguous slice of a material's text with its embedding.
// Title, CourseID and SourceURL are denormalized from the material so
// retrieval can render a citation without a join; they are refreshed on
// reprocess, not on material rename.
type Chunk struct {
	ID         string    `json:"id"`
	MaterialID string    `json:"material_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Title      string    `json:"title"`
	CourseID   string    `json:"course_id"`
	SourceURL  string    `json:"source_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatTurn is one prior (question, answer) exchange used as short-term memory.
type ChatTurn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RetrievalResult pairs a chunk with its cosine similarity to the query.
// Ephemeral; never persisted.
type RetrievalResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source is a citation attached to an answer.
type Source struct {
	MaterialID string  `json:"material_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Answer is the full response to a learner question.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	Suggestions []string `json:"suggestions"`
}

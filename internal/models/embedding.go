package models

import "time"

const SourceTypeDatabaseQuery = "database_query"

// EmbeddingModel is shared catalog data describing an external embedding model.
type EmbeddingModel struct {
	ID         string `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Provider   string `json:"provider" db:"provider"`
	ModelID    string `json:"model_id" db:"model_id"` // provider-specific identifier
	Dimensions int    `json:"dimensions" db:"dimensions"`
}

// ChunkMetadata links a stored embedding back to its row and job.
type ChunkMetadata struct {
	JobID         string   `json:"job_id"`
	RowIndex      int      `json:"row_index"`
	ChunkIndex    int      `json:"chunk_index"`
	SourcePreview string   `json:"source_preview"`
	Query         string   `json:"query,omitempty"`
	Schema        string   `json:"schema,omitempty"`
	Table         string   `json:"table,omitempty"`
	Columns       []string `json:"columns,omitempty"`
}

type EmbeddingRecord struct {
	ID          string        `json:"id,omitempty" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	SourceType  string        `json:"source_type" db:"source_type"`
	SourceID    string        `json:"source_id" db:"source_id"`
	ModelID     string        `json:"model_id" db:"model_id"`
	Embedding   []float32     `json:"embedding" db:"embedding"`
	Content     string        `json:"content" db:"content"`
	Metadata    ChunkMetadata `json:"metadata" db:"metadata"`
	UserID      string        `json:"user_id" db:"user_id"`
	CreatedAt   *time.Time    `json:"created_at,omitempty" db:"created_at"`
}

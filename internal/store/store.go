package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/openclass/coursepilot/pkg/models"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// ErrNotFound is returned when a material does not exist.
var ErrNotFound = errors.New("store: not found")

// Scope optionally restricts chunk queries to one course or one material.
type Scope struct {
	CourseID   string
	MaterialID string
}

// MaterialStore is the material half of the persistence contract.
type MaterialStore interface {
	CreateMaterial(ctx context.Context, m models.Material) error
	GetMaterial(ctx context.Context, id string) (models.Material, error)
	ListMaterials(ctx context.Context, courseID string) ([]models.Material, error)
	SetMaterialStatus(ctx context.Context, id string, status models.ProcessingStatus, errMsg string) error
	MarkMaterialProcessed(ctx context.Context, id string, pageCount, chunkCount int) error
}

// ChunkStore is the chunk half of the persistence contract.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, materialID string, chunks []models.Chunk) error
	QueryChunks(ctx context.Context, scope Scope) ([]models.Chunk, error)
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context, embedDim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS materials (
  id          TEXT PRIMARY KEY,
  title       TEXT NOT NULL,
  course_id   TEXT NOT NULL DEFAULT '',
  source_url  TEXT NOT NULL,
  status      TEXT NOT NULL DEFAULT 'pending',
  error       TEXT NOT NULL DEFAULT '',
  processed   BOOLEAN NOT NULL DEFAULT FALSE,
  page_count  INT NOT NULL DEFAULT 0,
  chunk_count INT NOT NULL DEFAULT 0,
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now(),
  updated_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS materials_course_idx ON materials (course_id);

CREATE TABLE IF NOT EXISTS chunks (
  id          TEXT PRIMARY KEY,
  material_id TEXT NOT NULL REFERENCES materials(id) ON DELETE CASCADE,
  chunk_index INT NOT NULL,
  content     TEXT NOT NULL,
  embedding   vector(%d),
  title       TEXT NOT NULL DEFAULT '',
  course_id   TEXT NOT NULL DEFAULT '',
  source_url  TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS chunks_material_index_uidx
  ON chunks (material_id, chunk_index);

CREATE INDEX IF NOT EXISTS chunks_course_idx
  ON chunks (course_id);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, embedDim))
	return err
}

// CreateMaterial registers a document for ingestion.
func (s *Store) CreateMaterial(ctx context.Context, m models.Material) error {
	const q = `
		INSERT INTO materials (id, title, course_id, source_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`
	status := m.Status
	if status == "" {
		status = models.StatusPending
	}
	_, err := s.pool.Exec(ctx, q, m.ID, m.Title, m.CourseID, m.SourceURL, string(status))
	return err
}

// GetMaterial fetches a material by id.
func (s *Store) GetMaterial(ctx context.Context, id string) (models.Material, error) {
	const q = `
		SELECT id, title, course_id, source_url, status, error, processed,
		       page_count, chunk_count, created_at, updated_at
		FROM materials WHERE id = $1`
	var m models.Material
	var status string
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&m.ID, &m.Title, &m.CourseID, &m.SourceURL, &status, &m.Error, &m.Processed,
		&m.PageCount, &m.ChunkCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Material{}, ErrNotFound
		}
		return models.Material{}, err
	}
	m.Status = models.ProcessingStatus(status)
	return m, nil
}

// ListMaterials returns materials, optionally filtered by course.
func (s *Store) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	const q = `
		SELECT id, title, course_id, source_url, status, error, processed,
		       page_count, chunk_count, created_at, updated_at
		FROM materials
		WHERE ($1 = '' OR course_id = $1)
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Material
	for rows.Next() {
		var m models.Material
		var status string
		if err := rows.Scan(
			&m.ID, &m.Title, &m.CourseID, &m.SourceURL, &status, &m.Error, &m.Processed,
			&m.PageCount, &m.ChunkCount, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.Status = models.ProcessingStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetMaterialStatus records a pipeline state transition.
func (s *Store) SetMaterialStatus(ctx context.Context, id string, status models.ProcessingStatus, errMsg string) error {
	const q = `UPDATE materials SET status = $2, error = $3, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, string(status), errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMaterialProcessed records a successful ingestion run.
func (s *Store) MarkMaterialProcessed(ctx context.Context, id string, pageCount, chunkCount int) error {
	const q = `
		UPDATE materials
		SET status = 'completed', error = '', processed = TRUE,
		    page_count = $2, chunk_count = $3, updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, pageCount, chunkCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks swaps the full chunk set for a material in one transaction.
// Concurrent readers see either the old set or the new set, never a mix.
func (s *Store) ReplaceChunks(ctx context.Context, materialID string, chunks []models.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE material_id = $1`, materialID); err != nil {
		return err
	}

	const q = `
		INSERT INTO chunks (id, material_id, chunk_index, content, embedding,
		                    title, course_id, source_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		var ev any
		if c.Embedding != nil {
			ev = pgvector.NewVector(c.Embedding)
		} else {
			ev = (*pgvector.Vector)(nil)
		}
		batch.Queue(q, c.ID, c.MaterialID, c.ChunkIndex, c.Content, ev,
			c.Title, c.CourseID, c.SourceURL)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// QueryChunks returns candidate chunks with embeddings for ranking.
func (s *Store) QueryChunks(ctx context.Context, scope Scope) ([]models.Chunk, error) {
	const q = `
		SELECT id, material_id, chunk_index, content, embedding,
		       title, course_id, source_url, created_at
		FROM chunks
		WHERE ($1 = '' OR course_id = $1)
		  AND ($2 = '' OR material_id = $2)
		ORDER BY material_id, chunk_index`
	rows, err := s.pool.Query(ctx, q, scope.CourseID, scope.MaterialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var emb *pgvector.Vector
		if err := rows.Scan(
			&c.ID, &c.MaterialID, &c.ChunkIndex, &c.Content, &emb,
			&c.Title, &c.CourseID, &c.SourceURL, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

// Options configures a pipeline.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	BatchDelay   time.Duration
	FetchRetries int
	FetchTimeout time.Duration
	MaxBytes     int64
}

// Result is the structured outcome of one ingestion run. The pipeline
// never propagates stage errors to the caller; failures are recorded on
// the material and reported here.
type Result struct {
	MaterialID string                  `json:"material_id"`
	Status     models.ProcessingStatus `json:"status"`
	ChunkCount int                     `json:"chunk_count"`
	PageCount  int                     `json:"page_count"`
	Error      string                  `json:"error,omitempty"`
}

// Pipeline sequences validation, download, extraction, cleaning, chunking,
// embedding and persistence, and owns the material state machine:
// pending -> processing -> completed | failed.
type Pipeline struct {
	Materials store.MaterialStore
	Chunks    store.ChunkStore
	Client    ai.Client

	validator *Validator
	fetcher   *Fetcher
	extractor *Extractor
	chunker   *Chunker
	embedder  *Embedder

	// Two concurrent reprocess runs for the same material would race on
	// the chunk replace, so runs are serialized per material.
	locks sync.Map // material id -> *sync.Mutex
}

// New creates a pipeline with explicit dependencies. Provider clients and
// the store are injected, never global.
func New(materials store.MaterialStore, chunks store.ChunkStore, client ai.Client, opt Options) *Pipeline {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = 1000
	}
	if opt.ChunkOverlap < 0 {
		opt.ChunkOverlap = 0
	}
	httpClient := NewHTTPClient(opt.FetchTimeout)

	return &Pipeline{
		Materials: materials,
		Chunks:    chunks,
		Client:    client,
		validator: &Validator{HTTP: httpClient, MaxBytes: opt.MaxBytes},
		fetcher:   &Fetcher{HTTP: httpClient, MaxRetries: opt.FetchRetries, MaxBytes: opt.MaxBytes},
		extractor: NewExtractor(),
		chunker:   &Chunker{ChunkSize: opt.ChunkSize, Overlap: opt.ChunkOverlap},
		embedder:  NewEmbedder(client, opt.BatchSize, opt.BatchDelay),
	}
}

// Ingest runs the full pipeline for one material. Reprocessing replaces
// the material's chunk set atomically; rerunning on unchanged input yields
// the same chunk count and contents.
func (p *Pipeline) Ingest(ctx context.Context, materialID string) Result {
	mu := p.lockFor(materialID)
	mu.Lock()
	defer mu.Unlock()

	m, err := p.Materials.GetMaterial(ctx, materialID)
	if err != nil {
		return Result{MaterialID: materialID, Status: models.StatusFailed,
			Error: "material lookup failed: " + err.Error()}
	}

	if err := p.Materials.SetMaterialStatus(ctx, m.ID, models.StatusProcessing, ""); err != nil {
		return Result{MaterialID: m.ID, Status: models.StatusFailed,
			Error: "status update failed: " + err.Error()}
	}

	pageCount, chunkCount, err := p.run(ctx, m)
	if err != nil {
		log.Error().Err(err).Str("material", m.ID).Str("source", m.SourceURL).Msg("ingestion failed")
		if serr := p.Materials.SetMaterialStatus(ctx, m.ID, models.StatusFailed, err.Error()); serr != nil {
			log.Error().Err(serr).Str("material", m.ID).Msg("failed to record failure status")
		}
		return Result{MaterialID: m.ID, Status: models.StatusFailed, Error: err.Error()}
	}

	if err := p.Materials.MarkMaterialProcessed(ctx, m.ID, pageCount, chunkCount); err != nil {
		log.Error().Err(err).Str("material", m.ID).Msg("failed to record completion")
		return Result{MaterialID: m.ID, Status: models.StatusFailed,
			Error: "completion update failed: " + err.Error()}
	}

	log.Info().Str("material", m.ID).Int("chunks", chunkCount).Int("pages", pageCount).Msg("material ingested")
	return Result{MaterialID: m.ID, Status: models.StatusCompleted,
		ChunkCount: chunkCount, PageCount: pageCount}
}

// run executes the stage sequence and returns the first stage error.
func (p *Pipeline) run(ctx context.Context, m models.Material) (pageCount, chunkCount int, err error) {
	if err := p.validator.Validate(ctx, m.SourceURL); err != nil {
		return 0, 0, err
	}

	raw, err := p.fetcher.Fetch(ctx, m.SourceURL)
	if err != nil {
		return 0, 0, err
	}

	extracted, err := p.extractor.Extract(raw)
	if err != nil {
		return 0, 0, err
	}

	text, err := Clean(extracted.Text)
	if err != nil {
		return 0, 0, err
	}

	contents := p.chunker.Split(text)

	vecs, err := p.embedder.EmbedAll(ctx, contents)
	if err != nil {
		return 0, 0, err
	}

	chunks := make([]models.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, models.Chunk{
			ID:         fmt.Sprintf("%s:%d", m.ID, i),
			MaterialID: m.ID,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vecs[i],
			Title:      m.Title,
			CourseID:   m.CourseID,
			SourceURL:  m.SourceURL,
		})
	}

	if err := p.Chunks.ReplaceChunks(ctx, m.ID, chunks); err != nil {
		return 0, 0, &PersistenceError{Err: err}
	}

	return extracted.PageCount, len(chunks), nil
}

func (p *Pipeline) lockFor(materialID string) *sync.Mutex {
	v, _ := p.locks.LoadOrStore(materialID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

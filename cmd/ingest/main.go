package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/spf13/pflag"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/internal/config"
	"github.com/openclass/coursepilot/internal/ingest"
	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

func main() {
	fs := pflag.NewFlagSet("coursepilot-ingest", pflag.ExitOnError)
	fs.String("source", "", "URL or file path of a single document to ingest")
	fs.String("dir", "", "Local directory to bulk-ingest (all PDFs, recursively)")
	fs.String("course", "", "Course ID to attach ingested materials to")
	fs.String("title", "", "Material title (single-source mode; defaults to the file name)")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	source, _ := fs.GetString("source")
	dir, _ := fs.GetString("dir")
	course, _ := fs.GetString("course")
	title, _ := fs.GetString("title")

	if source == "" && dir == "" {
		log.Fatal("either --source or --dir is required")
	}

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}
	case "vertexai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}
	case "stub":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if c.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	if err := st.Migrate(ctx, c.Dim()); err != nil {
		log.Fatal(err)
	}

	pipeline := ingest.New(st, st, c, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
		BatchDelay:   time.Duration(cfg.Ingest.BatchDelayMs) * time.Millisecond,
		FetchRetries: cfg.Ingest.FetchRetries,
		FetchTimeout: time.Duration(cfg.Ingest.FetchTimeout) * time.Second,
		MaxBytes:     cfg.Ingest.MaxUploadSize,
	})

	if source != "" {
		if title == "" {
			title = filepath.Base(source)
		}
		ingestOne(ctx, st, pipeline, source, title, course)
		return
	}

	// Bulk mode: walk the directory and ingest every PDF found.
	var found, failed int
	walkErr := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if strings.ToLower(filepath.Ext(path)) != ".pdf" {
				return nil
			}
			found++
			if !ingestOne(ctx, st, pipeline, path, filepath.Base(path), course) {
				failed++
			}
			return nil
		},
	})
	if walkErr != nil {
		log.Fatal(walkErr)
	}
	fmt.Printf("ingested %d of %d documents\n", found-failed, found)
	if failed > 0 {
		log.Fatalf("%d documents failed", failed)
	}
}

func ingestOne(ctx context.Context, st *store.Store, pipeline *ingest.Pipeline, source, title, course string) bool {
	m := models.Material{
		ID:        uuid.NewString(),
		Title:     title,
		CourseID:  course,
		SourceURL: source,
		Status:    models.StatusPending,
	}
	if err := st.CreateMaterial(ctx, m); err != nil {
		log.Printf("register %s: %v", source, err)
		return false
	}

	res := pipeline.Ingest(ctx, m.ID)
	if res.Status == models.StatusFailed {
		log.Printf("ingest %s: %s", source, res.Error)
		return false
	}
	log.Printf("ingested %s: %d chunks, %d pages", source, res.ChunkCount, res.PageCount)
	return true
}

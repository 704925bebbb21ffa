package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/openclass/coursepilot/internal/ai"
	"github.com/openclass/coursepilot/internal/answer"
	"github.com/openclass/coursepilot/internal/config"
	"github.com/openclass/coursepilot/internal/ingest"
	"github.com/openclass/coursepilot/internal/store"
	"github.com/openclass/coursepilot/pkg/models"
)

type registerRequest struct {
	Title     string `json:"title"`
	CourseID  string `json:"course_id"`
	SourceURL string `json:"source_url"`
}

type askRequest struct {
	Question string            `json:"question"`
	CourseID string            `json:"course_id"`
	History  []models.ChatTurn `json:"history"`
}

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("coursepilot-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Msg("starting coursepilot api")

	clientConfig, err := clientConfigFor(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	// Use the AI client's dimension for database migration
	dim := c.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
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

	svc := answer.NewService(c, st, answer.Config{
		MaxResults:    cfg.Query.MaxResults,
		Threshold:     cfg.Query.Threshold,
		ContextBudget: cfg.Query.ContextBudget,
		HistoryTurns:  cfg.Query.HistoryTurns,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	mux.HandleFunc("/materials", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			mats, err := st.ListMaterials(ctx, r.URL.Query().Get("course_id"))
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if mats == nil {
				mats = []models.Material{}
			}
			writeJSON(w, mats)

		case http.MethodPost:
			var req registerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(req.SourceURL) == "" {
				http.Error(w, "source_url is required", http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(req.Title) == "" {
				req.Title = req.SourceURL
			}

			m := models.Material{
				ID:        uuid.NewString(),
				Title:     req.Title,
				CourseID:  req.CourseID,
				SourceURL: req.SourceURL,
				Status:    models.StatusPending,
			}
			if err := st.CreateMaterial(r.Context(), m); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
			defer cancel()
			res := pipeline.Ingest(ctx, m.ID)

			status := http.StatusCreated
			if res.Status == models.StatusFailed {
				status = http.StatusUnprocessableEntity
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(res)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/materials/", func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/materials/")
		rel = strings.TrimSuffix(rel, "/")

		if id, ok := strings.CutSuffix(rel, "/reprocess"); ok {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
			defer cancel()
			res := pipeline.Ingest(ctx, id)
			writeJSON(w, res)
			return
		}

		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		m, err := st.GetMaterial(r.Context(), rel)
		if err != nil {
			if err == store.ErrNotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, m)
	})

	mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			http.Error(w, "question is required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		ans := svc.Ask(ctx, req.Question, req.History, store.Scope{CourseID: req.CourseID})
		writeJSON(w, ans)

		hlog.FromRequest(r).Info().Str("path", "/ask").Str("course", req.CourseID).
			Int("sources", len(ans.Sources)).Dur("dur", time.Since(start)).Msg("served")
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", 500)
	}
}

func clientConfigFor(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

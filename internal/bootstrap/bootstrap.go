package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/case-intake/internal/config"
	"github.com/kirillkom/case-intake/internal/core/ports"
	"github.com/kirillkom/case-intake/internal/core/usecase"
	"github.com/kirillkom/case-intake/internal/infrastructure/chunking"
	"github.com/kirillkom/case-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/case-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/case-intake/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/case-intake/internal/infrastructure/extractor/vision"
	"github.com/kirillkom/case-intake/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/case-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/case-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/case-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/case-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/case-intake/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/case-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/case-intake/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/case-intake/internal/infrastructure/vector/vertex"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Processes ports.ProcessRepository
	Storage   ports.ObjectStorage

	UploadUC  *usecase.UploadUseCase
	IngestUC  *usecase.IngestUseCase
	AnswerUC  *usecase.AnswerUseCase
	AnalyzeUC *usecase.AnalyzeUseCase
	ProcessUC *usecase.ProcessUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	a.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return err
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.onClose(queue.Close)

	embedder, generator, err := a.newLLM(ctx)
	if err != nil {
		return err
	}
	index, err := newVectorIndex(ctx, cfg)
	if err != nil {
		return err
	}
	textExtractor, err := newExtractor(ctx, cfg, storage)
	if err != nil {
		return err
	}
	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}

	processes := postgres.NewProcessRepository(db)
	chunks := postgres.NewChunkRepository(db)
	analyses := postgres.NewAnalysisRepository(db)

	a.Queue = queue
	a.Processes = processes
	a.Storage = storage

	a.UploadUC = usecase.NewUploadUseCase(processes, storage, queue, cfg.StorageBucket)
	a.IngestUC = usecase.NewIngestUseCase(processes, chunks, textExtractor, chunker, embedder, index, cfg.IngestConcurrency)
	a.AnswerUC = usecase.NewAnswerUseCase(embedder, index, chunks, generator, cfg.RAGTopK)
	a.AnalyzeUC = usecase.NewAnalyzeUseCase(storage, textExtractor, generator, analyses, cfg.AnalyzeConcurrency)
	a.ProcessUC = usecase.NewProcessUseCase(processes, chunks, analyses, index, storage)
	return nil
}

// newLLM builds the embedder and generator of the configured provider. Core
// adapters run single-attempt: failures surface to the caller without retries.
func (a *App) newLLM(ctx context.Context) (ports.Embedder, ports.Generator, error) {
	cfg := a.Config
	executor := resilience.NewExecutor(resilience.SingleAttempt())

	switch cfg.LLMProvider {
	case config.LLMProviderGemini:
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiGenModel, cfg.GeminiEmbedModel, executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		return gemini.NewEmbedder(client), gemini.NewGenerator(client), nil
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	}
}

func newVectorIndex(ctx context.Context, cfg config.Config) (ports.VectorIndex, error) {
	executor := resilience.NewExecutor(resilience.SingleAttempt())

	switch cfg.VectorProvider {
	case config.VectorProviderVertex:
		index, err := vertex.New(ctx, vertex.Config{
			ProjectID:       cfg.GCPProjectID,
			Region:          cfg.GCPRegion,
			IndexID:         cfg.VertexIndexID,
			IndexEndpointID: cfg.VertexIndexEndpointID,
			DeployedIndexID: cfg.VertexDeployedIndexID,

			PublicEndpointDomain: cfg.VertexPublicEndpointDomain,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init vertex index: %w", err)
		}
		return index, nil
	default:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor), nil
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageProvider {
	case config.StorageProviderGCS:
		storage, err := gcs.New(ctx, cfg.StorageBucket, resilience.NewExecutor(resilience.SingleAttempt()))
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return storage, nil
	default:
		storage, err := localfs.New(cfg.StoragePath, cfg.StorageBucket)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	}
}

func newExtractor(ctx context.Context, cfg config.Config, storage ports.ObjectStorage) (*extractor.Extractor, error) {
	layers := []extractor.TextLayer{pdftext.NewExtractor(), plaintext.NewExtractor()}
	if cfg.OCRProvider != config.OCRProviderVision {
		return extractor.New(storage, nil, layers...), nil
	}

	ocr, err := vision.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init vision ocr: %w", err)
	}
	return extractor.New(storage, ocr, layers...), nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

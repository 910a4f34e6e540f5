package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/infrastructure/resilience"
)

// maxBatchSize is the BatchEmbedContents request limit.
const maxBatchSize = 100

type Client struct {
	client     *genai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(ctx context.Context, apiKey, genModel, embedModel string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:     client,
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, maxBatchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		return e.embedBatch(ctx, genai.TaskTypeRetrievalDocument, batch)
	})
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, genai.TaskTypeRetrievalQuery, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, taskType genai.TaskType, texts []string) ([][]float32, error) {
	model := e.client.client.EmbeddingModel(e.client.embedModel)
	model.TaskType = taskType

	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	var vectors [][]float32
	err := e.client.executor.Execute(ctx, "gemini.embed", func(callCtx context.Context) error {
		res, err := model.BatchEmbedContents(callCtx, batch)
		if err != nil {
			return fmt.Errorf("gemini batch embed: %w", err)
		}
		vectors = make([][]float32, 0, len(res.Embeddings))
		for _, emb := range res.Embeddings {
			if emb == nil {
				vectors = append(vectors, nil)
				continue
			}
			vectors = append(vectors, emb.Values)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedInBatches calls fn for consecutive slices of at most size texts and
// concatenates the results in input order.
func embedInBatches(ctx context.Context, texts []string, size int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end-1, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	model := g.client.client.GenerativeModel(g.client.genModel)
	model.SetTemperature(req.Temperature)
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	session := model.StartChat()
	session.History = historyContents(req.History)

	var text string
	err := g.client.executor.Execute(ctx, "gemini.generate", func(callCtx context.Context) error {
		resp, err := session.SendMessage(callCtx, genai.Text(req.Prompt))
		if err != nil {
			var blocked *genai.BlockedError
			if errors.As(err, &blocked) {
				return domain.WrapError(domain.ErrGenerationFailed, "gemini response blocked", err)
			}
			return fmt.Errorf("gemini generate: %w", err)
		}
		text = responseText(resp)
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", err
	}
	return text, nil
}

func historyContents(history []domain.ChatTurn) []*genai.Content {
	if len(history) == 0 {
		return nil
	}
	out := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == domain.RoleModel {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Content)}})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

package vertex

import (
	"context"
	"fmt"
	"strings"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"

	"github.com/kirillkom/case-intake/internal/core/domain"
	"github.com/kirillkom/case-intake/internal/infrastructure/resilience"
)

// processNamespace is the restrict namespace that partitions datapoints by process.
const processNamespace = "process_id"

type Config struct {
	ProjectID       string
	Region          string
	IndexID         string
	IndexEndpointID string
	DeployedIndexID string

	// PublicEndpointDomain is the public domain of the index endpoint that
	// serves findNeighbors, e.g. 123.europe-west1-456.vdb.vertexai.goog.
	PublicEndpointDomain string
}

// indexBaseURL is the regional API host for index mutations.
func (c Config) indexBaseURL() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/", c.Region)
}

// queryBaseURL is the deployed endpoint's own host.
func (c Config) queryBaseURL() string {
	domain := strings.TrimRight(strings.TrimSpace(c.PublicEndpointDomain), "/")
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain + "/"
}

func (c Config) indexName() string {
	return fmt.Sprintf("projects/%s/locations/%s/indexes/%s", c.ProjectID, c.Region, c.IndexID)
}

func (c Config) endpointName() string {
	return fmt.Sprintf("projects/%s/locations/%s/indexEndpoints/%s", c.ProjectID, c.Region, c.IndexEndpointID)
}

// Index is a Vertex AI Vector Search index with streaming updates enabled.
// Mutations go to the regional API; queries go to the public index endpoint.
type Index struct {
	indexes  *aiplatform.Service
	queries  *aiplatform.Service
	cfg      Config
	executor *resilience.Executor
}

// New dials both services. Options in opts are applied after the derived
// endpoints and may override them.
func New(ctx context.Context, cfg Config, executor *resilience.Executor, opts ...option.ClientOption) (*Index, error) {
	indexes, err := aiplatform.NewService(ctx, withEndpoint(cfg.indexBaseURL(), opts)...)
	if err != nil {
		return nil, fmt.Errorf("create aiplatform index service: %w", err)
	}
	queries, err := aiplatform.NewService(ctx, withEndpoint(cfg.queryBaseURL(), opts)...)
	if err != nil {
		return nil, fmt.Errorf("create aiplatform query service: %w", err)
	}
	return &Index{indexes: indexes, queries: queries, cfg: cfg, executor: executor}, nil
}

func withEndpoint(endpoint string, opts []option.ClientOption) []option.ClientOption {
	return append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)
}

func (i *Index) Upsert(ctx context.Context, processID string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	datapoints := make([]*aiplatform.GoogleCloudAiplatformV1IndexDatapoint, 0, len(points))
	for _, p := range points {
		datapoints = append(datapoints, &aiplatform.GoogleCloudAiplatformV1IndexDatapoint{
			DatapointId:   p.ID,
			FeatureVector: toFloat64(p.Vector),
			Restricts: []*aiplatform.GoogleCloudAiplatformV1IndexDatapointRestriction{
				{Namespace: processNamespace, AllowList: []string{processID}},
			},
		})
	}

	return i.executor.Execute(ctx, "vertex.upsert", func(callCtx context.Context) error {
		_, err := i.indexes.Projects.Locations.Indexes.UpsertDatapoints(i.cfg.indexName(),
			&aiplatform.GoogleCloudAiplatformV1UpsertDatapointsRequest{Datapoints: datapoints},
		).Context(callCtx).Do()
		if err != nil {
			return fmt.Errorf("vertex upsert datapoints: %w", err)
		}
		return nil
	}, classify)
}

// Query returns at most limit neighbors restricted to the process, nearest first.
func (i *Index) Query(ctx context.Context, processID string, vector []float32, limit int) ([]domain.Neighbor, error) {
	req := &aiplatform.GoogleCloudAiplatformV1FindNeighborsRequest{
		DeployedIndexId: i.cfg.DeployedIndexID,
		Queries: []*aiplatform.GoogleCloudAiplatformV1FindNeighborsRequestQuery{{
			NeighborCount: int64(limit),
			Datapoint: &aiplatform.GoogleCloudAiplatformV1IndexDatapoint{
				FeatureVector: toFloat64(vector),
				Restricts: []*aiplatform.GoogleCloudAiplatformV1IndexDatapointRestriction{
					{Namespace: processNamespace, AllowList: []string{processID}},
				},
			},
		}},
	}

	var resp *aiplatform.GoogleCloudAiplatformV1FindNeighborsResponse
	err := i.executor.Execute(ctx, "vertex.find_neighbors", func(callCtx context.Context) error {
		var err error
		resp, err = i.queries.Projects.Locations.IndexEndpoints.FindNeighbors(i.cfg.endpointName(), req).Context(callCtx).Do()
		if err != nil {
			return fmt.Errorf("vertex find neighbors: %w", err)
		}
		return nil
	}, classify)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.NearestNeighbors) == 0 {
		return nil, nil
	}
	out := make([]domain.Neighbor, 0, len(resp.NearestNeighbors[0].Neighbors))
	for _, n := range resp.NearestNeighbors[0].Neighbors {
		if n == nil || n.Datapoint == nil || n.Datapoint.DatapointId == "" {
			continue
		}
		out = append(out, domain.Neighbor{ID: n.Datapoint.DatapointId, Score: n.Distance})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.executor.Execute(ctx, "vertex.remove", func(callCtx context.Context) error {
		_, err := i.indexes.Projects.Locations.Indexes.RemoveDatapoints(i.cfg.indexName(),
			&aiplatform.GoogleCloudAiplatformV1RemoveDatapointsRequest{DatapointIds: ids},
		).Context(callCtx).Do()
		if err != nil {
			return fmt.Errorf("vertex remove datapoints: %w", err)
		}
		return nil
	}, classify)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/case-intake/internal/core/domain"
)

func TestEmbedInBatchesPreservesOrder(t *testing.T) {
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d", i)
	}

	var sizes []int
	vectors, err := embedInBatches(context.Background(), texts, maxBatchSize, func(_ context.Context, batch []string) ([][]float32, error) {
		sizes = append(sizes, len(batch))
		out := make([][]float32, len(batch))
		for i, text := range batch {
			var n int
			_, _ = fmt.Sscanf(text, "chunk-%d", &n)
			out[i] = []float32{float32(n)}
		}
		return out, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{100, 100, 50}, sizes)
	require.Len(t, vectors, 250)
	for i, v := range vectors {
		require.Equal(t, float32(i), v[0])
	}
}

func TestEmbedInBatchesStopsOnError(t *testing.T) {
	calls := 0
	_, err := embedInBatches(context.Background(), make([]string, 150), maxBatchSize, func(context.Context, []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("quota exceeded")
		}
		return make([][]float32, 100), nil
	})
	require.ErrorContains(t, err, "quota exceeded")
	require.Equal(t, 2, calls)
}

func TestEmbedInBatchesEmptyInput(t *testing.T) {
	vectors, err := embedInBatches(context.Background(), nil, maxBatchSize, func(context.Context, []string) ([][]float32, error) {
		t.Fatal("must not call the model for empty input")
		return nil, nil
	})
	require.NoError(t, err)
	require.Empty(t, vectors)
}

func TestHistoryContentsMapsRoles(t *testing.T) {
	contents := historyContents([]domain.ChatTurn{
		{Role: domain.RoleUser, Content: "who is the claimant?"},
		{Role: domain.RoleModel, Content: "ACME Ltd."},
	})
	require.Len(t, contents, 2)
	require.Equal(t, "user", contents[0].Role)
	require.Equal(t, "model", contents[1].Role)
	require.Equal(t, genai.Text("ACME Ltd."), contents[1].Parts[0])
}

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("first "), genai.Text("second")}},
	}}}
	require.Equal(t, "first second", responseText(resp))
	require.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/burrow/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves the two OpenAI endpoints used by the provider.
func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   "test-generator",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				}},
			})
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Input []string `json:"input"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			data := make([]map[string]any, len(req.Input))
			for i, text := range req.Input {
				data[i] = map[string]any{
					"object":    "embedding",
					"index":     i,
					"embedding": []float32{float32(len(text)), 1},
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"model":  "test-embedder",
				"data":   data,
				"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(host),
		ai.WithEmbeddingModel("test-embedder"),
		ai.WithGeneratorModel("test-generator"),
	)
}

func TestNewProvider(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewProvider(&ai.Config{})
		assert.Error(t, err)
	})

	t.Run("valid config", func(t *testing.T) {
		provider, err := NewProvider(testConfig("http://localhost:11434"))
		require.NoError(t, err)
		defer provider.Close()

		assert.NotNil(t, provider.Embedder())
		assert.NotNil(t, provider.TextGenerator())
	})
}

func TestGenerator_GenerateText(t *testing.T) {
	srv := fakeOpenAI(t, "  What causes the crash?\nHow is it reproduced?  ")
	defer srv.Close()

	gen, err := NewGenerator(testConfig(srv.URL))
	require.NoError(t, err)

	text, err := gen.GenerateText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "What causes the crash?\nHow is it reproduced?", text)
}

func TestEmbedder(t *testing.T) {
	srv := fakeOpenAI(t, "")
	defer srv.Close()

	embedder, err := NewEmbedder(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])

	vector, err := embedder.EmbedText(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vector)
}

package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleEmbedder generates query and document embeddings with the Gemini
// embedding API.
type GoogleEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGoogleEmbedder creates an embedder for the given model and output
// dimension. The dimension must match the pgvector column the embeddings
// are stored in.
func NewGoogleEmbedder(ctx context.Context, model, apiKey string, dimension int) (*GoogleEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	if dimension <= 0 {
		dimension = 1536
	}

	return &GoogleEmbedder{
		client:    client,
		model:     model,
		dimension: int32(dimension),
	}, nil
}

// EmbedText generates an embedding for a single text.
func (e *GoogleEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	dim := e.dimension
	res, err := e.client.Models.EmbedContent(ctx, e.model, []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: text},
			},
		},
	}, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return res.Embeddings[0].Values, nil
}

// EmbedTexts generates embeddings for multiple texts. Calls are sequential;
// the indexer batches at a higher level.
func (e *GoogleEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, vec)
	}
	return result, nil
}

// Package gemini adapts the Gemini API to the narrator backend interface.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/louisbranch/loreweaver/internal/narrator"
)

// Client generates narrator replies through the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// New dials the Gemini API. The model name selects which generative model
// answers every conversation sent through this client.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Generate sends the full conversation and returns the model's text reply.
func (c *Client) Generate(ctx context.Context, history narrator.History) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, genai.NewContentFromText(turn.Content, genai.Role(turn.Role)))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

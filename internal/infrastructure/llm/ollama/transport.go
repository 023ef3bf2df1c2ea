package ollama

import (
	"context"

	"github.com/kirillkom/semester-scan/internal/infrastructure/llm"
)

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	return llm.PostJSON(ctx, c.httpClient, provider, operation, c.baseURL+path, nil, payload, out)
}

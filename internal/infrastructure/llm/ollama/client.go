package ollama

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"net/http"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llava"

	provider = "ollama"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ClassifyContent asks a local model. No credential is needed.
func (c *Client) ClassifyContent(ctx context.Context, req domain.RemoteRequest) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"system": llm.SystemPrompt,
		"prompt": llm.BuildPrompt(req),
		"stream": false,
		"format": "json",
	}
	if req.Image != nil {
		reqBody["images"] = []string{base64.StdEncoding.EncodeToString(req.Image.Data)}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", llm.WrapProviderError(provider, err)
	}
	return strings.TrimSpace(response.Response), nil
}

package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/infrastructure/llm"
)

const (
	DefaultModel = "gpt-4o-mini"
	maxTokens    = 512

	provider = "openai"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	client *goopenai.Client
	model  string
	hasKey bool
}

func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	conf := goopenai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		client: goopenai.NewClientWithConfig(conf),
		model:  cfg.Model,
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (c *Client) ClassifyContent(ctx context.Context, req domain.RemoteRequest) (string, error) {
	if !c.hasKey {
		return "", llm.MissingKey(provider)
	}

	user := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	prompt := llm.BuildPrompt(req)
	if req.Image != nil {
		user.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: prompt},
			{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
				URL:    "data:" + req.Image.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image.Data),
				Detail: goopenai.ImageURLDetailLow,
			}},
		}
	} else {
		user.Content = prompt
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			user,
		},
	}
	// Reasoning models reject max_tokens.
	if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") || strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
		chatReq.MaxCompletionTokens = maxTokens
	} else {
		chatReq.MaxTokens = maxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", llm.WrapProviderError(provider, statusError(err))
	}
	if len(resp.Choices) == 0 {
		return "", llm.WrapProviderError(provider, errors.New("no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// statusError exposes the HTTP status carried by go-openai errors.
func statusError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &llm.HTTPStatusError{
			Provider:   provider,
			Operation:  "chat completion",
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
			Body:       apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &llm.HTTPStatusError{
			Provider:   provider,
			Operation:  "chat completion",
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
			Body:       string(reqErr.Body),
		}
	}
	return err
}

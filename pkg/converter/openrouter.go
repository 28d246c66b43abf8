package converter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"notex/pkg/config"
	errs "notex/pkg/errors"
	"notex/pkg/logger"
)

// OpenRouter converts page images via an OpenRouter-compatible
// chat-completions endpoint
type OpenRouter struct {
	endpoint   string
	apiKey     string
	model      string
	prompt     string
	httpClient *http.Client
	logger     logger.Logger
}

// message represents a chat message
type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart is a part of message content (text or image)
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// apiRequest is the chat-completions request body
type apiRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// apiResponse is the chat-completions response body
type apiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// NewOpenRouter creates a converter backed by a hosted vision model
func NewOpenRouter(cfg *config.ConverterConfig, apiKey string, log logger.Logger) *OpenRouter {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if log == nil {
		log = logger.GetLogger()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OpenRouter{
		endpoint:   cfg.Endpoint,
		apiKey:     apiKey,
		model:      cfg.Model,
		prompt:     prompt,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Name identifies the converter implementation
func (c *OpenRouter) Name() string {
	return "openrouter"
}

// Convert sends the page image to the model and returns the LaTeX it
// produced. HTTP failures are classified into conversion error classes so
// the retry executor can decide what to do.
func (c *OpenRouter) Convert(ctx context.Context, image []byte) (string, error) {
	body, err := json.Marshal(c.buildRequest(image))
	if err != nil {
		return "", errs.New(errs.ErrorTypeInvalidInput, fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.New(errs.ErrorTypeInvalidInput, fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.New(errs.ErrorTypeTransient, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		class := errs.ClassifyStatusCode(resp.StatusCode)
		return "", errs.NewWithCode(class, resp.StatusCode,
			fmt.Sprintf("endpoint returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errs.New(errs.ErrorTypeTransient, fmt.Sprintf("failed to decode response: %v", err))
	}
	if parsed.Error != nil {
		class := errs.ClassifyStatusCode(parsed.Error.Code)
		return "", errs.NewWithCode(class, parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errs.New(errs.ErrorTypeTransient, "response contained no choices")
	}

	latex := CleanResponse(parsed.Choices[0].Message.Content)
	if latex == "" {
		return "", errs.New(errs.ErrorTypeTransient, "model returned empty output")
	}

	c.logger.DebugWithFields("page converted", map[string]interface{}{
		"model": c.model,
		"bytes": len(latex),
	})
	return latex, nil
}

// buildRequest constructs the chat-completions request with the image as a
// base64 data URL
func (c *OpenRouter) buildRequest(image []byte) *apiRequest {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	return &apiRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: c.prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		Stream: false,
	}
}

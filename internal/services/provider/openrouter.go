package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"brandkit/internal/config"
)

const maxImageBytes = 32 << 20

// OpenRouter generates images through chat completions with the image
// modality.
type OpenRouter struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewOpenRouter constructs the OpenRouter backend.
func NewOpenRouter(cfg config.Provider, opts ...Option) *OpenRouter {
	o := buildOptions(cfg, opts)
	return &OpenRouter{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.BaseURL,
		model:      cfg.Model,
		httpClient: o.httpClient,
	}
}

// Name implements Provider.
func (p *OpenRouter) Name() string { return "openrouter" }

type imageChatRequest struct {
	Model       string         `json:"model"`
	Messages    []imageMessage `json:"messages"`
	Modalities  []string       `json:"modalities"`
	Stream      bool           `json:"stream"`
	ImageConfig *imageConfig   `json:"image_config,omitempty"`
}

type imageMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type imageChatResponse struct {
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements Provider.
func (p *OpenRouter) Generate(ctx context.Context, req Request) (Image, error) {
	payload := imageChatRequest{
		Model:      p.model,
		Messages:   []imageMessage{{Role: "user", Content: req.Prompt}},
		Modalities: []string{"image", "text"},
	}
	if ratio := openRouterAspect(req.AspectRatio); ratio != "" {
		payload.ImageConfig = &imageConfig{AspectRatio: ratio}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Image{}, fmt.Errorf("openrouter: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Image{}, fmt.Errorf("openrouter: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Image{}, providerError(ctx, p.Name(), "generate", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes*2))
	if err != nil {
		return Image{}, providerError(ctx, p.Name(), "generate", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Image{}, providerError(ctx, p.Name(), "generate", &HTTPStatusError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Code:       errorCode(body),
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		})
	}

	var parsed imageChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Image{}, providerError(ctx, p.Name(), "decode", fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return Image{}, providerError(ctx, p.Name(), "generate", errors.New(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.Images) == 0 {
		return Image{}, providerError(ctx, p.Name(), "decode", fmt.Errorf("no image returned: %s", truncate(string(body), 300)))
	}
	imageURL := strings.TrimSpace(parsed.Choices[0].Message.Images[0].ImageURL.URL)
	if strings.HasPrefix(imageURL, "data:") {
		data, contentType, err := decodeDataURL(imageURL)
		if err != nil {
			return Image{}, providerError(ctx, p.Name(), "decode", err)
		}
		return Image{Data: data, ContentType: contentType, Model: p.model}, nil
	}
	data, contentType, err := p.download(ctx, imageURL)
	if err != nil {
		return Image{}, providerError(ctx, p.Name(), "download", err)
	}
	return Image{Data: data, ContentType: contentType, Model: p.model}, nil
}

func (p *OpenRouter) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	if !strings.HasPrefix(imageURL, "https://") && !strings.HasPrefix(imageURL, "http://") {
		return nil, "", fmt.Errorf("unsupported image url %q", truncate(imageURL, 80))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", &HTTPStatusError{Provider: p.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	const marker = ";base64,"
	idx := strings.Index(dataURL, marker)
	if idx < 0 {
		return nil, "", errors.New("data url missing base64 marker")
	}
	contentType := strings.TrimPrefix(dataURL[:idx], "data:")
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(marker):])
	if err != nil {
		return nil, "", fmt.Errorf("decode image base64: %w", err)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return raw, contentType, nil
}

func errorCode(body []byte) string {
	var envelope struct {
		Error struct {
			Code any    `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if code, ok := envelope.Error.Code.(string); ok && code != "" {
		return code
	}
	return envelope.Error.Type
}

// OpenRouter accepts a fixed set of ratios; platform ratios outside it are
// mapped to the nearest supported one.
func openRouterAspect(ratio string) string {
	switch ratio {
	case "1:1", "9:16", "16:9", "4:5", "3:4", "4:3", "2:3", "3:2", "21:9":
		return ratio
	case "1.91:1":
		return "16:9"
	}
	return ""
}

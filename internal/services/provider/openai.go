package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"brandkit/internal/config"
)

// OpenAI generates images with the Images API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI constructs the OpenAI backend. SDK retries are disabled so the
// orchestrator's retry budget is the only one.
func NewOpenAI(cfg config.Provider, opts ...Option) *OpenAI {
	o := buildOptions(cfg, opts)
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(o.httpClient),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(reqOpts...), model: cfg.Model}
}

// Name implements Provider.
func (p *OpenAI) Name() string { return "openai" }

// Generate implements Provider.
func (p *OpenAI) Generate(ctx context.Context, req Request) (Image, error) {
	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(p.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(openAISize(p.model, req.Width, req.Height)),
	}
	if strings.HasPrefix(p.model, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			statusErr := &HTTPStatusError{
				Provider:   p.Name(),
				StatusCode: apiErr.StatusCode,
				Code:       apiErr.Code,
				Body:       apiErr.Message,
			}
			if apiErr.Response != nil {
				statusErr.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return Image{}, providerError(ctx, p.Name(), "generate", statusErr)
		}
		return Image{}, providerError(ctx, p.Name(), "generate", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, providerError(ctx, p.Name(), "decode", errors.New("no image returned"))
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Image{}, providerError(ctx, p.Name(), "decode", fmt.Errorf("decode image base64: %w", err))
	}
	return Image{Data: data, ContentType: "image/png", Model: p.model}, nil
}

// openAISize picks the supported canvas closest to the target orientation.
func openAISize(model string, width, height int) string {
	square, portrait, landscape := "1024x1024", "1024x1536", "1536x1024"
	if model == "dall-e-3" {
		portrait, landscape = "1024x1792", "1792x1024"
	}
	switch {
	case width <= 0 || height <= 0:
		return square
	case float64(height) > float64(width)*1.2:
		return portrait
	case float64(width) > float64(height)*1.2:
		return landscape
	default:
		return square
	}
}

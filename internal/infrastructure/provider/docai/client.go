// Package docai holds the two interchangeable AI extraction back ends:
// an OCR-then-parse client and a single-call vision-and-parse client.
// Both talk to the document-AI gateway over HTTP and share the same
// transport, resilience and output-parsing code.
package docai

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mklenk/belegwerk/internal/core/domain"
	"github.com/mklenk/belegwerk/internal/infrastructure/resilience"
)

// Client is the shared HTTP backend for both provider implementations.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

type Options struct {
	// Timeout applies per HTTP call; provider calls are the only blocking
	// operations inside an extraction run.
	Timeout time.Duration
	// RequestsPerSecond throttles calls to the gateway. Zero disables
	// throttling.
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

func NewClient(baseURL, apiKey, model string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
		limiter:    limiter,
	}
}

func (c *Client) call(ctx context.Context, operation, path string, payload any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	fn := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, fn, classifyProviderError)
	} else {
		err = fn(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

// OCRParseClient first runs per-page text detection, then sends the
// concatenated text to a text-only model with the extraction prompt.
type OCRParseClient struct {
	client *Client
}

func NewOCRParseClient(client *Client) *OCRParseClient {
	return &OCRParseClient{client: client}
}

func (p *OCRParseClient) Name() string { return "ocr-parse" }

func (p *OCRParseClient) Classify(ctx context.Context, data []byte, mimeType string) (domain.ClassifyResult, error) {
	text, _, err := p.runOCR(ctx, data, mimeType)
	if err != nil {
		return domain.ClassifyResult{}, err
	}

	completion, err := p.generate(ctx, buildClassifyPrompt(text))
	if err != nil {
		return domain.ClassifyResult{}, err
	}
	result, err := parseClassifyEnvelope(completion.Content)
	if err != nil {
		return domain.ClassifyResult{}, err
	}
	result.Usage = completion.Usage
	result.Usage.Model = p.client.model
	return result, nil
}

func (p *OCRParseClient) Extract(ctx context.Context, data []byte, mimeType string) (domain.ExtractionResult, error) {
	text, blocks, err := p.runOCR(ctx, data, mimeType)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrEmptyDocument, "ocr", errEmptyOCRText)
	}

	completion, err := p.generate(ctx, buildExtractPrompt(text))
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	fields, boxes, err := parseExtractionEnvelope(completion.Content)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	usage := completion.Usage
	usage.Model = p.client.model
	return domain.ExtractionResult{
		Text:         text,
		LayoutBlocks: blocks,
		Fields:       fields,
		FieldBoxes:   boxes,
		Usage:        usage,
	}, nil
}

// runOCR converts PDF pages to raster images gateway-side and returns the
// concatenated page text plus normalized text blocks.
func (p *OCRParseClient) runOCR(ctx context.Context, data []byte, mimeType string) (string, []domain.LayoutBlock, error) {
	request := ocrRequest{
		Document: base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}
	var response ocrResponse
	if err := p.client.call(ctx, "docai.ocr", "/v1/ocr", request, &response); err != nil {
		return "", nil, err
	}

	var text strings.Builder
	var blocks []domain.LayoutBlock
	for _, page := range response.Pages {
		for _, block := range page.Blocks {
			text.WriteString(block.Text)
			text.WriteString("\n")
			blocks = append(blocks, domain.LayoutBlock{
				Page: page.Index,
				Text: block.Text,
				X:    block.X,
				Y:    block.Y,
				W:    block.W,
				H:    block.H,
			})
		}
	}
	return text.String(), blocks, nil
}

func (p *OCRParseClient) generate(ctx context.Context, prompt string) (completionResponse, error) {
	request := completionRequest{
		Model:  p.client.model,
		Prompt: prompt,
		Format: "json",
	}
	var response completionResponse
	if err := p.client.call(ctx, "docai.parse", "/v1/completions", request, &response); err != nil {
		return completionResponse{}, err
	}
	return response, nil
}

// VisionParseClient sends the raw document bytes to a vision-capable
// model in a single call. No separate OCR pass; layout comes back only if
// the model supplies field boxes itself.
type VisionParseClient struct {
	client *Client
}

func NewVisionParseClient(client *Client) *VisionParseClient {
	return &VisionParseClient{client: client}
}

func (p *VisionParseClient) Name() string { return "vision-parse" }

func (p *VisionParseClient) Classify(ctx context.Context, data []byte, mimeType string) (domain.ClassifyResult, error) {
	completion, err := p.generate(ctx, data, mimeType, buildVisionClassifyPrompt())
	if err != nil {
		return domain.ClassifyResult{}, err
	}
	result, err := parseClassifyEnvelope(completion.Content)
	if err != nil {
		return domain.ClassifyResult{}, err
	}
	result.Usage = completion.Usage
	result.Usage.Model = p.client.model
	return result, nil
}

func (p *VisionParseClient) Extract(ctx context.Context, data []byte, mimeType string) (domain.ExtractionResult, error) {
	completion, err := p.generate(ctx, data, mimeType, buildVisionExtractPrompt())
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	fields, boxes, err := parseExtractionEnvelope(completion.Content)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	usage := completion.Usage
	usage.Model = p.client.model
	return domain.ExtractionResult{
		Text:       completion.Text,
		Fields:     fields,
		FieldBoxes: boxes,
		Usage:      usage,
	}, nil
}

func (p *VisionParseClient) generate(ctx context.Context, data []byte, mimeType, prompt string) (visionResponse, error) {
	request := visionRequest{
		Model:    p.client.model,
		Document: base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
		Prompt:   prompt,
		Format:   "json",
	}
	var response visionResponse
	if err := p.client.call(ctx, "docai.vision", "/v1/vision", request, &response); err != nil {
		return visionResponse{}, err
	}
	return response, nil
}

type ocrRequest struct {
	Document string `json:"document"`
	MimeType string `json:"mime_type"`
}

type ocrBlock struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

type ocrPage struct {
	Index  int        `json:"index"`
	Blocks []ocrBlock `json:"blocks"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format,omitempty"`
}

type completionResponse struct {
	Content string            `json:"content"`
	Usage   domain.TokenUsage `json:"usage"`
}

type visionRequest struct {
	Model    string `json:"model"`
	Document string `json:"document"`
	MimeType string `json:"mime_type"`
	Prompt   string `json:"prompt"`
	Format   string `json:"format,omitempty"`
}

type visionResponse struct {
	Content string            `json:"content"`
	Text    string            `json:"text,omitempty"`
	Usage   domain.TokenUsage `json:"usage"`
}

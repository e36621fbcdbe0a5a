package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/types"
)

// ClientConfig 提取客户端配置
type ClientConfig struct {
	// Model 发起补全时使用的模型
	Model string
	// Temperature 采样温度，提取任务通常保持 0
	Temperature float64
	// Timeout 单次补全超时
	Timeout time.Duration
	// HTMLBudget 提示词中 HTML 内容的最大字节数，默认 10000
	HTMLBudget int
	// ContextSize 大于 0 时启用提示词长度预警
	ContextSize int
}

// Options carries per-call extraction options.
type Options struct {
	// Instructions is extra caller guidance appended to the prompt.
	Instructions string
	// Images are attached to the user message for vision extraction.
	Images []llm.ImageContent
}

// Result is one successful extraction.
type Result struct {
	// Data is the extracted object keyed by schema field name.
	Data map[string]any
	// Model is the rendered schema name, e.g. "Product".
	Model string
	// URL identifies the page the data came from.
	URL string
	// MissingFields lists required fields the model left out.
	MissingFields []string
	// Usage reports endpoint token accounting when available.
	Usage llm.ChatUsage
}

// Client drives schema extraction against one chat endpoint.
type Client struct {
	provider llm.Provider
	cfg      ClientConfig
	logger   *zap.Logger
}

// NewClient creates an extraction client. A nil logger is replaced with
// a no-op logger.
func NewClient(provider llm.Provider, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.HTMLBudget <= 0 {
		cfg.HTMLBudget = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, cfg: cfg, logger: logger}
}

// Extract pulls a variant's fields out of the page. Required fields the
// model omits are reported in Result.MissingFields, not as an error.
func (c *Client) Extract(ctx context.Context, page Page, v Variant, opts Options) (*Result, error) {
	prompt := BuildPrompt(page, v, opts.Instructions, c.cfg.HTMLBudget)
	return c.complete(ctx, v, prompt, opts.Images, page.URL)
}

// ExtractSearchResults reads search results off a results page using the
// screenshot (and optionally the page HTML) as context.
func (c *Client) ExtractSearchResults(ctx context.Context, query, homepage string, maxResults int, screenshotB64, html string) (*Result, error) {
	v := SearchResponseVariant()

	prompt := BuildSearchPrompt(query, homepage, maxResults)
	prompt += "\n\nI need to extract data according to this schema:\n" + v.SchemaInfo()
	if html != "" {
		prompt += "\nHTML Content:\n" + TruncateHTML(html, c.cfg.HTMLBudget)
	}

	var images []llm.ImageContent
	if screenshotB64 != "" {
		images = append(images, llm.ImageContent{Type: "base64", Data: screenshotB64, MediaType: "image/png"})
	}
	return c.complete(ctx, v, prompt, images, homepage)
}

func (c *Client) complete(ctx context.Context, v Variant, prompt string, images []llm.ImageContent, pageURL string) (*Result, error) {
	if c.cfg.ContextSize > 0 {
		if est := EstimateTokens(prompt); est > c.cfg.ContextSize {
			c.logger.Warn("prompt may exceed model context",
				zap.Int("estimated_tokens", est),
				zap.Int("context_size", c.cfg.ContextSize),
				zap.String("schema", v.Key))
		}
	}

	userMsg := llm.NewUserMessage(prompt)
	if len(images) > 0 {
		userMsg = userMsg.WithImages(images...)
	}

	req := &llm.ChatRequest{
		Model: c.cfg.Model,
		Messages: []llm.Message{
			llm.NewSystemMessage(buildSystemPrompt()),
			userMsg,
		},
		Temperature:    float32(c.cfg.Temperature),
		ResponseSchema: v.JSONSchema(),
		Timeout:        c.cfg.Timeout,
	}

	c.logger.Debug("extraction request",
		zap.String("schema", v.Key),
		zap.String("url", pageURL),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("images", len(images)))

	resp, err := c.provider.Completion(ctx, req)
	if err != nil {
		return nil, types.NewError(types.ErrExtractionFailed,
			fmt.Sprintf("extract %s from %s: %v", v.Key, pageURL, err)).WithCause(err)
	}

	raw := resp.FirstText()
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, types.NewError(types.ErrResponseParseFailed,
			fmt.Sprintf("parse model reply as JSON: %v (reply: %s)", err, excerpt(raw, 200))).WithCause(err)
	}

	missing := v.MissingFields(data)
	if len(missing) > 0 {
		c.logger.Warn("required fields missing from extraction",
			zap.String("schema", v.Key),
			zap.Strings("fields", missing))
	}

	return &Result{
		Data:          data,
		Model:         v.Name,
		URL:           pageURL,
		MissingFields: missing,
		Usage:         resp.Usage,
	}, nil
}

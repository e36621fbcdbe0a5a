// =============================================================================
// OpenAI-Compatible Provider Base
// =============================================================================
// Shared implementation for every OpenAI-compatible chat endpoint webglue
// talks to: a local llama.cpp server, an Ollama daemon, or a hosted vision
// proxy. Call sites only configure what differs (name, base URL, default
// model, headers).
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webglue/webglue/internal/tlsutil"
	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/llm/providers"
	"github.com/webglue/webglue/types"
)

// Config 描述一个 OpenAI 兼容端点
type Config struct {
	// ProviderName 端点标识，如 "ollama"、"llama-cpp"、"vision-proxy"
	ProviderName string
	// APIKey 可选的 Bearer 令牌；本地端点留空
	APIKey string
	// BaseURL 端点基础地址，如 "http://localhost:11434"
	BaseURL string
	// DefaultModel 请求未指定模型时使用的模型
	DefaultModel string
	// FallbackModel DefaultModel 也为空时的最终回退
	FallbackModel string
	// Timeout HTTP 客户端超时，默认 30s
	Timeout time.Duration
	// EndpointPath 聊天补全路径，默认 /v1/chat/completions
	EndpointPath string
	// ModelsEndpoint 模型列表路径，默认 /v1/models
	ModelsEndpoint string
	// BuildHeaders 自定义请求头构造；默认 Bearer 认证
	BuildHeaders func(apiKey string) map[string]string
}

// Provider 通用 OpenAI 兼容 Provider
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New 创建 OpenAI 兼容 Provider，填充缺省配置
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.BuildHeaders == nil {
		cfg.BuildHeaders = providers.BearerTokenHeaders
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(cfg.Timeout),
		Logger: logger,
	}
}

// Name 返回配置的端点标识
func (p *Provider) Name() string {
	return p.Cfg.ProviderName
}

func (p *Provider) endpoint(path string) string {
	return strings.TrimRight(p.Cfg.BaseURL, "/") + path
}

func (p *Provider) buildHeaders() map[string]string {
	return p.Cfg.BuildHeaders(p.Cfg.APIKey)
}

// Completion 发起同步聊天请求
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := providers.ChooseModel(req.Model, p.Cfg.DefaultModel, p.Cfg.FallbackModel)
	oaReq := &providers.OpenAICompatRequest{
		Model:       model,
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	// 结构化提取：要求端点启用 JSON 输出模式，schema 由提示词传达
	if len(req.ResponseSchema) > 0 {
		oaReq.ResponseFormat = &providers.OpenAICompatResponseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(oaReq)
	if err != nil {
		return nil, &types.Error{Code: types.ErrInvalidRequest, Message: err.Error(), Provider: p.Name()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.Cfg.EndpointPath), bytes.NewReader(body))
	if err != nil {
		return nil, &types.Error{Code: types.ErrInvalidRequest, Message: err.Error(), Provider: p.Name()}
	}
	for k, v := range p.buildHeaders() {
		httpReq.Header.Set(k, v)
	}

	p.Logger.Debug("completion request",
		zap.String("provider", p.Name()),
		zap.String("model", model),
		zap.Int("messages", len(req.Messages)))

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &types.Error{Code: types.ErrTimeout, Message: err.Error(), Retryable: true, Provider: p.Name()}
		}
		return nil, &types.Error{Code: types.ErrUpstreamError, Message: err.Error(), Retryable: true, Provider: p.Name()}
	}
	defer providers.SafeCloseBody(resp)

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}

	var oaResp providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, &types.Error{Code: types.ErrResponseParseFailed, Message: err.Error(), Provider: p.Name()}
	}

	out := providers.ToLLMChatResponse(p.Name(), &oaResp)
	if oaResp.Created > 0 {
		out.CreatedAt = time.Unix(oaResp.Created, 0)
	}
	return out, nil
}

// ListModels 列出端点可用的模型
func (p *Provider) ListModels(ctx context.Context) ([]llm.Model, error) {
	return providers.ListModelsOpenAICompat(ctx, p.Client, p.Cfg.BaseURL, p.Cfg.ModelsEndpoint, p.Cfg.APIKey, p.Name())
}

// HealthCheck 通过模型列表端点测量端点可达性与延迟
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.ListModels(ctx)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

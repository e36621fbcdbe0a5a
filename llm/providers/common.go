package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error
// 这是所有 OpenAI 兼容端点共用的错误映射函数
func MapHTTPError(status int, msg string, provider string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return &types.Error{
			Code:       types.ErrUnauthorized,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusForbidden:
		return &types.Error{
			Code:       types.ErrForbidden,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusTooManyRequests:
		return &types.Error{
			Code:       types.ErrRateLimited,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case http.StatusBadRequest:
		// 部分端点用 400 表达配额耗尽，按消息内容区分
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "limit") {
			return &types.Error{
				Code:       types.ErrQuotaExceeded,
				Message:    msg,
				HTTPStatus: status,
				Provider:   provider,
			}
		}
		return &types.Error{
			Code:       types.ErrInvalidRequest,
			Message:    msg,
			HTTPStatus: status,
			Provider:   provider,
		}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	case 529: // overloaded
		return &types.Error{
			Code:       types.ErrModelOverloaded,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  true,
			Provider:   provider,
		}
	default:
		return &types.Error{
			Code:       types.ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  status >= 500,
			Provider:   provider,
		}
	}
}

// ReadErrorMessage 从 HTTP 响应体中提取错误消息
// 优先解析 OpenAI 风格的 {"error": {"message": ...}}，否则返回原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "request failed"
	}

	var errResp OpenAICompatErrorResp
	if json.Unmarshal(data, &errResp) == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// OpenAICompatMessage OpenAI 兼容消息格式。
// Content 为 string（纯文本）或 []OpenAICompatContentPart（多模态）。
type OpenAICompatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// OpenAICompatContentPart 多模态消息的内容分片
type OpenAICompatContentPart struct {
	Type     string                `json:"type"` // "text" or "image_url"
	Text     string                `json:"text,omitempty"`
	ImageURL *OpenAICompatImageURL `json:"image_url,omitempty"`
}

// OpenAICompatImageURL 图像分片的地址，支持 data URL
type OpenAICompatImageURL struct {
	URL string `json:"url"`
}

// OpenAICompatResponseFormat OpenAI 兼容的输出格式约束
type OpenAICompatResponseFormat struct {
	Type string `json:"type"` // "text" or "json_object"
}

// OpenAICompatRequest OpenAI 兼容请求格式
type OpenAICompatRequest struct {
	Model          string                      `json:"model"`
	Messages       []OpenAICompatMessage       `json:"messages"`
	MaxTokens      int                         `json:"max_tokens,omitempty"`
	Temperature    float32                     `json:"temperature,omitempty"`
	TopP           float32                     `json:"top_p,omitempty"`
	Stop           []string                    `json:"stop,omitempty"`
	Stream         bool                        `json:"stream,omitempty"`
	ResponseFormat *OpenAICompatResponseFormat `json:"response_format,omitempty"`
}

// OpenAICompatChoice OpenAI 兼容响应选项
type OpenAICompatChoice struct {
	Index        int                     `json:"index"`
	Message      OpenAICompatRespMessage `json:"message"`
	FinishReason string                  `json:"finish_reason"`
}

// OpenAICompatRespMessage 响应消息，Content 恒为纯文本
type OpenAICompatRespMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAICompatUsage OpenAI 兼容用量统计
type OpenAICompatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAICompatResponse OpenAI 兼容响应格式
type OpenAICompatResponse struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []OpenAICompatChoice `json:"choices"`
	Usage   OpenAICompatUsage    `json:"usage"`
}

// OpenAICompatErrorResp OpenAI 兼容错误响应
type OpenAICompatErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ConvertMessagesToOpenAI 将内部消息转换为 OpenAI 兼容格式。
// 带图像的消息转换为 content 分片数组，图像以 data URL 内联。
func ConvertMessagesToOpenAI(messages []llm.Message) []OpenAICompatMessage {
	out := make([]OpenAICompatMessage, 0, len(messages))
	for _, m := range messages {
		oa := OpenAICompatMessage{Role: string(m.Role)}
		if len(m.Images) == 0 {
			oa.Content = m.Content
			out = append(out, oa)
			continue
		}

		parts := make([]OpenAICompatContentPart, 0, len(m.Images)+1)
		if m.Content != "" {
			parts = append(parts, OpenAICompatContentPart{Type: "text", Text: m.Content})
		}
		for _, img := range m.Images {
			parts = append(parts, OpenAICompatContentPart{
				Type:     "image_url",
				ImageURL: &OpenAICompatImageURL{URL: ImageDataURL(img)},
			})
		}
		oa.Content = parts
		out = append(out, oa)
	}
	return out
}

// ImageDataURL 返回图像的 URL 形式：url 类型原样返回，
// base64 类型编码为 data URL（缺省媒体类型 image/png）。
func ImageDataURL(img llm.ImageContent) string {
	if img.Type == "url" {
		return img.URL
	}
	media := img.MediaType
	if media == "" {
		media = "image/png"
	}
	return "data:" + media + ";base64," + img.Data
}

// ToLLMChatResponse 将 OpenAI 兼容响应转换为内部 ChatResponse
func ToLLMChatResponse(provider string, oaResp *OpenAICompatResponse) *llm.ChatResponse {
	resp := &llm.ChatResponse{
		ID:       oaResp.ID,
		Provider: provider,
		Model:    oaResp.Model,
		Choices:  make([]llm.ChatChoice, 0, len(oaResp.Choices)),
		Usage: llm.ChatUsage{
			PromptTokens:     oaResp.Usage.PromptTokens,
			CompletionTokens: oaResp.Usage.CompletionTokens,
			TotalTokens:      oaResp.Usage.TotalTokens,
		},
	}

	for _, c := range oaResp.Choices {
		resp.Choices = append(resp.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message: llm.Message{
				Role:    llm.Role(c.Message.Role),
				Content: c.Message.Content,
			},
		})
	}
	return resp
}

// ChooseModel 按请求模型、默认模型、后备模型的顺序选择模型
func ChooseModel(reqModel, defaultModel, fallbackModel string) string {
	if reqModel != "" {
		return reqModel
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}

// BearerTokenHeaders 构造标准 Bearer 认证头；apiKey 为空时省略
func BearerTokenHeaders(apiKey string) map[string]string {
	h := map[string]string{
		"Content-Type": "application/json",
	}
	if apiKey != "" {
		h["Authorization"] = "Bearer " + apiKey
	}
	return h
}

// SafeCloseBody 安全关闭响应体，忽略错误
func SafeCloseBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// ListModelsOpenAICompat 调用 OpenAI 兼容的模型列表端点
func ListModelsOpenAICompat(ctx context.Context, client *http.Client, baseURL, modelsPath, apiKey, provider string) ([]llm.Model, error) {
	url := strings.TrimRight(baseURL, "/") + modelsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &types.Error{Code: types.ErrInvalidRequest, Message: err.Error(), Provider: provider}
	}
	for k, v := range BearerTokenHeaders(apiKey) {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &types.Error{Code: types.ErrUpstreamError, Message: err.Error(), Retryable: true, Provider: provider}
	}
	defer SafeCloseBody(resp)

	if resp.StatusCode >= 400 {
		return nil, MapHTTPError(resp.StatusCode, ReadErrorMessage(resp.Body), provider)
	}

	var listResp struct {
		Object string      `json:"object"`
		Data   []llm.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, &types.Error{Code: types.ErrResponseParseFailed, Message: err.Error(), Provider: provider}
	}
	return listResp.Data, nil
}

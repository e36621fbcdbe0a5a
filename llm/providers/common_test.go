package providers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/types"
)

// 测试模型选择优先级：请求 > 默认 > 兜底
func TestChooseModel_Priority(t *testing.T) {
	tests := []struct {
		name          string
		reqModel      string
		defaultModel  string
		fallbackModel string
		expectedModel string
	}{
		{
			name:          "request model takes priority",
			reqModel:      "request-model",
			defaultModel:  "default-model",
			fallbackModel: "fallback-model",
			expectedModel: "request-model",
		},
		{
			name:          "default model used when request is empty",
			reqModel:      "",
			defaultModel:  "default-model",
			fallbackModel: "fallback-model",
			expectedModel: "default-model",
		},
		{
			name:          "fallback used when request and default are empty",
			reqModel:      "",
			defaultModel:  "",
			fallbackModel: "fallback-model",
			expectedModel: "fallback-model",
		},
		{
			name:          "all empty yields empty",
			reqModel:      "",
			defaultModel:  "",
			fallbackModel: "",
			expectedModel: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ChooseModel(tt.reqModel, tt.defaultModel, tt.fallbackModel)
			assert.Equal(t, tt.expectedModel, result)
		})
	}
}

func TestMapHTTPError_Codes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		wantCode  types.ErrorCode
		wantRetry bool
	}{
		{"401 unauthorized", http.StatusUnauthorized, "invalid key", types.ErrUnauthorized, false},
		{"403 forbidden", http.StatusForbidden, "access denied", types.ErrForbidden, false},
		{"429 rate limited", http.StatusTooManyRequests, "slow down", types.ErrRateLimited, true},
		{"400 invalid request", http.StatusBadRequest, "bad payload", types.ErrInvalidRequest, false},
		{"400 quota keyword", http.StatusBadRequest, "monthly quota exceeded", types.ErrQuotaExceeded, false},
		{"400 credit keyword", http.StatusBadRequest, "insufficient credit balance", types.ErrQuotaExceeded, false},
		{"400 limit keyword", http.StatusBadRequest, "usage limit reached", types.ErrQuotaExceeded, false},
		{"502 bad gateway", http.StatusBadGateway, "upstream died", types.ErrUpstreamError, true},
		{"503 unavailable", http.StatusServiceUnavailable, "loading", types.ErrUpstreamError, true},
		{"504 gateway timeout", http.StatusGatewayTimeout, "slow upstream", types.ErrUpstreamError, true},
		{"529 overloaded", 529, "overloaded", types.ErrModelOverloaded, true},
		{"500 internal", http.StatusInternalServerError, "oops", types.ErrUpstreamError, true},
		{"418 teapot", http.StatusTeapot, "short and stout", types.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "test-provider")
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantRetry, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "test-provider", err.Provider)
			assert.Equal(t, tt.msg, err.Message)
		})
	}
}

// 属性：未特判的状态码，5xx 可重试、4xx 不可重试
func TestMapHTTPError_RetryableProperty(t *testing.T) {
	special := map[int]bool{
		http.StatusUnauthorized: true, http.StatusForbidden: true,
		http.StatusTooManyRequests: true, http.StatusBadRequest: true,
		http.StatusBadGateway: true, http.StatusServiceUnavailable: true,
		http.StatusGatewayTimeout: true, 529: true,
	}
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(400, 599).Draw(rt, "status")
		if special[status] {
			return
		}
		err := MapHTTPError(status, "some error", "p")
		if status >= 500 && !err.Retryable {
			rt.Fatalf("status %d should be retryable", status)
		}
		if status < 500 && err.Retryable {
			rt.Fatalf("status %d should not be retryable", status)
		}
	})
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "openai error with type",
			body: `{"error":{"message":"invalid key","type":"auth_error"}}`,
			want: "invalid key (type: auth_error)",
		},
		{
			name: "openai error without type",
			body: `{"error":{"message":"nope"}}`,
			want: "nope",
		},
		{
			name: "plain text fallback",
			body: "502 Bad Gateway",
			want: "502 Bad Gateway",
		},
		{
			name: "empty body",
			body: "",
			want: "request failed",
		},
		{
			name: "whitespace trimmed",
			body: "  not found\n",
			want: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReadErrorMessage(strings.NewReader(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertMessagesToOpenAI_PlainText(t *testing.T) {
	msgs := []llm.Message{
		llm.NewSystemMessage("be helpful"),
		llm.NewUserMessage("hi"),
	}
	out := ConvertMessagesToOpenAI(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "be helpful", out[0].Content)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "hi", out[1].Content)
}

func TestConvertMessagesToOpenAI_WithImages(t *testing.T) {
	msg := llm.NewUserMessage("what is on this page?").WithImages(
		llm.ImageContent{Type: "base64", Data: "Zm9v", MediaType: "image/jpeg"},
		llm.ImageContent{Type: "url", URL: "https://example.com/a.png"},
	)
	out := ConvertMessagesToOpenAI([]llm.Message{msg})
	require.Len(t, out, 1)

	parts, ok := out[0].Content.([]OpenAICompatContentPart)
	require.True(t, ok, "content should be parts when images are attached")
	require.Len(t, parts, 3)

	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "what is on this page?", parts[0].Text)

	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,Zm9v", parts[1].ImageURL.URL)

	assert.Equal(t, "image_url", parts[2].Type)
	assert.Equal(t, "https://example.com/a.png", parts[2].ImageURL.URL)
}

func TestConvertMessagesToOpenAI_ImageOnlyMessage(t *testing.T) {
	msg := llm.Message{Role: llm.RoleUser, Images: []llm.ImageContent{
		{Type: "base64", Data: "YmFy"},
	}}
	out := ConvertMessagesToOpenAI([]llm.Message{msg})
	require.Len(t, out, 1)

	parts, ok := out[0].Content.([]OpenAICompatContentPart)
	require.True(t, ok)
	// 无文本时不应产生空 text 分片
	require.Len(t, parts, 1)
	assert.Equal(t, "image_url", parts[0].Type)
}

func TestImageDataURL(t *testing.T) {
	assert.Equal(t, "https://example.com/x.png",
		ImageDataURL(llm.ImageContent{Type: "url", URL: "https://example.com/x.png"}))
	assert.Equal(t, "data:image/png;base64,QUJD",
		ImageDataURL(llm.ImageContent{Type: "base64", Data: "QUJD"}))
	assert.Equal(t, "data:image/webp;base64,QUJD",
		ImageDataURL(llm.ImageContent{Type: "base64", Data: "QUJD", MediaType: "image/webp"}))
}

// 序列化后的多模态消息应符合 OpenAI 线格式
func TestOpenAICompatMessage_MarshalParts(t *testing.T) {
	msg := OpenAICompatMessage{
		Role: "user",
		Content: []OpenAICompatContentPart{
			{Type: "text", Text: "hello"},
			{Type: "image_url", ImageURL: &OpenAICompatImageURL{URL: "data:image/png;base64,QQ=="}},
		},
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "user",
		"content": [
			{"type":"text","text":"hello"},
			{"type":"image_url","image_url":{"url":"data:image/png;base64,QQ=="}}
		]
	}`, string(data))
}

func TestToLLMChatResponse(t *testing.T) {
	oa := &OpenAICompatResponse{
		ID:    "resp-9",
		Model: "qwen2:7b",
		Choices: []OpenAICompatChoice{
			{Index: 0, FinishReason: "stop", Message: OpenAICompatRespMessage{Role: "assistant", Content: "done"}},
		},
		Usage: OpenAICompatUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
	}
	resp := ToLLMChatResponse("ollama", oa)
	assert.Equal(t, "resp-9", resp.ID)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "qwen2:7b", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, llm.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "done", resp.Choices[0].Message.Content)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
}

func TestBearerTokenHeaders(t *testing.T) {
	h := BearerTokenHeaders("secret")
	assert.Equal(t, "Bearer secret", h["Authorization"])
	assert.Equal(t, "application/json", h["Content-Type"])

	h = BearerTokenHeaders("")
	_, ok := h["Authorization"]
	assert.False(t, ok, "empty key should omit Authorization")
	assert.Equal(t, "application/json", h["Content-Type"])
}

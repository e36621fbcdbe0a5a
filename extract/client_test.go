package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/types"
)

// fakeProvider 回放固定响应并记录最后一次请求
type fakeProvider struct {
	lastReq *llm.ChatRequest
	reply   string
	err     error
}

func (f *fakeProvider) Completion(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Model: req.Model,
		Choices: []llm.ChatChoice{
			{Index: 0, FinishReason: "stop", Message: llm.Message{Role: llm.RoleAssistant, Content: f.reply}},
		},
		Usage: llm.ChatUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func (f *fakeProvider) ListModels(context.Context) ([]llm.Model, error) { return nil, nil }
func (f *fakeProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}
func (f *fakeProvider) Name() string { return "fake" }

func testPage() Page {
	return Page{
		URL:   "https://shop.example.com/item/42",
		Title: "Widget",
		HTML:  `<html><body><h1>Widget</h1><span class="price">$9.99</span></body></html>`,
	}
}

func TestClient_Extract_Success(t *testing.T) {
	fp := &fakeProvider{reply: `{"name":"Widget","price":"$9.99","description":"A widget."}`}
	c := NewClient(fp, ClientConfig{Model: "qwen2:7b", Timeout: time.Minute}, zap.NewNop())

	v, err := VariantByKey("product")
	require.NoError(t, err)

	res, err := c.Extract(context.Background(), testPage(), v, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Widget", res.Data["name"])
	assert.Equal(t, "$9.99", res.Data["price"])
	assert.Equal(t, "Product", res.Model)
	assert.Equal(t, "https://shop.example.com/item/42", res.URL)
	assert.Empty(t, res.MissingFields)
	assert.Equal(t, 120, res.Usage.TotalTokens)

	// 请求应携带 system 约束与 JSON schema
	require.NotNil(t, fp.lastReq)
	assert.Equal(t, "qwen2:7b", fp.lastReq.Model)
	require.Len(t, fp.lastReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, fp.lastReq.Messages[0].Role)
	assert.Contains(t, fp.lastReq.Messages[0].Content, "Respond with ONLY the JSON object.")
	assert.Equal(t, llm.RoleUser, fp.lastReq.Messages[1].Role)
	assert.Contains(t, fp.lastReq.Messages[1].Content, "Schema: Product")
	assert.NotEmpty(t, fp.lastReq.ResponseSchema)
	assert.Equal(t, time.Minute, fp.lastReq.Timeout)
}

func TestClient_Extract_FencedReply(t *testing.T) {
	fp := &fakeProvider{reply: "```json\n{\"title\":\"T\",\"url\":\"https://x\",\"description\":\"d\"}\n```"}
	c := NewClient(fp, ClientConfig{Model: "m"}, nil)

	v, err := VariantByKey("search_result")
	require.NoError(t, err)

	res, err := c.Extract(context.Background(), testPage(), v, Options{})
	require.NoError(t, err)
	assert.Equal(t, "T", res.Data["title"])
	assert.Empty(t, res.MissingFields)
}

func TestClient_Extract_MissingFieldsReported(t *testing.T) {
	fp := &fakeProvider{reply: `{"name":"Widget"}`}
	c := NewClient(fp, ClientConfig{Model: "m"}, zap.NewNop())

	v, err := VariantByKey("product")
	require.NoError(t, err)

	res, err := c.Extract(context.Background(), testPage(), v, Options{})
	require.NoError(t, err, "missing fields are a warning, not an error")
	assert.Equal(t, []string{"price", "description"}, res.MissingFields)
}

func TestClient_Extract_ParseFailure(t *testing.T) {
	fp := &fakeProvider{reply: "I am sorry, I cannot do that."}
	c := NewClient(fp, ClientConfig{Model: "m"}, nil)

	v, err := VariantByKey("article")
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), testPage(), v, Options{})
	require.Error(t, err)
	assert.Equal(t, types.ErrResponseParseFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "I am sorry")
}

func TestClient_Extract_ProviderError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("connection refused")}
	c := NewClient(fp, ClientConfig{Model: "m"}, nil)

	v, err := VariantByKey("article")
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), testPage(), v, Options{})
	require.Error(t, err)
	assert.Equal(t, types.ErrExtractionFailed, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClient_Extract_InstructionsInPrompt(t *testing.T) {
	fp := &fakeProvider{reply: `{"title":"t","content_summary":"s"}`}
	c := NewClient(fp, ClientConfig{Model: "m"}, nil)

	v, err := VariantByKey("article")
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), testPage(), v, Options{Instructions: "summarize in French"})
	require.NoError(t, err)
	assert.Contains(t, fp.lastReq.Messages[1].Content, "Additional instructions: summarize in French")
}

func TestClient_Extract_HTMLBudgetApplied(t *testing.T) {
	fp := &fakeProvider{reply: `{"title":"t","content_summary":"s"}`}
	c := NewClient(fp, ClientConfig{Model: "m", HTMLBudget: 50}, nil)

	v, err := VariantByKey("article")
	require.NoError(t, err)

	page := testPage()
	page.HTML = strings.Repeat("x", 500)
	_, err = c.Extract(context.Background(), page, v, Options{})
	require.NoError(t, err)
	assert.Contains(t, fp.lastReq.Messages[1].Content, strings.Repeat("x", 50)+"...")
	assert.NotContains(t, fp.lastReq.Messages[1].Content, strings.Repeat("x", 51))
}

func TestClient_ExtractSearchResults(t *testing.T) {
	reply, _ := json.Marshal(map[string]any{
		"query": "go generics",
		"results": []map[string]any{
			{"title": "Generics", "url": "https://en.wikipedia.org/wiki/Generics", "snippet": "about generics"},
		},
		"total_results_count": 1,
	})
	fp := &fakeProvider{reply: string(reply)}
	c := NewClient(fp, ClientConfig{Model: "proxy-lite-3b"}, zap.NewNop())

	res, err := c.ExtractSearchResults(context.Background(),
		"go generics", "https://en.wikipedia.org", 5, "c2NyZWVuc2hvdA==", "<html>results</html>")
	require.NoError(t, err)
	assert.Equal(t, "SearchResponse", res.Model)
	assert.Equal(t, "go generics", res.Data["query"])
	assert.Empty(t, res.MissingFields)

	// 用户消息应包含搜索提示词、schema 与截图
	userMsg := fp.lastReq.Messages[1]
	assert.Contains(t, userMsg.Content, "The user searched for: go generics")
	assert.Contains(t, userMsg.Content, "Schema: SearchResponse")
	assert.Contains(t, userMsg.Content, "HTML Content:\n<html>results</html>")
	require.Len(t, userMsg.Images, 1)
	assert.Equal(t, "base64", userMsg.Images[0].Type)
	assert.Equal(t, "c2NyZWVuc2hvdA==", userMsg.Images[0].Data)
	assert.Equal(t, "image/png", userMsg.Images[0].MediaType)
}

func TestClient_ExtractSearchResults_NoScreenshotNoHTML(t *testing.T) {
	fp := &fakeProvider{reply: `{"query":"q","results":[]}`}
	c := NewClient(fp, ClientConfig{Model: "m"}, nil)

	_, err := c.ExtractSearchResults(context.Background(), "q", "https://example.com", 3, "", "")
	require.NoError(t, err)
	userMsg := fp.lastReq.Messages[1]
	assert.Empty(t, userMsg.Images)
	assert.NotContains(t, userMsg.Content, "HTML Content:")
}

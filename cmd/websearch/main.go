// =============================================================================
// websearch — 站内搜索加视觉结果提取的编排命令
// =============================================================================
// 打开目标站首页，提交搜索词，把结果页截图与 HTML 交给视觉模型
// 提取搜索结果列表。
//
// 使用方法:
//
//	websearch "golang concurrency"
//	websearch --homepage https://en.wikipedia.org --max-results 5 "generics"
//
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/webglue/webglue/browser"
	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/extract"
	"github.com/webglue/webglue/llm/providers/openaicompat"
	"github.com/webglue/webglue/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("websearch", flag.ExitOnError)
	homepage := fs.String("homepage", "", "Site to search on")
	maxResults := fs.Int("max-results", 0, "Maximum number of results to extract")
	apiKey := fs.String("api-key", "", "Vision API key")
	apiBase := fs.String("api-base", "", "Vision API base URL")
	configPath := fs.String("config", "", "Path to config file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	output := fs.String("output", "", "Write the JSON result to this file instead of stdout")
	fs.Parse(args)

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *homepage != "" {
		cfg.Vision.Homepage = *homepage
	}
	if *maxResults > 0 {
		cfg.Vision.MaxResults = *maxResults
	}
	if *apiKey != "" {
		cfg.Vision.APIKey = *apiKey
	}
	if *apiBase != "" {
		cfg.Vision.BaseURL = *apiBase
	}

	logger := config.NewLogger(cfg.Log, *debug)
	defer logger.Sync()

	query := fs.Arg(0)

	emit := func(res *types.Result) int {
		res.Query = query
		res.Timestamp = types.Now()
		if err := types.Emit(res, *output, true); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
			return 1
		}
		if res.Success {
			return 0
		}
		return 1
	}
	fail := func(res *types.Result, err error) int {
		res.Success = false
		res.Error = err.Error()
		if *debug {
			res.Traceback = fmt.Sprintf("%+v", err)
		}
		return emit(res)
	}

	if query == "" {
		return fail(&types.Result{}, fmt.Errorf("a search query argument is required"))
	}

	// 阶段一：打开首页
	a, err := browser.New(browser.ConfigFrom(cfg.Browser, cfg.Sessions.Dir), logger)
	if err != nil {
		return fail(&types.Result{}, err)
	}
	if err := a.Start(); err != nil {
		return fail(&types.Result{}, err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.Navigate(ctx, cfg.Vision.Homepage); err != nil {
		return fail(&types.Result{URL: cfg.Vision.Homepage}, err)
	}

	// 阶段二：提交搜索
	page, err := a.Search(ctx, query)
	if err != nil {
		return fail(&types.Result{URL: cfg.Vision.Homepage}, err)
	}

	// 阶段三：视觉提取结果列表
	provider := openaicompat.New(openaicompat.Config{
		ProviderName: "vision-proxy",
		APIKey:       cfg.Vision.APIKey,
		BaseURL:      cfg.Vision.BaseURL,
		DefaultModel: cfg.Vision.Model,
		Timeout:      cfg.Vision.Timeout,
	}, logger)
	client := extract.NewClient(provider, extract.ClientConfig{
		Model:      cfg.Vision.Model,
		Timeout:    cfg.Vision.Timeout,
		HTMLBudget: cfg.Extraction.HTMLBudget,
	}, logger)

	screenshotB64 := browser.ScreenshotBase64(page.Screenshot)
	result, err := client.ExtractSearchResults(ctx, query, cfg.Vision.Homepage, cfg.Vision.MaxResults, screenshotB64, page.HTML)
	if err != nil {
		return fail(&types.Result{URL: page.URL}, err)
	}

	res := &types.Result{
		Success:    true,
		URL:        page.URL,
		Results:    result.Data["results"],
		Screenshot: screenshotB64,
	}
	return emit(res)
}

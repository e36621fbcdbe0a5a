// =============================================================================
// scrape — 导航并提取的编排命令
// =============================================================================
// 打开浏览器导航到 URL，再把抓到的 HTML 送去结构化提取，
// 输出合并后的 JSON 结果。任一阶段失败立即短路并如实上报。
//
// 使用方法:
//
//	scrape --url https://shop.example/p/1 --schema product
//	scrape --url https://news.example/a/2 --schema article --output result.json
//
// =============================================================================
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strconv"

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
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	urlFlag := fs.String("url", "", "URL to scrape (required)")
	schema := fs.String("schema", "article", "Schema variant: product | article | search_result")
	headless := fs.String("headless", "true", "Run the browser headless (true|false)")
	model := fs.String("model", "", "Model to use for extraction")
	instructions := fs.String("instructions", "", "Additional extraction instructions")
	configPath := fs.String("config", "", "Path to config file")
	debug := fs.Bool("debug", false, "Enable debug logging")
	output := fs.String("output", "", "Write the JSON result to this file instead of stdout")
	fs.Parse(args)

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg.Browser.Headless = parseBool(*headless, cfg.Browser.Headless)
	if *model != "" {
		cfg.Extraction.Model = *model
	}

	logger := config.NewLogger(cfg.Log, *debug)
	defer logger.Sync()

	emit := func(res *types.Result) int {
		res.Schema = *schema
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

	if *urlFlag == "" {
		return fail(&types.Result{}, fmt.Errorf("--url is required"))
	}
	variant, err := extract.VariantByKey(*schema)
	if err != nil {
		return fail(&types.Result{URL: *urlFlag}, err)
	}

	// 阶段一：导航并抓取页面
	a, err := browser.New(browser.ConfigFrom(cfg.Browser, cfg.Sessions.Dir), logger)
	if err != nil {
		return fail(&types.Result{URL: *urlFlag}, err)
	}
	if err := a.Start(); err != nil {
		return fail(&types.Result{URL: *urlFlag}, err)
	}
	defer a.Close()

	ctx := context.Background()
	page, err := a.Navigate(ctx, *urlFlag)
	if err != nil {
		return fail(&types.Result{URL: *urlFlag}, err)
	}

	// 阶段二：结构化提取
	provider := openaicompat.New(openaicompat.Config{
		ProviderName: "ollama",
		APIKey:       cfg.Extraction.APIKey,
		BaseURL:      cfg.Extraction.BaseURL,
		DefaultModel: cfg.Extraction.Model,
		Timeout:      cfg.Extraction.Timeout,
	}, logger)
	client := extract.NewClient(provider, extract.ClientConfig{
		Model:       cfg.Extraction.Model,
		Temperature: cfg.Extraction.Temperature,
		Timeout:     cfg.Extraction.Timeout,
		HTMLBudget:  cfg.Extraction.HTMLBudget,
		ContextSize: cfg.Inference.ContextSize,
	}, logger)

	result, err := client.Extract(ctx,
		extract.Page{URL: page.URL, Title: page.Title, HTML: page.HTML},
		variant,
		extract.Options{Instructions: *instructions})
	if err != nil {
		return fail(&types.Result{URL: page.URL, Title: page.Title}, err)
	}

	res := &types.Result{
		Success: true,
		URL:     page.URL,
		Title:   page.Title,
		Data:    result.Data,
	}
	if len(page.Screenshot) > 0 {
		res.Screenshot = base64.StdEncoding.EncodeToString(page.Screenshot)
	}
	return emit(res)
}

func parseBool(s string, def bool) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

// =============================================================================
// extract — 结构化数据提取命令
// =============================================================================
// 把一段网页 HTML（文件路径或字面内容）交给 OpenAI 兼容端点，
// 按固定 schema 变体提取结构化数据。
//
// 使用方法:
//
//	extract --html page.html --schema product --url https://shop.example/p/1
//	extract --html "<html>...</html>" --schema article --model qwen2:7b
//
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/extract"
	"github.com/webglue/webglue/llm/providers/openaicompat"
	"github.com/webglue/webglue/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	htmlArg := fs.String("html", "", "HTML content, or a path to a file containing it")
	urlFlag := fs.String("url", "unknown", "URL of the page the HTML came from")
	title := fs.String("title", "Unknown Title", "Title of the page")
	schema := fs.String("schema", "article", "Schema variant: product | article | search_result")
	model := fs.String("model", "", "Model to use for extraction")
	baseURL := fs.String("base-url", "", "OpenAI-compatible endpoint base URL")
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
	if *model != "" {
		cfg.Extraction.Model = *model
	}
	if *baseURL != "" {
		cfg.Extraction.BaseURL = *baseURL
	}

	logger := config.NewLogger(cfg.Log, *debug)
	defer logger.Sync()

	fail := func(res *types.Result, err error) int {
		res.Success = false
		res.Error = err.Error()
		if *debug {
			res.Traceback = fmt.Sprintf("%+v", err)
		}
		if werr := types.Emit(res, *output, false); werr != nil {
			fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", werr)
		}
		return 1
	}

	if *htmlArg == "" {
		return fail(&types.Result{URL: *urlFlag}, fmt.Errorf("--html is required"))
	}
	htmlContent := readHTMLArg(*htmlArg)

	variant, err := extract.VariantByKey(*schema)
	if err != nil {
		return fail(&types.Result{URL: *urlFlag, Schema: *schema}, err)
	}

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

	page := extract.Page{URL: *urlFlag, Title: *title, HTML: htmlContent}
	result, err := client.Extract(context.Background(), page, variant, extract.Options{Instructions: *instructions})
	if err != nil {
		return fail(&types.Result{URL: *urlFlag, Model: variant.Name}, err)
	}

	res := &types.Result{
		Success: true,
		Data:    result.Data,
		Model:   result.Model,
		URL:     *urlFlag,
	}
	if err := types.Emit(res, *output, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	return 0
}

// readHTMLArg 接受文件路径或字面 HTML：路径存在即读文件，否则
// 把参数本身当作内容。
func readHTMLArg(arg string) string {
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		if data, err := os.ReadFile(arg); err == nil {
			return string(data)
		}
	}
	return arg
}

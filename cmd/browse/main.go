// =============================================================================
// browse — 浏览器自动化命令
// =============================================================================
// 由宿主应用作为子进程调用，stdout 输出单个 JSON 结果文档。
//
// 使用方法:
//
//	browse --action navigate --url https://example.com
//	browse --action search --query "golang" --session <token>
//	browse --action screenshot --url https://example.com --output result.json
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
	"time"

	"github.com/webglue/webglue/browser"
	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/types"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	action := fs.String("action", "navigate", "Action to perform: navigate | search | screenshot")
	urlFlag := fs.String("url", "", "URL to navigate to")
	session := fs.String("session", "", "Session token to restore before acting")
	query := fs.String("query", "", "Search query")
	timeoutMS := fs.Int("timeout", 30000, "Per-action timeout in milliseconds")
	waitUntil := fs.String("wait-until", "load", "Navigation wait condition: load | domcontentloaded | networkidle")
	headless := fs.String("headless", "true", "Run the browser headless (true|false)")
	screenshot := fs.String("screenshot", "true", "Include a base64 screenshot in the result (true|false)")
	debug := fs.String("debug", "false", "Enable debug logging (true|false)")
	configPath := fs.String("config", "", "Path to config file")
	output := fs.String("output", "", "Write the JSON result to this file instead of stdout")
	fs.Parse(args)

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// 宿主以字符串传布尔标志
	debugOn := parseBool(*debug, false)
	applyBrowserOverrides(fs, cfg, *timeoutMS, *waitUntil, *headless)
	withScreenshot := parseBool(*screenshot, true)

	logger := config.NewLogger(cfg.Log, debugOn)
	defer logger.Sync()

	emit := func(res *types.Result) int {
		res.Timestamp = types.Now()
		if err := types.Emit(res, *output, false); err != nil {
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
		if debugOn {
			res.Traceback = fmt.Sprintf("%+v", err)
		}
		return emit(res)
	}

	a, err := browser.New(browser.ConfigFrom(cfg.Browser, cfg.Sessions.Dir), logger)
	if err != nil {
		return fail(&types.Result{}, err)
	}
	if err := a.Start(); err != nil {
		return fail(&types.Result{}, err)
	}
	defer a.Close()

	ctx := context.Background()
	if *session != "" {
		if err := a.LoadSession(ctx, *session); err != nil {
			return fail(&types.Result{SessionID: *session},
				fmt.Errorf("Could not load session %s: %w", *session, err))
		}
	}

	var page *browser.PageResult
	switch *action {
	case "navigate":
		if *urlFlag == "" {
			return fail(&types.Result{}, fmt.Errorf("--url is required for the navigate action"))
		}
		page, err = a.Navigate(ctx, *urlFlag)
		if err != nil {
			return fail(&types.Result{URL: *urlFlag, SessionID: a.SessionID()}, err)
		}
	case "search":
		if *query == "" {
			return fail(&types.Result{}, fmt.Errorf("--query is required for the search action"))
		}
		page, err = a.Search(ctx, *query)
		if err != nil {
			return fail(&types.Result{Query: *query, SessionID: a.SessionID()}, err)
		}
	case "screenshot":
		if *urlFlag == "" {
			return fail(&types.Result{}, fmt.Errorf("--url is required for the screenshot action"))
		}
		page, err = a.Screenshot(ctx, *urlFlag)
		if err != nil {
			return fail(&types.Result{URL: *urlFlag, SessionID: a.SessionID()}, err)
		}
	default:
		return fail(&types.Result{}, fmt.Errorf("unknown action %q: expected navigate, search, or screenshot", *action))
	}

	res := &types.Result{
		Success:   true,
		URL:       page.URL,
		Title:     page.Title,
		HTML:      page.HTML,
		SessionID: page.SessionID,
	}
	if *action == "search" {
		res.Query = *query
	}
	if withScreenshot && len(page.Screenshot) > 0 {
		res.Screenshot = base64.StdEncoding.EncodeToString(page.Screenshot)
	}
	return emit(res)
}

// applyBrowserOverrides 只把用户显式传入的标志覆盖到配置上，
// 未传入的标志保留配置文件与环境变量的取值。
func applyBrowserOverrides(fs *flag.FlagSet, cfg *config.Config, timeoutMS int, waitUntil, headless string) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["timeout"] {
		cfg.Browser.Timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	if set["wait-until"] {
		cfg.Browser.WaitUntil = waitUntil
	}
	if set["headless"] {
		cfg.Browser.Headless = parseBool(headless, cfg.Browser.Headless)
	}
}

// parseBool 解析宿主传来的 "true"/"false" 字符串，无法解析时用默认值。
func parseBool(s string, def bool) bool {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

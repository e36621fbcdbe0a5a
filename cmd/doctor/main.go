// =============================================================================
// doctor — 环境自检命令
// =============================================================================
// 并行探测 webglue 依赖的外部环境：浏览器可执行文件、会话目录、
// llama.cpp 可执行文件与模型、推理服务器状态、提取端点连通性、
// 视觉 API Key。输出一个 JSON 汇总文档。
//
// 使用方法:
//
//	doctor
//	doctor --ensure          # 推理服务器不在运行时顺带启动
//
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/inference"
	"github.com/webglue/webglue/llm/providers/openaicompat"
	"github.com/webglue/webglue/types"
)

// chromeCandidates 按常见程度排序的浏览器可执行文件名
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// Check 是一项环境检查的结果。Required 为 false 的检查失败时
// 只警告，不影响整体结论。
type Check struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Detail   string `json:"detail"`
}

// Report 是 doctor 输出的汇总文档。
type Report struct {
	Success bool    `json:"success"`
	Checks  []Check `json:"checks"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	ensure := fs.Bool("ensure", false, "Also start the inference server when it is down")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := config.NewLogger(cfg.Log, *debug)
	defer logger.Sync()

	checks := make([]Check, 6)
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		checks[0] = checkChrome()
		return nil
	})
	g.Go(func() error {
		checks[1] = checkSessionsDir(cfg.Sessions.Dir)
		return nil
	})
	g.Go(func() error {
		checks[2] = checkServerFiles(cfg.Inference)
		return nil
	})
	g.Go(func() error {
		checks[3] = checkInference(ctx, cfg.Inference, *ensure, logger)
		return nil
	})
	g.Go(func() error {
		checks[4] = checkExtraction(ctx, cfg.Extraction, logger)
		return nil
	})
	g.Go(func() error {
		checks[5] = checkVisionKey(cfg.Vision.APIKey)
		return nil
	})
	_ = g.Wait()

	report := Report{Success: true, Checks: checks}
	for _, c := range checks {
		if c.Required && !c.OK {
			report.Success = false
		}
	}
	if err := types.WriteJSON(os.Stdout, &report, true); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	if report.Success {
		return 0
	}
	return 1
}

func checkChrome() Check {
	c := Check{Name: "browser_executable", Required: true}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			c.OK = true
			c.Detail = path
			return c
		}
	}
	c.Detail = "no Chrome/Chromium executable found on PATH"
	return c
}

func checkSessionsDir(dir string) Check {
	c := Check{Name: "sessions_dir", Required: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.Detail = fmt.Sprintf("cannot create %s: %v", dir, err)
		return c
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		c.Detail = fmt.Sprintf("%s is not writable: %v", dir, err)
		return c
	}
	os.Remove(probe)
	c.OK = true
	c.Detail = dir
	return c
}

func checkServerFiles(cfg config.InferenceConfig) Check {
	c := Check{Name: "llama_server_files", Required: true}
	exe, err := inference.FindServerExecutable(cfg.ServerDir)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	model, err := inference.FindModelPath(cfg.ModelsDir, cfg.Model)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("executable %s, model %s", exe, model)
	return c
}

// checkInference 探测推理服务器状态。仅在 --ensure 时属于必需检查：
// 没有要求启动时，服务器不在运行只是提示。
func checkInference(ctx context.Context, cfg config.InferenceConfig, ensure bool, logger *zap.Logger) Check {
	c := Check{Name: "inference_server", Required: ensure}
	ctrl := inference.NewController(cfg, logger)

	if ensure {
		st, err := ctrl.Ensure(ctx)
		if err != nil {
			c.Detail = err.Error()
			return c
		}
		c.OK = st.Running
		c.Detail = st.Message
		return c
	}

	st := ctrl.Status(ctx)
	c.OK = st.Running
	c.Detail = st.Message
	return c
}

func checkExtraction(ctx context.Context, cfg config.ExtractionConfig, logger *zap.Logger) Check {
	c := Check{Name: "extraction_endpoint", Required: true}
	provider := openaicompat.New(openaicompat.Config{
		ProviderName: "ollama",
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      10 * time.Second,
	}, logger)

	st, err := provider.HealthCheck(ctx)
	if err != nil {
		c.Detail = fmt.Sprintf("%s unreachable: %v", cfg.BaseURL, err)
		return c
	}
	c.OK = st.Healthy
	c.Detail = fmt.Sprintf("%s reachable in %s", cfg.BaseURL, st.Latency.Round(time.Millisecond))
	return c
}

func checkVisionKey(apiKey string) Check {
	c := Check{Name: "vision_api_key", Required: false}
	if apiKey == "" {
		c.Detail = "PROXY_API_KEY not set; websearch vision extraction will fail"
		return c
	}
	c.OK = true
	c.Detail = "configured"
	return c
}

// =============================================================================
// llamactl — 本地 llama.cpp 推理服务器生命周期管理
// =============================================================================
// 使用方法:
//
//	llamactl start  [--model m.gguf --host 127.0.0.1 --port 8090 --ctx-size 4096 --threads 8]
//	llamactl stop   [--host 127.0.0.1 --port 8090]
//	llamactl status [--host 127.0.0.1 --port 8090]
//	llamactl ensure [--model m.gguf ...]
//
// 每次调用在 stdout 输出一个 JSON 文档；status/ensure 的退出码
// 反映服务器是否在运行。
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/inference"
	"github.com/webglue/webglue/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		os.Exit(runStart(os.Args[2:]))
	case "stop":
		os.Exit(runStop(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "ensure":
		os.Exit(runEnsure(os.Args[2:]))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `llamactl - manage the local llama.cpp inference server

Usage:
  llamactl start   [flags]   Launch the server (refuses if the port is in use)
  llamactl stop    [flags]   Gracefully stop the server, force-kill on timeout
  llamactl status  [flags]   Probe the port and the /v1/models endpoint
  llamactl ensure  [flags]   Start the server only if it is not already running

Common flags:
  --config  Path to config file
  --debug   Enable debug logging
`)
}

// serverFlags 注册一个子命令共享的标志集并返回控制器构造闭包。
func serverFlags(fs *flag.FlagSet, withModel bool) func() (*inference.Controller, *config.Config, bool, int) {
	var model *string
	var ctxSize, threads *int
	if withModel {
		model = fs.String("model", "", "Model file name or absolute path")
		ctxSize = fs.Int("ctx-size", 0, "Context window size")
		threads = fs.Int("threads", -1, "Worker threads (0 = auto)")
	}
	host := fs.String("host", "", "Server listen host")
	port := fs.Int("port", 0, "Server listen port")
	configPath := fs.String("config", "", "Path to config file")
	debug := fs.Bool("debug", false, "Enable debug logging")

	return func() (*inference.Controller, *config.Config, bool, int) {
		cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return nil, nil, false, 1
		}
		if *host != "" {
			cfg.Inference.Host = *host
		}
		if *port > 0 {
			cfg.Inference.Port = *port
		}
		if withModel {
			if *model != "" {
				cfg.Inference.Model = *model
			}
			if *ctxSize > 0 {
				cfg.Inference.ContextSize = *ctxSize
			}
			if *threads >= 0 {
				cfg.Inference.Threads = *threads
			}
		}
		logger := config.NewLogger(cfg.Log, *debug)
		return inference.NewController(cfg.Inference, logger), cfg, *debug, 0
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("llamactl start", flag.ExitOnError)
	build := serverFlags(fs, true)
	fs.Parse(args)

	ctrl, cfg, _, code := build()
	if code != 0 {
		return code
	}

	proc, err := ctrl.Start(context.Background())
	if err != nil {
		return emitStatus(&types.ServerStatus{Running: false, Message: err.Error()}, false)
	}
	return emitStatus(&types.ServerStatus{
		Running: true,
		Message: fmt.Sprintf("Server started with PID %d", proc.PID),
		PID:     proc.PID,
		URL:     cfg.Inference.BaseURL(),
	}, true)
}

func runStop(args []string) int {
	fs := flag.NewFlagSet("llamactl stop", flag.ExitOnError)
	build := serverFlags(fs, false)
	fs.Parse(args)

	ctrl, _, debugOn, code := build()
	if code != 0 {
		return code
	}

	if err := ctrl.Stop(context.Background()); err != nil {
		res := types.Failure(err)
		if debugOn {
			res.Traceback = fmt.Sprintf("%+v", err)
		}
		_ = types.WriteJSON(os.Stdout, res, false)
		return 1
	}
	if err := types.WriteJSON(os.Stdout, &types.Result{Success: true, Message: "Server stopped successfully"}, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("llamactl status", flag.ExitOnError)
	build := serverFlags(fs, false)
	fs.Parse(args)

	ctrl, _, _, code := build()
	if code != 0 {
		return code
	}
	st := ctrl.Status(context.Background())
	return emitStatus(statusEnvelope(st), st.Running)
}

func runEnsure(args []string) int {
	fs := flag.NewFlagSet("llamactl ensure", flag.ExitOnError)
	build := serverFlags(fs, true)
	fs.Parse(args)

	ctrl, _, _, code := build()
	if code != 0 {
		return code
	}
	st, err := ctrl.Ensure(context.Background())
	if err != nil {
		return emitStatus(&types.ServerStatus{Running: false, Message: err.Error()}, false)
	}
	return emitStatus(statusEnvelope(st), st.Running)
}

func statusEnvelope(st *inference.Status) *types.ServerStatus {
	env := &types.ServerStatus{
		Running: st.Running,
		Message: st.Message,
		URL:     st.URL,
	}
	for _, m := range st.Models {
		env.Models = append(env.Models, m.ID)
	}
	return env
}

func emitStatus(env *types.ServerStatus, ok bool) int {
	if err := types.WriteJSON(os.Stdout, env, false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write result: %v\n", err)
		return 1
	}
	if ok {
		return 0
	}
	return 1
}

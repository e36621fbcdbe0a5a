package inference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/webglue/webglue/config"
	"github.com/webglue/webglue/internal/poll"
	"github.com/webglue/webglue/llm"
	"github.com/webglue/webglue/llm/providers/openaicompat"
	"github.com/webglue/webglue/types"
)

// statusProbeTimeout 限制单次 /v1/models 身份确认请求的时长。
const statusProbeTimeout = 5 * time.Second

// Status 描述推理服务器的观测状态。Confirmed 为 true 表示模型列表
// 端点确认了身份；Running 且未 Confirmed 表示端口被占用但
// 监听者身份不明。
type Status struct {
	Running   bool
	Confirmed bool
	Message   string
	URL       string
	Models    []llm.Model
}

// Controller 驱动一台 llama.cpp 服务器的生命周期。
// 进程启动、端口探测、PID 定位与信号发送都是可注入的接缝，
// 测试无需真实 spawn 进程。
type Controller struct {
	cfg    config.InferenceConfig
	logger *zap.Logger

	provider  llm.Provider
	launch    LaunchFunc
	portInUse func(host string, port int) bool
	findPID   func(host string, port int) (int, error)
	signal    func(pid int, sig syscall.Signal) error
}

// NewController 创建控制器。nil logger 退化为 no-op。
func NewController(cfg config.InferenceConfig, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "inference"))

	provider := openaicompat.New(openaicompat.Config{
		ProviderName: "llama-cpp",
		BaseURL:      cfg.BaseURL(),
		Timeout:      statusProbeTimeout,
	}, logger)

	return &Controller{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		launch:    launchDetached,
		portInUse: IsPortInUse,
		findPID:   findListenerPID,
		signal:    syscall.Kill,
	}
}

// Start 启动服务器进程并等待其开始接受连接。端口已被占用时直接
// 拒绝，不做冲突处理；进程在确认前退出时，其 stderr 进入错误消息。
func (c *Controller) Start(ctx context.Context) (*Process, error) {
	if c.portInUse(c.cfg.Host, c.cfg.Port) {
		return nil, types.NewErrorf(types.ErrPortInUse,
			"Port %d is already in use on %s", c.cfg.Port, c.cfg.Host)
	}

	exe, err := FindServerExecutable(c.cfg.ServerDir)
	if err != nil {
		return nil, err
	}
	model, err := FindModelPath(c.cfg.ModelsDir, c.cfg.Model)
	if err != nil {
		return nil, err
	}

	args := []string{
		"--model", model,
		"--host", c.cfg.Host,
		"--port", strconv.Itoa(c.cfg.Port),
		"--ctx-size", strconv.Itoa(c.cfg.ContextSize),
	}
	if c.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(c.cfg.Threads))
	}

	proc, err := c.launch(exe, args)
	if err != nil {
		return nil, types.NewErrorf(types.ErrProcessExited,
			"launch %s: %v", exe, err).WithCause(err)
	}
	c.logger.Info("server launched",
		zap.Int("pid", proc.PID),
		zap.String("executable", exe),
		zap.String("model", model),
		zap.String("addr", fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)))

	err = poll.Until(ctx, c.cfg.PollInterval, c.cfg.StartupTimeout, func(ctx context.Context) (bool, error) {
		if proc.Exited() {
			msg := proc.StderrOutput()
			if msg == "" {
				msg = fmt.Sprintf("exit: %v", proc.WaitErr())
			}
			return false, types.NewErrorf(types.ErrProcessExited,
				"server process exited during startup: %s", msg)
		}
		return c.portInUse(c.cfg.Host, c.cfg.Port), nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return nil, types.NewErrorf(types.ErrProcessExited,
				"server did not accept connections on %s:%d within %s",
				c.cfg.Host, c.cfg.Port, c.cfg.StartupTimeout).WithCause(err)
		}
		return nil, err
	}

	c.logger.Info("server accepting connections", zap.Int("pid", proc.PID))
	return proc, nil
}

// Stop 找到监听 host:port 的进程并优雅终止；在 StopTimeout 内没有
// 退出则升级为 SIGKILL。全树唯一的超时升级策略。
func (c *Controller) Stop(ctx context.Context) error {
	pid, err := c.findPID(c.cfg.Host, c.cfg.Port)
	if err != nil {
		return err
	}

	c.logger.Info("stopping server", zap.Int("pid", pid))
	if err := c.signal(pid, syscall.SIGTERM); err != nil {
		return types.NewErrorf(types.ErrProcessNotFound,
			"signal pid %d: %v", pid, err).WithCause(err)
	}

	err = poll.Until(ctx, c.cfg.PollInterval, c.cfg.StopTimeout, func(context.Context) (bool, error) {
		return c.processGone(pid), nil
	})
	if err == nil {
		c.logger.Info("server stopped", zap.Int("pid", pid))
		return nil
	}
	if !errors.Is(err, poll.ErrTimeout) {
		return err
	}

	c.logger.Warn("graceful stop timed out, killing", zap.Int("pid", pid))
	if err := c.signal(pid, syscall.SIGKILL); err != nil && !c.processGone(pid) {
		return types.NewErrorf(types.ErrProcessNotFound,
			"kill pid %d: %v", pid, err).WithCause(err)
	}
	return poll.Until(ctx, c.cfg.PollInterval, c.cfg.StopTimeout, func(context.Context) (bool, error) {
		return c.processGone(pid), nil
	})
}

// processGone 用 0 号信号探测进程是否仍然存在。
func (c *Controller) processGone(pid int) bool {
	return c.signal(pid, syscall.Signal(0)) != nil
}

// Status 重新推导服务器状态：端口空闲即未运行；否则请求模型列表
// 端点确认身份，失败时仍然上报"有东西在监听，身份未确认"。
func (c *Controller) Status(ctx context.Context) *Status {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	if !c.portInUse(c.cfg.Host, c.cfg.Port) {
		return &Status{Running: false, Message: fmt.Sprintf("No server running on %s", addr)}
	}

	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()
	models, err := c.provider.ListModels(probeCtx)
	if err != nil {
		c.logger.Debug("identity probe failed", zap.Error(err))
		return &Status{
			Running: true,
			URL:     c.cfg.BaseURL(),
			Message: fmt.Sprintf("Something is running on %s, but could not confirm it's the llama.cpp server", addr),
		}
	}
	return &Status{
		Running:   true,
		Confirmed: true,
		Models:    models,
		URL:       c.cfg.BaseURL(),
		Message:   "llama.cpp server is running",
	}
}

// Ensure 幂等地保证服务器在运行：已在运行时原样返回状态，否则
// 启动并轮询直到身份确认或超时。轮询到期不视为硬错误，按最后一次
// 观测到的状态返回。
func (c *Controller) Ensure(ctx context.Context) (*Status, error) {
	st := c.Status(ctx)
	if st.Running {
		c.logger.Debug("server already running", zap.String("message", st.Message))
		return st, nil
	}

	if _, err := c.Start(ctx); err != nil {
		return st, err
	}

	final := st
	err := poll.Until(ctx, c.cfg.PollInterval, c.cfg.StartupTimeout, func(ctx context.Context) (bool, error) {
		final = c.Status(ctx)
		return final.Confirmed, nil
	})
	if err != nil && !errors.Is(err, poll.ErrTimeout) {
		return final, err
	}
	return final, nil
}

// =============================================================================
// 📦 webglue 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("WEBGLUE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量 → 兼容别名 → 验证
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 webglue 全部命令共享的配置结构
type Config struct {
	// Browser 浏览器自动化配置
	Browser BrowserConfig `yaml:"browser" env:"BROWSER"`

	// Sessions 会话状态存储配置
	Sessions SessionsConfig `yaml:"sessions" env:"SESSIONS"`

	// Inference 本地推理服务器（llama.cpp）配置
	Inference InferenceConfig `yaml:"inference" env:"INFERENCE"`

	// Extraction 结构化提取端点配置
	Extraction ExtractionConfig `yaml:"extraction" env:"EXTRACTION"`

	// Vision 视觉提取端点配置
	Vision VisionConfig `yaml:"vision" env:"VISION"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	// 是否无头模式
	Headless bool `yaml:"headless" env:"HEADLESS"`
	// 单次页面操作超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 导航完成判定: load, domcontentloaded, networkidle
	WaitUntil string `yaml:"wait_until" env:"WAIT_UNTIL"`
	// 视口宽度
	ViewportWidth int `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	// 视口高度
	ViewportHeight int `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
	// 自定义 User-Agent（为空则使用浏览器默认值）
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`
	// 截图质量 (1-100)
	ScreenshotQuality int `yaml:"screenshot_quality" env:"SCREENSHOT_QUALITY"`
	// 输入查询时的按键间隔
	TypingDelay time.Duration `yaml:"typing_delay" env:"TYPING_DELAY"`
	// 网络静默窗口：该时长内无新请求即视为 network idle
	IdleWindow time.Duration `yaml:"idle_window" env:"IDLE_WINDOW"`
	// 搜索框候选选择器，按顺序逐个尝试
	SearchSelectors []string `yaml:"search_selectors" env:"SEARCH_SELECTORS"`
}

// SessionsConfig 会话存储配置
type SessionsConfig struct {
	// 会话文件目录
	Dir string `yaml:"dir" env:"DIR"`
}

// InferenceConfig llama.cpp 服务器配置
type InferenceConfig struct {
	// llama.cpp 源码/构建目录
	ServerDir string `yaml:"server_dir" env:"SERVER_DIR"`
	// 模型文件目录
	ModelsDir string `yaml:"models_dir" env:"MODELS_DIR"`
	// 模型文件名或绝对路径
	Model string `yaml:"model" env:"MODEL"`
	// 监听地址
	Host string `yaml:"host" env:"HOST"`
	// 监听端口
	Port int `yaml:"port" env:"PORT"`
	// 上下文窗口大小
	ContextSize int `yaml:"ctx_size" env:"CTX_SIZE"`
	// 线程数（0 表示由服务器自行决定）
	Threads int `yaml:"threads" env:"THREADS"`
	// 启动确认超时
	StartupTimeout time.Duration `yaml:"startup_timeout" env:"STARTUP_TIMEOUT"`
	// 优雅停止等待时长，超过则强制终止
	StopTimeout time.Duration `yaml:"stop_timeout" env:"STOP_TIMEOUT"`
	// 就绪轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// BaseURL 返回服务器的 HTTP 根地址
func (c *InferenceConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// ExtractionConfig 结构化提取配置
type ExtractionConfig struct {
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// OpenAI 兼容端点根地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key（本地端点通常为空）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 送入提示词的 HTML 字符预算，超出部分截断
	HTMLBudget int `yaml:"html_budget" env:"HTML_BUDGET"`
	// 采样温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

// VisionConfig 视觉提取配置
type VisionConfig struct {
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 端点根地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 搜索结果上限
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
	// 搜索起始页
	Homepage string `yaml:"homepage" env:"HOMEPAGE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径（stdout 保留给结果信封，默认仅 stderr）
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器。Config.Validate 始终作为首个验证器，
// 非法配置在 Load 阶段即失败，不会流入后续命令。
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "WEBGLUE",
		validators: []func(*Config) error{(*Config).Validate},
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量 → 兼容别名 → 验证
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 兼容历史环境变量名
	if err := applyLegacyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply legacy env vars: %w", err)
	}

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔁 历史环境变量兼容
// =============================================================================

// applyLegacyEnv 兼容宿主应用沿用的无前缀环境变量名。
// 这些变量名早于 WEBGLUE_* 方案，优先级高于带前缀的同类变量。
func applyLegacyEnv(cfg *Config) error {
	if v := os.Getenv("LLAMA_CPP_DIR"); v != "" {
		cfg.Inference.ServerDir = v
	}
	if v := os.Getenv("LLAMA_MODELS_DIR"); v != "" {
		cfg.Inference.ModelsDir = v
	}
	if v := os.Getenv("LLAMA_MODEL"); v != "" {
		cfg.Inference.Model = v
	}
	if v := os.Getenv("LLAMA_HOST"); v != "" {
		cfg.Inference.Host = v
	}
	if v := os.Getenv("LLAMA_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LLAMA_PORT %q: %w", v, err)
		}
		cfg.Inference.Port = p
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Extraction.BaseURL = v
	}
	if v := os.Getenv("PROXY_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证浏览器配置
	switch c.Browser.WaitUntil {
	case "load", "domcontentloaded", "networkidle":
	default:
		errs = append(errs, fmt.Sprintf("invalid wait_until %q", c.Browser.WaitUntil))
	}
	if c.Browser.Timeout <= 0 {
		errs = append(errs, "browser timeout must be positive")
	}
	if c.Browser.ScreenshotQuality < 1 || c.Browser.ScreenshotQuality > 100 {
		errs = append(errs, "screenshot_quality must be between 1 and 100")
	}
	if len(c.Browser.SearchSelectors) == 0 {
		errs = append(errs, "search_selectors must not be empty")
	}

	// 验证推理服务器配置
	if c.Inference.Port <= 0 || c.Inference.Port > 65535 {
		errs = append(errs, "invalid inference port")
	}
	if c.Inference.ContextSize <= 0 {
		errs = append(errs, "ctx_size must be positive")
	}
	if c.Inference.StartupTimeout <= 0 {
		errs = append(errs, "startup_timeout must be positive")
	}

	// 验证提取配置
	if c.Extraction.HTMLBudget <= 0 {
		errs = append(errs, "html_budget must be positive")
	}
	if c.Extraction.Temperature < 0 || c.Extraction.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

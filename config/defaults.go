// =============================================================================
// 📦 webglue 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Browser:    DefaultBrowserConfig(),
		Sessions:   DefaultSessionsConfig(),
		Inference:  DefaultInferenceConfig(),
		Extraction: DefaultExtractionConfig(),
		Vision:     DefaultVisionConfig(),
		Log:        DefaultLogConfig(),
	}
}

// DefaultBrowserConfig 返回默认浏览器配置
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		Timeout:           30 * time.Second,
		WaitUntil:         "load",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		UserAgent:         "",
		ScreenshotQuality: 90,
		TypingDelay:       100 * time.Millisecond,
		IdleWindow:        500 * time.Millisecond,
		SearchSelectors: []string{
			"input[type='search']",
			"input[name='q']",
			"input[name='query']",
			"input[name='search']",
			"input.search",
			"#search-input",
			".search-input",
		},
	}
}

// DefaultSessionsConfig 返回默认会话存储配置
func DefaultSessionsConfig() SessionsConfig {
	return SessionsConfig{
		Dir: "sessions",
	}
}

// DefaultInferenceConfig 返回默认推理服务器配置
func DefaultInferenceConfig() InferenceConfig {
	home, _ := os.UserHomeDir()
	return InferenceConfig{
		ServerDir:      filepath.Join(home, "llama.cpp"),
		ModelsDir:      filepath.Join(home, "llama_models"),
		Model:          "qwen2.5-7b-instruct.Q4_K_M.gguf",
		Host:           "127.0.0.1",
		Port:           8090,
		ContextSize:    4096,
		Threads:        0,
		StartupTimeout: 30 * time.Second,
		StopTimeout:    5 * time.Second,
		PollInterval:   250 * time.Millisecond,
	}
}

// DefaultExtractionConfig 返回默认提取配置
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		Model:       "qwen2:7b",
		BaseURL:     "http://localhost:11434",
		APIKey:      "",
		Timeout:     2 * time.Minute,
		HTMLBudget:  10000,
		Temperature: 0,
	}
}

// DefaultVisionConfig 返回默认视觉提取配置
func DefaultVisionConfig() VisionConfig {
	return VisionConfig{
		APIKey:     "",
		BaseURL:    "https://api.getproxy.ai",
		Model:      "proxy-lite-3b",
		MaxResults: 5,
		Homepage:   "https://en.wikipedia.org",
		Timeout:    2 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

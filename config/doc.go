// Package config 提供 webglue 的配置管理功能。
//
// 包含浏览器、会话存储、推理服务器、结构化提取与日志各节的
// 默认值、YAML 文件加载和环境变量覆盖，并保留宿主应用沿用的
// LLAMA_*、OLLAMA_BASE_URL、PROXY_API_KEY 等历史变量名。
package config

// Copyright 2026 webglue Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供 OpenAI 兼容端点的通用适配与辅助能力，是具体 Provider
实现的公共基础层。openaicompat 子包依赖本包完成请求/响应转换、错误映射
与模型列表获取等共享逻辑。

# 核心类型

  - OpenAICompat* 系列 — OpenAI 兼容 API 的通用请求/响应结构体
  - OpenAICompatContentPart — 多模态消息的内容分片（text / image_url）
  - OpenAICompatResponseFormat — JSON 输出模式约束

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 types.Error（含 Retryable 标记）
  - ConvertMessagesToOpenAI — 统一消息格式转换，图像内联为 data URL
  - ToLLMChatResponse — OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
  - ListModelsOpenAICompat — 通用模型列表获取

# 支持能力

  - 统一错误语义映射（401/403/429/5xx/529 等）
  - OpenAI 兼容格式的请求/响应序列化
  - Bearer Token 标准认证 header 构建
*/
package providers

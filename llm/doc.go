// 版权所有 2026 webglue Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的对话模型接入层，屏蔽本地与远端 OpenAI 兼容端点
在鉴权、错误语义上的差异，对上层暴露一致的请求与响应模型。

# 概述

webglue 需要和三类端点对话：本地 llama.cpp 推理服务器、Ollama 守护进程、
以及远端视觉模型代理。它们都讲 OpenAI Chat Completions 协议，本包定义
统一的消息、请求、响应类型以及 [Provider] 接口，具体 HTTP 适配在
providers/openaicompat 子包中实现。

# 核心接口

  - [Provider]：对话端点接口，提供 Completion / ListModels /
    HealthCheck / Name

# 核心类型

  - [Message]：对话消息，支持通过 Images 附加图像内容
  - [ImageContent]：图像内容（url 或 base64）
  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [Model]：模型列表条目
  - [HealthStatus]：健康检查状态

# 典型用法

	p := openaicompat.New(openaicompat.Config{
	    ProviderName: "ollama",
	    BaseURL:      "http://localhost:11434",
	    DefaultModel: "qwen2:7b",
	}, logger)

	resp, err := p.Completion(ctx, &llm.ChatRequest{
	    Messages: []llm.Message{llm.NewUserMessage("hello")},
	})
*/
package llm

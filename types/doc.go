// 版权所有 2026 webglue Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 types 提供 webglue 各命令共享的底层类型，不依赖任何内部包。

# 核心类型

  - [Result] — 每次命令调用在 stdout 输出的统一 JSON 信封
  - [ServerStatus] — 推理服务器生命周期命令的状态信封
  - [Error] / [ErrorCode] — 结构化错误体系，含 HTTP 状态码、
    Retryable 与 Provider 标记

# 主要能力

  - 信封写出：WriteJSON（紧凑或缩进）与 Emit（stdout 或文件）
  - 错误工具链：NewError / NewErrorf / WithCause / IsRetryable /
    GetErrorCode

宿主应用只读信封的 success 字段与进程退出码；诊断日志一律走
stderr，stdout 保留给单个结果文档。
*/
package types

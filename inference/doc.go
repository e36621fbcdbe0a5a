// Package inference 管理本地 llama.cpp 推理服务器的生命周期：
// 端口探测、可执行文件与模型文件发现、脱离终端的启动、
// 优雅停止（超时后升级为强制终止），以及通过 OpenAI 兼容的
// /v1/models 端点确认服务器身份。
//
// 服务器没有落盘的运行清单，"是否在运行"永远通过探测套接字与
// HTTP 端点重新推导。所有等待都是带上限的条件轮询，而非固定休眠。
package inference

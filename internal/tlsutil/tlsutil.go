// Package tlsutil 构造出站 HTTP 客户端。
// 出站目标只有三类：本地 llama.cpp、本地 Ollama，以及可选的远端
// 视觉提取端点；前两者走明文 HTTP，远端强制 TLS 1.2+。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// SecureHTTPClient 返回带整体超时的客户端。进程短命、单端点低并发，
// 不做连接池调优；TLS 设置仅对 https 端点生效。
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// Package tlsutil 为运行时的出站 HTTP 客户端（模型服务、Web 工具）和 Redis
// 连接提供统一的 TLS 配置：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// Config 返回加固后的 TLS 配置
func Config() *tls.Config {
	suites := make([]uint16, len(aeadSuites))
	copy(suites, aeadSuites)
	return &tls.Config{MinVersion: tls.VersionTLS12, CipherSuites: suites}
}

// ClientOptions 出站 HTTP 客户端参数
type ClientOptions struct {
	Timeout      time.Duration
	MaxIdleConns int
	UserAgent    string
}

// NewHTTPClient 创建带 TLS 加固的 HTTP 客户端；零值参数使用默认值
func NewHTTPClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 50
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: Config(),
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        opts.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.UserAgent != "" {
		rt = userAgentTransport{next: rt, ua: opts.UserAgent}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

type userAgentTransport struct {
	next http.RoundTripper
	ua   string
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.next.RoundTrip(req)
}

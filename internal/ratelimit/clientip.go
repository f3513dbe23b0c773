package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey 解析客户端标识：X-Forwarded-For 的第一个值 > X-Real-IP > 连接源地址。
// 限流和点击记录都必须使用这个函数，保证同一个请求得到同一个键
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

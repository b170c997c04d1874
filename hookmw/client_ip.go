package hookmw

import (
	"net/http"
	"strings"

	"github.com/cmstar/go-logx"
)

// clientIP 获取发起请求的客户端 IP ，用于日志。
// 若应用位于代理之后，可在路由上使用 chi 的 middleware.RealIP ，它会把 X-Forwarded-For 等头给出的客户端原始 IP 写入 RemoteAddr 。
func clientIP(r *http.Request) string {
	// 一般是“IP:PORT”， IPv6 下本地地址是“[::1]:port”。
	ip := r.RemoteAddr

	// 统一本地地址，便于统计分析。
	ip = strings.Replace(ip, "::1", "127.0.0.1", 1)

	// 带方括号的 IPv6 地址，端口在方括号之后。
	if strings.HasPrefix(ip, "[") {
		if end := strings.IndexByte(ip, ']'); end > 0 {
			return ip[1:end]
		}
		return ip
	}

	// 除 IPv6 外，冒号之后是端口。没有方括号的 IPv6 地址含多个冒号，原样返回。
	if strings.Count(ip, ":") == 1 {
		ip = ip[:strings.IndexByte(ip, ':')]
	}

	return ip
}

// requestLogger 在每条日志后追加请求相关的字段。
type requestLogger struct {
	logx.Logger
	fields []any
}

var _ logx.Logger = (*requestLogger)(nil)

func withRequestFields(logger logx.Logger, r *http.Request) *requestLogger {
	return &requestLogger{
		Logger: logger,
		fields: []any{"IP", clientIP(r), "Method", r.Method},
	}
}

func (l *requestLogger) Log(level logx.Level, message string, keyValues ...interface{}) error {
	kv := make([]interface{}, 0, len(keyValues)+len(l.fields))
	kv = append(kv, keyValues...)
	kv = append(kv, l.fields...)
	return l.Logger.Log(level, message, kv...)
}

func (l *requestLogger) LogFn(level logx.Level, messageFactory func() (string, []interface{})) error {
	return l.Logger.LogFn(level, func() (string, []interface{}) {
		m, kv := messageFactory()
		return m, append(kv, l.fields...)
	})
}

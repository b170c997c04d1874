package hookmw

import (
	"github.com/labstack/echo/v4"
)

// NewEcho 创建 echo 形式的中间件。配置错误时返回错误。
//
// 开启 [Config.TrustForwardedProto] 时，协议通过 [echo.Context.Scheme] 获取，它会依次检查 TLS 状态和
// X-Forwarded-Proto 等代理头。
func NewEcho(cfg Config) (echo.MiddlewareFunc, error) {
	g, err := newGuard(cfg)
	if err != nil {
		return nil, err
	}

	trustScheme := cfg.TrustForwardedProto
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			protocol := ""
			if trustScheme {
				protocol = c.Scheme()
			}

			r := c.Request()
			v := g.inspect(r, protocol)
			if !v.pass {
				body := g.deniedBody(v)
				if body == "" {
					return c.NoContent(v.status)
				}
				return c.String(v.status, body)
			}

			c.SetRequest(r.WithContext(withParams(r.Context(), v.params)))
			return next(c)
		}
	}, nil
}

// MustNewEcho 同 [NewEcho] ，但配置错误时 panic 。
func MustNewEcho(cfg Config) echo.MiddlewareFunc {
	mw, err := NewEcho(cfg)
	if err != nil {
		panic(err)
	}
	return mw
}

package hookmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// New 创建 net/http 形式的中间件，也可直接用于 chi 的 [chi.Router.Use] 。
// 配置错误（如缺少 AuthToken 、 URL 覆盖值不合法）时返回错误。
func New(cfg Config) (func(http.Handler) http.Handler, error) {
	g, err := newGuard(cfg)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := g.inspect(r, "")
			if !v.pass {
				writeDenied(w, v.status, g.deniedBody(v))
				return
			}

			next.ServeHTTP(w, r.WithContext(withParams(r.Context(), v.params)))
		})
	}, nil
}

// MustNew 同 [New] ，但配置错误时 panic 。
func MustNew(cfg Config) func(http.Handler) http.Handler {
	mw, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return mw
}

// Mount 在 chi 路由上注册一个 Webhook 地址，同时响应 GET 和 POST 请求，请求需先通过签名校验。
// 配置错误时 panic 。
//
// pattern 为相对路径，以 / 开头。参考 https://go-chi.io/#/pages/routing
func Mount(r chi.Router, pattern string, cfg Config, handler http.HandlerFunc) {
	guarded := r.With(MustNew(cfg))

	// 平台可配置以 GET 或 POST 方式回调，都注册一遍。
	guarded.Get(pattern, handler)
	guarded.Post(pattern, handler)
}

func writeDenied(w http.ResponseWriter, status int, body string) {
	if body == "" {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

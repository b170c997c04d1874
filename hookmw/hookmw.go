// hookmw 提供 Webhook 签名校验的中间件，适用于 net/http 、 chi 和 echo 。
//
// 签名不正确的请求被拒绝，返回 HTTP 403 ， body 为空；开启 [twiliohook.ValidationOptions.Debug] 时，
// body 中给出描述信息。签名正确的请求被原样转发，原始 body 仍可被后续的处理过程读取，
// 解析得到的表单参数可通过 [ParamsFromContext] 获取。
package hookmw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cmstar/go-errx"
	"github.com/cmstar/go-logx"
	"github.com/cmstar/go-twiliohook"
)

// DeniedMessage 是调试模式下，拒绝请求时 body 的第一行。
const DeniedMessage = "Twilio Request Validation Failed."

// Config 是中间件的配置。
type Config struct {
	// AuthToken 是校验签名所用的密钥。为空时读取环境变量 [twiliohook.EnvAuthToken] 。
	// 给定了 AuthTokenFinder 时，此字段被忽略。
	AuthToken string

	// AuthTokenFinder 根据请求的 AccountSid 参数获取 AuthToken ，用于一个应用服务多个账户。可为 nil 。
	AuthTokenFinder twiliohook.AuthTokenFinder

	// Options 是校验选项，通常基于 [twiliohook.DefaultValidationOptions] 修改。
	Options twiliohook.ValidationOptions

	// Logger 用于记录日志。为 nil 时通过标准库 log 包输出。
	Logger logx.Logger

	// TrustForwardedProto 为 true 时，请求的协议优先从 X-Forwarded-Proto 等代理头获取。
	TrustForwardedProto bool

	// MaxBodySize 是允许读取的 body 的最大字节数，小于等于 0 时使用 [twiliohook.DefaultMaxBodySize] 。
	MaxBodySize int64
}

type paramsKey struct{}

// ParamsFromContext 获取通过校验的请求的表单参数。若当前请求没有经过中间件，返回 ok=false 。
func ParamsFromContext(ctx context.Context) (params url.Values, ok bool) {
	params, ok = ctx.Value(paramsKey{}).(url.Values)
	return
}

func withParams(ctx context.Context, params url.Values) context.Context {
	return context.WithValue(ctx, paramsKey{}, params)
}

// guard 承载 net/http 和 echo 中间件共用的校验过程。
type guard struct {
	finder      twiliohook.AuthTokenFinder
	options     twiliohook.ValidationOptions
	logger      logx.Logger
	requestOpts twiliohook.HttpRequestOptions
}

// verdict 是对一个请求的处理结论。
type verdict struct {
	pass    bool
	status  int
	message string
	params  url.Values
}

func newGuard(cfg Config) (*guard, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	finder := cfg.AuthTokenFinder
	if finder == nil {
		token := cfg.AuthToken
		if token == "" {
			token = twiliohook.AuthTokenFromEnv()
		}

		if token == "" {
			err := fmt.Errorf("AuthToken is required, set Config.AuthToken or the %s environment variable", twiliohook.EnvAuthToken)
			return nil, errx.Wrap("hookmw", err)
		}

		finder = twiliohook.StaticAuthToken(token)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logx.NewStdLogger(nil)
	}

	return &guard{
		finder:  finder,
		options: cfg.Options,
		logger:  logger,
		requestOpts: twiliohook.HttpRequestOptions{
			TrustForwardedProto: cfg.TrustForwardedProto,
			MaxBodySize:         cfg.MaxBodySize,
		},
	}, nil
}

// inspect 校验请求。 protocol 非空时，覆盖从请求本身获取到的协议。
func (g *guard) inspect(r *http.Request, protocol string) verdict {
	logger := withRequestFields(g.logger, r)

	req, err := twiliohook.NewHttpRequest(r, g.requestOpts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, twiliohook.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}

		logger.Log(logx.LevelError, "read webhook request", "URL", r.RequestURI, "Error", errx.Describe(err))
		return verdict{status: status, message: err.Error()}
	}

	if protocol != "" {
		req = protocolOverride{req, protocol}
	}

	var res twiliohook.ValidationResult
	authToken := g.finder.GetAuthToken(twiliohook.AccountSidOf(req))
	if authToken == "" {
		res = twiliohook.ValidationResult{Type: twiliohook.ValidationResultType_UnknownAccount}
	} else {
		res = twiliohook.CheckIncomingRequest(req, authToken, g.options)
	}

	if !twiliohook.NewValidator(logger).Report(res, authToken, g.options) {
		return verdict{status: http.StatusForbidden, message: res.Type.String()}
	}

	return verdict{pass: true, params: req.Body()}
}

// deniedBody 返回拒绝请求时的 body 。非调试模式下为空。
func (g *guard) deniedBody(v verdict) string {
	if !g.options.Debug {
		return ""
	}
	return DeniedMessage + "\n" + v.message
}

// protocolOverride 替换 [twiliohook.Request] 的协议。
type protocolOverride struct {
	twiliohook.Request
	protocol string
}

func (x protocolOverride) Protocol() string {
	return x.protocol
}

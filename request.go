package twiliohook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/cmstar/go-errx"
)

// Request 定义校验过程所需的、来自一个入站请求的数据。
// 各 Web 框架各自实现此接口一次即可接入校验逻辑，校验过程不会修改请求。
type Request interface {
	// Method 返回 HTTP 方法，如 GET 、 POST 。
	Method() string

	// Protocol 返回请求的协议， http 或 https 。
	Protocol() string

	// Host 返回请求的 Host ，非默认端口时包含端口。
	Host() string

	// PathAndQuery 返回请求的路径和 query 部分，不含 fragment ，按请求行原样给出。
	PathAndQuery() string

	// TwilioSignature 返回 X-Twilio-Signature 头的值。请求没有此头时返回 ok=false 。
	TwilioSignature() (signature string, ok bool)

	// Body 返回解析后的表单参数。非表单请求返回空集。
	Body() url.Values

	// RawBody 返回 body 原文，仅在 body 哈希模式下需要。请求没有 body 时返回 ok=false 。
	RawBody() (body string, ok bool)
}

// ErrBodyTooLarge 表示请求的 body 超过了允许的最大长度。
var ErrBodyTooLarge = errors.New("request body too large")

// HttpRequestOptions 是 [NewHttpRequest] 的选项。
type HttpRequestOptions struct {
	// TrustForwardedProto 为 true 时，协议优先从 X-Forwarded-Proto 头读取。
	// 仅当应用位于可信的反向代理之后时开启。
	TrustForwardedProto bool

	// MaxBodySize 是允许读取的 body 的最大字节数，小于等于 0 时使用 [DefaultMaxBodySize] 。
	MaxBodySize int64
}

type httpRequest struct {
	r        *http.Request
	protocol string
	body     []byte
	hasBody  bool
	form     url.Values
}

var _ Request = (*httpRequest)(nil)

// NewHttpRequest 基于 [http.Request] 创建 [Request] 。
//
// body 会被一次性读取， [http.Request.Body] 随即被替换为新的、未被读取的 [bytes.Reader] ，
// 以便后续的处理过程仍能读到原始的 body 。
// body 超过 [HttpRequestOptions.MaxBodySize] 时，返回包装了 [ErrBodyTooLarge] 的错误。
func NewHttpRequest(r *http.Request, opts HttpRequestOptions) (Request, error) {
	req := &httpRequest{
		r:        r,
		protocol: resolveProtocol(r, opts.TrustForwardedProto),
	}

	if r.Body != nil && r.Body != http.NoBody {
		maxSize := opts.MaxBodySize
		if maxSize <= 0 {
			maxSize = DefaultMaxBodySize
		}

		body, err := repeatableReadBody(r, maxSize)
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, err
		}
		if err != nil {
			return nil, errx.Wrap("twiliohook: read body", err)
		}

		req.body = body
		req.hasBody = true
	}

	req.form = parseFormBody(r.Header.Get(HttpHeaderContentType), req.body)
	return req, nil
}

func (x *httpRequest) Method() string {
	return x.r.Method
}

func (x *httpRequest) Protocol() string {
	return x.protocol
}

func (x *httpRequest) Host() string {
	if x.r.Host != "" {
		return x.r.Host
	}
	if x.r.URL != nil {
		return x.r.URL.Host
	}
	return ""
}

func (x *httpRequest) PathAndQuery() string {
	// 服务端收到的请求， RequestURI 是请求行的原文，最接近平台签名时使用的串。
	// 代理形式的请求行（ absolute-form ）或客户端构造的请求则退回到 URL 。
	uri := x.r.RequestURI
	if !strings.HasPrefix(uri, "/") {
		if x.r.URL == nil {
			return "/"
		}
		uri = x.r.URL.RequestURI()
	}

	if hash := strings.IndexByte(uri, '#'); hash >= 0 {
		uri = uri[:hash]
	}
	return uri
}

func (x *httpRequest) TwilioSignature() (string, bool) {
	values := x.r.Header.Values(HttpHeaderTwilioSignature)

	// 多个签名头是不合规的请求，当作没有签名处理。
	if len(values) != 1 {
		return "", false
	}
	return values[0], true
}

func (x *httpRequest) Body() url.Values {
	return x.form
}

func (x *httpRequest) RawBody() (string, bool) {
	return string(x.body), x.hasBody
}

// resolveProtocol 获取请求的协议。
// X-Forwarded-Proto 可能经过多层代理，用逗号分割，第一段是客户端原始使用的协议。
func resolveProtocol(r *http.Request, trustForwardedProto bool) string {
	if trustForwardedProto {
		if v := r.Header.Get(HttpHeaderForwardedProto); v != "" {
			parts := strings.Split(v, ",")
			proto := strings.ToLower(strings.TrimSpace(parts[0]))
			if proto == "http" || proto == "https" {
				return proto
			}
		}
	}

	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// parseFormBody 仅在 Content-Type 为表单时解析 body 。格式错误时返回空集，使后续签名比对失败。
func parseFormBody(contentType string, body []byte) url.Values {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != ContentTypeForm || len(body) == 0 {
		return url.Values{}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return url.Values{}
	}
	return values
}

// 读取整个 [http.Request.Body] 并返回读取到数据。
// 读取完毕后，原 body 会被关闭， Body 字段被替换为新的、未被读取的 [bytes.Reader] ，其包含读取到数据。
// 此方法用于处理 body 的重复读取。
func repeatableReadBody(r *http.Request, maxSize int64) ([]byte, error) {
	// 多读一个字节用于判断是否超长， maxSize 已是最大值时不能再加。
	limit := maxSize
	if limit < math.MaxInt64 {
		limit++
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return nil, err
	}

	err = r.Body.Close()
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxSize)
	}

	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// hooktest 包提供用于测试 Webhook 处理过程的辅助方法，可以构造带有正确签名的回调请求。
package hooktest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/cmstar/go-twiliohook"
)

// RequestSetup 用于设置测试用的回调请求。
type RequestSetup struct {
	HttpMethod string     // HTTP 请求的方法， GET/POST 。若未给定值，默认为 POST 。
	Params     url.Values // 回调参数。 POST 时作为表单 body ； GET 时追加到 URL 的 query 上。
	JsonBody   string     // JSON 回调的 body 。给定值时 Params 被忽略， URL 上追加 bodySHA256 参数。
	Signature  string     // 指定签名头的值。若未给定值，使用计算得到的签名。
	NoHeader   bool       // 为 true 时不添加签名头。
}

// SignURL 返回平台实际回调的 URL 及其签名。
// rawURL 是平台上配置的回调地址，返回的 URL 在 GET 或 JSON 回调时会追加 query 参数。
func SignURL(authToken, rawURL string, setup RequestSetup) (webhookURL, signature string) {
	switch {
	case setup.JsonBody != "":
		webhookURL = appendQuery(rawURL, twiliohook.QueryParamBodySHA256+"="+twiliohook.BodyHash([]byte(setup.JsonBody)))
		signature = twiliohook.ComputeSignatureValues(authToken, webhookURL, nil)

	case httpMethodOf(setup) == http.MethodGet:
		webhookURL = rawURL
		if len(setup.Params) > 0 {
			webhookURL = appendQuery(rawURL, setup.Params.Encode())
		}
		signature = twiliohook.ComputeSignatureValues(authToken, webhookURL, nil)

	default:
		webhookURL = rawURL
		signature = twiliohook.ComputeSignatureValues(authToken, webhookURL, setup.Params)
	}

	return
}

// NewSignedRequest 基于 httptest 包创建一个模拟平台回调的请求。
// rawURL 应为绝对地址，其 scheme 决定请求是否带有 TLS 状态。
func NewSignedRequest(authToken, rawURL string, setup RequestSetup) *http.Request {
	webhookURL, signature := SignURL(authToken, rawURL, setup)
	method := httpMethodOf(setup)

	var body io.Reader
	contentType := ""
	switch {
	case setup.JsonBody != "":
		body = strings.NewReader(setup.JsonBody)
		contentType = twiliohook.ContentTypeJson

	case method != http.MethodGet:
		body = strings.NewReader(setup.Params.Encode())
		contentType = twiliohook.ContentTypeForm
	}

	req := httptest.NewRequest(method, webhookURL, body)
	if contentType != "" {
		req.Header.Set(twiliohook.HttpHeaderContentType, contentType)
	}

	if !setup.NoHeader {
		if setup.Signature != "" {
			signature = setup.Signature
		}
		req.Header.Set(twiliohook.HttpHeaderTwilioSignature, signature)
	}

	return req
}

func httpMethodOf(setup RequestSetup) string {
	if setup.HttpMethod == "" {
		return http.MethodPost
	}
	return setup.HttpMethod
}

func appendQuery(rawURL, query string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}

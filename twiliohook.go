package twiliohook

const (
	// HttpHeaderTwilioSignature 是平台放置签名的 HTTP 头。
	HttpHeaderTwilioSignature = "X-Twilio-Signature"

	// HttpHeaderContentType 对应 HTTP 头中的 Content-Type 字段。
	HttpHeaderContentType = "Content-Type"

	// HttpHeaderForwardedProto 是反向代理记录原始协议的 HTTP 头。
	HttpHeaderForwardedProto = "X-Forwarded-Proto"

	// ContentTypeForm 对应 Content-Type: application/x-www-form-urlencoded 的值。
	ContentTypeForm = "application/x-www-form-urlencoded"

	// ContentTypeJson 对应 Content-Type: application/json 的值。
	ContentTypeJson = "application/json"

	// QueryParamBodySHA256 是 JSON 回调中，平台在 URL 上携带 body 哈希值的参数名称。
	QueryParamBodySHA256 = "bodySHA256"

	// DefaultProtocol 是 [DefaultValidationOptions] 使用的协议。
	// 平台通常以 https 调用 Webhook ，而 TLS 多在代理上卸载，应用看到的往往是 http 。
	DefaultProtocol = "https"

	// EnvAuthToken 是存放 AuthToken 的环境变量名称。
	EnvAuthToken = "TWILIO_AUTH_TOKEN"

	// DefaultMaxBodySize 是读取请求 body 时默认允许的最大字节数。
	DefaultMaxBodySize = 10 * 1024 * 1024
)

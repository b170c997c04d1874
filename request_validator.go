package twiliohook

import (
	"net/url"
	"strings"

	"github.com/cmstar/go-logx"
)

// ValidationResultType 是校验结果的类型。
type ValidationResultType int

const (
	ValidationResultType_OK                ValidationResultType = iota // 校验通过。
	ValidationResultType_MissingSignature                              // 请求没有签名头。
	ValidationResultType_SignatureMismatch                             // 签名与全部候选 URL 的签名均不匹配。
	ValidationResultType_BodyHashMismatch                              // 签名匹配，但 body 的哈希与 URL 上的 bodySHA256 不一致。
	ValidationResultType_MissingRawBody                                // body 哈希模式下，请求没有 body 。
	ValidationResultType_InvalidURL                                    // 给定的 URL 覆盖值不能解析，这是配置错误。
	ValidationResultType_UnknownAccount                                // 找不到请求所属账户的 AuthToken 。
)

// String 返回结果类型的描述。
func (t ValidationResultType) String() string {
	switch t {
	case ValidationResultType_OK:
		return "ok"
	case ValidationResultType_MissingSignature:
		return "missing signature header"
	case ValidationResultType_SignatureMismatch:
		return "signature mismatch"
	case ValidationResultType_BodyHashMismatch:
		return "body hash mismatch"
	case ValidationResultType_MissingRawBody:
		return "missing raw body"
	case ValidationResultType_InvalidURL:
		return "invalid webhook URL"
	case ValidationResultType_UnknownAccount:
		return "unknown account"
	default:
		return "unknown"
	}
}

// ValidationResult 表示一次校验的结果和失败原因（当有错误时）。
// 它只描述签名本身是否正确，不受 [ValidationOptions.LogOnly] 影响。
type ValidationResult struct {
	Type       ValidationResultType // 校验结果。
	URL        string               // 推导得到的回调 URL 。
	Signature  string               // 请求给出的签名。
	Candidates []string             // 已尝试的候选 URL 。
	Cause      error                // 结果为 [ValidationResultType_InvalidURL] 时，记录原因。
}

// OK 判断签名是否正确。
func (r ValidationResult) OK() bool {
	return r.Type == ValidationResultType_OK
}

// CheckRequest 校验 signature 是否是平台对 rawURL 和 params 的签名。不记录日志。
// 依次计算每个候选 URL 的签名并以固定时间比较，任一匹配即返回。
func CheckRequest(authToken, signature, rawURL string, params map[string]string, opts ValidationOptions) ValidationResult {
	return CheckRequestValues(authToken, signature, rawURL, paramsToValues(params), opts)
}

// CheckRequestValues 与 [CheckRequest] 相同，但参数表允许同名参数出现多次。
func CheckRequestValues(authToken, signature, rawURL string, params url.Values, opts ValidationOptions) ValidationResult {
	res := ValidationResult{
		URL:        rawURL,
		Signature:  signature,
		Candidates: CandidateURLs(rawURL, opts),
	}

	for _, candidate := range res.Candidates {
		expected := ComputeSignatureValues(authToken, candidate, params)
		if SecureCompare(expected, signature) {
			res.Type = ValidationResultType_OK
			return res
		}
	}

	res.Type = ValidationResultType_SignatureMismatch
	return res
}

// CheckRequestWithBody 校验 JSON 回调：签名需对不带参数的 rawURL 成立，
// 且 body 的 SHA-256 需等于 rawURL 上的 bodySHA256 参数。两项检查相互独立，都会执行。
// 哈希值本身由 URL 的签名保证未被篡改。不记录日志。
func CheckRequestWithBody(authToken, signature, rawURL, body string, opts ValidationOptions) ValidationResult {
	res := CheckRequestValues(authToken, signature, rawURL, nil, opts)

	expectedHash, _ := bodyHashFromURL(rawURL)
	hashOK := ValidateBody([]byte(body), expectedHash)

	if res.OK() && !hashOK {
		res.Type = ValidationResultType_BodyHashMismatch
	}
	return res
}

// CheckIncomingRequest 校验一个入站请求。不记录日志。
//
// 回调 URL 由 [ValidationOptions] 和请求推导。若 URL 带有 bodySHA256 参数，按 JSON 回调校验 body 原文；
// 否则按表单回调校验解析后的参数。缺少签名头，或 body 哈希模式下缺少 body 时，校验不通过。
func CheckIncomingRequest(req Request, authToken string, opts ValidationOptions) ValidationResult {
	webhookURL, err := opts.webhookURLOf(req)
	if err != nil {
		return ValidationResult{
			Type:  ValidationResultType_InvalidURL,
			URL:   opts.URL,
			Cause: err,
		}
	}

	signature, ok := req.TwilioSignature()
	if !ok {
		return ValidationResult{
			Type: ValidationResultType_MissingSignature,
			URL:  webhookURL,
		}
	}

	if strings.Contains(webhookURL, QueryParamBodySHA256) {
		body, ok := req.RawBody()
		if !ok {
			return ValidationResult{
				Type:      ValidationResultType_MissingRawBody,
				URL:       webhookURL,
				Signature: signature,
			}
		}
		return CheckRequestWithBody(authToken, signature, webhookURL, body, opts)
	}

	return CheckRequestValues(authToken, signature, webhookURL, req.Body(), opts)
}

// Validator 执行校验并记录失败的日志。
// 它不持有 AuthToken ，每次调用时给定，因此同一个实例可服务于多个账户，并可被并发使用。
type Validator struct {
	// Logger 用于记录校验失败的日志。为 nil 时不记录日志。
	Logger logx.Logger
}

// NewValidator 创建一个 [Validator] 。
func NewValidator(logger logx.Logger) *Validator {
	return &Validator{Logger: logger}
}

// ValidateRequest 校验 signature 是否是平台对 rawURL 和 params 的签名。
// 校验失败时记录警告日志；若 [ValidationOptions.LogOnly] 为 true ，失败时也返回 true 。
func (v *Validator) ValidateRequest(authToken, signature, rawURL string, params map[string]string, opts ValidationOptions) bool {
	res := CheckRequest(authToken, signature, rawURL, params, opts)
	return v.Report(res, authToken, opts)
}

// ValidateRequestValues 与 [Validator.ValidateRequest] 相同，但参数表允许同名参数出现多次。
func (v *Validator) ValidateRequestValues(authToken, signature, rawURL string, params url.Values, opts ValidationOptions) bool {
	res := CheckRequestValues(authToken, signature, rawURL, params, opts)
	return v.Report(res, authToken, opts)
}

// ValidateRequestWithBody 校验 JSON 回调，见 [CheckRequestWithBody] 。
// 校验失败时记录警告日志；若 [ValidationOptions.LogOnly] 为 true ，失败时也返回 true 。
func (v *Validator) ValidateRequestWithBody(authToken, signature, rawURL, body string, opts ValidationOptions) bool {
	res := CheckRequestWithBody(authToken, signature, rawURL, body, opts)
	return v.Report(res, authToken, opts)
}

// ValidateIncomingRequest 校验一个入站请求，见 [CheckIncomingRequest] 。
// 校验失败时记录警告日志；若 [ValidationOptions.LogOnly] 为 true ，失败时也返回 true 。
func (v *Validator) ValidateIncomingRequest(req Request, authToken string, opts ValidationOptions) bool {
	res := CheckIncomingRequest(req, authToken, opts)
	return v.Report(res, authToken, opts)
}

// Report 记录校验结果并给出最终结论。
// 校验失败时输出日志，包含已尝试的候选 URL 和 AuthToken 的末尾几位（不会输出完整的 AuthToken ）。
// 返回 res 是否通过；若 [ValidationOptions.LogOnly] 为 true ，总是返回 true 。
func (v *Validator) Report(res ValidationResult, authToken string, opts ValidationOptions) bool {
	if res.OK() {
		return true
	}

	if v.Logger != nil {
		level := logx.LevelWarn
		if res.Type == ValidationResultType_InvalidURL {
			level = logx.LevelError
		}

		keyValues := []any{
			"Reason", res.Type.String(),
			"URL", res.URL,
			"Candidates", strings.Join(res.Candidates, " "),
			"TokenSuffix", tokenSuffix(authToken),
			"Enforced", opts.Enforced(),
		}
		if res.Cause != nil {
			keyValues = append(keyValues, "Error", res.Cause.Error())
		}
		v.Logger.Log(level, "twilio request validation failed", keyValues...)

		if opts.Debug {
			v.Logger.Log(logx.LevelDebug, "twilio request validation detail",
				"Signature", res.Signature,
				"CandidateCount", len(res.Candidates),
			)
		}
	}

	return opts.LogOnly
}

// tokenSuffix 返回 AuthToken 末尾的几位，用于日志中区分账户。 AuthToken 太短时以星号代替。
func tokenSuffix(authToken string) string {
	const n = 4
	if len(authToken) < n*3 {
		return "****"
	}
	return "..." + authToken[len(authToken)-n:]
}

// defaultValidator 是包级别的校验方法使用的 [Validator] ，通过标准库 log 包输出日志。
var defaultValidator = NewValidator(logx.NewStdLogger(nil))

// ValidateRequest 使用默认的 [Validator] 执行 [Validator.ValidateRequest] 。
func ValidateRequest(authToken, signature, rawURL string, params map[string]string, opts ValidationOptions) bool {
	return defaultValidator.ValidateRequest(authToken, signature, rawURL, params, opts)
}

// ValidateRequestWithBody 使用默认的 [Validator] 执行 [Validator.ValidateRequestWithBody] 。
func ValidateRequestWithBody(authToken, signature, rawURL, body string, opts ValidationOptions) bool {
	return defaultValidator.ValidateRequestWithBody(authToken, signature, rawURL, body, opts)
}

// ValidateIncomingRequest 使用默认的 [Validator] 执行 [Validator.ValidateIncomingRequest] 。
func ValidateIncomingRequest(req Request, authToken string, opts ValidationOptions) bool {
	return defaultValidator.ValidateIncomingRequest(req, authToken, opts)
}

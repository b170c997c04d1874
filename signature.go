package twiliohook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
)

/* 当前文件提供签名算法的实现。 */

// HmacSha1Base64 计算 hmac-sha1 ，返回标准 base64 格式（带填充）。
func HmacSha1Base64(secret, data []byte) string {
	h := hmac.New(sha1.New, secret)
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ComputeSignature 计算平台对给定 URL 和参数表的签名。
//   - authToken 是 HMAC-SHA1 的密钥。
//   - rawURL 是平台回调的完整 URL ，其中的 userinfo 部分不参与签名。
//   - params 是 POST 表单参数； GET 请求或 JSON 回调时为空。
//
// 待签名串由 URL 原文和排序后的参数拼接而成，见 [BuildDataToSign] 。
func ComputeSignature(authToken, rawURL string, params map[string]string) string {
	return ComputeSignatureValues(authToken, rawURL, paramsToValues(params))
}

// ComputeSignatureValues 与 [ComputeSignature] 相同，但参数表允许同名参数出现多次。
func ComputeSignatureValues(authToken, rawURL string, params url.Values) string {
	data := BuildDataToSign(rawURL, params)
	return HmacSha1Base64([]byte(authToken), data)
}

// BuildDataToSign 构建待签名串：
//   - 以去掉 userinfo 后的 URL 原文开头，不做任何转义或规范化。
//   - 参数按名称的字节顺序升序排列，依次紧密拼接“名称”和“值”，无分隔符，不做 URL 编码。
//   - 同名参数出现多次时，其各个值按字节顺序升序排列，每个值都拼接一次“名称”和“值”。
//
// 带有 bodySHA256 参数的 URL 对应 JSON 回调，其参数表总是空的，待签名串即为 URL 本身。
func BuildDataToSign(rawURL string, params url.Values) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(StripUserinfo(rawURL))

	if len(params) > 0 {
		appendSortedParams(buf, params)
	}

	return buf.Bytes()
}

func appendSortedParams(buf *bytes.Buffer, params url.Values) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		values := params[k]

		// 不修改调用方的 slice 。
		if len(values) > 1 {
			values = append([]string(nil), values...)
			sort.Strings(values)
		}

		for _, v := range values {
			buf.WriteString(k)
			buf.WriteString(v)
		}
	}
}

func paramsToValues(params map[string]string) url.Values {
	if len(params) == 0 {
		return nil
	}

	values := make(url.Values, len(params))
	for k, v := range params {
		values[k] = []string{v}
	}
	return values
}

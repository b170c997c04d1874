package twiliohook

import (
	"crypto/sha256"
	"encoding/hex"
)

// BodyHash 计算 body 的 SHA-256 ，返回小写的 HEX 格式。
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ValidateBody 判断 body 的 SHA-256 是否与平台给出的 expectedHash 一致。比较过程是固定时间的。
func ValidateBody(body []byte, expectedHash string) bool {
	return SecureCompare(BodyHash(body), expectedHash)
}

// bodyHashFromURL 读取 URL 上的 bodySHA256 参数。
func bodyHashFromURL(rawURL string) (string, bool) {
	return lookupQueryParam(rawURL, QueryParamBodySHA256)
}

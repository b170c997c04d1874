package twiliohook

import (
	"net/url"
	"os"
	"strings"
)

// ParamAccountSid 是回调参数中标识账户的参数名称。
const ParamAccountSid = "AccountSid"

// AuthTokenFinder 用于获取绑定到指定账户的 AuthToken ，用于一个应用服务多个账户的场景。
type AuthTokenFinder interface {
	// GetAuthToken 获取绑定到指定 accountSid 的 AuthToken 。
	// 若给定的 accountSid 没有绑定，返回空字符串。
	GetAuthToken(accountSid string) string
}

type authTokenFinderWrapper struct {
	f func(accountSid string) string
}

func (x authTokenFinderWrapper) GetAuthToken(accountSid string) string {
	return x.f(accountSid)
}

// AuthTokenFinderFunc 将给定的函数包装为 [AuthTokenFinder] 。
func AuthTokenFinderFunc(f func(accountSid string) string) AuthTokenFinder {
	return authTokenFinderWrapper{f}
}

// StaticAuthToken 返回一个总是给出同一个 AuthToken 的 [AuthTokenFinder] 。
func StaticAuthToken(authToken string) AuthTokenFinder {
	return AuthTokenFinderFunc(func(string) string { return authToken })
}

// AuthTokenFromEnv 读取环境变量 [EnvAuthToken] 的值。未设置时返回空字符串。
func AuthTokenFromEnv() string {
	return os.Getenv(EnvAuthToken)
}

// AccountSidOf 获取请求所属的账户。
// 表单回调从 body 参数中读取； JSON 回调的 body 不参与签名，从请求的 query 中读取。
// 读取不到时返回空字符串。
func AccountSidOf(req Request) string {
	if sid := req.Body().Get(ParamAccountSid); sid != "" {
		return sid
	}

	if _, rawQuery, ok := strings.Cut(req.PathAndQuery(), "?"); ok {
		// 格式错误时 ParseQuery 仍返回已解析的部分。
		values, _ := url.ParseQuery(rawQuery)
		return values.Get(ParamAccountSid)
	}

	return ""
}

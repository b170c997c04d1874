package twiliohook

import (
	"net/url"
	"strings"
)

/*
当前文件提供 URL 的字节级改写。

这里不使用 net/url 解析再重新输出：它会对 URL 做规范化（转义、大小写等），
而签名要求逐字节还原平台签名时所用的串，RFC 意义上是否正确并不重要。
所有方法都不会失败，遇到无法解析的输入时原样返回，使后续签名比对确定性地失败。
*/

// QueryEncoding 表示 query string 中空格的编码方式。
type QueryEncoding int

const (
	QueryEncodingModern QueryEncoding = iota // 空格编码为 %20 。
	QueryEncodingLegacy                      // 空格编码为 + 。
)

// webhookURL 是按字节切分的 URL 的各个部分，各部分拼接起来即为原始的串。
type webhookURL struct {
	scheme   string // 不含“://”。
	userinfo string // 含末尾的“@”，没有时为空。
	host     string // IPv6 地址含方括号。
	port     string // 含开头的“:”，没有时为空。
	path     string
	query    string // 含开头的“?”，没有时为空。
	fragment string // 含开头的“#”，没有时为空。
}

func (u webhookURL) String() string {
	b := new(strings.Builder)
	b.Grow(len(u.scheme) + 3 + len(u.userinfo) + len(u.host) + len(u.port) + len(u.path) + len(u.query) + len(u.fragment))
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.userinfo)
	b.WriteString(u.host)
	b.WriteString(u.port)
	b.WriteString(u.path)
	b.WriteString(u.query)
	b.WriteString(u.fragment)
	return b.String()
}

// defaultPort 返回 scheme 对应的默认端口，含开头的“:”。
func (u webhookURL) defaultPort() string {
	return ":" + defaultPortOf(u.scheme)
}

// hasDefaultPort 判断 URL 是否显式写了默认端口。只写了冒号而没有端口号的，也视为默认端口。
func (u webhookURL) hasDefaultPort() bool {
	return u.port == ":" || u.port == u.defaultPort()
}

func defaultPortOf(scheme string) string {
	if strings.EqualFold(scheme, "https") {
		return "443"
	}
	return "80"
}

// parseWebhookURL 按字节切分 URL 。格式为：
//
//	scheme://[userinfo@]host[:port][/path][?query][#fragment]
//
// 不做任何转义和规范化。不能识别时返回 ok=false 。
func parseWebhookURL(s string) (u webhookURL, ok bool) {
	idx := strings.Index(s, "://")
	if idx <= 0 || !isValidScheme(s[:idx]) {
		return u, false
	}
	u.scheme = s[:idx]

	rest := s[idx+3:]
	end := strings.IndexAny(rest, "/?#")
	if end == -1 {
		end = len(rest)
	}
	authority, tail := rest[:end], rest[end:]

	// userinfo 中可能含有“@”，以最后一个为准。
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		u.userinfo = authority[:at+1]
		authority = authority[at+1:]
	}

	if strings.HasPrefix(authority, "[") {
		closing := strings.IndexByte(authority, ']')
		if closing == -1 {
			return u, false
		}
		u.host = authority[:closing+1]
		u.port = authority[closing+1:]
		if u.port != "" && u.port[0] != ':' {
			return u, false
		}
	} else if colon := strings.LastIndexByte(authority, ':'); colon >= 0 {
		u.host = authority[:colon]
		u.port = authority[colon:]
	} else {
		u.host = authority
	}

	if u.host == "" || !isDigits(strings.TrimPrefix(u.port, ":")) {
		return u, false
	}

	if hash := strings.IndexByte(tail, '#'); hash >= 0 {
		u.fragment = tail[hash:]
		tail = tail[:hash]
	}

	if question := strings.IndexByte(tail, '?'); question >= 0 {
		u.query = tail[question:]
		tail = tail[:question]
	}
	u.path = tail

	return u, true
}

// 参考 RFC 3986 ： ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ) 。
func isValidScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// 空串也返回 true ，对应“host:”这种只有冒号的写法。
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// rewriteURL 解析 URL 并用 f 修改其部分内容。若 URL 不能解析，原样返回。
func rewriteURL(rawURL string, f func(u *webhookURL)) string {
	u, ok := parseWebhookURL(rawURL)
	if !ok {
		return rawURL
	}
	f(&u)
	return u.String()
}

// StripUserinfo 去掉 URL 中的“user[:pass]@”部分。平台签名时从不包含此部分。
func StripUserinfo(rawURL string) string {
	return rewriteURL(rawURL, func(u *webhookURL) {
		u.userinfo = ""
	})
}

// WithPort 为 URL 加上或去掉 scheme 的默认端口（https 为 443 ，其余为 80 ）。
//   - present 为 true 时，若 URL 没有端口，则加上默认端口。
//   - present 为 false 时，若 URL 的端口是默认端口，则去掉。
//
// 非默认的端口总是保留。 URL 的其余部分逐字节不变。
func WithPort(rawURL string, present bool) string {
	return rewriteURL(rawURL, func(u *webhookURL) {
		if present {
			if u.port == "" || u.port == ":" {
				u.port = u.defaultPort()
			}
		} else if u.hasDefaultPort() {
			u.port = ""
		}
	})
}

// WithTrailingSlash 为 URL 的路径部分加上或去掉末尾的“/”， query 和 fragment 部分不变。
// 去掉时只去掉一个“/”；路径为空时，加上后即为“/”。
func WithTrailingSlash(rawURL string, present bool) string {
	return rewriteURL(rawURL, func(u *webhookURL) {
		hasSlash := strings.HasSuffix(u.path, "/")
		if present && !hasSlash {
			u.path += "/"
		} else if !present && hasSlash {
			u.path = u.path[:len(u.path)-1]
		}
	})
}

// WithoutTrailingSlash 等同于 WithTrailingSlash(rawURL, false) 。
func WithoutTrailingSlash(rawURL string) string {
	return WithTrailingSlash(rawURL, false)
}

// WithQueryEncoding 以给定的方式改写 query string 中的空格，URL 的其余部分不变。
//   - [QueryEncodingModern] 将“+”和未转义的空格改写为 %20 。
//   - [QueryEncodingLegacy] 将 %20 和未转义的空格改写为“+”。
//
// 字面量的加号在 query 中应写作 %2B ，不受影响。
func WithQueryEncoding(rawURL string, enc QueryEncoding) string {
	return rewriteURL(rawURL, func(u *webhookURL) {
		if u.query == "" {
			return
		}

		switch enc {
		case QueryEncodingModern:
			u.query = strings.NewReplacer("+", "%20", " ", "%20").Replace(u.query)
		case QueryEncodingLegacy:
			u.query = strings.NewReplacer("%20", "+", " ", "+").Replace(u.query)
		}
	})
}

// WithScheme 替换 URL 的 scheme 。若 URL 显式写了原 scheme 的默认端口，该端口被一并去掉，
// 以免得到如 http://host:443 的写法；新 scheme 的默认端口由 [WithPort] 处理。
func WithScheme(rawURL, scheme string) string {
	return rewriteURL(rawURL, func(u *webhookURL) {
		if u.hasDefaultPort() {
			u.port = ""
		}
		u.scheme = scheme
	})
}

// lookupQueryParam 从 URL 的 query 部分按名称（大小写敏感）读取第一个参数的值，值会被 URL 解码。
// 参数不存在或值不能解码时返回 ok=false 。
func lookupQueryParam(rawURL, name string) (value string, ok bool) {
	u, parsed := parseWebhookURL(rawURL)
	if !parsed || u.query == "" {
		return "", false
	}

	qs := u.query[1:]
	for qs != "" {
		var param string
		param, qs, _ = strings.Cut(qs, "&")

		k, v, _ := strings.Cut(param, "=")
		if k != name {
			continue
		}

		unescaped, err := url.QueryUnescape(v)
		if err != nil {
			return "", false
		}
		return unescaped, true
	}

	return "", false
}

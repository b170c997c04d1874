package twiliohook

import (
	"fmt"
	"strings"

	"github.com/cmstar/go-errx"
)

// ValidationOptions 是一次校验使用的选项。值类型，每次调用之间互不影响。
//
// 零值表示：强制校验、不输出调试信息、 URL 由请求本身推导、协议使用请求的协议。
// 通常应从 [DefaultValidationOptions] 开始修改。
type ValidationOptions struct {
	// LogOnly 为 true 时，校验失败仍会记录日志，但校验结论总是通过（ fail-open ）。
	// 用于在不阻断流量的情况下逐步上线校验。默认为 false ，即强制校验。
	LogOnly bool

	// Debug 为 true 时，额外输出调试级别的日志；中间件在拒绝请求时，会在 body 中给出描述信息。
	Debug bool

	// URL 指定平台回调使用的完整 URL 。给定时， Host 、 Protocol 和请求本身的地址均被忽略。
	// 必须是绝对地址，应在配置阶段通过 [ValidationOptions.Validate] 校验。
	URL string

	// Host 覆盖请求的 Host 部分，可含端口。为空时使用请求的 Host 。
	Host string

	// Protocol 覆盖请求的协议，取值为 http 或 https 。为空时使用请求的协议。
	Protocol string

	// TestBothProtocols 为 true 时，候选 URL 同时包含 http 和 https 两种协议。
	// 这会使以 http 签名的回调也能通过 https 请求的校验（反之亦然），削弱了签名对协议的约束，默认关闭。
	TestBothProtocols bool
}

// DefaultValidationOptions 返回默认的选项：强制校验，协议为 [DefaultProtocol] 。
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		Protocol: DefaultProtocol,
	}
}

// Enforced 返回是否强制校验，即 !LogOnly 。
func (o ValidationOptions) Enforced() bool {
	return !o.LogOnly
}

// Validate 校验选项本身是否合法，应在配置阶段调用。
// 不合法的 URL 覆盖值是配置错误，不应等到处理请求时才发现。
func (o ValidationOptions) Validate() error {
	if !isSupportedProtocol(o.Protocol) {
		return errx.Wrap("twiliohook: ValidationOptions.Protocol", fmt.Errorf("unsupported protocol %q", o.Protocol))
	}

	if strings.ContainsAny(o.Host, "/?#@ ") {
		return errx.Wrap("twiliohook: ValidationOptions.Host", fmt.Errorf("invalid host %q", o.Host))
	}

	if o.URL != "" {
		if err := validateURLOverride(o.URL); err != nil {
			return errx.Wrap("twiliohook: ValidationOptions.URL", err)
		}
	}

	return nil
}

func isSupportedProtocol(p string) bool {
	return p == "" || p == "http" || p == "https"
}

func validateURLOverride(rawURL string) error {
	u, ok := parseWebhookURL(rawURL)
	if !ok {
		return fmt.Errorf("cannot parse %q as an absolute URL", rawURL)
	}

	if !isSupportedProtocol(u.scheme) {
		return fmt.Errorf("unsupported scheme %q", u.scheme)
	}

	return nil
}

// webhookURLOf 推导平台回调请求所用的 URL 。
// 若给定了 [ValidationOptions.URL] ，直接使用；否则为：
//
//	(Protocol 或请求的协议) + "://" + (Host 或请求的 Host) + 请求的路径和 query
func (o ValidationOptions) webhookURLOf(req Request) (string, error) {
	if o.URL != "" {
		if err := validateURLOverride(o.URL); err != nil {
			return "", err
		}
		return o.URL, nil
	}

	protocol := o.Protocol
	if protocol == "" {
		protocol = req.Protocol()
	}

	host := o.Host
	if host == "" {
		host = req.Host()
	}

	return protocol + "://" + host + req.PathAndQuery(), nil
}

package twiliohook

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/cmstar/go-conv"
	"github.com/cmstar/go-errx"
)

// ParamConv 是用于将回调参数转换为结构体的 [conv.Conv] 实例，它使用大小写不敏感（case-insensitive）的方式匹配字段。
var ParamConv = conv.Conv{
	Conf: conv.Config{
		FieldMatcherCreator: &conv.SimpleMatcherCreator{
			Conf: conv.SimpleMatcherConfig{
				CaseInsensitive: true,
			},
		},
	},
}

// CallParams 是语音呼叫回调的常用参数。
type CallParams struct {
	AccountSid    string
	ApiVersion    string
	CallSid       string
	CallStatus    string
	Called        string
	Caller        string
	Direction     string
	From          string
	To            string
	Digits        string
	SpeechResult  string
	CallDuration  int
	RecordingUrl  string
	ForwardedFrom string
}

// MessageParams 是短信/彩信回调的常用参数。
type MessageParams struct {
	AccountSid          string
	ApiVersion          string
	MessageSid          string
	MessagingServiceSid string
	SmsStatus           string
	From                string
	To                  string
	Body                string
	NumMedia            int
	NumSegments         int
}

// DecodeParams 将回调参数赋值到 out 指向的结构体，同名参数只取第一个值。
// 字段匹配大小写不敏感，结构体中没有对应字段的参数被忽略。 out 必须是非 nil 的结构体指针。
func DecodeParams(values url.Values, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("twiliohook: out must be a non-nil pointer to struct, got %T", out)
	}

	m := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}

	target := rv.Elem()
	res, err := ParamConv.ConvertType(m, target.Type())
	if err != nil {
		return errx.Wrap("twiliohook: decode params", err)
	}

	target.Set(reflect.ValueOf(res))
	return nil
}

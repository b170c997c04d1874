package hookmw

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cmstar/go-logx"
	"github.com/cmstar/go-twiliohook"
	"github.com/cmstar/go-twiliohook/hooktest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "aaf98aa0a69a870c2e5a0e774af3f8b2"

func smsParams() url.Values {
	return url.Values{
		"AccountSid": {"AC1"},
		"MessageSid": {"SM1"},
		"Body":       {"hello world"},
		"From":       {"+14158675309"},
	}
}

// replyHandler 回写请求的 body 和 ParamsFromContext 得到的 Body 参数。
func replyHandler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	params, ok := ParamsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(params.Get("Body") + "|" + string(raw)))
}

func serve(t *testing.T, cfg Config, r *http.Request) *httptest.ResponseRecorder {
	mw, err := New(cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(replyHandler)).ServeHTTP(rec, r)
	return rec
}

func TestNew_Config(t *testing.T) {
	t.Run("MissingToken", func(t *testing.T) {
		t.Setenv(twiliohook.EnvAuthToken, "")
		_, err := New(Config{})
		require.Error(t, err)
		assert.Regexp(t, "AuthToken is required", err.Error())
	})

	t.Run("EnvToken", func(t *testing.T) {
		t.Setenv(twiliohook.EnvAuthToken, testToken)
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		rec := serve(t, Config{Options: twiliohook.DefaultValidationOptions()}, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("BadOptions", func(t *testing.T) {
		_, err := New(Config{AuthToken: testToken, Options: twiliohook.ValidationOptions{URL: "example.com/sms"}})
		require.Error(t, err)

		_, err = New(Config{AuthToken: testToken, Options: twiliohook.ValidationOptions{Protocol: "ftp"}})
		require.Error(t, err)
	})

	t.Run("MustNew", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNew(Config{AuthToken: testToken, Options: twiliohook.ValidationOptions{Protocol: "ftp"}})
		})
		assert.NotPanics(t, func() {
			MustNew(Config{AuthToken: testToken})
		})
	})
}

func TestNew(t *testing.T) {
	newConfig := func(logger logx.Logger) Config {
		return Config{
			AuthToken: testToken,
			Options:   twiliohook.DefaultValidationOptions(),
			Logger:    logger,
		}
	}

	t.Run("Pass", func(t *testing.T) {
		logger := hooktest.NewLogRecorder()
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		rec := serve(t, newConfig(logger), r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello world|"+smsParams().Encode(), rec.Body.String())
		assert.Empty(t, logger.Entries())
	})

	t.Run("BehindProxy", func(t *testing.T) {
		// TLS 在代理上卸载，应用看到的是 http 和内部端口。
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		r.TLS = nil
		r.Host = "example.com:443"
		rec := serve(t, newConfig(nil), r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Forged", func(t *testing.T) {
		logger := hooktest.NewLogRecorder()
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{
			Params:    smsParams(),
			Signature: "forged",
		})
		rec := serve(t, newConfig(logger), r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Body.String())

		e, ok := logger.Find(logx.LevelWarn)
		require.True(t, ok)
		reason, _ := e.Get("Reason")
		assert.Equal(t, "signature mismatch", reason)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		tampered := smsParams()
		tampered.Set("Body", "hello there")
		r.Body = io.NopCloser(strings.NewReader(tampered.Encode()))

		rec := serve(t, newConfig(nil), r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MissingSignature", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{
			Params:   smsParams(),
			NoHeader: true,
		})
		rec := serve(t, newConfig(nil), r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Debug", func(t *testing.T) {
		cfg := newConfig(hooktest.NewLogRecorder())
		cfg.Options.Debug = true

		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{
			Params:   smsParams(),
			NoHeader: true,
		})
		rec := serve(t, cfg, r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, DeniedMessage+"\nmissing signature header", rec.Body.String())
	})

	t.Run("LogOnly", func(t *testing.T) {
		logger := hooktest.NewLogRecorder()
		cfg := newConfig(logger)
		cfg.Options.LogOnly = true

		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{
			Params:    smsParams(),
			Signature: "forged",
		})
		rec := serve(t, cfg, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		e, ok := logger.Find(logx.LevelWarn)
		require.True(t, ok)
		enforced, _ := e.Get("Enforced")
		assert.Equal(t, "false", enforced)
	})

	t.Run("Json", func(t *testing.T) {
		const body = `{"event":"delivered"}`
		r := hooktest.NewSignedRequest(testToken, "https://example.com/events", hooktest.RequestSetup{JsonBody: body})
		rec := serve(t, newConfig(nil), r)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "|"+body, rec.Body.String())
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		logger := hooktest.NewLogRecorder()
		cfg := newConfig(logger)
		cfg.Options.LogOnly = true
		cfg.MaxBodySize = 8

		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		rec := serve(t, cfg, r)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		_, ok := logger.Find(logx.LevelError)
		assert.True(t, ok)
	})

	t.Run("TrustForwardedProto", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		r.TLS = nil
		r.Header.Set(twiliohook.HttpHeaderForwardedProto, "https")

		// 未指定协议时使用请求的协议。
		cfg := Config{AuthToken: testToken, Logger: hooktest.NewLogRecorder()}
		assert.Equal(t, http.StatusForbidden, serve(t, cfg, r).Code)

		r = hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		r.TLS = nil
		r.Header.Set(twiliohook.HttpHeaderForwardedProto, "https")
		cfg.TrustForwardedProto = true
		assert.Equal(t, http.StatusOK, serve(t, cfg, r).Code)
	})
}

func TestNew_MultiAccount(t *testing.T) {
	tokens := map[string]string{
		"AC1": testToken,
		"AC2": "another-token-0123456789",
	}
	cfg := Config{
		AuthTokenFinder: twiliohook.AuthTokenFinderFunc(func(accountSid string) string {
			return tokens[accountSid]
		}),
		Options: twiliohook.DefaultValidationOptions(),
		Logger:  hooktest.NewLogRecorder(),
	}

	t.Run("AC1", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		assert.Equal(t, http.StatusOK, serve(t, cfg, r).Code)
	})

	t.Run("AC2", func(t *testing.T) {
		params := smsParams()
		params.Set("AccountSid", "AC2")
		r := hooktest.NewSignedRequest(tokens["AC2"], "https://example.com/sms", hooktest.RequestSetup{Params: params})
		assert.Equal(t, http.StatusOK, serve(t, cfg, r).Code)
	})

	t.Run("WrongAccountToken", func(t *testing.T) {
		params := smsParams()
		params.Set("AccountSid", "AC2")
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: params})
		assert.Equal(t, http.StatusForbidden, serve(t, cfg, r).Code)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		logger := hooktest.NewLogRecorder()
		c := cfg
		c.Logger = logger

		params := smsParams()
		params.Set("AccountSid", "AC3")
		r := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: params})
		assert.Equal(t, http.StatusForbidden, serve(t, c, r).Code)

		e, ok := logger.Find(logx.LevelWarn)
		require.True(t, ok)
		reason, _ := e.Get("Reason")
		assert.Equal(t, "unknown account", reason)
	})
}

func TestMount(t *testing.T) {
	router := chi.NewRouter()
	Mount(router, "/voice", Config{
		AuthToken: testToken,
		Options:   twiliohook.DefaultValidationOptions(),
		Logger:    hooktest.NewLogRecorder(),
	}, replyHandler)

	t.Run("Post", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/voice", hooktest.RequestSetup{Params: smsParams()})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Regexp(t, "^hello world\\|", rec.Body.String())
	})

	t.Run("Get", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/voice", hooktest.RequestSetup{
			HttpMethod: http.MethodGet,
			Params:     url.Values{"Digits": {"1"}},
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Forged", func(t *testing.T) {
		r := hooktest.NewSignedRequest(testToken, "https://example.com/voice", hooktest.RequestSetup{
			Params:    smsParams(),
			Signature: "forged",
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Use", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(MustNew(Config{AuthToken: testToken, Options: twiliohook.DefaultValidationOptions(), Logger: hooktest.NewLogRecorder()}))
		r.Post("/sms", replyHandler)

		req := hooktest.NewSignedRequest(testToken, "https://example.com/sms", hooktest.RequestSetup{Params: smsParams()})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testAuthToken = "12345"
	testPublicURL = "https://relay.example.com"
)

// sign 按 Twilio 的规则计算签名：URL 加上按 key 排序的参数名和值，HMAC-SHA1 后 base64。
func sign(fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(testAuthToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureRouter 在通过校验时记录下游看到的 Body，确认表单没有被中间件读空。
func signatureRouter(body *string) *gin.Engine {
	r := gin.New()
	r.POST("/message", TwilioSignature(testAuthToken, testPublicURL+"/"), func(c *gin.Context) {
		*body = c.PostForm("Body")
		c.Status(http.StatusOK)
	})
	return r
}

func postForm(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func TestTwilioSignature(t *testing.T) {
	form := url.Values{
		"From":       {"+15551234567"},
		"To":         {"+15557654321"},
		"Body":       {"Hello"},
		"MessageSid": {"SM1"},
	}
	valid := sign(testPublicURL+"/message", form)

	cases := []struct {
		name      string
		signature string
		form      url.Values
		want      int
		body      string
	}{
		{name: "valid", signature: valid, form: form, want: http.StatusOK, body: "Hello"},
		{name: "missing", signature: "", form: form, want: http.StatusForbidden},
		{name: "wrong", signature: "bm90LWEtc2lnbmF0dXJl", form: form, want: http.StatusForbidden},
		{name: "tampered body", signature: valid, form: url.Values{
			"From": {"+15551234567"}, "To": {"+15557654321"}, "Body": {"reset"}, "MessageSid": {"SM1"},
		}, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body string
			w := httptest.NewRecorder()
			signatureRouter(&body).ServeHTTP(w, postForm(tc.form, tc.signature))
			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, tc.body, body)
		})
	}
}

func adminRouter(m *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.GET("/admin", AuthMiddleware(m), AdminAuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	m := token.NewJWTManager("secret", 1)
	adminToken, err := m.GenerateToken("ops", token.RoleAdmin)
	require.NoError(t, err)
	userToken, err := m.GenerateToken("someone", "user")
	require.NoError(t, err)
	foreignToken, err := token.NewJWTManager("other", 1).GenerateToken("ops", token.RoleAdmin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "admin", header: "Bearer " + adminToken, want: http.StatusNoContent},
		{name: "no header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + foreignToken, want: http.StatusUnauthorized},
		{name: "not admin", header: "Bearer " + userToken, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			adminRouter(m).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAdminAuthMiddleware_WithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminAuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusTeapot, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRequestLogger_OmitsBodies(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log.SetLogger(zap.New(core))
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })

	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/message", func(c *gin.Context) { c.String(http.StatusOK, "reply to +15557654321") })

	form := url.Values{"From": {"+15551234567"}, "Body": {"my secret"}}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm(form, ""))
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("HTTP Request Log").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/message", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["statusCode"])
	for _, v := range fields {
		s := fmt.Sprint(v)
		assert.NotContains(t, s, "+1555")
		assert.NotContains(t, s, "my secret")
	}
}

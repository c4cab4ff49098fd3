package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
	"sms-relay-go/pkg/log"
)

// SignatureHeader 是 Twilio 携带请求签名的请求头。
const SignatureHeader = "X-Twilio-Signature"

// TwilioSignature 校验 webhook 请求确实来自 Twilio。
// publicURL 必须是 Twilio 控制台里配置的对外地址（不含路径），签名是基于它计算的，
// 而不是基于反向代理之后看到的 Host。
func TwilioSignature(authToken, publicURL string) gin.HandlerFunc {
	validator := client.NewRequestValidator(authToken)
	base := strings.TrimRight(publicURL, "/")

	return func(c *gin.Context) {
		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			log.Warnw("webhook rejected: missing signature", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			log.Warnw("webhook rejected: unreadable form", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		if !validator.Validate(base+c.Request.URL.RequestURI(), params, signature) {
			log.Warnw("webhook rejected: invalid signature", "path", c.Request.URL.Path)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

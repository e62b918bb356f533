package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"net/http"
	"strings"

	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/gin-gonic/gin"
)

const (
	ModeParam        = "hub.mode"
	VerifyTokenParam = "hub.verify_token"
	ChallengeParam   = "hub.challenge"
	SignatureHeader  = "X-Hub-Signature-256"

	subscribeMode   = "subscribe"
	signaturePrefix = "sha256="
)

// HandleVerification answers the subscription handshake: the challenge is
// echoed back only for a subscribe request carrying our verify token.
func HandleVerification(verifyToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query(ModeParam)
		token := c.Query(VerifyTokenParam)
		if mode != subscribeMode || verifyToken == "" || token != verifyToken {
			Log.WithField("mode", mode).Warn("webhook verification rejected")
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, c.Query(ChallengeParam))
	}
}

// Sign returns the X-Hub-Signature-256 value of body under appSecret.
func Sign(appSecret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(appSecret))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// RequireSignature rejects deliveries whose body does not match the
// X-Hub-Signature-256 header. With an empty appSecret every request passes.
func RequireSignature(appSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if appSecret == "" {
			c.Next()
			return
		}
		body, err := ioutil.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Request.Body = ioutil.NopCloser(bytes.NewReader(body))

		got := c.GetHeader(SignatureHeader)
		if !strings.HasPrefix(got, signaturePrefix) || !hmac.Equal([]byte(got), []byte(Sign(appSecret, body))) {
			Log.WithField("signature", got).Warn("webhook signature mismatch")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

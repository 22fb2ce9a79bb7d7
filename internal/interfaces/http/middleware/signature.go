package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
)

const (
	// SignatureHeader carries "sha256=<hex hmac>" of "<timestamp>.<body>"
	SignatureHeader = "X-Payout-Signature"
	// SignatureTimestampHeader carries the unix seconds the signature was made at
	SignatureTimestampHeader = "X-Payout-Timestamp"
	// DefaultSignatureTolerance is the accepted clock skew between executor and service
	DefaultSignatureTolerance = 5 * time.Minute
)

// SignatureConfig configures executor callback verification
type SignatureConfig struct {
	Secret    string
	Tolerance time.Duration
	now       func() time.Time
}

// Sign returns the signature header value for body at ts
func Sign(secret string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature rejects callbacks whose HMAC-SHA256 signature does not
// match the body or whose timestamp is outside the tolerance. An empty
// secret disables verification.
func VerifySignature(cfg SignatureConfig) gin.HandlerFunc {
	if cfg.Secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultSignatureTolerance
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	return func(c *gin.Context) {
		reject := func(message string) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Fail(
				dto.ErrCodeUnauthorized, message, GetRequestID(c)))
		}

		signature := c.GetHeader(SignatureHeader)
		if !strings.HasPrefix(signature, "sha256=") {
			reject("Missing callback signature")
			return
		}
		unix, err := strconv.ParseInt(c.GetHeader(SignatureTimestampHeader), 10, 64)
		if err != nil {
			reject("Missing callback timestamp")
			return
		}
		ts := time.Unix(unix, 0)
		if skew := cfg.now().Sub(ts); skew > cfg.Tolerance || skew < -cfg.Tolerance {
			reject("Callback timestamp outside tolerance")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.Fail(
				dto.ErrCodeBadRequest, "Unreadable request body", GetRequestID(c)))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := Sign(cfg.Secret, ts, body)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			reject("Invalid callback signature")
			return
		}
		c.Next()
	}
}

package middleware

import (
	"bytes"
	"io"

	"nxfs_api/internal/http/response"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	AgentKey             = "agent"
	AgentSignatureHeader = "X-Agent-Signature"

	maxAgentBody = 10 << 20
)

// AgentAuth admits webhook agents. The static agent token ("Token x" or
// "Bearer x") is accepted, and so is a user JWT. With a signing secret
// configured, token-authenticated requests must also carry
// X-Agent-Signature, the hex HMAC-SHA256 of the body.
func AgentAuth(token, signingSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := bearerToken(c.GetHeader("Authorization"), "Token", "Bearer")
		if cred == "" {
			response.Unauthorized(c, response.CodeAuthRequired, "Authentication credentials were not provided.")
			return
		}

		if service.AgentTokenMatches(cred, token) {
			if signingSecret != "" && !verifyBody(c, signingSecret) {
				logger.WithContext(c.Request.Context()).Warn("agent signature rejected", "ip", c.ClientIP())
				response.Unauthorized(c, response.CodeAuthFailed, "Invalid agent signature.")
				return
			}
			c.Set(AgentKey, true)
			c.Next()
			return
		}

		userID, err := service.ParseJWT(cred)
		if err != nil {
			response.Unauthorized(c, response.CodeAuthFailed, "Invalid token.")
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// verifyBody checks the signature and restores the body for binding.
func verifyBody(c *gin.Context, secret string) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAgentBody))
	if err != nil {
		return false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return service.VerifyAgentSignature(body, c.GetHeader(AgentSignatureHeader), secret)
}

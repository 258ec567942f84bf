package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignAgentPayload returns the hex HMAC-SHA256 of the raw request body.
func SignAgentPayload(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyAgentSignature checks a hex HMAC-SHA256 of body. An optional
// "sha256=" prefix on the signature is accepted.
func VerifyAgentSignature(body []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" || secret == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(SignAgentPayload(body, secret))
	return hmac.Equal(expected, provided)
}

// AgentTokenMatches compares the presented token in constant time.
func AgentTokenMatches(presented, expected string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

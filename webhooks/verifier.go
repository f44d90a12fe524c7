package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-message-intake/core"
)

// DefaultSignatureHeader carries the lowercase hex HMAC-SHA256 digest of
// the raw request body.
const DefaultSignatureHeader = "X-Signature"

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// HeaderHMACVerifier authenticates an inbound request by recomputing the
// HMAC-SHA256 digest of the exact raw body bytes and comparing it against
// the signature header in constant time. Re-encoded or re-serialized
// bodies change the byte sequence and fail verification, so callers must
// pass the body exactly as received.
type HeaderHMACVerifier struct {
	Header  string
	Secrets core.SecretSource
}

func NewHeaderHMACVerifier(secrets core.SecretSource) HeaderHMACVerifier {
	return HeaderHMACVerifier{
		Header:  DefaultSignatureHeader,
		Secrets: secrets,
	}
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	secret := ""
	if v.Secrets != nil {
		secret = strings.TrimSpace(v.Secrets.WebhookSecret())
	}
	if secret == "" {
		return core.NewNotConfiguredError("webhooks: signature secret is not configured")
	}

	header := v.Header
	if strings.TrimSpace(header) == "" {
		header = DefaultSignatureHeader
	}
	signature := strings.TrimSpace(headerValue(req.Headers, header))
	if signature == "" {
		return core.NewAuthError(fmt.Sprintf("webhooks: %s signature header is required", header))
	}

	// The contract is the lowercase hex rendering itself: an uppercase or
	// otherwise re-encoded digest is not a valid signature.
	expected := SignBody(secret, req.Body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return core.NewAuthError("webhooks: signature verification failed")
	}
	return nil
}

// SignBody renders the digest a caller must supply for rawBody, lowercase
// hex encoded. Shared by tests and client tooling.
func SignBody(secret string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

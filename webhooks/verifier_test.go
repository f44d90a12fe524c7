package webhooks

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-message-intake/core"
)

func signedRequest(secret string, body string) core.InboundRequest {
	return core.InboundRequest{
		Headers: map[string]string{
			DefaultSignatureHeader: SignBody(secret, []byte(body)),
		},
		Body: []byte(body),
	}
}

func textCodeOf(t *testing.T, err error) string {
	t.Helper()
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T: %v", err, err)
	}
	return richErr.TextCode
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	req := signedRequest("topsecret", `{"message_id":"m-1"}`)
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsUppercaseHexSignature(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	body := `{"message_id":"m-1"}`
	req := core.InboundRequest{
		Headers: map[string]string{
			DefaultSignatureHeader: strings.ToUpper(SignBody("topsecret", []byte(body))),
		},
		Body: []byte(body),
	}
	// Only the lowercase hex rendering is a valid signature.
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected uppercase hex signature to be rejected")
	}
}

func TestVerifyIsCaseInsensitiveOnHeaderName(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	body := `{"message_id":"m-1"}`
	req := core.InboundRequest{
		Headers: map[string]string{
			"x-signature": SignBody("topsecret", []byte(body)),
		},
		Body: []byte(body),
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("expected lowercase header name to verify, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	err := verifier.Verify(context.Background(), core.InboundRequest{Body: []byte("{}")})
	if err == nil {
		t.Fatal("expected error for missing signature header")
	}
	if code := textCodeOf(t, err); code != core.IntakeErrorUnauthorized {
		t.Fatalf("text code = %q, want %q", code, core.IntakeErrorUnauthorized)
	}
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	req := signedRequest("some-other-secret", `{"message_id":"m-1"}`)
	err := verifier.Verify(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for mismatching signature")
	}
	if code := textCodeOf(t, err); code != core.IntakeErrorUnauthorized {
		t.Fatalf("text code = %q, want %q", code, core.IntakeErrorUnauthorized)
	}
}

func TestVerifyRejectsNonHexSignature(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	req := core.InboundRequest{
		Headers: map[string]string{DefaultSignatureHeader: "not-hex-at-all"},
		Body:    []byte("{}"),
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected error for non-hex signature")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("topsecret"))
	req := signedRequest("topsecret", `{"message_id":"m-1"}`)
	req.Body = []byte(`{"message_id":"m-2"}`)
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected error for tampered body")
	}
}

func TestVerifyWithoutSecretIsNotConfigured(t *testing.T) {
	verifier := NewHeaderHMACVerifier(core.StaticSecretSource("  "))
	err := verifier.Verify(context.Background(), signedRequest("anything", "{}"))
	if err == nil {
		t.Fatal("expected error without a configured secret")
	}
	if code := textCodeOf(t, err); code != core.IntakeErrorNotConfigured {
		t.Fatalf("text code = %q, want %q", code, core.IntakeErrorNotConfigured)
	}
}

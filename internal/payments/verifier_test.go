package payments

import (
	"errors"
	"strings"
	"testing"
)

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier("sk_test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	body := []byte(`{"paymentReference":"REF_1"}`)

	if err := v.Verify(body, Sign("sk_test", body)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := v.Verify(body, strings.ToUpper(Sign("sk_test", body))); err != nil {
		t.Fatalf("hex case should not matter, got %v", err)
	}
	if err := v.Verify(body, Sign("other", body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := v.Verify([]byte(`{"paymentReference":"REF_2"}`), Sign("sk_test", body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered body must fail, got %v", err)
	}
	for _, sig := range []string{"", "zz"} {
		if err := v.Verify(body, sig); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%q: expected ErrInvalidSignature, got %v", sig, err)
		}
	}
}

func TestNewHMACVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewHMACVerifier("  "); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

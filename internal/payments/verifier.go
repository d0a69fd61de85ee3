package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "monnify-signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates a webhook body before anything is parsed or credited.
type Verifier interface {
	Verify(body []byte, signature string) error
}

type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("webhook secret is required")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

func (v *HMACVerifier) Verify(body []byte, signature string) error {
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil || len(got) == 0 {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature a provider would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// AcceptAllVerifier skips verification. Local development only; cmd/api refuses it in production.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) Verify([]byte, string) error { return nil }

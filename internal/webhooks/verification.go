package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/watzon/saleorhook/internal/credentials"
)

// Verification methods reported in VerificationResult.Method.
const (
	MethodJWS  = "jws-rs256"
	MethodHMAC = "hmac-sha256"
)

// VerificationResult contains the result of webhook signature verification.
type VerificationResult struct {
	Valid  bool   // Whether signature is valid
	Error  string // Error message if verification failed
	Method string // Verification method used
}

func invalid(method, format string, args ...any) *VerificationResult {
	return &VerificationResult{
		Valid:  false,
		Error:  fmt.Sprintf(format, args...),
		Method: method,
	}
}

// VerifySignature checks signature against the exact body bytes.
//
// A detached JWS ("<header>..<signature>") is verified with RS256 against
// auth.JWKS. Anything else is treated as a hex HMAC-SHA256 keyed by
// auth.Token, optionally prefixed with "sha256=".
func VerifySignature(auth *credentials.AuthData, body []byte, signature string) *VerificationResult {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return invalid("", "missing signature")
	}

	if IsJWS(signature) {
		return verifyJWS(auth.JWKS, body, signature)
	}
	return verifyHMAC(auth.Token, body, signature)
}

// IsJWS reports whether signature has the detached JWS compact form.
func IsJWS(signature string) bool {
	return strings.Count(signature, ".") == 2 && strings.Contains(signature, "..")
}

func verifyHMAC(secret string, body []byte, signature string) *VerificationResult {
	if secret == "" {
		return invalid(MethodHMAC, "no shared secret for sender")
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expectedMAC := h.Sum(nil)

	actualMAC, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return invalid(MethodHMAC, "invalid signature format: %v", err)
	}

	if !hmac.Equal(expectedMAC, actualMAC) {
		return invalid(MethodHMAC, "signature mismatch")
	}

	return &VerificationResult{Valid: true, Method: MethodHMAC}
}

type jwsHeader struct {
	Alg  string   `json:"alg"`
	Kid  string   `json:"kid"`
	B64  *bool    `json:"b64"`
	Crit []string `json:"crit"`
}

func verifyJWS(jwks string, body []byte, signature string) *VerificationResult {
	if jwks == "" {
		return invalid(MethodJWS, "no key set for sender")
	}

	parts := strings.Split(signature, ".")
	protected, sigPart := parts[0], parts[2]

	rawHeader, err := base64.RawURLEncoding.DecodeString(protected)
	if err != nil {
		return invalid(MethodJWS, "invalid protected header encoding: %v", err)
	}

	var header jwsHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return invalid(MethodJWS, "invalid protected header: %v", err)
	}
	if header.Alg != jwt.SigningMethodRS256.Alg() {
		return invalid(MethodJWS, "unsupported algorithm %q", header.Alg)
	}

	// RFC 7515 §4.1.11: every critical parameter must be understood, and
	// RFC 7797 §6 requires b64=false to be marked critical.
	for _, name := range header.Crit {
		if name != "b64" {
			return invalid(MethodJWS, "unsupported critical header %q", name)
		}
	}
	if header.B64 != nil && !*header.B64 && !slices.Contains(header.Crit, "b64") {
		return invalid(MethodJWS, "b64=false must be listed in crit")
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(sigPart)
	if err != nil {
		return invalid(MethodJWS, "invalid signature encoding: %v", err)
	}

	keys, err := ParseJWKS(jwks)
	if err != nil {
		return invalid(MethodJWS, "%v", err)
	}
	key, err := keys.Key(header.Kid)
	if err != nil {
		return invalid(MethodJWS, "%v", err)
	}

	// With b64=false (RFC 7797) the payload is signed as raw bytes.
	payload := string(body)
	if header.B64 == nil || *header.B64 {
		payload = base64.RawURLEncoding.EncodeToString(body)
	}

	if err := jwt.SigningMethodRS256.Verify(protected+"."+payload, sig, key); err != nil {
		return invalid(MethodJWS, "signature mismatch")
	}

	return &VerificationResult{Valid: true, Method: MethodJWS}
}

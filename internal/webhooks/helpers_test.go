package webhooks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "my-secret-key"

var (
	keyOnce sync.Once
	keyA    *rsa.PrivateKey
	keyB    *rsa.PrivateKey
)

// testKeys returns two RSA keys shared by the package's tests.
func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()

	keyOnce.Do(func() {
		var err error
		if keyA, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if keyB, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})

	return keyA, keyB
}

func hmacHex(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// signJWS produces a detached RS256 signature over the raw body with b64=false.
func signJWS(t *testing.T, key *rsa.PrivateKey, kid string, body []byte) string {
	t.Helper()

	return signJWSHeader(t, key, map[string]any{
		"alg":  "RS256",
		"kid":  kid,
		"b64":  false,
		"crit": []string{"b64"},
	}, body)
}

// signJWSHeader signs body under an arbitrary protected header. The payload is
// base64url encoded unless the header sets b64 to false.
func signJWSHeader(t *testing.T, key *rsa.PrivateKey, header map[string]any, body []byte) string {
	t.Helper()

	raw, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshaling header: %v", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(body)
	if b64, ok := header["b64"].(bool); ok && !b64 {
		payload = string(body)
	}

	protected := base64.RawURLEncoding.EncodeToString(raw)
	sig, err := jwt.SigningMethodRS256.Sign(protected+"."+payload, key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	return protected + ".." + base64.RawURLEncoding.EncodeToString(sig)
}

// jwksFor renders a key set containing the public halves of keys, keyed by kid.
func jwksFor(t *testing.T, keys map[string]*rsa.PrivateKey) string {
	t.Helper()

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	for kid, key := range keys {
		doc.Keys = append(doc.Keys, map[string]string{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshaling jwks: %v", err)
	}
	return string(raw)
}

// flipChar replaces the character at i with a different one from the same alphabet.
func flipChar(s string, i int) string {
	b := []byte(s)
	switch {
	case b[i] == 'a':
		b[i] = 'b'
	case b[i] >= '0' && b[i] <= '9':
		if b[i] == '0' {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	default:
		b[i] = 'a'
	}
	return string(b)
}

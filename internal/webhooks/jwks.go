package webhooks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const maxJWKSSize = 64 * 1024

// KeySet holds the RSA signing keys of a platform instance, by key id.
type KeySet map[string]*rsa.PublicKey

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// ParseJWKS decodes a JSON Web Key Set. Non-RSA keys and encryption keys are
// skipped.
func ParseJWKS(raw string) (KeySet, error) {
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid jwks: %w", err)
	}

	keys := make(KeySet, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}

		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("jwks key %q: invalid modulus: %w", k.Kid, err)
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("jwks key %q: invalid exponent: %w", k.Kid, err)
		}

		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() < 2 || exp.Int64() > 1<<31-1 {
			return nil, fmt.Errorf("jwks key %q: exponent out of range", k.Kid)
		}

		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(exp.Int64()),
		}
	}

	if len(keys) == 0 {
		return nil, errors.New("jwks contains no RSA signing keys")
	}
	return keys, nil
}

// Key returns the key for kid. An empty kid selects the only key of a
// single-key set.
func (ks KeySet) Key(kid string) (*rsa.PublicKey, error) {
	if key, ok := ks[kid]; ok {
		return key, nil
	}
	if kid == "" && len(ks) == 1 {
		for _, key := range ks {
			return key, nil
		}
	}
	return nil, fmt.Errorf("no key with kid %q", kid)
}

// JWKSFetcher retrieves the current key set published by a platform instance.
type JWKSFetcher interface {
	Fetch(ctx context.Context, domain string) (string, error)
}

// HTTPJWKSFetcher fetches https://<domain>/.well-known/jwks.json.
type HTTPJWKSFetcher struct {
	Client *http.Client

	// URL builds the key set location for a domain. Nil uses the well-known path.
	URL func(domain string) string
}

// NewHTTPJWKSFetcher creates a fetcher whose requests time out after timeout.
func NewHTTPJWKSFetcher(timeout time.Duration) *HTTPJWKSFetcher {
	return &HTTPJWKSFetcher{
		Client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPJWKSFetcher) Fetch(ctx context.Context, domain string) (string, error) {
	url := "https://" + domain + "/.well-known/jwks.json"
	if f.URL != nil {
		url = f.URL(domain)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching jwks: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return "", fmt.Errorf("reading jwks: %w", err)
	}

	if _, err := ParseJWKS(string(raw)); err != nil {
		return "", err
	}

	return string(raw), nil
}

// ErrJWKSRefreshThrottled is returned by CooldownFetcher while a domain is
// inside its cooldown window.
var ErrJWKSRefreshThrottled = errors.New("jwks refresh throttled")

// CooldownFetcher allows at most one fetch per domain per cooldown, whether
// the previous attempt succeeded or not.
type CooldownFetcher struct {
	next     JWKSFetcher
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldownFetcher wraps next. A non-positive cooldown disables throttling.
func NewCooldownFetcher(next JWKSFetcher, cooldown time.Duration) *CooldownFetcher {
	return &CooldownFetcher{
		next:     next,
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func (f *CooldownFetcher) Fetch(ctx context.Context, domain string) (string, error) {
	if f.cooldown > 0 && !f.reserve(domain) {
		return "", fmt.Errorf("%w: %s", ErrJWKSRefreshThrottled, domain)
	}
	return f.next.Fetch(ctx, domain)
}

func (f *CooldownFetcher) reserve(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if at, ok := f.last[domain]; ok && now.Sub(at) < f.cooldown {
		return false
	}

	for d, at := range f.last {
		if now.Sub(at) >= f.cooldown {
			delete(f.last, d)
		}
	}
	f.last[domain] = now
	return true
}

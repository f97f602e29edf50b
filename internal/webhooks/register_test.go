package webhooks

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watzon/saleorhook/internal/credentials"
)

type brokenWriter struct{ *memoryStore }

func (*brokenWriter) Set(context.Context, *credentials.AuthData) error {
	return errors.New("disk full")
}

// fakeVerifier accepts or rejects every token and records what it was asked.
type fakeVerifier struct {
	appID  string
	err    error
	calls  int
	apiURL string
	token  string
}

func (v *fakeVerifier) VerifyAppToken(_ context.Context, apiURL, token string) (string, error) {
	v.calls++
	v.apiURL, v.token = apiURL, token
	return v.appID, v.err
}

func postRegister(h http.Handler, domain, body string) (*httptest.ResponseRecorder, map[string]any) {
	return postRegisterTo(h, domain, "https://"+domain+"/graphql/", body)
}

func postRegisterTo(h http.Handler, domain, apiURL, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, RegisterPath, strings.NewReader(body))
	if domain != "" {
		req.Header.Set("Saleor-Domain", domain)
	}
	if apiURL != "" {
		req.Header.Set(APIURLHeader, apiURL)
	}

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	var doc map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &doc)
	return resp, doc
}

func TestRegisterHandler_StoresToken(t *testing.T) {
	store := newMemoryStore()
	h, err := NewRegisterHandler(store, Settings{})
	require.NoError(t, err)

	resp, doc := postRegister(h, "Shop.Example.com", `{"auth_token":"app-token"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, true, doc["success"])
	require.NotContains(t, doc, "error")

	stored, err := store.Get(context.Background(), testDomain)
	require.NoError(t, err)
	require.Equal(t, "app-token", stored.Token)
	require.Equal(t, "https://Shop.Example.com/graphql/", stored.APIURL)
	require.Empty(t, stored.JWKS)
}

func TestRegisterHandler_FetchesJWKS(t *testing.T) {
	keyA, _ := testKeys(t)
	jwks := jwksFor(t, map[string]*rsa.PrivateKey{"a": keyA})

	store := newMemoryStore()
	fetcher := &staticFetcher{jwks: jwks}
	h, err := NewRegisterHandler(store, Settings{JWKS: fetcher})
	require.NoError(t, err)

	resp, _ := postRegister(h, testDomain, `{"auth_token":"app-token"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, jwks, store.entries[testDomain].JWKS)

	// A failed fetch still installs the token.
	fetcher.err = errors.New("unreachable")
	resp, _ = postRegister(h, "other.example.com", `{"auth_token":"other-token"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "other-token", store.entries["other.example.com"].Token)
}

func TestRegisterHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		domain     string
		body       string
		wantStatus int
	}{
		{"missing domain", Settings{}, "", `{"auth_token":"t"}`, http.StatusBadRequest},
		{"domain outside allow-list", Settings{AllowedDomains: []string{"*.saleor.cloud"}}, testDomain, `{"auth_token":"t"}`, http.StatusForbidden},
		{"malformed body", Settings{}, testDomain, `{"auth_token":`, http.StatusBadRequest},
		{"empty token", Settings{}, testDomain, `{"auth_token":""}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			h, err := NewRegisterHandler(store, tt.settings)
			require.NoError(t, err)

			resp, doc := postRegister(h, tt.domain, tt.body)

			require.Equal(t, tt.wantStatus, resp.Code)
			require.Equal(t, false, doc["success"])
			require.Contains(t, doc, "error")
			require.Zero(t, store.sets)
		})
	}
}

func TestRegisterHandler_UnverifiedReinstallKeepsToken(t *testing.T) {
	store := newMemoryStore(credentials.AuthData{Domain: testDomain, Token: "legit-token"})
	h, err := NewRegisterHandler(store, Settings{})
	require.NoError(t, err)

	resp, doc := postRegister(h, testDomain, `{"auth_token":"attacker"}`)

	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, false, doc["success"])
	require.Zero(t, store.sets)
	require.Equal(t, "legit-token", store.entries[testDomain].Token)

	// A delivery signed with the rejected token still fails.
	rec := &recorder{}
	wh := newTestWebhook(t, store, rec, Settings{})
	delivery := deliver(wh, testDomain, "product_updated", hmacHex("attacker", productBody), productBody)
	require.Equal(t, http.StatusUnauthorized, delivery.Code)
	require.Zero(t, rec.count())
}

func TestRegisterHandler_VerifiedToken(t *testing.T) {
	store := newMemoryStore(credentials.AuthData{Domain: testDomain, Token: "old-token"})
	verifier := &fakeVerifier{appID: "QXBwOjE="}
	h, err := NewRegisterHandler(store, Settings{TokenVerifier: verifier})
	require.NoError(t, err)

	resp, _ := postRegister(h, testDomain, `{"auth_token":"rotated-token"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, verifier.calls)
	require.Equal(t, "https://shop.example.com/graphql/", verifier.apiURL)
	require.Equal(t, "rotated-token", verifier.token)

	stored := store.entries[testDomain]
	require.Equal(t, "rotated-token", stored.Token)
	require.Equal(t, "QXBwOjE=", stored.AppID)
}

func TestRegisterHandler_VerificationFailures(t *testing.T) {
	tests := []struct {
		name       string
		verifier   *fakeVerifier
		apiURL     string
		wantStatus int
		wantCalls  int
	}{
		{"token rejected", &fakeVerifier{err: fmt.Errorf("%w: no app for token", ErrAppTokenRejected)}, "https://shop.example.com/graphql/", http.StatusForbidden, 1},
		{"instance unreachable", &fakeVerifier{err: errors.New("connection refused")}, "https://shop.example.com/graphql/", http.StatusBadGateway, 1},
		{"missing api url", &fakeVerifier{appID: "QXBwOjE="}, "", http.StatusBadRequest, 0},
		{"api url on another host", &fakeVerifier{appID: "QXBwOjE="}, "https://evil.example.net/graphql/", http.StatusBadRequest, 0},
		{"api url host with suffix", &fakeVerifier{appID: "QXBwOjE="}, "https://shop.example.com.evil.net/graphql/", http.StatusBadRequest, 0},
		{"api url not http", &fakeVerifier{appID: "QXBwOjE="}, "ftp://shop.example.com/graphql/", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore(credentials.AuthData{Domain: testDomain, Token: "legit-token"})
			h, err := NewRegisterHandler(store, Settings{TokenVerifier: tt.verifier})
			require.NoError(t, err)

			resp, doc := postRegisterTo(h, testDomain, tt.apiURL, `{"auth_token":"attacker"}`)

			require.Equal(t, tt.wantStatus, resp.Code)
			require.Equal(t, false, doc["success"])
			require.Equal(t, tt.wantCalls, tt.verifier.calls)
			require.Zero(t, store.sets)
			require.Equal(t, "legit-token", store.entries[testDomain].Token)
		})
	}
}

func TestRegisterHandler_APIURLMustMatchDomain(t *testing.T) {
	store := newMemoryStore()
	h, err := NewRegisterHandler(store, Settings{})
	require.NoError(t, err)

	resp, _ := postRegisterTo(h, testDomain, "https://evil.example.net/graphql/", `{"auth_token":"t"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, store.sets)

	resp, _ = postRegisterTo(h, "localhost:8000", "http://localhost:8000/graphql/", `{"auth_token":"t"}`)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRegisterHandler_StoreFailure(t *testing.T) {
	store := &brokenWriter{newMemoryStore()}
	h, err := NewRegisterHandler(store, Settings{})
	require.NoError(t, err)

	resp, doc := postRegister(h, testDomain, `{"auth_token":"t"}`)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, false, doc["success"])
}

func TestNewRegisterHandler_Invalid(t *testing.T) {
	_, err := NewRegisterHandler(nil, Settings{})
	require.Error(t, err)

	_, err = NewRegisterHandler(newMemoryStore(), Settings{AllowedDomains: []string{"[oops"}})
	require.Error(t, err)
}

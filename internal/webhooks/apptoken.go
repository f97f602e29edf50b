package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxGraphQLResponseSize = 64 * 1024

// ErrAppTokenRejected means the instance did not accept the token as an app token.
var ErrAppTokenRejected = errors.New("app token rejected")

// AppTokenVerifier confirms that token is a live app token on the instance
// serving apiURL and returns the app's ID.
type AppTokenVerifier interface {
	VerifyAppToken(ctx context.Context, apiURL, token string) (string, error)
}

// GraphQLTokenVerifier asks the instance's GraphQL API for the app the token
// belongs to.
type GraphQLTokenVerifier struct {
	Client *http.Client
}

// NewGraphQLTokenVerifier creates a verifier whose requests time out after timeout.
func NewGraphQLTokenVerifier(timeout time.Duration) *GraphQLTokenVerifier {
	return &GraphQLTokenVerifier{
		Client: &http.Client{Timeout: timeout},
	}
}

const appIDQuery = `{ app { id } }`

func (v *GraphQLTokenVerifier) VerifyAppToken(ctx context.Context, apiURL, token string) (string, error) {
	payload, err := json.Marshal(map[string]string{"query": appIDQuery})
	if err != nil {
		return "", fmt.Errorf("encoding app query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating app query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying app: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: status %d", ErrAppTokenRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("querying app: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxGraphQLResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading app query response: %w", err)
	}

	var doc struct {
		Data struct {
			App *struct {
				ID string `json:"id"`
			} `json:"app"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decoding app query response: %w", err)
	}

	if len(doc.Errors) > 0 {
		return "", fmt.Errorf("%w: %s", ErrAppTokenRejected, doc.Errors[0].Message)
	}
	if doc.Data.App == nil || doc.Data.App.ID == "" {
		return "", fmt.Errorf("%w: no app for token", ErrAppTokenRejected)
	}
	return doc.Data.App.ID, nil
}

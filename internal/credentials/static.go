package credentials

import (
	"context"

	"github.com/watzon/saleorhook/internal/config"
)

// StaticStore serves a fixed set of credentials declared in configuration.
type StaticStore struct {
	entries map[string]AuthData
}

// NewStaticStore creates a read-only store from config entries.
func NewStaticStore(entries []config.StaticCredential) *StaticStore {
	s := &StaticStore{entries: make(map[string]AuthData, len(entries))}
	for _, e := range entries {
		domain := normalizeDomain(e.Domain)
		s.entries[domain] = AuthData{
			Domain: domain,
			Token:  e.Token,
			APIURL: e.APIURL,
			AppID:  e.AppID,
			JWKS:   e.JWKS,
		}
	}
	return s
}

// Get returns a copy of the configured entry.
func (s *StaticStore) Get(_ context.Context, domain string) (*AuthData, error) {
	data, ok := s.entries[normalizeDomain(domain)]
	if !ok {
		return nil, ErrNotFound
	}
	return &data, nil
}

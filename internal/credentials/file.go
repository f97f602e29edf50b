package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileStore keeps credentials in a JSON or YAML file, chosen by extension.
// With watching enabled, edits made by other processes are picked up
// without a restart.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	entries map[string]AuthData

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewFileStore loads path and optionally starts watching it. A missing file
// is treated as empty and created on the first Set.
func NewFileStore(path string, watch bool) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials file: %w", err)
	}

	s := &FileStore{
		path:    abs,
		entries: make(map[string]AuthData),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	if watch {
		if err := s.startWatching(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Get retrieves credentials for a domain.
func (s *FileStore) Get(_ context.Context, domain string) (*AuthData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.entries[normalizeDomain(domain)]
	if !ok {
		return nil, ErrNotFound
	}
	return &data, nil
}

// Set stores data and rewrites the file.
func (s *FileStore) Set(_ context.Context, data *AuthData) error {
	if err := validate(data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *data
	entry.Domain = normalizeDomain(entry.Domain)

	prev, existed := s.entries[entry.Domain]
	s.entries[entry.Domain] = entry

	if err := s.writeLocked(); err != nil {
		if existed {
			s.entries[entry.Domain] = prev
		} else {
			delete(s.entries, entry.Domain)
		}
		return err
	}

	return nil
}

// Delete removes a domain and rewrites the file.
func (s *FileStore) Delete(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeDomain(domain)
	prev, ok := s.entries[key]
	if !ok {
		return ErrNotFound
	}
	delete(s.entries, key)

	if err := s.writeLocked(); err != nil {
		s.entries[key] = prev
		return err
	}

	return nil
}

// List returns every entry ordered by domain.
func (s *FileStore) List(_ context.Context) ([]*AuthData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedLocked(), nil
}

// Close stops the file watcher.
func (s *FileStore) Close() error {
	if s.watcher == nil {
		return nil
	}

	s.cancel()
	s.wg.Wait()
	return s.watcher.Close()
}

func (s *FileStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

func (s *FileStore) reload() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.entries = make(map[string]AuthData)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	var list []AuthData
	if len(strings.TrimSpace(string(raw))) > 0 {
		if s.isYAML() {
			err = yaml.Unmarshal(raw, &list)
		} else {
			err = json.Unmarshal(raw, &list)
		}
		if err != nil {
			return fmt.Errorf("parsing credentials file %s: %w", s.path, err)
		}
	}

	entries := make(map[string]AuthData, len(list))
	for _, e := range list {
		e.Domain = normalizeDomain(e.Domain)
		if e.Domain == "" {
			continue
		}
		entries[e.Domain] = e
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	return nil
}

func (s *FileStore) sortedLocked() []*AuthData {
	result := make([]*AuthData, 0, len(s.entries))
	for _, e := range s.entries {
		entry := e
		result = append(result, &entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Domain < result[j].Domain })
	return result
}

// writeLocked replaces the file atomically. Callers hold s.mu.
func (s *FileStore) writeLocked() error {
	list := make([]AuthData, 0, len(s.entries))
	for _, e := range s.sortedLocked() {
		list = append(list, *e)
	}

	var (
		raw []byte
		err error
	)
	if s.isYAML() {
		raw, err = yaml.Marshal(list)
	} else {
		raw, err = json.MarshalIndent(list, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting credentials file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing credentials file: %w", err)
	}

	return nil
}

// startWatching watches the parent directory so that editors which replace
// the file by rename are still noticed.
func (s *FileStore) startWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.watcher = watcher
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.eventLoop()

	log.Debug().Str("path", s.path).Msg("Watching credentials file")
	return nil
}

func (s *FileStore) eventLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if err := s.reload(); err != nil {
				log.Warn().Err(err).Str("path", s.path).Msg("Failed to reload credentials file")
				continue
			}
			log.Info().Str("path", s.path).Msg("Reloaded credentials file")

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Credentials watcher error")
		}
	}
}

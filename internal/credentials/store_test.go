package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/database"
)

func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testRedis(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(rdb, config.DefaultRedisKeyPrefix)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// exerciseWriter runs the same contract checks against every writable backend.
func exerciseWriter(t *testing.T, w Writer) {
	t.Helper()
	ctx := context.Background()

	_, err := w.Get(ctx, "shop.example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Set(ctx, &AuthData{
		Domain: "Shop.Example.com",
		Token:  "secret",
		APIURL: "https://shop.example.com/graphql/",
		AppID:  "QXBwOjE=",
	}))
	require.NoError(t, w.Set(ctx, &AuthData{Domain: "another.example.com", Token: "other"}))

	got, err := w.Get(ctx, " shop.example.com ")
	require.NoError(t, err)
	require.Equal(t, "shop.example.com", got.Domain)
	require.Equal(t, "secret", got.Token)
	require.Equal(t, "https://shop.example.com/graphql/", got.APIURL)
	require.Equal(t, "QXBwOjE=", got.AppID)

	// Overwrite keeps a single entry.
	require.NoError(t, w.Set(ctx, &AuthData{Domain: "shop.example.com", Token: "rotated", JWKS: `{"keys":[]}`}))
	got, err = w.Get(ctx, "shop.example.com")
	require.NoError(t, err)
	require.Equal(t, "rotated", got.Token)
	require.Equal(t, `{"keys":[]}`, got.JWKS)

	list, err := w.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "another.example.com", list[0].Domain)
	require.Equal(t, "shop.example.com", list[1].Domain)

	require.NoError(t, w.Delete(ctx, "shop.example.com"))
	require.ErrorIs(t, w.Delete(ctx, "shop.example.com"), ErrNotFound)

	_, err = w.Get(ctx, "shop.example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, w.Set(ctx, &AuthData{Domain: "", Token: "x"}))
	require.Error(t, w.Set(ctx, &AuthData{Domain: "empty.example.com"}))
}

func TestSQLStore(t *testing.T) {
	exerciseWriter(t, NewSQLStore(testDB(t)))
}

func TestRedisStore(t *testing.T) {
	exerciseWriter(t, testRedis(t))
}

func TestFileStore_JSON(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "auth.json"), false)
	require.NoError(t, err)
	exerciseWriter(t, store)
}

func TestFileStore_YAML(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "auth.yaml"), false)
	require.NoError(t, err)
	exerciseWriter(t, store)
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.yaml")
	ctx := context.Background()

	first, err := NewFileStore(path, false)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, &AuthData{Domain: "shop.example.com", Token: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := NewFileStore(path, false)
	require.NoError(t, err)
	got, err := second.Get(ctx, "shop.example.com")
	require.NoError(t, err)
	require.Equal(t, "secret", got.Token)
}

func TestFileStore_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"`), 0o600))

	_, err := NewFileStore(path, false)
	require.Error(t, err)
}

func TestFileStore_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	ctx := context.Background()

	store, err := NewFileStore(path, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	_, err = store.Get(ctx, "shop.example.com")
	require.ErrorIs(t, err, ErrNotFound)

	content := `[{"domain":"shop.example.com","token":"from-disk"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, "shop.example.com")
		return err == nil && got.Token == "from-disk"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore([]config.StaticCredential{
		{Domain: "Shop.Example.com", Token: "secret", AppID: "app"},
	})
	ctx := context.Background()

	got, err := store.Get(ctx, "shop.example.com")
	require.NoError(t, err)
	require.Equal(t, "secret", got.Token)
	require.Equal(t, "app", got.AppID)

	// Callers get a copy.
	got.Token = "mutated"
	again, err := store.Get(ctx, "shop.example.com")
	require.NoError(t, err)
	require.Equal(t, "secret", again.Token)

	_, err = store.Get(ctx, "unknown.example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	db := testDB(t)
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		cfg      config.CredentialsConfig
		db       *database.DB
		wantType any
		wantErr  bool
	}{
		{"sqlite", config.CredentialsConfig{Backend: "sqlite"}, db, &SQLStore{}, false},
		{"sqlite without db", config.CredentialsConfig{Backend: "sqlite"}, nil, nil, true},
		{"file", config.CredentialsConfig{
			Backend: "file",
			File:    config.FileCredentialsConfig{Path: filepath.Join(t.TempDir(), "auth.json")},
		}, nil, &FileStore{}, false},
		{"redis", config.CredentialsConfig{
			Backend: "redis",
			Redis:   config.RedisCredentialsConfig{URL: "redis://" + mr.Addr() + "/0", KeyPrefix: "test:"},
		}, nil, &RedisStore{}, false},
		{"redis bad url", config.CredentialsConfig{
			Backend: "redis",
			Redis:   config.RedisCredentialsConfig{URL: "not-a-url"},
		}, nil, nil, true},
		{"static", config.CredentialsConfig{Backend: "static"}, nil, &StaticStore{}, false},
		{"unknown", config.CredentialsConfig{Backend: "etcd"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(&tt.cfg, tt.db)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, tt.wantType, store)
			require.NoError(t, Close(store))
		})
	}
}

package contests

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// Entry is a cached response body with the validators needed to revalidate it.
type Entry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	Body         []byte    `json:"body,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cache stores the last good response per request URL. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, url string) (Entry, bool, error)
	Put(ctx context.Context, url string, e Entry) error
}

// cacheKey hashes a URL into a stable, filesystem-safe key.
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	// First 16 hex chars are plenty for a handful of query shapes.
	return hex.EncodeToString(sum[:8])
}

// NopCache never stores anything; every request is unconditional.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }
func (NopCache) Put(context.Context, string, Entry) error         { return nil }

// DiskCache keeps one directory per URL holding meta.json and body.json.
// mu keeps the two files of an entry paired.
type DiskCache struct {
	mu  sync.RWMutex
	fs  afero.Fs
	dir string
}

// NewDiskCache returns a cache rooted at dir on fsys. A nil fsys means the
// OS filesystem.
func NewDiskCache(fsys afero.Fs, dir string) *DiskCache {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if dir == "" {
		dir = "./var/contest-cache"
	}
	return &DiskCache{fs: fsys, dir: dir}
}

func (d *DiskCache) pathFor(url string) string {
	return filepath.Join(d.dir, cacheKey(url))
}

func (d *DiskCache) Get(_ context.Context, url string) (Entry, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p := d.pathFor(url)

	data, err := afero.ReadFile(d.fs, filepath.Join(p, "meta.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var meta Entry
	if err := json.Unmarshal(data, &meta); err != nil {
		return Entry{}, false, err
	}
	if meta.URL != url {
		return Entry{}, false, nil
	}

	body, err := afero.ReadFile(d.fs, filepath.Join(p, "body.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	meta.Body = body
	return meta, true, nil
}

func (d *DiskCache) Put(_ context.Context, url string, e Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.pathFor(url)
	if err := d.fs.MkdirAll(p, 0o700); err != nil {
		return err
	}

	// Write body first so meta never points at missing body.
	if err := afero.WriteFile(d.fs, filepath.Join(p, "body.json"), e.Body, 0o600); err != nil {
		return err
	}

	meta := e
	meta.URL = url
	meta.Body = nil
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(d.fs, filepath.Join(p, "meta.json"), data, 0o600)
}

// RedisStore is the subset of the go-redis client the cache needs.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares cached responses between instances.
type RedisCache struct {
	rdb    RedisStore
	prefix string
	ttl    time.Duration
}

// NewRedisCache stores entries under prefix with the given expiry (0 keeps
// them forever).
func NewRedisCache(rdb RedisStore, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "contestcal:http:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, url string) (Entry, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+cacheKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, err
	}
	if e.URL != url {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *RedisCache) Put(ctx context.Context, url string, e Entry) error {
	e.URL = url
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+cacheKey(url), data, r.ttl).Err()
}

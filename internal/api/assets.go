package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

// AssetCache serves files from root, keeping each file's bytes and ETag in
// memory until the file's size or modification time changes.
type AssetCache struct {
	root   fs.FS
	maxAge time.Duration

	mu      sync.RWMutex
	entries map[string]assetEntry
}

// assetStamp identifies one version of a file on disk.
type assetStamp struct {
	size    int64
	modTime time.Time
}

func (s assetStamp) matches(o assetStamp) bool {
	return s.size == o.size && s.modTime.Equal(o.modTime)
}

type assetEntry struct {
	stamp assetStamp
	body  []byte
	etag  string
}

func NewAssetCache(root fs.FS, maxAge time.Duration) *AssetCache {
	return &AssetCache{
		root:    root,
		maxAge:  maxAge,
		entries: make(map[string]assetEntry),
	}
}

// Serve writes the named asset, answering conditional requests with 304.
func (c *AssetCache) Serve(w http.ResponseWriter, r *http.Request, name string) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")

	entry, modTime, err := c.load(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "asset unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", entry.etag)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(c.maxAge.Seconds())))
	http.ServeContent(w, r, name, modTime, bytes.NewReader(entry.body))
}

// Handler serves the asset named by the request path with prefix removed.
func (c *AssetCache) Handler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Serve(w, r, strings.TrimPrefix(r.URL.Path, prefix))
	})
}

// File serves a single fixed asset.
func (c *AssetCache) File(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.Serve(w, r, name)
	}
}

// Len returns the number of cached files.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *AssetCache) load(name string) (assetEntry, time.Time, error) {
	if name == "" || !fs.ValidPath(name) {
		return assetEntry{}, time.Time{}, fs.ErrNotExist
	}

	info, err := fs.Stat(c.root, name)
	if err != nil {
		return assetEntry{}, time.Time{}, err
	}
	if info.IsDir() {
		return assetEntry{}, time.Time{}, fs.ErrNotExist
	}
	stamp := assetStamp{size: info.Size(), modTime: info.ModTime()}

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if ok && entry.stamp.matches(stamp) {
		return entry, stamp.modTime, nil
	}

	body, err := fs.ReadFile(c.root, name)
	if err != nil {
		return assetEntry{}, time.Time{}, fmt.Errorf("reading asset %s: %w", name, err)
	}
	sum := sha256.Sum256(body)
	entry = assetEntry{
		stamp: stamp,
		body:  body,
		etag:  `"` + hex.EncodeToString(sum[:8]) + `"`,
	}

	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()

	return entry, stamp.modTime, nil
}

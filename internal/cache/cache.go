package cache

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/media"
	"github.com/smazurov/dropzone/internal/metrics"
)

// Entry is one cached working copy.
type Entry struct {
	Identity     Identity     `json:"identity"`
	CopyPath     string       `json:"copy_path"`
	Metadata     *Metadata    `json:"metadata,omitempty"`
	Format       media.Format `json:"format"`
	Standardized bool         `json:"standardized"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Cache maps identities to working copies. It is written by a single
// owner; readers take snapshots through Entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[Identity]*Entry
	logger  logging.Logger
}

// New creates an empty cache.
func New(logger logging.Logger) *Cache {
	return &Cache{entries: make(map[Identity]*Entry), logger: logger}
}

// IdentityOf returns the identity of path. Inaccessible paths are logged
// and reported as not found.
func (c *Cache) IdentityOf(path string) (Identity, bool) {
	id, err := NewIdentity(path)
	if err != nil {
		c.logger.Warn("Cannot read source identity", "path", path, "error", err)
		return Identity{}, false
	}
	return id, true
}

// Find returns the working copy for the clip at path.
func (c *Cache) Find(path string) (string, bool) {
	id, ok := c.IdentityOf(path)
	if !ok {
		return "", false
	}
	e, ok := c.Lookup(id)
	if !ok {
		return "", false
	}
	return e.CopyPath, true
}

// Lookup returns the entry for id. An entry whose copy no longer exists on
// disk is evicted and reported as a miss.
func (c *Cache) Lookup(id Identity) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	var snapshot Entry
	if ok {
		snapshot = e.clone()
	}
	c.mu.RUnlock()

	if !ok {
		metrics.RecordCacheLookup("miss")
		return Entry{}, false
	}

	if _, err := os.Stat(snapshot.CopyPath); errors.Is(err, os.ErrNotExist) {
		c.mu.Lock()
		// only evict if nobody re-registered in the meantime
		if cur, still := c.entries[id]; still && cur.CopyPath == snapshot.CopyPath {
			delete(c.entries, id)
		}
		n := len(c.entries)
		c.mu.Unlock()

		metrics.RecordCacheLookup("stale")
		metrics.SetCacheEntries(n)
		c.logger.Info("Evicted stale cache entry", "identity", id.String(), "copy", snapshot.CopyPath)
		return Entry{}, false
	}

	metrics.RecordCacheLookup("hit")
	return snapshot, true
}

// RegisterOption sets optional entry fields.
type RegisterOption func(*Entry)

// WithFormat records the compatibility key of the copy.
func WithFormat(f media.Format) RegisterOption {
	return func(e *Entry) { e.Format = f }
}

// WithMetadata attaches display metadata.
func WithMetadata(m Metadata) RegisterOption {
	return func(e *Entry) { e.Metadata = &m }
}

// AsStandardized marks the copy as re-encoded to the target profile.
func AsStandardized() RegisterOption {
	return func(e *Entry) { e.Standardized = true }
}

// Register records copyPath as the working copy of id. It reports whether
// a live entry was overwritten.
func (c *Cache) Register(id Identity, copyPath string, opts ...RegisterOption) bool {
	e := &Entry{Identity: id, CopyPath: copyPath, UpdatedAt: time.Now()}
	for _, opt := range opts {
		opt(e)
	}

	c.mu.Lock()
	prev, existed := c.entries[id]
	c.entries[id] = e
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(n)
	if existed {
		c.logger.Warn("Overwriting live cache entry",
			"identity", id.String(), "old_copy", prev.CopyPath, "new_copy", copyPath)
	}
	return existed
}

// Invalidate removes the entry for id.
func (c *Cache) Invalidate(id Identity) bool {
	c.mu.Lock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(n)
	return ok
}

// Rename points the entry for id at newPath after the copy was moved.
func (c *Cache) Rename(id Identity, newPath string) bool {
	return c.update(id, func(e *Entry) { e.CopyPath = newPath })
}

// SetMetadata replaces the display metadata of id, after its copy was
// trimmed or re-encoded in place.
func (c *Cache) SetMetadata(id Identity, m Metadata) bool {
	return c.update(id, func(e *Entry) { e.Metadata = &m })
}

// OwnerOf returns the identity whose working copy lives at copyPath.
func (c *Cache) OwnerOf(copyPath string) (Identity, bool) {
	copyPath = filepath.Clean(copyPath)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, e := range c.entries {
		if filepath.Clean(e.CopyPath) == copyPath {
			return id, true
		}
	}
	return Identity{}, false
}

// MarkStandardized records that the copy of id was re-encoded to format.
func (c *Cache) MarkStandardized(id Identity, f media.Format) bool {
	return c.update(id, func(e *Entry) {
		e.Standardized = true
		e.Format = f
	})
}

func (c *Cache) update(id Identity, fn func(*Entry)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	fn(e)
	e.UpdatedAt = time.Now()
	return true
}

// MetadataFor returns the display metadata of id.
func (c *Cache) MetadataFor(id Identity) (Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || e.Metadata == nil {
		return Metadata{}, false
	}
	return *e.Metadata, true
}

// Retain drops every entry not in active and returns the dropped entries.
func (c *Cache) Retain(active []Identity) []Entry {
	keep := make(map[Identity]bool, len(active))
	for _, id := range active {
		keep[id] = true
	}

	c.mu.Lock()
	var dropped []Entry
	for id, e := range c.entries {
		if !keep[id] {
			dropped = append(dropped, e.clone())
			delete(c.entries, id)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheEntries(n)
	sortEntries(dropped)
	return dropped
}

// Entries returns a snapshot of all entries ordered by copy path.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.clone())
	}
	c.mu.RUnlock()

	sortEntries(out)
	return out
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (e *Entry) clone() Entry {
	out := *e
	if e.Metadata != nil {
		m := *e.Metadata
		out.Metadata = &m
	}
	return out
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.CopyPath, b.CopyPath)
	})
}

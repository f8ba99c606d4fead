// Package cache implements Sail's SharedCache: a content-addressed,
// on-disk store of task outputs keyed by a cache-key hash (see
// internal/hash), with LRU eviction under a configured size bound and an
// optional pluggable remote backend. Grounded on the teacher's
// content-addressed-store intent (`internal/cache/cache_fs.go`) and
// quantmind-br-gendocs's `internal/llmcache` for the stats/eviction
// bookkeeping shape, since the teacher's own cache is a tar-archive
// store rather than the flat files/<hash> layout spec.md requires.
package cache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/sailbuild/sail/internal/syspath"
)

const cacheFormatVersion = manifestVersion

// defaultMaxSizeBytes is used when BuildConfig.CacheOptions.MaxSizeBytes
// is zero.
const defaultMaxSizeBytes int64 = 5 << 30 // 5 GiB

// Options configures a SharedCache.
type Options struct {
	Dir            syspath.AbsoluteSystemPath
	MaxSizeBytes   int64
	Remote         RemoteBackend
	RemoteOnly     bool
	SkipCacheWrite bool
	Logger         hclog.Logger
}

// SharedCache is the local (optionally remote-backed) content-addressed
// cache described in spec.md §4.2.
type SharedCache struct {
	dir            syspath.AbsoluteSystemPath
	maxSizeBytes   int64
	remote         RemoteBackend
	remoteOnly     bool
	skipCacheWrite bool
	logger         hclog.Logger

	stats *Stats

	mu      sync.Mutex
	lru     *list.List               // of *lruNode, front = most recently used
	index   map[string]*list.Element // key -> its node in lru
	refs    map[string]int           // key -> in-flight reader count, protects against eviction mid-read
}

type lruNode struct {
	key            string
	size           int64
	lastAccessedAt time.Time
}

// ErrMiss is a sentinel error for a cache miss. Lookup does not return it:
// Lookup reports a miss as ok=false with a nil error.
var ErrMiss = fmt.Errorf("cache miss")

// New opens (or initializes) a SharedCache rooted at opts.Dir, indexing
// every existing entry's manifest to seed the LRU list.
func New(opts Options) (*SharedCache, error) {
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = defaultMaxSizeBytes
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	entriesDir := opts.Dir.UntypedJoin("entries")
	if err := entriesDir.MkdirAll(0o755); err != nil {
		return nil, fmt.Errorf("initializing cache dir: %w", err)
	}

	if err := checkVersionMarker(opts.Dir); err != nil {
		return nil, err
	}

	c := &SharedCache{
		dir:            opts.Dir,
		maxSizeBytes:   opts.MaxSizeBytes,
		remote:         opts.Remote,
		remoteOnly:     opts.RemoteOnly,
		skipCacheWrite: opts.SkipCacheWrite,
		logger:         opts.Logger.Named("cache"),
		stats:          loadStats(opts.Dir.UntypedJoin("stats.json").ToString()),
		lru:            list.New(),
		index:          make(map[string]*list.Element),
		refs:           make(map[string]int),
	}

	if err := c.seedIndex(entriesDir); err != nil {
		return nil, err
	}

	return c, nil
}

// versionFile names the cache directory's format-version marker. New
// refuses a directory whose marker names another version and returns an
// error instead of interpreting a foreign layout; `sail build` then stops
// with a cache error and does not run without the cache.
const versionFile = "CACHE_VERSION"

func checkVersionMarker(dir syspath.AbsoluteSystemPath) error {
	path := dir.UntypedJoin(versionFile)
	raw, err := os.ReadFile(path.ToString())
	if os.IsNotExist(err) {
		return os.WriteFile(path.ToString(), []byte(fmt.Sprintf("%d", cacheFormatVersion)), 0o644)
	}
	if err != nil {
		return err
	}
	var onDisk int
	if _, err := fmt.Sscanf(string(raw), "%d", &onDisk); err != nil || onDisk != cacheFormatVersion {
		return fmt.Errorf("cache directory %s has an incompatible format version; refusing to use it", dir.ToString())
	}
	return nil
}

func (c *SharedCache) entryDir(key string) syspath.AbsoluteSystemPath {
	return c.dir.UntypedJoin("entries").UntypedJoin(key)
}

func (c *SharedCache) seedIndex(entriesDir syspath.AbsoluteSystemPath) error {
	matches, err := filepath.Glob(entriesDir.UntypedJoin("*", "manifest.json").ToString())
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var man Manifest
		if err := json.Unmarshal(raw, &man); err != nil {
			continue
		}
		key := filepath.Base(filepath.Dir(m))
		node := &lruNode{key: key, size: man.TotalSize(), lastAccessedAt: man.LastAccessedAt}
		c.index[key] = c.lru.PushBack(node)
	}
	return nil
}

// touch moves key to the front of the LRU list (most recently used).
func (c *SharedCache) touch(key string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		el.Value.(*lruNode).lastAccessedAt = time.Now()
		c.lru.MoveToFront(el)
		return
	}
	node := &lruNode{key: key, size: size, lastAccessedAt: time.Now()}
	c.index[key] = c.lru.PushFront(node)
}

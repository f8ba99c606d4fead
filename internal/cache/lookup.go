package cache

import (
	"encoding/json"
	"os"
)

// Lookup computes no hash itself - callers pass the already-computed
// cache key (see internal/hash.CacheKeyBuilder) - and returns the
// entry's manifest, or ok=false on a clean miss. When RemoteOnly is set,
// or the local store has no entry for key, a configured RemoteBackend is
// consulted as a fallback.
func (c *SharedCache) Lookup(key string) (*Manifest, bool, error) {
	manifestPath := c.entryDir(key).UntypedJoin("manifest.json")

	if !c.remoteOnly {
		raw, err := os.ReadFile(manifestPath.ToString())
		if err == nil {
			var man Manifest
			if err := json.Unmarshal(raw, &man); err != nil || man.Version != manifestVersion {
				return nil, false, nil
			}
			c.stats.recordHit(0, 0)
			c.touch(key, man.TotalSize())
			return &man, true, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, err
		}
	}

	if c.remote != nil {
		data, ok, err := c.remote.Fetch(key)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			c.stats.recordMiss()
			return nil, false, nil
		}

		var man Manifest
		if err := json.Unmarshal(data, &man); err != nil || man.Version != manifestVersion {
			c.stats.recordMiss()
			return nil, false, nil
		}
		c.stats.recordHit(0, 0)
		c.touch(key, man.TotalSize())
		return &man, true, nil
	}

	c.stats.recordMiss()
	return nil, false, nil
}

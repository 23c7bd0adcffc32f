package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/scibuild/scibuild/pkgs/spec"
)

// Store directory layout:
//
//	storeDir/
//	  <name>/                         # package-level dir (cacheDir)
//	    .cache.json                   # build cache: maps "version-variants" -> buildEntry
//	  <name>@<version>-<varianthash>/ # install prefix
//	    include/
//	    lib/
//	    ...
const cacheFile = ".cache.json"

// buildEntry contains metadata about a single successful build.
type buildEntry struct {
	Prefix    string    `json:"prefix"`
	BuildTime time.Time `json:"build_time"`
}

// buildCache maps "version-variants" keys to their build entries.
type buildCache struct {
	Cache map[string]*buildEntry `json:"cache"`
}

// variantsKey renders the variant selection deterministically.
func variantsKey(s *spec.Spec) string {
	names := make([]string, 0, len(s.Variants))
	for name := range s.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	key := ""
	for _, name := range names {
		if key != "" {
			key += ","
		}
		key += name + "=" + s.Variants[name]
	}
	return key
}

// variantsHash is a short stable digest used in directory names, where
// the full variant string would be unwieldy.
func variantsHash(s *spec.Spec) string {
	sum := sha256.Sum256([]byte(variantsKey(s)))
	return hex.EncodeToString(sum[:4])
}

func cacheKey(s *spec.Spec) string {
	return s.Version + "-" + variantsKey(s)
}

func (c *buildCache) get(s *spec.Spec) (*buildEntry, bool) {
	entry, ok := c.Cache[cacheKey(s)]
	return entry, ok
}

func (c *buildCache) set(s *spec.Spec, entry *buildEntry) {
	if c.Cache == nil {
		c.Cache = make(map[string]*buildEntry)
	}
	c.Cache[cacheKey(s)] = entry
}

// cacheDir returns the package-level directory for cache storage.
func (b *Builder) cacheDir(name string) string {
	return filepath.Join(b.storeDir, name)
}

// installDir returns the install prefix for a spec.
func (b *Builder) installDir(s *spec.Spec) string {
	return filepath.Join(b.storeDir, s.Name+"@"+s.Version+"-"+variantsHash(s))
}

// loadCache reads the cache file for a package from the store.
func (b *Builder) loadCache(name string) (*buildCache, error) {
	data, err := os.ReadFile(filepath.Join(b.cacheDir(name), cacheFile))
	if err != nil {
		return nil, err
	}
	var cache buildCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}

// saveCache writes the cache file for a package to the store.
func (b *Builder) saveCache(name string, cache *buildCache) error {
	dir := b.cacheDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}

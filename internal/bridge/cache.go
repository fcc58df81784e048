package bridge

import (
	"sync"

	"github.com/ianzepp/monk-ftp/internal/listing"
)

// dirCache memoizes parsed listings per absolute directory path. Entries are
// replaced wholesale and dropped when a mutation touches the directory;
// there is no TTL. The cache is the only shared mutable state in the bridge,
// so concurrent operations only need this mutex.
type dirCache struct {
	mu sync.Mutex
	m  map[string]*listing.Listing
}

func newDirCache() *dirCache {
	return &dirCache{m: make(map[string]*listing.Listing)}
}

func (c *dirCache) Get(path string) (*listing.Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.m[path]
	return l, ok
}

func (c *dirCache) Put(path string, l *listing.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[path] = l
}

// Invalidate drops the entry for path. Called with the parent directory of
// every successful write and delete so the next listing reflects the
// mutation.
func (c *dirCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, path)
}

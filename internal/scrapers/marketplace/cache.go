package marketplace

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// resolveCache memoizes page resolutions that reflect the page content
// (found and no-image). A nil *resolveCache never hits.
type resolveCache struct {
	lru *expirable.LRU[string, Resolution]
}

func newResolveCache(size int, ttl time.Duration) *resolveCache {
	if size <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &resolveCache{
		lru: expirable.NewLRU[string, Resolution](size, nil, ttl),
	}
}

func (c *resolveCache) key(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	return purell.NormalizeURL(
		parsed,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
}

func (c *resolveCache) get(pageURL string) (Resolution, bool) {
	if c == nil {
		return Resolution{}, false
	}
	return c.lru.Get(c.key(pageURL))
}

func (c *resolveCache) put(pageURL string, resolution Resolution) {
	if c == nil {
		return
	}
	if resolution.Outcome != OutcomeFound && resolution.Outcome != OutcomeNoImage {
		return
	}
	c.lru.Add(c.key(pageURL), resolution)
}

func (c *resolveCache) len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *resolveCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

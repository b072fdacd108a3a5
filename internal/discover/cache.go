package discover

import (
	"container/list"
	"sync"
	"time"

	"github.com/jcgentr/article-summarizer/internal/domain"
)

// storyCache is a small LRU of feed snapshots keyed by feed URL, each with
// its own expiry.
type storyCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type storyCacheEntry struct {
	key       string
	stories   []domain.Story
	expiresAt time.Time
}

func newStoryCache(maxEntries int) *storyCache {
	if maxEntries <= 0 {
		return nil
	}

	return &storyCache{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *storyCache) get(key string, now time.Time) ([]domain.Story, bool) {
	if c == nil || key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry, ok := elem.Value.(*storyCacheEntry)
	if !ok {
		return nil, false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return nil, false
	}

	c.order.MoveToFront(elem)

	return entry.stories, true
}

func (c *storyCache) set(key string, stories []domain.Story, expiresAt time.Time, now time.Time) {
	if c == nil || key == "" || len(stories) == 0 || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		if entry, castOk := elem.Value.(*storyCacheEntry); castOk {
			entry.stories = stories
			entry.expiresAt = expiresAt
			c.order.MoveToFront(elem)
		}

		return
	}

	c.entries[key] = c.order.PushFront(&storyCacheEntry{
		key:       key,
		stories:   stories,
		expiresAt: expiresAt,
	})

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *storyCache) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if entry, ok := elem.Value.(*storyCacheEntry); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *storyCache) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *storyCache) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*storyCacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

package experiment

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

var ErrDuplicateContextKey = errors.New("duplicate context key")

// Contexts is caller supplied metadata attached to every Result of an
// experiment. Keys keep their insertion order. Values are opaque: the engine
// never reads them and hands them to publishers as given.
//
// Contexts is not safe for concurrent mutation. Populate it before the
// experiment runs and treat it as read-only afterwards.
type Contexts struct {
	entries *linkedhashmap.Map
}

func NewContexts() *Contexts {
	return &Contexts{entries: linkedhashmap.New()}
}

// Add inserts a new key. Adding a key twice is a configuration error.
// The zero value is ready for Add; a nil *Contexts is not.
func (c *Contexts) Add(key string, value any) error {
	if c.entries == nil {
		c.entries = linkedhashmap.New()
	}
	if _, found := c.entries.Get(key); found {
		return fmt.Errorf("%w: '%s'", ErrDuplicateContextKey, key)
	}
	c.entries.Put(key, value)
	return nil
}

func (c *Contexts) Get(key string) (any, bool) {
	if c == nil || c.entries == nil {
		return nil, false
	}
	return c.entries.Get(key)
}

func (c *Contexts) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Size()
}

func (c *Contexts) Keys() []string {
	if c == nil || c.entries == nil {
		return nil
	}
	keys := make([]string, 0, c.entries.Size())
	c.entries.Each(func(key, _ interface{}) {
		keys = append(keys, key.(string))
	})
	return keys
}

// Each calls fn for every entry in insertion order.
func (c *Contexts) Each(fn func(key string, value any)) {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Each(func(key, value interface{}) {
		fn(key.(string), value)
	})
}

// Map returns a copy of the entries. Order is lost.
func (c *Contexts) Map() map[string]any {
	out := make(map[string]any, c.Len())
	c.Each(func(key string, value any) {
		out[key] = value
	})
	return out
}

func (c *Contexts) clone() *Contexts {
	out := NewContexts()
	c.Each(func(key string, value any) {
		out.entries.Put(key, value)
	})
	return out
}

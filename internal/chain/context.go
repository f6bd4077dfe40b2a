package chain

import (
	"encoding/json"
	"sort"
)

// Context is the key-value store threaded through a chain run. Keys are
// never deleted; Set overwrites.
type Context struct {
	values map[string]Value
}

// NewContext returns a context pre-seeded with seed. The seed map is copied.
func NewContext(seed map[string]Value) *Context {
	c := &Context{values: make(map[string]Value, len(seed))}
	for k, v := range seed {
		c.values[k] = v
	}
	return c
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set stores v under key, replacing any earlier value.
func (c *Context) Set(key string, v Value) {
	c.values[key] = v
}

// SetText is Set(key, Text(s)).
func (c *Context) SetText(key, s string) {
	c.Set(key, Text(s))
}

func (c *Context) Len() int {
	return len(c.values)
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Vars converts the context into template variables.
func (c *Context) Vars() map[string]any {
	vars := make(map[string]any, len(c.values))
	for k, v := range c.values {
		vars[k] = v.Any()
	}
	return vars
}

func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.values)
}

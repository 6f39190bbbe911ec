package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CallKey is the canonical identity of a tool call: the JSON encoding of
// {"toolName": name, "params": params}. encoding/json sorts map keys, so
// argument order does not matter.
func CallKey(name string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(struct {
		ToolName string         `json:"toolName"`
		Params   map[string]any `json:"params"`
	}{name, params})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DedupCache remembers which calls ran during one turn. It must not be
// shared between turns.
type DedupCache struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	group singleflight.Group
}

// NewDedupCache creates an empty cache for one turn.
func NewDedupCache() *DedupCache {
	return &DedupCache{seen: make(map[string]struct{})}
}

// Do runs fn for the first caller of key and returns its result. Every
// later caller gets a nil result: "already handled". A duplicate that
// arrives while the first call is still running waits for it to finish, so
// the model never sees the handled marker before the data it refers to.
func (c *DedupCache) Do(ctx context.Context, key string, fn func() (*ToolResult, error)) (*ToolResult, error) {
	c.mu.Lock()
	_, seen := c.seen[key]
	c.seen[key] = struct{}{}
	ch := c.group.DoChan(key, func() (v any, err error) {
		if seen {
			return (*ToolResult)(nil), nil
		}
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		r, err := fn()
		return r, err
	})
	c.mu.Unlock()

	select {
	case res := <-ch:
		if seen {
			return nil, nil
		}
		if res.Err != nil {
			return nil, res.Err
		}
		r, _ := res.Val.(*ToolResult)
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

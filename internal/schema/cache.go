package schema

import (
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
)

// Cache compiles a grammar resource on first use and shares the result.
// Callers racing on the first use block until the grammar is compiled or
// known to be unavailable; compilation happens once.
type Cache struct {
	fsys   fs.FS
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	schema *Schema
	err    error
}

// NewCache returns a cache for the grammar at path inside fsys.
func NewCache(fsys fs.FS, path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{fsys: fsys, path: path, logger: logger}
}

var defaultCache = NewCache(resources, ResourceName, nil)

// Default returns the process-wide cache of the embedded grammar.
func Default() *Cache {
	return defaultCache
}

// Get returns the compiled grammar. ok is false when the resource is
// missing or does not compile; documents are then decoded without
// validation. The failure is logged once.
func (c *Cache) Get() (s *Schema, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.loaded = true
		c.schema, c.err = c.compile()
		if c.err != nil {
			c.logger.Warn("technology schema unavailable, decoding without validation",
				"resource", c.path, "error", c.err)
		}
	}
	return c.schema, c.schema != nil
}

// Err returns the reason the grammar is unavailable, if any.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Cache) compile() (*Schema, error) {
	data, err := fs.ReadFile(c.fsys, c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Compile(data)
}

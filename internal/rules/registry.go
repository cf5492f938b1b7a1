package rules

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imr/Electric8/internal/models"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Registry holds named rule tables, optionally persisted as YAML files in
// a directory.
type Registry struct {
	mu     sync.RWMutex
	dir    string
	tables map[string]*Table
	infos  map[string]models.RulesInfo
	logger *slog.Logger
}

// NewRegistry returns a registry persisting to dir. An empty dir keeps
// tables in memory only.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:    dir,
		tables: make(map[string]*Table),
		infos:  make(map[string]models.RulesInfo),
		logger: logger,
	}
}

// Load reads every .yaml and .yml file of the registry directory. A file
// that fails to parse is logged and skipped.
func (r *Registry) Load() error {
	if r.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading rules directory: %w", err)
	}

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		t, err := ParseRules(path)
		if err != nil {
			r.logger.Warn("skipping rule table", "path", path, "error", err)
			continue
		}
		modTime := time.Now()
		if fi, err := e.Info(); err == nil {
			modTime = fi.ModTime()
		}
		r.put(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), t, modTime)
	}
	r.logger.Info("rule tables loaded", "count", len(r.tables), "dir", r.dir)
	return nil
}

// Add parses data as a YAML rule table and registers it under id,
// replacing any previous table with that id.
func (r *Registry) Add(id string, data []byte) (models.RulesInfo, error) {
	if !validID.MatchString(id) {
		return models.RulesInfo{}, fmt.Errorf("invalid rule table id %q", id)
	}
	t, err := ParseRulesFromReader(bytes.NewReader(data))
	if err != nil {
		return models.RulesInfo{}, err
	}
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return models.RulesInfo{}, fmt.Errorf("creating rules directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(r.dir, id+".yaml"), data, 0644); err != nil {
			return models.RulesInfo{}, fmt.Errorf("writing rule table: %w", err)
		}
	}
	return r.put(id, t, time.Now()), nil
}

func (r *Registry) put(id string, t *Table, at time.Time) models.RulesInfo {
	info := models.RulesInfo{
		ID:         id,
		Name:       t.Name,
		UploadedAt: at.UTC().Format(time.RFC3339),
		RulesCount: t.Len(),
	}
	r.mu.Lock()
	r.tables[id] = t
	r.infos[id] = info
	r.mu.Unlock()
	return info
}

// Get returns the table registered under id.
func (r *Registry) Get(id string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	return t, ok
}

// List describes the registered tables ordered by id.
func (r *Registry) List() []models.RulesInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.RulesInfo, 0, len(r.infos))
	for _, info := range r.infos {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Package catalog answers medicine name lookups from a local catalog with a
// remote spelling-suggestion fallback
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MinQueryLength is the shortest query that is looked up at all
const MinQueryLength = 2

//go:embed medicines.yaml
var builtinYAML []byte

// Medicine is one lookup candidate
type Medicine struct {
	ID       string   `json:"id" yaml:"-"`
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category,omitempty" yaml:"category"`
	Uses     []string `json:"uses,omitempty" yaml:"uses"`
}

type catalogFile struct {
	Medicines []Medicine `yaml:"medicines"`
}

// Catalog is the local medicine list: the embedded entries plus an optional
// user file layered on top
type Catalog struct {
	mu      sync.RWMutex
	builtin []Medicine
	user    []Medicine
	merged  []Medicine
}

// New loads the embedded catalog
func New() (*Catalog, error) {
	builtin, err := parse(builtinYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in catalog: %w", err)
	}
	c := &Catalog{builtin: builtin}
	c.merge()
	return c, nil
}

// LoadFile replaces the user layer with the entries in path. A missing file
// clears the layer.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.setUser(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	user, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	c.setUser(user)
	return nil
}

// Len returns the number of distinct medicines
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.merged)
}

// Search returns medicines whose name, category or any use contains query,
// case-insensitively, name matches first. limit <= 0 means no limit.
func (c *Catalog) Search(query string, limit int) []Medicine {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < MinQueryLength {
		return []Medicine{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var byName, byOther []Medicine
	for _, m := range c.merged {
		switch {
		case strings.Contains(strings.ToLower(m.Name), q):
			byName = append(byName, m)
		case strings.Contains(strings.ToLower(m.Category), q) || containsAny(m.Uses, q):
			byOther = append(byOther, m)
		}
	}

	out := append(byName, byOther...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return clone(out)
}

func (c *Catalog) setUser(user []Medicine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
	c.merge()
}

// merge must be called with c.mu held
func (c *Catalog) merge() {
	index := make(map[string]int)
	merged := make([]Medicine, 0, len(c.builtin)+len(c.user))
	for _, layer := range [][]Medicine{c.builtin, c.user} {
		for _, m := range layer {
			if i, ok := index[m.ID]; ok {
				merged[i] = m
				continue
			}
			index[m.ID] = len(merged)
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return strings.ToLower(merged[i].Name) < strings.ToLower(merged[j].Name)
	})
	c.merged = merged
}

func parse(data []byte) ([]Medicine, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	out := make([]Medicine, 0, len(f.Medicines))
	for _, m := range f.Medicines {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			continue
		}
		m.ID = Slug(m.Name)
		out = append(out, m)
	}
	return out, nil
}

// Slug derives a medicine id from its name: lowercased, whitespace as dashes
func Slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func containsAny(values []string, q string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func clone(in []Medicine) []Medicine {
	out := make([]Medicine, len(in))
	for i, m := range in {
		m.Uses = append([]string(nil), m.Uses...)
		out[i] = m
	}
	return out
}

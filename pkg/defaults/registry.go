package defaults

import (
	"fmt"
	"sort"

	"github.com/zen-systems/anchorfill/pkg/config"
)

// Registry holds named default tables.
type Registry struct {
	tables map[string]Table
}

// NewRegistry builds a registry from cfg. A nil cfg registers the built-in
// profiles.
func NewRegistry(cfg *config.DefaultsConfig) *Registry {
	if cfg == nil {
		cfg = config.DefaultDefaultsConfig()
	}
	r := &Registry{
		tables: make(map[string]Table),
	}
	for name, p := range cfg.Profiles {
		r.Register(NewTable(name, p))
	}
	return r
}

// Register adds or replaces a table under its name.
func (r *Registry) Register(t Table) {
	r.tables[t.Name()] = t
}

// Get returns the named table.
func (r *Registry) Get(name string) (Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("defaults profile not found: %s", name)
	}
	return t, nil
}

// Names returns the registered profile names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package defaults holds the default-answer tables the inference engine
// falls back to.
package defaults

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zen-systems/anchorfill/pkg/answer"
	"github.com/zen-systems/anchorfill/pkg/config"
)

// Table is an immutable default-answer table. The zero value answers from
// catalog defaults only.
type Table struct {
	name          string
	values        map[string]string
	fallback      string
	ignoreCatalog bool
}

// NewTable copies profile into a Table.
func NewTable(name string, profile config.DefaultsProfile) Table {
	values := make(map[string]string, len(profile.Values))
	for id, v := range profile.Values {
		values[id] = v
	}
	return Table{
		name:          name,
		values:        values,
		fallback:      profile.Fallback,
		ignoreCatalog: profile.IgnoreCatalogDefaults,
	}
}

// Name returns the profile name the table was built from.
func (t Table) Name() string {
	return t.name
}

// Pinned returns the value pinned for id, if any.
func (t Table) Pinned(id string) (string, bool) {
	v, ok := t.values[id]
	return v, ok && v != ""
}

// Lookup resolves the default for id: pinned value, then catalog default,
// then the profile fallback, then answer.PendingAnswer. Profiles that
// ignore catalog defaults put the fallback ahead of the catalog default.
func (t Table) Lookup(id, catalogDefault string) string {
	if v, ok := t.Pinned(id); ok {
		return v
	}
	if t.ignoreCatalog && t.fallback != "" {
		return t.fallback
	}
	if catalogDefault != "" {
		return catalogDefault
	}
	if t.fallback != "" {
		return t.fallback
	}
	return answer.PendingAnswer
}

// IDs returns the pinned question ids in sorted order.
func (t Table) IDs() []string {
	ids := make([]string, 0, len(t.values))
	for id := range t.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint hashes the table's contents.
func (t Table) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t\n", t.name, t.fallback, t.ignoreCatalog)
	for _, id := range t.IDs() {
		fmt.Fprintf(h, "%s\x00%s\n", id, t.values[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Groups maps a group name (e.g. "starred", "alberta") to location keys.
type Groups map[string][]string

// LoadGroups reads a groups file. A missing file yields no groups.
func LoadGroups(path string) (Groups, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Groups{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	g := Groups{}
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse groups %s: %w", path, err)
	}
	return g, nil
}

// Members returns the keys in a group. Group names match case-insensitively.
func (g Groups) Members(name string) ([]string, bool) {
	if keys, ok := g[name]; ok {
		return keys, true
	}
	for n, keys := range g {
		if strings.EqualFold(n, name) {
			return keys, true
		}
	}
	return nil, false
}

func (g Groups) Names() []string {
	names := make([]string, 0, len(g))
	for n := range g {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Selection picks locations from the registry. Keys win over Group, Group
// over Country; an empty selection means every location.
type Selection struct {
	Keys    []string
	Group   string
	Country string
}

// Resolve applies sel against the registry.
func (r *Registry) Resolve(sel Selection, groups Groups) ([]Location, error) {
	switch {
	case len(sel.Keys) > 0:
		return r.Select(sel.Keys)
	case sel.Group != "":
		keys, ok := groups.Members(sel.Group)
		if !ok {
			return nil, fmt.Errorf("unknown group %q (have %s)", sel.Group, strings.Join(groups.Names(), ", "))
		}
		return r.Select(keys)
	case sel.Country != "":
		return r.InCountry(sel.Country)
	default:
		return r.List()
	}
}

// Package catalog maps built-in roles of both organization kinds to their
// permission sets. The catalog ships with defaults and can be replaced by a
// YAML file that is hot-reloaded while the service runs.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"ratebench.io/internal/authz"
)

// Catalog is a concurrency-safe role→permissions mapping. Reloads swap the
// whole mapping atomically.
type Catalog struct {
	mu    sync.RWMutex
	roles map[string][]string
}

type fileFormat struct {
	Roles []roleEntry `yaml:"roles"`
}

type roleEntry struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Permissions []string `yaml:"permissions"`
}

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	c := &Catalog{roles: map[string][]string{}}
	c.roles[roleKey("client", "rate_admin")] = []string{
		PermViewRates, PermUpdateRates, PermApproveRates,
		PermCreateNegotiations, PermRespondNegotiations, PermViewNegotiations,
		PermViewAnalytics, PermExportReports, PermManageActors, PermManageRoles,
		PermManageOrganizations,
	}
	c.roles[roleKey("client", "negotiator")] = []string{
		PermViewRates, PermCreateNegotiations, PermRespondNegotiations,
		PermViewNegotiations, PermViewAnalytics,
	}
	c.roles[roleKey("client", "analyst")] = []string{
		PermViewRates, PermViewNegotiations, PermViewAnalytics, PermExportReports,
	}
	c.roles[roleKey("client", "viewer")] = []string{PermViewRates, PermViewNegotiations}

	c.roles[roleKey("law_firm", "billing_partner")] = []string{
		PermViewRates, PermUpdateRates, PermApproveRates,
		PermCreateNegotiations, PermRespondNegotiations, PermViewNegotiations,
		PermViewAnalytics, PermExportReports, PermManageActors, PermManageRoles,
		PermManageOrganizations,
	}
	c.roles[roleKey("law_firm", "pricing_analyst")] = []string{
		PermViewRates, PermUpdateRates, PermViewNegotiations,
		PermViewAnalytics, PermExportReports,
	}
	c.roles[roleKey("law_firm", "viewer")] = []string{PermViewRates, PermViewNegotiations}
	return c
}

// Load builds a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	c := &Catalog{roles: map[string][]string{}}
	if err := c.ReloadFrom(path); err != nil {
		return nil, err
	}
	return c, nil
}

// ReloadFrom re-reads the YAML file and swaps the mapping in place. On error
// the previous mapping stays active.
func (c *Catalog) ReloadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	if len(f.Roles) == 0 {
		return fmt.Errorf("catalog: %s defines no roles", path)
	}

	next := make(map[string][]string, len(f.Roles))
	for _, entry := range f.Roles {
		name := strings.TrimSpace(strings.ToLower(entry.Name))
		kind := strings.TrimSpace(strings.ToLower(entry.Kind))
		if name == "" || kind == "" {
			return fmt.Errorf("catalog: role entry missing name or kind")
		}
		if kind != string(authz.OrgKindClient) && kind != string(authz.OrgKindLawFirm) {
			return fmt.Errorf("catalog: unknown organization kind %q", entry.Kind)
		}
		perms := make([]string, 0, len(entry.Permissions))
		for _, p := range entry.Permissions {
			key, err := authz.ParseKey(p)
			if err != nil {
				return fmt.Errorf("catalog: role %s: %w", name, err)
			}
			perms = append(perms, key.String())
		}
		next[roleKey(kind, name)] = perms
	}

	c.mu.Lock()
	c.roles = next
	c.mu.Unlock()
	return nil
}

// PermissionsForRole returns the permission set of a role within an
// organization kind. Unknown roles resolve to an empty set.
func (c *Catalog) PermissionsForRole(kind authz.OrgKind, role string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	perms := c.roles[roleKey(string(kind), strings.ToLower(role))]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Roles lists the known kind/role pairs in stable order.
func (c *Catalog) Roles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roles))
	for k := range c.roles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func roleKey(kind, name string) string {
	return kind + "/" + name
}

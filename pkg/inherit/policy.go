package inherit

import (
	"sort"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// Policy is the allow/deny list pair restricting which keys a child inherits.
// Deny always wins; an empty allow list allows everything not denied.
type Policy struct {
	Include []string
	Exclude []string
}

// Allows reports whether key may be taken from the parent
func (p Policy) Allows(key string) bool {
	if contains(p.Exclude, key) {
		return false
	}
	return len(p.Include) == 0 || contains(p.Include, key)
}

// normalize drops denied keys from the allow list and sorts both lists.
func (p Policy) normalize() Policy {
	out := Policy{Exclude: dedupe(p.Exclude)}
	for _, k := range dedupe(p.Include) {
		if !contains(out.Exclude, k) {
			out.Include = append(out.Include, k)
		}
	}
	return out
}

// filter keeps only keys governed by the policy of domain d. The global
// policy governs every key outside the file and env domains.
func filter(keys []string, d Domain) []string {
	var out []string
	for _, k := range keys {
		if policyDomain(DomainOf(k)) == d {
			out = append(out, k)
		}
	}
	return out
}

func policyDomain(d Domain) Domain {
	if d == DomainFile || d == DomainEnv {
		return d
	}
	return DomainGlobal
}

// tierList returns the list a single tier declares for domain d: the domain's
// own key when present, else the global list filtered to the domain.
func tierList(t Declaration, d Domain, exclude bool) ([]string, bool) {
	inc, exc := listKeys(d)
	own, global := inc, KeyInclude
	if exclude {
		own, global = exc, KeyExclude
	}
	if d != DomainGlobal {
		if v, ok := t.Strings(own); ok {
			return v, true
		}
	}
	if v, ok := t.Strings(global); ok {
		return filter(v, d), true
	}
	return nil, false
}

func checkListKeys(tiers ...Declaration) error {
	var unknown []string
	for _, t := range tiers {
		for _, k := range []string{KeyInclude, KeyExclude, KeyConfInclude, KeyConfExclude, KeyEnvInclude, KeyEnvExclude} {
			v, _ := t.Strings(k)
			for _, name := range v {
				if !Known(name) {
					unknown = append(unknown, name)
				}
			}
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errors.New(errors.ErrorTypeConfig, "unknown include/exclude key").
		WithDetail("keys", dedupe(unknown))
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, e := range list {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

package scope

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidEntry is returned by NewTarget for entries that cannot be
// interpreted as a host, domain, IP address or CIDR range.
var ErrInvalidEntry = errors.New("invalid scope entry")

// Gate decides whether a target is in scope.
// Implementations must be pure and safe for concurrent use.
type Gate interface {
	// InScope reports whether target may be contacted. The target may be a
	// URL, a host:port pair, a hostname or an IP address.
	InScope(target string) bool
}

// GateFunc adapts an ordinary function to the Gate interface.
type GateFunc func(target string) bool

// InScope calls f(target).
func (f GateFunc) InScope(target string) bool {
	return f(target)
}

// All returns a Gate that accepts every target.
func All() Gate {
	return GateFunc(func(string) bool { return true })
}

// Target is a set of scope entries.
// A name entry covers the name itself and all of its subdomains;
// an IP entry covers exactly that address; a CIDR entry covers its range.
type Target struct {
	names    map[string]struct{}
	prefixes []netip.Prefix
	entries  []string
}

// NewTarget builds a Target from entries. Blank entries are skipped.
// URLs are accepted and reduced to their host. A leading "*." is ignored
// because name entries always include subdomains.
func NewTarget(entries ...string) (*Target, error) {
	t := &Target{
		names:    make(map[string]struct{}),
		prefixes: make([]netip.Prefix, 0),
		entries:  make([]string, 0, len(entries)),
	}

	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		if !strings.Contains(entry, "://") && strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidEntry, raw, err)
			}
			t.prefixes = append(t.prefixes, prefix.Masked())
			t.entries = append(t.entries, entry)
			continue
		}

		host := Host(strings.TrimPrefix(entry, "*."))
		if host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntry, raw)
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			t.prefixes = append(t.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		} else {
			t.names[host] = struct{}{}
		}
		t.entries = append(t.entries, entry)
	}

	return t, nil
}

// InScope reports whether target falls inside any entry of t.
func (t *Target) InScope(target string) bool {
	host := Host(target)
	if host == "" {
		return false
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		for _, p := range t.prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		// An IP never matches a name entry.
		return false
	}

	// Walk up the labels: a.b.example.com, b.example.com, example.com, com.
	for name := host; name != ""; {
		if _, ok := t.names[name]; ok {
			return true
		}
		i := strings.IndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[i+1:]
	}
	return false
}

// Len returns the number of entries in t.
func (t *Target) Len() int {
	return len(t.entries)
}

// Entries returns the entries t was built from, in order.
func (t *Target) Entries() []string {
	return append([]string(nil), t.entries...)
}

// Host reduces target to its normalized host component: lowercase,
// IDNA ASCII form, no port, no brackets and no trailing dot. IP addresses
// are returned in canonical form (IPv4-mapped IPv6 is unmapped).
// Returns "" when no host can be extracted.
func Host(target string) string {
	s := strings.TrimSpace(target)
	if s == "" {
		return ""
	}

	// Bare IPs first: "::1" would otherwise be split as host ":" port "1".
	if addr, err := netip.ParseAddr(strings.Trim(s, "[]")); err == nil {
		return addr.Unmap().WithZone("").String()
	}

	if !strings.Contains(s, "://") {
		s = "//" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return ""
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().WithZone("").String()
	}

	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	// Names with underscores and similar are not valid IDNA but still occur
	// in the wild (e.g. _dmarc records); keep the lowercased form.
	return host
}

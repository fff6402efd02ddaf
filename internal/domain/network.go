package domain

import (
	"net/netip"
	"strings"

	"blocklist/internal/apperror"
)

// ParseNetwork parses a CIDR literal or a bare address. A bare address becomes a single
// host prefix. Prefixes with host bits set are rejected, the same way a PostgreSQL cidr
// column rejects them.
func ParseNetwork(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Prefix{}, apperror.New(apperror.KindParse, "empty network")
	}

	if !strings.Contains(raw, "/") {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return netip.Prefix{}, apperror.FromParse(err, "invalid IP address "+quote(raw))
		}
		addr = addr.WithZone("")
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}

	prefix, err := netip.ParsePrefix(raw)
	if err != nil {
		return netip.Prefix{}, apperror.FromParse(err, "invalid network "+quote(raw))
	}
	if prefix.Masked() != prefix {
		return netip.Prefix{}, apperror.Newf(apperror.KindParse,
			"invalid network %q: value has bits set to right of mask", raw)
	}
	return prefix, nil
}

func quote(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return `"` + s + `"`
}

package domain

import (
	"database/sql/driver"
	"fmt"
	"net/netip"
	"strings"

	"blocklist/internal/apperror"
)

// IPVersion tags an entry with the address family of its network. It is stored as a
// SMALLINT: 0 for IPv4, 1 for IPv6.
type IPVersion int16

const (
	IPv4 IPVersion = 0
	IPv6 IPVersion = 1
)

// VersionOf derives the version from the address family of prefix.
func VersionOf(prefix netip.Prefix) IPVersion {
	if prefix.Addr().Is4() {
		return IPv4
	}
	return IPv6
}

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("IPVersion(%d)", int16(v))
	}
}

// ParseIPVersion accepts "ipv4" or "ipv6" in any case.
func ParseIPVersion(raw string) (IPVersion, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ipv4":
		return IPv4, nil
	case "ipv6":
		return IPv6, nil
	default:
		return 0, apperror.Newf(apperror.KindParse, "unknown IP version %q", raw)
	}
}

func (v IPVersion) MarshalText() ([]byte, error) {
	if v != IPv4 && v != IPv6 {
		return nil, fmt.Errorf("domain.IPVersion: unrecognized variant %d", int16(v))
	}
	return []byte(v.String()), nil
}

func (v *IPVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseIPVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Value implements driver.Valuer so the version is written as its SMALLINT code.
func (v IPVersion) Value() (driver.Value, error) {
	if v != IPv4 && v != IPv6 {
		return nil, fmt.Errorf("domain.IPVersion: unrecognized variant %d", int16(v))
	}
	return int64(v), nil
}

// Scan implements sql.Scanner and rejects codes other than 0 and 1.
func (v *IPVersion) Scan(value any) error {
	var code int64
	switch raw := value.(type) {
	case int64:
		code = raw
	case int32:
		code = int64(raw)
	case int16:
		code = int64(raw)
	case []byte:
		if _, err := fmt.Sscan(string(raw), &code); err != nil {
			return fmt.Errorf("domain.IPVersion: %w", err)
		}
	default:
		return fmt.Errorf("domain.IPVersion: unsupported type %T", value)
	}

	switch IPVersion(code) {
	case IPv4, IPv6:
		*v = IPVersion(code)
		return nil
	default:
		return fmt.Errorf("domain.IPVersion: unrecognized variant %d", code)
	}
}

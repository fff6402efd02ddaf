package domain

import (
	"net/netip"
	"strings"
	"time"
)

// BlocklistEntry is one persisted deny-list record.
type BlocklistEntry struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	// IP holds the canonical network string (e.g. 203.0.113.0/24).
	IP      string    `gorm:"type:cidr;uniqueIndex;not null"`
	Version IPVersion `gorm:"type:smallint;not null;index"`

	CountryCode *string
	ISP         *string `gorm:"column:isp"`
	UserAgent   *string
	Description *string

	AddedAt time.Time `gorm:"autoCreateTime;not null"`
}

func (BlocklistEntry) TableName() string {
	return "blocklist"
}

// NewEntry is the caller supplied part of an entry. Version and timestamps are never
// taken from callers.
type NewEntry struct {
	IP          netip.Prefix
	CountryCode string
	ISP         string
	UserAgent   string
}

// Record builds the row to insert. Description is only filled by administrative backfill
// and is always left empty here.
func (n NewEntry) Record() BlocklistEntry {
	return BlocklistEntry{
		IP:          n.IP.String(),
		Version:     VersionOf(n.IP),
		CountryCode: optional(n.CountryCode),
		ISP:         optional(n.ISP),
		UserAgent:   optional(n.UserAgent),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

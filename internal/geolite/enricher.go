package geolite

import (
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"

	"blocklist/internal/apperror"
	"blocklist/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
)

// Location is what the GeoLite databases know about an address.
type Location struct {
	CountryCode string
	ISP         string
}

// Enricher fills missing country and ISP metadata from MaxMind GeoLite databases.
// A nil *Enricher, or one opened without paths, leaves entries untouched.
type Enricher struct {
	mu      sync.RWMutex
	country *geoip2.Reader
	asn     *geoip2.Reader
}

// Open loads the country and ASN databases. Either path may be empty.
func Open(countryPath, asnPath string) (*Enricher, error) {
	e := &Enricher{}

	var err error
	if e.country, err = openReader(countryPath); err != nil {
		return nil, err
	}
	if e.asn, err = openReader(asnPath); err != nil {
		if e.country != nil {
			_ = e.country.Close()
		}
		return nil, err
	}

	log.Info("GeoLite enrichment ready", "country", e.country != nil, "asn", e.asn != nil)
	return e, nil
}

func openReader(path string) (*geoip2.Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindFile, err, "open GeoLite database "+path)
	}
	return reader, nil
}

// Lookup resolves addr. Unknown addresses yield an empty Location.
func (e *Enricher) Lookup(addr netip.Addr) Location {
	var loc Location
	if e == nil || !addr.IsValid() {
		return loc
	}
	ip := net.IP(addr.Unmap().AsSlice())

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.country != nil {
		if record, err := e.country.Country(ip); err == nil {
			loc.CountryCode = strings.ToUpper(record.Country.IsoCode)
		}
	}
	if e.asn != nil {
		if record, err := e.asn.ASN(ip); err == nil {
			loc.ISP = record.AutonomousSystemOrganization
		}
	}
	return loc
}

// Enrich fills CountryCode and ISP on entry when the caller left them blank.
func (e *Enricher) Enrich(entry *domain.NewEntry) {
	if e == nil || entry == nil {
		return
	}
	if strings.TrimSpace(entry.CountryCode) != "" && strings.TrimSpace(entry.ISP) != "" {
		return
	}

	loc := e.Lookup(entry.IP.Addr())
	if strings.TrimSpace(entry.CountryCode) == "" {
		entry.CountryCode = loc.CountryCode
	}
	if strings.TrimSpace(entry.ISP) == "" {
		entry.ISP = loc.ISP
	}
}

func (e *Enricher) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.country != nil {
		errs = append(errs, e.country.Close())
		e.country = nil
	}
	if e.asn != nil {
		errs = append(errs, e.asn.Close())
		e.asn = nil
	}
	return errors.Join(errs...)
}

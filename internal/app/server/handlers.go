package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"blocklist/internal/app/version"
	"blocklist/internal/apperror"
	"blocklist/internal/auth"
	"blocklist/internal/blocklist"
	"blocklist/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

const (
	maxJSONBodyBytes   = 1 << 20
	maxImportBodyBytes = 10 << 20
	healthTimeout      = 2 * time.Second
)

type addEntryRequest struct {
	IP          string `json:"ip" validate:"required,max=64"`
	ISP         string `json:"isp" validate:"omitempty,max=256"`
	CountryCode string `json:"country_code" validate:"omitempty,iso3166_1_alpha2"`
	UserAgent   string `json:"user_agent" validate:"omitempty,max=512"`
}

type tokenRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

type poolStatus struct {
	MaxOpen   int   `json:"max_open"`
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	Leases    int64 `json:"leases"`
	WaitCount int64 `json:"wait_count"`
}

type healthResponse struct {
	Status  string       `json:"status"`
	Build   version.Info `json:"build"`
	Entries *int64       `json:"entries,omitempty"`
	Pool    poolStatus   `json:"pool"`
}

type importResponse struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
}

func (s *Server) listBlocklist(w http.ResponseWriter, r *http.Request) {
	var filter *domain.IPVersion
	if raw := r.URL.Query().Get("ip_version"); raw != "" {
		v, err := domain.ParseIPVersion(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter = &v
	}

	body, err := s.blocklist.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) addBlocklistEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.CountryCode = strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if err := s.validateRequest(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	prefix, err := domain.ParseNetwork(req.IP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry := domain.NewEntry{
		IP:          prefix,
		CountryCode: req.CountryCode,
		ISP:         req.ISP,
		UserAgent:   req.UserAgent,
	}
	s.enricher.Enrich(&entry)

	if err := s.blocklist.Add(r.Context(), entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Info("blocklist entry added", append(auditFields(r), "ip", entry.IP.String())...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) importBlocklist(w http.ResponseWriter, r *http.Request) {
	entries, invalid, err := blocklist.ParseList(http.MaxBytesReader(w, r.Body, maxImportBodyBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(invalid) > 0 {
		s.writeError(w, r, apperror.Wrap(apperror.KindParse, invalid[0],
			fmt.Sprintf("%d invalid line(s), first at line %d", len(invalid), invalid[0].Line)))
		return
	}

	inserted, err := s.blocklist.Import(r.Context(), entries)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Info("blocklist import applied", append(auditFields(r), "received", len(entries), "inserted", inserted)...)
	writeJSON(w, http.StatusOK, importResponse{Received: len(entries), Inserted: inserted})
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validateRequest(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	stats := s.pool.Stats()
	resp := healthResponse{
		Status: "healthy",
		Build:  version.Get(),
		Pool: poolStatus{
			MaxOpen:   stats.MaxOpenConnections,
			Open:      stats.OpenConnections,
			InUse:     stats.InUse,
			Idle:      stats.Idle,
			Leases:    stats.Leases,
			WaitCount: stats.WaitCount,
		},
	}

	err := s.pool.Ping(ctx)
	if err == nil {
		var count int64
		if count, err = s.blocklist.Count(ctx); err == nil {
			resp.Entries = &count
		}
	}
	if err != nil {
		log.Warn("health check failed", "request_id", requestIDFrom(r.Context()), "error", err)
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// auditFields identifies who performed a write.
func auditFields(r *http.Request) []any {
	fields := []any{"request_id", requestIDFrom(r.Context())}
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		return append(fields, "actor", "anonymous")
	}
	return append(fields, "actor", claims.Role, "token_id", claims.ID)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperror.FromParse(err, "malformed JSON body")
	}
	return nil
}

func (s *Server) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, err, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

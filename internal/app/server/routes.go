package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"blocklist/internal/apperror"
	"blocklist/internal/auth"
	"blocklist/internal/database"
	"blocklist/internal/domain"
	"blocklist/internal/geolite"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 10 * time.Second

// Blocklist is the repository surface the handlers need.
type Blocklist interface {
	List(ctx context.Context, filter *domain.IPVersion) (string, error)
	Add(ctx context.Context, entry domain.NewEntry) error
	Import(ctx context.Context, entries []domain.NewEntry) (int, error)
	Count(ctx context.Context) (int64, error)
}

// Pool is what /health reports on.
type Pool interface {
	Ping(ctx context.Context) error
	Stats() database.Stats
}

type Server struct {
	blocklist Blocklist
	pool      Pool
	auth      *auth.Authenticator
	enricher  *geolite.Enricher
	staticDir string
	validate  *validator.Validate
}

type Option func(*Server)

func WithAuthenticator(a *auth.Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

func WithEnricher(e *geolite.Enricher) Option {
	return func(s *Server) {
		s.enricher = e
	}
}

func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

func New(blocklist Blocklist, pool Pool, opts ...Option) *Server {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		blocklist: blocklist,
		pool:      pool,
		validate:  validate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the full route table wrapped in the common middleware.
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	requireAdmin := s.auth.RequireRole(auth.RoleAdmin, s.writeError)

	s.handle(router, "GET /blocklist", http.HandlerFunc(s.listBlocklist))
	s.handle(router, "POST /blocklist", requireAdmin(http.HandlerFunc(s.addBlocklistEntry)))
	s.handle(router, "POST /blocklist/import", requireAdmin(http.HandlerFunc(s.importBlocklist)))
	s.handle(router, "POST /auth/token", http.HandlerFunc(s.issueToken))
	s.handle(router, "GET /health", http.HandlerFunc(s.health))
	router.Handle("GET /metrics", promhttp.Handler())

	if s.staticDir != "" {
		s.handle(router, "GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
		log.Debug("static files served", "dir", s.staticDir)
	}

	s.handle(router, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperror.NotFound(r.URL.Path))
	}))

	return requestID(enableCORS(router))
}

// Serve listens on addr until ctx is done. maxConns caps concurrently accepted
// connections; zero means unlimited.
func (s *Server) Serve(ctx context.Context, addr string, maxConns int) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if maxConns > 0 {
		listener = netutil.LimitListener(listener, maxConns)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("api server shutdown", "error", err)
		}
	}()

	log.Info("Starting blocklist server", "addr", listener.Addr().String(), "max_connections", maxConns)
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

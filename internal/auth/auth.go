package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"blocklist/internal/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	issuer    = "blocklist"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorWriter renders a classified error for the middleware.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type claimsKey struct{}

// Authenticator issues and validates HS256 bearer tokens for the admin account.
// A nil *Authenticator disables authentication.
type Authenticator struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func New(secret, passwordHash string, ttl time.Duration) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Login checks password against the configured bcrypt hash and issues an admin token.
func (a *Authenticator) Login(password string) (Token, error) {
	if a == nil {
		return Token{}, apperror.New(apperror.KindNotFound, "authentication is disabled")
	}
	err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	switch {
	case err == nil:
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return Token{}, apperror.New(apperror.KindCredentialMismatch, "")
	default:
		return Token{}, apperror.Wrap(apperror.KindVerificationFailed, err, "password hash could not be checked")
	}
	return a.Issue(RoleAdmin)
}

func (a *Authenticator) Issue(role string) (Token, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, apperror.Internal(err)
	}
	return Token{Token: signed, ExpiresAt: expires}, nil
}

func (a *Authenticator) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, err, "invalid token")
	}
	return claims, nil
}

// RequireRole rejects requests without a valid bearer token (401) or whose token carries
// another role (403).
func (a *Authenticator) RequireRole(role string, fail ErrorWriter) func(http.Handler) http.Handler {
	if fail == nil {
		fail = plainError
	}
	return func(next http.Handler) http.Handler {
		if a == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				fail(w, r, apperror.Unauthorized("missing bearer token"))
				return
			}

			claims, err := a.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				fail(w, r, err)
				return
			}
			if claims.Role != role {
				fail(w, r, apperror.Forbidden("role "+claims.Role+" may not do this"))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFrom returns the claims RequireRole attached to ctx.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

func plainError(w http.ResponseWriter, _ *http.Request, err error) {
	appErr := apperror.As(err)
	http.Error(w, appErr.Public(), appErr.Status())
}

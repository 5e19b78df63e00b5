// Package auth issues and verifies the HS256 tokens that identify quiz takers
// and operators.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quizbook-service/internal/domain"
)

// Roles carried in tokens.
const (
	RoleTaker    = "taker"
	RoleOperator = "operator"
)

type AuthService struct {
	hmac   []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(secret, issuer string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the verified bearer of a token.
type Principal struct {
	Identity domain.Identity
	Role     string
}

// Issue signs a token for identity with role.
func (a *AuthService) Issue(identity domain.Identity, role string) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("issue token: empty user id")
	}
	now := a.now()
	claims := &Claims{
		Name:  identity.DisplayName,
		Email: identity.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

// Parse verifies tokenStr and returns its bearer.
func (a *AuthService) Parse(tokenStr string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || c.Subject == "" {
		return Principal{}, domain.ErrUnauthenticated
	}
	return Principal{
		Identity: domain.Identity{UserID: c.Subject, DisplayName: c.Name, Email: c.Email},
		Role:     c.Role,
	}, nil
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// IdentityFromContext returns the identity of the authenticated caller.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Identity, ok
}

// TokenFromRequest reads a bearer token from the Authorization header or,
// for websocket upgrades, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Middleware attaches the principal of a valid token to the request context.
// Requests without a token pass through anonymously; invalid tokens are
// rejected.
func (a *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := TokenFromRequest(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := a.Parse(tok)
		if err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole rejects requests whose principal lacks role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			if p.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

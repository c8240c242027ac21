package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
)

const defaultLeeway = 30 * time.Second

var (
	ErrMissingSecret = errors.New("identity: JWT secret is required")
	ErrMissingToken  = errors.New("identity: bearer token is required")
	ErrInvalidToken  = errors.New("identity: invalid token")
	ErrInvalidUserID = errors.New("identity: token subject is not a user ID")
)

// Config describes how the auth provider signs access tokens.
type Config struct {
	Secret   string `env:"JWT_SECRET,required"`
	Issuer   string `env:"JWT_ISSUER"`
	Audience string `env:"JWT_AUDIENCE"`
}

// Verifier checks HS256 access tokens issued by the auth provider and
// returns the user ID carried in the sub claim.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds a verifier. Issuer and audience are checked only when configured.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(defaultLeeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify validates tokenString and returns its subject as a user ID.
func (v *Verifier) Verify(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrInvalidUserID
	}
	return userID, nil
}

// Middleware authenticates the Authorization: Bearer header and stores the user ID
// in the request context. Unauthenticated requests get 401 and never reach next.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err == nil {
			var userID uuid.UUID
			if userID, err = v.Verify(token); err == nil {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="fitmeter"`)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Sign issues a token for userID the way the auth provider does.
// Used by local tooling and tests.
func Sign(cfg Config, userID uuid.UUID, now time.Time, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", ErrMissingSecret
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type contextKey struct{}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// FromContext returns the authenticated user ID, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// FromRequest is FromContext on the request context. It matches gate.IdentityFunc.
func FromRequest(r *http.Request) (uuid.UUID, bool) {
	return FromContext(r.Context())
}

// LogExtractor adds the authenticated user ID to records logged with the request context.
func LogExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := FromContext(ctx); ok {
			return logger.UserID(id), true
		}
		return slog.Attr{}, false
	}
}

// Package auth guards the admin area: a shared password and a signed session
// token kept in a cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	CookieName = "tutorkasse_session"
	issuer     = "tutorkasse"
	adminRole  = "admin"

	DefaultTTL   = 12 * time.Hour
	bcryptCost   = 12
	maxFailures  = 5
	lockDuration = 10 * time.Minute
)

var (
	ErrDisabled        = errors.New("admin login is not configured")
	ErrInvalidPassword = errors.New("invalid password")
	ErrLocked          = errors.New("too many failed attempts, try again later")
	ErrInvalidSession  = errors.New("invalid session")
)

// Config configures the authenticator. PasswordHash (bcrypt) wins over
// Password when both are set.
type Config struct {
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
}

// Claims is the session token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	password []byte
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	failures    int
	lockedUntil time.Time
}

func New(cfg Config) *Authenticator {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a := &Authenticator{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}
	if cfg.PasswordHash != "" {
		a.hash = []byte(cfg.PasswordHash)
	} else if cfg.Password != "" {
		a.password = []byte(cfg.Password)
	}
	return a
}

// Enabled reports whether a password is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.hash) > 0 || len(a.password) > 0
}

// TTL is the session lifetime.
func (a *Authenticator) TTL() time.Duration { return a.ttl }

// CheckPassword verifies pw. After maxFailures wrong attempts in a row logins
// are refused for lockDuration.
func (a *Authenticator) CheckPassword(pw string) error {
	if !a.Enabled() {
		return ErrDisabled
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Before(a.lockedUntil) {
		return ErrLocked
	}

	if a.matches(pw) {
		a.failures = 0
		return nil
	}

	a.failures++
	if a.failures >= maxFailures {
		a.failures = 0
		a.lockedUntil = now.Add(lockDuration)
	}
	return ErrInvalidPassword
}

func (a *Authenticator) matches(pw string) bool {
	if len(a.hash) > 0 {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(pw)) == nil
	}
	return subtle.ConstantTimeCompare(a.password, []byte(pw)) == 1
}

// IssueToken signs a new admin session token.
func (a *Authenticator) IssueToken() (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   adminRole,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// ParseToken validates a session token and returns its claims.
func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidSession
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != adminRole {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// HashPassword returns a bcrypt hash for ADMIN_PASSWORD_HASH.
func HashPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

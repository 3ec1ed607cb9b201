package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	adminTokenExpiry = 12 * time.Hour
	adminSubject     = "admin"
	bcryptCost       = 12
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrBadPassword   = errors.New("invalid password")
	ErrLoginThrottle = errors.New("too many login attempts, try again later")
)

// AdminAuth guards the operator endpoints. Operators log in with a password
// checked against a bcrypt hash and receive a short-lived HS256 token.
type AdminAuth struct {
	passHash  []byte
	jwtSecret []byte

	// Login attempts per IP
	rateMu   sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewAdminAuth returns nil when passwordHash is empty, which disables the
// admin endpoints. An empty secret is replaced by a random one, so tokens do
// not survive a restart.
func NewAdminAuth(passwordHash, secret string) *AdminAuth {
	if passwordHash == "" {
		return nil
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("failed to generate JWT secret: " + err.Error())
		}
		log.Printf("admin: no secret configured, using a random one")
	}
	return &AdminAuth{
		passHash:  []byte(passwordHash),
		jwtSecret: key,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// HashPassword returns the bcrypt hash to put in ARENA_ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks password and returns a signed token
func (a *AdminAuth) Login(password, ip string) (string, error) {
	if !a.allow(ip) {
		return "", ErrLoginThrottle
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		return "", ErrBadPassword
	}
	return a.generateToken(time.Now())
}

// ValidateToken checks signature, subject and expiry
func (a *AdminAuth) ValidateToken(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	}, jwt.WithSubject(adminSubject), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (a *AdminAuth) generateToken(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenExpiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *AdminAuth) allow(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	lim, ok := a.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Every(loginRateWindow/maxLoginAttempts), maxLoginAttempts)
		a.limiters[ip] = lim
	}
	return lim.Allow()
}

package sensorlog

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Querier provides the query operations the HTTP handlers need.
// This interface allows handlers to be tested independently of the Engine.
type Querier interface {
	Catalog() Catalog
	RangeQuery(id string, start, end time.Time) ([]Record, error)
	RecentQuery(id string) ([]Record, error)
	DecimatedQuery(id string, target int) ([]Record, error)
	LastRecord(id string) (Record, bool, error)
	RangeSummary(id string) (Summary, error)
}

// Ensure Engine implements the interface
var _ Querier = (*Engine)(nil)

type httpServer struct {
	srv *http.Server
}

// maxBodySize is the maximum allowed request body size (10MB)
const maxBodySize = 10 * 1024 * 1024

// middlewareWrapper applies the standard middleware chain to a handler.
type middlewareWrapper func(http.HandlerFunc) http.HandlerFunc

// rateLimiter implements a simple token bucket rate limiter per IP.
// Stale visitor entries are swept opportunistically on the request path,
// so the limiter needs no background goroutine and no shutdown.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      int           // requests per window
	window    time.Duration // time window
	cleanup   time.Duration // stale entry age
	lastSweep time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the given rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate,
		window:    window,
		cleanup:   window * 2,
		lastSweep: time.Now(),
	}
}

// sweep drops visitors idle longer than the cleanup age. Callers hold mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.cleanup {
		return
	}
	rl.lastSweep = now
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.cleanup {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) >= rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimitMiddleware wraps a handler with rate limiting
func rateLimitMiddleware(rl *rateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

const (
	// authKeySize is the pbkdf2-SHA256 digest size for stored API keys.
	authKeySize = 32
	// authDefaultIterations is the pbkdf2 iteration count when the config
	// does not set one.
	authDefaultIterations = 100000
)

// AuthConfig configures HTTP API authentication. API keys are never stored
// in the config; only their pbkdf2-SHA256 digests are.
type AuthConfig struct {
	// Enabled turns on API key authentication
	Enabled bool `yaml:"enabled"`

	// KeyDigests are hex-encoded pbkdf2-SHA256 digests of accepted keys.
	KeyDigests []string `yaml:"key_digests"`

	// Salt is the shared pbkdf2 salt, hex-encoded.
	Salt string `yaml:"salt"`

	// Iterations is the pbkdf2 iteration count. Default: 100000.
	Iterations int `yaml:"iterations"`

	// ExcludePaths bypass authentication. Default: /healthz.
	ExcludePaths []string `yaml:"exclude_paths"`
}

// HashAPIKey derives the stored digest for an API key, hex-encoded.
// Operators use this to populate AuthConfig.KeyDigests.
func HashAPIKey(key, saltHex string, iterations int) (string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", err
	}
	if iterations <= 0 {
		iterations = authDefaultIterations
	}
	digest := pbkdf2.Key([]byte(key), salt, iterations, authKeySize, sha256.New)
	return hex.EncodeToString(digest), nil
}

// authenticator handles API key authentication
type authenticator struct {
	enabled      bool
	digests      [][]byte
	salt         []byte
	iterations   int
	excludePaths map[string]bool
}

func newAuthenticator(cfg *AuthConfig) *authenticator {
	a := &authenticator{excludePaths: map[string]bool{"/healthz": true}}
	if cfg == nil || !cfg.Enabled {
		return a
	}

	a.enabled = true
	a.iterations = cfg.Iterations
	if a.iterations <= 0 {
		a.iterations = authDefaultIterations
	}
	a.salt, _ = hex.DecodeString(cfg.Salt)
	for _, d := range cfg.KeyDigests {
		if raw, err := hex.DecodeString(d); err == nil && len(raw) == authKeySize {
			a.digests = append(a.digests, raw)
		}
	}
	for _, p := range cfg.ExcludePaths {
		a.excludePaths[p] = true
	}
	return a
}

// authorize checks the presented API key against the stored digests using a
// constant-time comparison.
func (a *authenticator) authorize(r *http.Request) bool {
	if !a.enabled || a.excludePaths[r.URL.Path] {
		return true
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			key = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if key == "" {
		return false
	}

	presented := pbkdf2.Key([]byte(key), a.salt, a.iterations, authKeySize, sha256.New)
	for _, d := range a.digests {
		if subtle.ConstantTimeCompare(presented, d) == 1 {
			return true
		}
	}
	return false
}

// authMiddleware wraps a handler with API key authentication
func authMiddleware(a *authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

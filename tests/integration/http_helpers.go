package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/otpgate/otpgate/internal/auth"
	"github.com/otpgate/otpgate/internal/config"
	"github.com/otpgate/otpgate/internal/database"
	"github.com/otpgate/otpgate/internal/handlers"
	middlewareCustom "github.com/otpgate/otpgate/internal/middleware"
	"github.com/otpgate/otpgate/internal/repositories"
	"github.com/otpgate/otpgate/internal/routes"
	"github.com/otpgate/otpgate/internal/services"
	pkghttp "github.com/otpgate/otpgate/pkg/http"
)

// SentOTP represents a captured OTP delivery
type SentOTP struct {
	To      string
	Name    string
	Code    string
	Purpose string
}

// CapturingNotifier records OTP emails for test assertions
type CapturingNotifier struct {
	mu   sync.Mutex
	Sent []SentOTP
}

func (c *CapturingNotifier) SendRegistrationOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	c.record(SentOTP{To: email, Name: name, Code: code, Purpose: "registration"})
	return nil
}

func (c *CapturingNotifier) SendLoginOTP(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	c.record(SentOTP{To: email, Name: name, Code: code, Purpose: "login"})
	return nil
}

func (c *CapturingNotifier) record(sent SentOTP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, sent)
}

// LastOTP returns the most recent captured code, or nil
func (c *CapturingNotifier) LastOTP() *SentOTP {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil
	}
	return &c.Sent[len(c.Sent)-1]
}

// TestServer wraps httptest.Server with the full dependency graph:
// real database, miniredis-backed rate limiter, capturing notifier.
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	AccountRepo  *repositories.AccountRepository
	Notifier     *CapturingNotifier
	TokenManager *auth.TokenManager
	Config       *config.Config
	Redis        *miniredis.Miniredis
}

// NewTestServer initializes a complete HTTP server against a real database
func NewTestServer(t *testing.T, db *database.DB) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-32-characters-long!!",
			TokenTTL:  1 * time.Hour,
		},
		OTP: config.OTPConfig{
			Length:           6,
			TTL:              5 * time.Minute,
			MaxAttempts:      3,
			MaxLoginFailures: 5,
			LockDuration:     2 * time.Hour,
			CleanupInterval:  1 * time.Hour,
		},
		// Generous windows so flow tests are not throttled; rate limit
		// behavior itself is covered by the service-level tests.
		RateLimit: config.RateLimitConfig{
			RegistrationLimit:  100,
			RegistrationWindow: 1 * time.Hour,
			GenerationLimit:    100,
			GenerationWindow:   1 * time.Minute,
			VerificationLimit:  100,
			VerificationWindow: 5 * time.Minute,
		},
	}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	accountRepo := repositories.NewAccountRepository(db)
	notifier := &CapturingNotifier{}
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	rateLimiter := services.NewRedisRateLimiter(redisClient, cfg.RateLimit, logger)

	authService := services.NewAuthService(accountRepo, rateLimiter, notifier, tokenManager, cfg.OTP, logger)

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Wide per-IP ceiling: every test request arrives from 127.0.0.1.
	routes.RegisterRoutes(r, authHandler, tokenManager, middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:       server,
		DB:           db,
		AccountRepo:  accountRepo,
		Notifier:     notifier,
		TokenManager: tokenManager,
		Config:       cfg,
		Redis:        mr,
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts the error message from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}

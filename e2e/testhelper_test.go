package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/newsmelody/api/internal/auth"
	"github.com/newsmelody/api/internal/client"
	"github.com/newsmelody/api/internal/config"
	"github.com/newsmelody/api/internal/handler"
	"github.com/newsmelody/api/internal/middleware"
	"github.com/newsmelody/api/internal/pipeline"
	"github.com/newsmelody/api/internal/service"
	"github.com/newsmelody/api/internal/store"
	"github.com/newsmelody/api/internal/websocket"
	"github.com/newsmelody/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store store.Store
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients and an in-memory session store. Unconfigured clients
// trigger mock/fallback responses in all services.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis is only used by the rate limiter here, which fails open when the
	// server is absent. DB 15 avoids collision with a local instance.
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	validate := validator.New()

	sessionStore := store.NewMemoryStore()
	workspace := store.Workspace{BaseDir: t.TempDir()}

	// External clients — all unconfigured so services use mock fallbacks
	groqClient := client.NewGroqClient(&config.GroqConfig{})     // no API key → mock
	youtubeClient := client.NewYouTubeClient(&config.YouTubeConfig{Privacy: "unlisted"}) // no creds → mock

	newsService := service.NewNewsService(groqClient)
	orchestrator := pipeline.NewOrchestrator(sessionStore, workspace, newsService, client.NewFFmpegClient(), youtubeClient, pipeline.DefaultOptions())

	hub := websocket.NewHub()
	go hub.Run()
	pipelineWorker := worker.NewPipelineWorker(orchestrator, hub)
	// nil asynq client → runs execute on in-process goroutines
	pipelineService := service.NewPipelineService(nil, pipelineWorker)

	// Handlers
	sessionHandler := handler.NewSessionHandler(sessionStore, workspace, pipelineService, validate)
	audioHandler := handler.NewAudioHandler(sessionStore, workspace, pipelineService)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware — legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 100 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":    false,
				"youtube": false,
				"ffmpeg":  false,
				"r2":      false,
				"redis":   false,
				"auth":    true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated)
	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	sessions := api.Group("/sessions")
	sessions.Post("/", rateLimiter.SessionsLimit(10000), sessionHandler.Create)
	sessions.Get("/", sessionHandler.List)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/advance", rateLimiter.AdvanceLimit(10000), sessionHandler.Advance)
	sessions.Put("/:id/audio", rateLimiter.UploadLimit(10000), audioHandler.Put)

	return &testApp{app: app, store: sessionStore}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "newsmelody-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

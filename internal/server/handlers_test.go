package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intake/internal/config"
	"intake/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            "8480",
		Env:             "test",
		JWTSecret:       "test-secret-key-for-handler-tests-only",
		BlockedIPs:      "10.0.0.66",
		AnonRateLimit:   5,
		AuthRateLimit:   10,
		RateLimitWindow: time.Hour,
		DuplicateWindow: time.Hour,
		StoreTimeout:    5 * time.Second,
	}
}

func setupTestServer(t *testing.T, cfg *config.Config) (*Server, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Submission{}))

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return srv, db
}

func newFeedbackApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Post("/api/feedback", s.CreateSubmission)
	app.Get("/api/feedback/token", s.IssueFormToken)
	return app
}

// newAdminApp mounts the admin surface behind a locals-injecting stub so
// tests exercise AdminContext without a real JWT round trip.
func newAdminApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	admin := app.Group("/api/admin", s.AdminContext())
	admin.Get("/feedback", s.ListSubmissions)
	admin.Get("/feedback/stats", s.SubmissionStats)
	admin.Get("/feedback/export", s.ExportSubmissions)
	admin.Get("/feedback/:id", s.GetSubmission)
	admin.Patch("/feedback/:id", s.UpdateSubmissionStatus)
	admin.Delete("/feedback/:id", s.DeleteSubmission)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func validPayload() map[string]string {
	return map[string]string{
		"actor":   "author",
		"theme":   "Question about publishing",
		"email":   "john@example.com",
		"person":  "John Smith",
		"message": "I would like to know more about the process.",
	}
}

func createAdminUser(t *testing.T, db *gorm.DB, superuser bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username:    fmt.Sprintf("admin%v", superuser),
		Email:       fmt.Sprintf("admin-%v@example.com", superuser),
		Password:    string(hash),
		IsAdmin:     true,
		IsSuperuser: superuser,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateSubmission_Accepted(t *testing.T) {
	t.Parallel()

	srv, db := setupTestServer(t, testConfig())
	app := newFeedbackApp(srv)

	resp := postJSON(t, app, "/api/feedback", validPayload(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.NotZero(t, body["id"])

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateSubmission_ValidationErrors(t *testing.T) {
	t.Parallel()

	srv, db := setupTestServer(t, testConfig())
	app := newFeedbackApp(srv)

	payload := validPayload()
	payload["theme"] = "Hi"
	payload["email"] = "user@mailinator.com"

	resp := postJSON(t, app, "/api/feedback", payload, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, models.CodeValidationError, body["code"])
	fields, ok := body["errors"].(map[string]any)
	require.True(t, ok, "per-field errors must be present")
	assert.Contains(t, fields, "theme")
	assert.Contains(t, fields, "email")

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	assert.Zero(t, count, "invalid submissions must not be stored")
}

func TestCreateSubmission_Duplicate(t *testing.T) {
	t.Parallel()

	srv, _ := setupTestServer(t, testConfig())
	app := newFeedbackApp(srv)

	resp := postJSON(t, app, "/api/feedback", validPayload(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = postJSON(t, app, "/api/feedback", validPayload(), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, models.CodeDuplicate, body["code"])
}

func TestCreateSubmission_BlockedIP(t *testing.T) {
	t.Parallel()

	srv, _ := setupTestServer(t, testConfig())
	app := newFeedbackApp(srv)

	// The first X-Forwarded-For entry identifies the client.
	resp := postJSON(t, app, "/api/feedback", validPayload(), map[string]string{
		"X-Forwarded-For": "10.0.0.66, 172.16.0.1",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, models.CodeForbidden, body["code"])
}

func TestCreateSubmission_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AnonRateLimit = 2
	srv, _ := setupTestServer(t, cfg)
	app := newFeedbackApp(srv)

	// Distinct themes avoid the duplicate guard; the quota still trips.
	for i := 0; i < 2; i++ {
		payload := validPayload()
		payload["theme"] = fmt.Sprintf("Question number %d about publishing", i)
		resp := postJSON(t, app, "/api/feedback", payload, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	payload := validPayload()
	payload["theme"] = "One more question about publishing"
	resp := postJSON(t, app, "/api/feedback", payload, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, models.CodeRateLimited, body["code"])
}

func TestIssueFormToken(t *testing.T) {
	t.Parallel()

	srv, _ := setupTestServer(t, testConfig())
	app := newFeedbackApp(srv)

	req := httptest.NewRequest(http.MethodGet, "/api/feedback/token", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])
}

func TestAdminSurface(t *testing.T) {
	t.Parallel()

	srv, db := setupTestServer(t, testConfig())
	admin := createAdminUser(t, db, false)
	superuser := createAdminUser(t, db, true)

	// Seed a couple of submissions directly.
	subs := []*models.Submission{
		{Actor: models.ActorAuthor, Theme: "First question", Email: "a@example.com",
			Person: "Alice", Message: "message body one", Status: models.StatusNew},
		{Actor: models.ActorAdvertiser, Theme: "Banner pricing", Email: "b@corp.com",
			Person: "Bob", Message: "message body two", Status: models.StatusCompleted},
	}
	for _, sub := range subs {
		require.NoError(t, db.Create(sub).Error)
	}

	adminApp := newAdminApp(srv, admin.ID)
	superApp := newAdminApp(srv, superuser.ID)

	t.Run("list with status filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/feedback?status=completed", nil)
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(1), body["total"])
	})

	t.Run("get by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/admin/feedback/%d", subs[0].ID), nil)
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "First question", body["theme"])
	})

	t.Run("status update", func(t *testing.T) {
		payload := map[string]string{"status": "rejected"}
		raw, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPatch,
			fmt.Sprintf("/api/admin/feedback/%d", subs[0].ID), bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "rejected", body["status"])
	})

	t.Run("invalid status update", func(t *testing.T) {
		payload := map[string]string{"status": "archived"}
		raw, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPatch,
			fmt.Sprintf("/api/admin/feedback/%d", subs[0].ID), bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("stats", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/feedback/stats", nil)
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, float64(2), body["total"])
	})

	t.Run("csv export", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/feedback/export", nil)
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Contains(t, string(raw), "id,created_at,actor,status")
	})

	t.Run("delete needs superuser", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/admin/feedback/%d", subs[1].ID), nil)
		resp, err := adminApp.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = superApp.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()

		var count int64
		require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestAdminContext_RejectsNonAdmins(t *testing.T) {
	t.Parallel()

	srv, db := setupTestServer(t, testConfig())

	regular := &models.User{Username: "viewer", Email: "viewer@example.com", Password: "pw"}
	require.NoError(t, db.Create(regular).Error)

	app := newAdminApp(srv, regular.ID)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/feedback", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLogin(t *testing.T) {
	t.Parallel()

	srv, db := setupTestServer(t, testConfig())
	admin := createAdminUser(t, db, false)

	app := fiber.New()
	app.Post("/api/auth/login", srv.Login)

	t.Run("valid credentials", func(t *testing.T) {
		resp := postJSON(t, app, "/api/auth/login",
			map[string]string{"email": admin.Email, "password": "secret123"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := postJSON(t, app, "/api/auth/login",
			map[string]string{"email": admin.Email, "password": "nope"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := postJSON(t, app, "/api/auth/login",
			map[string]string{"email": "ghost@example.com", "password": "whatever"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

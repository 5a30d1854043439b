package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/docsense/docsense/internal/middleware"
	"github.com/docsense/docsense/internal/models"
	"github.com/docsense/docsense/internal/services"
	"github.com/docsense/docsense/internal/storage"
	"github.com/docsense/docsense/internal/store"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword  = "password123"
	adminEmail    = "admin@example.com"
	requesterMail = "requester@example.com"
)

type testEnv struct {
	app   *fiber.App
	users *store.MemoryUserStore
}

// newTestEnv builds the API against the in-memory stores with an approved
// admin and an approved requester already present.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	users := store.NewMemoryUserStore()
	roles := store.NewMemoryRoleStore()
	documents := store.NewMemoryDocumentStore()
	requests := store.NewMemoryRequestStore()
	objects := storage.NewMemoryObjectStore()

	authService := services.NewAuthService(users, roles, "test-access", "test-refresh", 15*time.Minute, 7*24*time.Hour)
	adminService := services.NewAdminService(users, roles)
	roleService := services.NewRoleService(roles, users)
	documentService := services.NewDocumentService(documents, requests, objects)
	downloadService := services.NewDownloadService(requests, documents)

	if err := roleService.SeedSystemRoles(ctx); err != nil {
		t.Fatalf("SeedSystemRoles: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	for email, role := range map[string]string{adminEmail: "SUPERUSER", requesterMail: "USER"} {
		u := &models.User{
			Username:   "u-" + email,
			Email:      email,
			Phone:      "555-0100",
			Password:   string(hash),
			Role:       role,
			IsApproved: true,
		}
		if err := users.Insert(ctx, u); err != nil {
			t.Fatalf("seed %s: %v", email, err)
		}
	}

	authHandler := NewAuthHandler(authService, 7*24*time.Hour)
	adminHandler := NewAdminHandler(adminService)
	roleHandler := NewRoleHandler(roleService)
	documentHandler := NewDocumentHandler(documentService, downloadService)

	app := fiber.New()
	protected := middleware.Protected(users, "test-access")
	adminOnly := middleware.AdminOnly()

	api := app.Group("/api")
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", protected, authHandler.Me)

	admin := api.Group("/admin", protected, adminOnly)
	admin.Get("/requests", adminHandler.PendingRequests)
	admin.Post("/requests/:userId/approve", adminHandler.ApproveUser)

	rolesGroup := api.Group("/roles")
	rolesGroup.Get("/active", roleHandler.Active)

	docs := api.Group("/documents", protected)
	docs.Post("/upload", documentHandler.Upload)
	docs.Get("/download", documentHandler.Download)
	docs.Get("/admin/download-requests", adminOnly, documentHandler.ListRequests)
	docs.Patch("/admin/download-requests/:id", adminOnly, documentHandler.Decide)
	docs.Get("/:id", documentHandler.Get)
	docs.Get("/:id/download-status", documentHandler.DownloadStatus)
	docs.Post("/:id/request-download", documentHandler.RequestDownload)

	return &testEnv{app: app, users: users}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	var body map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(raw) > 0 && resp.Header.Get("Content-Type") != "" &&
		bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL.Path, err, raw)
		}
	}
	return resp, body
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	var buf bytes.Buffer
	if payload != nil {
		json.NewEncoder(&buf).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	resp, body := e.do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d (%v)", email, resp.StatusCode, body)
	}
	data := body["data"].(map[string]interface{})
	token, _ := data["accessToken"].(string)
	if token == "" {
		t.Fatalf("login %s: no access token", email)
	}
	return token
}

func (e *testEnv) uploadDocument(t *testing.T, token string) string {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="document"; filename="policy.txt"`},
		"Content-Type":        {"text/plain"},
	})
	if err != nil {
		t.Fatalf("multipart: %v", err)
	}
	part.Write([]byte("internal travel policy"))
	w.WriteField("title", "Travel Policy")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := e.do(t, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d (%v)", resp.StatusCode, body)
	}
	doc := body["data"].(map[string]interface{})["document"].(map[string]interface{})
	return doc["id"].(string)
}

// TestDownloadWorkflow walks the whole token lifecycle over HTTP: request,
// approve, download once, then hit the limit.
func TestDownloadWorkflow(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.login(t, adminEmail)
	userToken := env.login(t, requesterMail)
	docID := env.uploadDocument(t, adminToken)

	var requestID string
	t.Run("request download", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/documents/"+docID+"/request-download",
			map[string]string{"reason": "need it for onboarding"})
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d (%v)", resp.StatusCode, body)
		}
		requestID = body["data"].(map[string]interface{})["requestId"].(string)
	})

	t.Run("duplicate request conflicts", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/documents/"+docID+"/request-download",
			map[string]string{"reason": "asking twice"})
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status %d, want 409", resp.StatusCode)
		}
	})

	t.Run("non-admin cannot decide", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, "/api/documents/admin/download-requests/"+requestID,
			map[string]interface{}{"action": "approve"})
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status %d, want 403", resp.StatusCode)
		}
	})

	var downloadToken string
	t.Run("admin approves", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, "/api/documents/admin/download-requests/"+requestID,
			map[string]interface{}{"action": "approve", "maxDownloads": 1})
		req.Header.Set("Authorization", "Bearer "+adminToken)
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d (%v)", resp.StatusCode, body)
		}
		downloadToken = body["data"].(map[string]interface{})["downloadToken"].(string)
		if downloadToken == "" {
			t.Fatal("no download token returned")
		}
	})

	t.Run("second decision is rejected", func(t *testing.T) {
		req := jsonRequest(http.MethodPatch, "/api/documents/admin/download-requests/"+requestID,
			map[string]interface{}{"action": "reject"})
		req.Header.Set("Authorization", "Bearer "+adminToken)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status %d, want 400", resp.StatusCode)
		}
	})

	t.Run("status shows the token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID+"/download-status", nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d (%v)", resp.StatusCode, body)
		}
		data := body["data"].(map[string]interface{})
		if data["status"] != "approved" {
			t.Errorf("status = %v, want approved", data["status"])
		}
		if data["downloadToken"] != downloadToken {
			t.Error("status does not expose the issued token")
		}
	})

	t.Run("token downloads the file once", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/download?token="+downloadToken, nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, err := env.app.Test(req, -1)
		if err != nil {
			t.Fatalf("download: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d", resp.StatusCode)
		}
		if cd := resp.Header.Get(fiber.HeaderContentDisposition); cd != `attachment; filename="policy.txt"` {
			t.Errorf("content disposition = %q", cd)
		}
		data, _ := io.ReadAll(resp.Body)
		if string(data) != "internal travel policy" {
			t.Errorf("body = %q", data)
		}
	})

	t.Run("spent token is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/download?token="+downloadToken, nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status %d, want 403 (%v)", resp.StatusCode, body)
		}
		if body["message"] != "Download limit exceeded" {
			t.Errorf("message = %v", body["message"])
		}
	})

	t.Run("bogus token is not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents/download?token=deadbeef", nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status %d, want 404", resp.StatusCode)
		}
	})
}

func TestAuthGates(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d, want 401", resp.StatusCode)
		}
	})

	t.Run("unapproved registration cannot log in", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
			"username": "newcomer",
			"email":    "newcomer@example.com",
			"phone":    "555-0199",
			"password": testPassword,
		})
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register: status %d (%v)", resp.StatusCode, body)
		}

		login := jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "newcomer@example.com",
			"password": testPassword,
		})
		resp, body = env.do(t, login)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("login: status %d, want 403 (%v)", resp.StatusCode, body)
		}
	})

	t.Run("approval revocation cuts off a live session", func(t *testing.T) {
		token := env.login(t, requesterMail)

		user, err := env.users.ByEmail(context.Background(), requesterMail)
		if err != nil {
			t.Fatalf("ByEmail: %v", err)
		}
		user.IsApproved = false
		if err := env.users.Update(context.Background(), user); err != nil {
			t.Fatalf("Update: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := env.do(t, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status %d, want 403", resp.StatusCode)
		}

		// Restore for any later subtests.
		user.IsApproved = true
		if err := env.users.Update(context.Background(), user); err != nil {
			t.Fatalf("restore: %v", err)
		}
	})

	t.Run("active roles are public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/roles/active", nil)
		resp, body := env.do(t, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d (%v)", resp.StatusCode, body)
		}
		roles := body["data"].(map[string]interface{})["roles"].([]interface{})
		if len(roles) != 2 {
			t.Errorf("roles = %d, want 2", len(roles))
		}
	})
}

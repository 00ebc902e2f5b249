package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"log/slog"

	"github.com/Troviny/troviny-backend/internal/security"
)

type fakeBlacklist struct {
	tokens map[string]bool
}

func (f fakeBlacklist) IsAccessTokenBlacklisted(_ context.Context, token string) (bool, error) {
	return f.tokens[token], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gatekeeperRouter(blacklist Blacklist) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Gatekeeper(blacklist, testLogger()))
	r.GET("/anything", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	return r
}

func doGet(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGatekeeperPassesWithoutHeader(t *testing.T) {
	router := gatekeeperRouter(fakeBlacklist{tokens: map[string]bool{}})

	if w := doGet(router, ""); w.Code != http.StatusOK {
		t.Fatalf("expected pass-through without header, got %d", w.Code)
	}
}

func TestGatekeeperRejectsMalformedHeader(t *testing.T) {
	router := gatekeeperRouter(fakeBlacklist{tokens: map[string]bool{}})

	for _, header := range []string{"Malformed", "Bearer "} {
		w := doGet(router, header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
		if body := w.Body.String(); !strings.Contains(body, "MALFORMED_AUTH_HEADER") {
			t.Fatalf("header %q: expected MALFORMED_AUTH_HEADER, got %s", header, body)
		}
	}
}

func TestGatekeeperRejectsBlacklistedToken(t *testing.T) {
	router := gatekeeperRouter(fakeBlacklist{tokens: map[string]bool{"abc123": true}})

	w := doGet(router, "Bearer abc123")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for blacklisted token, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "TOKEN_REVOKED") {
		t.Fatalf("expected TOKEN_REVOKED, got %s", body)
	}
}

func TestGatekeeperPassesCleanToken(t *testing.T) {
	router := gatekeeperRouter(fakeBlacklist{tokens: map[string]bool{"abc123": true}})

	if w := doGet(router, "Bearer xyz789"); w.Code != http.StatusOK {
		t.Fatalf("expected pass-through for clean token, got %d", w.Code)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAuth([]byte("secret")))
	r.GET("/me", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotID int64
	r := gin.New()
	r.Use(RequireAuth([]byte("secret")))
	r.GET("/me", func(c *gin.Context) {
		gotID, _ = UserIDFromContext(c)
		c.JSON(200, gin.H{"ok": true})
	})

	token, err := security.NewAccessToken(7, []byte("secret"), time.Hour, time.Now(), "iss")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != 7 {
		t.Fatalf("expected user id 7 in context, got %d", gotID)
	}
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireAuth([]byte("secret")))
	r.GET("/me", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	token, err := security.NewRefreshToken(7, []byte("secret"), time.Hour, time.Now(), "iss")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("a refresh token must not authenticate a request, got %d", w.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := ExtractBearer(tc.header); got != tc.want {
			t.Fatalf("ExtractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

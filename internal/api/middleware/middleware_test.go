package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resumeCraft/internal/auth"
)

type fakeValidator struct {
	id  auth.Identity
	err error
}

func (f fakeValidator) ValidateAccessToken(string) (auth.Identity, error) {
	return f.id, f.err
}

func newEngine(v TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware(), AuthMiddleware(v), RequirePasswordChangeCompletedMiddleware())
	r.GET("/me", func(c *gin.Context) {
		id, ok := IdentityFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "correlation_id": GetCorrelationID(c)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		header string
		v      fakeValidator
		want   int
	}{
		{"missing header", "", fakeValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", fakeValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", fakeValidator{err: errors.New("bad")}, http.StatusUnauthorized},
		{"ok", "Bearer abc", fakeValidator{id: auth.Identity{UserID: 3}}, http.StatusOK},
		{"must change password", "Bearer abc", fakeValidator{id: auth.Identity{UserID: 3, MustChangePassword: true}}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			newEngine(tc.v).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d got %d body=%s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Correlation-ID", "cid-42")
	w := httptest.NewRecorder()
	newEngine(fakeValidator{id: auth.Identity{UserID: 3}}).ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "cid-42" {
		t.Fatalf("expected correlation id echoed, got %q", got)
	}
}

func TestCorrelationIDReplacesInvalidHeader(t *testing.T) {
	for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer abc")
		req.Header.Set("X-Correlation-ID", bad)
		w := httptest.NewRecorder()
		newEngine(fakeValidator{id: auth.Identity{UserID: 3}}).ServeHTTP(w, req)

		got := w.Header().Get(CorrelationHeader)
		if got == "" || got == bad {
			t.Fatalf("expected generated id for %q, got %q", bad, got)
		}
	}
}

func TestSlogLoggerLevelsAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger), AuthMiddleware(fakeValidator{id: auth.Identity{UserID: 9}}))
	r.GET("/boom", func(c *gin.Context) {
		if LoggerOr(c, nil) == slog.Default() {
			t.Errorf("expected request logger")
		}
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Authorization", "Bearer abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["level"] != "ERROR" || line["user_id"] != float64(9) || line["path"] != "/boom" {
		t.Fatalf("unexpected log line %v", line)
	}
}

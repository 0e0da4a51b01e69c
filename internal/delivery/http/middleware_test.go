package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/boodschap/backend/internal/usecase"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{
			name:           "exact match",
			origin:         "https://app.boodschap.nl",
			allowedOrigins: []string{"https://app.boodschap.nl"},
			want:           true,
		},
		{
			name:           "wildcard match",
			origin:         "https://preview-42.boodschap.nl",
			allowedOrigins: []string{"https://preview-*"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches second",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{"https://app.boodschap.nl", "http://localhost:3000"},
			want:           true,
		},
		{
			name:           "no match",
			origin:         "http://evil.com",
			allowedOrigins: []string{"https://app.boodschap.nl"},
			want:           false,
		},
		{
			name:           "empty origin",
			origin:         "",
			allowedOrigins: []string{"https://app.boodschap.nl"},
			want:           false,
		},
		{
			name:           "empty allowed list",
			origin:         "https://app.boodschap.nl",
			allowedOrigins: []string{},
			want:           false,
		},
		{
			name:           "prefix without wildcard does not match",
			origin:         "http://localhost:30001",
			allowedOrigins: []string{"http://localhost:3000"},
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isAllowedOrigin(tt.origin, tt.allowedOrigins)
			if got != tt.want {
				t.Errorf("isAllowedOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantCORS   bool
	}{
		{"allowed origin - GET request", "http://localhost:3000", "GET", http.StatusOK, true},
		{"allowed origin - OPTIONS request", "http://localhost:3000", "OPTIONS", http.StatusNoContent, true},
		{"disallowed origin", "http://evil.com", "GET", http.StatusOK, false},
		{"no origin header", "", "GET", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware([]string{"http://localhost:3000"}))
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "OK")
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}

			corsHeader := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORS {
				if corsHeader != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %s, want %s", corsHeader, tt.origin)
				}
				if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
					t.Errorf("Access-Control-Allow-Credentials not set to true")
				}
			} else if corsHeader != "" {
				t.Errorf("Access-Control-Allow-Origin should not be set for disallowed origin, got %s", corsHeader)
			}
		})
	}
}

func TestCORSMiddleware_PreflightAllowsSessionHeader(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:3000"}))
	router.POST("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Session-ID")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !bytes.Contains([]byte(got), []byte("X-Session-ID")) {
		t.Errorf("Access-Control-Allow-Headers = %q, want to contain X-Session-ID", got)
	}
	if w.Header().Get("Access-Control-Max-Age") == "" {
		t.Errorf("Access-Control-Max-Age not set")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	router := gin.New()
	router.Use(RequestIDMiddleware(logger))
	router.GET("/test", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside")
		c.Status(http.StatusOK)
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want req-123", got)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
			t.Errorf("log line missing request_id: %s", buf.String())
		}
	})

	t.Run("assigns an id when absent", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
			t.Errorf("X-Request-ID = %q, want a uuid", got)
		}
	})
}

func TestSessionMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(SessionMiddleware())
	router.GET("/open", func(c *gin.Context) {
		c.String(http.StatusOK, usecase.SessionIDFromContext(c.Request.Context()))
	})
	router.GET("/closed", RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, sessionID(c))
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"open route without session", "/open", "", http.StatusOK, ""},
		{"open route carries session into context", "/open", "abc", http.StatusOK, "abc"},
		{"closed route without session", "/closed", "", http.StatusBadRequest, ""},
		{"closed route whitespace session", "/closed", "   ", http.StatusBadRequest, ""},
		{"closed route with session", "/closed", " abc ", http.StatusOK, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-Session-ID", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

type recordedRequest struct{ method, route, status string }

type requestRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *requestRecorder) HTTPRequest(method, route, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{method, route, status})
}

func TestLoggerMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	recorder := &requestRecorder{}

	router := gin.New()
	router.Use(LoggerMiddleware(zerolog.New(buf), recorder))
	router.GET("/items/:id", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	if len(recorder.requests) != 2 {
		t.Fatalf("recorded %d requests, want 2", len(recorder.requests))
	}
	if got := recorder.requests[0]; got != (recordedRequest{"GET", "/items/:id", "418"}) {
		t.Errorf("first request = %+v", got)
	}
	if got := recorder.requests[1]; got.route != "unmatched" || got.status != "404" {
		t.Errorf("second request = %+v, want unmatched 404", got)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"warn"`)) {
		t.Errorf("4xx should log at warn: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"route":"/items/:id"`)) {
		t.Errorf("log line missing route: %s", buf.String())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	newRouter := func(perMinute, burst int) *gin.Engine {
		router := gin.New()
		router.Use(RateLimitMiddleware(perMinute, burst, zerolog.Nop()))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}
	hit := func(router *gin.Engine, ip string) int {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("burst then 429", func(t *testing.T) {
		router := newRouter(1, 2)

		for i := 0; i < 2; i++ {
			if code := hit(router, "10.0.0.1"); code != http.StatusOK {
				t.Fatalf("request %d: Status = %d, want 200", i, code)
			}
		}
		if code := hit(router, "10.0.0.1"); code != http.StatusTooManyRequests {
			t.Errorf("Status = %d, want %d", code, http.StatusTooManyRequests)
		}
	})

	t.Run("limits are per IP", func(t *testing.T) {
		router := newRouter(1, 1)

		if code := hit(router, "10.0.0.1"); code != http.StatusOK {
			t.Errorf("Status = %d, want 200", code)
		}
		if code := hit(router, "10.0.0.2"); code != http.StatusOK {
			t.Errorf("second IP Status = %d, want 200", code)
		}
	})

	t.Run("zero disables limiting", func(t *testing.T) {
		router := newRouter(0, 0)

		for i := 0; i < 50; i++ {
			if code := hit(router, "10.0.0.1"); code != http.StatusOK {
				t.Fatalf("request %d: Status = %d, want 200", i, code)
			}
		}
	})
}

func TestVisitorStore_EvictsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	store := newVisitorStore(rate.Limit(1), 1, time.Minute)
	store.now = func() time.Time { return now }
	store.lastSweep = now

	store.allow("10.0.0.1")
	store.allow("10.0.0.2")
	if store.len() != 2 {
		t.Fatalf("len = %d, want 2", store.len())
	}

	now = now.Add(2 * time.Minute)
	store.allow("10.0.0.3")

	if store.len() != 1 {
		t.Errorf("len = %d, want 1 after sweep", store.len())
	}
}

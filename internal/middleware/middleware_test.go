package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func TestRequestID(t *testing.T) {
	var seen string
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFrom(r.Context())
	})

	handler := RequestID(nextHandler)

	t.Run("Generates ID when missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
		assert.Equal(t, seen, req.Header.Get(HeaderRequestID))
	})

	t.Run("Preserves existing ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(HeaderRequestID, "test-id-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", seen)
		assert.Equal(t, "test-id-123", w.Header().Get(HeaderRequestID))
	})
}

func TestLogging(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	handler := RequestID(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Offline-Cache", "HIT")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest("GET", "/api/products", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := observed.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/products", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(15), fields["bytes"])
	assert.Equal(t, "HIT", fields["cache"])
	assert.Equal(t, "rid-1", fields["request_id"])
}

func TestLogging_ServerErrorIsWarning(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	defer logger.Replace(zap.New(core))()

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(h http.Handler, method, remote, device string) int {
		req := httptest.NewRequest(method, "/api/products", nil)
		req.RemoteAddr = remote
		if device != "" {
			req.Header.Set("X-Device-ID", device)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("Per client bucket", func(t *testing.T) {
		h := NewRateLimiter(WithGeneralRate(rate.Limit(0), 2)).Middleware(ok)

		assert.Equal(t, http.StatusOK, do(h, "GET", "10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusOK, do(h, "GET", "10.0.0.1:5001", ""))
		assert.Equal(t, http.StatusTooManyRequests, do(h, "GET", "10.0.0.1:5002", ""))

		assert.Equal(t, http.StatusOK, do(h, "GET", "10.0.0.2:5000", ""))
		assert.Equal(t, http.StatusOK, do(h, "GET", "10.0.0.1:5000", "phone-1"))
	})

	t.Run("Writes use the strict tier", func(t *testing.T) {
		h := NewRateLimiter(
			WithGeneralRate(rate.Limit(0), 5),
			WithStrictRate(rate.Limit(0), 1),
		).Middleware(ok)

		assert.Equal(t, http.StatusOK, do(h, "POST", "10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusTooManyRequests, do(h, "POST", "10.0.0.1:5000", ""))
		assert.Equal(t, http.StatusOK, do(h, "GET", "10.0.0.1:5000", ""))
	})
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(WithIdleTTL(time.Minute))
	l.now = func() time.Time { return now }

	l.getVisitor("ip:10.0.0.1:general", l.general)
	now = now.Add(30 * time.Second)
	l.getVisitor("ip:10.0.0.2:general", l.general)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, l.Cleanup())
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "ip:10.0.0.2:general")
}

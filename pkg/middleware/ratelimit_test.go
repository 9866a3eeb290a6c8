package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(rl *RateLimiter, remoteAddr string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterKeysByIP(t *testing.T) {
	t.Run("connections from one IP share a bucket regardless of port", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)

		require.Equal(t, http.StatusOK, serve(rl, "203.0.113.7:51001"))
		// Same client, new connection, new source port.
		require.Equal(t, http.StatusTooManyRequests, serve(rl, "203.0.113.7:51002"))
	})

	t.Run("different IPs get independent buckets", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)

		require.Equal(t, http.StatusOK, serve(rl, "203.0.113.7:51001"))
		require.Equal(t, http.StatusOK, serve(rl, "203.0.113.8:51001"))
	})

	t.Run("portless address is used as-is", func(t *testing.T) {
		rl := NewRateLimiter(0.001, 1)

		require.Equal(t, http.StatusOK, serve(rl, "203.0.113.7"))
		require.Equal(t, http.StatusTooManyRequests, serve(rl, "203.0.113.7"))
	})
}

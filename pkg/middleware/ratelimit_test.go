package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_RequestsWithinBurst_Pass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 10, 10, discardLogger())(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
	}
}

func TestRateLimit_ExceedingBurst_Returns429(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 0.001, 2, discardLogger())(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
			assert.Equal(t, "1000", rr.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_DifferentIPs_IndependentBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 0.001, 1, discardLogger())(okHandler())

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestBucketStore_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newBucketStore(1, 1, time.Minute)
	store.now = func() time.Time { return now }

	store.take("10.0.0.1")
	now = now.Add(30 * time.Second)
	store.take("10.0.0.2")
	now = now.Add(45 * time.Second)

	store.sweep()

	assert.Equal(t, 1, store.count())
}

func TestBucketStore_TakeRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newBucketStore(2, 1, time.Minute)
	store.now = func() time.Time { return now }

	assert.Zero(t, store.take("10.0.0.1"))
	assert.Equal(t, 500*time.Millisecond, store.take("10.0.0.1"))

	// A rejected request does not consume the next token.
	now = now.Add(500 * time.Millisecond)
	assert.Zero(t, store.take("10.0.0.1"))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "1", retryAfter(10*time.Millisecond))
	assert.Equal(t, "3", retryAfter(2100*time.Millisecond))
	assert.Equal(t, "180", retryAfter(rate.InfDuration))
}

func TestRateLimit_SpoofedForwardingHeadersShareOneBucket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 0.001, 1, discardLogger())(okHandler())

	admitted := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil)
		req.RemoteAddr = "198.51.100.20:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("1.2.3.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("5.6.7.%d", i))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusOK {
			admitted++
		}
	}

	assert.Equal(t, 1, admitted)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{name: "remote addr", remote: "192.0.2.1:4321", want: "192.0.2.1"},
		{name: "forwarded header ignored", xff: "203.0.113.9, 10.0.0.1", remote: "10.0.0.1:1", want: "10.0.0.1"},
		{name: "real ip header ignored", xri: "198.51.100.7", remote: "10.0.0.1:1", want: "10.0.0.1"},
		{name: "remote without port", remote: "192.0.2.5", want: "192.0.2.5"},
		{name: "mapped v6 remote", remote: "[::ffff:192.0.2.8]:443", want: "192.0.2.8"},
		{name: "v6 remote", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "unparseable remote", remote: "pipe", want: "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

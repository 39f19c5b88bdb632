package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"law_timeline_app_go/services"

	"github.com/juju/clock/testclock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})

	assert.NotNil(t, rl)
	assert.Equal(t, 10, rl.config.Requests)
	assert.Equal(t, time.Minute, rl.config.Window)
	assert.NotNil(t, rl.config.KeyFunc)
	assert.NotNil(t, rl.config.Clock)
	assert.Equal(t, "Too many requests. Please try again later.", rl.config.Message)
}

func TestRateLimiterWindow(t *testing.T) {
	clk := testclock.NewClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(RateLimitConfig{Requests: 2, Window: time.Minute, Clock: clk})

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are independent")

	clk.Advance(time.Minute + time.Second)
	assert.True(t, rl.Allow("a"), "a new window starts after expiry")

	rl.mu.Lock()
	_, stale := rl.store["b"]
	rl.mu.Unlock()
	assert.False(t, stale, "expired buckets are pruned")
}

func TestRateLimiterMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewUploadRateLimiter(1, time.Minute)

	handler := rl.Middleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	request := func(userID string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
		if userID != "" {
			c.Set(ContextKeyActor, services.Actor{UserID: userID, FirmID: "firm"})
		}
		return rec, handler(c)
	}

	rec, err := request("u1")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = request("u1")
	assertHTTPCode(t, err, http.StatusTooManyRequests)
	assert.Contains(t, err.(*echo.HTTPError).Message, "Too many uploads")

	rec, err = request("u2")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "ip:203.0.113.9", ActorKey(c))

	c.Set(ContextKeyActor, services.Actor{UserID: "u1"})
	assert.Equal(t, "user:u1", ActorKey(c))
}
